// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netlinkbr

import (
	"context"
	"fmt"
	"sort"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/netstate/internal/errors"
	"grimm.is/netstate/internal/netutil"
	"grimm.is/netstate/internal/plugin"
	"grimm.is/netstate/internal/state"
)

// Apply implements plugin.Applier. Order matters: absent interfaces go
// first so their names are free for re-creation, then changed
// interfaces by name, stable-resorted by activation priority so ports
// exist before the controllers that enslave them ask for them.
func (b *Backend) Apply(ctx context.Context, merged *state.MergedNetworkState, opts plugin.ApplyOptions) error {
	if err := b.deleteAbsent(ctx, merged); err != nil {
		return err
	}

	var pending []*state.Interface
	for _, rec := range merged.Ifaces.Iter() {
		if !rec.IsChanged() || rec.IsAbsent() || rec.ForApply == nil {
			continue
		}
		if rec.IfaceType().IsUserspace() {
			return errors.Errorf(errors.KindPluginFailure,
				"interface %s: %s is not supported by the %s backend",
				rec.Name(), rec.IfaceType(), b.Name())
		}
		pending = append(pending, rec.ForApply)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Name < pending[j].Name
	})
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].EffectiveUpPriority() < pending[j].EffectiveUpPriority()
	})

	for _, iface := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.configureIface(ctx, iface); err != nil {
			return err
		}
	}
	return nil
}

// deleteAbsent removes desired-absent virtual interfaces. Deleting one
// veth endpoint removes its peer, so peers are deduplicated. Physical
// hardware cannot be deleted; it is set down instead.
func (b *Backend) deleteAbsent(ctx context.Context, merged *state.MergedNetworkState) error {
	deleted := make(map[string]bool)
	for _, rec := range merged.Ifaces.KernelIfaces() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rec.IsDesired() || !rec.IsAbsent() || rec.Current == nil {
			continue
		}
		name := rec.Name()
		if deleted[name] {
			continue
		}

		if !rec.Current.IsVirtual() {
			link, err := b.nl.LinkByName(name)
			if err != nil {
				continue
			}
			if err := b.nl.LinkSetDown(link); err != nil {
				return errors.Wrapf(err, errors.KindPluginFailure,
					"netlink: failed to set %s down", name)
			}
			continue
		}

		link, err := b.nl.LinkByName(name)
		if err != nil {
			b.logger.Debug("absent interface already gone", "iface", name)
			continue
		}
		b.logger.Info("deleting interface", "iface", name, "type", string(rec.Current.Type))
		if err := b.nl.LinkDel(link); err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: failed to delete %s", name)
		}
		deleted[name] = true
		if rec.Current.Type == state.InterfaceTypeVeth &&
			rec.Current.Ethernet != nil && rec.Current.Ethernet.Veth != nil {
			deleted[rec.Current.Ethernet.Veth.Peer] = true
		}
	}
	return nil
}

func (b *Backend) configureIface(ctx context.Context, iface *state.Interface) error {
	link, err := b.nl.LinkByName(iface.Name)
	if err != nil {
		if !iface.IsVirtual() {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: interface %s not found", iface.Name)
		}
		newLink, buildErr := b.buildLink(iface)
		if buildErr != nil {
			return buildErr
		}
		b.logger.Info("creating interface", "iface", iface.Name, "type", string(iface.Type))
		if err := b.nl.LinkAdd(newLink); err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: failed to create %s", iface.Name)
		}
		link, err = b.nl.LinkByName(iface.Name)
		if err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: %s missing after creation", iface.Name)
		}
	}

	attrs := link.Attrs()
	if iface.MTU > 0 && iface.MTU != attrs.MTU {
		if err := b.nl.LinkSetMTU(link, iface.MTU); err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: failed to set MTU %d on %s", iface.MTU, iface.Name)
		}
	}
	if iface.MacAddress != "" && !netutil.MACEqual(iface.MacAddress, attrs.HardwareAddr.String()) {
		hw, parseErr := netutil.ParseMAC(iface.MacAddress)
		if parseErr != nil {
			return errors.Wrapf(parseErr, errors.KindValidation,
				"invalid MAC address %q for %s", iface.MacAddress, iface.Name)
		}
		if err := b.nl.LinkSetHardwareAddr(link, hw); err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: failed to set MAC on %s", iface.Name)
		}
	}

	if err := b.syncController(link, iface); err != nil {
		return err
	}

	if iface.IsUp() {
		if err := b.nl.LinkSetUp(link); err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: failed to set %s up", iface.Name)
		}
	} else if iface.IsDown() {
		if err := b.nl.LinkSetDown(link); err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: failed to set %s down", iface.Name)
		}
	}

	if err := b.syncAddrs(link, iface.IPv4, unix.AF_INET); err != nil {
		return err
	}
	return b.syncAddrs(link, iface.IPv6, unix.AF_INET6)
}

func (b *Backend) syncController(link netlink.Link, iface *state.Interface) error {
	if iface.Controller == nil {
		return nil
	}
	if *iface.Controller == "" {
		if err := b.nl.LinkSetNoMaster(link); err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: failed to detach %s from its controller", iface.Name)
		}
		return nil
	}
	master, err := b.nl.LinkByName(*iface.Controller)
	if err != nil {
		return errors.Wrapf(err, errors.KindPluginFailure,
			"netlink: controller %s of %s not found", *iface.Controller, iface.Name)
	}
	// Index 0 means the kernel has not assigned one; never treat it as
	// an existing enslavement.
	if master.Attrs().Index != 0 && link.Attrs().MasterIndex == master.Attrs().Index {
		return nil
	}
	if err := b.nl.LinkSetMaster(link, master); err != nil {
		return errors.Wrapf(err, errors.KindPluginFailure,
			"netlink: failed to attach %s to %s", iface.Name, *iface.Controller)
	}
	return nil
}

// syncAddrs reconciles one address family. Dynamic configs are left to
// the lease manager; static configs converge exactly; disabled configs
// are flushed. IPv6 link-local addresses are never touched.
func (b *Backend) syncAddrs(link netlink.Link, cfg *state.IPConfig, family int) error {
	if cfg == nil {
		return nil
	}
	name := link.Attrs().Name
	dynamic := cfg.DHCP != nil && *cfg.DHCP || cfg.Autoconf != nil && *cfg.Autoconf
	if cfg.IsEnabled() && dynamic {
		return nil
	}

	have, err := b.nl.AddrList(link, family)
	if err != nil {
		return errors.Wrapf(err, errors.KindPluginFailure,
			"netlink: failed to list addresses of %s", name)
	}

	want := make(map[string]bool, len(cfg.Address))
	if cfg.IsEnabled() {
		for _, a := range cfg.Address {
			want[fmt.Sprintf("%s/%d", a.IP, a.PrefixLength)] = true
		}
	}

	for _, addr := range have {
		if family == unix.AF_INET6 && addr.IP.IsLinkLocalUnicast() {
			continue
		}
		prefix, _ := addr.Mask.Size()
		key := fmt.Sprintf("%s/%d", addr.IP.String(), prefix)
		if want[key] {
			delete(want, key)
			continue
		}
		toDel := addr
		if err := b.nl.AddrDel(link, &toDel); err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: failed to remove %s from %s", key, name)
		}
	}

	missing := make([]string, 0, len(want))
	for key := range want {
		missing = append(missing, key)
	}
	sort.Strings(missing)
	for _, key := range missing {
		addr, parseErr := netlink.ParseAddr(key)
		if parseErr != nil {
			return errors.Wrapf(parseErr, errors.KindValidation,
				"invalid address %q for %s", key, name)
		}
		if err := b.nl.AddrAdd(link, addr); err != nil {
			return errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: failed to add %s to %s", key, name)
		}
	}
	return nil
}

// buildLink constructs the netlink object for a virtual interface type.
func (b *Backend) buildLink(iface *state.Interface) (netlink.Link, error) {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = iface.Name
	if iface.MTU > 0 {
		attrs.MTU = iface.MTU
	}

	switch iface.Type {
	case state.InterfaceTypeLinuxBridge:
		return &netlink.Bridge{LinkAttrs: attrs}, nil
	case state.InterfaceTypeDummy:
		return &netlink.Dummy{LinkAttrs: attrs}, nil
	case state.InterfaceTypeBond:
		bond := netlink.NewLinkBond(attrs)
		if iface.Bond != nil && iface.Bond.Mode != "" {
			bond.Mode = netlink.StringToBondMode(iface.Bond.Mode)
		}
		return bond, nil
	case state.InterfaceTypeVlan:
		if iface.Vlan == nil {
			return nil, errors.Errorf(errors.KindValidation,
				"vlan interface %s has no vlan section", iface.Name)
		}
		parent, err := b.nl.LinkByName(iface.Vlan.BaseIface)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindPluginFailure,
				"netlink: vlan parent %s of %s not found", iface.Vlan.BaseIface, iface.Name)
		}
		attrs.ParentIndex = parent.Attrs().Index
		return &netlink.Vlan{LinkAttrs: attrs, VlanId: iface.Vlan.ID}, nil
	case state.InterfaceTypeVeth:
		if iface.Ethernet == nil || iface.Ethernet.Veth == nil {
			return nil, errors.Errorf(errors.KindValidation,
				"veth interface %s has no peer", iface.Name)
		}
		return &netlink.Veth{LinkAttrs: attrs, PeerName: iface.Ethernet.Veth.Peer}, nil
	case state.InterfaceTypeTun:
		mode := netlink.TUNTAP_MODE_TUN
		if iface.Tun != nil && iface.Tun.Mode == "tap" {
			mode = netlink.TUNTAP_MODE_TAP
		}
		return &netlink.Tuntap{LinkAttrs: attrs, Mode: mode}, nil
	}
	return nil, errors.Errorf(errors.KindPluginFailure,
		"interface %s: cannot create type %s with the %s backend",
		iface.Name, iface.Type, b.Name())
}
