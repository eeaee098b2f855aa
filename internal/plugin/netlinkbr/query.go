// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netlinkbr

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/netstate/internal/errors"
	"grimm.is/netstate/internal/netutil"
	"grimm.is/netstate/internal/state"
)

// Query implements plugin.Querier: a full snapshot of kernel links,
// their addresses and controller relations.
func (b *Backend) Query(ctx context.Context) (state.NetworkState, error) {
	ns := state.NewNetworkState()

	links, err := b.nl.LinkList()
	if err != nil {
		return ns, errors.Wrap(err, errors.KindPluginFailure, "netlink: failed to list links")
	}

	nameByIndex := make(map[int]string, len(links))
	for _, link := range links {
		nameByIndex[link.Attrs().Index] = link.Attrs().Name
	}

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return ns, err
		}
		iface, err := b.linkToIface(ctx, link, nameByIndex)
		if err != nil {
			return ns, err
		}
		ns.Ifaces.Push(iface)
	}

	fillControllerTypes(&ns.Ifaces)
	fillPorts(&ns.Ifaces)
	return ns, nil
}

func (b *Backend) linkToIface(ctx context.Context, link netlink.Link, nameByIndex map[int]string) (*state.Interface, error) {
	attrs := link.Attrs()
	iface := &state.Interface{BaseInterface: state.BaseInterface{
		Name: attrs.Name,
		Type: ClassifyLink(link),
		MTU:  attrs.MTU,
	}}
	if attrs.Flags&net.FlagUp != 0 {
		iface.State = state.InterfaceStateUp
	} else {
		iface.State = state.InterfaceStateDown
	}
	if len(attrs.HardwareAddr) > 0 {
		iface.MacAddress = netutil.NormalizeMAC(attrs.HardwareAddr.String())
	}
	if attrs.MasterIndex != 0 {
		if master, found := nameByIndex[attrs.MasterIndex]; found {
			name := master
			iface.Controller = &name
		}
	}

	switch l := link.(type) {
	case *netlink.Vlan:
		iface.Vlan = &state.VlanSpec{
			BaseIface: nameByIndex[attrs.ParentIndex],
			ID:        l.VlanId,
		}
	case *netlink.Tuntap:
		mode := "tun"
		if l.Mode == netlink.TUNTAP_MODE_TAP {
			mode = "tap"
		}
		iface.Tun = &state.TunSpec{Mode: mode}
	case *netlink.Bond:
		iface.Bond = &state.BondSpec{Mode: l.Mode.String()}
	}

	if iface.Type == state.InterfaceTypeEthernet {
		if perm, err := b.perm.PermAddr(attrs.Name); err == nil && perm != "" {
			iface.PermanentMacAddress = netutil.NormalizeMAC(perm)
		}
	}

	if iface.Type == state.InterfaceTypeWifiPhy && iface.IsUp() {
		ssid, err := b.scanner.CurrentSSID(ctx, attrs.Name)
		if err != nil {
			b.logger.Debug("SSID lookup failed", "iface", attrs.Name, "error", err.Error())
		} else if ssid != "" {
			iface.Wifi = &state.WifiSpec{SSID: ssid}
		}
	}

	var err error
	iface.IPv4, err = b.addrConfig(link, unix.AF_INET)
	if err != nil {
		return nil, err
	}
	iface.IPv6, err = b.addrConfig(link, unix.AF_INET6)
	if err != nil {
		return nil, err
	}
	return iface, nil
}

// addrConfig reads one address family into an IPConfig. IPv6 link-local
// addresses are kernel-managed noise and excluded.
func (b *Backend) addrConfig(link netlink.Link, family int) (*state.IPConfig, error) {
	addrs, err := b.nl.AddrList(link, family)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindPluginFailure,
			"netlink: failed to list addresses of %s", link.Attrs().Name)
	}
	cfg := &state.IPConfig{}
	for _, addr := range addrs {
		if family == unix.AF_INET6 && addr.IP.IsLinkLocalUnicast() {
			continue
		}
		prefix, _ := addr.Mask.Size()
		cfg.Address = append(cfg.Address, state.IPAddress{
			IP:           addr.IP.String(),
			PrefixLength: uint8(prefix),
		})
	}
	sort.Slice(cfg.Address, func(i, j int) bool {
		return cfg.Address[i].IP < cfg.Address[j].IP
	})
	enabled := len(cfg.Address) > 0
	cfg.Enabled = &enabled
	return cfg, nil
}

// ClassifyLink maps a netlink kind onto the model's interface types.
// Kinds the model has no variant for come back as unknown so the merge
// engine can exclude them from controller references.
func ClassifyLink(link netlink.Link) state.InterfaceType {
	attrs := link.Attrs()
	if attrs.Flags&net.FlagLoopback != 0 {
		return state.InterfaceTypeLoopback
	}
	switch link.Type() {
	case "bridge":
		return state.InterfaceTypeLinuxBridge
	case "bond":
		return state.InterfaceTypeBond
	case "vlan":
		return state.InterfaceTypeVlan
	case "veth":
		return state.InterfaceTypeVeth
	case "tuntap":
		return state.InterfaceTypeTun
	case "dummy":
		return state.InterfaceTypeDummy
	case "device":
		if IsWireless(attrs.Name) {
			return state.InterfaceTypeWifiPhy
		}
		return state.InterfaceTypeEthernet
	}
	return state.InterfaceTypeUnknown
}

// IsWireless checks the sysfs wireless marker directory.
func IsWireless(name string) bool {
	_, err := os.Stat(fmt.Sprintf("/sys/class/net/%s/wireless", name))
	return err == nil
}

// fillControllerTypes resolves each controller reference to its type
// once every record exists.
func fillControllerTypes(ifaces *state.Interfaces) {
	for _, iface := range ifaces.Kernel() {
		if iface.Controller == nil || *iface.Controller == "" {
			continue
		}
		if ctrl := ifaces.Get(*iface.Controller, state.InterfaceTypeUnknown); ctrl != nil {
			t := ctrl.Type
			iface.ControllerType = &t
		}
	}
}

// fillPorts derives controller port lists from member controller
// references, the inverse of what rtnetlink reports.
func fillPorts(ifaces *state.Interfaces) {
	for _, iface := range ifaces.Kernel() {
		if iface.Controller == nil || *iface.Controller == "" {
			continue
		}
		ctrl := ifaces.Get(*iface.Controller, state.InterfaceTypeUnknown)
		if ctrl == nil {
			continue
		}
		switch ctrl.Type {
		case state.InterfaceTypeLinuxBridge:
			if ctrl.Bridge == nil {
				ctrl.Bridge = &state.BridgeSpec{}
			}
			ctrl.Bridge.Ports = append(ctrl.Bridge.Ports, iface.Name)
		case state.InterfaceTypeBond:
			if ctrl.Bond == nil {
				ctrl.Bond = &state.BondSpec{}
			}
			ctrl.Bond.Ports = append(ctrl.Bond.Ports, iface.Name)
		}
	}
	for _, iface := range ifaces.Kernel() {
		if iface.Bridge != nil {
			sort.Strings(iface.Bridge.Ports)
		}
		if iface.Bond != nil {
			sort.Strings(iface.Bond.Ports)
		}
	}
}
