// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package state holds the declarative network state data model and the
// merge / diff / verify / revert engine that reconciles a desired state
// against the observed one. All structural comparisons run over the
// JSON form of these records (see internal/jsonutil); the kebab-case
// json tags are the wire format.
package state

import (
	"math"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/netstate/internal/errors"
	"grimm.is/netstate/internal/jsonutil"
)

// UpPriorityMax is the default activation priority: apply last.
const UpPriorityMax uint32 = math.MaxUint32

// BaseInterface carries the fields common to every interface variant.
type BaseInterface struct {
	Name string         `json:"name"`
	Type InterfaceType  `json:"type,omitempty"`
	State InterfaceState `json:"state,omitempty"`

	MTU        int    `json:"mtu,omitempty"`
	MacAddress string `json:"mac-address,omitempty"`
	// PermanentMacAddress is observed-only (ethtool); never applied.
	PermanentMacAddress string `json:"permanent-mac-address,omitempty"`

	// Controller is a lookup-only back-reference to an owning
	// interface, never an ownership edge.
	Controller     *string        `json:"controller,omitempty"`
	ControllerType *InterfaceType `json:"controller-type,omitempty"`

	IPv4 *IPConfig `json:"ipv4,omitempty"`
	IPv6 *IPConfig `json:"ipv6,omitempty"`

	UpTrigger   *Trigger `json:"up-trigger,omitempty"`
	DownTrigger *Trigger `json:"down-trigger,omitempty"`

	// UpPriority orders activation; nil means UpPriorityMax (apply last).
	UpPriority *uint32 `json:"up-priority,omitempty"`
}

// EffectiveUpPriority resolves the activation priority default.
func (b *BaseInterface) EffectiveUpPriority() uint32 {
	if b.UpPriority == nil {
		return UpPriorityMax
	}
	return *b.UpPriority
}

// EthernetSpec holds ethernet/veth specific fields.
type EthernetSpec struct {
	Veth  *VethSpec  `json:"veth,omitempty"`
	SRIOV *SRIOVSpec `json:"sr-iov,omitempty"`
}

// VethSpec names the peer of a veth pair.
type VethSpec struct {
	Peer string `json:"peer"`
}

// SRIOVSpec configures hardware virtual functions of a physical NIC.
type SRIOVSpec struct {
	TotalVFs *int      `json:"total-vfs,omitempty"`
	VFs      []SRIOVVF `json:"vfs,omitempty"`
}

// SRIOVVF is one virtual function sub-interface.
type SRIOVVF struct {
	ID         int    `json:"id"`
	MacAddress string `json:"mac-address,omitempty"`
	Trust      *bool  `json:"trust,omitempty"`
	SpoofCheck *bool  `json:"spoof-check,omitempty"`
}

// IsEnabled reports whether any VFs are requested.
func (s *SRIOVSpec) IsEnabled() bool {
	return s != nil && (s.TotalVFs != nil && *s.TotalVFs > 0 || len(s.VFs) > 0)
}

// BridgeSpec holds linux-bridge specific fields.
type BridgeSpec struct {
	Ports []string `json:"port,omitempty"`
}

// BondSpec holds bond specific fields.
type BondSpec struct {
	Mode  string   `json:"mode,omitempty"`
	Ports []string `json:"port,omitempty"`
}

// VlanSpec holds vlan specific fields.
type VlanSpec struct {
	BaseIface string `json:"base-iface"`
	ID        int    `json:"id"`
}

// TunSpec holds tun/tap specific fields.
type TunSpec struct {
	Mode  string `json:"mode,omitempty"` // tun or tap
	Owner *int   `json:"owner,omitempty"`
	Group *int   `json:"group,omitempty"`
}

// WifiSpec is shared between wifi-phy records (observed association)
// and wifi-cfg profiles (desired network, optionally pinned to a PHY).
type WifiSpec struct {
	SSID string `json:"ssid,omitempty"`
	// BaseIface pins a wifi-cfg profile to one PHY. Nil means the
	// profile applies to whichever PHY associates.
	BaseIface *string `json:"base-iface,omitempty"`
	PSK       string  `json:"psk,omitempty"`
}

// OvsBridgeSpec holds OVS bridge fields.
type OvsBridgeSpec struct {
	Ports []string `json:"port,omitempty"`
}

// OvsPatchSpec marks an ovs-interface as one end of a patch pair.
type OvsPatchSpec struct {
	Peer string `json:"peer"`
}

// DiffContext references the current value an interface was diffed
// against. Diagnostics only; sanitization strips it before comparisons.
type DiffContext struct {
	Current map[string]any `json:"current,omitempty"`
}

// RevertContext references the values a revert was computed from.
type RevertContext struct {
	Desired map[string]any `json:"desired,omitempty"`
	Current map[string]any `json:"current,omitempty"`
}

// Interface is one polymorphic interface record: the common base plus
// at most one populated per-variant spec, discriminated by Type.
type Interface struct {
	BaseInterface

	Ethernet  *EthernetSpec  `json:"ethernet,omitempty"`
	Bridge    *BridgeSpec    `json:"bridge,omitempty"`
	Bond      *BondSpec      `json:"bond,omitempty"`
	Vlan      *VlanSpec      `json:"vlan,omitempty"`
	Tun       *TunSpec       `json:"tun,omitempty"`
	Wifi      *WifiSpec      `json:"wifi,omitempty"`
	OvsBridge *OvsBridgeSpec `json:"ovs-bridge,omitempty"`
	Patch     *OvsPatchSpec  `json:"patch,omitempty"`

	DiffCtx   *DiffContext   `json:"_diff-context,omitempty"`
	RevertCtx *RevertContext `json:"_revert-context,omitempty"`
}

// Base returns the shared base record regardless of variant.
func (i *Interface) Base() *BaseInterface {
	return &i.BaseInterface
}

// IsUp reports administrative up. An empty state on a desired record
// means up; Normalize makes that explicit.
func (i *Interface) IsUp() bool {
	return i.State == InterfaceStateUp || i.State == ""
}

// IsDown reports administrative down.
func (i *Interface) IsDown() bool { return i.State == InterfaceStateDown }

// IsAbsent reports that the interface should not (or does not) exist.
func (i *Interface) IsAbsent() bool { return i.State == InterfaceStateAbsent }

// IsIgnore reports that the interface is excluded from reconciliation.
func (i *Interface) IsIgnore() bool { return i.State == InterfaceStateIgnore }

// IsVirtual reports whether a backend can create and destroy this
// interface.
func (i *Interface) IsVirtual() bool { return i.Type.IsVirtual() }

// IsUserspace reports whether the record lives in the user-level
// namespace.
func (i *Interface) IsUserspace() bool { return i.Type.IsUserspace() }

// IsController reports whether the record may own ports.
func (i *Interface) IsController() bool { return i.Type.IsController() }

// Ports returns the port names owned by a controller record, or nil.
func (i *Interface) Ports() []string {
	switch {
	case i.Bridge != nil:
		return i.Bridge.Ports
	case i.Bond != nil:
		return i.Bond.Ports
	case i.OvsBridge != nil:
		return i.OvsBridge.Ports
	}
	return nil
}

// RemovePort strips one port reference from a controller record.
func (i *Interface) RemovePort(name string) {
	remove := func(ports []string) []string {
		out := ports[:0]
		for _, p := range ports {
			if p != name {
				out = append(out, p)
			}
		}
		return out
	}
	switch {
	case i.Bridge != nil:
		i.Bridge.Ports = remove(i.Bridge.Ports)
	case i.Bond != nil:
		i.Bond.Ports = remove(i.Bond.Ports)
	case i.OvsBridge != nil:
		i.OvsBridge.Ports = remove(i.OvsBridge.Ports)
	}
}

// SSID returns the associated (wifi-phy) or configured (wifi-cfg) SSID.
func (i *Interface) SSID() string {
	if i.Wifi == nil {
		return ""
	}
	return i.Wifi.SSID
}

// Parent returns the PHY a wifi-cfg profile is pinned to, or nil.
func (i *Interface) Parent() *string {
	if i.Wifi == nil {
		return nil
	}
	return i.Wifi.BaseIface
}

// Normalize fills defaulted base fields on a desired record.
func (i *Interface) Normalize() {
	if i.State == "" {
		i.State = InterfaceStateUp
	}
	if i.Type == "" {
		i.Type = InterfaceTypeUnknown
	}
}

// Clone returns a deep copy via the structural form.
func (i *Interface) Clone() *Interface {
	val, err := jsonutil.ToValue(i)
	if err != nil {
		// A record that made it into memory always serializes.
		return &Interface{BaseInterface: BaseInterface{Name: i.Name, Type: i.Type}}
	}
	out := &Interface{}
	if err := jsonutil.FromValue(val, out); err != nil {
		return &Interface{BaseInterface: BaseInterface{Name: i.Name, Type: i.Type}}
	}
	return out
}

// CloneNameTypeOnly returns a skeleton carrying only identity.
func (i *Interface) CloneNameTypeOnly() *Interface {
	return &Interface{BaseInterface: BaseInterface{Name: i.Name, Type: i.Type}}
}

// Update deep-overlays other onto i at the structural level: nested
// objects merge, arrays and scalars from other replace.
func (i *Interface) Update(other *Interface) error {
	dst, err := jsonutil.ToValue(i)
	if err != nil {
		return err
	}
	src, err := jsonutil.ToValue(other)
	if err != nil {
		return err
	}
	if err := jsonutil.Merge(dst, src); err != nil {
		return err
	}
	merged := &Interface{}
	if err := jsonutil.FromValue(dst, merged); err != nil {
		return err
	}
	*i = *merged
	return nil
}

// Verify compares every field this (sanitized for-verify) record
// specifies against the observed record, failing with a descriptive
// mismatch. Read-only.
func (i *Interface) Verify(current *Interface) error {
	desVal, err := jsonutil.ToValue(i)
	if err != nil {
		return err
	}
	curVal, err := jsonutil.ToValue(current)
	if err != nil {
		return err
	}
	mismatch := jsonutil.SubsetMatch(desVal, curVal, "")
	if mismatch == "" {
		return nil
	}

	diff, diffErr := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(jsonutil.Pretty(desVal)),
		B:        difflib.SplitLines(jsonutil.Pretty(curVal)),
		FromFile: "desired",
		ToFile:   "current",
		Context:  3,
	})
	if diffErr != nil {
		diff = ""
	}
	err = errors.Errorf(errors.KindVerification,
		"verification failure of interface %s/%s at field %q\n%s",
		i.Name, i.Type, mismatch, diff)
	err = errors.Attr(err, "iface", i.Name)
	return errors.Attr(err, "field", mismatch)
}

// StructuralEqual reports whether two records serialize identically.
func StructuralEqual(a, b *Interface) bool {
	if a == nil || b == nil {
		return a == b
	}
	av, err := jsonutil.ToValue(a)
	if err != nil {
		return false
	}
	bv, err := jsonutil.ToValue(b)
	if err != nil {
		return false
	}
	return jsonutil.Equal(av, bv)
}
