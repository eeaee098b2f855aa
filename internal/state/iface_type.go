// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

// InterfaceType identifies the variant of an interface record. The set
// is closed: anything a backend reports that we cannot classify becomes
// InterfaceTypeUnknown and is excluded from controller/port references.
type InterfaceType string

const (
	InterfaceTypeEthernet     InterfaceType = "ethernet"
	InterfaceTypeLinuxBridge  InterfaceType = "linux-bridge"
	InterfaceTypeBond         InterfaceType = "bond"
	InterfaceTypeVlan         InterfaceType = "vlan"
	InterfaceTypeVeth         InterfaceType = "veth"
	InterfaceTypeTun          InterfaceType = "tun"
	InterfaceTypeDummy        InterfaceType = "dummy"
	InterfaceTypeLoopback     InterfaceType = "loopback"
	InterfaceTypeWifiPhy      InterfaceType = "wifi-phy"
	InterfaceTypeWifiCfg      InterfaceType = "wifi-cfg"
	InterfaceTypeOvsBridge    InterfaceType = "ovs-bridge"
	InterfaceTypeOvsInterface InterfaceType = "ovs-interface"
	InterfaceTypeUnknown      InterfaceType = "unknown"
)

// IsUserspace reports whether interfaces of this type live in the
// user-level namespace (no kernel index of their own). Kernel and
// user-level interfaces with the same name are distinct identities.
func (t InterfaceType) IsUserspace() bool {
	return t == InterfaceTypeOvsBridge || t == InterfaceTypeOvsInterface
}

// IsVirtual reports whether interfaces of this type can be created and
// destroyed by a backend. Physical types (ethernet, wifi-phy) and types
// we cannot classify are not virtual: absent cannot be verified against
// them.
func (t InterfaceType) IsVirtual() bool {
	switch t {
	case InterfaceTypeLinuxBridge, InterfaceTypeBond, InterfaceTypeVlan,
		InterfaceTypeVeth, InterfaceTypeTun, InterfaceTypeDummy,
		InterfaceTypeWifiCfg, InterfaceTypeOvsBridge, InterfaceTypeOvsInterface:
		return true
	}
	return false
}

// IsController reports whether interfaces of this type may own ports.
func (t InterfaceType) IsController() bool {
	switch t {
	case InterfaceTypeLinuxBridge, InterfaceTypeBond, InterfaceTypeOvsBridge:
		return true
	}
	return false
}

// InterfaceState is the administrative state of an interface record.
type InterfaceState string

const (
	InterfaceStateUp     InterfaceState = "up"
	InterfaceStateDown   InterfaceState = "down"
	InterfaceStateAbsent InterfaceState = "absent"
	// InterfaceStateIgnore excludes the interface from verification and
	// diffing entirely; its name lands in MergedNetworkState.IgnoredIfaces.
	InterfaceStateIgnore InterfaceState = "ignore"
)
