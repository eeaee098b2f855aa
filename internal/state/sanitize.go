// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"sort"

	"grimm.is/netstate/internal/netutil"
)

// SanitizePolicy normalizes interface records before structural
// comparison. Which fields a backend cannot deterministically control
// is backend-specific, so the policy is a parameter of the merge
// engine, not a constant of it. Every hook must be idempotent:
// sanitizing twice equals sanitizing once.
type SanitizePolicy struct {
	// Apply normalizes a record for any comparison (diffing, change
	// detection, verification). Runs on both desired and observed
	// records.
	Apply func(*Interface)
	// CurrentForVerify removes observed-only fields from a snapshot
	// record before verification.
	CurrentForVerify func(*Interface)
	// DesiredForVerify removes fields the backend does not program
	// from a for-verify view before verification.
	DesiredForVerify func(*Interface)
}

// DefaultSanitize returns the policy for the netlink-style backends:
//   - MAC addresses compare case-insensitively (normalized upper);
//   - controller port order is backend-chosen, so ports sort;
//   - diff/revert context metadata never participates in comparison;
//   - observed snapshots drop the permanent MAC (ethtool-only);
//   - for-verify views drop triggers and activation priority (daemon
//     concepts the backend never sees) and Wi-Fi secrets (not echoed).
func DefaultSanitize() SanitizePolicy {
	return SanitizePolicy{
		Apply: func(iface *Interface) {
			iface.Normalize()
			iface.MacAddress = netutil.NormalizeMAC(iface.MacAddress)
			iface.PermanentMacAddress = netutil.NormalizeMAC(iface.PermanentMacAddress)
			sortPorts(iface)
			iface.DiffCtx = nil
			iface.RevertCtx = nil
		},
		CurrentForVerify: func(iface *Interface) {
			iface.PermanentMacAddress = ""
		},
		DesiredForVerify: func(iface *Interface) {
			iface.UpTrigger = nil
			iface.DownTrigger = nil
			iface.UpPriority = nil
			if iface.Wifi != nil {
				iface.Wifi.PSK = ""
			}
		},
	}
}

func sortPorts(iface *Interface) {
	switch {
	case iface.Bridge != nil:
		sort.Strings(iface.Bridge.Ports)
	case iface.Bond != nil:
		sort.Strings(iface.Bond.Ports)
	case iface.OvsBridge != nil:
		sort.Strings(iface.OvsBridge.Ports)
	}
}
