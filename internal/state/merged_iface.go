// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"grimm.is/netstate/internal/errors"
	"grimm.is/netstate/internal/jsonutil"
)

// MergedInterface is the reconciliation record for one interface
// identity. Exactly one of Desired/Current may be nil, never both.
type MergedInterface struct {
	// Desired is the raw user input, nil when the interface was only
	// discovered, not requested.
	Desired *Interface
	// Current is the observed record, nil when the interface does not
	// exist yet.
	Current *Interface
	// ForApply is the computed instruction handed to the backend. It
	// may differ from Desired (e.g. the OVS/TUN aliasing rewrite).
	ForApply *Interface
	// ForVerify is the computed expected end state, with fields the
	// backend does not control sanitized away at verify time.
	ForVerify *Interface

	changed bool
}

// NewMergedInterface reconciles one identity. For an ovs-interface
// request, current may be the kernel TUN device acting as its
// representative (the netdev datapath case).
func NewMergedInterface(desired, current *Interface, policy SanitizePolicy) (*MergedInterface, error) {
	if desired == nil && current == nil {
		return nil, errors.New(errors.KindInternal,
			"BUG: NewMergedInterface() got neither desired nor current interface")
	}

	m := &MergedInterface{Desired: desired, Current: current}
	if desired == nil {
		return m, nil
	}

	forApply := desired.Clone()
	forApply.Normalize()
	if current != nil && current.Type == InterfaceTypeTun &&
		desired.Type == InterfaceTypeOvsInterface {
		// The OVS netdev datapath represents ovs-interfaces as kernel
		// TUN devices. Base the apply record on the live TUN identity
		// and state fields so the device is not recreated, and take
		// only the controller linkage and OVS fields from the request.
		forApply = current.Clone()
		forApply.Type = InterfaceTypeOvsInterface
		forApply.State = desired.State
		forApply.Controller = desired.Controller
		forApply.ControllerType = desired.ControllerType
		forApply.Patch = desired.Patch
		if desired.IPv4 != nil {
			forApply.IPv4 = desired.IPv4.Clone()
		}
		if desired.IPv6 != nil {
			forApply.IPv6 = desired.IPv6.Clone()
		}
		forApply.Normalize()
	}
	if policy.Apply != nil {
		policy.Apply(forApply)
	}
	m.ForApply = forApply
	m.ForVerify = forApply.Clone()

	if current == nil {
		m.changed = true
		return m, nil
	}

	// Changed means the apply view asks for something the sanitized
	// observed record does not already satisfy.
	cur := current.Clone()
	if policy.Apply != nil {
		policy.Apply(cur)
	}
	applyVal, err := jsonutil.ToValue(forApply)
	if err != nil {
		return nil, err
	}
	curVal, err := jsonutil.ToValue(cur)
	if err != nil {
		return nil, err
	}
	m.changed = jsonutil.SubsetMatch(applyVal, curVal, "") != ""
	return m, nil
}

// IsDesired reports whether the caller asked for this interface.
func (m *MergedInterface) IsDesired() bool { return m.Desired != nil }

// IsChanged reports whether the apply view differs from the observed
// record.
func (m *MergedInterface) IsChanged() bool { return m.IsDesired() && m.changed }

// IsAbsent reports whether the reconciled record should not exist.
func (m *MergedInterface) IsAbsent() bool {
	if m.ForApply != nil {
		return m.ForApply.IsAbsent()
	}
	if m.Current != nil {
		return m.Current.IsAbsent()
	}
	return false
}

// Name returns the identity name from whichever view is present.
func (m *MergedInterface) Name() string {
	if m.Desired != nil {
		return m.Desired.Name
	}
	return m.Current.Name
}

// IfaceType returns the identity type from whichever view is present.
func (m *MergedInterface) IfaceType() InterfaceType {
	if m.Desired != nil {
		return m.Desired.Type
	}
	return m.Current.Type
}
