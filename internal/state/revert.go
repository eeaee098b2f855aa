// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"grimm.is/netstate/internal/jsonutil"
)

// GenerateRevert computes the smallest interface description that,
// applied back, restores the interface's pre-apply behavior. Returns
// nil when there is nothing to roll back: no apply view, or the
// computed revert is structurally identical to what was applied.
func (m *MergedInterface) GenerateRevert() (*Interface, error) {
	applyIface := m.ForApply
	if applyIface == nil {
		return nil, nil
	}
	if m.Current == nil {
		// The interface did not exist before the apply.
		revert := applyIface.CloneNameTypeOnly()
		revert.State = InterfaceStateAbsent
		return revert, nil
	}

	revert, err := generateRevertIface(applyIface, m.Current)
	if err != nil {
		return nil, err
	}
	if StructuralEqual(revert, applyIface) {
		return nil, nil
	}
	desiredVal, err := jsonutil.ToValue(applyIface)
	if err != nil {
		return nil, err
	}
	currentVal, err := jsonutil.ToValue(m.Current)
	if err != nil {
		return nil, err
	}
	revert.RevertCtx = &RevertContext{Desired: desiredVal, Current: currentVal}
	return revert, nil
}

// generateRevertIface reconstructs, field by field, the value each
// changed field held before desired was applied over current. Fields
// the apply never touched stay as current already has them.
func generateRevertIface(desired, current *Interface) (*Interface, error) {
	if desired.IsAbsent() {
		// Nothing was removed by the apply, so restore everything.
		return current.Clone(), nil
	}

	skeleton := current.CloneNameTypeOnly()
	skeleton.State = current.State
	revertVal, err := jsonutil.ToValue(skeleton)
	if err != nil {
		return nil, err
	}
	desiredVal, err := jsonutil.ToValue(desired)
	if err != nil {
		return nil, err
	}
	currentVal, err := jsonutil.ToValue(current)
	if err != nil {
		return nil, err
	}

	jsonutil.Revert(desiredVal, currentVal, revertVal)

	out := &Interface{}
	if err := jsonutil.FromValue(revertVal, out); err != nil {
		return nil, err
	}
	return out, nil
}
