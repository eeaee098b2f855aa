// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"grimm.is/netstate/internal/jsonutil"
)

// GenDiff computes, for every merged interface whose apply view differs
// from the observed record, the minimal interface description to hand
// to a backend: an identity/state skeleton overlaid with exactly the
// fields that differ after sanitization. Interfaces with no prior
// current record pass through as the original desired input.
func (m *MergedInterfaces) GenDiff() (Interfaces, error) {
	ret := NewInterfaces()
	for _, rec := range m.Iter() {
		if !rec.IsDesired() || StructuralEqual(rec.Desired, rec.Current) {
			continue
		}
		desIface := rec.ForApply
		if desIface == nil {
			continue
		}
		if rec.Current == nil {
			// Nothing to diff against: emit the request verbatim.
			if rec.Desired != nil {
				ret.Push(rec.Desired.Clone())
			} else {
				ret.Push(desIface.Clone())
			}
			continue
		}

		curIface := rec.Current.Clone()
		if m.policy.Apply != nil {
			m.policy.Apply(curIface)
		}

		desiredVal, err := jsonutil.ToValue(desIface)
		if err != nil {
			return ret, err
		}
		currentVal, err := jsonutil.ToValue(curIface)
		if err != nil {
			return ret, err
		}

		diffVal, changed := jsonutil.Diff(desiredVal, currentVal)
		if !changed {
			continue
		}

		skeleton := desIface.CloneNameTypeOnly()
		skeleton.State = desIface.State
		skeletonVal, err := jsonutil.ToValue(skeleton)
		if err != nil {
			return ret, err
		}
		if diffMap, ok := diffVal.(map[string]any); ok {
			if err := jsonutil.Merge(skeletonVal, diffMap); err != nil {
				return ret, err
			}
		}

		newIface := &Interface{}
		if err := jsonutil.FromValue(skeletonVal, newIface); err != nil {
			return ret, err
		}
		newIface.DiffCtx = &DiffContext{Current: currentVal}
		ret.Push(newIface)
	}
	return ret, nil
}
