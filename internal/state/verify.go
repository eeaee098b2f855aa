// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"grimm.is/netstate/internal/errors"
	"grimm.is/netstate/internal/jsonutil"
)

// Verify checks a freshly observed snapshot against every desired
// interface's for-verify view. It is a pure read-only comparison: all
// sanitization happens on private copies.
//
// Rules, in order: ignored interfaces and unknown-type port references
// are stripped from the snapshot; OVS patch-port tolerance adjusts the
// snapshot if enabled; both sides are sanitized with the same policy
// used at apply time; then per interface: absent (or virtual and
// down) must have truly disappeared if virtual, is tolerated if
// physical; up interfaces must match field for field; an up interface
// with no observed match at all fails outright. Physical interfaces
// desired down are exempt entirely: hardware state after a down is
// backend-variable.
func (m *MergedInterfaces) Verify(current Interfaces) error {
	cur := current.Clone()
	cur.RemoveIgnored(m.IgnoredIfaces)
	cur.RemoveUnknownTypePort()
	if m.AllowExtraPatchPorts {
		m.pruneExtraOvsPatchPorts(&cur)
	}

	for _, iface := range cur.Iter() {
		if m.policy.Apply != nil {
			m.policy.Apply(iface)
		}
		if m.policy.CurrentForVerify != nil {
			m.policy.CurrentForVerify(iface)
		}
	}

	for _, rec := range m.Iter() {
		if !rec.IsDesired() || rec.ForVerify == nil {
			continue
		}
		iface := rec.ForVerify.Clone()
		if m.policy.Apply != nil {
			m.policy.Apply(iface)
		}
		if m.policy.DesiredForVerify != nil {
			m.policy.DesiredForVerify(iface)
		}

		curIface := cur.Get(iface.Name, iface.Type)

		if iface.IsAbsent() || (iface.IsVirtual() && iface.IsDown()) {
			if curIface != nil && !curIface.IsAbsent() {
				if err := verifyAbsentButFound(iface, curIface); err != nil {
					return err
				}
			}
			continue
		}

		if curIface != nil {
			// Physical interfaces with state down are not verified.
			if iface.IsUp() {
				if err := iface.Verify(curIface); err != nil {
					return err
				}
				if iface.Type == InterfaceTypeEthernet && iface.Ethernet != nil &&
					iface.Ethernet.SRIOV.IsEnabled() {
					if err := verifySRIOV(iface, &cur); err != nil {
						return err
					}
				}
			}
			continue
		}

		if iface.IsUp() {
			return errors.Errorf(errors.KindVerification,
				"failed to find desired interface %s %s", iface.Name, iface.Type)
		}
	}
	return nil
}

// verifyAbsentButFound handles a desired-absent interface still present
// in the snapshot. Virtual interfaces must be fully removable; physical
// hardware cannot always be disabled, so it is tolerated.
func verifyAbsentButFound(desIface, curIface *Interface) error {
	if !curIface.IsVirtual() {
		return nil
	}
	return errors.Errorf(errors.KindVerification,
		"absent/down interface %s/%s still found as %s",
		desIface.Name, desIface.Type, jsonutil.Pretty(curIface))
}

// verifySRIOV checks the configured virtual functions of an
// SR-IOV-enabled ethernet interface against the observed collection.
func verifySRIOV(desIface *Interface, cur *Interfaces) error {
	curIface := cur.Get(desIface.Name, InterfaceTypeEthernet)
	if curIface == nil || curIface.Ethernet == nil || curIface.Ethernet.SRIOV == nil {
		return errors.Errorf(errors.KindVerification,
			"SR-IOV enabled interface %s has no observed VF state", desIface.Name)
	}
	observed := make(map[int]SRIOVVF, len(curIface.Ethernet.SRIOV.VFs))
	for _, vf := range curIface.Ethernet.SRIOV.VFs {
		observed[vf.ID] = vf
	}
	for _, desVF := range desIface.Ethernet.SRIOV.VFs {
		curVF, found := observed[desVF.ID]
		if !found {
			return errors.Errorf(errors.KindVerification,
				"VF %d of interface %s not found in observed state", desVF.ID, desIface.Name)
		}
		desVal, err := jsonutil.ToValue(desVF)
		if err != nil {
			return err
		}
		curVal, err := jsonutil.ToValue(curVF)
		if err != nil {
			return err
		}
		if mismatch := jsonutil.SubsetMatch(desVal, curVal, ""); mismatch != "" {
			return errors.Errorf(errors.KindVerification,
				"VF %d of interface %s diverged at field %q: desired %s, observed %s",
				desVF.ID, desIface.Name, mismatch,
				jsonutil.Pretty(desVal), jsonutil.Pretty(curVal))
		}
	}
	return nil
}

// pruneExtraOvsPatchPorts drops, from the snapshot only, bridge port
// references to patch interfaces the backend created on its own. The
// desired bridge still verifies every port it names.
func (m *MergedInterfaces) pruneExtraOvsPatchPorts(cur *Interfaces) {
	for _, rec := range m.Iter() {
		if !rec.IsDesired() || rec.ForVerify == nil ||
			rec.ForVerify.Type != InterfaceTypeOvsBridge {
			continue
		}
		desiredPorts := make(map[string]bool)
		for _, p := range rec.ForVerify.Ports() {
			desiredPorts[p] = true
		}
		curBridge := cur.Get(rec.ForVerify.Name, InterfaceTypeOvsBridge)
		if curBridge == nil {
			continue
		}
		for _, port := range append([]string(nil), curBridge.Ports()...) {
			if desiredPorts[port] {
				continue
			}
			portIface := cur.Get(port, InterfaceTypeOvsInterface)
			if portIface != nil && portIface.Patch != nil {
				curBridge.RemovePort(port)
				cur.Remove(port, InterfaceTypeOvsInterface)
			}
		}
	}
}
