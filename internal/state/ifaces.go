// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"encoding/json"

	"grimm.is/netstate/internal/errors"
)

// IfaceKey identifies a user-level interface. Kernel interfaces are
// keyed by name alone: the kernel namespace has unique names.
type IfaceKey struct {
	Name string
	Type InterfaceType
}

// Interfaces is the typed interface collection, partitioned into the
// kernel-level and user-level namespaces. Iteration order is insertion
// order within each partition; callers must not rely on cross-partition
// ordering. The wire form is a flat list.
type Interfaces struct {
	kernel      map[string]*Interface
	user        map[IfaceKey]*Interface
	kernelOrder []string
	userOrder   []IfaceKey
}

// NewInterfaces returns an empty collection.
func NewInterfaces() Interfaces {
	return Interfaces{
		kernel: make(map[string]*Interface),
		user:   make(map[IfaceKey]*Interface),
	}
}

func (s *Interfaces) init() {
	if s.kernel == nil {
		s.kernel = make(map[string]*Interface)
	}
	if s.user == nil {
		s.user = make(map[IfaceKey]*Interface)
	}
}

// Len returns the total interface count across both partitions.
func (s *Interfaces) Len() int {
	return len(s.kernel) + len(s.user)
}

// IsEmpty reports whether the collection holds no interfaces.
func (s *Interfaces) IsEmpty() bool { return s.Len() == 0 }

// Push inserts or replaces an interface in its partition.
func (s *Interfaces) Push(iface *Interface) {
	s.init()
	if iface.IsUserspace() {
		key := IfaceKey{Name: iface.Name, Type: iface.Type}
		if _, exists := s.user[key]; !exists {
			s.userOrder = append(s.userOrder, key)
		}
		s.user[key] = iface
		return
	}
	if _, exists := s.kernel[iface.Name]; !exists {
		s.kernelOrder = append(s.kernelOrder, iface.Name)
	}
	s.kernel[iface.Name] = iface
}

// Get looks an interface up by identity. A userspace type consults the
// user partition; InterfaceTypeUnknown consults the kernel partition
// first and then the user partition by name; any other type consults
// the kernel partition.
func (s *Interfaces) Get(name string, ifaceType InterfaceType) *Interface {
	if s.kernel == nil && s.user == nil {
		return nil
	}
	if ifaceType.IsUserspace() {
		return s.user[IfaceKey{Name: name, Type: ifaceType}]
	}
	if iface, found := s.kernel[name]; found {
		return iface
	}
	if ifaceType == InterfaceTypeUnknown {
		for _, key := range s.userOrder {
			if key.Name == name {
				return s.user[key]
			}
		}
	}
	return nil
}

// Remove deletes an interface from its partition.
func (s *Interfaces) Remove(name string, ifaceType InterfaceType) {
	if ifaceType.IsUserspace() {
		key := IfaceKey{Name: name, Type: ifaceType}
		if _, found := s.user[key]; found {
			delete(s.user, key)
			s.userOrder = removeKey(s.userOrder, key)
		}
		return
	}
	if _, found := s.kernel[name]; found {
		delete(s.kernel, name)
		s.kernelOrder = removeName(s.kernelOrder, name)
	}
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func removeKey(keys []IfaceKey, key IfaceKey) []IfaceKey {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

// Kernel returns the kernel partition in insertion order.
func (s *Interfaces) Kernel() []*Interface {
	out := make([]*Interface, 0, len(s.kernelOrder))
	for _, name := range s.kernelOrder {
		out = append(out, s.kernel[name])
	}
	return out
}

// User returns the user partition in insertion order.
func (s *Interfaces) User() []*Interface {
	out := make([]*Interface, 0, len(s.userOrder))
	for _, key := range s.userOrder {
		out = append(out, s.user[key])
	}
	return out
}

// Iter returns all interfaces, kernel partition first.
func (s *Interfaces) Iter() []*Interface {
	return append(s.Kernel(), s.User()...)
}

// Update merges the entries of other into s. Matching entries are
// deep-overlaid; new entries are appended. The OVS-with-netdev-datapath
// case is special: an ovs-interface whose kernel representative is a
// TUN device keeps the TUN's base record (identity, live state) while
// taking the ovs-interface's declared state and controller linkage, so
// the kernel device is not spuriously recreated.
func (s *Interfaces) Update(other *Interfaces) error {
	s.init()
	var fresh []*Interface
	for _, otherIface := range other.Iter() {
		var existing *Interface
		if otherIface.IsUserspace() {
			existing = s.user[IfaceKey{Name: otherIface.Name, Type: otherIface.Type}]
			if existing == nil && otherIface.Type == InterfaceTypeOvsInterface {
				// Netdev datapath: the kernel representative is a TUN.
				if kernelIface := s.kernel[otherIface.Name]; kernelIface != nil &&
					kernelIface.Type == InterfaceTypeTun {
					existing = kernelIface
				}
			}
		} else {
			existing = s.kernel[otherIface.Name]
		}
		if existing == nil {
			fresh = append(fresh, otherIface.Clone())
			continue
		}
		if existing.Type == InterfaceTypeTun && otherIface.Type == InterfaceTypeOvsInterface {
			aliased := existing.Clone()
			aliased.Type = InterfaceTypeOvsInterface
			aliased.State = otherIface.State
			aliased.Controller = otherIface.Controller
			aliased.ControllerType = otherIface.ControllerType
			if err := aliased.Update(otherIface); err != nil {
				return err
			}
			fresh = append(fresh, aliased)
			continue
		}
		if err := existing.Update(otherIface); err != nil {
			return err
		}
	}
	for _, iface := range fresh {
		s.Push(iface)
	}
	return nil
}

// RemoveUnknownTypePort strips controller port references that point at
// interfaces which do not exist or whose type is unresolved.
func (s *Interfaces) RemoveUnknownTypePort() {
	type action struct {
		ctrlName string
		ctrlType InterfaceType
		portName string
	}
	var pending []action
	for _, iface := range s.Iter() {
		if !iface.IsController() {
			continue
		}
		for _, portName := range iface.Ports() {
			portIface := s.Get(portName, InterfaceTypeUnknown)
			if portIface == nil || portIface.Type == InterfaceTypeUnknown {
				pending = append(pending, action{iface.Name, iface.Type, portName})
			}
		}
	}
	for _, act := range pending {
		if ctrl := s.Get(act.ctrlName, act.ctrlType); ctrl != nil {
			ctrl.RemovePort(act.portName)
		}
	}
}

// RemoveIgnored drops interfaces whose names are excluded by policy.
func (s *Interfaces) RemoveIgnored(names []string) {
	ignored := make(map[string]bool, len(names))
	for _, n := range names {
		ignored[n] = true
	}
	for _, iface := range s.Iter() {
		if ignored[iface.Name] {
			s.Remove(iface.Name, iface.Type)
		}
	}
}

// Clone returns a deep copy of the collection.
func (s *Interfaces) Clone() Interfaces {
	out := NewInterfaces()
	for _, iface := range s.Iter() {
		out.Push(iface.Clone())
	}
	return out
}

// MarshalJSON serializes the collection as a flat list, kernel
// partition first.
func (s Interfaces) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Iter())
}

// UnmarshalJSON deserializes a flat list, partitioning each record.
func (s *Interfaces) UnmarshalJSON(data []byte) error {
	var list []*Interface
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.Wrap(err, errors.KindStructural, "failed to decode interface list")
	}
	*s = NewInterfaces()
	for _, iface := range list {
		iface.Normalize()
		s.Push(iface)
	}
	return nil
}
