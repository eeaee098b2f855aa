// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

// MergeOptions tune one merge/apply round.
type MergeOptions struct {
	// NoVerify skips post-apply verification. Link-event driven applies
	// set this: events are asynchronous and best-effort, so a race-free
	// verification snapshot cannot be assumed.
	NoVerify bool
	// StrictPatchPorts disables the tolerance for extra backend-created
	// OVS patch-port peers during verification.
	StrictPatchPorts bool
	// Sanitizer overrides the sanitization policy. Nil means
	// DefaultSanitize().
	Sanitizer *SanitizePolicy
}

func (o MergeOptions) policy() SanitizePolicy {
	if o.Sanitizer != nil {
		return *o.Sanitizer
	}
	return DefaultSanitize()
}

// MergedInterfaces aggregates the per-identity reconciliation records
// plus the state-level accounting verification needs.
type MergedInterfaces struct {
	kernel      map[string]*MergedInterface
	user        map[IfaceKey]*MergedInterface
	kernelOrder []string
	userOrder   []IfaceKey

	// IgnoredIfaces are excluded from verification and diffing by
	// policy (desired records with state ignore).
	IgnoredIfaces []string
	// AllowExtraPatchPorts tolerates backend-created OVS patch-port
	// peers during verification.
	AllowExtraPatchPorts bool

	policy SanitizePolicy
}

// NewMergedInterfaces reconciles every identity present in either the
// desired or the current collection.
func NewMergedInterfaces(desired, current Interfaces, opts MergeOptions) (MergedInterfaces, error) {
	merged := MergedInterfaces{
		kernel:               make(map[string]*MergedInterface),
		user:                 make(map[IfaceKey]*MergedInterface),
		AllowExtraPatchPorts: !opts.StrictPatchPorts,
		policy:               opts.policy(),
	}

	desired = desired.Clone()
	current = current.Clone()
	current.RemoveUnknownTypePort()

	for _, iface := range desired.Iter() {
		if iface.IsIgnore() {
			merged.IgnoredIfaces = append(merged.IgnoredIfaces, iface.Name)
		}
	}
	desired.RemoveIgnored(merged.IgnoredIfaces)
	current.RemoveIgnored(merged.IgnoredIfaces)

	for _, desIface := range desired.Iter() {
		curIface := current.Get(desIface.Name, desIface.Type)
		if curIface == nil && desIface.Type == InterfaceTypeOvsInterface {
			// Netdev datapath: the kernel representative is a TUN.
			if kernelIface := current.Get(desIface.Name, InterfaceTypeUnknown); kernelIface != nil &&
				kernelIface.Type == InterfaceTypeTun {
				curIface = kernelIface
			}
		}
		record, err := NewMergedInterface(desIface, curIface, merged.policy)
		if err != nil {
			return merged, err
		}
		merged.push(desIface.Name, desIface.Type, record)
	}

	for _, curIface := range current.Iter() {
		if merged.get(curIface.Name, curIface.Type) != nil {
			continue
		}
		record, err := NewMergedInterface(nil, curIface, merged.policy)
		if err != nil {
			return merged, err
		}
		merged.push(curIface.Name, curIface.Type, record)
	}

	return merged, nil
}

func (m *MergedInterfaces) push(name string, ifaceType InterfaceType, rec *MergedInterface) {
	if ifaceType.IsUserspace() {
		key := IfaceKey{Name: name, Type: ifaceType}
		if _, exists := m.user[key]; !exists {
			m.userOrder = append(m.userOrder, key)
		}
		m.user[key] = rec
		return
	}
	if _, exists := m.kernel[name]; !exists {
		m.kernelOrder = append(m.kernelOrder, name)
	}
	m.kernel[name] = rec
}

func (m *MergedInterfaces) get(name string, ifaceType InterfaceType) *MergedInterface {
	if ifaceType.IsUserspace() {
		return m.user[IfaceKey{Name: name, Type: ifaceType}]
	}
	return m.kernel[name]
}

// Get looks up the reconciliation record for an identity.
func (m *MergedInterfaces) Get(name string, ifaceType InterfaceType) *MergedInterface {
	return m.get(name, ifaceType)
}

// Iter returns all records, kernel partition first, insertion order.
func (m *MergedInterfaces) Iter() []*MergedInterface {
	out := make([]*MergedInterface, 0, len(m.kernelOrder)+len(m.userOrder))
	for _, name := range m.kernelOrder {
		out = append(out, m.kernel[name])
	}
	for _, key := range m.userOrder {
		out = append(out, m.user[key])
	}
	return out
}

// KernelIfaces returns the kernel-partition records in insertion order.
func (m *MergedInterfaces) KernelIfaces() []*MergedInterface {
	out := make([]*MergedInterface, 0, len(m.kernelOrder))
	for _, name := range m.kernelOrder {
		out = append(out, m.kernel[name])
	}
	return out
}

// MergedNetworkState is the sole artifact the apply backends and the
// monitor manager consume.
type MergedNetworkState struct {
	Ifaces  MergedInterfaces
	DNS     MergedDNSState
	Options MergeOptions
}

// NewMergedNetworkState reconciles a desired state against the observed
// one. Fails with a structural error when either side cannot be
// serialized to the comparison form.
func NewMergedNetworkState(desired, current NetworkState, opts MergeOptions) (*MergedNetworkState, error) {
	ifaces, err := NewMergedInterfaces(desired.Ifaces, current.Ifaces, opts)
	if err != nil {
		return nil, err
	}
	return &MergedNetworkState{
		Ifaces:  ifaces,
		DNS:     NewMergedDNSState(desired.DNS, current.DNS),
		Options: opts,
	}, nil
}

// IsChanged reports whether anything needs to reach a backend.
func (s *MergedNetworkState) IsChanged() bool {
	if s.DNS.IsChanged() {
		return true
	}
	for _, rec := range s.Ifaces.Iter() {
		if rec.IsChanged() {
			return true
		}
	}
	return false
}

// Verify checks a freshly observed state against the merged
// expectations. See MergedInterfaces.Verify for interface semantics.
func (s *MergedNetworkState) Verify(current NetworkState) error {
	if err := s.Ifaces.Verify(current.Ifaces); err != nil {
		return err
	}
	return s.DNS.Verify(current.DNS)
}
