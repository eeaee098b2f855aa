// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"grimm.is/netstate/internal/jsonutil"
)

// NetworkState is a full declarative description of the host network:
// the interface collection plus non-interface sub-states.
type NetworkState struct {
	Ifaces Interfaces `json:"interfaces"`
	DNS    *DNSState  `json:"dns-resolver,omitempty"`
}

// NewNetworkState returns an empty state.
func NewNetworkState() NetworkState {
	return NetworkState{Ifaces: NewInterfaces()}
}

// IsEmpty reports whether the state describes nothing.
func (s *NetworkState) IsEmpty() bool {
	return s.Ifaces.IsEmpty() && s.DNS == nil
}

// ParseNetworkState decodes a desired-state document. YAML and JSON are
// both accepted; the document is validated against the interface schema
// and trigger wire format, failing with a structural error.
func ParseNetworkState(doc []byte) (NetworkState, error) {
	out := NewNetworkState()
	if err := jsonutil.FromYAML(doc, &out); err != nil {
		return out, err
	}
	for _, iface := range out.Ifaces.Iter() {
		if err := iface.UpTrigger.Validate(); err != nil {
			return out, err
		}
		if err := iface.DownTrigger.Validate(); err != nil {
			return out, err
		}
	}
	return out, nil
}
