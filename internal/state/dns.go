// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"sort"
	"strings"

	"grimm.is/netstate/internal/errors"
)

// DNSState is the resolver sub-state. It exists to show the pattern
// non-interface sub-states follow through merge and verify; resolver
// backend programming itself is out of scope.
type DNSState struct {
	Config *DNSConfig `json:"config,omitempty"`
}

// DNSConfig is the desired or observed resolver configuration.
type DNSConfig struct {
	Server  []string `json:"server,omitempty"`
	Search  []string `json:"search,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Clone returns a deep copy.
func (s *DNSState) Clone() *DNSState {
	if s == nil {
		return nil
	}
	out := &DNSState{}
	if s.Config != nil {
		out.Config = &DNSConfig{
			Server:  append([]string(nil), s.Config.Server...),
			Search:  append([]string(nil), s.Config.Search...),
			Options: append([]string(nil), s.Config.Options...),
		}
	}
	return out
}

// Sanitize normalizes an observed resolver snapshot. Idempotent.
func (s *DNSState) Sanitize() {
	if s == nil || s.Config == nil {
		return
	}
	for i, srv := range s.Config.Server {
		s.Config.Server[i] = strings.TrimSpace(srv)
	}
}

// MergedDNSState reconciles a desired resolver config against the
// observed one.
type MergedDNSState struct {
	Desired *DNSState
	Current *DNSState

	Servers  []string
	Searches []string
	Options  []string
}

// NewMergedDNSState builds the merged resolver record. A nil desired
// state inherits the current config unchanged.
func NewMergedDNSState(desired, current *DNSState) MergedDNSState {
	merged := MergedDNSState{Desired: desired, Current: current}
	conf := (*DNSConfig)(nil)
	if desired != nil {
		conf = desired.Config
	} else if current != nil {
		conf = current.Config
	}
	if conf != nil {
		merged.Servers = append([]string(nil), conf.Server...)
		merged.Searches = append([]string(nil), conf.Search...)
		merged.Options = append([]string(nil), conf.Options...)
	}
	return merged
}

// IsChanged reports whether a desired resolver config was submitted.
func (m *MergedDNSState) IsChanged() bool {
	return m.Desired != nil
}

// Verify compares the merged resolver expectation against an observed
// snapshot. Read-only; the snapshot is sanitized on a private copy.
func (m *MergedDNSState) Verify(current *DNSState) error {
	if !m.IsChanged() {
		return nil
	}
	current = current.Clone()
	current.Sanitize()

	var curConf *DNSConfig
	if current != nil {
		curConf = current.Config
	}
	if curConf == nil {
		return errors.New(errors.KindVerification, "current DNS config is empty")
	}

	if !stringSlicesEqual(curConf.Server, m.Servers) &&
		!(len(curConf.Server) == 0 && len(m.Servers) == 0) {
		return errors.Errorf(errors.KindVerification,
			"failed to apply DNS config: desire name servers '%s', got '%s'",
			strings.Join(m.Servers, " "), strings.Join(curConf.Server, " "))
	}

	if !stringSlicesEqual(curConf.Search, m.Searches) &&
		!(len(curConf.Search) == 0 && len(m.Searches) == 0) {
		return errors.Errorf(errors.KindVerification,
			"failed to apply DNS config: desire searches '%s', got '%s'",
			strings.Join(m.Searches, " "), strings.Join(curConf.Search, " "))
	}

	desOpts := append([]string(nil), m.Options...)
	curOpts := append([]string(nil), curConf.Options...)
	sort.Strings(desOpts)
	sort.Strings(curOpts)
	if !stringSlicesEqual(desOpts, curOpts) {
		return errors.Errorf(errors.KindVerification,
			"failed to apply DNS config: desire options '%s', got '%s'",
			strings.Join(desOpts, " "), strings.Join(curOpts, " "))
	}

	return nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
