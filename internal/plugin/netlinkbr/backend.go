// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netlinkbr

import (
	"grimm.is/netstate/internal/logging"
	"grimm.is/netstate/internal/plugin"
	"grimm.is/netstate/internal/state"
)

// Backend implements plugin.Backend over rtnetlink.
type Backend struct {
	nl      Netlinker
	perm    PermAddrReader
	scanner plugin.SSIDScanner
	logger  *logging.Logger
}

// New returns a backend using the real kernel interfaces.
func New(logger *logging.Logger) *Backend {
	return NewWithDeps(RealNetlinker{}, ethtoolPermAddr{}, plugin.NewIWScanner(), logger)
}

// NewWithDeps returns a backend with injected dependencies.
func NewWithDeps(nl Netlinker, perm PermAddrReader, scanner plugin.SSIDScanner, logger *logging.Logger) *Backend {
	return &Backend{nl: nl, perm: perm, scanner: scanner, logger: logger}
}

// Name implements plugin.Backend.
func (b *Backend) Name() string { return "netlink" }

// Sanitize returns the comparison policy for this backend: the default
// policy plus the fields rtnetlink cannot observe. DHCP and autoconf
// are lease-manager state; the kernel only shows the resulting
// addresses, so verification must not demand them back.
func Sanitize() state.SanitizePolicy {
	policy := state.DefaultSanitize()
	base := policy.DesiredForVerify
	policy.DesiredForVerify = func(iface *state.Interface) {
		if base != nil {
			base(iface)
		}
		stripLeaseState(iface.IPv4)
		stripLeaseState(iface.IPv6)
	}
	return policy
}

func stripLeaseState(cfg *state.IPConfig) {
	if cfg == nil {
		return
	}
	cfg.DHCP = nil
	cfg.Autoconf = nil
	if cfg.IsEnabled() && len(cfg.Address) == 0 {
		// Dynamic addressing: the concrete addresses are not ours to
		// predict either.
		cfg.Address = nil
	}
}
