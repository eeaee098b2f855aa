// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package plugin defines the backend contract: querying the observed
// network state and applying a merged one. Backends live in
// subpackages; the daemon selects them by name.
package plugin

import (
	"context"

	"grimm.is/netstate/internal/state"
)

// ApplyOptions tune one apply round.
type ApplyOptions struct {
	// NoVerify skips the post-apply verification snapshot.
	NoVerify bool
}

// Querier produces a snapshot of the observed network state.
type Querier interface {
	Query(ctx context.Context) (state.NetworkState, error)
}

// Applier programs a merged state into the host. Implementations must
// surface every failure; partial success is reported as an error
// naming what failed.
type Applier interface {
	Apply(ctx context.Context, merged *state.MergedNetworkState, opts ApplyOptions) error
}

// Backend is a full state plugin.
type Backend interface {
	Querier
	Applier
	// Name identifies the backend in logs and errors.
	Name() string
}

// SSIDScanner resolves the currently associated SSID of a wireless
// interface. Injectable so tests never shell out.
type SSIDScanner interface {
	CurrentSSID(ctx context.Context, iface string) (string, error)
}
