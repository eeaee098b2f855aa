// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package event evaluates link and Wi-Fi events against the saved
// desired state and produces the minimal desired-state delta to merge
// and apply.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"grimm.is/netstate/internal/state"
)

// LinkEvent is one link or Wi-Fi association change reported by the
// monitor. Ephemeral: consumed synchronously, never persisted.
type LinkEvent struct {
	ID         uuid.UUID
	IfaceName  string
	IfaceIndex int
	IfaceType  state.InterfaceType
	IsUp       bool
	Timestamp  time.Time
	// SSID is set for Wi-Fi PHY events. When absent on a PHY event the
	// evaluator backfills it from the observed association.
	SSID *string
}

// NewLinkEvent stamps a fresh event.
func NewLinkEvent(name string, index int, ifaceType state.InterfaceType, isUp bool, ssid *string) LinkEvent {
	return LinkEvent{
		ID:         uuid.New(),
		IfaceName:  name,
		IfaceIndex: index,
		IfaceType:  ifaceType,
		IsUp:       isUp,
		Timestamp:  time.Now(),
		SSID:       ssid,
	}
}

func (e LinkEvent) ssid() string {
	if e.SSID == nil {
		return ""
	}
	return *e.SSID
}

// RunningQuerier returns a live snapshot of the host network state.
type RunningQuerier interface {
	QueryRunning(ctx context.Context) (state.NetworkState, error)
}

// SavedQuerier returns the previously saved desired state.
type SavedQuerier interface {
	QuerySaved(ctx context.Context) (state.NetworkState, error)
}

// Applier hands a merged state to the backend plugins. It must report
// success or failure, never partial success silently.
type Applier interface {
	Apply(ctx context.Context, merged *state.MergedNetworkState) error
}
