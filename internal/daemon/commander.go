// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package daemon wires the state engine to a backend, the saved-state
// store and the link monitor, and runs the event loop.
package daemon

import (
	"context"
	"time"

	"grimm.is/netstate/internal/config"
	"grimm.is/netstate/internal/errors"
	"grimm.is/netstate/internal/event"
	"grimm.is/netstate/internal/logging"
	"grimm.is/netstate/internal/metrics"
	"grimm.is/netstate/internal/monitor"
	"grimm.is/netstate/internal/plugin"
	"grimm.is/netstate/internal/state"
	"grimm.is/netstate/internal/store"
)

// Commander owns the apply pipeline: merge, program the backend,
// verify, persist, refresh the monitor.
type Commander struct {
	cfg       *config.Config
	store     *store.Store
	backend   plugin.Backend
	monitor   *monitor.Manager
	metrics   *metrics.Metrics
	logger    *logging.Logger
	sanitizer state.SanitizePolicy

	eval *event.Evaluator
}

// New wires a commander. The sanitizer is the backend's comparison
// policy (what it cannot observe or program is not demanded back).
func New(cfg *config.Config, st *store.Store, backend plugin.Backend, mon *monitor.Manager, m *metrics.Metrics, sanitizer state.SanitizePolicy, logger *logging.Logger) *Commander {
	c := &Commander{
		cfg:       cfg,
		store:     st,
		backend:   backend,
		monitor:   mon,
		metrics:   m,
		logger:    logger,
		sanitizer: sanitizer,
	}
	c.eval = event.NewEvaluator(backendQuerier{backend}, st, eventApplier{c}, logger)
	return c
}

// Close stops the evaluator. Store and monitor are owned by the caller.
func (c *Commander) Close() {
	c.eval.Close()
}

// backendQuerier adapts plugin.Querier to the evaluator's interface.
type backendQuerier struct{ backend plugin.Querier }

func (q backendQuerier) QueryRunning(ctx context.Context) (state.NetworkState, error) {
	return q.backend.Query(ctx)
}

// eventApplier is the evaluator's apply path: program the delta, then
// persist consumed triggers so they stay one-shot across restarts.
type eventApplier struct{ c *Commander }

func (a eventApplier) Apply(ctx context.Context, merged *state.MergedNetworkState) error {
	if err := a.c.applyMerged(ctx, merged); err != nil {
		return err
	}
	a.c.persistTriggerClears(ctx, merged)
	a.c.refreshMonitor(ctx, merged)
	return nil
}

// Run consumes link events until the context ends. Each event is
// evaluated on its own goroutine; the evaluator's trigger gate
// serializes the per-identity one-shot decisions.
func (c *Commander) Run(ctx context.Context) error {
	c.logger.Info("daemon running", "backend", c.backend.Name())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.monitor.Events():
			direction := "down"
			if ev.IsUp {
				direction = "up"
			}
			c.metrics.LinkEvents.WithLabelValues(direction).Inc()
			go func(ev event.LinkEvent) {
				if err := c.eval.HandleLinkEvent(ctx, ev); err != nil {
					c.logger.Error("link event handling failed",
						"id", ev.ID.String(), "iface", ev.IfaceName, "error", err.Error())
				}
			}(ev)
		}
	}
}

// ApplyState is the operator entry point: reconcile a desired state
// against the live one, program it, verify, persist, and re-arm
// triggers.
func (c *Commander) ApplyState(ctx context.Context, desired state.NetworkState) error {
	if err := c.monitor.Pause(); err != nil {
		return err
	}
	defer func() {
		if err := c.monitor.Resume(); err != nil {
			c.logger.Error("failed to resume monitor", "error", err.Error())
		}
	}()

	current, err := c.backend.Query(ctx)
	if err != nil {
		return err
	}
	merged, err := state.NewMergedNetworkState(desired, current,
		state.MergeOptions{Sanitizer: &c.sanitizer})
	if err != nil {
		return err
	}

	if err := c.applyMerged(ctx, merged); err != nil {
		return err
	}

	if err := c.store.SaveState(ctx, desired); err != nil {
		return err
	}
	for _, iface := range desired.Ifaces.Iter() {
		if iface.UpTrigger != nil || iface.DownTrigger != nil {
			c.eval.ResetTriggers(iface.Name, iface.Type)
		}
	}

	c.refreshMonitor(ctx, merged)
	return nil
}

// applyMerged programs a merged state and, unless disabled, verifies
// it settled. A failed apply is rolled back best effort.
func (c *Commander) applyMerged(ctx context.Context, merged *state.MergedNetworkState) error {
	if !merged.IsChanged() {
		c.logger.Debug("nothing to apply")
		return nil
	}

	started := time.Now()
	opts := plugin.ApplyOptions{NoVerify: merged.Options.NoVerify}
	if err := c.backend.Apply(ctx, merged, opts); err != nil {
		c.metrics.Applies.WithLabelValues("error").Inc()
		c.rollback(ctx, merged)
		return err
	}
	c.metrics.Applies.WithLabelValues("ok").Inc()
	c.metrics.ApplyDuration.Observe(time.Since(started).Seconds())

	if merged.Options.NoVerify {
		return nil
	}
	return c.verify(ctx, merged)
}

// verify re-queries until the observed state satisfies the merged
// expectations or the retry budget runs out.
func (c *Commander) verify(ctx context.Context, merged *state.MergedNetworkState) error {
	retries := c.cfg.Verify.Retries
	interval := time.Duration(c.cfg.Verify.IntervalMS) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		current, err := c.backend.Query(ctx)
		if err != nil {
			return err
		}
		if lastErr = merged.Verify(current); lastErr == nil {
			return nil
		}
		c.logger.Debug("verification attempt failed",
			"attempt", attempt+1, "error", lastErr.Error())
	}
	c.metrics.VerifyFailures.Inc()
	return errors.Wrapf(lastErr, errors.KindVerification,
		"state did not settle after %d verification attempts", retries)
}

// rollback applies the revert deltas of a failed apply, best effort.
func (c *Commander) rollback(ctx context.Context, merged *state.MergedNetworkState) {
	revert := state.NewNetworkState()
	for _, rec := range merged.Ifaces.Iter() {
		iface, err := rec.GenerateRevert()
		if err != nil {
			c.logger.Error("failed to compute revert", "iface", rec.Name(), "error", err.Error())
			return
		}
		if iface != nil {
			iface.RevertCtx = nil
			revert.Ifaces.Push(iface)
		}
	}
	if revert.IsEmpty() {
		return
	}

	c.metrics.Reverts.Inc()
	c.logger.Warn("rolling back failed apply", "ifaces", revert.Ifaces.Len())

	current, err := c.backend.Query(ctx)
	if err != nil {
		c.logger.Error("rollback query failed", "error", err.Error())
		return
	}
	back, err := state.NewMergedNetworkState(revert, current,
		state.MergeOptions{NoVerify: true, Sanitizer: &c.sanitizer})
	if err != nil {
		c.logger.Error("rollback merge failed", "error", err.Error())
		return
	}
	if err := c.backend.Apply(ctx, back, plugin.ApplyOptions{NoVerify: true}); err != nil {
		c.logger.Error("rollback apply failed", "error", err.Error())
	}
}

// persistTriggerClears writes consumed trigger fields (and Wi-Fi
// profile rebinds) back to the saved state. Only identities already
// saved are touched: event deltas never introduce new saved records.
func (c *Commander) persistTriggerClears(ctx context.Context, merged *state.MergedNetworkState) {
	saved, err := c.store.LoadState(ctx)
	if err != nil {
		c.logger.Error("failed to load saved state", "error", err.Error())
		return
	}

	changed := state.NewNetworkState()
	for _, rec := range merged.Ifaces.Iter() {
		if rec.Desired == nil {
			continue
		}
		savedIface := saved.Ifaces.Get(rec.Name(), rec.IfaceType())
		if savedIface == nil {
			continue
		}
		upd := savedIface.Clone()
		upd.UpTrigger = rec.Desired.UpTrigger
		upd.DownTrigger = rec.Desired.DownTrigger
		if rec.Desired.Type == state.InterfaceTypeWifiCfg &&
			rec.Desired.Wifi != nil && rec.Desired.Wifi.BaseIface != nil {
			if upd.Wifi == nil {
				upd.Wifi = &state.WifiSpec{}
			}
			upd.Wifi.BaseIface = rec.Desired.Wifi.BaseIface
		}
		if !state.StructuralEqual(upd, savedIface) {
			changed.Ifaces.Push(upd)
		}
	}
	if changed.IsEmpty() {
		return
	}
	if err := c.store.SaveState(ctx, changed); err != nil {
		c.logger.Error("failed to persist trigger state", "error", err.Error())
	}
}

// refreshMonitor re-synchronizes the watch set after an apply.
func (c *Commander) refreshMonitor(ctx context.Context, merged *state.MergedNetworkState) {
	saved, err := c.store.LoadState(ctx)
	if err != nil {
		c.logger.Error("failed to load saved state", "error", err.Error())
		return
	}
	if err := c.monitor.Setup(merged, saved); err != nil {
		c.logger.Error("failed to refresh monitor", "error", err.Error())
	}
}
