// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package monitor maintains the set of interfaces watched for link and
// Wi-Fi changes and converts kernel notifications into link events.
package monitor

import (
	"grimm.is/netstate/internal/event"
	"grimm.is/netstate/internal/logging"
	"grimm.is/netstate/internal/state"
)

// Watcher is the platform notification source. Watch-set mutations are
// incremental; the manager never asks a watcher to rebuild from
// scratch.
type Watcher interface {
	AddIface(name string) error
	DelIface(name string) error
	EnableWifiScan() error
	DisableWifiScan() error
	Events() <-chan event.LinkEvent
	Close() error
}

type cmdKind uint8

const (
	cmdSetup cmdKind = iota
	cmdPause
	cmdResume
)

type managerCmd struct {
	kind   cmdKind
	merged *state.MergedNetworkState
	saved  state.NetworkState
	reply  chan error
}

// WatchGauge receives the watched-interface count after every setup.
// Satisfied by prometheus gauges; nil disables reporting.
type WatchGauge interface {
	Set(float64)
}

// Manager owns the authoritative watch list. All state lives in the
// run goroutine; callers talk to it through commands, so no two
// mutations ever interleave.
type Manager struct {
	watcher Watcher
	gauge   WatchGauge
	logger  *logging.Logger

	cmds   chan managerCmd
	events chan event.LinkEvent
	done   chan struct{}
}

// NewManager starts a manager over the given watcher.
func NewManager(watcher Watcher, gauge WatchGauge, logger *logging.Logger) *Manager {
	m := &Manager{
		watcher: watcher,
		gauge:   gauge,
		logger:  logger,
		cmds:    make(chan managerCmd),
		events:  make(chan event.LinkEvent),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

// Events is the stream the daemon consumes. Events arriving while the
// manager is paused are dropped.
func (m *Manager) Events() <-chan event.LinkEvent {
	return m.events
}

// Setup reconciles the watch set against a freshly applied state: the
// merged view decides carrier watches, the saved state decides whether
// Wi-Fi scanning is needed at all.
func (m *Manager) Setup(merged *state.MergedNetworkState, saved state.NetworkState) error {
	return m.send(managerCmd{kind: cmdSetup, merged: merged, saved: saved})
}

// Pause drops incoming events until Resume. Used around applies so the
// daemon does not react to changes it caused itself.
func (m *Manager) Pause() error {
	return m.send(managerCmd{kind: cmdPause})
}

// Resume re-enables event delivery.
func (m *Manager) Resume() error {
	return m.send(managerCmd{kind: cmdResume})
}

// Close stops the manager and the underlying watcher.
func (m *Manager) Close() error {
	close(m.done)
	return m.watcher.Close()
}

func (m *Manager) send(cmd managerCmd) error {
	cmd.reply = make(chan error, 1)
	select {
	case m.cmds <- cmd:
		return <-cmd.reply
	case <-m.done:
		return nil
	}
}

func (m *Manager) run() {
	watched := make(map[string]bool)
	wifiScan := false
	paused := false

	for {
		select {
		case <-m.done:
			return
		case ev := <-m.watcher.Events():
			if paused {
				m.logger.Debug("paused, dropping link event", "iface", ev.IfaceName)
				continue
			}
			select {
			case m.events <- ev:
			case <-m.done:
				return
			}
		case cmd := <-m.cmds:
			switch cmd.kind {
			case cmdPause:
				paused = true
				cmd.reply <- nil
			case cmdResume:
				paused = false
				cmd.reply <- nil
			case cmdSetup:
				cmd.reply <- m.setup(cmd.merged, cmd.saved, watched, &wifiScan)
			}
		}
	}
}

// setup computes and applies the incremental watch-set delta.
func (m *Manager) setup(merged *state.MergedNetworkState, saved state.NetworkState, watched map[string]bool, wifiScan *bool) error {
	defer func() {
		if m.gauge != nil {
			m.gauge.Set(float64(len(watched)))
		}
	}()

	if need := wifiScanNeeded(saved); need != *wifiScan {
		var err error
		if need {
			m.logger.Info("enabling wifi scan")
			err = m.watcher.EnableWifiScan()
		} else {
			m.logger.Info("disabling wifi scan")
			err = m.watcher.DisableWifiScan()
		}
		if err != nil {
			return err
		}
		*wifiScan = need
	}

	if merged == nil {
		return nil
	}
	for _, rec := range merged.Ifaces.Iter() {
		iface := rec.ForApply
		if iface == nil {
			continue
		}
		name := rec.Name()
		switch {
		case iface.IsAbsent():
			if !watched[name] {
				continue
			}
			m.logger.Debug("unwatching interface", "iface", name)
			if err := m.watcher.DelIface(name); err != nil {
				return err
			}
			delete(watched, name)
		case iface.UpTrigger.IsCarrier() || iface.DownTrigger.IsCarrier():
			if watched[name] {
				continue
			}
			m.logger.Debug("watching interface", "iface", name)
			if err := m.watcher.AddIface(name); err != nil {
				return err
			}
			watched[name] = true
		}
	}
	return nil
}

// wifiScanNeeded reports whether any non-absent saved interface is a
// Wi-Fi profile with a concrete SSID or carries a Wi-Fi trigger.
func wifiScanNeeded(saved state.NetworkState) bool {
	for _, iface := range saved.Ifaces.Iter() {
		if iface.IsAbsent() {
			continue
		}
		if iface.Type == state.InterfaceTypeWifiCfg && iface.SSID() != "" {
			return true
		}
		if iface.UpTrigger.IsWifi() || iface.DownTrigger.IsWifi() {
			return true
		}
	}
	return false
}
