// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package event

import (
	"context"

	"grimm.is/netstate/internal/logging"
	"grimm.is/netstate/internal/state"
)

// Evaluator turns link events into desired-state deltas and applies
// them. One evaluator serves the whole daemon; trigger one-shot
// semantics are enforced through the gate.
type Evaluator struct {
	running RunningQuerier
	saved   SavedQuerier
	applier Applier
	gate    *TriggerGate
	logger  *logging.Logger
}

// NewEvaluator wires an evaluator to its collaborators. The gate is
// owned by the evaluator and stopped with Close.
func NewEvaluator(running RunningQuerier, saved SavedQuerier, applier Applier, logger *logging.Logger) *Evaluator {
	return &Evaluator{
		running: running,
		saved:   saved,
		applier: applier,
		gate:    NewTriggerGate(),
		logger:  logger,
	}
}

// Close stops the trigger gate.
func (e *Evaluator) Close() {
	e.gate.Close()
}

// ResetTriggers re-arms the one-shot gate for an interface identity.
// Called when a new desired state carrying triggers is saved.
func (e *Evaluator) ResetTriggers(name string, ifaceType state.InterfaceType) {
	e.gate.Reset(name, ifaceType)
}

// HandleLinkEvent evaluates one event against saved desired state and
// applies the resulting delta, if any. Verification is skipped: the
// delta describes a reaction to the world, not a contract with it.
func (e *Evaluator) HandleLinkEvent(ctx context.Context, ev LinkEvent) error {
	e.logger.Debug("handling link event",
		"id", ev.ID.String(),
		"iface", ev.IfaceName,
		"type", string(ev.IfaceType),
		"up", ev.IsUp,
		"ssid", ev.ssid())

	saved, err := e.saved.QuerySaved(ctx)
	if err != nil {
		return err
	}
	current, err := e.running.QueryRunning(ctx)
	if err != nil {
		return err
	}

	// A PHY up event may arrive before the association is known; fill
	// the SSID in from the live snapshot so SSID triggers can match.
	if ev.SSID == nil && ev.IfaceType == state.InterfaceTypeWifiPhy {
		if cur := current.Ifaces.Get(ev.IfaceName, ev.IfaceType); cur != nil {
			if ssid := cur.SSID(); ssid != "" {
				ev.SSID = &ssid
			}
		}
	}

	desired := state.NewNetworkState()

	// A PHY that lost carrier keeps stale addresses around; purge them
	// even when no saved interface matches the event.
	if !ev.IsUp && ev.IfaceType == state.InterfaceTypeWifiPhy {
		purge := &state.Interface{
			BaseInterface: state.BaseInterface{
				Name:  ev.IfaceName,
				Type:  state.InterfaceTypeWifiPhy,
				State: state.InterfaceStateUp,
				IPv4:  state.NewDisabledIP(),
				IPv6:  state.NewDisabledIP(),
			},
		}
		desired.Ifaces.Push(purge)
	}

	for _, iface := range saved.Ifaces.Iter() {
		if !e.isEventMatch(ev, iface, &current.Ifaces) {
			continue
		}
		if !e.claimTrigger(ev, iface) {
			e.logger.Debug("trigger already consumed, skipping",
				"iface", iface.Name, "type", string(iface.Type))
			continue
		}
		desired.Ifaces.Push(e.deltaFor(ev, iface))
	}

	if desired.IsEmpty() {
		e.logger.Debug("link event produced no state change", "id", ev.ID.String())
		return nil
	}

	merged, err := state.NewMergedNetworkState(desired, current,
		state.MergeOptions{NoVerify: true})
	if err != nil {
		return err
	}
	return e.applier.Apply(ctx, merged)
}

// claimTrigger enforces one-shot semantics for trigger-based matches.
// Matches that do not consume a trigger (saved Wi-Fi profiles and PHYs)
// always pass.
func (e *Evaluator) claimTrigger(ev LinkEvent, iface *state.Interface) bool {
	if ev.IsUp {
		if iface.UpTrigger == nil {
			return true
		}
		return e.gate.TryClaim(iface.Name, iface.Type, directionUp)
	}
	if iface.DownTrigger == nil {
		return true
	}
	return e.gate.TryClaim(iface.Name, iface.Type, directionDown)
}

// deltaFor builds the desired-state delta for one matched interface.
func (e *Evaluator) deltaFor(ev LinkEvent, iface *state.Interface) *state.Interface {
	delta := iface.Clone()
	delta.State = state.InterfaceStateUp

	if ev.IsUp {
		if ev.IfaceType == state.InterfaceTypeWifiPhy &&
			iface.Type == state.InterfaceTypeWifiCfg {
			delta = wifiCfgToWifiPhy(ev.IfaceName, iface)
		}
		delta.UpTrigger = nil
		return delta
	}

	// Down event. Carrier down-triggered interfaces stay up so they
	// come back without reconfiguration when carrier returns; Wi-Fi
	// profiles stay up so the supplicant can reassociate.
	if !iface.DownTrigger.IsCarrier() && iface.Type != state.InterfaceTypeWifiCfg {
		if iface.IsVirtual() {
			delta.State = state.InterfaceStateAbsent
		} else {
			delta.State = state.InterfaceStateDown
		}
	}
	delta.DownTrigger = nil
	delta.IPv4 = state.NewDisabledIP()
	delta.IPv6 = state.NewDisabledIP()

	// An unparented Wi-Fi profile rebinds to the PHY that carried it
	// so a later up event finds it attached.
	if iface.Type == state.InterfaceTypeWifiCfg && iface.Parent() == nil {
		if delta.Wifi == nil {
			delta.Wifi = &state.WifiSpec{}
		}
		name := ev.IfaceName
		delta.Wifi.BaseIface = &name
	}
	return delta
}

// wifiCfgToWifiPhy materializes a matched Wi-Fi profile onto the PHY
// that reported the event. Only base settings carry over; the profile
// record itself stays untouched in saved state.
func wifiCfgToWifiPhy(phyName string, cfg *state.Interface) *state.Interface {
	phy := cfg.Clone()
	phy.Wifi = nil
	phy.Name = phyName
	phy.Type = state.InterfaceTypeWifiPhy
	return phy
}

// isEventMatch reports whether a saved interface should react to the
// event. Saved Wi-Fi profiles and PHYs match by association rules,
// everything else by its up or down trigger.
func (e *Evaluator) isEventMatch(ev LinkEvent, iface *state.Interface, current *state.Interfaces) bool {
	if ev.IfaceType == state.InterfaceTypeWifiPhy &&
		iface.Type == state.InterfaceTypeWifiCfg {
		if ev.IsUp {
			return ev.SSID != nil && iface.SSID() == *ev.SSID
		}
		if parent := iface.Parent(); parent != nil {
			return *parent == ev.IfaceName
		}
		// Unparented profiles react to any PHY losing carrier.
		return true
	}

	if iface.Type == ev.IfaceType && iface.Name == ev.IfaceName &&
		iface.Type == state.InterfaceTypeWifiPhy {
		return true
	}

	if ev.IsUp {
		return e.isTriggerMatch(ev, iface, iface.UpTrigger, current)
	}
	return e.isTriggerMatch(ev, iface, iface.DownTrigger, current)
}

// isTriggerMatch evaluates one trigger against the event.
func (e *Evaluator) isTriggerMatch(ev LinkEvent, iface *state.Interface, trigger *state.Trigger, current *state.Interfaces) bool {
	if trigger == nil {
		return false
	}
	switch trigger.Kind {
	case state.TriggerNever, state.TriggerAlways:
		return false
	case state.TriggerCarrier:
		return iface.Name == ev.IfaceName && iface.Type == ev.IfaceType
	case state.TriggerWifiUp:
		return ev.IsUp && ev.SSID != nil && ssidEqual(trigger.SSID, *ev.SSID)
	case state.TriggerWifiUpNot:
		return ev.IsUp && ev.SSID != nil && !ssidEqual(trigger.SSID, *ev.SSID)
	case state.TriggerWifiDown:
		// Fires only once the last PHY carrying the SSID is gone.
		if ev.IsUp {
			return false
		}
		for _, cur := range current.Kernel() {
			if cur.Type != state.InterfaceTypeWifiPhy {
				continue
			}
			if ssidEqual(trigger.SSID, cur.SSID()) {
				return false
			}
		}
		return true
	default:
		e.logger.Error("BUG: unknown trigger kind",
			"kind", string(trigger.Kind), "iface", iface.Name)
		return false
	}
}

// ssidEqual honors the wildcard SSID, which matches any association.
func ssidEqual(want, got string) bool {
	if want == state.WildcardSSID {
		return got != ""
	}
	return want == got
}
