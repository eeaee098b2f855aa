// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"encoding/json"
	"strings"

	"grimm.is/netstate/internal/errors"
)

// TriggerKind discriminates Trigger variants.
type TriggerKind string

const (
	// TriggerNever takes no automatic action.
	TriggerNever TriggerKind = "never"
	// TriggerAlways ignores carrier and SSID state entirely. This is
	// the behavior of an interface with no trigger at all.
	TriggerAlways TriggerKind = "always"
	// TriggerCarrier ties the interface's effective state to physical
	// link carrier. On carrier loss the interface is not brought down;
	// only its IP stack is disabled, so carrier stays observable.
	TriggerCarrier TriggerKind = "carrier"
	// TriggerWifiUp fires the up action when the named SSID associates.
	// SSID "*" means any SSID.
	TriggerWifiUp TriggerKind = "wifi-up"
	// TriggerWifiDown fires the down action when no currently visible
	// Wi-Fi PHY has the named SSID associated.
	TriggerWifiDown TriggerKind = "wifi-down"
	// TriggerWifiUpNot fires the up action when an SSID other than the
	// named one associates. "*" is invalid here; use TriggerNever.
	TriggerWifiUpNot TriggerKind = "wifi-up-not"
)

// WildcardSSID matches any SSID in TriggerWifiUp/TriggerWifiDown.
const WildcardSSID = "*"

// Trigger describes the condition under which a saved interface
// transitions up or down in response to link events. Wire format:
// "never" and "always" are bare strings, every other variant is a
// single-key object, e.g. {"wifi-up": "home"} or {"carrier": {}}.
type Trigger struct {
	Kind TriggerKind
	// SSID is set for the wifi variants.
	SSID string
	// Carrier holds variant parameters for TriggerCarrier.
	Carrier *TriggerCarrierParams
}

// TriggerCarrierParams holds the carrier trigger's parameters.
// TODO: add down_timeout_sec so a flapping carrier does not cause an
// apply storm; nothing reads parameters from this struct yet.
type TriggerCarrierParams struct{}

// IsWifi reports whether the trigger reacts to Wi-Fi SSID events.
func (t *Trigger) IsWifi() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TriggerWifiUp, TriggerWifiDown, TriggerWifiUpNot:
		return true
	}
	return false
}

// IsCarrier reports whether the trigger reacts to carrier changes.
func (t *Trigger) IsCarrier() bool {
	return t != nil && t.Kind == TriggerCarrier
}

// Validate rejects variants that cannot ever match.
func (t *Trigger) Validate() error {
	if t == nil {
		return nil
	}
	if t.Kind == TriggerWifiUpNot && t.SSID == WildcardSSID {
		return errors.New(errors.KindValidation,
			"wifi-up-not does not accept the wildcard SSID '*'; use 'never' instead")
	}
	return nil
}

const triggerErrPrefix = "expecting 'never', 'always', 'carrier', 'wifi-up', 'wifi-up-not', 'wifi-down' for interface trigger"

// MarshalJSON implements json.Marshaler.
func (t Trigger) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case TriggerNever, TriggerAlways:
		return json.Marshal(string(t.Kind))
	case TriggerCarrier:
		carrier := t.Carrier
		if carrier == nil {
			carrier = &TriggerCarrierParams{}
		}
		return json.Marshal(map[string]*TriggerCarrierParams{string(TriggerCarrier): carrier})
	case TriggerWifiUp, TriggerWifiDown, TriggerWifiUpNot:
		return json.Marshal(map[string]string{string(t.Kind): t.SSID})
	}
	return nil, errors.Errorf(errors.KindStructural,
		"cannot serialize unknown interface trigger %q", t.Kind)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		switch asString {
		case string(TriggerNever):
			*t = Trigger{Kind: TriggerNever}
			return nil
		case string(TriggerAlways):
			*t = Trigger{Kind: TriggerAlways}
			return nil
		}
		return errors.Errorf(errors.KindStructural, "%s, but got %q", triggerErrPrefix, asString)
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err != nil {
		return errors.Errorf(errors.KindStructural, "%s, but got neither string nor map", triggerErrPrefix)
	}

	for _, kind := range []TriggerKind{TriggerWifiUp, TriggerWifiUpNot, TriggerWifiDown} {
		raw, found := asObject[string(kind)]
		if !found {
			continue
		}
		var ssid string
		if err := json.Unmarshal(raw, &ssid); err != nil {
			return errors.Wrapf(err, errors.KindStructural, "invalid SSID for %s trigger", kind)
		}
		*t = Trigger{Kind: kind, SSID: ssid}
		return t.Validate()
	}

	if raw, found := asObject[string(TriggerCarrier)]; found {
		carrier := &TriggerCarrierParams{}
		if err := json.Unmarshal(raw, carrier); err != nil {
			return errors.Wrap(err, errors.KindStructural, "invalid carrier trigger parameters")
		}
		*t = Trigger{Kind: TriggerCarrier, Carrier: carrier}
		return nil
	}

	keys := make([]string, 0, len(asObject))
	for k := range asObject {
		keys = append(keys, k)
	}
	return errors.Errorf(errors.KindStructural, "%s, but got %s", triggerErrPrefix, strings.Join(keys, " "))
}
