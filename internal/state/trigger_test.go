// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/netstate/internal/errors"
)

func TestTriggerWireFormat(t *testing.T) {
	cases := []struct {
		name    string
		trigger Trigger
		wire    string
	}{
		{"never", Trigger{Kind: TriggerNever}, `"never"`},
		{"always", Trigger{Kind: TriggerAlways}, `"always"`},
		{"carrier", Trigger{Kind: TriggerCarrier}, `{"carrier":{}}`},
		{"wifi-up", Trigger{Kind: TriggerWifiUp, SSID: "home"}, `{"wifi-up":"home"}`},
		{"wifi-up wildcard", Trigger{Kind: TriggerWifiUp, SSID: "*"}, `{"wifi-up":"*"}`},
		{"wifi-down", Trigger{Kind: TriggerWifiDown, SSID: "home"}, `{"wifi-down":"home"}`},
		{"wifi-up-not", Trigger{Kind: TriggerWifiUpNot, SSID: "home"}, `{"wifi-up-not":"home"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.trigger)
			require.NoError(t, err)
			assert.JSONEq(t, tc.wire, string(raw))

			var back Trigger
			require.NoError(t, json.Unmarshal([]byte(tc.wire), &back))
			assert.Equal(t, tc.trigger.Kind, back.Kind)
			assert.Equal(t, tc.trigger.SSID, back.SSID)
		})
	}
}

func TestTriggerCarrierParamsRoundTrip(t *testing.T) {
	trig := Trigger{Kind: TriggerCarrier, Carrier: &TriggerCarrierParams{}}
	raw, err := json.Marshal(trig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"carrier":{}}`, string(raw))

	var back Trigger
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, TriggerCarrier, back.Kind)
	assert.NotNil(t, back.Carrier)
}

func TestTriggerRejectsUnknownVariant(t *testing.T) {
	var trig Trigger
	err := json.Unmarshal([]byte(`"sometimes"`), &trig)
	require.Error(t, err)
	assert.Equal(t, errors.KindStructural, errors.GetKind(err))

	err = json.Unmarshal([]byte(`{"on-fire":"home"}`), &trig)
	require.Error(t, err)
	assert.Equal(t, errors.KindStructural, errors.GetKind(err))
}

func TestTriggerWifiUpNotRejectsWildcard(t *testing.T) {
	var trig Trigger
	err := json.Unmarshal([]byte(`{"wifi-up-not":"*"}`), &trig)
	require.Error(t, err)

	bad := &Trigger{Kind: TriggerWifiUpNot, SSID: WildcardSSID}
	assert.Error(t, bad.Validate())
}

func TestTriggerPredicates(t *testing.T) {
	var nilTrigger *Trigger
	assert.False(t, nilTrigger.IsWifi())
	assert.False(t, nilTrigger.IsCarrier())
	assert.NoError(t, nilTrigger.Validate())

	assert.True(t, (&Trigger{Kind: TriggerCarrier}).IsCarrier())
	assert.True(t, (&Trigger{Kind: TriggerWifiDown, SSID: "x"}).IsWifi())
	assert.False(t, (&Trigger{Kind: TriggerCarrier}).IsWifi())
}
