// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/netstate/internal/logging"
	"grimm.is/netstate/internal/state"
)

type fakeStates struct {
	running state.NetworkState
	saved   state.NetworkState
}

func (f *fakeStates) QueryRunning(ctx context.Context) (state.NetworkState, error) {
	return f.running, nil
}

func (f *fakeStates) QuerySaved(ctx context.Context) (state.NetworkState, error) {
	return f.saved, nil
}

type recordingApplier struct {
	applied []*state.MergedNetworkState
}

func (r *recordingApplier) Apply(ctx context.Context, merged *state.MergedNetworkState) error {
	r.applied = append(r.applied, merged)
	return nil
}

func testEvaluator(t *testing.T, states *fakeStates) (*Evaluator, *recordingApplier) {
	t.Helper()
	applier := &recordingApplier{}
	ev := NewEvaluator(states, states, applier, logging.New(logging.DefaultConfig()))
	t.Cleanup(ev.Close)
	return ev, applier
}

func ifaceYAML(t *testing.T, doc string) state.NetworkState {
	t.Helper()
	ns, err := state.ParseNetworkState([]byte(doc))
	require.NoError(t, err)
	return ns
}

func strPtr(s string) *string { return &s }

func TestSSIDEqualWildcard(t *testing.T) {
	assert.True(t, ssidEqual("*", "home"))
	assert.False(t, ssidEqual("*", ""))
	assert.True(t, ssidEqual("home", "home"))
	assert.False(t, ssidEqual("home", "office"))
}

func TestWifiProfileMaterializedOntoPhy(t *testing.T) {
	states := &fakeStates{
		saved: ifaceYAML(t, `
interfaces:
- name: home
  type: wifi-cfg
  state: up
  wifi:
    ssid: home
`),
		running: ifaceYAML(t, `
interfaces:
- name: wlan0
  type: wifi-phy
  state: up
  wifi:
    ssid: home
`),
	}
	eval, applier := testEvaluator(t, states)

	// No SSID on the event; it must be backfilled from the running
	// association before profile matching.
	ev := NewLinkEvent("wlan0", 3, state.InterfaceTypeWifiPhy, true, nil)
	require.NoError(t, eval.HandleLinkEvent(context.Background(), ev))

	require.Len(t, applier.applied, 1)
	rec := applier.applied[0].Ifaces.Get("wlan0", state.InterfaceTypeWifiPhy)
	require.NotNil(t, rec)
	require.NotNil(t, rec.Desired)
	assert.Equal(t, state.InterfaceTypeWifiPhy, rec.Desired.Type)
	assert.True(t, rec.Desired.IsUp())
}

func TestPhyDownPurgesAddresses(t *testing.T) {
	states := &fakeStates{
		saved: state.NewNetworkState(),
		running: ifaceYAML(t, `
interfaces:
- name: wlan0
  type: wifi-phy
  state: up
  ipv4:
    enabled: true
    dhcp: true
`),
	}
	eval, applier := testEvaluator(t, states)

	ev := NewLinkEvent("wlan0", 3, state.InterfaceTypeWifiPhy, false, nil)
	require.NoError(t, eval.HandleLinkEvent(context.Background(), ev))

	require.Len(t, applier.applied, 1)
	rec := applier.applied[0].Ifaces.Get("wlan0", state.InterfaceTypeWifiPhy)
	require.NotNil(t, rec)
	require.NotNil(t, rec.Desired)
	assert.False(t, rec.Desired.IPv4.IsEnabled())
	assert.False(t, rec.Desired.IPv6.IsEnabled())
	assert.Equal(t, state.InterfaceStateUp, rec.Desired.State)
}

func TestCarrierDownTriggerKeepsInterfaceUp(t *testing.T) {
	states := &fakeStates{
		saved: ifaceYAML(t, `
interfaces:
- name: eth0
  type: ethernet
  state: up
  down-trigger:
    carrier: {}
  ipv4:
    enabled: true
    dhcp: true
`),
		running: ifaceYAML(t, `
interfaces:
- name: eth0
  type: ethernet
  state: up
`),
	}
	eval, applier := testEvaluator(t, states)

	ev := NewLinkEvent("eth0", 2, state.InterfaceTypeEthernet, false, nil)
	require.NoError(t, eval.HandleLinkEvent(context.Background(), ev))

	require.Len(t, applier.applied, 1)
	rec := applier.applied[0].Ifaces.Get("eth0", state.InterfaceTypeEthernet)
	require.NotNil(t, rec)
	require.NotNil(t, rec.Desired)
	assert.Equal(t, state.InterfaceStateUp, rec.Desired.State)
	assert.False(t, rec.Desired.IPv4.IsEnabled())
	assert.Nil(t, rec.Desired.DownTrigger)
}

func TestVirtualDownTriggerRemovesInterface(t *testing.T) {
	states := &fakeStates{
		saved: ifaceYAML(t, `
interfaces:
- name: br0
  type: linux-bridge
  state: up
  down-trigger:
    wifi-down: home
`),
		running: ifaceYAML(t, `
interfaces:
- name: br0
  type: linux-bridge
  state: up
`),
	}
	eval, applier := testEvaluator(t, states)

	// The last PHY with the SSID is gone, so wifi-down fires.
	ev := NewLinkEvent("wlan0", 3, state.InterfaceTypeWifiPhy, false, strPtr("home"))
	require.NoError(t, eval.HandleLinkEvent(context.Background(), ev))

	require.Len(t, applier.applied, 1)
	rec := applier.applied[0].Ifaces.Get("br0", state.InterfaceTypeLinuxBridge)
	require.NotNil(t, rec)
	require.NotNil(t, rec.Desired)
	assert.Equal(t, state.InterfaceStateAbsent, rec.Desired.State)
}

func TestWifiDownWaitsForLastPhy(t *testing.T) {
	states := &fakeStates{
		saved: ifaceYAML(t, `
interfaces:
- name: br0
  type: linux-bridge
  state: up
  down-trigger:
    wifi-down: home
`),
		running: ifaceYAML(t, `
interfaces:
- name: wlan1
  type: wifi-phy
  state: up
  wifi:
    ssid: home
`),
	}
	eval, applier := testEvaluator(t, states)

	// Another PHY is still associated with the SSID: the PHY purge
	// still lands, but the bridge's wifi-down trigger holds.
	ev := NewLinkEvent("wlan0", 3, state.InterfaceTypeWifiPhy, false, strPtr("home"))
	require.NoError(t, eval.HandleLinkEvent(context.Background(), ev))
	require.Len(t, applier.applied, 1)
	assert.Nil(t, applier.applied[0].Ifaces.Get("br0", state.InterfaceTypeLinuxBridge))

	purge := applier.applied[0].Ifaces.Get("wlan0", state.InterfaceTypeWifiPhy)
	require.NotNil(t, purge)
	require.NotNil(t, purge.Desired)
	assert.False(t, *purge.Desired.IPv4.Enabled)
}

func TestUpTriggerFiresOnce(t *testing.T) {
	states := &fakeStates{
		saved: ifaceYAML(t, `
interfaces:
- name: eth0
  type: ethernet
  state: up
  up-trigger:
    carrier: {}
`),
		running: state.NewNetworkState(),
	}
	eval, applier := testEvaluator(t, states)

	ev := NewLinkEvent("eth0", 2, state.InterfaceTypeEthernet, true, nil)
	require.NoError(t, eval.HandleLinkEvent(context.Background(), ev))
	require.Len(t, applier.applied, 1)

	rec := applier.applied[0].Ifaces.Get("eth0", state.InterfaceTypeEthernet)
	require.NotNil(t, rec)
	require.NotNil(t, rec.Desired)
	assert.Nil(t, rec.Desired.UpTrigger)

	// Saved state still carries the trigger (the apply that clears it
	// has not landed yet); the gate keeps the second event from firing.
	require.NoError(t, eval.HandleLinkEvent(context.Background(), ev))
	assert.Len(t, applier.applied, 1)

	// Saving fresh desired state re-arms the trigger.
	eval.ResetTriggers("eth0", state.InterfaceTypeEthernet)
	require.NoError(t, eval.HandleLinkEvent(context.Background(), ev))
	assert.Len(t, applier.applied, 2)
}

func TestWifiUpNotMatchesOtherSSID(t *testing.T) {
	states := &fakeStates{
		saved: ifaceYAML(t, `
interfaces:
- name: eth0
  type: ethernet
  state: up
  up-trigger:
    wifi-up-not: home
`),
		running: state.NewNetworkState(),
	}
	eval, applier := testEvaluator(t, states)

	home := NewLinkEvent("wlan0", 3, state.InterfaceTypeWifiPhy, true, strPtr("home"))
	require.NoError(t, eval.HandleLinkEvent(context.Background(), home))
	assert.Empty(t, applier.applied)

	office := NewLinkEvent("wlan0", 3, state.InterfaceTypeWifiPhy, true, strPtr("office"))
	require.NoError(t, eval.HandleLinkEvent(context.Background(), office))
	assert.Len(t, applier.applied, 1)
}

func TestUnparentedProfileRebindsOnDown(t *testing.T) {
	states := &fakeStates{
		saved: ifaceYAML(t, `
interfaces:
- name: home
  type: wifi-cfg
  state: up
  wifi:
    ssid: home
`),
		running: state.NewNetworkState(),
	}
	eval, applier := testEvaluator(t, states)

	ev := NewLinkEvent("wlan0", 3, state.InterfaceTypeWifiPhy, false, nil)
	require.NoError(t, eval.HandleLinkEvent(context.Background(), ev))

	require.Len(t, applier.applied, 1)
	rec := applier.applied[0].Ifaces.Get("home", state.InterfaceTypeWifiCfg)
	require.NotNil(t, rec)
	require.NotNil(t, rec.Desired)
	assert.Equal(t, state.InterfaceStateUp, rec.Desired.State)
	require.NotNil(t, rec.Desired.Wifi)
	require.NotNil(t, rec.Desired.Wifi.BaseIface)
	assert.Equal(t, "wlan0", *rec.Desired.Wifi.BaseIface)
}

func TestTriggerGateSerializesClaims(t *testing.T) {
	gate := NewTriggerGate()
	defer gate.Close()

	wins := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		go func() {
			wins <- gate.TryClaim("eth0", state.InterfaceTypeEthernet, directionUp)
		}()
	}
	won := 0
	for i := 0; i < 8; i++ {
		if <-wins {
			won++
		}
	}
	assert.Equal(t, 1, won)

	gate.Reset("eth0", state.InterfaceTypeEthernet)
	assert.True(t, gate.TryClaim("eth0", state.InterfaceTypeEthernet, directionUp))
}
