// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genDiff(t *testing.T, desired, current NetworkState) Interfaces {
	t.Helper()
	merged := mergeStates(t, desired, current)
	diff, err := merged.Ifaces.GenDiff()
	require.NoError(t, err)
	return diff
}

func TestGenDiffEmitsOnlyChangedFields(t *testing.T) {
	desired := parseState(t, `
interfaces:
- name: eth0
  type: ethernet
  state: up
  mtu: 9000
  ipv4:
    enabled: true
    dhcp: true
`)
	current := parseState(t, `
interfaces:
- name: eth0
  type: ethernet
  state: up
  mtu: 1500
  ipv4:
    enabled: true
    dhcp: true
`)
	diff := genDiff(t, desired, current)
	require.Equal(t, 1, diff.Len())

	eth0 := diff.Get("eth0", InterfaceTypeEthernet)
	require.NotNil(t, eth0)
	assert.Equal(t, 9000, eth0.MTU)
	// The IP config matched, so the delta omits it.
	assert.Nil(t, eth0.IPv4)
	require.NotNil(t, eth0.DiffCtx)
	assert.NotEmpty(t, eth0.DiffCtx.Current)
}

func TestGenDiffPassesNewInterfaceVerbatim(t *testing.T) {
	desired := parseState(t, `
interfaces:
- name: br0
  type: linux-bridge
  state: up
  bridge:
    port:
    - eth0
`)
	diff := genDiff(t, desired, NewNetworkState())
	require.Equal(t, 1, diff.Len())

	br0 := diff.Get("br0", InterfaceTypeLinuxBridge)
	require.NotNil(t, br0)
	require.NotNil(t, br0.Bridge)
	assert.Equal(t, []string{"eth0"}, br0.Ports())
	assert.Nil(t, br0.DiffCtx)
}

func TestGenDiffSkipsStructurallyIdentical(t *testing.T) {
	doc := `
interfaces:
- name: eth0
  type: ethernet
  state: up
  mtu: 1500
`
	diff := genDiff(t, parseState(t, doc), parseState(t, doc))
	assert.Equal(t, 0, diff.Len())
}

func TestGenDiffIsIdempotent(t *testing.T) {
	desired := parseState(t, `
interfaces:
- name: eth0
  type: ethernet
  state: up
  mtu: 9000
`)
	current := parseState(t, `
interfaces:
- name: eth0
  type: ethernet
  state: up
  mtu: 1500
  mac-address: "d4:ee:07:25:42:5a"
`)
	first := genDiff(t, desired, current)
	require.Equal(t, 1, first.Len())

	// Pretend the backend applied the delta faithfully.
	applied := current.Ifaces.Clone()
	delta := first.Get("eth0", InterfaceTypeEthernet).Clone()
	delta.DiffCtx = nil
	overlay := NewInterfaces()
	overlay.Push(delta)
	require.NoError(t, applied.Update(&overlay))

	second := genDiff(t, desired, NetworkState{Ifaces: applied})
	assert.Equal(t, 0, second.Len())
}

func TestGenDiffKeepsDesiredStateInSkeleton(t *testing.T) {
	desired := parseState(t, `
interfaces:
- name: br0
  type: linux-bridge
  state: absent
`)
	current := parseState(t, `
interfaces:
- name: br0
  type: linux-bridge
  state: up
  mtu: 1500
`)
	diff := genDiff(t, desired, current)
	require.Equal(t, 1, diff.Len())

	br0 := diff.Get("br0", InterfaceTypeLinuxBridge)
	require.NotNil(t, br0)
	assert.Equal(t, InterfaceStateAbsent, br0.State)
}
