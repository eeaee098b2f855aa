// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	t.Run("identical trees yield no diff", func(t *testing.T) {
		a := map[string]any{"name": "eth0", "mtu": float64(1500)}
		b := map[string]any{"name": "eth0", "mtu": float64(1500)}
		_, changed := Diff(a, b)
		assert.False(t, changed)
	})

	t.Run("scalar change surfaces only the changed key", func(t *testing.T) {
		a := map[string]any{"name": "eth0", "mtu": float64(9000)}
		b := map[string]any{"name": "eth0", "mtu": float64(1500)}
		diff, changed := Diff(a, b)
		require.True(t, changed)
		assert.Equal(t, map[string]any{"mtu": float64(9000)}, diff)
	})

	t.Run("nested maps diff recursively", func(t *testing.T) {
		a := map[string]any{
			"name": "eth0",
			"ipv4": map[string]any{"enabled": true, "dhcp": true},
		}
		b := map[string]any{
			"name": "eth0",
			"ipv4": map[string]any{"enabled": true, "dhcp": false},
		}
		diff, changed := Diff(a, b)
		require.True(t, changed)
		assert.Equal(t, map[string]any{"ipv4": map[string]any{"dhcp": true}}, diff)
	})

	t.Run("arrays are atomic", func(t *testing.T) {
		a := map[string]any{"port": []any{"eth1", "eth2"}}
		b := map[string]any{"port": []any{"eth1"}}
		diff, changed := Diff(a, b)
		require.True(t, changed)
		assert.Equal(t, map[string]any{"port": []any{"eth1", "eth2"}}, diff)
	})

	t.Run("keys only in current are ignored", func(t *testing.T) {
		a := map[string]any{"name": "eth0"}
		b := map[string]any{"name": "eth0", "mac-address": "AA:BB:CC:DD:EE:FF"}
		_, changed := Diff(a, b)
		assert.False(t, changed)
	})
}

func TestMerge(t *testing.T) {
	t.Run("nested maps merge key by key", func(t *testing.T) {
		dst := map[string]any{
			"name":  "eth0",
			"state": "up",
			"ipv4":  map[string]any{"enabled": true, "dhcp": true},
		}
		src := map[string]any{
			"ipv4": map[string]any{"dhcp": false},
			"mtu":  float64(9000),
		}
		require.NoError(t, Merge(dst, src))

		assert.Equal(t, float64(9000), dst["mtu"])
		ipv4 := dst["ipv4"].(map[string]any)
		// false must still overwrite: empty values count.
		assert.Equal(t, false, ipv4["dhcp"])
		assert.Equal(t, true, ipv4["enabled"])
	})

	t.Run("keys absent from src survive", func(t *testing.T) {
		dst := map[string]any{
			"name":        "eth0",
			"mac-address": "D4:EE:07:25:42:5A",
			"ipv4":        map[string]any{"enabled": true, "dhcp": true},
		}
		src := map[string]any{
			"ipv4": map[string]any{"dhcp": false},
		}
		require.NoError(t, Merge(dst, src))

		assert.Equal(t, "eth0", dst["name"])
		assert.Equal(t, "D4:EE:07:25:42:5A", dst["mac-address"])
		ipv4 := dst["ipv4"].(map[string]any)
		assert.Equal(t, true, ipv4["enabled"])
	})

	t.Run("explicit nulls carry through", func(t *testing.T) {
		dst := map[string]any{"name": "eth0", "mac-address": "D4:EE:07:25:42:5A"}
		src := map[string]any{"mac-address": nil}
		require.NoError(t, Merge(dst, src))

		val, present := dst["mac-address"]
		require.True(t, present)
		assert.Nil(t, val)
	})

	t.Run("scalar replaced by map takes the map", func(t *testing.T) {
		dst := map[string]any{"ipv4": false}
		src := map[string]any{"ipv4": map[string]any{"enabled": true}}
		require.NoError(t, Merge(dst, src))
		assert.Equal(t, map[string]any{"enabled": true}, dst["ipv4"])
	})
}

func TestRevert(t *testing.T) {
	t.Run("changed field reverts to current value", func(t *testing.T) {
		desired := map[string]any{"name": "eth0", "mtu": float64(9000)}
		current := map[string]any{"name": "eth0", "mtu": float64(1500)}
		out := map[string]any{"name": "eth0"}
		Revert(desired, current, out)
		assert.Equal(t, float64(1500), out["mtu"])
	})

	t.Run("introduced field reverts to explicit null", func(t *testing.T) {
		desired := map[string]any{"name": "eth0", "mac-address": "AA:BB:CC:DD:EE:FF"}
		current := map[string]any{"name": "eth0"}
		out := map[string]any{}
		Revert(desired, current, out)
		val, present := out["mac-address"]
		require.True(t, present)
		assert.Nil(t, val)
	})

	t.Run("nested change reverts only the leaf", func(t *testing.T) {
		desired := map[string]any{
			"ipv4": map[string]any{"enabled": true, "dhcp": true},
		}
		current := map[string]any{
			"ipv4": map[string]any{"enabled": true, "dhcp": false},
		}
		out := map[string]any{}
		Revert(desired, current, out)
		assert.Equal(t, map[string]any{"ipv4": map[string]any{"dhcp": false}}, out)
	})

	t.Run("untouched fields are not visited", func(t *testing.T) {
		desired := map[string]any{"state": "up"}
		current := map[string]any{"state": "up", "mtu": float64(1500)}
		out := map[string]any{}
		Revert(desired, current, out)
		assert.Empty(t, out)
	})
}

func TestSubsetMatch(t *testing.T) {
	current := map[string]any{
		"name":  "eth0",
		"state": "up",
		"ipv4":  map[string]any{"enabled": true, "dhcp": false},
		"mtu":   float64(1500),
	}

	t.Run("subset matches", func(t *testing.T) {
		desired := map[string]any{
			"name": "eth0",
			"ipv4": map[string]any{"enabled": true},
		}
		assert.Empty(t, SubsetMatch(desired, current, ""))
	})

	t.Run("mismatch reports path", func(t *testing.T) {
		desired := map[string]any{
			"ipv4": map[string]any{"dhcp": true},
		}
		assert.Equal(t, "ipv4.dhcp", SubsetMatch(desired, current, ""))
	})

	t.Run("missing key reports path", func(t *testing.T) {
		desired := map[string]any{"mac-address": "AA:BB:CC:DD:EE:FF"}
		assert.Equal(t, "mac-address", SubsetMatch(desired, current, ""))
	})
}

func TestRoundTrip(t *testing.T) {
	type rec struct {
		Name string `json:"name"`
		MTU  int    `json:"mtu,omitempty"`
	}

	val, err := ToValue(rec{Name: "eth0", MTU: 1500})
	require.NoError(t, err)
	assert.Equal(t, "eth0", val["name"])

	var back rec
	require.NoError(t, FromValue(val, &back))
	assert.Equal(t, rec{Name: "eth0", MTU: 1500}, back)
}

func TestFromYAML(t *testing.T) {
	type rec struct {
		Name string `json:"name"`
		MTU  int    `json:"mtu,omitempty"`
	}
	var out rec
	require.NoError(t, FromYAML([]byte("name: eth0\nmtu: 9000\n"), &out))
	assert.Equal(t, rec{Name: "eth0", MTU: 9000}, out)
}
