// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netlinkbr

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"grimm.is/netstate/internal/errors"
	"grimm.is/netstate/internal/logging"
	"grimm.is/netstate/internal/plugin"
	"grimm.is/netstate/internal/state"
)

// fakeNetlinker replays a fixed link table and records every mutation.
type fakeNetlinker struct {
	links     map[string]netlink.Link
	addrs     map[string][]netlink.Addr
	ops       []string
	nextIndex int
}

func newFakeNetlinker(links ...netlink.Link) *fakeNetlinker {
	f := &fakeNetlinker{
		links: make(map[string]netlink.Link),
		addrs: make(map[string][]netlink.Addr),
	}
	for _, l := range links {
		f.links[l.Attrs().Name] = l
		if l.Attrs().Index > f.nextIndex {
			f.nextIndex = l.Attrs().Index
		}
	}
	return f
}

func (f *fakeNetlinker) LinkList() ([]netlink.Link, error) {
	out := make([]netlink.Link, 0, len(f.links))
	for _, l := range f.links {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeNetlinker) LinkByName(name string) (netlink.Link, error) {
	l, found := f.links[name]
	if !found {
		return nil, fmt.Errorf("Link not found")
	}
	return l, nil
}

func (f *fakeNetlinker) LinkAdd(l netlink.Link) error {
	f.ops = append(f.ops, "add "+l.Attrs().Name)
	f.nextIndex++
	l.Attrs().Index = f.nextIndex
	f.links[l.Attrs().Name] = l
	return nil
}

func (f *fakeNetlinker) LinkDel(l netlink.Link) error {
	f.ops = append(f.ops, "del "+l.Attrs().Name)
	delete(f.links, l.Attrs().Name)
	return nil
}

func (f *fakeNetlinker) LinkSetUp(l netlink.Link) error {
	f.ops = append(f.ops, "up "+l.Attrs().Name)
	return nil
}

func (f *fakeNetlinker) LinkSetDown(l netlink.Link) error {
	f.ops = append(f.ops, "down "+l.Attrs().Name)
	return nil
}

func (f *fakeNetlinker) LinkSetMTU(l netlink.Link, mtu int) error {
	f.ops = append(f.ops, fmt.Sprintf("mtu %s %d", l.Attrs().Name, mtu))
	l.Attrs().MTU = mtu
	return nil
}

func (f *fakeNetlinker) LinkSetHardwareAddr(l netlink.Link, hw net.HardwareAddr) error {
	f.ops = append(f.ops, fmt.Sprintf("mac %s %s", l.Attrs().Name, hw))
	return nil
}

func (f *fakeNetlinker) LinkSetMaster(l, master netlink.Link) error {
	f.ops = append(f.ops, fmt.Sprintf("master %s %s", l.Attrs().Name, master.Attrs().Name))
	l.Attrs().MasterIndex = master.Attrs().Index
	return nil
}

func (f *fakeNetlinker) LinkSetNoMaster(l netlink.Link) error {
	f.ops = append(f.ops, "nomaster "+l.Attrs().Name)
	l.Attrs().MasterIndex = 0
	return nil
}

func (f *fakeNetlinker) AddrList(l netlink.Link, family int) ([]netlink.Addr, error) {
	return f.addrs[l.Attrs().Name], nil
}

func (f *fakeNetlinker) AddrAdd(l netlink.Link, a *netlink.Addr) error {
	f.ops = append(f.ops, fmt.Sprintf("addr-add %s %s", l.Attrs().Name, a.IPNet))
	f.addrs[l.Attrs().Name] = append(f.addrs[l.Attrs().Name], *a)
	return nil
}

func (f *fakeNetlinker) AddrDel(l netlink.Link, a *netlink.Addr) error {
	f.ops = append(f.ops, fmt.Sprintf("addr-del %s %s", l.Attrs().Name, a.IPNet))
	return nil
}

type fakePermAddr struct{ byName map[string]string }

func (f fakePermAddr) PermAddr(iface string) (string, error) { return f.byName[iface], nil }

type fakeScanner struct{ byName map[string]string }

func (f fakeScanner) CurrentSSID(ctx context.Context, iface string) (string, error) {
	return f.byName[iface], nil
}

func testBackend(nl *fakeNetlinker) *Backend {
	return NewWithDeps(nl, fakePermAddr{}, fakeScanner{}, logging.New(logging.DefaultConfig()))
}

func linkAttrs(name string, index int) netlink.LinkAttrs {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	attrs.Index = index
	attrs.Flags = net.FlagUp
	return attrs
}

func mergeDoc(t *testing.T, desired, current string) *state.MergedNetworkState {
	t.Helper()
	des, err := state.ParseNetworkState([]byte(desired))
	require.NoError(t, err)
	cur, err := state.ParseNetworkState([]byte(current))
	require.NoError(t, err)
	merged, err := state.NewMergedNetworkState(des, cur, state.MergeOptions{})
	require.NoError(t, err)
	return merged
}

func TestApplyDeletesAbsentBeforeConfiguring(t *testing.T) {
	nl := newFakeNetlinker(
		&netlink.Bridge{LinkAttrs: linkAttrs("br0", 1)},
		&netlink.Device{LinkAttrs: linkAttrs("eth0", 2)},
	)
	merged := mergeDoc(t, `
interfaces:
- name: br0
  type: linux-bridge
  state: absent
- name: eth0
  type: ethernet
  state: up
  mtu: 9000
`, `
interfaces:
- name: br0
  type: linux-bridge
  state: up
- name: eth0
  type: ethernet
  state: up
  mtu: 1500
`)
	require.NoError(t, testBackend(nl).Apply(context.Background(), merged, plugin.ApplyOptions{}))

	require.NotEmpty(t, nl.ops)
	assert.Equal(t, "del br0", nl.ops[0])
	assert.Contains(t, nl.ops, "mtu eth0 9000")
}

func TestApplyDedupsVethPeerDeletion(t *testing.T) {
	nl := newFakeNetlinker(
		&netlink.Veth{LinkAttrs: linkAttrs("veth0", 1), PeerName: "veth1"},
		&netlink.Veth{LinkAttrs: linkAttrs("veth1", 2), PeerName: "veth0"},
	)
	merged := mergeDoc(t, `
interfaces:
- name: veth0
  type: veth
  state: absent
- name: veth1
  type: veth
  state: absent
`, `
interfaces:
- name: veth0
  type: veth
  state: up
  ethernet:
    veth:
      peer: veth1
- name: veth1
  type: veth
  state: up
  ethernet:
    veth:
      peer: veth0
`)
	require.NoError(t, testBackend(nl).Apply(context.Background(), merged, plugin.ApplyOptions{}))

	dels := 0
	for _, op := range nl.ops {
		if op == "del veth0" || op == "del veth1" {
			dels++
		}
	}
	assert.Equal(t, 1, dels)
}

func TestApplyOrdersByPriorityThenName(t *testing.T) {
	nl := newFakeNetlinker()
	merged := mergeDoc(t, `
interfaces:
- name: zz0
  type: dummy
  state: up
  up-priority: 0
- name: aa0
  type: dummy
  state: up
- name: bb0
  type: dummy
  state: up
  up-priority: 0
`, `
interfaces: []
`)
	require.NoError(t, testBackend(nl).Apply(context.Background(), merged, plugin.ApplyOptions{}))

	var adds []string
	for _, op := range nl.ops {
		if len(op) > 4 && op[:4] == "add " {
			adds = append(adds, op[4:])
		}
	}
	// Priority 0 group first in name order, then the default-priority
	// interface.
	assert.Equal(t, []string{"bb0", "zz0", "aa0"}, adds)
}

func TestApplyCreatesBridgeAndEnslavesPort(t *testing.T) {
	nl := newFakeNetlinker(
		&netlink.Device{LinkAttrs: linkAttrs("eth0", 2)},
	)
	merged := mergeDoc(t, `
interfaces:
- name: br0
  type: linux-bridge
  state: up
  bridge:
    port:
    - eth0
- name: eth0
  type: ethernet
  state: up
  controller: br0
`, `
interfaces:
- name: eth0
  type: ethernet
  state: up
`)
	require.NoError(t, testBackend(nl).Apply(context.Background(), merged, plugin.ApplyOptions{}))

	assert.Contains(t, nl.ops, "add br0")
	assert.Contains(t, nl.ops, "master eth0 br0")
}

func TestApplyRejectsOvsTypes(t *testing.T) {
	nl := newFakeNetlinker()
	merged := mergeDoc(t, `
interfaces:
- name: br-ovs
  type: ovs-bridge
  state: up
`, `
interfaces: []
`)
	err := testBackend(nl).Apply(context.Background(), merged, plugin.ApplyOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindPluginFailure, errors.GetKind(err))
}

func TestApplySyncsStaticAddresses(t *testing.T) {
	eth0 := &netlink.Device{LinkAttrs: linkAttrs("eth0", 2)}
	nl := newFakeNetlinker(eth0)
	stale, err := netlink.ParseAddr("192.0.2.9/24")
	require.NoError(t, err)
	nl.addrs["eth0"] = []netlink.Addr{*stale}

	merged := mergeDoc(t, `
interfaces:
- name: eth0
  type: ethernet
  state: up
  ipv4:
    enabled: true
    address:
    - ip: 192.0.2.1
      prefix-length: 24
`, `
interfaces:
- name: eth0
  type: ethernet
  state: up
`)
	require.NoError(t, testBackend(nl).Apply(context.Background(), merged, plugin.ApplyOptions{}))

	assert.Contains(t, nl.ops, "addr-del eth0 192.0.2.9/24")
	assert.Contains(t, nl.ops, "addr-add eth0 192.0.2.1/24")
}

func TestQuerySnapshotsLinksAndControllers(t *testing.T) {
	brAttrs := linkAttrs("br0", 1)
	ethAttrs := linkAttrs("eth0", 2)
	ethAttrs.MasterIndex = 1
	hw, err := net.ParseMAC("d4:ee:07:25:42:5a")
	require.NoError(t, err)
	ethAttrs.HardwareAddr = hw
	ethAttrs.MTU = 1500

	nl := newFakeNetlinker(
		&netlink.Bridge{LinkAttrs: brAttrs},
		&netlink.Device{LinkAttrs: ethAttrs},
	)
	backend := NewWithDeps(nl,
		fakePermAddr{byName: map[string]string{"eth0": "d4:ee:07:25:42:5a"}},
		fakeScanner{}, logging.New(logging.DefaultConfig()))

	ns, err := backend.Query(context.Background())
	require.NoError(t, err)

	eth0 := ns.Ifaces.Get("eth0", state.InterfaceTypeEthernet)
	require.NotNil(t, eth0)
	assert.Equal(t, state.InterfaceStateUp, eth0.State)
	assert.Equal(t, 1500, eth0.MTU)
	assert.Equal(t, "D4:EE:07:25:42:5A", eth0.MacAddress)
	assert.Equal(t, "D4:EE:07:25:42:5A", eth0.PermanentMacAddress)
	require.NotNil(t, eth0.Controller)
	assert.Equal(t, "br0", *eth0.Controller)

	br0 := ns.Ifaces.Get("br0", state.InterfaceTypeLinuxBridge)
	require.NotNil(t, br0)
	assert.Equal(t, []string{"eth0"}, br0.Ports())
}
