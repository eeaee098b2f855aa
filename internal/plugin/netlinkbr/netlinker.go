// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netlinkbr is the kernel backend: it observes and programs
// interfaces through rtnetlink. OVS interface types are understood by
// the model but not programmable here.
package netlinkbr

import (
	"net"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
)

// Netlinker is the rtnetlink surface this backend consumes. Injectable
// so tests run without CAP_NET_ADMIN.
type Netlinker interface {
	LinkList() ([]netlink.Link, error)
	LinkByName(name string) (netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
	LinkSetDown(link netlink.Link) error
	LinkSetMTU(link netlink.Link, mtu int) error
	LinkSetHardwareAddr(link netlink.Link, hwaddr net.HardwareAddr) error
	LinkSetMaster(link netlink.Link, master netlink.Link) error
	LinkSetNoMaster(link netlink.Link) error
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	AddrAdd(link netlink.Link, addr *netlink.Addr) error
	AddrDel(link netlink.Link, addr *netlink.Addr) error
}

// RealNetlinker forwards to the netlink package.
type RealNetlinker struct{}

func (RealNetlinker) LinkList() ([]netlink.Link, error)   { return netlink.LinkList() }
func (RealNetlinker) LinkByName(n string) (netlink.Link, error) { return netlink.LinkByName(n) }
func (RealNetlinker) LinkAdd(l netlink.Link) error        { return netlink.LinkAdd(l) }
func (RealNetlinker) LinkDel(l netlink.Link) error        { return netlink.LinkDel(l) }
func (RealNetlinker) LinkSetUp(l netlink.Link) error      { return netlink.LinkSetUp(l) }
func (RealNetlinker) LinkSetDown(l netlink.Link) error    { return netlink.LinkSetDown(l) }
func (RealNetlinker) LinkSetMTU(l netlink.Link, mtu int) error { return netlink.LinkSetMTU(l, mtu) }
func (RealNetlinker) LinkSetHardwareAddr(l netlink.Link, hw net.HardwareAddr) error {
	return netlink.LinkSetHardwareAddr(l, hw)
}
func (RealNetlinker) LinkSetMaster(l, m netlink.Link) error { return netlink.LinkSetMaster(l, m) }
func (RealNetlinker) LinkSetNoMaster(l netlink.Link) error  { return netlink.LinkSetNoMaster(l) }
func (RealNetlinker) AddrList(l netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(l, family)
}
func (RealNetlinker) AddrAdd(l netlink.Link, a *netlink.Addr) error { return netlink.AddrAdd(l, a) }
func (RealNetlinker) AddrDel(l netlink.Link, a *netlink.Addr) error { return netlink.AddrDel(l, a) }

// PermAddrReader reads the factory MAC of a device. Backed by ethtool.
type PermAddrReader interface {
	PermAddr(iface string) (string, error)
}

type ethtoolPermAddr struct{}

func (ethtoolPermAddr) PermAddr(iface string) (string, error) {
	et, err := ethtool.NewEthtool()
	if err != nil {
		return "", err
	}
	defer et.Close()
	return et.PermAddr(iface)
}
