// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package monitor

import (
	"context"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/netstate/internal/event"
	"grimm.is/netstate/internal/logging"
	"grimm.is/netstate/internal/plugin"
	"grimm.is/netstate/internal/plugin/netlinkbr"
)

// SubscribeFunc opens an rtnetlink link notification stream. Injectable
// for tests; the default is netlink.LinkSubscribe.
type SubscribeFunc func(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error

type watcherCmdKind uint8

const (
	watchAdd watcherCmdKind = iota
	watchDel
	watchWifiOn
	watchWifiOff
)

type watcherCmd struct {
	kind  watcherCmdKind
	name  string
	reply chan error
}

// NetlinkWatcher turns rtnetlink link updates into LinkEvents for the
// watched interfaces, plus all wireless PHYs while Wi-Fi scanning is
// enabled. The watch set lives in the run goroutine.
type NetlinkWatcher struct {
	scanner   plugin.SSIDScanner
	logger    *logging.Logger
	cmds      chan watcherCmd
	events    chan event.LinkEvent
	done      chan struct{}
	closeOnce sync.Once
	wireless  func(name string) bool
}

// NewNetlinkWatcher subscribes to kernel link updates.
func NewNetlinkWatcher(scanner plugin.SSIDScanner, logger *logging.Logger) (*NetlinkWatcher, error) {
	return newNetlinkWatcher(netlink.LinkSubscribe, scanner, netlinkbr.IsWireless, logger)
}

func newNetlinkWatcher(subscribe SubscribeFunc, scanner plugin.SSIDScanner, wireless func(string) bool, logger *logging.Logger) (*NetlinkWatcher, error) {
	w := &NetlinkWatcher{
		scanner:  scanner,
		logger:   logger,
		cmds:     make(chan watcherCmd),
		events:   make(chan event.LinkEvent, 16),
		done:     make(chan struct{}),
		wireless: wireless,
	}
	updates := make(chan netlink.LinkUpdate, 64)
	if err := subscribe(updates, w.done); err != nil {
		return nil, err
	}
	go w.run(updates)
	return w, nil
}

// Events implements Watcher.
func (w *NetlinkWatcher) Events() <-chan event.LinkEvent { return w.events }

// AddIface implements Watcher.
func (w *NetlinkWatcher) AddIface(name string) error {
	return w.send(watcherCmd{kind: watchAdd, name: name})
}

// DelIface implements Watcher.
func (w *NetlinkWatcher) DelIface(name string) error {
	return w.send(watcherCmd{kind: watchDel, name: name})
}

// EnableWifiScan implements Watcher.
func (w *NetlinkWatcher) EnableWifiScan() error {
	return w.send(watcherCmd{kind: watchWifiOn})
}

// DisableWifiScan implements Watcher.
func (w *NetlinkWatcher) DisableWifiScan() error {
	return w.send(watcherCmd{kind: watchWifiOff})
}

// Close implements Watcher and terminates the kernel subscription.
func (w *NetlinkWatcher) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	return nil
}

func (w *NetlinkWatcher) send(cmd watcherCmd) error {
	cmd.reply = make(chan error, 1)
	select {
	case w.cmds <- cmd:
		return <-cmd.reply
	case <-w.done:
		return nil
	}
}

func (w *NetlinkWatcher) run(updates <-chan netlink.LinkUpdate) {
	watched := make(map[string]bool)
	wifiScan := false
	lastUp := make(map[int32]bool)

	for {
		select {
		case <-w.done:
			return
		case cmd := <-w.cmds:
			switch cmd.kind {
			case watchAdd:
				watched[cmd.name] = true
			case watchDel:
				delete(watched, cmd.name)
			case watchWifiOn:
				wifiScan = true
			case watchWifiOff:
				wifiScan = false
			}
			cmd.reply <- nil
		case update, open := <-updates:
			if !open {
				w.logger.Error("link update stream closed")
				return
			}
			w.handleUpdate(update, watched, wifiScan, lastUp)
		}
	}
}

func (w *NetlinkWatcher) handleUpdate(update netlink.LinkUpdate, watched map[string]bool, wifiScan bool, lastUp map[int32]bool) {
	attrs := update.Link.Attrs()
	name := attrs.Name
	wireless := w.wireless(name)
	if !watched[name] && !(wifiScan && wireless) {
		return
	}

	up := update.IfInfomsg.Flags&unix.IFF_UP != 0 &&
		update.IfInfomsg.Flags&unix.IFF_RUNNING != 0
	if update.Header.Type == unix.RTM_DELLINK {
		up = false
	}
	index := update.IfInfomsg.Index
	if last, seen := lastUp[index]; seen && last == up {
		return
	}
	lastUp[index] = up

	ifaceType := netlinkbr.ClassifyLink(update.Link)
	var ssid *string
	if wireless && up {
		s, err := w.scanner.CurrentSSID(context.Background(), name)
		if err != nil {
			w.logger.Debug("SSID lookup failed", "iface", name, "error", err.Error())
		} else if s != "" {
			ssid = &s
		}
	}

	ev := event.NewLinkEvent(name, int(index), ifaceType, up, ssid)
	w.logger.Debug("link update", "iface", name, "up", up, "id", ev.ID.String())
	select {
	case w.events <- ev:
	case <-w.done:
	}
}
