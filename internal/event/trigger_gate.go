// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package event

import "grimm.is/netstate/internal/state"

type triggerDirection uint8

const (
	directionUp triggerDirection = iota
	directionDown
)

type gateKey struct {
	name      string
	ifaceType state.InterfaceType
	direction triggerDirection
}

type gateRequest struct {
	key   gateKey
	reset bool
	reply chan bool
}

// TriggerGate serializes one-shot trigger consumption per interface
// identity. Two events observing the same armed trigger concurrently
// must not both fire; all claims funnel through a single goroutine so
// exactly one wins.
type TriggerGate struct {
	requests chan gateRequest
	done     chan struct{}
}

// NewTriggerGate starts the gate goroutine.
func NewTriggerGate() *TriggerGate {
	g := &TriggerGate{
		requests: make(chan gateRequest),
		done:     make(chan struct{}),
	}
	go g.run()
	return g
}

func (g *TriggerGate) run() {
	claimed := make(map[gateKey]bool)
	for {
		select {
		case req := <-g.requests:
			if req.reset {
				delete(claimed, req.key)
				if req.reply != nil {
					req.reply <- true
				}
				continue
			}
			ok := !claimed[req.key]
			claimed[req.key] = true
			req.reply <- ok
		case <-g.done:
			return
		}
	}
}

// TryClaim consumes the trigger for an identity and direction. The
// first caller wins; later callers get false until Reset re-arms it.
func (g *TriggerGate) TryClaim(name string, ifaceType state.InterfaceType, dir triggerDirection) bool {
	reply := make(chan bool, 1)
	select {
	case g.requests <- gateRequest{key: gateKey{name, ifaceType, dir}, reply: reply}:
		return <-reply
	case <-g.done:
		return false
	}
}

// Reset re-arms both directions for an identity. Called when a new
// desired state carrying triggers for the interface is saved.
func (g *TriggerGate) Reset(name string, ifaceType state.InterfaceType) {
	for _, dir := range []triggerDirection{directionUp, directionDown} {
		select {
		case g.requests <- gateRequest{key: gateKey{name, ifaceType, dir}, reset: true}:
		case <-g.done:
			return
		}
	}
}

// Close stops the gate goroutine. Pending claims fail closed.
func (g *TriggerGate) Close() {
	close(g.done)
}
