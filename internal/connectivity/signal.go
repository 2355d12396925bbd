// Package connectivity reports online/offline transitions.
package connectivity

import "sync"

// Signal fires each callback at most once per transition.
type Signal interface {
	Online() bool
	OnOnline(fn func())
	OnOffline(fn func())
}

type notifier struct {
	mu        sync.Mutex
	online    bool
	onOnline  []func()
	onOffline []func()
}

func (n *notifier) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *notifier) OnOnline(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onOnline = append(n.onOnline, fn)
}

func (n *notifier) OnOffline(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onOffline = append(n.onOffline, fn)
}

// set records the new state and reports whether it changed. Callbacks run
// outside the lock.
func (n *notifier) set(online bool) bool {
	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return false
	}
	n.online = online
	var callbacks []func()
	if online {
		callbacks = append(callbacks, n.onOnline...)
	} else {
		callbacks = append(callbacks, n.onOffline...)
	}
	n.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return true
}

// Manual is a Signal driven by explicit Set calls.
type Manual struct {
	notifier
}

func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online = online
	return m
}

// Set changes the state. Setting the current state again fires nothing.
func (m *Manual) Set(online bool) {
	m.set(online)
}
