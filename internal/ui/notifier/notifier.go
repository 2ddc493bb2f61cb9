// Package notifier broadcasts benchmark progress to SSE listeners.
package notifier

import (
	"sync"

	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// Update describes what changed. An empty RunID means the change could not
// be attributed to a run (for example a write by another process), and every
// listener should refresh.
type Update struct {
	RunID string
	Date  string
}

// Concerns reports whether a listener following runID should refresh.
// An empty runID follows whichever run is latest, so it refreshes on every
// update.
func (u Update) Concerns(runID string) bool {
	return u.RunID == "" || runID == "" || u.RunID == runID
}

// Notifier broadcasts update signals to all subscribed listeners.
// Listeners receive the latest update and should re-query the store.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Update]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Update]struct{}),
	}
}

// Subscribe returns a channel that receives updates.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan Update {
	ch := make(chan Update, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Update) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends u to all listeners.
// Non-blocking: if a listener's channel is full, the update is skipped.
func (n *Notifier) Broadcast(u Update) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- u:
		default:
			// listener already has a pending refresh
		}
	}
}

// DayRecorded broadcasts a recorded benchmark day. Its signature matches the
// bench engine's day hook.
func (n *Notifier) DayRecorded(runID string, day core.DayTiming) {
	n.Broadcast(Update{RunID: runID, Date: day.Date})
}

// Listeners returns the number of subscribed listeners.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
