package syncer

import "time"

// State is the coordinator's position in the push cycle.
type State string

const (
	StateIdle           State = "idle"
	StateLocalPersisted State = "local_persisted"
	StatePendingPush    State = "pending_push"
	StatePushing        State = "pushing"
	StatePushed         State = "pushed"
	StatePushFailed     State = "push_failed"
)

// Status is the sync health shown next to the always-local progress view.
type Status struct {
	State          State     `json:"state"`
	Online         bool      `json:"online"`
	Authenticated  bool      `json:"authenticated"`
	UserID         string    `json:"userId,omitempty"`
	RemoteEnabled  bool      `json:"remoteEnabled"`
	Pending        bool      `json:"pending"`
	Degraded       bool      `json:"degraded"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"lastError,omitempty"`
	LastPushAt     time.Time `json:"lastPushAt"`
	LocalUpdatedAt time.Time `json:"localUpdatedAt"`
}

// Watch returns a channel that receives the latest Status after every
// change. Slow readers only ever see the newest value. The returned func
// stops the watch.
func (c *Coordinator) Watch() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	c.watchMu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = ch
	c.watchMu.Unlock()

	ch <- c.Status()

	return ch, func() {
		c.watchMu.Lock()
		defer c.watchMu.Unlock()
		if _, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(ch)
		}
	}
}

func (c *Coordinator) notify() {
	st := c.Status()

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}
