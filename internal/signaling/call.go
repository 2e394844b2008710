package signaling

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/courier-p2p/courier/internal/util"
)

// Event is one call lifecycle event (ring, answer, candidate, hangup).
// Duplicate hangups for the same callId are valid; both ends hang up, and
// polling clients must tolerate seeing either or both.
type Event struct {
	From      string `json:"fromPeerId"`
	To        string `json:"toPeerId"`
	CallID    string `json:"callId"`
	Kind      string `json:"event"`
	MediaKind string `json:"mediaKind,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	TS        int64  `json:"timestamp"`
}

// Calls holds per-recipient capped queues of call events, drained by poll.
// No ordering guarantee beyond arrival order.
type Calls struct {
	clk clock.Clock
	cap int

	mu     sync.Mutex
	queues map[string]*util.RingBuffer[Event]
}

func NewCalls(clk clock.Clock, queueCap int) *Calls {
	return &Calls{
		clk:    clk,
		cap:    queueCap,
		queues: map[string]*util.RingBuffer[Event]{},
	}
}

// Send appends the event to the recipient's queue, dropping the oldest
// entry when the cap is hit. The map lock is held across get-or-create and
// the push so a concurrent prune cannot delete the queue in between.
func (c *Calls) Send(ev Event) {
	if ev.TS == 0 {
		ev.TS = c.clk.Now().UnixMilli()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[ev.To]
	if !ok {
		q = util.NewRingBuffer[Event](c.cap)
		c.queues[ev.To] = q
	}
	q.Push(ev)
}

// Poll returns and clears the peer's pending events.
func (c *Calls) Poll(peerID string) []Event {
	c.mu.Lock()
	q, ok := c.queues[peerID]
	c.mu.Unlock()
	if !ok {
		return []Event{}
	}
	return q.Drain()
}

// PruneOlderThan drops events older than cutoff even if never polled.
func (c *Calls) PruneOlderThan(cutoff time.Time) int {
	cut := cutoff.UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for to, q := range c.queues {
		dropped += q.DropWhile(func(ev Event) bool { return ev.TS < cut })
		if q.Len() == 0 {
			delete(c.queues, to)
		}
	}
	return dropped
}
