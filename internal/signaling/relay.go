// Package signaling queues connection-negotiation traffic between peers:
// WebRTC-style offer/answer/candidate payloads and call lifecycle events.
// Every payload is opaque; the broker relays bytes, it never parses them.
package signaling

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"

	"github.com/courier-p2p/courier/internal/hub"
	"github.com/courier-p2p/courier/internal/proto"
	"github.com/courier-p2p/courier/internal/util"
)

var log = logging.Logger("courier/signaling")

// Packet is one queued negotiation payload, tagged with its sender.
type Packet struct {
	From    string `json:"fromPeerId"`
	To      string `json:"toPeerId"`
	Payload any    `json:"payload"`
	TS      int64  `json:"timestamp"`
}

// Relay pushes signaling payloads to connected peers and queues for the
// rest. Unlike the mailbox, a failed push is never an error to the sender:
// queuing is always the fallback, and the sender cannot tell the difference.
// Queues are capped, oldest dropped first, so stale negotiation payloads are
// useless to a peer that reconnects late anyway.
type Relay struct {
	hub *hub.Hub
	clk clock.Clock
	cap int

	mu     sync.Mutex
	queues map[string]*util.RingBuffer[Packet]
}

func NewRelay(h *hub.Hub, clk clock.Clock, queueCap int) *Relay {
	return &Relay{
		hub:    h,
		clk:    clk,
		cap:    queueCap,
		queues: map[string]*util.RingBuffer[Packet]{},
	}
}

// Send relays the payload: live push when the recipient is connected,
// capped queue otherwise.
func (r *Relay) Send(from, to string, payload any) {
	ts := r.clk.Now().UnixMilli()

	if r.hub.Send(to, proto.Frame{
		Type:       proto.FramePeerSignal,
		FromPeerID: from,
		Signal:     payload,
		TS:         ts,
	}) {
		return
	}

	r.push(Packet{From: from, To: to, Payload: payload, TS: ts})
	log.Debugf("queued signal %s -> %s", from, to)
}

// push holds the map lock across get-or-create and the ring push; see the
// matching mailbox method for the prune race this prevents.
func (r *Relay) push(p Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[p.To]
	if !ok {
		q = util.NewRingBuffer[Packet](r.cap)
		r.queues[p.To] = q
	}
	q.Push(p)
}

// Drain returns and clears all queued packets for the recipient.
func (r *Relay) Drain(to string) []Packet {
	r.mu.Lock()
	q, ok := r.queues[to]
	r.mu.Unlock()
	if !ok {
		return []Packet{}
	}
	return q.Drain()
}

// PruneOlderThan drops queued packets older than cutoff even if never
// polled. Returns the number removed.
func (r *Relay) PruneOlderThan(cutoff time.Time) int {
	cut := cutoff.UnixMilli()

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for to, q := range r.queues {
		dropped += q.DropWhile(func(p Packet) bool { return p.TS < cut })
		if q.Len() == 0 {
			delete(r.queues, to)
		}
	}
	return dropped
}
