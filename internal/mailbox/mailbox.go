package mailbox

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"

	"github.com/courier-p2p/courier/internal/hub"
	"github.com/courier-p2p/courier/internal/proto"
	"github.com/courier-p2p/courier/internal/util"
)

var log = logging.Logger("courier/mailbox")

// Message is one queued opaque blob. The payload is encrypted client-side
// and never parsed here.
type Message struct {
	From    string `json:"fromPeerId"`
	To      string `json:"toPeerId"`
	Payload any    `json:"payload"`
	TS      int64  `json:"timestamp"`
}

// Mailbox is the store-and-forward layer: push first over the live
// connection, queue per recipient on miss, drain whole queue on fetch.
// Delivery is at-most-once per fetch; a client that crashes between fetch
// and processing loses that batch (accepted tradeoff, the client's local
// store is the source of truth for history).
type Mailbox struct {
	hub *hub.Hub
	clk clock.Clock
	cap int

	mu     sync.Mutex
	queues map[string]*util.RingBuffer[Message]
}

func New(h *hub.Hub, clk clock.Clock, queueCap int) *Mailbox {
	return &Mailbox{
		hub:    h,
		clk:    clk,
		cap:    queueCap,
		queues: map[string]*util.RingBuffer[Message]{},
	}
}

// Send attempts live delivery, then queues. Exactly one of delivered/queued
// is true in the result.
func (m *Mailbox) Send(from, to string, payload any) (delivered, queued bool) {
	msg := Message{From: from, To: to, Payload: payload, TS: m.clk.Now().UnixMilli()}

	if m.hub.Send(to, proto.Frame{
		Type:       proto.FrameMessage,
		FromPeerID: from,
		Payload:    payload,
		TS:         msg.TS,
	}) {
		return true, false
	}

	m.push(msg)
	log.Debugf("queued message %s -> %s", from, to)
	return false, true
}

// push holds the map lock across get-or-create and the ring push, so a
// concurrent prune can never delete a freshly created empty queue between
// the two steps and orphan the message.
func (m *Mailbox) push(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[msg.To]
	if !ok {
		q = util.NewRingBuffer[Message](m.cap)
		m.queues[msg.To] = q
	}
	q.Push(msg)
}

// Fetch atomically returns and clears the recipient's queue. A second fetch
// with no intervening sends returns an empty slice.
func (m *Mailbox) Fetch(to string) []Message {
	m.mu.Lock()
	q, ok := m.queues[to]
	m.mu.Unlock()
	if !ok {
		return []Message{}
	}
	return q.Drain()
}

// PruneOlderThan drops queued messages older than cutoff, returning the
// number removed. Empty queues are released so the map tracks only
// recipients with pending mail.
func (m *Mailbox) PruneOlderThan(cutoff time.Time) int {
	cut := cutoff.UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for to, q := range m.queues {
		dropped += q.DropWhile(func(msg Message) bool { return msg.TS < cut })
		if q.Len() == 0 {
			delete(m.queues, to)
		}
	}
	return dropped
}

// Depth returns the total number of queued messages across all recipients.
func (m *Mailbox) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.queues {
		n += q.Len()
	}
	return n
}
