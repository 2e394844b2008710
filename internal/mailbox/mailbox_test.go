package mailbox

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/courier-p2p/courier/internal/hub"
)

func newTestMailbox(queueCap int) (*Mailbox, *clock.Mock) {
	clk := clock.NewMock()
	h := hub.New(25*time.Second, 60*time.Second)
	return New(h, clk, queueCap), clk
}

func TestSendToOfflinePeerQueues(t *testing.T) {
	mb, _ := newTestMailbox(100)

	delivered, queued := mb.Send("a", "b", "blob")
	if delivered || !queued {
		t.Fatalf("offline send: delivered=%v queued=%v, want false/true", delivered, queued)
	}
	if mb.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", mb.Depth())
	}
}

func TestFetchDrainsExactlyOnce(t *testing.T) {
	mb, _ := newTestMailbox(100)

	mb.Send("a", "b", "one")
	mb.Send("c", "b", "two")
	mb.Send("a", "x", "other recipient")

	msgs := mb.Fetch("b")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].From != "a" || msgs[0].Payload != "one" {
		t.Fatalf("FIFO order broken: %+v", msgs[0])
	}
	if msgs[1].From != "c" {
		t.Fatalf("FIFO order broken: %+v", msgs[1])
	}

	// Second fetch for the same recipient returns empty
	if again := mb.Fetch("b"); len(again) != 0 {
		t.Fatalf("second fetch must be empty, got %d", len(again))
	}

	// Other recipient's queue was untouched
	if other := mb.Fetch("x"); len(other) != 1 {
		t.Fatalf("x's queue damaged, got %d", len(other))
	}
}

func TestFetchUnknownRecipient(t *testing.T) {
	mb, _ := newTestMailbox(100)
	if msgs := mb.Fetch("nobody"); msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected empty slice, got %v", msgs)
	}
}

func TestQueueCapDropsOldest(t *testing.T) {
	mb, _ := newTestMailbox(3)

	for _, p := range []string{"1", "2", "3", "4"} {
		mb.Send("a", "b", p)
	}

	msgs := mb.Fetch("b")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Payload != "2" || msgs[2].Payload != "4" {
		t.Fatalf("oldest not dropped first: %+v", msgs)
	}
}

func TestPruneOlderThan(t *testing.T) {
	mb, clk := newTestMailbox(100)

	mb.Send("a", "b", "old")
	clk.Add(2 * time.Hour)
	mb.Send("a", "b", "fresh")

	dropped := mb.PruneOlderThan(clk.Now().Add(-time.Hour))
	if dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}

	msgs := mb.Fetch("b")
	if len(msgs) != 1 || msgs[0].Payload != "fresh" {
		t.Fatalf("wrong survivor: %+v", msgs)
	}

	// Fully pruned queues are released
	mb.Send("a", "c", "stale")
	clk.Add(2 * time.Hour)
	mb.PruneOlderThan(clk.Now().Add(-time.Hour))
	if mb.Depth() != 0 {
		t.Fatalf("expected empty mailbox, depth %d", mb.Depth())
	}
}

func TestSendDuringPruneNeverOrphans(t *testing.T) {
	mb, clk := newTestMailbox(100)
	clk.Add(time.Hour) // all timestamps sit well past the prune cutoff

	// A sweeper deleting empty queues must never race a Send into dropping
	// a message it just reported as queued.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20000; i++ {
			mb.PruneOlderThan(time.Unix(0, 0))
		}
	}()

	const n = 5000
	got := 0
	for i := 0; i < n; i++ {
		if delivered, queued := mb.Send("a", "b", i); delivered || !queued {
			t.Fatalf("expected queued send, got delivered=%v queued=%v", delivered, queued)
		}
		got += len(mb.Fetch("b"))
	}
	<-done
	got += len(mb.Fetch("b"))

	if got != n {
		t.Fatalf("lost %d messages that Send reported as queued", n-got)
	}
}
