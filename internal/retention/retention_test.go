package retention

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/courier-p2p/courier/internal/directory"
	"github.com/courier-p2p/courier/internal/hub"
	"github.com/courier-p2p/courier/internal/mailbox"
	"github.com/courier-p2p/courier/internal/signaling"
)

func testPolicy() Policy {
	return Policy{
		PeerTTL:       5 * time.Minute,
		SweepInterval: time.Minute,
		Signal:        5 * time.Minute,
		Call:          5 * time.Minute,
		Mailbox:       24 * time.Hour,
	}
}

func newFixture() (*Scheduler, *clock.Mock, *directory.Directory, *mailbox.Mailbox, *signaling.Relay, *signaling.Calls) {
	clk := clock.NewMock()
	h := hub.New(25*time.Second, 60*time.Second)
	dir := directory.New(clk, 30*time.Second)
	mail := mailbox.New(h, clk, 100)
	relay := signaling.NewRelay(h, clk, 50)
	calls := signaling.NewCalls(clk, 50)
	s := New(clk, dir, mail, relay, calls, nil, testPolicy())
	return s, clk, dir, mail, relay, calls
}

func TestSweepEvictsStalePeers(t *testing.T) {
	s, clk, dir, _, _, _ := newFixture()

	dir.Register("stale", nil)
	clk.Add(4 * time.Minute)
	dir.Register("fresh", nil)
	clk.Add(2 * time.Minute) // stale: 6m silent, fresh: 2m

	s.Sweep()

	if _, ok := dir.Get("stale"); ok {
		t.Fatal("stale peer must be evicted")
	}
	if _, ok := dir.Get("fresh"); !ok {
		t.Fatal("fresh peer must survive")
	}
}

func TestSweepPrunesUnpolledQueues(t *testing.T) {
	s, clk, _, mail, relay, calls := newFixture()

	relay.Send("a", "b", "sdp")
	calls.Send(signaling.Event{From: "a", To: "b", CallID: "c1", Kind: "offer"})
	mail.Send("a", "b", "msg")

	clk.Add(6 * time.Minute)
	s.Sweep()

	// Signaling and call windows (5m) elapsed; mailbox window (24h) did not.
	if got := relay.Drain("b"); len(got) != 0 {
		t.Fatalf("signal queue must be pruned, got %d", len(got))
	}
	if got := calls.Poll("b"); len(got) != 0 {
		t.Fatalf("call queue must be pruned, got %d", len(got))
	}
	if mail.Depth() != 1 {
		t.Fatalf("mailbox must survive a 6m sweep, depth %d", mail.Depth())
	}

	clk.Add(25 * time.Hour)
	s.Sweep()
	if mail.Depth() != 0 {
		t.Fatalf("mailbox must be pruned past its window, depth %d", mail.Depth())
	}
}

func TestSetPolicyTakesEffect(t *testing.T) {
	s, clk, dir, _, _, _ := newFixture()

	dir.Register("p", nil)
	clk.Add(2 * time.Minute)

	s.Sweep()
	if _, ok := dir.Get("p"); !ok {
		t.Fatal("peer within TTL must survive")
	}

	p := testPolicy()
	p.PeerTTL = time.Minute
	s.SetPolicy(p)

	s.Sweep()
	if _, ok := dir.Get("p"); ok {
		t.Fatal("tightened TTL must evict on the next pass")
	}
}
