package directory

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newTestDir() (*Directory, *clock.Mock) {
	clk := clock.NewMock()
	return New(clk, 30*time.Second), clk
}

func TestRegisterIdempotent(t *testing.T) {
	d, _ := newTestDir()

	d.Register("p1", map[string]any{"role": "relay", "name": "alpha"})
	d.Register("p1", map[string]any{"role": "bootstrap", "name": "beta"})

	if d.Len() != 1 {
		t.Fatalf("duplicate register must not create a second peer, got %d", d.Len())
	}
	p, ok := d.Get("p1")
	if !ok {
		t.Fatal("peer missing")
	}
	if p.Role != "bootstrap" || p.Name != "beta" {
		t.Fatalf("last write should win, got role=%q name=%q", p.Role, p.Name)
	}
}

func TestHeartbeatUnknownPeer(t *testing.T) {
	d, _ := newTestDir()
	if err := d.Heartbeat("ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEvictionAfterSilence(t *testing.T) {
	d, clk := newTestDir()

	d.Register("p1", nil)
	clk.Add(10 * time.Second)
	d.Register("p2", nil)

	clk.Add(55 * time.Second) // p1 silent 65s, p2 silent 55s

	active := d.ListActive(60 * time.Second)
	if len(active) != 1 || active[0].ID != "p2" {
		t.Fatalf("expected only p2 active, got %v", active)
	}

	removed := d.Evict(60 * time.Second)
	if len(removed) != 1 || removed[0] != "p1" {
		t.Fatalf("expected p1 evicted, got %v", removed)
	}
	if err := d.Heartbeat("p1"); err != ErrNotFound {
		t.Fatalf("evicted peer must be gone, got %v", err)
	}

	// heartbeat keeps p2 alive through another window
	if err := d.Heartbeat("p2"); err != nil {
		t.Fatal(err)
	}
	clk.Add(45 * time.Second)
	if len(d.ListActive(60*time.Second)) != 1 {
		t.Fatal("heartbeated peer should still be active")
	}
}

func TestLastSeenMonotonic(t *testing.T) {
	d, clk := newTestDir()

	d.Register("p1", nil)
	clk.Add(5 * time.Second)
	d.Heartbeat("p1")
	p1, _ := d.Get("p1")

	// A touch at the same instant must not move lastSeen back
	d.Touch("p1")
	p2, _ := d.Get("p1")
	if p2.LastSeen.Before(p1.LastSeen) {
		t.Fatalf("lastSeen went backwards: %v -> %v", p1.LastSeen, p2.LastSeen)
	}
}

func TestSearch(t *testing.T) {
	d, _ := newTestDir()
	d.Register("alice-phone", map[string]any{"name": "Alice"})
	d.Register("bob-laptop", map[string]any{"name": "Bob"})

	if got := d.Search("ALICE"); len(got) != 1 || got[0].ID != "alice-phone" {
		t.Fatalf("case-insensitive search failed: %v", got)
	}
	if got := d.Search("laptop"); len(got) != 1 {
		t.Fatalf("id substring search failed: %v", got)
	}
}

func TestPresenceQueryUnknownPeer(t *testing.T) {
	d, clk := newTestDir()

	typing := true
	d.Register("p1", nil)
	d.UpdatePresence("p1", &typing, nil, nil)
	clk.Add(2 * time.Second)

	res := d.QueryPresence([]string{"p1", "ghost"})

	p1 := res["p1"]
	if !p1.Online || !p1.Typing || p1.LastSeenSeconds != 2 {
		t.Fatalf("unexpected p1 presence: %+v", p1)
	}

	ghost, ok := res["ghost"]
	if !ok {
		t.Fatal("unknown peer must still appear in the result")
	}
	if ghost.Online || ghost.LastSeenSeconds != 0 {
		t.Fatalf("unknown peer must be {online:false, lastSeenSeconds:0}, got %+v", ghost)
	}
}

func TestPresenceUpdateMerges(t *testing.T) {
	d, _ := newTestDir()

	typing, recording := true, true
	chat := "chat-9"
	d.UpdatePresence("p1", &typing, nil, &chat)
	d.UpdatePresence("p1", nil, &recording, nil)

	res := d.QueryPresence([]string{"p1"})["p1"]
	if !res.Typing || !res.Recording || res.ChatID != "chat-9" {
		t.Fatalf("merge lost fields: %+v", res)
	}

	typing = false
	d.UpdatePresence("p1", &typing, nil, nil)
	res = d.QueryPresence([]string{"p1"})["p1"]
	if res.Typing || !res.Recording {
		t.Fatalf("partial update clobbered other fields: %+v", res)
	}
}
