package group

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newTestRegistry(logCap int) (*Registry, *clock.Mock) {
	clk := clock.NewMock()
	return NewRegistry(clk, logCap), clk
}

func TestCreateAndJoin(t *testing.T) {
	r, _ := newTestRegistry(500)

	id, err := r.Create("Test", "o1", "", map[string]any{"key": "opaque"})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty group id")
	}

	info, err := r.Join(id, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if info.MemberCount != 2 {
		t.Fatalf("owner + m1 expected, memberCount=%d", info.MemberCount)
	}
	if info.KeyBlob == nil {
		t.Fatal("join must return the group key blob")
	}

	// Join is idempotent
	info, err = r.Join(id, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if info.MemberCount != 2 {
		t.Fatalf("duplicate join changed cardinality: %d", info.MemberCount)
	}
}

func TestJoinUnknownGroup(t *testing.T) {
	r, _ := newTestRegistry(500)
	if _, err := r.Join("nope", "m1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLeaveIdempotent(t *testing.T) {
	r, _ := newTestRegistry(500)
	id, _ := r.Create("Test", "o1", "", nil)
	r.Join(id, "m1")

	if err := r.Leave(id, "m1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Leave(id, "m1"); err != nil {
		t.Fatalf("second leave must be a no-op, got %v", err)
	}
	if err := r.Leave(id, "never-joined"); err != nil {
		t.Fatalf("leaving without membership must be a no-op, got %v", err)
	}

	info, _ := r.Info(id)
	if info.MemberCount != 1 {
		t.Fatalf("expected only owner left, got %d", info.MemberCount)
	}
}

func TestUsernameCollision(t *testing.T) {
	r, _ := newTestRegistry(500)

	if _, err := r.Create("One", "o1", "club", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("Two", "o2", "club", nil); err != ErrUsernameTaken {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	// Case-sensitive exact match: different case is a different username
	if _, err := r.Create("Three", "o3", "Club", nil); err != nil {
		t.Fatalf("case-different username must be allowed, got %v", err)
	}
}

func TestLogCapEvictsOldest(t *testing.T) {
	r, clk := newTestRegistry(500)
	id, _ := r.Create("Busy", "o1", "", nil)

	for i := 0; i < 520; i++ {
		clk.Add(time.Millisecond)
		if _, err := r.Send(id, "o1", fmt.Sprintf("m%d", i), "text"); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := r.Poll(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 500 {
		t.Fatalf("log must cap at 500, got %d", len(msgs))
	}
	if msgs[0].Content != "m20" {
		t.Fatalf("oldest-first eviction broken, first=%v", msgs[0].Content)
	}
}

func TestPollSince(t *testing.T) {
	r, clk := newTestRegistry(500)
	id, _ := r.Create("Test", "o1", "", nil)

	r.Send(id, "o1", "early", "text")
	cut := clk.Now().UnixMilli()
	clk.Add(time.Second)
	r.Send(id, "o1", "late", "text")

	// timestamp > since is strict: the "early" message at exactly cut is excluded
	msgs, _ := r.Poll(id, cut)
	if len(msgs) != 1 || msgs[0].Content != "late" {
		t.Fatalf("since filter wrong: %+v", msgs)
	}
}

func TestPollSameTimestampNoOrderingContract(t *testing.T) {
	r, _ := newTestRegistry(500)
	id, _ := r.Create("Test", "o1", "", nil)

	// Frozen clock: every message shares one timestamp. All must be
	// returned; their relative order is unspecified.
	want := map[string]bool{}
	for i := 0; i < 5; i++ {
		content := fmt.Sprintf("m%d", i)
		want[content] = true
		r.Send(id, "o1", content, "text")
	}

	msgs, _ := r.Poll(id, 0)
	if len(msgs) != 5 {
		t.Fatalf("expected all 5 same-timestamp messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		if !want[m.Content.(string)] {
			t.Fatalf("unexpected message %v", m.Content)
		}
	}
}

func TestSearch(t *testing.T) {
	r, _ := newTestRegistry(500)
	r.Create("Go Enjoyers", "o1", "golang", nil)
	r.Create("Rustaceans", "o2", "rustlang", nil)

	if got := r.Search("GO"); len(got) != 1 || got[0].Name != "Go Enjoyers" {
		t.Fatalf("name search failed: %+v", got)
	}
	if got := r.Search("lang"); len(got) != 2 {
		t.Fatalf("username search failed: %+v", got)
	}
	for _, g := range r.Search("lang") {
		if g.KeyBlob != nil {
			t.Fatal("search must never expose the key blob")
		}
	}
}
