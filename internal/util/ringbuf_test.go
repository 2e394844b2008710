package util

import "testing"

func TestRingBufferOverflow(t *testing.T) {
	r := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	if r.Len() != 3 {
		t.Fatalf("expected len 3, got %d", r.Len())
	}

	got := r.Snapshot()
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRingBufferDrain(t *testing.T) {
	r := NewRingBuffer[string](4)
	r.Push("a")
	r.Push("b")

	out := r.Drain()
	if len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Fatalf("unexpected drain result: %v", out)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty buffer after drain, got %d", r.Len())
	}
	if out := r.Drain(); len(out) != 0 {
		t.Fatalf("second drain should be empty, got %v", out)
	}

	// Buffer is still usable after a drain
	r.Push("c")
	if got := r.Snapshot(); len(got) != 1 || got[0] != "c" {
		t.Fatalf("push after drain broken: %v", got)
	}
}

func TestRingBufferDropWhile(t *testing.T) {
	r := NewRingBuffer[int](5)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	dropped := r.DropWhile(func(v int) bool { return v < 3 })
	if dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}
	got := r.Snapshot()
	if len(got) != 3 || got[0] != 3 {
		t.Fatalf("unexpected remainder: %v", got)
	}

	// Predicate matching nothing drops nothing
	if n := r.DropWhile(func(int) bool { return false }); n != 0 {
		t.Fatalf("expected 0 dropped, got %d", n)
	}
}
