package diag

import (
	"testing"
	"time"
)

func TestNextBackoffGrowsAndCaps(t *testing.T) {
	max := 2 * time.Second
	cur := 0 * time.Millisecond
	for i := 0; i < 10; i++ {
		cur = next(cur, max)
		if cur <= 0 {
			t.Fatalf("backoff must be positive, got %v", cur)
		}
		if cur > max+max/4+50*time.Millisecond {
			t.Fatalf("backoff %v exceeds max+jitter bound", cur)
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	tap := New(Options{Port: 0})
	ch := tap.Subscribe()
	tap.broadcast([]byte("hello"))
	select {
	case got := <-ch:
		if string(got) != "hello" {
			t.Fatalf("got %q, want %q", got, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
	tap.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after Unsubscribe")
	}
}
