package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
)

func TestHistory_CreatesEmptySession(t *testing.T) {
	store := NewStore(time.Hour, log.NewNop())

	history := store.History("s1")
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(history))
	}
	if store.Len() != 1 {
		t.Fatalf("expected session to be created on read, have %d", store.Len())
	}
}

func TestAppend_GrowsByOneTurnInOrder(t *testing.T) {
	store := NewStore(time.Hour, log.NewNop())

	store.Append("s1", "q1", "a1")
	store.Append("s1", "q2", "a2")

	history := store.History("s1")
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	want := []Turn{{User: "q1", Assistant: "a1"}, {User: "q2", Assistant: "a2"}}
	for i, turn := range want {
		if history[i] != turn {
			t.Errorf("turn %d = %+v, want %+v", i, history[i], turn)
		}
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	store := NewStore(time.Hour, log.NewNop())
	store.Append("s1", "q1", "a1")

	history := store.History("s1")
	history[0].User = "mutated"

	if got := store.History("s1")[0].User; got != "q1" {
		t.Errorf("store history aliased by caller mutation: %q", got)
	}
}

func TestAppend_SweepsExpiredSessions(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	store := NewStore(time.Hour, log.NewNop(), WithClock(clock))

	store.Append("old", "q", "a")

	// Advance past the TTL; the next write on any session sweeps.
	now = now.Add(time.Hour + time.Second)
	store.Append("fresh", "q", "a")

	if store.Len() != 1 {
		t.Fatalf("expected expired session to be swept, have %d sessions", store.Len())
	}
	if got := store.History("old"); len(got) != 0 {
		t.Errorf("expired session should be recreated empty, got %d turns", len(got))
	}
}

func TestHistory_DoesNotExpireOnRead(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	store := NewStore(time.Hour, log.NewNop(), WithClock(clock))

	store.Append("s1", "q", "a")
	now = now.Add(2 * time.Hour)

	// Reads never sweep, so the stale history is still visible.
	if got := store.History("s1"); len(got) != 1 {
		t.Errorf("read expired a session: got %d turns, want 1", len(got))
	}
}

func TestStore_ConcurrentAppends(t *testing.T) {
	store := NewStore(time.Hour, log.NewNop())

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				store.Append("shared", fmt.Sprintf("q-%d-%d", w, i), "a")
			}
		}()
	}
	wg.Wait()

	if got := len(store.History("shared")); got != writers*perWriter {
		t.Errorf("lost appends under contention: got %d, want %d", got, writers*perWriter)
	}
}
