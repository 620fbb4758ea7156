package engine

import (
	"sync"
	"testing"
)

func TestSessionStoreGetOrCreate(t *testing.T) {
	ss := NewSessionStore("welcome")

	sess := ss.GetOrCreate("u1")
	if sess.UserID != "u1" {
		t.Errorf("UserID = %q, want %q", sess.UserID, "u1")
	}
	if sess.CurrentStepID != "welcome" {
		t.Errorf("CurrentStepID = %q, want %q", sess.CurrentStepID, "welcome")
	}
	if sess.Answers == nil {
		t.Error("Answers = nil, want initialized map")
	}
	if sess.CreatedAt.IsZero() || sess.UpdatedAt.IsZero() {
		t.Error("timestamps not set on creation")
	}

	// Same pointer on repeat lookups.
	if again := ss.GetOrCreate("u1"); again != sess {
		t.Error("GetOrCreate() returned a new session for an existing user")
	}
	if ss.Count() != 1 {
		t.Errorf("Count() = %d, want 1", ss.Count())
	}
}

func TestSessionStoreReset(t *testing.T) {
	ss := NewSessionStore("welcome")

	// Resetting an absent session is a no-op.
	ss.Reset("ghost")

	sess := ss.GetOrCreate("u1")
	sess.CurrentStepID = "elsewhere"
	sess.Answers["k"] = "v"

	ss.Reset("u1")
	if ss.Count() != 0 {
		t.Errorf("Count() = %d after reset, want 0", ss.Count())
	}

	fresh := ss.GetOrCreate("u1")
	if fresh.CurrentStepID != "welcome" {
		t.Errorf("CurrentStepID = %q after reset, want %q", fresh.CurrentStepID, "welcome")
	}
	if len(fresh.Answers) != 0 {
		t.Errorf("Answers = %v after reset, want empty", fresh.Answers)
	}
}

func TestSessionStorePeek(t *testing.T) {
	ss := NewSessionStore("welcome")

	if _, ok := ss.Peek("u1"); ok {
		t.Error("Peek() = true for absent user, want false")
	}
	if ss.Count() != 0 {
		t.Errorf("Count() = %d, want 0 (Peek must not create)", ss.Count())
	}

	live := ss.GetOrCreate("u1")
	live.Answers["brand"] = "iPhone"

	snap, ok := ss.Peek("u1")
	if !ok {
		t.Fatal("Peek() = false for existing user, want true")
	}
	if snap.Answers["brand"] != "iPhone" {
		t.Errorf("snapshot Answers[brand] = %q, want %q", snap.Answers["brand"], "iPhone")
	}

	// The snapshot is detached from the live session.
	snap.Answers["brand"] = "changed"
	if live.Answers["brand"] != "iPhone" {
		t.Error("mutating a Peek snapshot leaked into the live session")
	}
}

func TestSessionStoreConcurrentAccess(t *testing.T) {
	ss := NewSessionStore("welcome")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ss.GetOrCreate("shared")
		}()
		go func() {
			defer wg.Done()
			ss.Peek("shared")
			ss.Count()
		}()
	}
	wg.Wait()

	if ss.Count() != 1 {
		t.Errorf("Count() = %d, want 1", ss.Count())
	}
}
