package rolesync

import (
	"testing"
	"time"
)

func TestCooldownTracker(t *testing.T) {
	now := time.Now()
	tracker := NewCooldownTracker(5 * time.Minute)
	tracker.clock = func() time.Time { return now }

	ok, _ := tracker.Check("g1", "u1")
	if !ok {
		t.Fatal("first check must pass")
	}

	ok, remaining := tracker.Check("g1", "u1")
	if ok {
		t.Fatal("second check within ttl must fail")
	}
	if remaining <= 0 || remaining > 5*time.Minute {
		t.Fatalf("remaining = %v", remaining)
	}

	// a different member is unaffected
	if ok, _ := tracker.Check("g1", "u2"); !ok {
		t.Fatal("other member must not share the cooldown")
	}
	// same member in another guild is unaffected
	if ok, _ := tracker.Check("g2", "u1"); !ok {
		t.Fatal("other guild must not share the cooldown")
	}

	now = now.Add(5*time.Minute + time.Second)
	if ok, _ := tracker.Check("g1", "u1"); !ok {
		t.Fatal("check after expiry must pass")
	}
}

func TestCooldownTrackerReset(t *testing.T) {
	tracker := NewCooldownTracker(time.Hour)
	tracker.Check("g1", "u1")
	tracker.Reset("g1", "u1")
	if ok, _ := tracker.Check("g1", "u1"); !ok {
		t.Fatal("check after reset must pass")
	}
}

func TestCooldownTrackerZeroTTL(t *testing.T) {
	tracker := NewCooldownTracker(0)
	for i := 0; i < 3; i++ {
		if ok, _ := tracker.Check("g1", "u1"); !ok {
			t.Fatal("zero ttl disables cooldowns")
		}
	}
}

func TestCooldownTrackerSweep(t *testing.T) {
	now := time.Now()
	tracker := NewCooldownTracker(time.Minute)
	tracker.clock = func() time.Time { return now }

	tracker.Check("g1", "u1")
	tracker.Check("g1", "u2")
	if n := tracker.Sweep(); n != 0 {
		t.Fatalf("Sweep before expiry = %d, want 0", n)
	}

	now = now.Add(2 * time.Minute)
	if n := tracker.Sweep(); n != 2 {
		t.Fatalf("Sweep after expiry = %d, want 2", n)
	}
}
