package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)

	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_Sleep(t *testing.T) {
	clock := RealClock{}
	start := time.Now()
	clock.Sleep(5 * time.Millisecond)

	if d := time.Since(start); d < 5*time.Millisecond {
		t.Errorf("Sleep() returned after %v, expected >= 5ms", d)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(time.Time{})
	clock.Set(start)
	clock.Advance(20 * time.Millisecond)

	if want := start.Add(20 * time.Millisecond); !clock.Now().Equal(want) {
		t.Errorf("got %v, want %v", clock.Now(), want)
	}
	if d := clock.Since(start); d != 20*time.Millisecond {
		t.Errorf("Since() = %v, want 20ms", d)
	}
}

func TestMockClock_SleepAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Sleep(2 * time.Second)
	clock.Sleep(time.Millisecond)

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second || sleeps[1] != time.Millisecond {
		t.Errorf("Sleeps() = %v, want [2s 1ms]", sleeps)
	}
	if want := start.Add(2*time.Second + time.Millisecond); !clock.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", clock.Now(), want)
	}
}
