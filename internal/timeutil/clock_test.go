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

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		// Ticker fired as expected
	case <-time.After(100 * time.Millisecond):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)

	if now := clock.Now(); !now.Equal(fixedTime) {
		t.Errorf("got %v, want %v", now, fixedTime)
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Time{})
	newTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock.Set(newTime)

	if !clock.Now().Equal(newTime) {
		t.Errorf("got %v, want %v", clock.Now(), newTime)
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(90 * time.Second)

	want := start.Add(90 * time.Second)
	if !clock.Now().Equal(want) {
		t.Errorf("got %v, want %v", clock.Now(), want)
	}
}

func TestMockClock_SetDoesNotFireTickers(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	clock.Set(time.Unix(2000, 0))

	select {
	case <-ticker.C():
		t.Error("Set fired the ticker")
	default:
	}
}

func TestMockTicker_FiresOnAdvance(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	// not yet due
	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its period elapsed")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case tick := <-ticker.C():
		if !tick.Equal(time.Unix(1001, 0)) {
			t.Errorf("tick at %v, want %v", tick, time.Unix(1001, 0))
		}
	default:
		t.Fatal("ticker did not fire at its period")
	}
}

func TestMockTicker_ReschedulesAfterFiring(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	clock.Advance(time.Second)
	<-ticker.C()

	// next tick is due one interval after the last fire
	clock.Advance(999 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before the next period elapsed")
	default:
	}

	clock.Advance(time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire on the next period")
	}
}

func TestMockTicker_StopSuppressesFiring(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()

	clock.Advance(5 * time.Second)

	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}

func TestMockTicker_DropsTickWhenChannelFull(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	// two periods without a reader; the buffered channel holds one
	clock.Advance(time.Second)
	clock.Advance(time.Second)

	<-ticker.C()
	select {
	case <-ticker.C():
		t.Error("second tick should have been dropped")
	default:
	}
}

func TestMockTicker_Trigger(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Hour).(*MockTicker)
	defer ticker.Stop()

	stamp := time.Unix(42, 0)
	ticker.Trigger(stamp)

	select {
	case tick := <-ticker.C():
		if !tick.Equal(stamp) {
			t.Errorf("tick at %v, want %v", tick, stamp)
		}
	default:
		t.Fatal("Trigger did not deliver a tick")
	}
}

func TestMockClock_ConcurrentAccess(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	done := make(chan struct{})

	go func() {
		for i := 0; i < 100; i++ {
			clock.Advance(time.Millisecond)
		}
		close(done)
	}()

	for i := 0; i < 100; i++ {
		clock.Now()
	}
	<-done

	want := time.Unix(0, 0).Add(100 * time.Millisecond)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("got %v after concurrent advances, want %v", got, want)
	}
}
