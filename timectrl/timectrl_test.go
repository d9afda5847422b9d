package timectrl

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type fakeWall struct {
	t time.Time
}

func (w *fakeWall) now() time.Time { return w.t }

func (w *fakeWall) advance(d time.Duration) { w.t = w.t.Add(d) }

func TestAcceleratedClockScalesElapsed(t *testing.T) {
	wall := &fakeWall{t: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)}
	c, err := newAcceleratedClock(100, 60, wall.now)
	if err != nil {
		t.Fatalf("newAcceleratedClock: %v", err)
	}

	wall.advance(2 * time.Second)
	if got := c.Now(); got != 220 {
		t.Fatalf("Now() = %v, want 220", got)
	}
}

func TestAcceleratedClockRebasesOnFactorChange(t *testing.T) {
	wall := &fakeWall{t: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)}
	c, err := newAcceleratedClock(0, 100, wall.now)
	if err != nil {
		t.Fatalf("newAcceleratedClock: %v", err)
	}

	wall.advance(10 * time.Second)
	before := c.Now()
	if err := c.SetAcceleration(10); err != nil {
		t.Fatalf("SetAcceleration: %v", err)
	}
	if got := c.Now(); got != before {
		t.Fatalf("Now() jumped from %v to %v on factor change", before, got)
	}

	wall.advance(time.Second)
	if got := c.Now(); got != before+10 {
		t.Fatalf("Now() = %v, want %v", got, before+10)
	}
}

func TestAcceleratedClockRejectsBadFactor(t *testing.T) {
	for _, f := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewAcceleratedClock(0, f); !errors.Is(err, ErrInvalidAcceleration) {
			t.Errorf("NewAcceleratedClock(%v) err = %v, want ErrInvalidAcceleration", f, err)
		}
	}

	c, err := NewAcceleratedClock(0, 1)
	if err != nil {
		t.Fatalf("NewAcceleratedClock: %v", err)
	}
	if err := c.SetAcceleration(0); !errors.Is(err, ErrInvalidAcceleration) {
		t.Fatalf("SetAcceleration(0) err = %v, want ErrInvalidAcceleration", err)
	}
	if got := c.Acceleration(); got != 1 {
		t.Fatalf("Acceleration() = %v after rejected change, want 1", got)
	}
}

func TestTimeControllerSetTime(t *testing.T) {
	tc, err := NewTimeController(0, time.Second, RealTime, 1)
	if err != nil {
		t.Fatalf("NewTimeController: %v", err)
	}

	tc.SetTime(42)
	if got := tc.Now(); got != 42 {
		t.Fatalf("Now() = %v, want 42", got)
	}
}

func TestTimeControllerSteppedNotifiesListeners(t *testing.T) {
	tc, err := NewTimeController(0, 100*time.Millisecond, Stepped, 10)
	if err != nil {
		t.Fatalf("NewTimeController: %v", err)
	}

	var seen []float64
	tc.AddListener(func(simTime float64) {
		seen = append(seen, simTime)
	})

	<-tc.Start(context.Background(), 4.5)

	want := []float64{1, 2, 3, 4, 5}
	if len(seen) != len(want) {
		t.Fatalf("listener saw %v, want %v", seen, want)
	}
	for i := range want {
		if math.Abs(seen[i]-want[i]) > 1e-9 {
			t.Fatalf("listener saw %v, want %v", seen, want)
		}
	}
	if got := tc.Now(); math.Abs(got-5) > 1e-9 {
		t.Fatalf("Now() = %v, want 5", got)
	}
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	tc, err := NewTimeController(0, time.Millisecond, RealTime, 1)
	if err != nil {
		t.Fatalf("NewTimeController: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, math.NaN())
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("controller did not stop after cancel")
	}
}

func TestNewTimeControllerValidates(t *testing.T) {
	if _, err := NewTimeController(0, 0, RealTime, 1); err == nil {
		t.Fatal("expected error for zero frame interval")
	}
	if _, err := NewTimeController(0, time.Second, RealTime, -2); !errors.Is(err, ErrInvalidAcceleration) {
		t.Fatalf("err = %v, want ErrInvalidAcceleration", err)
	}
}
