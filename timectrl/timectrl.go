package timectrl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultAcceleration compresses a simulated day into ten wall-clock minutes.
const DefaultAcceleration = 1440.0 / 10

// ErrInvalidAcceleration is returned for non-positive or non-finite factors.
var ErrInvalidAcceleration = errors.New("acceleration must be > 0")

// SimClock gives access to simulated time in seconds.
type SimClock interface {
	Now() float64
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime derives simulated time from the monotonic wall clock scaled by
	// the acceleration factor.
	RealTime Mode = iota
	// Stepped advances by Frame*acceleration per tick as fast as the loop can
	// run, for headless runs and tests.
	Stepped
)

func (m Mode) String() string {
	if m == Stepped {
		return "stepped"
	}
	return "realtime"
}

func validAcceleration(f float64) error {
	if !(f > 0) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidAcceleration, f)
	}
	return nil
}

// AcceleratedClock maps elapsed wall time onto simulated seconds. Changing
// the factor rebases the clock so simulated time stays continuous.
type AcceleratedClock struct {
	mu sync.RWMutex

	now      func() time.Time
	baseWall time.Time
	baseSim  float64
	factor   float64
}

// NewAcceleratedClock starts a clock at startSim simulated seconds.
func NewAcceleratedClock(startSim, factor float64) (*AcceleratedClock, error) {
	return newAcceleratedClock(startSim, factor, time.Now)
}

func newAcceleratedClock(startSim, factor float64, now func() time.Time) (*AcceleratedClock, error) {
	if err := validAcceleration(factor); err != nil {
		return nil, err
	}
	return &AcceleratedClock{
		now:      now,
		baseWall: now(),
		baseSim:  startSim,
		factor:   factor,
	}, nil
}

// Now returns the current simulated time. Implements SimClock.
func (c *AcceleratedClock) Now() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nowLocked()
}

func (c *AcceleratedClock) nowLocked() float64 {
	return c.baseSim + c.now().Sub(c.baseWall).Seconds()*c.factor
}

// SetAcceleration changes the factor from the current instant on.
func (c *AcceleratedClock) SetAcceleration(factor float64) error {
	if err := validAcceleration(factor); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseSim = c.nowLocked()
	c.baseWall = c.now()
	c.factor = factor
	return nil
}

// Acceleration returns the current factor.
func (c *AcceleratedClock) Acceleration() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.factor
}

// SetTime jumps the clock to simTime.
func (c *AcceleratedClock) SetTime(simTime float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseSim = simTime
	c.baseWall = c.now()
}

// TimeController drives simulated time and notifies registered listeners
// once per frame. It implements SimClock.
type TimeController struct {
	mu    sync.RWMutex
	Frame time.Duration
	Mode  Mode

	clock       *AcceleratedClock
	currentTime float64

	listeners []func(float64)
}

// NewTimeController constructs a controller starting at start simulated
// seconds.
func NewTimeController(start float64, frame time.Duration, mode Mode, acceleration float64) (*TimeController, error) {
	if frame <= 0 {
		return nil, fmt.Errorf("frame interval must be > 0, got %s", frame)
	}
	clock, err := NewAcceleratedClock(start, acceleration)
	if err != nil {
		return nil, err
	}
	return &TimeController{
		Frame:       frame,
		Mode:        mode,
		clock:       clock,
		currentTime: start,
	}, nil
}

// Now returns the simulated time of the last frame. Implements SimClock.
func (tc *TimeController) Now() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves simulated time to t.
func (tc *TimeController) SetTime(t float64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
	tc.clock.SetTime(t)
}

// SetAcceleration changes the time factor; it applies from the next frame.
func (tc *TimeController) SetAcceleration(factor float64) error {
	return tc.clock.SetAcceleration(factor)
}

// Acceleration returns the current time factor.
func (tc *TimeController) Acceleration() float64 {
	return tc.clock.Acceleration()
}

// AddListener registers a callback invoked on every frame with the new
// simulated time. Listeners run on the controller goroutine, one at a time.
func (tc *TimeController) AddListener(fn func(float64)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the frame loop in a separate goroutine until simulated time
// passes until (unbounded when until is NaN or +Inf) or ctx is cancelled.
// The returned channel is closed when the loop exits.
func (tc *TimeController) Start(ctx context.Context, until float64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var ticks <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Frame)
			defer ticker.Stop()
			ticks = ticker.C
		}

		for {
			if ticks != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticks:
				}
			} else if ctx.Err() != nil {
				return
			}

			simTime := tc.advance()

			tc.mu.RLock()
			listeners := tc.listeners
			tc.mu.RUnlock()
			for _, fn := range listeners {
				fn(simTime)
			}

			if !math.IsNaN(until) && simTime > until {
				return
			}
		}
	}()
	return done
}

func (tc *TimeController) advance() float64 {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	switch tc.Mode {
	case Stepped:
		tc.currentTime += tc.Frame.Seconds() * tc.clock.Acceleration()
		tc.clock.SetTime(tc.currentTime)
	default:
		tc.currentTime = tc.clock.Now()
	}
	return tc.currentTime
}
