package sim

import (
	"context"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

// HaltTick is the virtual time a halted platform idles per Runner
// iteration.
const HaltTick = time.Second

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock sets the wall clock used for pacing.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithSpeed sets how many times faster than real time the simulation
// runs. Zero runs unpaced.
func WithSpeed(speed float64) RunnerOption {
	return func(r *Runner) { r.speed = speed }
}

// WithUntil stops the Runner once d of virtual time has passed.
func WithUntil(d time.Duration) RunnerOption {
	return func(r *Runner) { r.until = d }
}

type command struct {
	fn   func(*Simulator)
	done chan struct{}
}

// Runner drives a Simulator from its own goroutine. Other goroutines reach
// the simulator only through Do, which runs between loop iterations.
type Runner struct {
	sim   *Simulator
	clock clock.Clock
	speed float64
	until time.Duration

	cmds  chan command
	steps atomic.Int64
}

// NewRunner creates a Runner pacing sim at real time.
func NewRunner(sim *Simulator, opts ...RunnerOption) *Runner {
	r := &Runner{
		sim:   sim,
		clock: clock.RealClock{},
		speed: 1,
		cmds:  make(chan command),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run steps the simulator until ctx is done, the virtual time limit is
// reached, or a step fails.
func (r *Runner) Run(ctx context.Context) error {
	start := r.sim.Now()
	for {
		if r.until > 0 && r.sim.Now()-start >= r.until {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-r.cmds:
			c.fn(r.sim)
			close(c.done)
			continue
		default:
		}

		before := r.sim.Now()
		var err error
		if r.sim.Platform().Halted() {
			err = r.sim.RunFor(HaltTick)
		} else {
			_, err = r.sim.Step()
		}
		if err != nil {
			return err
		}
		r.steps.Add(1)

		if err := r.pace(ctx, r.sim.Now()-before); err != nil {
			return err
		}
	}
}

// pace waits the wall time matching virtual, serving commands meanwhile.
func (r *Runner) pace(ctx context.Context, virtual time.Duration) error {
	if r.speed <= 0 || virtual <= 0 {
		return nil
	}
	wait := time.Duration(float64(virtual) / r.speed)
	if wait <= 0 {
		return nil
	}
	deadline := r.clock.After(wait)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-r.cmds:
			c.fn(r.sim)
			close(c.done)
		case <-deadline:
			return nil
		}
	}
}

// Do runs fn on the Runner goroutine and waits for it to finish.
func (r *Runner) Do(ctx context.Context, fn func(*Simulator)) error {
	c := command{fn: fn, done: make(chan struct{})}
	select {
	case r.cmds <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Steps returns the number of completed loop iterations.
func (r *Runner) Steps() int64 { return r.steps.Load() }
