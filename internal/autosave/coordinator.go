// Package autosave batches rapid edits into single writes. A Coordinator
// debounces saves per logical key and never runs two saves for the same key
// at once.
package autosave

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle of a single key.
type State int

const (
	StateIdle State = iota
	StatePending
	StateInFlight
	StateError
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// SaveFunc performs the remote write. It should read the caller's latest
// state when invoked rather than capturing a snapshot at schedule time.
type SaveFunc func(ctx context.Context) error

// Observer receives lifecycle notifications, e.g. for metrics.
type Observer interface {
	Debounced(key string)
	SaveStarted(key string)
	SaveSettled(key string, err error, elapsed time.Duration)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithLogger sets the logger used for save failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithSettledHook registers a callback invoked after every save attempt,
// including timer-driven ones that have no caller waiting on them.
func WithSettledHook(fn func(key string, err error)) Option {
	return func(c *Coordinator) { c.onSettled = fn }
}

// WithContext sets the context passed to timer-driven saves.
func WithContext(ctx context.Context) Option {
	return func(c *Coordinator) { c.ctx = ctx }
}

type entry struct {
	state State
	timer Timer
	// gen invalidates timers that fire after being superseded.
	gen  uint64
	save SaveFunc
	// rerun is set when an edit arrives while a save is in flight.
	rerun  bool
	err    error
	flight *flight
}

// flight is one running save. done closes once err is set.
type flight struct {
	done chan struct{}
	err  error
}

// Coordinator owns the debounce timers for a set of keys. Instances are
// independent of each other.
type Coordinator struct {
	delay     time.Duration
	clock     Clock
	logger    *slog.Logger
	observer  Observer
	onSettled func(key string, err error)
	ctx       context.Context

	mu      sync.Mutex
	entries map[string]*entry
}

// New returns a Coordinator that waits delay after the last ScheduleSave
// before saving.
func New(delay time.Duration, opts ...Option) *Coordinator {
	c := &Coordinator{
		delay:   delay,
		clock:   realClock{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ctx:     context.Background(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Delay returns the debounce window.
func (c *Coordinator) Delay() time.Duration {
	return c.delay
}

// ScheduleSave (re)starts the debounce timer for key. If a save for key is
// in flight, fn runs in a new debounce cycle once that save settles.
func (c *Coordinator) ScheduleSave(key string, fn SaveFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	e.save = fn
	switch e.state {
	case StateInFlight:
		e.rerun = true
		c.debounced(key)
		return
	case StatePending:
		e.timer.Stop()
		c.debounced(key)
	}
	c.armLocked(key, e)
}

// Cancel drops the pending save for key. It reports whether anything was
// dropped. A save already in flight is not interrupted.
func (c *Coordinator) Cancel(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelLocked(key)
}

// CancelAll drops every pending save.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		c.cancelLocked(key)
	}
}

// Flush runs the save for key now. fn replaces any pending save; when fn is
// nil the pending save is used, and Flush is a no-op if there is none.
// A save already in flight for key is waited for first; if nothing is left
// to run afterwards, that save's error is returned. Errors are returned
// unchanged.
func (c *Coordinator) Flush(ctx context.Context, key string, fn SaveFunc) error {
	var waitErr error
	c.mu.Lock()
	for {
		e, ok := c.entries[key]
		if !ok {
			if fn == nil {
				c.mu.Unlock()
				return nil
			}
			e = c.entryLocked(key)
		}
		if e.state == StateInFlight {
			if fn != nil {
				e.save = fn
				e.rerun = true
			}
			f := e.flight
			c.mu.Unlock()
			select {
			case <-f.done:
				waitErr = f.err
			case <-ctx.Done():
				return ctx.Err()
			}
			c.mu.Lock()
			continue
		}

		if fn == nil {
			fn = e.save
		}
		if fn == nil {
			c.mu.Unlock()
			return waitErr
		}
		if e.state == StatePending {
			e.timer.Stop()
		}
		e.save = fn
		run := c.beginLocked(e)
		c.mu.Unlock()

		err := c.run(ctx, key, run)
		c.settle(key, err)
		return err
	}
}

// State returns the current state of key.
func (c *Coordinator) State(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.state
	}
	return StateIdle
}

// Err returns the last save error for key, cleared by the next successful save.
func (c *Coordinator) Err(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.err
	}
	return nil
}

func (c *Coordinator) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

func (c *Coordinator) armLocked(key string, e *entry) {
	e.gen++
	gen := e.gen
	e.state = StatePending
	e.timer = c.clock.AfterFunc(c.delay, func() { c.fire(key, gen) })
}

func (c *Coordinator) cancelLocked(key string) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	switch e.state {
	case StatePending:
		e.timer.Stop()
		e.timer = nil
		e.gen++
		e.save = nil
		e.state = StateIdle
		return true
	case StateInFlight:
		if e.rerun {
			e.rerun = false
			e.save = nil
			return true
		}
	}
	return false
}

// beginLocked moves e to InFlight and returns the save to run.
func (c *Coordinator) beginLocked(e *entry) SaveFunc {
	fn := e.save
	e.save = nil
	e.rerun = false
	e.timer = nil
	e.gen++
	e.state = StateInFlight
	e.flight = &flight{done: make(chan struct{})}
	return fn
}

func (c *Coordinator) fire(key string, gen uint64) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.state != StatePending || e.gen != gen {
		c.mu.Unlock()
		return
	}
	fn := c.beginLocked(e)
	c.mu.Unlock()

	err := c.run(c.ctx, key, fn)
	c.settle(key, err)
}

func (c *Coordinator) run(ctx context.Context, key string, fn SaveFunc) error {
	if c.observer != nil {
		c.observer.SaveStarted(key)
	}
	start := time.Now()
	err := fn(ctx)
	if c.observer != nil {
		c.observer.SaveSettled(key, err, time.Since(start))
	}
	if err != nil {
		c.logger.WarnContext(ctx, "save failed", slog.String("key", key), slog.Any("error", err))
	}
	return err
}

func (c *Coordinator) settle(key string, err error) {
	c.mu.Lock()
	e := c.entries[key]
	e.err = err
	e.state = StateIdle
	if err != nil {
		e.state = StateError
	}
	e.flight.err = err
	close(e.flight.done)
	e.flight = nil
	if e.rerun && e.save != nil {
		c.armLocked(key, e)
	}
	e.rerun = false
	hook := c.onSettled
	c.mu.Unlock()

	if hook != nil {
		hook(key, err)
	}
}

func (c *Coordinator) debounced(key string) {
	if c.observer != nil {
		c.observer.Debounced(key)
	}
}
