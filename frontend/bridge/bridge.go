// Package bridge drives a sandboxed shader renderer from externally rendered
// controls. A Bridge owns at most one sandbox at a time and pushes the full
// parameter state into it; pushes are fire-and-forget.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"shaderland/backend/shared"
)

// State of the renderer.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unloaded"
	}
}

// Defaults for Options.
const (
	DefaultLoadTimeout = 10 * time.Second
	DefaultSettleDelay = 100 * time.Millisecond
)

var (
	// ErrLoadTimeout is the failure recorded when a document does not finish
	// loading within the load timeout.
	ErrLoadTimeout   = errors.New("renderer load timed out")
	ErrClosed        = errors.New("bridge closed")
	ErrNotFailed     = errors.New("retry is only possible after a failed load")
	ErrNothingLoaded = errors.New("no document loaded")
)

// LoadError wraps a failure reported by the sandbox while loading.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "renderer failed to load: " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// Options tune a Bridge. Zero values select the defaults.
type Options struct {
	LoadTimeout time.Duration
	SettleDelay time.Duration
	Clock       Clock
	Logger      *zap.Logger
	// OnStateChange is called after every transition, outside the bridge lock.
	OnStateChange func(State, error)
}

// Bridge is the control channel of one renderer.
type Bridge struct {
	factory Factory
	opts    Options
	log     *zap.Logger

	mu      sync.Mutex
	state   State
	err     error
	html    string
	gen     uint64
	sandbox Sandbox
	timers  []Timer
	panel   *Panel
	closed  bool

	// settled is closed when a load leaves StateLoading; waiting reports
	// whether it is still open.
	settled chan struct{}
	waiting bool
}

type transition struct {
	state State
	err   error
}

// New returns an unloaded bridge.
func New(factory Factory, opts Options) *Bridge {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Bridge{
		factory: factory,
		opts:    opts,
		log:     opts.Logger.Named("bridge"),
		settled: make(chan struct{}),
		waiting: true,
	}
}

// State returns the current state and the failure, if any.
func (b *Bridge) State() (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.err
}

// Panel returns the bound controls, or nil before Bind.
func (b *Bridge) Panel() *Panel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.panel
}

// Load discards any current sandbox and starts loading html in a fresh one.
func (b *Bridge) Load(html string) error {
	return b.load(func() (string, error) { return html, nil })
}

// load checks and starts a load under one lock acquisition; document
// returns the html to load or refuses the load.
func (b *Bridge) load(document func() (string, error)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	html, err := document()
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.releaseLocked()
	b.gen++
	gen := b.gen
	b.html = html
	if !b.waiting {
		b.settled = make(chan struct{})
		b.waiting = true
	}
	notes := []transition{b.setLocked(StateLoading, nil)}
	b.mu.Unlock()
	b.notify(notes)

	sb, err := b.factory.Open(html, func(loadErr error) { b.loaded(gen, loadErr) })

	b.mu.Lock()
	notes = nil
	if err != nil {
		if gen == b.gen && !b.closed {
			notes = []transition{b.failLocked(&LoadError{Err: err})}
		}
		b.mu.Unlock()
		b.notify(notes)
		return nil
	}
	if gen != b.gen || b.closed || b.state == StateFailed {
		// superseded, closed, or failed while opening
		b.mu.Unlock()
		closeSandbox(b.log, sb)
		return nil
	}
	b.sandbox = sb
	if b.state == StateLoading {
		b.timers = append(b.timers, b.opts.Clock.AfterFunc(b.opts.LoadTimeout, func() { b.timedOut(gen) }))
	}
	b.mu.Unlock()
	return nil
}

// Retry loads the same document again after a failure.
func (b *Bridge) Retry() error {
	return b.load(func() (string, error) {
		if b.state != StateFailed {
			return "", ErrNotFailed
		}
		return b.html, nil
	})
}

// Reload replaces the sandbox with a fresh one running the same document.
func (b *Bridge) Reload() error {
	return b.load(func() (string, error) {
		if b.state == StateUnloaded {
			return "", ErrNothingLoaded
		}
		return b.html, nil
	})
}

// Bind creates one bound control per parameter of cfg, replacing any previous
// binding. A ready renderer receives the new full state at once.
func (b *Bridge) Bind(cfg shared.ControlConfig) (*Panel, error) {
	panel, err := NewPanel(cfg)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.panel = panel
	if b.state == StateReady {
		b.pushLocked()
	}
	b.mu.Unlock()
	return panel, nil
}

// Set edits one control and pushes the full parameter mapping.
func (b *Bridge) Set(name string, value interface{}) error {
	return b.edit(func(p *Panel) error { return p.Set(name, value) })
}

// SetString is Set with textual input.
func (b *Bridge) SetString(name, text string) error {
	return b.edit(func(p *Panel) error { return p.SetString(name, text) })
}

func (b *Bridge) edit(apply func(*Panel) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.panel == nil {
		return errors.New("no controls bound")
	}
	if err := apply(b.panel); err != nil {
		return err
	}
	if b.state == StateReady {
		b.pushLocked()
	}
	return nil
}

// Wait blocks until the current load settles as Ready or Failed.
func (b *Bridge) Wait(ctx context.Context) (State, error) {
	b.mu.Lock()
	ch := b.settled
	b.mu.Unlock()

	select {
	case <-ch:
		return b.State()
	case <-ctx.Done():
		return StateLoading, ctx.Err()
	}
}

// Sandbox returns the live sandbox, or nil.
func (b *Bridge) Sandbox() Sandbox {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sandbox
}

// Close releases the sandbox and stops all timers.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.releaseLocked()
	notes := []transition{b.setLocked(StateUnloaded, nil)}
	b.mu.Unlock()
	b.notify(notes)
	return nil
}

func (b *Bridge) loaded(gen uint64, loadErr error) {
	b.mu.Lock()
	if gen != b.gen || b.closed || b.state != StateLoading {
		b.mu.Unlock()
		return
	}
	var notes []transition
	if loadErr != nil {
		notes = append(notes, b.failLocked(&LoadError{Err: loadErr}))
	} else {
		b.stopTimersLocked()
		notes = append(notes, b.setLocked(StateReady, nil))
		b.timers = append(b.timers, b.opts.Clock.AfterFunc(b.opts.SettleDelay, func() { b.settledPush(gen) }))
	}
	b.mu.Unlock()
	b.notify(notes)
}

func (b *Bridge) timedOut(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || b.closed || b.state != StateLoading {
		b.mu.Unlock()
		return
	}
	notes := []transition{b.failLocked(ErrLoadTimeout)}
	b.mu.Unlock()
	b.notify(notes)
}

func (b *Bridge) settledPush(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.closed || b.state != StateReady {
		return
	}
	b.pushLocked()
}

// pushLocked posts the full state. Delivery failures are logged and dropped;
// the next push carries the complete state again.
func (b *Bridge) pushLocked() {
	if b.sandbox == nil || b.panel == nil {
		return
	}
	msg := UpdateParams(b.panel.Params())
	if err := b.sandbox.Post(msg); err != nil {
		b.log.Debug("push dropped", zap.Error(err))
	}
}

func (b *Bridge) failLocked(err error) transition {
	b.log.Warn("renderer failed", zap.Error(err))
	b.releaseLocked()
	return b.setLocked(StateFailed, err)
}

func (b *Bridge) setLocked(s State, err error) transition {
	prev := b.state
	b.state, b.err = s, err
	if s != StateLoading && b.waiting {
		close(b.settled)
		b.waiting = false
	}
	b.log.Debug("state", zap.Stringer("from", prev), zap.Stringer("to", s))
	return transition{state: s, err: err}
}

// releaseLocked stops timers and closes the sandbox. It runs on every exit
// from a load: replacement, failure, timeout and teardown.
func (b *Bridge) releaseLocked() {
	b.stopTimersLocked()
	if b.sandbox != nil {
		closeSandbox(b.log, b.sandbox)
		b.sandbox = nil
	}
}

func (b *Bridge) stopTimersLocked() {
	for _, t := range b.timers {
		t.Stop()
	}
	b.timers = nil
}

func (b *Bridge) notify(notes []transition) {
	if b.opts.OnStateChange == nil {
		return
	}
	for _, n := range notes {
		b.opts.OnStateChange(n.state, n.err)
	}
}

func closeSandbox(log *zap.Logger, sb Sandbox) {
	if err := sb.Close(); err != nil {
		log.Debug("sandbox close failed", zap.Error(err))
	}
}

// String describes the bridge for logs.
func (b *Bridge) String() string {
	s, err := b.State()
	if err != nil {
		return fmt.Sprintf("bridge(%s: %v)", s, err)
	}
	return fmt.Sprintf("bridge(%s)", s)
}
