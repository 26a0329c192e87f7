package bridge

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"shaderland/backend/shared"
)

// opencensus, linked in through the genai client, starts a worker at init.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// manualClock fires callbacks only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

type fakeSandbox struct {
	mu     sync.Mutex
	html   string
	signal func(error)
	posts  []Message
	closed int
}

func (s *fakeSandbox) Post(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed > 0 {
		return errors.New("closed")
	}
	s.posts = append(s.posts, msg)
	return nil
}

func (s *fakeSandbox) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSandbox) Posts() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.posts...)
}

type fakeFactory struct {
	mu     sync.Mutex
	opened []*fakeSandbox
}

func (f *fakeFactory) Open(html string, signal func(error)) (Sandbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sb := &fakeSandbox{html: html, signal: signal}
	f.opened = append(f.opened, sb)
	return sb, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

func (f *fakeFactory) last() *fakeSandbox {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[len(f.opened)-1]
}

const testConfig = `{"Circle":{"radius":{"value":0.5,"min":0,"max":1},"color":{"value":"#ff0000"}},"Mode":{"shape":{"value":"circle","options":{"Circle":"circle","Square":"square"}}}}`

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func newTestBridge() (*Bridge, *fakeFactory, *manualClock, *recorder) {
	factory := &fakeFactory{}
	clock := &manualClock{}
	rec := &recorder{}
	b := New(factory, Options{Clock: clock, OnStateChange: rec.record})
	return b, factory, clock, rec
}

func TestBridgeLoadReadySettlePush(t *testing.T) {
	b, factory, clock, rec := newTestBridge()
	defer b.Close()

	_, err := b.Bind(shared.MustControlConfig(testConfig))
	require.NoError(t, err)
	require.NoError(t, b.Load("<html>one</html>"))

	state, _ := b.State()
	assert.Equal(t, StateLoading, state)

	sb := factory.last()
	sb.signal(nil)
	state, _ = b.State()
	assert.Equal(t, StateReady, state)
	assert.Empty(t, sb.Posts(), "no push before the settle delay")

	clock.Advance(DefaultSettleDelay)
	posts := sb.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "UPDATE_PARAMS", posts[0].Type)
	assert.Equal(t, map[string]interface{}{"radius": 0.5, "color": "#ff0000", "shape": "circle"}, posts[0].Params)

	// the load timeout no longer applies once ready
	clock.Advance(DefaultLoadTimeout)
	state, _ = b.State()
	assert.Equal(t, StateReady, state)

	assert.Equal(t, []State{StateLoading, StateReady}, rec.states)
}

func TestBridgeSetPushesFullState(t *testing.T) {
	b, factory, clock, _ := newTestBridge()
	defer b.Close()

	_, err := b.Bind(shared.MustControlConfig(testConfig))
	require.NoError(t, err)
	require.NoError(t, b.Load("<html></html>"))
	factory.last().signal(nil)
	clock.Advance(DefaultSettleDelay)

	require.NoError(t, b.Set("radius", 2.0))
	require.NoError(t, b.SetString("color", "blue"))
	require.NoError(t, b.Set("shape", "square"))

	posts := factory.last().Posts()
	require.Len(t, posts, 4)
	assert.Equal(t, map[string]interface{}{"radius": 1.0, "color": "#ff0000", "shape": "circle"}, posts[1].Params)
	assert.Equal(t, map[string]interface{}{"radius": 1.0, "color": "#0000ff", "shape": "square"}, posts[3].Params)

	assert.Error(t, b.Set("shape", "triangle"))
	assert.Error(t, b.Set("missing", 1))
	assert.Len(t, factory.last().Posts(), 4)
}

func TestBridgeTimeoutThenRetry(t *testing.T) {
	b, factory, clock, rec := newTestBridge()
	defer b.Close()

	require.NoError(t, b.Load("<html>slow</html>"))
	first := factory.last()

	clock.Advance(DefaultLoadTimeout)
	state, err := b.State()
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, err, ErrLoadTimeout)
	assert.Equal(t, 1, first.closed, "failed sandbox is released")

	// a late completion from the abandoned sandbox is ignored
	first.signal(nil)
	state, _ = b.State()
	assert.Equal(t, StateFailed, state)

	require.NoError(t, b.Retry())
	require.Equal(t, 2, factory.count())
	second := factory.last()
	assert.Equal(t, "<html>slow</html>", second.html)

	second.signal(nil)
	state, err = b.State()
	assert.Equal(t, StateReady, state)
	assert.NoError(t, err)

	assert.Equal(t, []State{StateLoading, StateFailed, StateLoading, StateReady}, rec.states)
}

func TestBridgeLoadFailure(t *testing.T) {
	b, factory, _, _ := newTestBridge()
	defer b.Close()

	require.NoError(t, b.Load("<html></html>"))
	factory.last().signal(errors.New("script error"))

	state, err := b.State()
	assert.Equal(t, StateFailed, state)
	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
	assert.Equal(t, 1, factory.last().closed)
}

func TestBridgeRetryRequiresFailure(t *testing.T) {
	b, factory, _, _ := newTestBridge()
	defer b.Close()

	assert.ErrorIs(t, b.Retry(), ErrNotFailed)
	assert.ErrorIs(t, b.Reload(), ErrNothingLoaded)

	require.NoError(t, b.Load("<html></html>"))
	factory.last().signal(nil)
	assert.ErrorIs(t, b.Retry(), ErrNotFailed)
}

func TestBridgeConcurrentRetryOpensOneSandbox(t *testing.T) {
	b, factory, clock, _ := newTestBridge()
	defer b.Close()

	require.NoError(t, b.Load("<html></html>"))
	clock.Advance(DefaultLoadTimeout)
	state, _ := b.State()
	require.Equal(t, StateFailed, state)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.Retry()
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrNotFailed)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, factory.count())
	state, _ = b.State()
	assert.Equal(t, StateLoading, state)
}

func TestBridgeReloadReplacesSandbox(t *testing.T) {
	b, factory, clock, _ := newTestBridge()
	defer b.Close()

	_, err := b.Bind(shared.MustControlConfig(testConfig))
	require.NoError(t, err)
	require.NoError(t, b.Load("<html></html>"))
	first := factory.last()
	first.signal(nil)

	require.NoError(t, b.Reload())
	assert.Equal(t, 1, first.closed)

	// the settle timer of the replaced sandbox must not push anywhere
	clock.Advance(DefaultSettleDelay)
	assert.Empty(t, first.Posts())

	second := factory.last()
	second.signal(nil)
	clock.Advance(DefaultSettleDelay)
	assert.Len(t, second.Posts(), 1)
}

func TestBridgeCloseReleasesEverything(t *testing.T) {
	b, factory, clock, _ := newTestBridge()

	require.NoError(t, b.Load("<html></html>"))
	require.NoError(t, b.Close())
	assert.Equal(t, 1, factory.last().closed)

	clock.Advance(DefaultLoadTimeout)
	state, _ := b.State()
	assert.Equal(t, StateUnloaded, state)
	assert.ErrorIs(t, b.Load("<html></html>"), ErrClosed)
	assert.NoError(t, b.Close())
}

func TestBridgeOpenError(t *testing.T) {
	factory := FactoryFunc(func(html string, signal func(error)) (Sandbox, error) {
		return nil, errors.New("no browser")
	})
	b := New(factory, Options{Clock: &manualClock{}})
	defer b.Close()

	require.NoError(t, b.Load("<html></html>"))
	state, err := b.State()
	assert.Equal(t, StateFailed, state)
	assert.Contains(t, err.Error(), "no browser")
}

func TestBridgeSynchronousSignal(t *testing.T) {
	var sb *fakeSandbox
	factory := FactoryFunc(func(html string, signal func(error)) (Sandbox, error) {
		sb = &fakeSandbox{html: html}
		signal(nil)
		return sb, nil
	})
	clock := &manualClock{}
	b := New(factory, Options{Clock: clock})
	defer b.Close()

	_, err := b.Bind(shared.MustControlConfig(testConfig))
	require.NoError(t, err)
	require.NoError(t, b.Load("<html></html>"))

	state, _ := b.State()
	assert.Equal(t, StateReady, state)
	clock.Advance(DefaultSettleDelay)
	assert.Len(t, sb.Posts(), 1)
}

func TestBridgeWaitWithRealClock(t *testing.T) {
	factory := &fakeFactory{}
	b := New(factory, Options{LoadTimeout: 20 * time.Millisecond, SettleDelay: time.Millisecond})
	defer b.Close()

	require.NoError(t, b.Load("<html></html>"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := b.Wait(ctx)
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, err, ErrLoadTimeout)
}
