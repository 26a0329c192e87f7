package bridge

import "time"

// Sandbox is one isolated renderer instance running a shader document.
type Sandbox interface {
	// Post delivers a message without waiting for any acknowledgement.
	Post(msg Message) error
	// Close releases the renderer. It is safe to call more than once.
	Close() error
}

// Factory creates sandboxes. Open must return without waiting for the
// document to load; the sandbox later calls signal exactly once, with nil
// when the document has loaded or with the load error.
type Factory interface {
	Open(html string, signal func(error)) (Sandbox, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(html string, signal func(error)) (Sandbox, error)

func (f FactoryFunc) Open(html string, signal func(error)) (Sandbox, error) {
	return f(html, signal)
}

// Timer is a stoppable scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
