package acd

import "time"

// Priority is the scheduling priority assigned to both the timer and
// the socket watcher of an instance (spec.md §4.3). Its meaning is
// reactor-specific; the default epoll-based reactor in
// internal/reactor accepts it but ignores it: dispatch order does not
// depend on priority.
type Priority int

// Default priority used when the caller does not set one explicitly.
const DefaultPriority Priority = 0

// TimerHandle is returned by Reactor.AddTimer. Releasing it cancels
// the timer if it has not already fired.
type TimerHandle interface {
	Release()
}

// IOHandle is returned by Reactor.AddIO. Releasing it deregisters the
// watcher.
type IOHandle interface {
	Release()
}

// Reactor abstracts the two primitives the state machine needs from an
// event loop (spec.md §4.3): a one-shot timer and a persistent
// readable-fd watcher. Exactly one timer and one IO watcher exist per
// running instance (spec.md §3 invariant 2); every call that schedules
// a new timer first releases any timer it previously obtained.
type Reactor interface {
	// AddTimer schedules callback to run once at the absolute
	// monotonic instant deadline, at the given priority. desc is a
	// short debug label (spec.md §4.3: "should carry a debug
	// description").
	AddTimer(deadline time.Time, priority Priority, desc string, callback func()) TimerHandle
	// AddIO registers callback to run whenever fd becomes readable, at
	// the given priority, persisting until the returned handle is
	// released.
	AddIO(fd int, priority Priority, desc string, callback func()) IOHandle
}
