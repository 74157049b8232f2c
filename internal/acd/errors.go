package acd

import "errors"

// Configuration and lifecycle errors returned synchronously by the
// setters and by Start. None of these represent a running-instance
// failure — those are logged and surfaced as a STOP notification
// instead (see §7 of the design: fatal errors are the sole escalation
// path once started).
var (
	// ErrBusy is returned by a configuration setter, or by Start, when
	// the instance is not in INIT.
	ErrBusy = errors.New("acd: instance is not in INIT state")
	// ErrInvalid is returned for a structurally invalid argument (zero
	// ifindex, nil/zero MAC, zero address), and by Start when ifindex,
	// MAC or address has not been set.
	ErrInvalid = errors.New("acd: invalid argument")
	// ErrNotConfigured is returned by Start when no reactor has been
	// attached.
	ErrNotConfigured = errors.New("acd: instance is missing required configuration")
	// ErrReactorAttached is returned by AttachEvent when a reactor is
	// already attached.
	ErrReactorAttached = errors.New("acd: reactor already attached")
	// ErrUnsupported is returned when AttachEvent is asked to create a
	// default reactor on a platform with no built-in Reactor
	// implementation (the production reactor is Linux-only; see
	// internal/reactor).
	ErrUnsupported = errors.New("acd: no default reactor available on this platform")
)
