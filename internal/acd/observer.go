package acd

import "time"

// Observer receives diagnostic signals about an instance's low-level
// wire activity. Unlike Callback, these are not part of the
// client-facing BIND/CONFLICT/STOP notification contract (spec.md
// §6) — they exist so a caller can wire metrics or tracing without
// widening that contract. A nil Observer (the default) is a no-op.
//
// Observer methods are invoked synchronously while the instance's
// mutex is held, unlike Callback. Implementations must not call back
// into the Detector that holds them; a metrics counter increment is
// the intended use, not anything that touches the instance.
type Observer interface {
	// ProbeSent fires after each ARP probe is transmitted.
	ProbeSent(address uint32)
	// AnnounceSent fires after each ARP announcement is transmitted,
	// including a defensive re-announce sent from RUNNING.
	AnnounceSent(address uint32)
	// RateLimited fires when the STARTED handler engages the
	// MAX_CONFLICTS backoff instead of probing immediately.
	RateLimited(address uint32)
	// Bound fires once, when the first announcement of a successful
	// claim is sent, with the elapsed time since Start.
	Bound(address uint32, latency time.Duration)
}

// SetObserver records the diagnostic observer. Passing nil disables
// diagnostic signals.
func (d *Detector) SetObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = o
}

func (d *Detector) probeSentLocked() {
	if d.observer != nil {
		d.observer.ProbeSent(d.address)
	}
}

func (d *Detector) announceSentLocked() {
	if d.observer != nil {
		d.observer.AnnounceSent(d.address)
	}
}

func (d *Detector) rateLimitedLocked() {
	if d.observer != nil {
		d.observer.RateLimited(d.address)
	}
}

func (d *Detector) boundLocked(latency time.Duration) {
	if d.observer != nil {
		d.observer.Bound(d.address, latency)
	}
}
