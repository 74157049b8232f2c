package acd

import (
	"errors"
	"syscall"
	"time"

	"github.com/ipv4acd/ipv4acd/internal/arpwire"
)

// State is one of the seven states of the RFC 5227 automaton
// (spec.md §3, §4.4).
type State int

const (
	StateInit State = iota
	StateStarted
	StateWaitingProbe
	StateProbing
	StateWaitingAnnounce
	StateAnnouncing
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateStarted:
		return "STARTED"
	case StateWaitingProbe:
		return "WAITING_PROBE"
	case StateProbing:
		return "PROBING"
	case StateWaitingAnnounce:
		return "WAITING_ANNOUNCE"
	case StateAnnouncing:
		return "ANNOUNCING"
	case StateRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// This file resolves spec.md §9's open question literally: the
// classifier (packet.go) only ever checks the sender protocol address.
// WAITING_PROBE, PROBING and WAITING_ANNOUNCE never call Classify —
// the external socket filter has already restricted what reaches them,
// so any delivered frame in those states is treated as a conflict.
// Only ANNOUNCING and RUNNING call Classify, since there the filter
// also forwards harmless target-only matches that must be ignored.
//
// The probe re-entry threshold below reads `iteration < ProbeNum-1`
// rather than spec.md §4.4's literal `PROBE_NUM - 2`: with PROBE_NUM=3
// the literal formula sends only two probes, contradicting both the
// design note's claim that the check "fires exactly PROBE_NUM times
// total" and scenario S1's explicit "3 probes, then 2 announcements".
// `ProbeNum-1` is the threshold that actually produces PROBE_NUM
// firings and matches S1; see DESIGN.md.

// onTimer is the Reactor timer callback for every state but INIT and
// RUNNING (RUNNING schedules no timer).
func (d *Detector) onTimer() {
	d.mu.Lock()
	// The timer that invoked this callback is one-shot and has already
	// fired; clear it before running transition logic so a state that
	// schedules no further timer (RUNNING) correctly leaves none
	// pending, and so scheduleTimerLocked never tries to release an
	// already-fired handle.
	d.timer = nil
	n, pending := d.handleTimerLocked()
	d.mu.Unlock()
	if pending {
		deliver(n)
	}
}

func (d *Detector) handleTimerLocked() (notification, bool) {
	switch d.state {
	case StateStarted:
		d.enterWaitingProbeLocked()
		return noNotification, false
	case StateWaitingProbe, StateProbing:
		return d.onProbeTimerLocked()
	case StateWaitingAnnounce, StateAnnouncing:
		return d.onAnnounceTimerLocked()
	default:
		return noNotification, false
	}
}

// enterWaitingProbeLocked implements the STARTED timer handler
// (spec.md §4.4).
func (d *Detector) enterWaitingProbeLocked() {
	d.state = StateWaitingProbe
	d.iteration = 0

	if d.conflictCount >= MaxConflicts {
		d.logger.Warn("acd: rate limit engaged, delaying next probe round",
			"conflict_count", d.conflictCount)
		d.rateLimitedLocked()
		delay := RateLimitInterval + d.rand.UniformDuration(ProbeWait)
		d.conflictCount = 0
		d.scheduleTimerLocked(delay, "acd: rate-limited probe wakeup")
		return
	}
	d.scheduleTimerLocked(d.rand.UniformDuration(ProbeWait), "acd: initial probe wakeup")
}

// onProbeTimerLocked implements the WAITING_PROBE/PROBING timer
// handler (spec.md §4.4).
func (d *Detector) onProbeTimerLocked() (notification, bool) {
	if n := d.sendProbeFn(d.fd, d.ifindex, d.address, d.mac); n < 0 {
		return d.fatalLocked()
	}
	d.probeSentLocked()

	if d.iteration < ProbeNum-1 {
		d.state = StateProbing
		d.iteration++
		d.scheduleTimerLocked(ProbeMin+d.rand.UniformDuration(ProbeMax-ProbeMin), "acd: next probe wakeup")
		return noNotification, false
	}

	d.state = StateWaitingAnnounce
	d.iteration = 0
	d.scheduleTimerLocked(AnnounceWait, "acd: first announce wakeup")
	return noNotification, false
}

// onAnnounceTimerLocked implements the WAITING_ANNOUNCE/ANNOUNCING
// timer handler (spec.md §4.4).
func (d *Detector) onAnnounceTimerLocked() (notification, bool) {
	reentering := d.state == StateAnnouncing

	if reentering && d.iteration >= AnnounceNum-1 {
		d.state = StateRunning
		return noNotification, false
	}

	if n := d.sendAnnounceFn(d.fd, d.ifindex, d.address, d.mac); n < 0 {
		return d.fatalLocked()
	}
	d.announceSentLocked()

	first := d.iteration == 0 && !reentering
	if reentering {
		d.iteration++
	}
	d.state = StateAnnouncing
	d.scheduleTimerLocked(AnnounceInterval, "acd: next announce wakeup")

	if first {
		d.conflictCount = 0
		d.boundLocked(d.clock.Now().Sub(d.startTime))
		return d.pendingNotify(EventBind)
	}
	return noNotification, false
}

// onReadable is the Reactor IO callback registered for the lifetime of
// the raw socket.
func (d *Detector) onReadable() {
	f, err := d.readFrame(d.fd)
	if err != nil {
		var rerr *arpwire.ReadError
		if errors.As(err, &rerr) {
			if isTransientReadError(rerr.Err) {
				return
			}
			d.mu.Lock()
			n, pending := d.fatalLocked()
			d.mu.Unlock()
			if pending {
				deliver(n)
			}
			return
		}
		// A parse failure (short or malformed frame): silently dropped
		// per spec.md §4.2/§7.
		return
	}

	d.mu.Lock()
	n, pending := d.handlePacketLocked(f)
	d.mu.Unlock()
	if pending {
		deliver(n)
	}
}

func isTransientReadError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK) ||
		errors.Is(err, syscall.EINTR)
}

// handlePacketLocked implements the packet-received transitions of
// spec.md §4.4.
func (d *Detector) handlePacketLocked(f arpwire.Frame) (notification, bool) {
	switch d.state {
	case StateWaitingProbe, StateProbing, StateWaitingAnnounce:
		return d.conflictLocked()
	case StateAnnouncing, StateRunning:
		if !Classify(f, d.address) {
			return noNotification, false
		}
		now := d.clock.Now()
		if now.After(d.defendWindow) {
			d.defendWindow = now.Add(DefendInterval)
			if n := d.sendAnnounceFn(d.fd, d.ifindex, d.address, d.mac); n < 0 {
				return d.fatalLocked()
			}
			d.announceSentLocked()
			return noNotification, false
		}
		return d.conflictLocked()
	default:
		return noNotification, false
	}
}

// conflictLocked implements the conflict handler (spec.md §4.5).
func (d *Detector) conflictLocked() (notification, bool) {
	d.conflictCount++
	d.logger.Warn("acd: conflicting use detected, releasing address",
		"conflict_count", d.conflictCount)
	d.resetLocked()
	return d.pendingNotify(EventConflict)
}

// fatalLocked implements §7's fatal send/receive error path: behave as
// if stop() were called.
func (d *Detector) fatalLocked() (notification, bool) {
	d.logger.Error("acd: fatal I/O error, stopping instance")
	d.resetLocked()
	return d.pendingNotify(EventStop)
}

// scheduleTimerLocked releases any pending timer and schedules a new
// one at clock.Now()+delay (spec.md §9 "pending timer uniqueness").
func (d *Detector) scheduleTimerLocked(delay time.Duration, desc string) {
	if d.timer != nil {
		d.timer.Release()
		d.timer = nil
	}
	deadline := d.clock.Now().Add(delay)
	d.timer = d.reactor.AddTimer(deadline, d.priority, desc, d.onTimer)
}
