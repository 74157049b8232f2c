package acd

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ipv4acd/ipv4acd/internal/arpwire"
)

// Detector is a single ACD instance bound to one (ifindex, MAC,
// candidate) tuple (spec.md §3). The zero value is not usable;
// construct with New.
type Detector struct {
	mu sync.Mutex

	logger *slog.Logger
	clock  Clock
	rand   Rand

	state         State
	ifindex       int
	mac           net.HardwareAddr
	address       uint32
	iteration     int
	conflictCount int
	defendWindow  time.Time
	startTime     time.Time

	observer Observer

	fd    int
	timer TimerHandle
	io    IOHandle

	reactor  Reactor
	priority Priority
	attached bool

	callback Callback
	userdata any

	refcount int

	// The five functions below wrap spec.md §6's "external interfaces"
	// — send_probe, send_announcement, and open_raw_arp_socket (plus
	// closing and reading that socket) are described there as provided
	// primitives rather than owned by the core, so they are held as
	// fields defaulting to the real
	// internal/arpwire implementations instead of being called
	// directly. Tests substitute fakes and never touch a real socket.
	openSocket     func(ifindex int, mac net.HardwareAddr, candidate uint32) (int, error)
	closeSocket    func(fd int) error
	readFrame      func(fd int) (arpwire.Frame, error)
	sendProbeFn    func(fd, ifindex int, candidate uint32, mac net.HardwareAddr) int
	sendAnnounceFn func(fd, ifindex int, candidate uint32, mac net.HardwareAddr) int
}

// New returns a fresh Detector in INIT with a reference count of 1.
func New(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		logger:         logger,
		clock:          NewSystemClock(),
		rand:           NewSystemRand(),
		state:          StateInit,
		fd:             -1,
		refcount:       1,
		openSocket:     arpwire.OpenRawARPSocket,
		closeSocket:    arpwire.CloseRawARPSocket,
		readFrame:      arpwire.ReadFrame,
		sendProbeFn:    arpwire.SendProbe,
		sendAnnounceFn: arpwire.SendAnnouncement,
	}
}

// State returns the instance's current state, for diagnostics and
// tests.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetIfindex records the network interface index to bind to. Legal
// only in INIT (spec.md §4.6).
func (d *Detector) SetIfindex(ifindex int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateInit {
		return ErrBusy
	}
	if ifindex <= 0 {
		return ErrInvalid
	}
	d.ifindex = ifindex
	return nil
}

// SetMAC records the hardware address to source frames from. Legal
// only in INIT.
func (d *Detector) SetMAC(mac net.HardwareAddr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateInit {
		return ErrBusy
	}
	if len(mac) != 6 || isZeroMAC(mac) {
		return ErrInvalid
	}
	d.mac = append(net.HardwareAddr(nil), mac...)
	return nil
}

// SetAddress records the candidate IPv4 address, in network byte
// order. Legal only in INIT.
func (d *Detector) SetAddress(addr uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateInit {
		return ErrBusy
	}
	if addr == 0 {
		return ErrInvalid
	}
	d.address = addr
	return nil
}

// AttachEvent records the reactor and scheduling priority the
// instance will use once started. If r is nil, a new default reactor
// is created (spec.md §4.6: "records reactor (new default if e
// absent)"). It is an error to attach a reactor twice without an
// intervening DetachEvent.
func (d *Detector) AttachEvent(r Reactor, priority Priority) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attached {
		return ErrReactorAttached
	}
	if r == nil {
		def, err := newDefaultReactor()
		if err != nil {
			return err
		}
		r = def
	}
	d.reactor = r
	d.priority = priority
	d.attached = true
	return nil
}

// DetachEvent releases the instance's reference to its reactor. It
// does not itself stop a running instance.
func (d *Detector) DetachEvent() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reactor = nil
	d.attached = false
}

// SetCallback records the client notification sink.
func (d *Detector) SetCallback(cb Callback, userdata any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = cb
	d.userdata = userdata
}

// Start opens the raw socket, registers the socket watcher, and
// schedules the initial (unrandomized) wakeup that drives the
// instance out of STARTED (spec.md §4.6).
//
// conflict_count is deliberately NOT reset here, despite the lifecycle
// table's "resets counters": only iteration is reset on Start.
// conflict_count must survive across Start calls for rate limiting
// (§4.4's STARTED handler and scenario S5) to mean anything — if Start
// zeroed it, the MAX_CONFLICTS check could never observe a nonzero
// value. conflict_count is cleared when rate limiting engages and when
// the first announcement of a successful claim is sent.
func (d *Detector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateInit {
		return ErrBusy
	}
	if d.ifindex <= 0 || d.address == 0 || len(d.mac) != 6 || isZeroMAC(d.mac) {
		return ErrInvalid
	}
	if !d.attached || d.reactor == nil {
		return ErrNotConfigured
	}

	fd, err := d.openSocket(d.ifindex, d.mac, d.address)
	if err != nil {
		return fmt.Errorf("acd: start: %w", err)
	}

	d.fd = fd
	d.io = d.reactor.AddIO(fd, d.priority, "acd: arp socket readable", d.onReadable)
	d.iteration = 0
	d.state = StateStarted
	d.startTime = d.clock.Now()
	d.scheduleTimerLocked(0, "acd: post-start wakeup")
	return nil
}

// Stop resets the instance to INIT and always delivers a STOP
// notification, whatever the current state (spec.md §4.6: no
// precondition).
func (d *Detector) Stop() {
	d.mu.Lock()
	d.resetLocked()
	n, _ := d.pendingNotify(EventStop)
	d.mu.Unlock()
	deliver(n)
}

// ConflictCount returns the instance's current conflict counter, for
// diagnostics and notification payloads.
func (d *Detector) ConflictCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conflictCount
}

// IsRunning reports whether the instance is outside INIT.
func (d *Detector) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state != StateInit
}

// Ref increments the reference count.
func (d *Detector) Ref() {
	d.mu.Lock()
	d.refcount++
	d.mu.Unlock()
}

// Unref decrements the reference count; the last unref fully resets
// and detaches the instance (spec.md §4.6).
func (d *Detector) Unref() {
	d.mu.Lock()
	d.refcount--
	if d.refcount > 0 {
		d.mu.Unlock()
		return
	}
	d.resetLocked()
	d.reactor = nil
	d.attached = false
	d.mu.Unlock()
}

// resetLocked releases, in order, the timer, the socket watcher, and
// the socket, then returns the instance to INIT (spec.md §5 resource
// release discipline). Callers must hold d.mu.
func (d *Detector) resetLocked() {
	if d.timer != nil {
		d.timer.Release()
		d.timer = nil
	}
	if d.io != nil {
		d.io.Release()
		d.io = nil
	}
	if d.fd >= 0 {
		d.closeSocket(d.fd)
		d.fd = -1
	}
	d.state = StateInit
	d.iteration = 0
}

func isZeroMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0 {
			return false
		}
	}
	return true
}
