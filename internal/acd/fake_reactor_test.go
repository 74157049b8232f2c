package acd

import (
	"net"
	"time"

	"github.com/ipv4acd/ipv4acd/internal/arpwire"
)

// fakeClock is a Clock the test drives explicitly instead of reading
// the wall clock.
type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeRand returns 0 for every draw unless primed, making test
// schedules exact rather than merely bounded.
type fakeRand struct{ next time.Duration }

func (r *fakeRand) UniformDuration(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	return r.next
}

// fakeObserver counts the acd.Observer calls it receives and keeps the
// latency passed to Bound.
type fakeObserver struct {
	probes      int
	announces   int
	rateLimits  int
	bindLatency time.Duration
	boundCalled bool
}

func (o *fakeObserver) ProbeSent(addr uint32)    { o.probes++ }
func (o *fakeObserver) AnnounceSent(addr uint32) { o.announces++ }
func (o *fakeObserver) RateLimited(addr uint32)  { o.rateLimits++ }
func (o *fakeObserver) Bound(addr uint32, latency time.Duration) {
	o.boundCalled = true
	o.bindLatency = latency
}

// fakeTimerHandle/fakeIOHandle record whether Release was called so
// tests can assert invariant 1/2 from spec.md §3/§8.
type fakeTimerHandle struct {
	r        *fakeReactor
	callback func()
	deadline time.Time
	released bool
}

func (h *fakeTimerHandle) Release() {
	h.released = true
	if h.r.timer == h {
		h.r.timer = nil
	}
}

type fakeIOHandle struct {
	r        *fakeReactor
	callback func()
	released bool
}

func (h *fakeIOHandle) Release() {
	h.released = true
	if h.r.io == h {
		h.r.io = nil
	}
}

// fakeReactor is a manually driven Reactor: AddTimer/AddIO just record
// the single live handle (the core never has more than one of each),
// and the test fires callbacks explicitly via fireTimer/fireIO.
type fakeReactor struct {
	timer *fakeTimerHandle
	io    *fakeIOHandle
}

func (r *fakeReactor) AddTimer(deadline time.Time, priority Priority, desc string, callback func()) TimerHandle {
	h := &fakeTimerHandle{r: r, callback: callback, deadline: deadline}
	r.timer = h
	return h
}

func (r *fakeReactor) AddIO(fd int, priority Priority, desc string, callback func()) IOHandle {
	h := &fakeIOHandle{r: r, callback: callback}
	r.io = h
	return h
}

func (r *fakeReactor) fireTimer() {
	if r.timer == nil || r.timer.released {
		return
	}
	// Timers are one-shot: once fired, the handle is no longer pending.
	cb := r.timer.callback
	r.timer = nil
	cb()
}

func (r *fakeReactor) fireIO() {
	if r.io == nil || r.io.released {
		return
	}
	r.io.callback()
}

// fakeWire stubs out the five external I/O primitives (spec.md §6) so
// the state machine can be driven without a real socket.
type fakeWire struct {
	probesSent     int
	announcesSent  int
	nextFrame      arpwire.Frame
	hasFrame       bool
	frameErr       error
	openErr        error
	sendProbeFail  bool
	sendAnnFail    bool
	closed         bool
}

func (w *fakeWire) open(ifindex int, mac net.HardwareAddr, candidate uint32) (int, error) {
	if w.openErr != nil {
		return -1, w.openErr
	}
	return 42, nil
}

func (w *fakeWire) close(fd int) error {
	w.closed = true
	return nil
}

func (w *fakeWire) sendProbe(fd, ifindex int, candidate uint32, mac net.HardwareAddr) int {
	w.probesSent++
	if w.sendProbeFail {
		return -1
	}
	return arpwire.FrameLen
}

func (w *fakeWire) sendAnnouncement(fd, ifindex int, candidate uint32, mac net.HardwareAddr) int {
	w.announcesSent++
	if w.sendAnnFail {
		return -1
	}
	return arpwire.FrameLen
}

func (w *fakeWire) read(fd int) (arpwire.Frame, error) {
	if w.frameErr != nil {
		return arpwire.Frame{}, w.frameErr
	}
	if w.hasFrame {
		w.hasFrame = false
		return w.nextFrame, nil
	}
	return arpwire.Frame{}, arpwire.ErrShortFrame
}

// testDetector wires a Detector up to a fakeReactor/fakeWire/fakeClock
// pair, fully configured and attached but not started.
func testDetector(t interface {
	Helper()
	Fatalf(string, ...any)
}) (*Detector, *fakeReactor, *fakeWire, *fakeClock) {
	t.Helper()

	d := New(nil)
	clock := newFakeClock()
	rnd := &fakeRand{}
	wire := &fakeWire{}
	reactor := &fakeReactor{}

	d.clock = clock
	d.rand = rnd
	d.openSocket = wire.open
	d.closeSocket = wire.close
	d.readFrame = wire.read
	d.sendProbeFn = wire.sendProbe
	d.sendAnnounceFn = wire.sendAnnouncement

	if err := d.SetIfindex(3); err != nil {
		t.Fatalf("SetIfindex: %v", err)
	}
	if err := d.SetMAC(net.HardwareAddr{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}); err != nil {
		t.Fatalf("SetMAC: %v", err)
	}
	if err := d.SetAddress(arpwire.IPToUint32(net.IPv4(169, 254, 5, 7))); err != nil {
		t.Fatalf("SetAddress: %v", err)
	}
	if err := d.AttachEvent(reactor, DefaultPriority); err != nil {
		t.Fatalf("AttachEvent: %v", err)
	}

	return d, reactor, wire, clock
}
