package acd

import (
	"net"
	"testing"

	"github.com/ipv4acd/ipv4acd/internal/arpwire"
)

func TestSettersValidateArguments(t *testing.T) {
	d := New(nil)
	if err := d.SetIfindex(0); err != ErrInvalid {
		t.Errorf("SetIfindex(0) = %v, want ErrInvalid", err)
	}
	if err := d.SetMAC(net.HardwareAddr{0, 0, 0, 0, 0, 0}); err != ErrInvalid {
		t.Errorf("SetMAC(zero) = %v, want ErrInvalid", err)
	}
	if err := d.SetMAC(net.HardwareAddr{1, 2, 3}); err != ErrInvalid {
		t.Errorf("SetMAC(short) = %v, want ErrInvalid", err)
	}
	if err := d.SetAddress(0); err != ErrInvalid {
		t.Errorf("SetAddress(0) = %v, want ErrInvalid", err)
	}
}

func TestAttachEventRejectsDoubleAttach(t *testing.T) {
	d := New(nil)
	r := &fakeReactor{}
	if err := d.AttachEvent(r, DefaultPriority); err != nil {
		t.Fatalf("first AttachEvent: %v", err)
	}
	if err := d.AttachEvent(r, DefaultPriority); err != ErrReactorAttached {
		t.Fatalf("second AttachEvent = %v, want ErrReactorAttached", err)
	}
	d.DetachEvent()
	if err := d.AttachEvent(r, DefaultPriority); err != nil {
		t.Fatalf("AttachEvent after DetachEvent: %v", err)
	}
}

func TestIsRunning(t *testing.T) {
	d, _, _, _ := testDetector(t)
	if d.IsRunning() {
		t.Fatal("IsRunning before Start = true")
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.IsRunning() {
		t.Fatal("IsRunning after Start = false")
	}
	d.Stop()
	if d.IsRunning() {
		t.Fatal("IsRunning after Stop = true")
	}
}

func TestNilObserverIsANoop(t *testing.T) {
	d, r, _, _ := testDetector(t)
	// No SetObserver call: driveToRunning must not panic on a nil
	// Observer anywhere probes/announces/binds are signaled.
	driveToRunning(t, d, r)
	if d.State() != StateRunning {
		t.Fatalf("state = %v, want RUNNING", d.State())
	}
}

func TestConflictCountReflectsLatestConflict(t *testing.T) {
	d, r, w, _ := testDetector(t)
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.fireTimer() // -> WAITING_PROBE
	r.fireTimer() // sends a probe, -> PROBING

	w.hasFrame = true
	w.nextFrame = arpwire.BuildProbe(net.HardwareAddr{9, 9, 9, 9, 9, 9}, 0)
	w.nextFrame.SPA = arpwire.IPToUint32(net.IPv4(169, 254, 5, 7))
	r.fireIO()

	if got := d.ConflictCount(); got != 1 {
		t.Errorf("ConflictCount() = %d, want 1", got)
	}
}

func TestUnrefResetsOnLastReference(t *testing.T) {
	d, r, w, _ := testDetector(t)
	d.Ref()
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	d.Unref()
	if !d.IsRunning() {
		t.Fatal("instance reset on non-final Unref")
	}

	d.Unref()
	if d.IsRunning() {
		t.Fatal("instance still running after final Unref")
	}
	if !w.closed {
		t.Error("socket not closed on final Unref")
	}
	if r.timer != nil {
		t.Error("timer still pending after final Unref")
	}
}
