package acd

// EventKind identifies the three outcomes an instance reports to its
// client (spec.md §6).
type EventKind int

const (
	// EventBind fires once the first announcement has been sent; the
	// address is now claimed by this host.
	EventBind EventKind = iota
	// EventConflict fires when a conflicting use was detected and the
	// instance has reset to INIT.
	EventConflict
	// EventStop fires on an explicit stop() or after a fatal I/O error
	// has forced the same reset-to-INIT path (§7).
	EventStop
)

func (k EventKind) String() string {
	switch k {
	case EventBind:
		return "BIND"
	case EventConflict:
		return "CONFLICT"
	case EventStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Callback receives client notifications. It is invoked synchronously
// from the reactor's dispatch (spec.md §9: "callback re-entrancy" —
// the client must not release its last reference to the instance from
// inside the callback unless it holds an additional one). address is
// the instance's configured candidate in network byte order; userdata
// is whatever was passed to SetCallback.
type Callback func(kind EventKind, address uint32, userdata any)

// notification is a snapshot of everything deliver needs, taken while
// the instance's mutex is still held so the callback can run after the
// mutex is released without racing a concurrent SetCallback/SetAddress.
type notification struct {
	kind     EventKind
	cb       Callback
	address  uint32
	userdata any
}

func deliver(n notification) {
	if n.cb != nil {
		n.cb(n.kind, n.address, n.userdata)
	}
}

// pendingNotify builds a notification from the instance's current
// callback/address/userdata. Callers must hold d.mu.
func (d *Detector) pendingNotify(kind EventKind) (notification, bool) {
	return notification{kind: kind, cb: d.callback, address: d.address, userdata: d.userdata}, true
}

var noNotification = notification{}
