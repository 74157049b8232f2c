package acd

// DefaultReactorFactory constructs the Reactor used when AttachEvent
// is called without one (spec.md §4.6: "records reactor, new default
// if e absent"). It starts nil; internal/reactor registers the
// production epoll-based implementation from its own init function so
// that this core package never has to import a concrete Reactor and
// stays free to be driven by any implementation a caller provides.
var DefaultReactorFactory func() (Reactor, error)

func newDefaultReactor() (Reactor, error) {
	if DefaultReactorFactory == nil {
		return nil, ErrUnsupported
	}
	return DefaultReactorFactory()
}
