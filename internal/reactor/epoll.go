//go:build linux

// Package reactor provides the production implementation of
// acd.Reactor: a single epoll instance multiplexing one timerfd per
// pending timer and one watcher per raw socket (spec.md §4.3). It is
// modeled on an sd-event-style single-threaded loop — the spec this
// package serves is itself distilled from systemd's sd-ipv4acd.c.
package reactor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ipv4acd/ipv4acd/internal/acd"
	"golang.org/x/sys/unix"
)

// Epoll is an acd.Reactor backed by epoll_wait and timerfd.
type Epoll struct {
	logger *slog.Logger
	epfd   int

	mu      sync.Mutex
	timers  map[int]*timerWatch
	ios     map[int]*ioWatch
	closing chan struct{}
	wg      sync.WaitGroup
}

type timerWatch struct {
	callback func()
	released bool
}

type ioWatch struct {
	callback func()
	released bool
}

// NewEpoll creates an Epoll reactor and starts its dispatch goroutine.
// Callers must Close it when done to release the epoll fd and stop
// the goroutine.
func NewEpoll(logger *slog.Logger) (*Epoll, error) {
	if logger == nil {
		logger = slog.Default()
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}

	e := &Epoll{
		logger:  logger,
		epfd:    epfd,
		timers:  make(map[int]*timerWatch),
		ios:     make(map[int]*ioWatch),
		closing: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.loop()
	return e, nil
}

// init registers the epoll reactor as the default acd.Detector uses
// when AttachEvent is called without one. internal/acd never imports
// this package directly — that would create an import cycle, since
// Epoll's methods are typed in terms of acd.Priority/TimerHandle —
// so registration happens here, the direction the dependency already
// runs.
func init() {
	acd.DefaultReactorFactory = func() (acd.Reactor, error) {
		return NewEpoll(nil)
	}
}

// AddTimer implements acd.Reactor.
func (e *Epoll) AddTimer(deadline time.Time, priority acd.Priority, desc string, callback func()) acd.TimerHandle {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		e.logger.Error("reactor: timerfd_create failed", "desc", desc, "error", err)
		return &timerHandle{}
	}

	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}
	spec := &unix.ItimerSpec{Value: unix.NsecToTimespec(delay.Nanoseconds())}
	if spec.Value.Sec == 0 && spec.Value.Nsec == 0 {
		// an all-zero Value disarms a timerfd rather than firing it
		// immediately (spec.md §4.4's STARTED->WAITING_PROBE wakeup is
		// scheduled with 0 delay).
		spec.Value.Nsec = 1
	}
	if err := unix.TimerfdSettime(fd, 0, spec, nil); err != nil {
		e.logger.Error("reactor: timerfd_settime failed", "desc", desc, "error", err)
		unix.Close(fd)
		return &timerHandle{}
	}

	e.mu.Lock()
	e.timers[fd] = &timerWatch{callback: callback}
	e.mu.Unlock()

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		e.logger.Error("reactor: epoll_ctl add timer failed", "desc", desc, "error", err)
	}

	return &timerHandle{e: e, fd: fd}
}

// AddIO implements acd.Reactor.
func (e *Epoll) AddIO(fd int, priority acd.Priority, desc string, callback func()) acd.IOHandle {
	e.mu.Lock()
	e.ios[fd] = &ioWatch{callback: callback}
	e.mu.Unlock()

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		e.logger.Error("reactor: epoll_ctl add io failed", "desc", desc, "error", err)
	}

	return &ioHandle{e: e, fd: fd}
}

// Close stops the dispatch goroutine and releases the epoll fd. It
// does not release any timers or IO watchers still registered —
// callers are expected to have released every acd.Detector first.
func (e *Epoll) Close() error {
	close(e.closing)
	e.wg.Wait()
	return unix.Close(e.epfd)
}

func (e *Epoll) loop() {
	defer e.wg.Done()
	events := make([]unix.EpollEvent, 16)

	for {
		select {
		case <-e.closing:
			return
		default:
		}

		n, err := unix.EpollWait(e.epfd, events, 1000)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			e.logger.Error("reactor: epoll_wait failed", "error", err)
			return
		}

		for i := 0; i < n; i++ {
			e.dispatch(int(events[i].Fd))
		}
	}
}

func (e *Epoll) dispatch(fd int) {
	e.mu.Lock()
	if tw, ok := e.timers[fd]; ok {
		delete(e.timers, fd)
		e.mu.Unlock()
		var buf [8]byte
		unix.Read(fd, buf[:])
		unix.Close(fd)
		if !tw.released {
			tw.callback()
		}
		return
	}
	iw, ok := e.ios[fd]
	e.mu.Unlock()
	if ok && !iw.released {
		iw.callback()
	}
}

type timerHandle struct {
	e  *Epoll
	fd int
}

func (h *timerHandle) Release() {
	if h.e == nil {
		return
	}
	h.e.mu.Lock()
	if tw, ok := h.e.timers[h.fd]; ok {
		tw.released = true
		delete(h.e.timers, h.fd)
	}
	h.e.mu.Unlock()
	unix.EpollCtl(h.e.epfd, unix.EPOLL_CTL_DEL, h.fd, nil)
	unix.Close(h.fd)
}

type ioHandle struct {
	e  *Epoll
	fd int
}

func (h *ioHandle) Release() {
	if h.e == nil {
		return
	}
	h.e.mu.Lock()
	if iw, ok := h.e.ios[h.fd]; ok {
		iw.released = true
		delete(h.e.ios, h.fd)
	}
	h.e.mu.Unlock()
	unix.EpollCtl(h.e.epfd, unix.EPOLL_CTL_DEL, h.fd, nil)
}
