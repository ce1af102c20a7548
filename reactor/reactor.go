// Package reactor implements a single-threaded, epoll-based I/O
// multiplexer. One Reactor owns exactly one OS thread (via Run, called
// from a single goroutine) and dispatches readability/writability
// events to the Handler registered for each file descriptor.
package reactor

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxEvents bounds a single epoll_wait batch.
const maxEvents = 256

// waitTimeoutMillis caps how long epoll_wait blocks before Run checks
// whether it has been asked to stop, and before session timers get a
// chance to run even with no I/O activity.
const waitTimeoutMillis = 100

// Handler receives readiness callbacks for one registered file
// descriptor. Implementations must not block.
type Handler interface {
	OnReadable(fd int)
	OnWritable(fd int)
}

type entry struct {
	fd      int
	armed   uint32
	handler Handler
	retired bool
}

// Reactor is not safe for concurrent use from multiple goroutines: all
// of its methods, including Run, are meant to be called from the single
// goroutine that owns it.
type Reactor struct {
	epfd     int
	entries  map[int]*entry
	retired  []*entry
	stopping atomic.Bool
}

// New creates a Reactor backed by a fresh epoll instance.
func New() (*Reactor, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Reactor{epfd: fd, entries: make(map[int]*entry)}, nil
}

// AddFD registers fd with no interest set armed; use SetReadable /
// SetWritable to arm it.
func (r *Reactor) AddFD(fd int, h Handler) error {
	e := &entry{fd: fd, handler: h}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: 0}); err != nil {
		return fmt.Errorf("reactor: epoll_ctl add %d: %w", fd, err)
	}
	r.entries[fd] = e
	return nil
}

// RemoveFD deregisters fd. Deletion from the internal table is
// deferred until the current Run batch finishes processing, so that an
// fd appearing twice in the same epoll_wait batch (once before, once
// after it's closed elsewhere in the batch) is never dispatched through
// a stale or fd-reused entry.
func (r *Reactor) RemoveFD(fd int) error {
	e, ok := r.entries[fd]
	if !ok {
		return nil
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("reactor: epoll_ctl del %d: %w", fd, err)
	}
	e.retired = true
	r.retired = append(r.retired, e)
	return nil
}

func (r *Reactor) rearm(e *entry) error {
	ev := &unix.EpollEvent{Fd: int32(e.fd), Events: e.armed}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, e.fd, ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl mod %d: %w", e.fd, err)
	}
	return nil
}

func (r *Reactor) SetReadable(fd int) error {
	e, ok := r.entries[fd]
	if !ok {
		return fmt.Errorf("reactor: fd %d not registered", fd)
	}
	e.armed |= unix.EPOLLIN
	return r.rearm(e)
}

func (r *Reactor) ResetReadable(fd int) error {
	e, ok := r.entries[fd]
	if !ok {
		return fmt.Errorf("reactor: fd %d not registered", fd)
	}
	e.armed &^= unix.EPOLLIN
	return r.rearm(e)
}

func (r *Reactor) SetWritable(fd int) error {
	e, ok := r.entries[fd]
	if !ok {
		return fmt.Errorf("reactor: fd %d not registered", fd)
	}
	e.armed |= unix.EPOLLOUT
	return r.rearm(e)
}

func (r *Reactor) ResetWritable(fd int) error {
	e, ok := r.entries[fd]
	if !ok {
		return fmt.Errorf("reactor: fd %d not registered", fd)
	}
	e.armed &^= unix.EPOLLOUT
	return r.rearm(e)
}

// Stop asks Run to return after its current (or next) 100ms wait
// ceiling. Safe to call from any goroutine.
func (r *Reactor) Stop() {
	r.stopping.Store(true)
}

// Run drives the event loop until Stop is called. It must run on a
// single goroutine for the lifetime of the Reactor.
func (r *Reactor) Run() error {
	var events [maxEvents]unix.EpollEvent
	for !r.stopping.Load() {
		n, err := unix.EpollWait(r.epfd, events[:], waitTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			e, ok := r.entries[fd]
			if !ok || e.retired {
				continue
			}

			if events[i].Events&unix.EPOLLOUT != 0 {
				e.handler.OnWritable(fd)
			}
			if e.retired {
				continue
			}
			if events[i].Events&unix.EPOLLIN != 0 {
				e.handler.OnReadable(fd)
			}
		}

		for _, e := range r.retired {
			if r.entries[e.fd] == e {
				delete(r.entries, e.fd)
			}
		}
		r.retired = r.retired[:0]
	}
	return nil
}

// Close releases the underlying epoll file descriptor. Call only after
// Run has returned.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}
