// Package poller wraps the Linux epoll readiness multiplexer behind a small
// interface, so the reactor's dispatch loop deals only in file descriptors
// and readiness masks rather than raw epoll_event syscalls.
package poller

import (
	"golang.org/x/sys/unix"
)

// Event masks, re-exported from unix so callers never import it directly
// just to test a readiness bit.
const (
	EventIn    = unix.EPOLLIN
	EventOut   = unix.EPOLLOUT
	EventRDHUP = unix.EPOLLRDHUP
	EventHUP   = unix.EPOLLHUP
	EventErr   = unix.EPOLLERR
	EdgeTrig   = unix.EPOLLET
	OneShot    = unix.EPOLLONESHOT
)

// Event reports one fd's readiness mask from a Wait call.
type Event struct {
	Fd     int
	Events uint32
}

// Poller is the interface the reactor drives; Linux's epoll-backed
// implementation is the only one provided, matching the spec's scope.
type Poller interface {
	Add(fd int, events uint32) error
	Mod(fd int, events uint32) error
	Del(fd int) error
	Wait(timeoutMs int) ([]Event, error)
	Close() error
}

// epollPoller implements Poller over a single epoll instance.
type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates an epoll instance sized for maxEvents returned per Wait call.
func New(maxEvents int) (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if maxEvents <= 0 {
		maxEvents = 1024
	}
	return &epollPoller{epfd: epfd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

func (p *epollPoller) Add(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) Mod(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Del(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(timeoutMs int) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = Event{Fd: int(p.events[i].Fd), Events: p.events[i].Events}
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
