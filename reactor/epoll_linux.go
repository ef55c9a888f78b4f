//go:build linux

// File: reactor/epoll_linux.go
// Linux epoll(7)-based reactor implementation.
package reactor

import "golang.org/x/sys/unix"

type epollReactor struct {
	epfd int
}

// NewReactor constructs the epoll-backed reactor. It is the only
// EventReactor implementation this module ships; see reactor_other.go for
// the non-Linux stub.
func NewReactor() (EventReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollReactor{epfd: epfd}, nil
}

func toEpollEvents(mask EventMask) uint32 {
	var e uint32 = unix.EPOLLRDHUP
	if mask&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if mask&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) EventMask {
	var mask EventMask
	if e&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
		mask |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		mask |= EventWrite
	}
	if e&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		mask |= EventError
	}
	return mask
}

func (r *epollReactor) Register(fd uintptr, mask EventMask) error {
	ev := &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), ev)
}

func (r *epollReactor) Modify(fd uintptr, mask EventMask) error {
	ev := &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(fd), ev)
}

func (r *epollReactor) Remove(fd uintptr) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return err
}

func (r *epollReactor) Wait(events []Event) (int, error) {
	raw := make([]unix.EpollEvent, len(events))
	n, err := unix.EpollWait(r.epfd, raw, -1)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = Event{Fd: uintptr(raw[i].Fd), Mask: fromEpollEvents(raw[i].Events)}
	}
	return n, nil
}

func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}
