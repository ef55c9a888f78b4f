//go:build !linux

// File: reactor/reactor_other.go
// Non-Linux platforms have no multiplexer wired in here; on these platforms
// package server is built with a goroutine-per-connection driver
// (server/ws_fallback.go) that does not call NewReactor.
package reactor

import "errors"

// ErrUnsupported is returned by NewReactor on platforms without an epoll
// implementation.
var ErrUnsupported = errors.New("reactor: epoll is only implemented for linux")

// NewReactor reports this platform as unsupported.
func NewReactor() (EventReactor, error) {
	return nil, ErrUnsupported
}
