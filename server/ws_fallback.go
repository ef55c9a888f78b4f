//go:build !linux

// File: server/ws_fallback.go
// Goroutine-per-connection WebSocket driver for platforms without the
// epoll reactor, matching the teacher's own Linux/stub platform split.
package server

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/arkwave/netcore/protocol"
	"github.com/arkwave/netcore/wsconn"
)

type fallbackDriver struct {
	maxMessageSize int64

	mu     sync.Mutex
	wakeCh map[uuid.UUID]chan struct{}
}

func newDriver(maxMessageSize int64) (wsDriver, error) {
	return &fallbackDriver{maxMessageSize: maxMessageSize, wakeCh: make(map[uuid.UUID]chan struct{})}, nil
}

func (d *fallbackDriver) register(wc *wsconn.Connection, conn net.Conn) error {
	ch := make(chan struct{}, 1)
	d.mu.Lock()
	d.wakeCh[wc.ID] = ch
	d.mu.Unlock()
	go d.serve(wc, conn, ch)
	return nil
}

func (d *fallbackDriver) wake(id uuid.UUID) {
	d.mu.Lock()
	ch := d.wakeCh[id]
	d.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// run has nothing to drive centrally: each connection owns its reader and
// writer goroutine, started from register.
func (d *fallbackDriver) run(stop <-chan struct{}) {
	<-stop
}

func (d *fallbackDriver) serve(wc *wsconn.Connection, conn net.Conn, wakeCh chan struct{}) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for range wakeCh {
			for {
				data, ok := wc.PopSend()
				if !ok {
					break
				}
				if _, err := conn.Write(data); err != nil {
					wc.ReportError(err)
					return
				}
			}
			if wc.State() == wsconn.StateClosed {
				return
			}
		}
	}()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
readLoop:
	for {
		n, err := conn.Read(tmp)
		if err != nil {
			if wc.State() != wsconn.StateClosed {
				code, reason := wc.PendingClose()
				if code == 0 {
					code = protocol.CloseAbnormal
				}
				wc.Finalize(code, reason)
			}
			break
		}
		buf = append(buf, tmp[:n]...)

		for {
			frame, consumed, derr := protocol.DecodeFrame(buf)
			if derr != nil {
				_ = wc.InitiateClose(protocol.CloseProtocolError, "frame decode error")
				nudge(wakeCh)
				break
			}
			if frame == nil {
				break
			}
			buf = buf[consumed:]

			if d.maxMessageSize > 0 && int64(len(frame.Payload)) > d.maxMessageSize {
				_ = wc.InitiateClose(protocol.CloseTooLarge, "message too large")
			} else if herr := wc.HandleFrame(frame); herr != nil {
				_ = wc.InitiateClose(protocol.CloseProtocolError, herr.Error())
			}
			nudge(wakeCh)

			if wc.State() == wsconn.StateClosing && !wc.HasPending() {
				code, reason := wc.PendingClose()
				wc.Finalize(code, reason)
			}
		}

		if wc.State() == wsconn.StateClosed {
			break readLoop
		}
	}

	close(wakeCh)
	<-writerDone

	d.mu.Lock()
	delete(d.wakeCh, wc.ID)
	d.mu.Unlock()
	conn.Close()
}

func nudge(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
