//go:build linux

// File: server/ws_linux.go
// Epoll-multiplexed WebSocket connection driver. Follows the raw-fd
// extraction pattern used for reactor integration elsewhere in this
// codebase's ancestry: SyscallConn().Control gives direct access to the
// listener-accepted fd, which is then read and written with raw syscalls
// instead of going back through net.Conn.
package server

import (
	"errors"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/arkwave/netcore/protocol"
	"github.com/arkwave/netcore/reactor"
	"github.com/arkwave/netcore/wsconn"

	"github.com/google/uuid"
)

type wsConnState struct {
	fd      uintptr
	conn    net.Conn
	wc      *wsconn.Connection
	readBuf []byte

	writeMu  sync.Mutex
	writeBuf []byte
}

type reactorDriver struct {
	r              reactor.EventReactor
	maxMessageSize int64

	states sync.Map // uintptr(fd) -> *wsConnState
	byConn sync.Map // uuid.UUID -> *wsConnState
}

func newDriver(maxMessageSize int64) (wsDriver, error) {
	r, err := reactor.NewReactor()
	if err != nil {
		return nil, err
	}
	return &reactorDriver{r: r, maxMessageSize: maxMessageSize}, nil
}

func (d *reactorDriver) register(wc *wsconn.Connection, conn net.Conn) error {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return errors.New("reactor driver requires a *net.TCPConn")
	}
	raw, err := tcp.SyscallConn()
	if err != nil {
		return err
	}
	var fd uintptr
	if ctrlErr := raw.Control(func(f uintptr) { fd = f }); ctrlErr != nil {
		return ctrlErr
	}

	st := &wsConnState{fd: fd, conn: conn, wc: wc}
	d.states.Store(fd, st)
	d.byConn.Store(wc.ID, st)
	return d.r.Register(fd, reactor.EventRead)
}

func (d *reactorDriver) wake(id uuid.UUID) {
	v, ok := d.byConn.Load(id)
	if !ok {
		return
	}
	d.flush(v.(*wsConnState))
}

func (d *reactorDriver) run(stop <-chan struct{}) {
	events := make([]reactor.Event, 128)
	for {
		select {
		case <-stop:
			_ = d.r.Close()
			return
		default:
		}
		n, err := d.r.Wait(events)
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			v, ok := d.states.Load(ev.Fd)
			if !ok {
				continue
			}
			st := v.(*wsConnState)
			if ev.Mask&reactor.EventError != 0 {
				d.closeState(st, protocol.CloseAbnormal, "socket error")
				continue
			}
			if ev.Mask&reactor.EventRead != 0 {
				d.handleReadable(st)
			}
			if ev.Mask&reactor.EventWrite != 0 {
				d.flush(st)
			}
		}
	}
}

func (d *reactorDriver) handleReadable(st *wsConnState) {
	tmp := make([]byte, 4096)
	for {
		n, err := unix.Read(int(st.fd), tmp)
		if err == unix.EAGAIN {
			break
		}
		if err != nil || n == 0 {
			d.closeState(st, protocol.CloseAbnormal, "connection reset")
			return
		}
		st.readBuf = append(st.readBuf, tmp[:n]...)
	}

	for {
		frame, consumed, err := protocol.DecodeFrame(st.readBuf)
		if err != nil {
			_ = st.wc.InitiateClose(protocol.CloseProtocolError, "frame decode error")
			break
		}
		if frame == nil {
			break
		}
		st.readBuf = st.readBuf[consumed:]

		if d.maxMessageSize > 0 && int64(len(frame.Payload)) > d.maxMessageSize {
			_ = st.wc.InitiateClose(protocol.CloseTooLarge, "message too large")
		} else if herr := st.wc.HandleFrame(frame); herr != nil {
			_ = st.wc.InitiateClose(protocol.CloseProtocolError, herr.Error())
		}
	}

	d.flush(st)

	if st.wc.State() == wsconn.StateClosing && !st.wc.HasPending() {
		code, reason := st.wc.PendingClose()
		st.wc.Finalize(code, reason)
	}
	if st.wc.State() == wsconn.StateClosed {
		d.removeState(st)
	}
}

// flush writes everything currently queued on st.wc, buffering and
// registering EPOLLOUT interest if the socket's send buffer is full.
func (d *reactorDriver) flush(st *wsConnState) {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()

	if len(st.writeBuf) > 0 && !d.drainLocked(st) {
		return
	}
	for {
		data, ok := st.wc.PopSend()
		if !ok {
			break
		}
		st.writeBuf = data
		if !d.drainLocked(st) {
			return
		}
	}
	_ = d.r.Modify(st.fd, reactor.EventRead)

	if st.wc.State() == wsconn.StateClosed {
		d.removeState(st)
	}
}

// drainLocked writes as much of st.writeBuf as the socket accepts. Caller
// holds st.writeMu. Returns false if the write would block (EPOLLOUT
// interest has been registered so flush resumes on the next write event).
func (d *reactorDriver) drainLocked(st *wsConnState) bool {
	for len(st.writeBuf) > 0 {
		n, err := unix.Write(int(st.fd), st.writeBuf)
		if err == unix.EAGAIN {
			_ = d.r.Modify(st.fd, reactor.EventRead|reactor.EventWrite)
			return false
		}
		if err != nil {
			st.writeBuf = nil
			d.closeState(st, protocol.CloseAbnormal, "write error")
			return true
		}
		st.writeBuf = st.writeBuf[n:]
	}
	return true
}

func (d *reactorDriver) closeState(st *wsConnState, code int, reason string) {
	if st.wc.State() != wsconn.StateClosed {
		st.wc.Finalize(code, reason)
	}
	d.removeState(st)
}

func (d *reactorDriver) removeState(st *wsConnState) {
	d.states.Delete(st.fd)
	d.byConn.Delete(st.wc.ID)
	_ = d.r.Remove(st.fd)
	_ = st.conn.Close()
}
