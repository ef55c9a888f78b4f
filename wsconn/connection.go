// Package wsconn implements the per-connection WebSocket lifecycle: the
// OPEN -> CLOSING -> CLOSED state machine, the bounded outbound send queue,
// and control-frame (ping/pong/close) dispatch. The event-loop driver in
// package server owns all actual socket I/O; Connection only holds state and
// encoded frames waiting to be written.
package wsconn

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	"github.com/arkwave/netcore/protocol"
)

// State is a WebSocketConnection's lifecycle stage. Transitions are
// monotonic: Open -> Closing -> Closed. Once Closed, no further events fire.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SendQueueCapacity is the hard cap on buffered outbound frames per
// connection. Exceeding it is a programming error: the caller is producing
// messages faster than the connection can ever drain them.
const SendQueueCapacity = 1000

// ErrQueueFull is returned by SendText, SendBinary and SendPing when the
// outbound queue is at capacity.
var ErrQueueFull = errors.New("wsconn: send queue full")

// ErrClosed is returned by SendText, SendBinary and SendPing once the
// connection is Closed. A Closing connection still accepts frames.
var ErrClosed = errors.New("wsconn: connection closed")

// Callbacks are the five user-supplied lifecycle hooks described by spec §3.
// Any of them may be nil.
type Callbacks struct {
	OnText   func(c *Connection, text string)
	OnBinary func(c *Connection, data []byte)
	OnOpen   func(c *Connection)
	OnClose  func(c *Connection, code int, reason string)
	OnError  func(c *Connection, err error)
}

// Connection tracks one WebSocket session's state, independent of the
// concrete socket implementation (see server.WSServer for the reactor-driven
// driver that owns the actual file descriptor).
type Connection struct {
	ID         uuid.UUID
	Path       string
	RemoteAddr string
	OpenedAt   time.Time

	cb Callbacks

	state          int32 // atomic State
	lastActivityMs int64 // atomic, Unix millis

	mu          sync.Mutex
	queue       *queue.Queue
	closedAt    time.Time
	closeCode   int
	closeReason string
	closeOnce   sync.Once
}

// New constructs an OPEN connection and fires OnOpen synchronously before
// returning, matching spec §3's "created after handshake -> open fires".
func New(path, remoteAddr string, cb Callbacks) *Connection {
	c := &Connection{
		ID:             uuid.New(),
		Path:           path,
		RemoteAddr:     remoteAddr,
		OpenedAt:       time.Now(),
		cb:             cb,
		state:          int32(StateOpen),
		lastActivityMs: nowMillis(),
		queue:          queue.New(),
	}
	if cb.OnOpen != nil {
		cb.OnOpen(c)
	}
	return c
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// State returns the connection's current lifecycle stage.
func (c *Connection) State() State {
	return State(atomic.LoadInt32(&c.state))
}

// LastActivity returns the Unix-millisecond timestamp of the most recent
// frame sent or received, used by the heartbeat's inactivity check.
func (c *Connection) LastActivity() int64 {
	return atomic.LoadInt64(&c.lastActivityMs)
}

func (c *Connection) touch() {
	atomic.StoreInt64(&c.lastActivityMs, nowMillis())
}

// SendText enqueues an unmasked TEXT frame.
func (c *Connection) SendText(text string) error {
	return c.enqueue(protocol.NewTextFrame(text, false))
}

// SendBinary enqueues an unmasked BINARY frame.
func (c *Connection) SendBinary(data []byte) error {
	return c.enqueue(protocol.NewBinaryFrame(data, false))
}

// SendPing enqueues a PING control frame, used by the heartbeat scheduler to
// probe idle connections.
func (c *Connection) SendPing(payload []byte) error {
	return c.enqueue(protocol.NewPingFrame(payload, false))
}

// enqueue encodes frame and pushes it onto the bounded send queue. The queue
// must tolerate concurrent producers: broadcast and the heartbeat may enqueue
// alongside application code, so access is mutex-guarded even though the
// driver's consumption side is single-threaded.
func (c *Connection) enqueue(frame *protocol.Frame) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	data, err := protocol.EncodeFrame(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue.Length() >= SendQueueCapacity {
		return ErrQueueFull
	}
	c.queue.Add(data)
	c.touch()
	return nil
}

// PopSend removes and returns the oldest queued outbound frame, if any.
// The drivers call it repeatedly until the queue is empty or the socket
// would block.
func (c *Connection) PopSend() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue.Length() == 0 {
		return nil, false
	}
	v := c.queue.Peek()
	c.queue.Remove()
	return v.([]byte), true
}

// HasPending reports whether any outbound frame is waiting to be written.
func (c *Connection) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Length() > 0
}

// HandleFrame dispatches one decoded incoming frame per spec §4.8:
//   - TEXT/BINARY invoke the matching callback.
//   - PING enqueues a matching PONG.
//   - PONG is a no-op.
//   - CLOSE enqueues an echo (if not already closing) and moves to CLOSING;
//     the driver finalizes to CLOSED once the echo has been flushed.
//   - CONTINUATION and any other opcode are protocol errors (close 1002).
func (c *Connection) HandleFrame(f *protocol.Frame) error {
	c.touch()
	if c.State() == StateClosed {
		return ErrClosed
	}

	switch f.Opcode {
	case protocol.OpText:
		if c.cb.OnText != nil {
			c.cb.OnText(c, string(f.Payload))
		}
		return nil
	case protocol.OpBinary:
		if c.cb.OnBinary != nil {
			cp := make([]byte, len(f.Payload))
			copy(cp, f.Payload)
			c.cb.OnBinary(c, cp)
		}
		return nil
	case protocol.OpPing:
		return c.enqueue(protocol.NewPongFrame(f.Payload, false))
	case protocol.OpPong:
		return nil
	case protocol.OpClose:
		code, reason := protocol.ParseClose(f.Payload)
		if atomic.CompareAndSwapInt32(&c.state, int32(StateOpen), int32(StateClosing)) {
			_ = c.enqueue(protocol.NewCloseFrame(code, reason, false))
		}
		c.mu.Lock()
		c.closeCode, c.closeReason = code, reason
		c.mu.Unlock()
		return nil
	default:
		return errProtocolOpcode
	}
}

var errProtocolOpcode = errors.New("wsconn: unsupported opcode (continuation or reserved)")

// InitiateClose transitions an OPEN connection to CLOSING and enqueues the
// close frame that announces it locally. A connection already CLOSING or
// CLOSED is left untouched.
func (c *Connection) InitiateClose(code int, reason string) error {
	if !atomic.CompareAndSwapInt32(&c.state, int32(StateOpen), int32(StateClosing)) {
		return nil
	}
	c.mu.Lock()
	c.closeCode, c.closeReason = code, reason
	c.mu.Unlock()
	return c.enqueue(protocol.NewCloseFrame(code, reason, false))
}

// PendingClose returns the close code/reason recorded by HandleFrame or
// InitiateClose, for the driver to pass to Finalize.
func (c *Connection) PendingClose() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeCode == 0 {
		return protocol.CloseNormal, c.closeReason
	}
	return c.closeCode, c.closeReason
}

// Finalize transitions to CLOSED and fires OnClose exactly once, per the
// terminal-state invariant in spec §3(e).
func (c *Connection) Finalize(code int, reason string) {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.state, int32(StateClosed))
		c.mu.Lock()
		c.closedAt = time.Now()
		c.mu.Unlock()
		if c.cb.OnClose != nil {
			c.cb.OnClose(c, code, reason)
		}
	})
}

// ClosedAt returns the timestamp Finalize ran, or the zero Time if the
// connection has not yet closed.
func (c *Connection) ClosedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedAt
}

// ReportError invokes OnError, if set.
func (c *Connection) ReportError(err error) {
	if c.cb.OnError != nil {
		c.cb.OnError(c, err)
	}
}
