package wsconn_test

import (
	"testing"

	"github.com/arkwave/netcore/protocol"
	"github.com/arkwave/netcore/wsconn"
)

func TestNewFiresOnOpenSynchronously(t *testing.T) {
	opened := false
	c := wsconn.New("/ws", "127.0.0.1:1234", wsconn.Callbacks{
		OnOpen: func(c *wsconn.Connection) { opened = true },
	})
	if !opened {
		t.Fatal("OnOpen should fire before New returns")
	}
	if c.State() != wsconn.StateOpen {
		t.Fatalf("got state %v, want open", c.State())
	}
}

func TestHandleFrameTextInvokesCallback(t *testing.T) {
	var got string
	c := wsconn.New("/ws", "x", wsconn.Callbacks{
		OnText: func(c *wsconn.Connection, text string) { got = text },
	})
	if err := c.HandleFrame(protocol.NewTextFrame("hi", false)); err != nil {
		t.Fatal(err)
	}
	if got != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}
}

func TestHandleFramePingEnqueuesPong(t *testing.T) {
	c := wsconn.New("/ws", "x", wsconn.Callbacks{})
	if err := c.HandleFrame(protocol.NewPingFrame([]byte("ping-data"), false)); err != nil {
		t.Fatal(err)
	}
	data, ok := c.PopSend()
	if !ok {
		t.Fatal("expected a queued pong frame")
	}
	frame, _, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Opcode != protocol.OpPong || string(frame.Payload) != "ping-data" {
		t.Fatalf("got opcode=%v payload=%q", frame.Opcode, frame.Payload)
	}
}

func TestHandleFrameCloseMovesToClosingAndEchoes(t *testing.T) {
	c := wsconn.New("/ws", "x", wsconn.Callbacks{})
	closeFrame := protocol.NewCloseFrame(protocol.CloseNormal, "bye", false)
	if err := c.HandleFrame(closeFrame); err != nil {
		t.Fatal(err)
	}
	if c.State() != wsconn.StateClosing {
		t.Fatalf("got state %v, want closing", c.State())
	}
	if !c.HasPending() {
		t.Fatal("expected an echoed close frame queued")
	}
	code, reason := c.PendingClose()
	if code != protocol.CloseNormal || reason != "bye" {
		t.Fatalf("got code=%d reason=%q", code, reason)
	}
}

func TestHandleFrameUnsupportedOpcodeIsProtocolError(t *testing.T) {
	c := wsconn.New("/ws", "x", wsconn.Callbacks{})
	bad := &protocol.Frame{Fin: true, Opcode: protocol.OpContinuation, Payload: nil}
	if err := c.HandleFrame(bad); err == nil {
		t.Fatal("expected a protocol error for a bare continuation frame")
	}
}

func TestSendAfterCloseReturnsErrClosed(t *testing.T) {
	c := wsconn.New("/ws", "x", wsconn.Callbacks{})
	c.Finalize(protocol.CloseNormal, "done")
	if err := c.SendText("too late"); err != wsconn.ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestFinalizeFiresOnCloseExactlyOnce(t *testing.T) {
	calls := 0
	c := wsconn.New("/ws", "x", wsconn.Callbacks{
		OnClose: func(c *wsconn.Connection, code int, reason string) { calls++ },
	})
	c.Finalize(protocol.CloseNormal, "first")
	c.Finalize(protocol.CloseGoingAway, "second")
	if calls != 1 {
		t.Fatalf("got %d OnClose calls, want 1", calls)
	}
}

func TestInitiateCloseIsIdempotent(t *testing.T) {
	c := wsconn.New("/ws", "x", wsconn.Callbacks{})
	if err := c.InitiateClose(protocol.CloseGoingAway, "shutting down"); err != nil {
		t.Fatal(err)
	}
	if err := c.InitiateClose(protocol.CloseNormal, "ignored"); err != nil {
		t.Fatal(err)
	}
	code, reason := c.PendingClose()
	if code != protocol.CloseGoingAway || reason != "shutting down" {
		t.Fatalf("got code=%d reason=%q, want the first InitiateClose's values", code, reason)
	}
}

func TestSendQueueFullReturnsErrQueueFull(t *testing.T) {
	c := wsconn.New("/ws", "x", wsconn.Callbacks{})
	for i := 0; i < wsconn.SendQueueCapacity; i++ {
		if err := c.SendText("x"); err != nil {
			t.Fatalf("unexpected error filling the queue at index %d: %v", i, err)
		}
	}
	if err := c.SendText("overflow"); err != wsconn.ErrQueueFull {
		t.Fatalf("got %v, want ErrQueueFull", err)
	}
}
