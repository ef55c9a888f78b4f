package server

import (
	"time"

	"github.com/arkwave/netcore/httpcore"
)

// PreFilter is the boundary interface through which a security or policy
// component mounted ahead of the router may reject a request. It runs once
// per request, between parsing and routing, and is treated as a pure
// function of req plus mutations to resp: returning false means resp is
// already decided and the router must not run.
type PreFilter func(req *httpcore.Request, resp *httpcore.Response) bool

// HTTPConfig configures the plain HTTP server.
type HTTPConfig struct {
	Addr string
	// PreFilter, when set, runs after parsing and before routing on every
	// request. It must be concurrency-safe: requests are served one
	// goroutine per connection.
	PreFilter PreFilter
}

// DefaultHTTPConfig returns the HTTP server's default configuration.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{Addr: ":8080"}
}

// WSConfig configures the WebSocket server.
type WSConfig struct {
	Addr string
	// MaxInactivityTime is how long a connection may go without sending or
	// receiving a frame before the heartbeat closes it.
	MaxInactivityTime time.Duration
	// MaxMessageSize caps a single frame's payload; oversized frames are
	// closed with CloseTooLarge (1009).
	MaxMessageSize int64
	// HeartbeatInterval is how often the inactivity sweep runs; each sweep
	// closes timed-out connections and pings every other open connection.
	HeartbeatInterval time.Duration
}

// DefaultWSConfig returns the WebSocket server's default configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		Addr:              ":8081",
		MaxInactivityTime: 5 * time.Minute,
		MaxMessageSize:    16 << 20,
		HeartbeatInterval: 30 * time.Second,
	}
}
