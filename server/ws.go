package server

import (
	"context"
	"net"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arkwave/netcore/httpcore"
	"github.com/arkwave/netcore/protocol"
	"github.com/arkwave/netcore/router"
	"github.com/arkwave/netcore/wsconn"
)

// WSHandlerFunc builds the callbacks for one newly-upgraded connection,
// given the path parameters extracted from the matched route.
type WSHandlerFunc func(params map[string]string) wsconn.Callbacks

// wsDriver abstracts the actual socket I/O strategy: epoll-multiplexed on
// Linux (reactor package), goroutine-per-connection elsewhere.
type wsDriver interface {
	// register hands a freshly handshaken connection off to the driver,
	// which owns all further reads and writes on conn.
	register(wc *wsconn.Connection, conn net.Conn) error
	// wake asks the driver to flush any frames enqueued on wc's send
	// queue since the driver last looked, used by the heartbeat and by
	// broadcast when the enqueue happens off the driver's own goroutine.
	wake(id uuid.UUID)
	// run executes the driver's event loop (a no-op for the fallback
	// driver) until stop is closed.
	run(stop <-chan struct{})
}

type wsRoute struct {
	pattern    string
	matcher    *regexp.Regexp
	paramNames []string
	handler    WSHandlerFunc
}

// WSServer accepts WebSocket upgrade requests, matches them against
// registered path patterns, and hands each accepted connection to a
// platform driver. It also runs the heartbeat sweep and exposes Broadcast.
type WSServer struct {
	cfg    WSConfig
	logger zerolog.Logger
	driver wsDriver

	routesMu sync.RWMutex
	routes   []wsRoute

	connections sync.Map // uuid.UUID -> *wsconn.Connection

	listener  net.Listener
	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWSServer builds a WSServer. On Linux it drives connections through an
// epoll reactor; on other platforms it falls back to goroutine-per-connection.
func NewWSServer(cfg WSConfig, logger zerolog.Logger) (*WSServer, error) {
	d, err := newDriver(cfg.MaxMessageSize)
	if err != nil {
		return nil, err
	}
	return &WSServer{cfg: cfg, logger: logger, driver: d, stop: make(chan struct{})}, nil
}

// Handle registers a WebSocket endpoint at pattern ("/rooms/:id" syntax,
// shared with package router).
func (s *WSServer) Handle(pattern string, handler WSHandlerFunc) {
	matcher, params := router.CompilePattern(pattern)
	s.routesMu.Lock()
	s.routes = append(s.routes, wsRoute{pattern: pattern, matcher: matcher, paramNames: params, handler: handler})
	s.routesMu.Unlock()
}

func (s *WSServer) match(path string) (WSHandlerFunc, map[string]string, bool) {
	s.routesMu.RLock()
	defer s.routesMu.RUnlock()
	for _, rte := range s.routes {
		m := rte.matcher.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params := make(map[string]string, len(rte.paramNames))
		for i, name := range rte.paramNames {
			params[name] = m[i+1]
		}
		return rte.handler, params, true
	}
	return nil, nil, false
}

// ListenAndServe binds cfg.Addr, starts the driver and heartbeat, and
// accepts upgrade requests until Shutdown is called or the listener errors.
func (s *WSServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("websocket server listening")

	go s.driver.run(s.stop)
	go s.heartbeatLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return nil
			default:
				return err
			}
		}
		s.wg.Add(1)
		go s.handshake(conn)
	}
}

func (s *WSServer) handshake(conn net.Conn) {
	defer s.wg.Done()

	req, err := httpcore.ParseRequest(conn)
	if err != nil {
		s.rejectHandshake(conn, err)
		return
	}

	handler, params, ok := s.match(req.Path)
	if !ok {
		s.writeReject(conn, 404, "no websocket route for "+req.Path)
		return
	}

	resp, err := protocol.BuildHandshakeResponse(req)
	if err != nil {
		s.rejectHandshake(conn, err)
		return
	}
	if _, err := conn.Write(resp.Bytes()); err != nil {
		conn.Close()
		return
	}

	cb := handler(params)
	userOnClose := cb.OnClose
	cb.OnClose = func(c *wsconn.Connection, code int, reason string) {
		s.connections.Delete(c.ID)
		if userOnClose != nil {
			userOnClose(c, code, reason)
		}
	}

	wc := wsconn.New(req.Path, conn.RemoteAddr().String(), cb)
	s.connections.Store(wc.ID, wc)

	if err := s.driver.register(wc, conn); err != nil {
		s.logger.Error().Err(err).Msg("failed to register websocket connection")
		wc.Finalize(protocol.CloseInternalError, "driver registration failed")
		conn.Close()
		return
	}
	s.logger.Info().Str("conn_id", wc.ID.String()).Str("path", wc.Path).Msg("websocket connection opened")
}

func (s *WSServer) rejectHandshake(conn net.Conn, err error) {
	kind := httpcore.KindBadRequest
	if herr, ok := err.(*httpcore.Error); ok {
		kind = herr.Kind
	}
	s.writeReject(conn, kind.StatusCode(), err.Error())
}

func (s *WSServer) writeReject(conn net.Conn, status int, msg string) {
	resp := httpcore.NewResponse()
	resp.Status = status
	resp.Header("Content-Type", "text/plain; charset=utf-8")
	resp.Body = msg
	conn.Write(resp.Bytes())
	conn.Close()
	s.logger.Warn().Int("status", status).Str("reason", msg).Msg("websocket handshake rejected")
}

func (s *WSServer) heartbeatLoop() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepInactive()
		}
	}
}

func (s *WSServer) sweepInactive() {
	cutoff := time.Now().Add(-s.cfg.MaxInactivityTime).UnixMilli()
	s.connections.Range(func(key, value any) bool {
		wc := value.(*wsconn.Connection)
		if wc.State() != wsconn.StateOpen {
			return true
		}
		if wc.LastActivity() < cutoff {
			_ = wc.InitiateClose(protocol.CloseGoingAway, "inactivity timeout")
		} else {
			_ = wc.SendPing(nil)
		}
		s.driver.wake(wc.ID)
		return true
	})
}

// Broadcast enqueues text on every currently open connection.
func (s *WSServer) Broadcast(text string) {
	s.connections.Range(func(key, value any) bool {
		wc := value.(*wsconn.Connection)
		if wc.State() != wsconn.StateOpen {
			return true
		}
		if err := wc.SendText(text); err != nil {
			s.logger.Warn().Err(err).Str("conn_id", wc.ID.String()).Msg("broadcast enqueue failed")
		}
		s.driver.wake(wc.ID)
		return true
	})
}

// Shutdown stops accepting new connections, asks every open connection to
// close, and waits up to ctx's deadline for them to drain.
func (s *WSServer) Shutdown(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.connections.Range(func(key, value any) bool {
			wc := value.(*wsconn.Connection)
			_ = wc.InitiateClose(protocol.CloseGoingAway, "server shutting down")
			s.driver.wake(wc.ID)
			return true
		})
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		for {
			empty := true
			s.connections.Range(func(key, value any) bool { empty = false; return false })
			if empty {
				break
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
