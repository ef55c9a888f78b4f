// Package server wires httpcore/router into a plain HTTP listener and wires
// protocol/wsconn/reactor into a WebSocket listener. Both accept loops are
// goroutine-per-connection; neither keeps connections alive past one
// request/session, matching the no-keep-alive HTTP model and the explicit
// WebSocket lifecycle described by the wire packages beneath this one.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arkwave/netcore/httpcore"
	"github.com/arkwave/netcore/router"
)

// HTTPServer accepts plain HTTP/1.1 connections and dispatches each request
// through a Router. Every connection is read once, routed once, and closed —
// there is no keep-alive.
type HTTPServer struct {
	cfg      HTTPConfig
	router   *router.Router
	logger   zerolog.Logger
	listener net.Listener

	mu        sync.Mutex
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewHTTPServer builds an HTTPServer dispatching through rt.
func NewHTTPServer(cfg HTTPConfig, rt *router.Router, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{cfg: cfg, router: rt, logger: logger, stop: make(chan struct{})}
}

// Addr returns the address the server is currently bound to, or the empty
// string before ListenAndServe has bound its listener.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ListenAndServe binds cfg.Addr and serves until Shutdown is called or the
// listener errors.
func (s *HTTPServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http server: listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")

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
		go s.serveConn(conn)
	}
}

func (s *HTTPServer) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	req, err := httpcore.ParseRequest(conn)
	if err != nil {
		s.writeParseError(conn, err)
		return
	}

	var resp *httpcore.Response
	if s.cfg.PreFilter != nil {
		resp = httpcore.NewResponse()
		if !s.cfg.PreFilter(req, resp) {
			if _, err := conn.Write(resp.Bytes()); err != nil {
				s.logger.Warn().Err(err).Str("path", req.Path).Msg("failed writing pre-filter response")
			}
			return
		}
	}

	resp = s.router.Dispatch(req)
	if _, err := conn.Write(resp.Bytes()); err != nil {
		s.logger.Warn().Err(err).Str("path", req.Path).Msg("failed writing response")
	}
}

func (s *HTTPServer) writeParseError(conn net.Conn, err error) {
	kind := httpcore.KindBadRequest
	if herr, ok := err.(*httpcore.Error); ok {
		kind = herr.Kind
	}
	resp := httpcore.NewResponse()
	resp.Status = kind.StatusCode()
	resp.Header("Content-Type", "text/plain; charset=utf-8")
	resp.Body = fmt.Sprintf("%d %s", kind.StatusCode(), kind)
	conn.Write(resp.Bytes())
	s.logger.Warn().Err(err).Msg("request parse failed")
}

// Shutdown stops accepting new connections and waits for in-flight requests
// to finish, or for ctx to expire, whichever comes first.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()
		if ln != nil {
			err = ln.Close()
		}
	})
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
