package router_test

import (
	"errors"
	"testing"

	"github.com/arkwave/netcore/httpcore"
	"github.com/arkwave/netcore/router"
)

func newTestRequest(method httpcore.Method, path string) *httpcore.Request {
	return &httpcore.Request{
		Method:     method,
		Path:       path,
		Headers:    map[string]string{},
		Query:      map[string]string{},
		PathParams: map[string]string{},
		Files:      map[string]httpcore.FilePart{},
	}
}

func TestRouterExtractsPathParams(t *testing.T) {
	rt := router.New()
	var gotID string
	rt.GET("/users/:id", func(req *httpcore.Request) (*httpcore.Response, error) {
		gotID = req.PathParams["id"]
		resp := httpcore.NewResponse()
		resp.Body = "ok"
		return resp, nil
	})

	resp := rt.Dispatch(newTestRequest(httpcore.MethodGet, "/users/42"))
	if resp.Status != 200 {
		t.Fatalf("got status %d, want 200", resp.Status)
	}
	if gotID != "42" {
		t.Fatalf("got id %q, want 42", gotID)
	}
}

func TestRouterFirstMatchWins(t *testing.T) {
	rt := router.New()
	rt.GET("/users/:id", func(req *httpcore.Request) (*httpcore.Response, error) {
		resp := httpcore.NewResponse()
		resp.Body = "first"
		return resp, nil
	})
	rt.GET("/users/special", func(req *httpcore.Request) (*httpcore.Response, error) {
		resp := httpcore.NewResponse()
		resp.Body = "second"
		return resp, nil
	})

	resp := rt.Dispatch(newTestRequest(httpcore.MethodGet, "/users/special"))
	if resp.Body != "first" {
		t.Fatalf("got body %q, want %q (registration order wins)", resp.Body, "first")
	}
}

func TestRouterMiddlewareShortCircuit(t *testing.T) {
	rt := router.New()
	called := false
	rt.Use(func(req *httpcore.Request, resp *httpcore.Response) bool {
		resp.Status = 401
		resp.Body = "unauthorized"
		return false
	})
	rt.GET("/secret", func(req *httpcore.Request) (*httpcore.Response, error) {
		called = true
		return nil, nil
	})

	resp := rt.Dispatch(newTestRequest(httpcore.MethodGet, "/secret"))
	if called {
		t.Fatal("handler should not run once middleware short-circuits")
	}
	if resp.Status != 401 {
		t.Fatalf("got status %d, want 401", resp.Status)
	}
}

func TestRouterDispatchesReturnedError(t *testing.T) {
	rt := router.New()
	rt.GET("/boom", func(req *httpcore.Request) (*httpcore.Response, error) {
		return nil, httpcore.NewError(httpcore.KindForbidden, "nope")
	})

	resp := rt.Dispatch(newTestRequest(httpcore.MethodGet, "/boom"))
	if resp.Status != 403 {
		t.Fatalf("got status %d, want 403", resp.Status)
	}
}

func TestRouterRecoversFromPanic(t *testing.T) {
	rt := router.New()
	rt.GET("/panics", func(req *httpcore.Request) (*httpcore.Response, error) {
		panic(errors.New("kaboom"))
	})

	resp := rt.Dispatch(newTestRequest(httpcore.MethodGet, "/panics"))
	if resp.Status != 500 {
		t.Fatalf("got status %d, want 500", resp.Status)
	}
}

func TestRouterCustomErrorHandler(t *testing.T) {
	rt := router.New()
	rt.OnError(httpcore.KindForbidden, func(err error, req *httpcore.Request, resp *httpcore.Response) {
		resp.Status = 403
		resp.Body = "custom forbidden"
	})
	rt.GET("/boom", func(req *httpcore.Request) (*httpcore.Response, error) {
		return nil, httpcore.NewError(httpcore.KindForbidden, "nope")
	})

	resp := rt.Dispatch(newTestRequest(httpcore.MethodGet, "/boom"))
	if resp.Body != "custom forbidden" {
		t.Fatalf("got body %q, want custom handler output", resp.Body)
	}
}

func TestRouterNoMatchReturns404(t *testing.T) {
	rt := router.New()
	resp := rt.Dispatch(newTestRequest(httpcore.MethodGet, "/nowhere"))
	if resp.Status != 404 {
		t.Fatalf("got status %d, want 404", resp.Status)
	}
}
