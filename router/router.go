// Package router implements the path-parameterized HTTP router: pattern
// compilation, first-match-wins dispatch, middleware chaining, and
// kind-tagged error dispatch, as described by the core HTTP pipeline.
package router

import (
	"fmt"
	"regexp"

	"github.com/arkwave/netcore/httpcore"
)

// HandlerFunc handles a matched request and produces a response. It may
// return an error (typically an *httpcore.Error) instead of a response; the
// router then dispatches to the matching registered error handler.
type HandlerFunc func(req *httpcore.Request) (*httpcore.Response, error)

// Middleware runs before routing. It may mutate resp and return false to
// short-circuit the pipeline (the response is already decided), or return
// true to let dispatch continue to the next middleware / the route.
type Middleware func(req *httpcore.Request, resp *httpcore.Response) bool

// ErrorHandler fully takes over resp for a dispatched error.
type ErrorHandler func(err error, req *httpcore.Request, resp *httpcore.Response)

type route struct {
	pattern    string
	matcher    *regexp.Regexp
	paramNames []string
	handler    HandlerFunc
}

type errorEntry struct {
	kind    httpcore.Kind
	handler ErrorHandler
}

// Router holds registered routes per method, an ordered middleware chain,
// and an ordered list of (kind, handler) pairs for error dispatch.
type Router struct {
	routes        map[httpcore.Method][]*route
	middleware    []Middleware
	errorHandlers []errorEntry
}

// New constructs an empty Router.
func New() *Router {
	return &Router{routes: make(map[httpcore.Method][]*route)}
}

// Handle registers handler for method+pattern. Routes are tried in
// registration order; the first whose pattern matches the path wins,
// regardless of pattern specificity.
func (rt *Router) Handle(method httpcore.Method, pattern string, handler HandlerFunc) {
	matcher, params := compilePattern(pattern)
	rt.routes[method] = append(rt.routes[method], &route{
		pattern:    pattern,
		matcher:    matcher,
		paramNames: params,
		handler:    handler,
	})
}

func (rt *Router) GET(pattern string, handler HandlerFunc)     { rt.Handle(httpcore.MethodGet, pattern, handler) }
func (rt *Router) POST(pattern string, handler HandlerFunc)    { rt.Handle(httpcore.MethodPost, pattern, handler) }
func (rt *Router) PUT(pattern string, handler HandlerFunc)     { rt.Handle(httpcore.MethodPut, pattern, handler) }
func (rt *Router) DELETE(pattern string, handler HandlerFunc)  { rt.Handle(httpcore.MethodDelete, pattern, handler) }
func (rt *Router) PATCH(pattern string, handler HandlerFunc)   { rt.Handle(httpcore.MethodPatch, pattern, handler) }
func (rt *Router) HEAD(pattern string, handler HandlerFunc)    { rt.Handle(httpcore.MethodHead, pattern, handler) }
func (rt *Router) OPTIONS(pattern string, handler HandlerFunc) { rt.Handle(httpcore.MethodOptions, pattern, handler) }

// Use appends middleware to the chain, run in registration order.
func (rt *Router) Use(mw ...Middleware) {
	rt.middleware = append(rt.middleware, mw...)
}

// OnError registers handler for the first-matching kind in dispatch order;
// registering the same kind twice adds a second, unreachable entry, so
// callers should register each kind at most once.
func (rt *Router) OnError(kind httpcore.Kind, handler ErrorHandler) {
	rt.errorHandlers = append(rt.errorHandlers, errorEntry{kind: kind, handler: handler})
}

// Dispatch runs the middleware chain, then routes req, then dispatches any
// error raised (returned or panicked) through the registered error handlers
// or the built-in default.
func (rt *Router) Dispatch(req *httpcore.Request) *httpcore.Response {
	resp := httpcore.NewResponse()

	for _, mw := range rt.middleware {
		if !mw(req, resp) {
			return resp
		}
	}

	for _, rte := range rt.routes[req.Method] {
		m := rte.matcher.FindStringSubmatch(req.Path)
		if m == nil {
			continue
		}
		params := make(map[string]string, len(rte.paramNames))
		for i, name := range rte.paramNames {
			params[name] = m[i+1]
		}
		enriched := req.WithPathParams(params)
		return rt.invoke(rte.handler, enriched, resp)
	}

	resp.Status = 404
	resp.Body = "404 Not Found"
	return resp
}

// invoke calls handler, recovering from panics the same way a returned error
// would be handled, and dispatches any resulting error.
func (rt *Router) invoke(handler HandlerFunc, req *httpcore.Request, resp *httpcore.Response) (out *httpcore.Response) {
	out = resp
	var raised error

	func() {
		defer func() {
			if r := recover(); r != nil {
				if err, ok := r.(error); ok {
					raised = err
				} else {
					raised = fmt.Errorf("handler panic: %v", r)
				}
			}
		}()
		result, err := handler(req)
		if err != nil {
			raised = err
			return
		}
		if result != nil {
			out = result
		}
	}()

	if raised != nil {
		rt.dispatchError(raised, req, out)
	}
	return out
}

func (rt *Router) dispatchError(err error, req *httpcore.Request, resp *httpcore.Response) {
	kind := httpcore.KindInternal
	if herr, ok := err.(*httpcore.Error); ok {
		kind = herr.Kind
	}

	for _, entry := range rt.errorHandlers {
		if entry.kind == kind {
			entry.handler(err, req, resp)
			return
		}
	}

	defaultErrorHandler(kind, err, req, resp)
}

// defaultErrorHandler renders the built-in responses described in spec §7:
// a short plain-text body for 4xx, an HTML page (including path and method)
// for the built-in 500.
func defaultErrorHandler(kind httpcore.Kind, err error, req *httpcore.Request, resp *httpcore.Response) {
	resp.Status = kind.StatusCode()
	if kind == httpcore.KindInternal {
		resp.Header("Content-Type", "text/html; charset=utf-8")
		resp.Body = fmt.Sprintf(
			"<html><body><h1>500 Internal Server Error</h1><p>%s %s</p><p>%s</p></body></html>",
			req.Method, req.Path, err.Error(),
		)
		return
	}
	resp.Header("Content-Type", "text/plain; charset=utf-8")
	resp.Body = fmt.Sprintf("%d %s", kind.StatusCode(), kind)
}
