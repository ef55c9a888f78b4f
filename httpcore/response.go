package httpcore

import (
	"fmt"
	"strings"
	"time"
)

// headerEntry is one ordered, canonically-cased header line.
type headerEntry struct {
	Name  string
	Value string
}

// Cookie is one Set-Cookie entry. Only the attributes with a field here are
// serialized. SetCookie always sets HttpOnly and fills an empty SameSite with
// "Lax"; a cookie added through SetCookie cannot omit either attribute.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int
	HasMaxAge bool
	Expires  time.Time
	Secure   bool
	HttpOnly bool
	SameSite string
}

// Response is a mutable builder for an HTTP/1.1 response. Serialization
// happens only in Bytes; mutating the builder after serialization has
// no retroactive effect on bytes already written.
type Response struct {
	Status  int
	headers []headerEntry
	cookies []Cookie
	Body    string
}

// NewResponse constructs a 200 response with the default security headers
// required by spec: Server, Date, X-Content-Type-Options, X-Frame-Options,
// X-XSS-Protection. Content-Length is computed in Bytes and cannot be set
// manually; Connection defaults to "close" in Bytes unless set via Header.
func NewResponse() *Response {
	r := &Response{Status: 200}
	r.Header("Server", "netcore")
	r.Header("Date", time.Now().UTC().Format(time.RFC1123))
	r.Header("X-Content-Type-Options", "nosniff")
	r.Header("X-Frame-Options", "DENY")
	r.Header("X-XSS-Protection", "1; mode=block")
	return r
}

// Header sets (or overwrites, by canonicalized-name comparison) a response
// header. Content-Length may not be set this way — it is always computed
// from Body at serialization time.
func (r *Response) Header(name, value string) *Response {
	canon := canonicalHeaderKey(name)
	if canon == "Content-Length" {
		return r
	}
	for i := range r.headers {
		if r.headers[i].Name == canon {
			r.headers[i].Value = value
			return r
		}
	}
	r.headers = append(r.headers, headerEntry{Name: canon, Value: value})
	return r
}

// HeaderValue returns the current value of a header set via Header, if any.
func (r *Response) HeaderValue(name string) (string, bool) {
	canon := canonicalHeaderKey(name)
	for _, h := range r.headers {
		if h.Name == canon {
			return h.Value, true
		}
	}
	return "", false
}

// SetCookie appends a Set-Cookie entry, always setting HttpOnly and setting
// SameSite to Lax when the caller left it empty.
func (r *Response) SetCookie(c Cookie) *Response {
	if !c.HttpOnly {
		c.HttpOnly = true
	}
	if c.SameSite == "" {
		c.SameSite = "Lax"
	}
	r.cookies = append(r.cookies, c)
	return r
}

// StatusReason returns the canonical reason phrase for r.Status.
func (r *Response) StatusReason() string {
	if reason, ok := statusReasons[r.Status]; ok {
		return reason
	}
	return "Unknown"
}

// Bytes serializes the full response: status line, headers, Set-Cookie
// lines, Content-Length (when the body is non-empty), a blank line, and the
// body. Connection: close is emitted by default per spec Non-goals (no
// keep-alive) unless the handler already set its own Connection header — the
// WebSocket handshake response needs "Connection: Upgrade" instead.
func (r *Response) Bytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.Status, r.StatusReason())

	hasConnection := false
	for _, h := range r.headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
		if h.Name == "Connection" {
			hasConnection = true
		}
	}
	for _, c := range r.cookies {
		fmt.Fprintf(&b, "Set-Cookie: %s\r\n", serializeCookie(c))
	}
	if !hasConnection {
		b.WriteString("Connection: close\r\n")
	}

	bodyLen := len([]byte(r.Body))
	if bodyLen > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", bodyLen)
	}
	b.WriteString("\r\n")
	b.WriteString(r.Body)
	return []byte(b.String())
}

func serializeCookie(c Cookie) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s", c.Name, c.Value)
	if c.Path != "" {
		fmt.Fprintf(&b, "; Path=%s", c.Path)
	}
	if c.Domain != "" {
		fmt.Fprintf(&b, "; Domain=%s", c.Domain)
	}
	if c.HasMaxAge {
		fmt.Fprintf(&b, "; Max-Age=%d", c.MaxAge)
	}
	if !c.Expires.IsZero() {
		fmt.Fprintf(&b, "; Expires=%s", c.Expires.UTC().Format(time.RFC1123))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	if c.SameSite != "" {
		fmt.Fprintf(&b, "; SameSite=%s", c.SameSite)
	}
	return b.String()
}

// canonicalHeaderKey normalizes a header name to First-Letter-Upper form
// per word, splitting on '-' (e.g. "content-type" -> "Content-Type").
func canonicalHeaderKey(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		lower := strings.ToLower(p)
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, "-")
}

var statusReasons = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	503: "Service Unavailable",
}
