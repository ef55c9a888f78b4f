package httpcore_test

import (
	"strings"
	"testing"

	"github.com/arkwave/netcore/httpcore"
)

func TestParseRequestSimpleGETWithQuery(t *testing.T) {
	raw := "GET /search?q=go%20lang&tag=web HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req, err := httpcore.ParseRequest(strings.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != httpcore.MethodGet {
		t.Fatalf("got method %q, want GET", req.Method)
	}
	if req.Path != "/search" {
		t.Fatalf("got path %q, want /search", req.Path)
	}
	if req.Query["q"] != "go lang" {
		t.Fatalf("got q=%q, want %q", req.Query["q"], "go lang")
	}
	if req.Query["tag"] != "web" {
		t.Fatalf("got tag=%q, want %q", req.Query["tag"], "web")
	}
	if host, ok := req.Header("host"); !ok || host != "example.com" {
		t.Fatalf("got Host=%q, ok=%v", host, ok)
	}
}

func TestParseRequestBodyByContentLength(t *testing.T) {
	raw := "POST /items HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	req, err := httpcore.ParseRequest(strings.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if req.Body != "hello" {
		t.Fatalf("got body %q, want %q", req.Body, "hello")
	}
}

func TestParseRequestRejectsPathTraversal(t *testing.T) {
	raw := "GET /static/../secret HTTP/1.1\r\nHost: x\r\n\r\n"
	_, err := httpcore.ParseRequest(strings.NewReader(raw))
	if err == nil {
		t.Fatal("expected an error for path traversal")
	}
	herr, ok := err.(*httpcore.Error)
	if !ok {
		t.Fatalf("got error of type %T, want *httpcore.Error", err)
	}
	if herr.Kind != httpcore.KindForbidden {
		t.Fatalf("got kind %v, want KindForbidden", herr.Kind)
	}
}

func TestParseRequestRejectsMalformedRequestLine(t *testing.T) {
	raw := "GET /no-proto\r\nHost: x\r\n\r\n"
	_, err := httpcore.ParseRequest(strings.NewReader(raw))
	if err == nil {
		t.Fatal("expected an error for a malformed request line")
	}
}

func TestParseRequestRejectsUnsupportedMethod(t *testing.T) {
	raw := "TRACE / HTTP/1.1\r\nHost: x\r\n\r\n"
	_, err := httpcore.ParseRequest(strings.NewReader(raw))
	if err == nil {
		t.Fatal("expected an error for an unsupported method")
	}
}

func TestParseRequestRejectsOversizedContentLength(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 999999999999\r\n\r\n"
	_, err := httpcore.ParseRequest(strings.NewReader(raw))
	if err == nil {
		t.Fatal("expected an error for a body exceeding the maximum size")
	}
}

func TestParseRequestFirstHeaderValueWins(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Id: first\r\nX-Id: second\r\n\r\n"
	req, err := httpcore.ParseRequest(strings.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := req.Header("X-Id"); v != "first" {
		t.Fatalf("got X-Id=%q, want %q", v, "first")
	}
}
