package httpcore

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/arkwave/netcore/internal/bytesutil"
)

func buildMultipartBody(boundary string, parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("--")
		b.WriteString(boundary)
		b.WriteString("\r\n")
		b.WriteString(p)
	}
	b.WriteString("--")
	b.WriteString(boundary)
	b.WriteString("--\r\n")
	return b.String()
}

func TestParseMultipartFieldAndFile(t *testing.T) {
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	const boundary = "X-TEST-BOUNDARY"
	body := buildMultipartBody(boundary,
		"Content-Disposition: form-data; name=\"title\"\r\n\r\nhello world\r\n",
		"Content-Disposition: form-data; name=\"upload\"; filename=\"note.txt\"\r\n"+
			"Content-Type: text/plain\r\n\r\nfile contents here\r\n",
	)

	raw := "POST /upload HTTP/1.1\r\nHost: x\r\nContent-Type: multipart/form-data; boundary=" + boundary + "\r\n\r\n" + body

	req, err := ParseRequest(strings.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if req.Query["title"] != "hello world" {
		t.Fatalf("got title=%q, want %q", req.Query["title"], "hello world")
	}
	part, ok := req.Files["upload"]
	if !ok {
		t.Fatal("expected an uploaded file part named \"upload\"")
	}
	if part.Filename != "note.txt" {
		t.Fatalf("got filename %q, want note.txt", part.Filename)
	}
	data, err := os.ReadFile(part.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "file contents here" {
		t.Fatalf("got file contents %q, want %q", data, "file contents here")
	}
}

func TestParseMultipartRejectsBlockedExtension(t *testing.T) {
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	const boundary = "X-TEST-BOUNDARY"
	body := buildMultipartBody(boundary,
		"Content-Disposition: form-data; name=\"upload\"; filename=\"virus.exe\"\r\n\r\nMZ\r\n",
	)
	raw := "POST /upload HTTP/1.1\r\nHost: x\r\nContent-Type: multipart/form-data; boundary=" + boundary + "\r\n\r\n" + body

	_, err := ParseRequest(strings.NewReader(raw))
	if err == nil {
		t.Fatal("expected an error for a blocked file extension")
	}
	herr, ok := err.(*Error)
	if !ok || herr.Kind != KindForbidden {
		t.Fatalf("got %v, want a KindForbidden *Error", err)
	}
}

func TestParseMultipartRejectsPathTraversalFilename(t *testing.T) {
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	const boundary = "X-TEST-BOUNDARY"
	body := buildMultipartBody(boundary,
		"Content-Disposition: form-data; name=\"upload\"; filename=\"../../etc/passwd\"\r\n\r\ndata\r\n",
	)
	raw := "POST /upload HTTP/1.1\r\nHost: x\r\nContent-Type: multipart/form-data; boundary=" + boundary + "\r\n\r\n" + body

	_, err := ParseRequest(strings.NewReader(raw))
	if err == nil {
		t.Fatal("expected an error for a path-traversal filename")
	}
	herr, ok := err.(*Error)
	if !ok || herr.Kind != KindForbidden {
		t.Fatalf("got %v, want a KindForbidden *Error", err)
	}
}

func TestStreamWithCapEnforcesLimit(t *testing.T) {
	src := strings.NewReader(strings.Repeat("a", 100))
	var dst strings.Builder
	_, err := streamWithCap(&dst, src, 10)
	if err == nil {
		t.Fatal("expected an error once the cap is exceeded")
	}
}

func TestPartBodyReaderStopsAtBoundary(t *testing.T) {
	raw := "payload bytes\r\n--BOUND--\r\ntrailing"
	pr := bytesutil.NewPushbackReader(strings.NewReader(raw))
	body := newPartBodyReader(pr, []byte("--BOUND"))
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload bytes" {
		t.Fatalf("got %q, want %q", data, "payload bytes")
	}

	rest, err := io.ReadAll(pr)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "\r\n--BOUND--\r\ntrailing" {
		t.Fatalf("got remaining stream %q, want the boundary marker preserved intact", rest)
	}
}
