package bytesutil_test

import (
	"io"
	"strings"
	"testing"

	"github.com/arkwave/netcore/internal/bytesutil"
)

func TestPushbackReaderUnread(t *testing.T) {
	pr := bytesutil.NewPushbackReader(strings.NewReader("hello"))

	b, err := pr.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if b != 'h' {
		t.Fatalf("got %q, want 'h'", b)
	}

	pr.Unread([]byte{b})

	buf := make([]byte, 5)
	n, err := io.ReadFull(pr, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf[:n], "hello")
	}
}

func TestReadHeaderBlockLF(t *testing.T) {
	pr := bytesutil.NewPushbackReader(strings.NewReader("GET / HTTP/1.1\nHost: x\n\nbody"))
	block, err := bytesutil.ReadHeaderBlock(pr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(block), "Host: x") {
		t.Fatalf("header block missing Host line: %q", block)
	}

	rest, err := io.ReadAll(pr)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "body" {
		t.Fatalf("got leftover %q, want %q", rest, "body")
	}
}

func TestReadHeaderBlockCRLF(t *testing.T) {
	pr := bytesutil.NewPushbackReader(strings.NewReader("GET / HTTP/1.1\r\nHost: x\r\n\r\nbody"))
	block, err := bytesutil.ReadHeaderBlock(pr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(block), "Host: x") {
		t.Fatalf("header block missing Host line: %q", block)
	}
}
