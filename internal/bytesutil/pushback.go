package bytesutil

import (
	"bufio"
	"io"
)

// PushbackSize is the working-buffer size used while scanning for multipart
// boundaries and header terminators.
const PushbackSize = 16 * 1024

// PushbackReader layers an explicit unread operation on top of a buffered
// reader. The multipart decoder uses it to detect a boundary inline inside a
// part body and push the boundary bytes back so the outer scan can resume
// exactly where the inner one stopped.
type PushbackReader struct {
	br   *bufio.Reader
	back []byte
}

// NewPushbackReader wraps r with a PushbackSize-buffered reader.
func NewPushbackReader(r io.Reader) *PushbackReader {
	return &PushbackReader{br: bufio.NewReaderSize(r, PushbackSize)}
}

// ReadByte reads a single byte, preferring previously unread bytes.
func (p *PushbackReader) ReadByte() (byte, error) {
	if len(p.back) > 0 {
		b := p.back[0]
		p.back = p.back[1:]
		return b, nil
	}
	return p.br.ReadByte()
}

// Unread pushes b back so the next reads return it before any new bytes.
func (p *PushbackReader) Unread(b []byte) {
	if len(b) == 0 {
		return
	}
	merged := make([]byte, len(b)+len(p.back))
	copy(merged, b)
	copy(merged[len(b):], p.back)
	p.back = merged
}

// Read implements io.Reader, draining unread bytes first.
func (p *PushbackReader) Read(buf []byte) (int, error) {
	if len(p.back) > 0 {
		n := copy(buf, p.back)
		p.back = p.back[n:]
		if n == len(buf) {
			return n, nil
		}
		m, err := p.br.Read(buf[n:])
		return n + m, err
	}
	return p.br.Read(buf)
}
