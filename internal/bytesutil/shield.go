// Package bytesutil provides the low-level byte-stream primitives shared by
// the HTTP request parser and the multipart decoder: boundary search, tolerant
// line splitting, and a close-shielding reader adaptor.
package bytesutil

import "io"

// ShieldedReader wraps an io.Reader so that Close never reaches the
// underlying stream. The HTTP parser hands callers a buffered view over the
// raw socket; closing that view (e.g. via bufio hygiene) must not cascade
// into closing the socket itself, since the connection stays open after the
// parser returns.
type ShieldedReader struct {
	r io.Reader
}

// Shield returns r wrapped so that Close is a no-op.
func Shield(r io.Reader) *ShieldedReader {
	return &ShieldedReader{r: r}
}

func (s *ShieldedReader) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Close is intentionally a no-op: the caller owns the underlying stream.
func (s *ShieldedReader) Close() error {
	return nil
}
