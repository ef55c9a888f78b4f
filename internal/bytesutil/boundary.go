package bytesutil

import "io"

// boundaryMatcher performs a streaming Knuth-Morris-Pratt search for a fixed
// pattern over a byte-at-a-time feed. It never re-reads a byte: each feed
// call advances the automaton by exactly one input byte.
type boundaryMatcher struct {
	pattern []byte
	fail    []int
	matched int
}

func newBoundaryMatcher(pattern []byte) *boundaryMatcher {
	fail := make([]int, len(pattern))
	k := 0
	for i := 1; i < len(pattern); i++ {
		for k > 0 && pattern[i] != pattern[k] {
			k = fail[k-1]
		}
		if pattern[i] == pattern[k] {
			k++
		}
		fail[i] = k
	}
	return &boundaryMatcher{pattern: pattern, fail: fail}
}

// feed advances the matcher by one byte, returning true once the full
// pattern has been matched (the matcher resets automatically afterward).
func (m *boundaryMatcher) feed(b byte) bool {
	for m.matched > 0 && m.pattern[m.matched] != b {
		m.matched = m.fail[m.matched-1]
	}
	if m.pattern[m.matched] == b {
		m.matched++
	}
	if m.matched == len(m.pattern) {
		m.matched = m.fail[m.matched-1]
		return true
	}
	return false
}

// MatchMarker consumes bytes from r until marker has been fully matched. It
// performs no further interpretation of what follows.
func MatchMarker(r *PushbackReader, marker []byte) error {
	m := newBoundaryMatcher(marker)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if m.feed(b) {
			return nil
		}
	}
}

// SkipToBoundary consumes bytes from r until marker (e.g. "--"+boundary) has
// been fully matched, then consumes the trailing line terminator: CRLF is
// preferred, a bare LF is tolerated, and any other byte is pushed back onto
// r so the caller can decide what follows.
func SkipToBoundary(r *PushbackReader, marker []byte) error {
	if err := MatchMarker(r, marker); err != nil {
		return err
	}
	return ConsumeLineEnd(r)
}

// ConsumeLineEnd swallows CRLF, tolerates a bare LF, and pushes back any
// other byte observed (along with whatever followed it, if read).
func ConsumeLineEnd(r *PushbackReader) error {
	b1, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if b1 == '\n' {
		return nil
	}
	if b1 == '\r' {
		b2, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if b2 == '\n' {
			return nil
		}
		r.Unread([]byte{b2})
		return nil
	}
	r.Unread([]byte{b1})
	return nil
}

// ReadLine reads bytes up to and including the next '\n', trimming a
// trailing '\r' (CRLF) if present, tolerating a bare LF terminator. Returns
// the line without its terminator. io.EOF with a non-empty partial line is
// reported as that line with a nil error; a clean EOF on an empty line is
// reported as io.EOF.
func ReadLine(r *PushbackReader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return string(buf), nil
			}
			return "", err
		}
		if b == '\n' {
			if n := len(buf); n > 0 && buf[n-1] == '\r' {
				buf = buf[:n-1]
			}
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

// ReadHeaderBlock reads bytes from r until the first header terminator
// ("\r\n\r\n", preferred, or "\n\n", tolerated) and returns everything up to
// but excluding the terminator.
func ReadHeaderBlock(r *PushbackReader) ([]byte, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if n := len(buf); n >= 4 && buf[n-4] == '\r' && buf[n-3] == '\n' && buf[n-2] == '\r' && buf[n-1] == '\n' {
			return buf[:n-4], nil
		}
		if n := len(buf); n >= 2 && buf[n-2] == '\n' && buf[n-1] == '\n' {
			return buf[:n-2], nil
		}
	}
}
