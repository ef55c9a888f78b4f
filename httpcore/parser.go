package httpcore

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arkwave/netcore/internal/bytesutil"
)

// MaxBodySize is the hard cap on a non-multipart request body, per spec.
const MaxBodySize = 50 << 20 // 50 MiB

// ParseRequest decodes one HTTP/1.1 request from raw. raw is never closed;
// the returned Request.Raw is a close-shielded view over whatever bytes
// follow the request body. A multipart body is consumed in full (files
// streamed to disk, fields merged into Query) before ParseRequest returns.
func ParseRequest(raw io.Reader) (*Request, error) {
	pr := bytesutil.NewPushbackReader(raw)

	block, err := bytesutil.ReadHeaderBlock(pr)
	if err != nil {
		return nil, Wrap(KindBadRequest, "incomplete request headers", err)
	}

	lines := strings.Split(string(block), "\n")
	if len(lines) == 0 {
		return nil, NewError(KindBadRequest, "empty request")
	}

	requestLine := strings.TrimSuffix(lines[0], "\r")
	tokens := strings.Split(requestLine, " ")
	if len(tokens) != 3 {
		return nil, NewError(KindBadRequest, "malformed request line")
	}
	methodToken, rawPath, proto := tokens[0], tokens[1], tokens[2]

	method, ok := ParseMethod(methodToken)
	if !ok {
		return nil, NewError(KindBadRequest, "unsupported method "+methodToken)
	}

	decodedPath, err := percentDecode(rawPath)
	if err != nil {
		return nil, Wrap(KindBadRequest, "invalid path encoding", err)
	}

	pathPart, queryPart, _ := strings.Cut(decodedPath, "?")
	if containsTraversal(pathPart) {
		return nil, NewError(KindForbidden, "path traversal rejected")
	}

	query, err := parseQueryString(queryPart)
	if err != nil {
		return nil, Wrap(KindBadRequest, "invalid query encoding", err)
	}

	headers := make(map[string]string)
	for _, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, NewError(KindBadRequest, "malformed header line")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if _, exists := headers[name]; !exists {
			headers[name] = value
		}
	}

	req := &Request{
		Method:     method,
		Path:       pathPart,
		Proto:      proto,
		Headers:    headers,
		Query:      query,
		PathParams: map[string]string{},
		Files:      map[string]FilePart{},
	}

	contentType := headers["content-type"]
	if boundary, ok := multipartBoundary(contentType); ok {
		if err := parseMultipart(pr, boundary, req); err != nil {
			return nil, err
		}
		req.Raw = bytesutil.Shield(pr)
		return req, nil
	}

	bodyLen := 0
	if cl, ok := headers["content-length"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return nil, NewError(KindBadRequest, "invalid Content-Length")
		}
		bodyLen = n
	}
	if bodyLen > MaxBodySize {
		return nil, NewError(KindBadRequest, "request body exceeds maximum size")
	}

	bodyBytes := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(pr, bodyBytes); err != nil {
			return nil, Wrap(KindBadRequest, "truncated request body", err)
		}
	}
	req.Body = string(bodyBytes)
	req.Raw = bytesutil.Shield(pr)
	return req, nil
}

func containsTraversal(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func parseQueryString(raw string) (map[string]string, error) {
	result := make(map[string]string)
	if raw == "" {
		return result, nil
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		dk, err := percentDecode(k)
		if err != nil {
			return nil, err
		}
		dv, err := percentDecode(v)
		if err != nil {
			return nil, err
		}
		result[dk] = dv
	}
	return result, nil
}

// percentDecode decodes %XX escapes as UTF-8 bytes; it does not treat '+' as
// a space, matching the literal percent-decoding the spec calls for.
func percentDecode(s string) (string, error) {
	if !strings.ContainsRune(s, '%') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated percent-escape at offset %d", i)
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("invalid percent-escape at offset %d", i)
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), nil
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

// multipartBoundary extracts the boundary token from a Content-Type header
// value, stripping surrounding quotes, if the type is multipart/form-data.
func multipartBoundary(contentType string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(contentType), "multipart/form-data") {
		return "", false
	}
	idx := strings.Index(strings.ToLower(contentType), "boundary=")
	if idx < 0 {
		return "", false
	}
	b := contentType[idx+len("boundary="):]
	if semi := strings.IndexByte(b, ';'); semi >= 0 {
		b = b[:semi]
	}
	b = strings.TrimSpace(b)
	b = strings.Trim(b, `"`)
	if b == "" {
		return "", false
	}
	return b, true
}
