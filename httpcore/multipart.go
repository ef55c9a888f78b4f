package httpcore

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/arkwave/netcore/internal/bytesutil"
)

const (
	// MaxFilePartSize caps a single uploaded file.
	MaxFilePartSize = 100 << 20 // 100 MiB
	// tempDir is the directory uploaded files are streamed into, relative
	// to the process working directory.
	tempDir = "temp"
	// copyBufSize is the buffer used to stream a part body to disk.
	copyBufSize = 8 << 10 // 8 KiB
)

var blockedExtensions = map[string]bool{
	".exe": true,
	".sh":  true,
	".bat": true,
	".cmd": true,
	".com": true,
	".scr": true,
}

var extensionContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".html": "text/html",
	".json": "application/json",
}

// parseMultipart reads a multipart/form-data body from pr, which must be
// positioned immediately after the outer request's header terminator. File
// parts are streamed to temp files; form fields are merged into req.Query,
// with form fields winning over same-named query parameters.
func parseMultipart(pr *bytesutil.PushbackReader, boundary string, req *Request) error {
	marker := []byte("--" + boundary)

	for {
		end, err := scanBoundaryLine(pr, marker)
		if err != nil {
			return Wrap(KindBadRequest, "invalid multipart framing", err)
		}
		if end {
			return nil
		}

		headers, err := readPartHeaders(pr)
		if err != nil {
			return Wrap(KindBadRequest, "invalid multipart part headers", err)
		}

		name, filename, hasFilename := parseContentDisposition(headers["content-disposition"])

		body := newPartBodyReader(pr, marker)

		if hasFilename && filename != "" {
			part, err := consumeFilePart(body, filename)
			if err != nil {
				return err
			}
			if name != "" {
				req.Files[name] = part
			}
		} else {
			data, err := io.ReadAll(body)
			if err != nil {
				return Wrap(KindBadRequest, "invalid multipart field body", err)
			}
			if name != "" {
				req.Query[name] = string(data)
			}
		}
	}
}

// scanBoundaryLine matches marker and reports whether it was immediately
// followed by the end-boundary suffix "--".
func scanBoundaryLine(pr *bytesutil.PushbackReader, marker []byte) (bool, error) {
	if err := bytesutil.MatchMarker(pr, marker); err != nil {
		return false, err
	}
	b1, err := pr.ReadByte()
	if err != nil {
		if err == io.EOF {
			return true, nil
		}
		return false, err
	}
	if b1 == '-' {
		b2, err := pr.ReadByte()
		if err != nil && err != io.EOF {
			return false, err
		}
		if err == nil && b2 == '-' {
			_ = bytesutil.ConsumeLineEnd(pr)
			return true, nil
		}
		if err == nil {
			pr.Unread([]byte{b1, b2})
		} else {
			pr.Unread([]byte{b1})
		}
	} else {
		pr.Unread([]byte{b1})
	}
	if err := bytesutil.ConsumeLineEnd(pr); err != nil && err != io.EOF {
		return false, err
	}
	return false, nil
}

// readPartHeaders reads CRLF/LF-tolerant header lines until a blank line,
// joining repeated header names with a comma (distinct from the top-level
// request header rule of "first value wins").
func readPartHeaders(pr *bytesutil.PushbackReader) (map[string]string, error) {
	headers := make(map[string]string)
	for {
		line, err := bytesutil.ReadLine(pr)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return headers, nil
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed part header line %q", line)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if existing, ok := headers[name]; ok {
			headers[name] = existing + "," + value
		} else {
			headers[name] = value
		}
	}
}

// parseContentDisposition extracts name and filename from a
// Content-Disposition header value of the form:
//
//	form-data; name="field"; filename="file.txt"
func parseContentDisposition(value string) (name, filename string, hasFilename bool) {
	parts := strings.Split(value, ";")
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		key, v, found := strings.Cut(p, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		v = strings.Trim(strings.TrimSpace(v), `"`)
		switch key {
		case "name":
			name = v
		case "filename":
			filename = v
			hasFilename = true
		}
	}
	return name, filename, hasFilename
}

// partBodyReader exposes a single multipart part's body as a plain
// io.Reader, detecting the next boundary occurrence ("CRLF--boundary")
// inline and reporting EOF once seen, pushing the boundary bytes (and
// anything after them) back onto the underlying stream.
type partBodyReader struct {
	src    *bytesutil.PushbackReader
	marker []byte // "\r\n--" + boundary
	buf    []byte
	eof    bool
	err    error
}

func newPartBodyReader(src *bytesutil.PushbackReader, boundaryMarker []byte) *partBodyReader {
	full := make([]byte, 0, len(boundaryMarker)+2)
	full = append(full, '\r', '\n')
	full = append(full, boundaryMarker...)
	return &partBodyReader{src: src, marker: full}
}

func (p *partBodyReader) Read(out []byte) (int, error) {
	if p.eof {
		return 0, io.EOF
	}
	if p.err != nil {
		return 0, p.err
	}

	for {
		if idx := bytes.Index(p.buf, p.marker); idx >= 0 {
			n := copy(out, p.buf[:idx])
			p.buf = p.buf[n:]
			if n < idx {
				// caller buffer smaller than available safe prefix
				return n, nil
			}
			// the rest (from the boundary marker onward) goes back to src
			p.src.Unread(p.buf)
			p.buf = nil
			p.eof = true
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}

		keep := len(p.marker) - 1
		if len(p.buf) > keep {
			emit := len(p.buf) - keep
			n := copy(out, p.buf[:emit])
			p.buf = p.buf[n:]
			if n > 0 {
				return n, nil
			}
		}

		chunk := make([]byte, 4096)
		m, rerr := p.src.Read(chunk)
		if m > 0 {
			p.buf = append(p.buf, chunk[:m]...)
		}
		if rerr != nil {
			if rerr == io.EOF {
				p.err = io.ErrUnexpectedEOF
			} else {
				p.err = rerr
			}
			if m > 0 {
				// scan the bytes that arrived with the error for the marker first
				continue
			}
			if len(out) > 0 && len(p.buf) > 0 {
				n := copy(out, p.buf)
				p.buf = p.buf[n:]
				return n, nil
			}
			return 0, p.err
		}
	}
}

// consumeFilePart validates the filename, streams body into a unique temp
// file under temp/, detects its content type, and enforces the per-file
// size cap. On any error the partially written temp file is removed.
func consumeFilePart(body io.Reader, filename string) (FilePart, error) {
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		return FilePart{}, NewError(KindForbidden, "rejected filename "+filename)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if blockedExtensions[ext] {
		return FilePart{}, NewError(KindForbidden, "blocked file extension "+ext)
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return FilePart{}, Wrap(KindInternal, "failed to create temp directory", err)
	}

	tmp, err := os.CreateTemp(tempDir, "upload-*"+ext)
	if err != nil {
		return FilePart{}, Wrap(KindInternal, "failed to create temp file", err)
	}
	path := tmp.Name()

	size, err := streamWithCap(tmp, body, MaxFilePartSize)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return FilePart{}, Wrap(KindBadRequest, "failed to store uploaded file", err)
	}

	contentType, err := detectContentType(path, ext)
	if err != nil {
		_ = os.Remove(path)
		return FilePart{}, Wrap(KindInternal, "failed to detect content type", err)
	}

	return FilePart{
		Filename:    filename,
		ContentType: contentType,
		Path:        path,
		Size:        size,
	}, nil
}

func streamWithCap(dst io.Writer, src io.Reader, cap int64) (int64, error) {
	buf := make([]byte, copyBufSize)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > cap {
				return total, fmt.Errorf("uploaded file exceeds %d bytes", cap)
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

func detectContentType(path, ext string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	probe := make([]byte, 512)
	n, err := f.Read(probe)
	if err != nil && err != io.EOF {
		return "", err
	}
	sniffed := http.DetectContentType(probe[:n])
	if sniffed != "application/octet-stream" {
		return sniffed, nil
	}
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct, nil
	}
	return "application/octet-stream", nil
}
