package router

import (
	"regexp"
	"strings"
)

// CompilePattern is the exported form of compilePattern, reused by package
// server to match WebSocket upgrade paths with the same syntax as HTTP routes.
func CompilePattern(pattern string) (*regexp.Regexp, []string) {
	return compilePattern(pattern)
}

// compilePattern turns a route pattern like "/users/:id/messages/:messageId"
// into an anchored regular expression plus the left-to-right list of
// parameter names. Segments starting with ':' become a single-segment
// capture ([^/]+); every other segment is matched literally.
func compilePattern(pattern string) (*regexp.Regexp, []string) {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return regexp.MustCompile(`^/$`), nil
	}

	segments := strings.Split(trimmed, "/")
	parts := make([]string, 0, len(segments))
	var params []string

	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, ":") {
			params = append(params, strings.TrimPrefix(seg, ":"))
			parts = append(parts, `([^/]+)`)
			continue
		}
		parts = append(parts, regexp.QuoteMeta(seg))
	}

	expr := "^/" + strings.Join(parts, "/") + "$"
	return regexp.MustCompile(expr), params
}
