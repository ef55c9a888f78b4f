package httpcore

// Method is an HTTP/1.1 request method restricted to the set this server
// understands. Anything else is rejected at parse time.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

var validMethods = map[string]Method{
	"GET":     MethodGet,
	"POST":    MethodPost,
	"PUT":     MethodPut,
	"DELETE":  MethodDelete,
	"PATCH":   MethodPatch,
	"HEAD":    MethodHead,
	"OPTIONS": MethodOptions,
}

// ParseMethod validates a wire token against the fixed method set.
func ParseMethod(token string) (Method, bool) {
	m, ok := validMethods[token]
	return m, ok
}
