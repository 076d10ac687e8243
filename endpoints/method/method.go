/*
Package method implements endpoints matching the HTTP method of the
request. A mismatch is rejected with 405 Method Not Allowed.

Examples:

	// matches GET /todos
	endpoint.And(method.Get(), path.Segment("todos"))

	// matches PUT or PATCH
	method.Is("PUT", "patch")
*/
package method

import (
	"net/http"
	"strings"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/tuple"
)

type matcher struct {
	methods map[string]bool
}

// Is matches any of the methods, case insensitive. Without arguments,
// every method matches.
func Is(methods ...string) endpoint.Endpoint {
	m := &matcher{methods: make(map[string]bool)}
	for _, mi := range methods {
		m.methods[strings.ToUpper(mi)] = true
	}

	return m
}

func Get() endpoint.Endpoint     { return Is(http.MethodGet) }
func Head() endpoint.Endpoint    { return Is(http.MethodHead) }
func Post() endpoint.Endpoint    { return Is(http.MethodPost) }
func Put() endpoint.Endpoint     { return Is(http.MethodPut) }
func Patch() endpoint.Endpoint   { return Is(http.MethodPatch) }
func Delete() endpoint.Endpoint  { return Is(http.MethodDelete) }
func Options() endpoint.Endpoint { return Is(http.MethodOptions) }

// Any matches every method.
func Any() endpoint.Endpoint { return Is() }

func (m *matcher) Apply(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	method := c.Input().Method()
	if len(m.methods) > 0 && !m.methods[strings.ToUpper(method)] {
		return nil, endpoint.MethodNotAllowed(method)
	}

	return endpoint.Value(tuple.Empty), nil
}
