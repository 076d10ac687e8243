/*
Package endpointtest provides helpers for testing endpoints without an
HTTP server.

	res := endpointtest.NewRequest("GET", "/todos/7").Apply(todo)
	assert.Equal(t, tuple.Of(uint64(7)), res.Value)
*/
package endpointtest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/tuple"
)

// DefaultTimeout limits the execution of the actions started by Apply.
const DefaultTimeout = 3 * time.Second

// Request builds the request matched by Apply.
type Request struct {
	req     *http.Request
	timeout time.Duration
	ctx     context.Context
}

// Result of applying and executing an endpoint.
type Result struct {

	// Value is the result tuple when the action finished successfully.
	Value tuple.Tuple

	// Err is the failure of the action.
	Err error

	// Rejection is set when the endpoint did not match.
	Rejection *endpoint.Rejection

	// Route is the name recorded by endpoint.Named.
	Route string
}

// NewRequest creates a request, the target can be a path or an absolute
// URL.
func NewRequest(method, target string) *Request {
	return &Request{req: httptest.NewRequest(method, target, nil), timeout: DefaultTimeout}
}

// Header adds a request header.
func (r *Request) Header(name, value string) *Request {
	r.req.Header.Add(name, value)
	return r
}

// Body sets the request body.
func (r *Request) Body(b string) *Request {
	return r.BodyReader(strings.NewReader(b), int64(len(b)))
}

// BodyReader sets the request body from a reader. Use -1 as the length
// when it is not known.
func (r *Request) BodyReader(b io.Reader, length int64) *Request {
	r.req.Body = io.NopCloser(b)
	r.req.ContentLength = length
	return r
}

// Timeout changes the execution limit.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Context sets the parent context of the execution.
func (r *Request) Context(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// HTTPRequest returns the built request.
func (r *Request) HTTPRequest() *http.Request { return r.req }

// Apply matches the request against e and, when it matches, executes the
// action to completion.
func (r *Request) Apply(e endpoint.Endpoint) Result {
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := r.req.WithContext(ctx)
	in := endpoint.NewInput(req)
	a, rej := e.Apply(endpoint.NewContext(in))
	if rej != nil {
		return Result{Rejection: rej}
	}

	v, err := endpoint.NewDriver(a).Run(ctx, in)
	return Result{Value: v, Err: err, Route: in.Route()}
}

// Matched tells whether the endpoint matched the request.
func (r Result) Matched() bool { return r.Rejection == nil }

// Status returns the HTTP status the result would be reported with: the
// status of the rejection or the failure, or 200.
func (r Result) Status() int {
	if r.Rejection != nil {
		return r.Rejection.Status
	}

	return endpoint.HTTPStatus(r.Err)
}
