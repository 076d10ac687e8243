package endpoint

import (
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/zalando/waypoint/cursor"
)

// Input is the snapshot of a single request, taken once before matching.
// The method, the URL and the headers must be treated as read only. The
// body can be taken exactly once.
type Input struct {
	method  string
	url     *url.URL
	header  http.Header
	request *http.Request

	mu        sync.Mutex
	body      io.ReadCloser
	bodyTaken bool
	route     string
}

// NewInput creates the input of a request.
func NewInput(r *http.Request) *Input {
	u := r.URL
	if u == nil {
		u = &url.URL{Path: "/"}
	}

	h := r.Header
	if h == nil {
		h = make(http.Header)
	}

	return &Input{
		method:  r.Method,
		url:     u,
		header:  h,
		request: r,
		body:    r.Body,
	}
}

// Method returns the request method.
func (in *Input) Method() string { return in.method }

// URL returns the request URL.
func (in *Input) URL() *url.URL { return in.url }

// Header returns the request headers.
func (in *Input) Header() http.Header { return in.header }

// Request returns the original request, e.g. to access cookies or the
// remote address.
func (in *Input) Request() *http.Request { return in.request }

// TakeBody moves the request body out of the input. Only the first call
// succeeds, every later call returns ErrBodyTaken. When the request had
// no body, an empty reader is returned.
func (in *Input) TakeBody() (io.ReadCloser, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.bodyTaken {
		return nil, ErrBodyTaken
	}

	in.bodyTaken = true
	b := in.body
	in.body = nil
	if b == nil {
		b = http.NoBody
	}

	return b, nil
}

// BodyTaken tells whether the body was already moved out.
func (in *Input) BodyTaken() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.bodyTaken
}

// Route returns the name of the innermost named endpoint that was
// executed, or an empty string.
func (in *Input) Route() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.route
}

func (in *Input) setRoute(name string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.route = name
}

// Context is passed to the endpoints while matching a request. It holds
// the input and the current position in the path.
type Context struct {
	input  *Input
	cursor cursor.Cursor
}

// NewContext creates the matching context of a request, with the cursor
// at the beginning of the escaped path.
func NewContext(in *Input) *Context {
	return &Context{input: in, cursor: cursor.New(in.url.EscapedPath())}
}

// Input returns the request snapshot.
func (c *Context) Input() *Input { return c.input }

// Cursor returns a copy of the current position.
func (c *Context) Cursor() cursor.Cursor { return c.cursor }

// SetCursor moves the context to a position, typically one obtained by
// advancing a copy returned by Cursor.
func (c *Context) SetCursor(cur cursor.Cursor) { c.cursor = cur }

// Clone returns a context sharing the input, with an independent cursor.
func (c *Context) Clone() *Context {
	cc := *c
	return &cc
}
