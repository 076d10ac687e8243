/*
Package body implements endpoints reading the request body.

The body is moved out of the request input when the action starts, and it
is read in its own goroutine. The body can be taken only once per request:
combining two body endpoints in the same branch makes the second one fail
with endpoint.ErrBodyTaken.

Bodies encoded with gzip, deflate, br or zstd are decoded according to
the Content-Encoding header. The size of the decoded body is limited by
MaxSize, DefaultMaxSize by default. Endpoints expecting a specific media
type reject requests with a different Content-Type with 415, so that e.g.
JSON and form variants of the same operation can be combined with
endpoint.OrStrict.

Examples:

	// produces todo
	body.JSON[todo]()

	// produces gjson.Result for the field "user.name"
	body.JSONField("user.name")

	// produces url.Values
	body.Form(body.MaxSize(1 << 16))
*/
package body

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/tuple"
)

// DefaultMaxSize is the default limit of the decoded body size.
const DefaultMaxSize = 10 << 20

type options struct {
	maxSize int64
}

// Option configures a body endpoint.
type Option func(*options)

// MaxSize sets the maximum size of the decoded body. Larger bodies fail
// the action with 413.
func MaxSize(n int64) Option {
	return func(o *options) { o.maxSize = n }
}

type parser func([]byte, *endpoint.Input) (tuple.Tuple, error)

type reader struct {
	options
	mediaType func(string) bool
	parse     parser
}

type readAction struct {
	reader *reader
	inner  endpoint.Action
	done   bool
}

func newReader(mediaType func(string) bool, parse parser, opts []Option) *reader {
	r := &reader{options: options{maxSize: DefaultMaxSize}, mediaType: mediaType, parse: parse}
	for _, o := range opts {
		o(&r.options)
	}

	return r
}

func anyMediaType(string) bool { return true }

func isJSON(mt string) bool {
	return mt == "" || mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func isForm(mt string) bool {
	return mt == "application/x-www-form-urlencoded"
}

func badRequest(format string, args ...interface{}) error {
	return endpoint.Errorf(http.StatusBadRequest, format, args...)
}

// Raw produces the body as []byte.
func Raw(opts ...Option) endpoint.Endpoint {
	return newReader(anyMediaType, func(b []byte, _ *endpoint.Input) (tuple.Tuple, error) {
		return tuple.Of(b), nil
	}, opts)
}

// Text produces the body as string. It fails with 400 when the body is not
// valid UTF-8.
func Text(opts ...Option) endpoint.Endpoint {
	return newReader(anyMediaType, func(b []byte, _ *endpoint.Input) (tuple.Tuple, error) {
		if !utf8.Valid(b) {
			return nil, badRequest("body is not valid UTF-8")
		}

		return tuple.Of(string(b)), nil
	}, opts)
}

// JSON decodes the body into T. Requests without Content-Type, or with
// application/json or any +json media type are accepted.
func JSON[T any](opts ...Option) endpoint.Endpoint {
	return newReader(isJSON, func(b []byte, _ *endpoint.Input) (tuple.Tuple, error) {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, badRequest("invalid JSON body: %v", err)
		}

		return tuple.Of(v), nil
	}, opts)
}

// JSONField produces the gjson.Result found in the JSON body at path. It
// fails with 400 when the body is not valid JSON or the field does not
// exist.
func JSONField(path string, opts ...Option) endpoint.Endpoint {
	return newReader(isJSON, func(b []byte, _ *endpoint.Input) (tuple.Tuple, error) {
		if !gjson.ValidBytes(b) {
			return nil, badRequest("invalid JSON body")
		}

		r := gjson.GetBytes(b, path)
		if !r.Exists() {
			return nil, badRequest("missing JSON field: %s", path)
		}

		return tuple.Of(r), nil
	}, opts)
}

// Form decodes an application/x-www-form-urlencoded body into url.Values.
func Form(opts ...Option) endpoint.Endpoint {
	return newReader(isForm, func(b []byte, _ *endpoint.Input) (tuple.Tuple, error) {
		v, err := url.ParseQuery(string(b))
		if err != nil {
			return nil, badRequest("invalid form body: %v", err)
		}

		return tuple.Of(v), nil
	}, opts)
}

func (r *reader) Apply(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	ct := c.Input().Header().Get("Content-Type")
	var mt string
	if ct != "" {
		var err error
		mt, _, err = mime.ParseMediaType(ct)
		if err != nil {
			return nil, endpoint.Reject(http.StatusUnsupportedMediaType, "invalid content type")
		}
	}

	if !r.mediaType(mt) {
		return nil, endpoint.Reject(http.StatusUnsupportedMediaType, "unsupported content type: "+mt)
	}

	return &readAction{reader: r}, nil
}

func (a *readAction) fail(err error) endpoint.Poll {
	a.done = true
	return endpoint.Fail(err)
}

// the body is taken synchronously, so that two readers on the same input
// fail deterministically, in the order they are executed
func (a *readAction) Preflight(in *endpoint.Input) endpoint.Poll {
	if a.done || a.inner != nil {
		panic(endpoint.ErrResumedAfterFinish)
	}

	limit := a.reader.maxSize
	if cl := in.Request().ContentLength; cl > limit && in.Header().Get("Content-Encoding") == "" {
		return a.fail(endpoint.Errorf(http.StatusRequestEntityTooLarge, "request body too large: %d", cl))
	}

	b, err := in.TakeBody()
	if err != nil {
		return a.fail(endpoint.NewError(http.StatusInternalServerError, err))
	}

	parse := a.reader.parse
	a.inner = endpoint.Async(func(ctx context.Context, in *endpoint.Input) (tuple.Tuple, error) {
		data, err := read(ctx, b, in.Header(), limit)
		if err != nil {
			return nil, err
		}

		return parse(data, in)
	})

	return a.inner.Preflight(in)
}

func (a *readAction) Resume(t *endpoint.Task) endpoint.Poll {
	if a.done {
		panic(endpoint.ErrResumedAfterFinish)
	}

	if a.inner == nil {
		if p := a.Preflight(t.Input()); p.Done() {
			return p
		}
	}

	p := a.inner.Resume(t)
	a.done = p.Done()
	return p
}

func read(ctx context.Context, body io.ReadCloser, h http.Header, limit int64) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	r, err := decode(body, h)
	if err != nil {
		return nil, err
	}

	defer r.Close()
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var se endpoint.StatusError
		if errors.As(err, &se) {
			return nil, err
		}

		return nil, endpoint.NewError(http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err))
	}

	if int64(len(b)) > limit {
		return nil, endpoint.Errorf(http.StatusRequestEntityTooLarge, "request body larger than %d bytes", limit)
	}

	return b, nil
}
