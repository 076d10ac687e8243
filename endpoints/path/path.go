/*
Package path implements the endpoints matching the request path segment
by segment.

Examples:

	// matches /todos/42, produces (uint64(42))
	endpoint.And(path.Segment("todos"), path.Param[uint64](), path.End())

	// matches /static/css/site.css, produces ("css/site.css")
	endpoint.And(path.Segment("static"), path.Rest())

Segments are compared and parsed after percent-decoding. A parameter that
finds a segment it can't parse rejects the request with 400 Bad Request,
which is preferred over a plain 404 when alternatives are combined with
endpoint.OrStrict.
*/
package path

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/zalando/waypoint/cursor"
	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/endpoints"
	"github.com/zalando/waypoint/tuple"
)

type segment struct {
	name string
}

type param[T endpoints.Scalar] struct{}

type end struct{}

type rest struct{}

type anySegment struct{}

// Segment matches a single path segment equal to name.
func Segment(name string) endpoint.Endpoint { return &segment{name: name} }

// Segments matches a sequence of literal segments, given in the form of a
// path, e.g. "api/v1".
func Segments(p string) endpoint.Endpoint {
	c := cursor.New("/" + strings.TrimPrefix(p, "/"))
	var e []endpoint.Endpoint
	for {
		s, ok := c.Next()
		if !ok {
			break
		}

		e = append(e, Segment(s))
	}

	return endpoint.And(e...)
}

// Param matches any segment that can be parsed as T, and produces the
// parsed value.
func Param[T endpoints.Scalar]() endpoint.Endpoint { return param[T]{} }

// End matches only when the path was fully consumed.
func End() endpoint.Endpoint { return end{} }

// Rest matches the remaining path, including the empty one, and produces
// it as a decoded string. It consumes all the remaining segments.
func Rest() endpoint.Endpoint { return rest{} }

// Any matches any single segment without producing a value.
func Any() endpoint.Endpoint { return anySegment{} }

func unescape(s string) (string, *endpoint.Rejection) {
	u, err := url.PathUnescape(s)
	if err != nil {
		return "", endpoint.BadRequest(fmt.Sprintf("invalid path segment %q", s))
	}

	return u, nil
}

func (s *segment) Apply(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	cur := c.Cursor()
	seg, ok := cur.Next()
	if !ok {
		return nil, endpoint.NotMatched()
	}

	if seg != s.name {
		if u, rej := unescape(seg); rej != nil || u != s.name {
			return nil, endpoint.NotMatched()
		}
	}

	c.SetCursor(cur)
	return endpoint.Value(tuple.Empty), nil
}

func (s *segment) String() string { return s.name }

func (param[T]) Apply(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	cur := c.Cursor()
	seg, ok := cur.Next()
	if !ok {
		return nil, endpoint.NotMatched()
	}

	u, rej := unescape(seg)
	if rej != nil {
		return nil, rej
	}

	v, err := endpoints.Parse[T](u)
	if err != nil {
		return nil, endpoint.BadRequest(err.Error())
	}

	c.SetCursor(cur)
	return endpoint.Value(tuple.Of(v)), nil
}

func (end) Apply(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	if !c.Cursor().Exhausted() {
		return nil, endpoint.NotMatched()
	}

	return endpoint.Value(tuple.Empty), nil
}

func (rest) Apply(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	cur := c.Cursor()
	r, rej := unescape(cur.Remaining())
	if rej != nil {
		return nil, rej
	}

	// counted as segments, so that alternations compare the catch-all with
	// the other branches by the same measure
	cur.Skip()
	c.SetCursor(cur)
	return endpoint.Value(tuple.Of(r)), nil
}

func (anySegment) Apply(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	cur := c.Cursor()
	if _, ok := cur.Next(); !ok {
		return nil, endpoint.NotMatched()
	}

	c.SetCursor(cur)
	return endpoint.Value(tuple.Empty), nil
}
