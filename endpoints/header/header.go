/*
Package header implements endpoints extracting values from the request
headers and cookies.

The extractors always match. Missing or malformed required values fail
the action with 400 Bad Request. The matchers Exists and Matches reject
the request instead, so they can be used to select between alternatives.

Examples:

	// produces the value of the X-Tenant header, fails when missing
	header.Required("X-Tenant")

	// produces *string, nil when missing
	header.Optional("If-None-Match")

	// produces int64
	header.Parsed[int64]("X-Page")
*/
package header

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/endpoints"
	"github.com/zalando/waypoint/tuple"
)

type extractor struct {
	name    string
	extract endpoint.SyncFunc
}

type matcher struct {
	name  string
	value *regexp.Regexp
}

func missing(name string) error {
	return endpoint.Errorf(http.StatusBadRequest, "missing header: %s", name)
}

// Required produces the value of the header, and fails when it is
// missing.
func Required(name string) endpoint.Endpoint {
	name = http.CanonicalHeaderKey(name)
	return &extractor{name: name, extract: func(in *endpoint.Input) (tuple.Tuple, error) {
		v, ok := in.Header()[name]
		if !ok || len(v) == 0 {
			return nil, missing(name)
		}

		return tuple.Of(v[0]), nil
	}}
}

// Optional produces a pointer to the value of the header, or nil.
func Optional(name string) endpoint.Endpoint {
	name = http.CanonicalHeaderKey(name)
	return &extractor{name: name, extract: func(in *endpoint.Input) (tuple.Tuple, error) {
		v, ok := in.Header()[name]
		if !ok || len(v) == 0 {
			return tuple.Of((*string)(nil)), nil
		}

		s := v[0]
		return tuple.Of(&s), nil
	}}
}

// Parsed produces the value of the header parsed as T.
func Parsed[T endpoints.Scalar](name string) endpoint.Endpoint {
	name = http.CanonicalHeaderKey(name)
	return &extractor{name: name, extract: func(in *endpoint.Input) (tuple.Tuple, error) {
		v, ok := in.Header()[name]
		if !ok || len(v) == 0 {
			return nil, missing(name)
		}

		p, err := endpoints.Parse[T](v[0])
		if err != nil {
			return nil, endpoint.NewError(http.StatusBadRequest, fmt.Errorf("header %s: %w", name, err))
		}

		return tuple.Of(p), nil
	}}
}

// Cookie produces the value of a cookie, and fails when it is missing.
func Cookie(name string) endpoint.Endpoint {
	return &extractor{name: "Cookie", extract: func(in *endpoint.Input) (tuple.Tuple, error) {
		c, err := in.Request().Cookie(name)
		if errors.Is(err, http.ErrNoCookie) {
			return nil, endpoint.Errorf(http.StatusBadRequest, "missing cookie: %s", name)
		}

		if err != nil {
			return nil, endpoint.NewError(http.StatusBadRequest, err)
		}

		return tuple.Of(c.Value), nil
	}}
}

// Exists matches when the header is present.
func Exists(name string) endpoint.Endpoint {
	return &matcher{name: http.CanonicalHeaderKey(name)}
}

// Matches matches when any value of the header matches the regular
// expression.
func Matches(name, expression string) (endpoint.Endpoint, error) {
	rx, err := regexp.Compile(expression)
	if err != nil {
		return nil, err
	}

	return &matcher{name: http.CanonicalHeaderKey(name), value: rx}, nil
}

func (e *extractor) Apply(*endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	return endpoint.Sync(e.extract), nil
}

func (m *matcher) Apply(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	v := c.Input().Header()[m.name]
	if len(v) == 0 {
		return nil, endpoint.NotMatched()
	}

	if m.value == nil {
		return endpoint.Value(tuple.Empty), nil
	}

	for _, vi := range v {
		if m.value.MatchString(vi) {
			return endpoint.Value(tuple.Empty), nil
		}
	}

	return nil, endpoint.NotMatched()
}
