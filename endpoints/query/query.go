/*
Package query implements endpoints extracting values from the query
string of the request URL.

Examples:

	// produces the value of ?q=, fails with 400 when missing
	query.Required("q")

	// produces *string
	query.Optional("cursor")

	// produces []string, possibly empty
	query.All("tag")

	// produces uint64, fails with 400 when missing or not a number
	query.Parsed[uint64]("limit")

	// matches only when ?debug is present, rejects otherwise
	query.Exists("debug")
*/
package query

import (
	"fmt"
	"net/http"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/endpoints"
	"github.com/zalando/waypoint/tuple"
)

type extractor endpoint.SyncFunc

type exists string

func (e extractor) Apply(*endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	return endpoint.Sync(endpoint.SyncFunc(e)), nil
}

func values(in *endpoint.Input, name string) []string {
	return in.URL().Query()[name]
}

func missing(name string) error {
	return endpoint.Errorf(http.StatusBadRequest, "missing query parameter: %s", name)
}

// Required produces the first value of the query parameter.
func Required(name string) endpoint.Endpoint {
	return extractor(func(in *endpoint.Input) (tuple.Tuple, error) {
		v := values(in, name)
		if len(v) == 0 {
			return nil, missing(name)
		}

		return tuple.Of(v[0]), nil
	})
}

// Optional produces a pointer to the first value of the query parameter,
// or nil.
func Optional(name string) endpoint.Endpoint {
	return extractor(func(in *endpoint.Input) (tuple.Tuple, error) {
		v := values(in, name)
		if len(v) == 0 {
			return tuple.Of((*string)(nil)), nil
		}

		s := v[0]
		return tuple.Of(&s), nil
	})
}

// All produces every value of the query parameter.
func All(name string) endpoint.Endpoint {
	return extractor(func(in *endpoint.Input) (tuple.Tuple, error) {
		v := values(in, name)
		if v == nil {
			v = []string{}
		}

		return tuple.Of(v), nil
	})
}

// Parsed produces the first value of the query parameter, parsed as T.
func Parsed[T endpoints.Scalar](name string) endpoint.Endpoint {
	return extractor(func(in *endpoint.Input) (tuple.Tuple, error) {
		v := values(in, name)
		if len(v) == 0 {
			return nil, missing(name)
		}

		p, err := endpoints.Parse[T](v[0])
		if err != nil {
			return nil, endpoint.NewError(http.StatusBadRequest, fmt.Errorf("query parameter %s: %w", name, err))
		}

		return tuple.Of(p), nil
	})
}

// Raw produces the raw query string.
func Raw() endpoint.Endpoint {
	return extractor(func(in *endpoint.Input) (tuple.Tuple, error) {
		return tuple.Of(in.URL().RawQuery), nil
	})
}

// Exists matches when the query parameter is present, even without a
// value.
func Exists(name string) endpoint.Endpoint { return exists(name) }

func (e exists) Apply(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	if _, ok := c.Input().URL().Query()[string(e)]; !ok {
		return nil, endpoint.NotMatched()
	}

	return endpoint.Value(tuple.Empty), nil
}
