// Package primitive provides endpoints that match unconditionally or never.
package primitive

import (
	"slices"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/tuple"
)

type value tuple.Tuple

type reject endpoint.Rejection

type failure struct{ err error }

// Value matches every request and produces the values.
func Value(v ...any) endpoint.Endpoint { return value(tuple.Of(v...)) }

// Unit matches every request and produces the empty tuple.
func Unit() endpoint.Endpoint { return value(tuple.Empty) }

// Reject never matches. Every request is rejected with the status.
func Reject(status int, reason string) endpoint.Endpoint {
	return &reject{Status: status, Reason: reason}
}

// Fail matches every request, and its action fails with err.
func Fail(err error) endpoint.Endpoint { return failure{err: err} }

// Every request gets its own copy of the values.
func (v value) Apply(*endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	return endpoint.Value(slices.Clone(tuple.Tuple(v))), nil
}

func (r *reject) Apply(*endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	rej := endpoint.Rejection(*r)
	return nil, &rej
}

func (f failure) Apply(*endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	return endpoint.Failure(f.err), nil
}
