package endpoint

import (
	"net/http"

	"github.com/zalando/waypoint/tuple"
)

type mapper func(tuple.Tuple) (tuple.Tuple, error)

type mapEndpoint struct {
	endpoint Endpoint
	f        mapper
}

type mapAction struct {
	finished
	inner Action
	f     mapper
}

// Map creates an endpoint that transforms the result of e with f. The
// result is a one-element tuple containing the value returned by f. f is
// called once, on the final value of e.
func Map(e Endpoint, f func(tuple.Tuple) any) Endpoint {
	return &mapEndpoint{
		endpoint: e,
		f: func(t tuple.Tuple) (tuple.Tuple, error) {
			return tuple.Of(f(t)), nil
		},
	}
}

func shapeError(err error) error {
	return NewError(http.StatusInternalServerError, err)
}

// Map1 is Map for endpoints producing a one-element tuple.
func Map1[A, R any](e Endpoint, f func(A) R) Endpoint {
	return &mapEndpoint{
		endpoint: e,
		f: func(t tuple.Tuple) (tuple.Tuple, error) {
			a, err := tuple.Get1[A](t)
			if err != nil {
				return nil, shapeError(err)
			}

			return tuple.Of(f(a)), nil
		},
	}
}

// Map2 is Map for endpoints producing a two-element tuple.
func Map2[A, B, R any](e Endpoint, f func(A, B) R) Endpoint {
	return &mapEndpoint{
		endpoint: e,
		f: func(t tuple.Tuple) (tuple.Tuple, error) {
			a, b, err := tuple.Get2[A, B](t)
			if err != nil {
				return nil, shapeError(err)
			}

			return tuple.Of(f(a, b)), nil
		},
	}
}

// Map3 is Map for endpoints producing a three-element tuple.
func Map3[A, B, C, R any](e Endpoint, f func(A, B, C) R) Endpoint {
	return &mapEndpoint{
		endpoint: e,
		f: func(t tuple.Tuple) (tuple.Tuple, error) {
			a, b, c, err := tuple.Get3[A, B, C](t)
			if err != nil {
				return nil, shapeError(err)
			}

			return tuple.Of(f(a, b, c)), nil
		},
	}
}

func (e *mapEndpoint) Apply(c *Context) (Action, *Rejection) {
	a, rej := e.endpoint.Apply(c)
	if rej != nil {
		return nil, rej
	}

	return &mapAction{inner: a, f: e.f}, nil
}

func (a *mapAction) apply(p Poll) Poll {
	if p.State != StateReady {
		return a.done(p)
	}

	t, err := a.f(p.Value)
	a.f = nil
	if err != nil {
		return a.done(Fail(err))
	}

	return a.done(Ready(t))
}

func (a *mapAction) Preflight(in *Input) Poll {
	a.check()
	return a.apply(a.inner.Preflight(in))
}

func (a *mapAction) Resume(t *Task) Poll {
	a.check()
	return a.apply(a.inner.Resume(t))
}
