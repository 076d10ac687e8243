package endpoint

import (
	"context"

	"github.com/zalando/waypoint/tuple"
)

type then struct {
	endpoint Endpoint
	f        func(tuple.Tuple) Action
}

// thenAction runs the first action to completion, then creates the
// second one from its value and runs that. The continuation is called at
// most once.
type thenAction struct {
	finished
	first  slot
	second slot
	next   func(tuple.Tuple) Action
}

// Then creates an endpoint that continues with the action returned by f,
// called with the result of e. When e fails, f is not called.
func Then(e Endpoint, f func(tuple.Tuple) Action) Endpoint {
	return &then{endpoint: e, f: f}
}

// AndThen creates an endpoint that continues with the fallible function f
// executed asynchronously on the result of e. The result is a one-element
// tuple containing the value returned by f.
func AndThen(e Endpoint, f func(context.Context, tuple.Tuple) (any, error)) Endpoint {
	return Then(e, func(t tuple.Tuple) Action {
		return Async(func(ctx context.Context, _ *Input) (tuple.Tuple, error) {
			v, err := f(ctx, t)
			if err != nil {
				return nil, err
			}

			return tuple.Of(v), nil
		})
	})
}

func (e *then) Apply(c *Context) (Action, *Rejection) {
	a, rej := e.endpoint.Apply(c)
	if rej != nil {
		return nil, rej
	}

	return &thenAction{first: slot{action: a}, next: e.f}, nil
}

func (a *thenAction) continueWith(v tuple.Tuple) {
	next := a.next
	a.next = nil
	second := next(v)
	if second == nil {
		second = Failure(ErrNilAction)
	}

	a.second = slot{action: second}
}

func (a *thenAction) Preflight(in *Input) Poll {
	a.check()
	p := a.first.preflight(in)
	switch p.State {
	case StatePending:
		return p
	case StateFailed:
		return a.done(p)
	}

	a.continueWith(p.Value)
	if p := a.second.preflight(in); p.Done() {
		return a.done(p)
	}

	return Pending()
}

func (a *thenAction) Resume(t *Task) Poll {
	a.check()
	if a.second.action == nil {
		p := a.first.step(t)
		switch p.State {
		case StatePending:
			return p
		case StateFailed:
			return a.done(p)
		}

		a.continueWith(p.Value)
	}

	return a.done(a.second.step(t))
}
