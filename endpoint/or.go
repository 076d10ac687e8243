package endpoint

import "github.com/zalando/waypoint/tuple"

type or struct {
	left, right Endpoint
	strict      bool
}

// Or creates an endpoint that matches when either of the two endpoints
// matches. Both are tried from the same path position. When both match,
// the one that consumed more path segments wins, and on a tie the left
// one. The result is a one-element tuple containing a tuple.Either.
//
// When neither matches, Or rejects the request as not found.
func Or(left, right Endpoint) Endpoint {
	return &or{left: left, right: right}
}

// OrStrict is like Or, but the branches are expected to produce the same
// shape, and the result of the winner is passed on as is.
//
// When neither matches, the more specific of the two rejections is
// returned, see Prefer.
func OrStrict(left, right Endpoint) Endpoint {
	return &or{left: left, right: right, strict: true}
}

// OneOf combines the endpoints with OrStrict, grouped from the left.
func OneOf(e ...Endpoint) Endpoint {
	if len(e) == 0 {
		return Func(func(*Context) (Action, *Rejection) { return nil, NotMatched() })
	}

	r := e[0]
	for _, ei := range e[1:] {
		r = OrStrict(r, ei)
	}

	return r
}

func (e *or) Apply(c *Context) (Action, *Rejection) {
	lc, rc := c.Clone(), c.Clone()
	la, lrej := e.left.Apply(lc)
	ra, rrej := e.right.Apply(rc)

	var (
		winner *Context
		action Action
		left   bool
	)

	switch {
	case lrej == nil && rrej == nil:
		if rc.cursor.Popped() > lc.cursor.Popped() {
			winner, action = rc, ra
		} else {
			winner, action, left = lc, la, true
		}
	case lrej == nil:
		winner, action, left = lc, la, true
	case rrej == nil:
		winner, action = rc, ra
	case e.strict:
		return nil, Prefer(lrej, rrej)
	default:
		return nil, NotMatched()
	}

	c.SetCursor(winner.cursor)
	if e.strict {
		return action, nil
	}

	return &mapAction{
		inner: action,
		f: func(t tuple.Tuple) (tuple.Tuple, error) {
			return tuple.Of(tuple.Either{Left: left, Value: t}), nil
		},
	}, nil
}
