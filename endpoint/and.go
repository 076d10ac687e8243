package endpoint

import "github.com/zalando/waypoint/tuple"

type slotState int

const (
	slotIdle slotState = iota
	slotRunning
	slotReady
)

// slot tracks the progress of a child action.
type slot struct {
	action Action
	state  slotState
	value  tuple.Tuple
}

func (s *slot) record(p Poll) Poll {
	if p.State == StateReady {
		s.state = slotReady
		s.value = p.Value
	}

	return p
}

func (s *slot) preflight(in *Input) Poll {
	s.state = slotRunning
	return s.record(s.action.Preflight(in))
}

// step advances the child once. An idle child is preflighted first, and
// resumed in the same step when the preflight was not final.
func (s *slot) step(t *Task) Poll {
	if s.state == slotIdle {
		if p := s.preflight(t.Input()); p.Done() {
			return p
		}
	}

	return s.record(s.action.Resume(t))
}

type and struct {
	left, right Endpoint
}

type andAction struct {
	finished
	slots [2]slot
}

// And creates an endpoint that matches when all the endpoints match one
// after the other, each continuing from the path position where the
// previous one stopped. The result is the concatenation of the result
// tuples, in the order of the arguments. And of more than two endpoints
// is grouped from the left.
func And(e ...Endpoint) Endpoint {
	switch len(e) {
	case 0:
		return Func(func(*Context) (Action, *Rejection) { return Value(tuple.Empty), nil })
	case 1:
		return e[0]
	}

	r := Endpoint(&and{left: e[0], right: e[1]})
	for _, ei := range e[2:] {
		r = &and{left: r, right: ei}
	}

	return r
}

func (e *and) Apply(c *Context) (Action, *Rejection) {
	start := c.Cursor()
	l, rej := e.left.Apply(c)
	if rej != nil {
		c.SetCursor(start)
		return nil, rej
	}

	r, rej := e.right.Apply(c)
	if rej != nil {
		c.SetCursor(start)
		return nil, rej
	}

	return &andAction{slots: [2]slot{{action: l}, {action: r}}}, nil
}

func (a *andAction) complete() (Poll, bool) {
	if a.slots[0].state != slotReady || a.slots[1].state != slotReady {
		return Poll{}, false
	}

	return a.done(Ready(tuple.Combine(a.slots[0].value, a.slots[1].value))), true
}

func (a *andAction) Preflight(in *Input) Poll {
	a.check()
	for i := range a.slots {
		if p := a.slots[i].preflight(in); p.State == StateFailed {
			return a.done(p)
		}
	}

	if p, ok := a.complete(); ok {
		return p
	}

	return Pending()
}

// Resume advances every child that is not ready yet, from left to right.
// The first failure fails the whole action, the other child is abandoned.
func (a *andAction) Resume(t *Task) Poll {
	a.check()
	for i := range a.slots {
		s := &a.slots[i]
		if s.state == slotReady {
			continue
		}

		if p := s.step(t); p.State == StateFailed {
			return a.done(p)
		}
	}

	if p, ok := a.complete(); ok {
		return p
	}

	return Pending()
}
