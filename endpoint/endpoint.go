package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/waypoint/tuple"
)

// Endpoint matches a request and creates the action that executes it.
//
// Apply must not move the cursor of the context unless it returns an
// action. A nil rejection means match.
type Endpoint interface {
	Apply(*Context) (Action, *Rejection)
}

// Action is the resumable computation created by an endpoint for a single
// request.
type Action interface {

	// Preflight is called once, before the first Resume. It must not
	// block. Actions that can produce their result without I/O return it
	// here.
	Preflight(*Input) Poll

	// Resume advances the action. It must not block, actions waiting for
	// I/O return a pending poll and wake the task when the I/O completed.
	Resume(*Task) Poll
}

// Func adapts a function to the Endpoint interface.
type Func func(*Context) (Action, *Rejection)

// Apply calls f.
func (f Func) Apply(c *Context) (Action, *Rejection) { return f(c) }

// finished guards the actions against being called after their final
// result.
type finished bool

func (f *finished) check() {
	if *f {
		panic(ErrResumedAfterFinish)
	}
}

func (f *finished) done(p Poll) Poll {
	if p.Done() {
		*f = true
	}

	return p
}

type valueAction struct {
	finished
	poll Poll
}

// Value creates an action that is ready during preflight.
func Value(t tuple.Tuple) Action {
	return &valueAction{poll: Ready(t)}
}

// Failure creates an action that fails during preflight.
func Failure(err error) Action {
	return &valueAction{poll: Fail(err)}
}

func (a *valueAction) Preflight(*Input) Poll {
	a.check()
	return a.done(a.poll)
}

func (a *valueAction) Resume(*Task) Poll {
	a.check()
	return a.done(a.poll)
}

// SyncFunc computes the result of a leaf action from the request input,
// without I/O.
type SyncFunc func(*Input) (tuple.Tuple, error)

type syncAction struct {
	finished
	fn SyncFunc
}

// Sync creates an action that calls fn during preflight.
func Sync(fn SyncFunc) Action {
	return &syncAction{fn: fn}
}

func (a *syncAction) Preflight(in *Input) Poll {
	a.check()
	t, err := a.fn(in)
	a.fn = nil
	if err != nil {
		return a.done(Fail(err))
	}

	return a.done(Ready(t))
}

func (a *syncAction) Resume(t *Task) Poll {
	return a.Preflight(t.Input())
}

// AsyncFunc is the body of an asynchronous leaf action.
type AsyncFunc func(context.Context, *Input) (tuple.Tuple, error)

type asyncResult struct {
	value tuple.Tuple
	err   error
}

type asyncAction struct {
	finished
	fn     AsyncFunc
	result chan asyncResult
}

// Async creates an action that executes fn in its own goroutine, started
// on the first resume. The task is woken when fn returns. A panic in fn
// is reported as an internal server error.
func Async(fn AsyncFunc) Action {
	return &asyncAction{fn: fn}
}

func (a *asyncAction) Preflight(*Input) Poll {
	a.check()
	return Pending()
}

func (a *asyncAction) start(t *Task) {
	a.result = make(chan asyncResult, 1)
	fn := a.fn
	a.fn = nil
	go func() {
		var r asyncResult
		defer func() {
			if err := recover(); err != nil {
				buf := make([]byte, 1024)
				l := runtime.Stack(buf, false)
				log.Errorf("panic in endpoint action: %v\n%s", err, buf[:l])
				r = asyncResult{err: Errorf(http.StatusInternalServerError, "panic in action: %v", err)}
			}

			a.result <- r
			t.Wake()
		}()

		v, err := fn(t.Context(), t.Input())
		r = asyncResult{value: v, err: err}
	}()
}

func (a *asyncAction) Resume(t *Task) Poll {
	a.check()
	if a.result == nil {
		a.start(t)
	}

	select {
	case r := <-a.result:
		if r.err != nil {
			return a.done(Fail(r.err))
		}

		return a.done(Ready(r.value))
	default:
		return Pending()
	}
}

type named struct {
	name     string
	endpoint Endpoint
}

type namedAction struct {
	name   string
	action Action
}

// Named wraps an endpoint so that, when its action is executed, the name
// is recorded on the input. The server uses it for logging and metrics.
func Named(name string, e Endpoint) Endpoint {
	return &named{name: name, endpoint: e}
}

func (n *named) Apply(c *Context) (Action, *Rejection) {
	a, rej := n.endpoint.Apply(c)
	if rej != nil {
		return nil, rej
	}

	return &namedAction{name: n.name, action: a}, nil
}

func (n *named) String() string { return fmt.Sprintf("named(%s)", n.name) }

func (a *namedAction) Preflight(in *Input) Poll {
	in.setRoute(a.name)
	return a.action.Preflight(in)
}

func (a *namedAction) Resume(t *Task) Poll { return a.action.Resume(t) }
