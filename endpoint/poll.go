package endpoint

import (
	"context"

	"github.com/zalando/waypoint/tuple"
)

// State of a Poll.
type State int

const (
	// StatePending means that the action needs to be resumed again.
	StatePending State = iota

	// StateReady means that the action finished with a value.
	StateReady

	// StateFailed means that the action finished with an error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Poll is the outcome of a single execution step of an action.
type Poll struct {
	State State
	Value tuple.Tuple
	Err   error
}

// Pending is returned by actions that are waiting for I/O.
func Pending() Poll { return Poll{} }

// Ready is returned by actions that finished with a value.
func Ready(t tuple.Tuple) Poll {
	if t == nil {
		t = tuple.Empty
	}

	return Poll{State: StateReady, Value: t}
}

// Fail is returned by actions that finished with an error.
func Fail(err error) Poll {
	if err == nil {
		err = errNilFailure
	}

	return Poll{State: StateFailed, Err: err}
}

// Done tells whether the poll is final.
func (p Poll) Done() bool { return p.State != StatePending }

// Waker is used by leaf actions to signal the driver that it is worth
// resuming the action tree. Waking is never blocking, multiple wakes
// before the next resume are collapsed into one.
type Waker struct {
	c chan struct{}
}

// NewWaker creates a waker.
func NewWaker() *Waker {
	return &Waker{c: make(chan struct{}, 1)}
}

// Wake signals that new input is available.
func (w *Waker) Wake() {
	select {
	case w.c <- struct{}{}:
	default:
	}
}

// C returns the channel that receives a value after Wake was called.
func (w *Waker) C() <-chan struct{} { return w.c }

// Task is passed to the actions when they are resumed.
type Task struct {
	ctx   context.Context
	input *Input
	waker *Waker
}

// NewTask creates the task of a request.
func NewTask(ctx context.Context, in *Input, w *Waker) *Task {
	if w == nil {
		w = NewWaker()
	}

	return &Task{ctx: ctx, input: in, waker: w}
}

// Context returns the context of the request execution. It is cancelled
// when the driver finished or was abandoned.
func (t *Task) Context() context.Context { return t.ctx }

// Input returns the request snapshot.
func (t *Task) Input() *Input { return t.input }

// Wake signals the driver to resume the actions.
func (t *Task) Wake() { t.waker.Wake() }

// Waker returns the waker of the task.
func (t *Task) Waker() *Waker { return t.waker }
