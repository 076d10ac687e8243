package endpoint

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/waypoint/tuple"
)

// DriverState is the state of a Driver.
type DriverState int

const (
	DriverStart DriverState = iota
	DriverRunning
	DriverFinished
)

// Driver executes the root action of a single request.
type Driver struct {
	action Action
	state  DriverState
	result Poll
}

// NewDriver creates a driver for an action.
func NewDriver(a Action) *Driver {
	return &Driver{action: a}
}

// State returns the current state of the driver.
func (d *Driver) State() DriverState { return d.state }

// Result returns the final poll. It is pending until the driver finished.
func (d *Driver) Result() Poll { return d.result }

// Poll executes a single step: the preflight and, if needed, the first
// resume of the action when called the first time, and a resume on every
// later call. It can be called again whenever the task was woken. Calling
// Poll after the driver finished panics with ErrResumedAfterFinish.
func (d *Driver) Poll(t *Task) Poll {
	var p Poll
	switch d.state {
	case DriverFinished:
		panic(ErrResumedAfterFinish)
	case DriverStart:
		d.state = DriverRunning
		p = d.action.Preflight(t.Input())
		if !p.Done() {
			p = d.action.Resume(t)
		}
	default:
		p = d.action.Resume(t)
	}

	if p.Done() {
		d.state = DriverFinished
		d.result = p
		d.action = nil
	}

	return p
}

// Run polls the action until it finishes, waiting for the task to be woken
// between the steps. When ctx is done before the action finished, the
// context error is returned and the action is abandoned. The context
// passed to the actions is cancelled when Run returns.
func (d *Driver) Run(ctx context.Context, in *Input) (tuple.Tuple, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := NewTask(ctx, in, nil)
	for {
		p := d.Poll(t)
		switch p.State {
		case StateReady:
			return p.Value, nil
		case StateFailed:
			return nil, p.Err
		}

		select {
		case <-t.waker.C():
		case <-ctx.Done():
			log.Debugf("abandoning request execution: %v", ctx.Err())
			return nil, ctx.Err()
		}
	}
}

// Execute matches the request input against the root endpoint, and runs
// the selected action. When the root endpoint does not match, the
// rejection is returned as the error.
func Execute(ctx context.Context, root Endpoint, in *Input) (tuple.Tuple, error) {
	a, rej := root.Apply(NewContext(in))
	if rej != nil {
		return nil, rej
	}

	return NewDriver(a).Run(ctx, in)
}
