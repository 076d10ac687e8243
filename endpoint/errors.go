package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrResumedAfterFinish is the panic value used when an action or a
	// driver is called after it already produced its final result.
	ErrResumedAfterFinish = errors.New("endpoint: action resumed after finish")

	// ErrBodyTaken is returned when the request body is taken more than
	// once from the same input.
	ErrBodyTaken = errors.New("endpoint: request body already taken")

	// ErrNilAction is the failure reported when a continuation returned no
	// action.
	ErrNilAction = errors.New("endpoint: continuation returned nil action")

	errNilFailure = errors.New("endpoint: action failed without an error")
)

// StatusError is implemented by errors that know which HTTP status they
// should be reported with.
type StatusError interface {
	error
	StatusCode() int
}

// Rejection tells why an endpoint did not match. It is returned by
// Endpoint.Apply, and it is an error only when it reaches the root of
// the tree.
type Rejection struct {
	Status int
	Reason string
}

func (r *Rejection) Error() string {
	if r.Reason == "" {
		return fmt.Sprintf("rejected: %d %s", r.Status, http.StatusText(r.Status))
	}

	return fmt.Sprintf("rejected: %d %s", r.Status, r.Reason)
}

// StatusCode returns the HTTP status of the rejection.
func (r *Rejection) StatusCode() int { return r.Status }

// Reject creates a rejection with a custom status.
func Reject(status int, reason string) *Rejection {
	return &Rejection{Status: status, Reason: reason}
}

// NotMatched is the generic rejection of an endpoint that did not
// recognize the request.
func NotMatched() *Rejection {
	return &Rejection{Status: http.StatusNotFound}
}

// MethodNotAllowed is the rejection of a method matcher.
func MethodNotAllowed(method string) *Rejection {
	return &Rejection{Status: http.StatusMethodNotAllowed, Reason: "method " + method + " not allowed"}
}

// BadRequest is the rejection of a leaf that recognized its position but
// could not parse the input.
func BadRequest(reason string) *Rejection {
	return &Rejection{Status: http.StatusBadRequest, Reason: reason}
}

// the generic "no route" causes rank below everything else
func rejectionRank(status int) int {
	switch status {
	case http.StatusNotFound:
		return 0
	case http.StatusMethodNotAllowed:
		return 1
	default:
		return status
	}
}

// Prefer returns the more specific of two rejections: the one with the
// higher status, where 404 and 405 rank lowest. On equal rank, a wins.
func Prefer(a, b *Rejection) *Rejection {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case rejectionRank(b.Status) > rejectionRank(a.Status):
		return b
	default:
		return a
	}
}

// Error is the typed failure of an action.
type Error struct {
	Status int
	Err    error
}

// NewError wraps err with an HTTP status.
func NewError(status int, err error) *Error {
	return &Error{Status: status, Err: err}
}

// Errorf creates an error with an HTTP status and a formatted message.
func Errorf(status int, format string, args ...interface{}) *Error {
	return &Error{Status: status, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}

	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of the failure.
func (e *Error) StatusCode() int { return e.Status }

// HTTPStatus maps an error to the status it should be reported with.
// Errors that don't carry a status are internal server errors.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// nginx convention for a client that went away
		return 499
	default:
		return http.StatusInternalServerError
	}
}
