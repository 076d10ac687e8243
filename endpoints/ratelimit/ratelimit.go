/*
Package ratelimit implements endpoints limiting the rate of the requests
that reach the rest of a branch.

The limiter is shared by all the requests executing the endpoint, and it
is safe for concurrent use.

Examples:

	l := ratelimit.NewLimiter(10, 20)

	// fails with 429 when more than 10 requests per second with a burst of
	// 20 reach the endpoint
	endpoint.And(ratelimit.Allow(l), path.Segment("search"))

	// waits for a token instead of failing, for at most the request
	// timeout
	ratelimit.Wait(l)
*/
package ratelimit

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/tuple"
)

// ErrTooManyRequests is the failure of the Allow endpoint.
var ErrTooManyRequests = endpoint.Errorf(http.StatusTooManyRequests, "too many requests")

type allow struct {
	limiter *rate.Limiter
}

type wait struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter allowing perSecond requests with bursts of
// burst requests.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Allow matches every request. Its action fails with ErrTooManyRequests
// when the limiter has no tokens left.
func Allow(l *rate.Limiter) endpoint.Endpoint { return &allow{limiter: l} }

// Wait matches every request. Its action waits until the limiter allows
// the request, or until the request context is done.
func Wait(l *rate.Limiter) endpoint.Endpoint { return &wait{limiter: l} }

func (a *allow) Apply(*endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	return endpoint.Sync(func(*endpoint.Input) (tuple.Tuple, error) {
		if !a.limiter.Allow() {
			return nil, ErrTooManyRequests
		}

		return tuple.Empty, nil
	}), nil
}

func (w *wait) Apply(*endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
	return endpoint.Async(func(ctx context.Context, _ *endpoint.Input) (tuple.Tuple, error) {
		if err := w.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, endpoint.NewError(http.StatusTooManyRequests, err)
		}

		return tuple.Empty, nil
	}), nil
}
