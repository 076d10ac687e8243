package endpointtest_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/endpointtest"
	"github.com/zalando/waypoint/tuple"
)

func TestApply(t *testing.T) {
	echo := endpoint.Func(func(c *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
		return endpoint.Sync(func(in *endpoint.Input) (tuple.Tuple, error) {
			return tuple.Of(in.Method(), in.Header().Get("X-Test")), nil
		}), nil
	})

	res := endpointtest.NewRequest("PUT", "/foo").Header("X-Test", "bar").Apply(echo)
	require.True(t, res.Matched())
	require.NoError(t, res.Err)
	assert.Equal(t, tuple.Of("PUT", "bar"), res.Value)
	assert.Equal(t, http.StatusOK, res.Status())
}

func TestRejection(t *testing.T) {
	reject := endpoint.Func(func(*endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
		return nil, endpoint.MethodNotAllowed("GET")
	})

	res := endpointtest.NewRequest("GET", "/").Apply(reject)
	assert.False(t, res.Matched())
	assert.Equal(t, http.StatusMethodNotAllowed, res.Status())
}

func TestTimeout(t *testing.T) {
	block := endpoint.Func(func(*endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
		return endpoint.Async(func(ctx context.Context, _ *endpoint.Input) (tuple.Tuple, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), nil
	})

	res := endpointtest.NewRequest("GET", "/").Timeout(10 * time.Millisecond).Apply(block)
	assert.True(t, errors.Is(res.Err, context.DeadlineExceeded))
	assert.Equal(t, http.StatusGatewayTimeout, res.Status())
}
