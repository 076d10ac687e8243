package main

import (
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/waypoint/config"
	"github.com/zalando/waypoint/endpoints/ratelimit"
	"github.com/zalando/waypoint/endpoints/upstream"
	"github.com/zalando/waypoint/endpointtest"
	"github.com/zalando/waypoint/responder"
	"github.com/zalando/waypoint/tuple"
)

func testRoutes(burst int) (*store, routeOptions) {
	return newStore(), routeOptions{
		limiter:     ratelimit.NewLimiter(1, burst),
		maxBodySize: 1 << 10,
	}
}

func TestTodos(t *testing.T) {
	s, o := testRoutes(10)
	s.create(todo{Title: "buy milk"})
	s.create(todo{Title: "walk the dog"})
	r := routes(s, o)

	t.Run("list", func(t *testing.T) {
		res := endpointtest.NewRequest("GET", "/todos").Apply(r)
		require.NoError(t, res.Err)
		assert.Equal(t, "list_todos", res.Route)
		assert.Equal(t, tuple.Of([]todo{{ID: 1, Title: "buy milk"}, {ID: 2, Title: "walk the dog"}}), res.Value)
	})

	t.Run("filter", func(t *testing.T) {
		res := endpointtest.NewRequest("GET", "/todos?title=dog").Apply(r)
		require.NoError(t, res.Err)
		assert.Equal(t, tuple.Of([]todo{{ID: 2, Title: "walk the dog"}}), res.Value)
	})

	t.Run("get", func(t *testing.T) {
		res := endpointtest.NewRequest("GET", "/todos/2").Apply(r)
		require.NoError(t, res.Err)
		assert.Equal(t, tuple.Of(todo{ID: 2, Title: "walk the dog"}), res.Value)
	})

	t.Run("create", func(t *testing.T) {
		res := endpointtest.NewRequest("POST", "/todos").
			Header("Content-Type", "application/json").
			Body(`{"title": "water the plants"}`).
			Apply(r)

		require.NoError(t, res.Err)
		assert.Equal(t, "create_todo", res.Route)
		assert.Equal(t, tuple.Of(responder.Output{Status: http.StatusCreated, Value: todo{ID: 3, Title: "water the plants"}}), res.Value)
	})

	t.Run("update", func(t *testing.T) {
		res := endpointtest.NewRequest("PATCH", "/todos/1").Body(`{"done": true}`).Apply(r)
		require.NoError(t, res.Err)
		assert.Equal(t, tuple.Of(todo{ID: 1, Title: "buy milk", Done: true}), res.Value)
	})

	t.Run("delete", func(t *testing.T) {
		res := endpointtest.NewRequest("DELETE", "/todos/2").Apply(r)
		require.NoError(t, res.Err)
		assert.Equal(t, http.StatusOK, res.Status())

		res = endpointtest.NewRequest("GET", "/todos/2").Apply(r)
		assert.Equal(t, http.StatusNotFound, res.Status())
	})

	for _, tt := range []struct {
		msg, method, target, body string
		status                    int
	}{
		{"unknown path", "GET", "/users", "", http.StatusNotFound},
		{"method not allowed", "PUT", "/todos/1", "", http.StatusMethodNotAllowed},
		{"invalid id", "GET", "/todos/first", "", http.StatusBadRequest},
		{"missing todo", "GET", "/todos/42", "", http.StatusNotFound},
		{"missing title", "POST", "/todos", `{}`, http.StatusUnprocessableEntity},
		{"invalid json", "POST", "/todos", `{`, http.StatusBadRequest},
		{"body too large", "POST", "/todos", `{"title": "` + string(make([]byte, 2<<10)) + `"}`, http.StatusRequestEntityTooLarge},
		{"done not boolean", "PATCH", "/todos/1", `{"done": "yes"}`, http.StatusBadRequest},
		{"done missing", "PATCH", "/todos/1", `{"title": "x"}`, http.StatusBadRequest},
		{"no proxy", "GET", "/proxy/foo", "", http.StatusNotFound},
	} {
		t.Run(tt.msg, func(t *testing.T) {
			req := endpointtest.NewRequest(tt.method, tt.target)
			if tt.body != "" {
				req.Body(tt.body)
			}

			assert.Equal(t, tt.status, req.Apply(r).Status())
		})
	}
}

func TestCreateRateLimited(t *testing.T) {
	s, o := testRoutes(1)
	r := routes(s, o)

	create := func() int {
		return endpointtest.NewRequest("POST", "/todos").Body(`{"title": "x"}`).Apply(r).Status()
	}

	assert.Equal(t, http.StatusOK, create())
	assert.Equal(t, http.StatusTooManyRequests, create())
	assert.Len(t, s.list(nil), 1)
}

func TestProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, r.URL.Path)
	}))
	defer backend.Close()

	c, err := upstream.New(upstream.Options{URL: backend.URL, Client: backend.Client()})
	require.NoError(t, err)

	s, o := testRoutes(10)
	o.upstream = c
	r := routes(s, o)

	res := endpointtest.NewRequest("GET", "/proxy/todos/1").Apply(r)
	require.NoError(t, res.Err)
	assert.Equal(t, "proxy", res.Route)

	rsp, err := tuple.At[*upstream.Response](res.Value, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "/todos/1", string(rsp.Body))

	res = endpointtest.NewRequest("GET", "/todos").Apply(r)
	assert.Equal(t, "list_todos", res.Route)
}

func TestNewRoot(t *testing.T) {
	cfg := config.NewConfig()
	require.NoError(t, cfg.ParseArgs("waypoint", []string{"-upstream-url=http://todos.example.org"}))

	r, err := newRoot(cfg)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, endpointtest.NewRequest("GET", "/todos").Apply(r).Status())
}

func TestListOrdersLargeIDs(t *testing.T) {
	s := newStore()
	for _, id := range []uint64{math.MaxUint64, 1, 1 << 63} {
		s.items[id] = todo{ID: id}
	}

	var ids []uint64
	for _, td := range s.list(nil) {
		ids = append(ids, td.ID)
	}

	assert.Equal(t, []uint64{1, 1 << 63, math.MaxUint64}, ids)
}
