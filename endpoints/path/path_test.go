package path_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/endpoints/path"
	"github.com/zalando/waypoint/endpointtest"
	"github.com/zalando/waypoint/tuple"
)

func TestPath(t *testing.T) {
	for _, tt := range []struct {
		msg      string
		endpoint endpoint.Endpoint
		target   string
		status   int
		expected tuple.Tuple
	}{{
		msg:      "segment",
		endpoint: endpoint.And(path.Segment("todos"), path.End()),
		target:   "/todos",
		status:   http.StatusOK,
		expected: tuple.Empty,
	}, {
		msg:      "trailing slash",
		endpoint: endpoint.And(path.Segment("todos"), path.End()),
		target:   "/todos/",
		status:   http.StatusOK,
		expected: tuple.Empty,
	}, {
		msg:      "escaped segment",
		endpoint: endpoint.And(path.Segment("a b"), path.End()),
		target:   "/a%20b",
		status:   http.StatusOK,
		expected: tuple.Empty,
	}, {
		msg:      "segment mismatch",
		endpoint: path.Segment("todos"),
		target:   "/users",
		status:   http.StatusNotFound,
	}, {
		msg:      "segment on empty path",
		endpoint: path.Segment("todos"),
		target:   "/",
		status:   http.StatusNotFound,
	}, {
		msg:      "segments",
		endpoint: endpoint.And(path.Segments("api/v1"), path.Param[uint64]()),
		target:   "/api/v1/3",
		status:   http.StatusOK,
		expected: tuple.Of(uint64(3)),
	}, {
		msg:      "string parameter is decoded",
		endpoint: path.Param[string](),
		target:   "/hello%2Fworld",
		status:   http.StatusOK,
		expected: tuple.Of("hello/world"),
	}, {
		msg:      "bool parameter",
		endpoint: path.Param[bool](),
		target:   "/true",
		status:   http.StatusOK,
		expected: tuple.Of(true),
	}, {
		msg:      "unparsable parameter",
		endpoint: path.Param[int](),
		target:   "/seven",
		status:   http.StatusBadRequest,
	}, {
		msg:      "missing parameter",
		endpoint: endpoint.And(path.Segment("todos"), path.Param[int]()),
		target:   "/todos",
		status:   http.StatusNotFound,
	}, {
		msg:      "rest",
		endpoint: endpoint.And(path.Segment("static"), path.Rest()),
		target:   "/static/css/site%20.css",
		status:   http.StatusOK,
		expected: tuple.Of("css/site .css"),
	}, {
		msg:      "empty rest",
		endpoint: endpoint.And(path.Segment("static"), path.Rest(), path.End()),
		target:   "/static",
		status:   http.StatusOK,
		expected: tuple.Of(""),
	}, {
		msg:      "any",
		endpoint: endpoint.And(path.Any(), path.Segment("b"), path.End()),
		target:   "/a/b",
		status:   http.StatusOK,
		expected: tuple.Empty,
	}, {
		msg:      "end rejects",
		endpoint: path.End(),
		target:   "/a",
		status:   http.StatusNotFound,
	}} {
		t.Run(tt.msg, func(t *testing.T) {
			res := endpointtest.NewRequest("GET", tt.target).Apply(tt.endpoint)
			assert.Equal(t, tt.status, res.Status())
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.expected, res.Value)
			}
		})
	}
}

func TestRestWinsAlternation(t *testing.T) {
	e := endpoint.OneOf(
		endpoint.And(path.Segment("files"), path.Segment("index"), path.End(), endpoint.Map(endpoint.And(), func(tuple.Tuple) any { return "index" })),
		endpoint.And(path.Segment("files"), path.Rest()),
	)

	res := endpointtest.NewRequest("GET", "/files/index").Apply(e)
	assert.Equal(t, tuple.Of("index"), res.Value)

	res = endpointtest.NewRequest("GET", "/files/a/b").Apply(e)
	assert.Equal(t, tuple.Of("a/b"), res.Value)
}
