package main

import (
	"cmp"
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/endpoints/body"
	"github.com/zalando/waypoint/endpoints/method"
	"github.com/zalando/waypoint/endpoints/path"
	"github.com/zalando/waypoint/endpoints/query"
	"github.com/zalando/waypoint/endpoints/ratelimit"
	"github.com/zalando/waypoint/endpoints/upstream"
	"github.com/zalando/waypoint/responder"
	"github.com/zalando/waypoint/tuple"
)

var errNotFound = endpoint.Errorf(http.StatusNotFound, "todo not found")

type todo struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

type store struct {
	mu    sync.Mutex
	last  uint64
	items map[uint64]todo
}

type routeOptions struct {
	limiter     *rate.Limiter
	maxBodySize int64

	// optional
	upstream *upstream.Client
}

func newStore() *store {
	return &store{items: make(map[uint64]todo)}
}

func (s *store) list(filter *string) []todo {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := make([]todo, 0, len(s.items))
	for _, t := range s.items {
		if filter == nil || strings.Contains(t.Title, *filter) {
			l = append(l, t)
		}
	}

	slices.SortFunc(l, func(a, b todo) int { return cmp.Compare(a.ID, b.ID) })
	return l
}

func (s *store) get(id uint64) (todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return todo{}, errNotFound
	}

	return t, nil
}

func (s *store) create(t todo) todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	t.ID = s.last
	s.items[t.ID] = t
	return t
}

func (s *store) update(id uint64, f func(*todo)) (todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return todo{}, errNotFound
	}

	f(&t)
	s.items[id] = t
	return t, nil
}

func (s *store) delete(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return errNotFound
	}

	delete(s.items, id)
	return nil
}

// routes of the demo service:
//
//	GET    /todos[?title=]
//	POST   /todos
//	GET    /todos/{id}
//	PATCH  /todos/{id}      {"done": true}
//	DELETE /todos/{id}
//	*      /proxy/...       when an upstream is configured
func routes(s *store, o routeOptions) endpoint.Endpoint {
	todoID := endpoint.And(path.Segment("todos"), path.Param[uint64](), path.End())
	todos := endpoint.And(path.Segment("todos"), path.End())

	list := endpoint.Named("list_todos", endpoint.Map1(
		endpoint.And(todos, method.Get(), query.Optional("title")),
		s.list,
	))

	create := endpoint.Named("create_todo", endpoint.AndThen(
		endpoint.And(todos, method.Post(), ratelimit.Allow(o.limiter), body.JSON[todo](body.MaxSize(o.maxBodySize))),
		func(_ context.Context, t tuple.Tuple) (any, error) {
			td, err := tuple.At[todo](t, 0)
			if err != nil {
				return nil, err
			}

			if td.Title == "" {
				return nil, endpoint.Errorf(http.StatusUnprocessableEntity, "missing title")
			}

			return responder.Output{Status: http.StatusCreated, Value: s.create(td)}, nil
		},
	))

	get := endpoint.Named("get_todo", endpoint.AndThen(
		endpoint.And(todoID, method.Get()),
		func(_ context.Context, t tuple.Tuple) (any, error) {
			return s.get(tuple.MustAt[uint64](t, 0))
		},
	))

	done := endpoint.Named("update_todo", endpoint.AndThen(
		endpoint.And(todoID, method.Patch(), body.JSONField("done", body.MaxSize(o.maxBodySize))),
		func(_ context.Context, t tuple.Tuple) (any, error) {
			id, field, err := tuple.Get2[uint64, gjson.Result](t)
			if err != nil {
				return nil, err
			}

			if field.Type != gjson.True && field.Type != gjson.False {
				return nil, endpoint.Errorf(http.StatusBadRequest, "done must be a boolean")
			}

			return s.update(id, func(td *todo) { td.Done = field.Bool() })
		},
	))

	remove := endpoint.Named("delete_todo", endpoint.AndThen(
		endpoint.And(todoID, method.Delete()),
		func(_ context.Context, t tuple.Tuple) (any, error) {
			if err := s.delete(tuple.MustAt[uint64](t, 0)); err != nil {
				return nil, err
			}

			return responder.Output{Status: http.StatusNoContent}, nil
		},
	))

	r := endpoint.OneOf(list, create, get, done, remove)
	if o.upstream != nil {
		proxy := endpoint.Named("proxy", endpoint.And(path.Segment("proxy"), ratelimit.Wait(o.limiter), o.upstream.Forward()))
		r = endpoint.OrStrict(r, proxy)
	}

	return r
}
