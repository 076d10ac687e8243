package logging

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{AccessLogOutput: &buf})
	defer Init(Options{})

	h := NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e := AccessEntryFrom(r.Context())
		require.NotNil(t, e)
		e.Route = "create_todo"
		e.RequestID = "42"

		w.WriteHeader(http.StatusCreated)
		io.Copy(w, r.Body)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/todos", strings.NewReader(`{"title":"x"}`)))

	assert.Equal(t, `{"title":"x"}`, rec.Body.String())

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, `"POST /todos HTTP/1.1" 201 13`)
	assert.True(t, strings.HasSuffix(line, "create_todo 42"), line)
}

func TestHandlerWithoutAccessLog(t *testing.T) {
	Init(Options{AccessLogDisabled: true})
	defer Init(Options{})

	h := NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, AccessEntryFrom(r.Context()))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
