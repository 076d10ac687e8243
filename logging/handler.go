package logging

import (
	"net/http"
	"time"
)

type loggingHandler struct {
	next http.Handler
}

// NewHandler wraps a handler and logs every request it serves in the
// access log. The wrapped handler finds the entry of the request in the
// request context with AccessEntryFrom.
func NewHandler(next http.Handler) http.Handler {
	return &loggingHandler{next: next}
}

func (lh *loggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entry := &AccessEntry{Request: r, RequestTime: time.Now()}
	lw := NewLoggingWriter(w)
	lh.next.ServeHTTP(lw, r.WithContext(WithAccessEntry(r.Context(), entry)))

	entry.StatusCode = lw.StatusCode()
	entry.ResponseSize = lw.BytesWritten()
	entry.Duration = time.Since(entry.RequestTime)
	LogAccess(entry)
}
