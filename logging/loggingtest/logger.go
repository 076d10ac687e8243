/*
Package loggingtest implements a logging.Logger that records the entries
in memory, so that tests can wait for the expected messages.
*/
package loggingtest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zalando/waypoint/logging"
)

type subscription struct {
	exp      string
	n        int
	response chan struct{}
}

type store struct {
	mu      sync.Mutex
	entries []string
	subs    []*subscription
	muted   bool
	closed  bool
}

// TestLogger records the log entries. Entries logged through the loggers
// returned by WithFields are recorded in the same store.
type TestLogger struct {
	store  *store
	fields string
}

var _ logging.Logger = (*TestLogger)(nil)

// ErrWaitTimeout is returned by WaitFor and WaitForN when the expected
// entries were not logged in time.
var ErrWaitTimeout = errors.New("timeout")

// New creates a test logger.
func New() *TestLogger {
	return &TestLogger{store: &store{}}
}

func (s *store) save(e string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muted || s.closed {
		return
	}

	s.entries = append(s.entries, e)
	for i := len(s.subs) - 1; i >= 0; i-- {
		sub := s.subs[i]
		if !strings.Contains(e, sub.exp) {
			continue
		}

		sub.n--
		if sub.n <= 0 {
			close(sub.response)
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
		}
	}
}

func (s *store) subscribe(exp string, n int) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscription{exp: exp, n: n, response: make(chan struct{})}
	for _, e := range s.entries {
		if strings.Contains(e, exp) {
			sub.n--
		}
	}

	if sub.n <= 0 {
		close(sub.response)
	} else {
		s.subs = append(s.subs, sub)
	}

	return sub.response
}

func (tl *TestLogger) log(a ...interface{}) {
	tl.store.save(fmt.Sprint(a...) + tl.fields)
}

func (tl *TestLogger) logf(f string, a ...interface{}) {
	tl.store.save(fmt.Sprintf(f, a...) + tl.fields)
}

// WaitForN waits until exp was found in n entries, counting the ones
// logged before the call, or until the timeout.
func (tl *TestLogger) WaitForN(exp string, n int, to time.Duration) error {
	found := tl.store.subscribe(exp, n)
	t := time.NewTimer(to)
	defer t.Stop()

	select {
	case <-found:
		return nil
	case <-t.C:
		return ErrWaitTimeout
	}
}

// WaitFor waits until exp was found in an entry.
func (tl *TestLogger) WaitFor(exp string, to time.Duration) error {
	return tl.WaitForN(exp, 1, to)
}

// Count returns the number of entries containing exp.
func (tl *TestLogger) Count(exp string) int {
	tl.store.mu.Lock()
	defer tl.store.mu.Unlock()

	n := 0
	for _, e := range tl.store.entries {
		if strings.Contains(e, exp) {
			n++
		}
	}

	return n
}

// Reset drops the recorded entries and the pending waits.
func (tl *TestLogger) Reset() {
	tl.store.mu.Lock()
	defer tl.store.mu.Unlock()
	tl.store.entries = nil
	tl.store.subs = nil
}

// Mute stops recording the entries until Unmute is called.
func (tl *TestLogger) Mute() {
	tl.store.mu.Lock()
	defer tl.store.mu.Unlock()
	tl.store.muted = true
}

func (tl *TestLogger) Unmute() {
	tl.store.mu.Lock()
	defer tl.store.mu.Unlock()
	tl.store.muted = false
}

// Close stops recording.
func (tl *TestLogger) Close() {
	tl.store.mu.Lock()
	defer tl.store.mu.Unlock()
	tl.store.closed = true
}

func (tl *TestLogger) Error(a ...interface{})            { tl.log(a...) }
func (tl *TestLogger) Errorf(f string, a ...interface{}) { tl.logf(f, a...) }
func (tl *TestLogger) Warn(a ...interface{})             { tl.log(a...) }
func (tl *TestLogger) Warnf(f string, a ...interface{})  { tl.logf(f, a...) }
func (tl *TestLogger) Info(a ...interface{})             { tl.log(a...) }
func (tl *TestLogger) Infof(f string, a ...interface{})  { tl.logf(f, a...) }
func (tl *TestLogger) Debug(a ...interface{})            { tl.log(a...) }
func (tl *TestLogger) Debugf(f string, a ...interface{}) { tl.logf(f, a...) }

// WithFields returns a logger appending the fields, as key=value pairs
// sorted by key, to every entry.
func (tl *TestLogger) WithFields(fields map[string]interface{}) logging.Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(tl.fields)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	return &TestLogger{store: tl.store, fields: b.String()}
}
