/*
Package responder turns the result of an endpoint execution into an HTTP
response.

The Default responder renders the result tuple by its shape:

	()                 // 204 No Content
	(string)           // 200, text/plain
	([]byte)           // 200, application/octet-stream
	(responder.Output) // explicit status and headers, Value rendered as above
	(responder.Writer) // the value writes the response itself
	(v)                // 200, v encoded as JSON
	(v1, v2, ...)      // 200, JSON array

Failures are rendered as JSON objects of the form {"error": "..."}, with
the status returned by endpoint.HTTPStatus. The messages of internal
failures are not sent to the client, they are logged instead.
*/
package responder

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/logging"
	"github.com/zalando/waypoint/tuple"
)

// DefaultMinGzipSize is the smallest body compressed by default.
const DefaultMinGzipSize = 1024

// Responder writes the response of a request, from either the result
// tuple or the error of the execution.
type Responder interface {
	Respond(w http.ResponseWriter, r *http.Request, t tuple.Tuple, err error)
}

// Func adapts a function to the Responder interface.
type Func func(http.ResponseWriter, *http.Request, tuple.Tuple, error)

func (f Func) Respond(w http.ResponseWriter, r *http.Request, t tuple.Tuple, err error) {
	f(w, r, t, err)
}

// Writer is implemented by values that write their own response.
type Writer interface {
	WriteResponse(http.ResponseWriter) error
}

// Output is a value with an explicit status code and headers.
type Output struct {
	Status int
	Header http.Header
	Value  any
}

// Options of the default responder.
type Options struct {

	// When set, bodies of at least MinGzipSize bytes are compressed for
	// clients accepting gzip.
	Gzip bool

	MinGzipSize int

	// Logger of the internal failures. Defaults to the logrus standard
	// logger.
	Log logging.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

// Default is the responder rendering the tuples by their shape.
type Default struct {
	options Options
}

// New creates a default responder.
func New(o Options) *Default {
	if o.MinGzipSize <= 0 {
		o.MinGzipSize = DefaultMinGzipSize
	}

	if o.Log == nil {
		o.Log = logging.New()
	}

	return &Default{options: o}
}

type rendered struct {
	status      int
	header      http.Header
	contentType string
	body        []byte
}

func render(status int, v any) (*rendered, error) {
	r := &rendered{status: status}
	switch vt := v.(type) {
	case nil:
		if status == http.StatusOK {
			r.status = http.StatusNoContent
		}
	case string:
		r.contentType = "text/plain; charset=utf-8"
		r.body = []byte(vt)
	case []byte:
		r.contentType = "application/octet-stream"
		r.body = vt
	default:
		b, err := json.Marshal(vt)
		if err != nil {
			return nil, err
		}

		r.contentType = "application/json"
		r.body = b
	}

	return r, nil
}

func renderTuple(t tuple.Tuple) (*rendered, error) {
	switch len(t) {
	case 0:
		return &rendered{status: http.StatusNoContent}, nil
	case 1:
		if o, ok := t[0].(Output); ok {
			status := o.Status
			if status == 0 {
				status = http.StatusOK
			}

			r, err := render(status, o.Value)
			if err != nil {
				return nil, err
			}

			r.header = o.Header
			return r, nil
		}

		return render(http.StatusOK, t[0])
	default:
		return render(http.StatusOK, []any(t))
	}
}

func errorMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}

	var rej *endpoint.Rejection
	if errors.As(err, &rej) {
		if rej.Reason != "" {
			return rej.Reason
		}

		return http.StatusText(status)
	}

	return err.Error()
}

func acceptsGzip(r *http.Request) bool {
	for _, v := range r.Header.Values("Accept-Encoding") {
		for _, e := range strings.Split(v, ",") {
			name, params, _ := strings.Cut(strings.TrimSpace(e), ";")
			if !strings.EqualFold(strings.TrimSpace(name), "gzip") {
				continue
			}

			params = strings.ReplaceAll(params, " ", "")
			return params != "q=0" && params != "q=0.0" && params != "q=0.00" && params != "q=0.000"
		}
	}

	return false
}

func (d *Default) write(w http.ResponseWriter, r *http.Request, out *rendered) {
	h := w.Header()
	for k, v := range out.header {
		h[k] = v
	}

	if out.contentType != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", out.contentType)
	}

	if out.status == http.StatusNoContent || len(out.body) == 0 {
		w.WriteHeader(out.status)
		return
	}

	if d.options.Gzip && len(out.body) >= d.options.MinGzipSize && h.Get("Content-Encoding") == "" {
		h.Add("Vary", "Accept-Encoding")
		if acceptsGzip(r) {
			h.Set("Content-Encoding", "gzip")
			h.Del("Content-Length")
			w.WriteHeader(out.status)

			gz := gzip.NewWriter(w)
			if _, err := gz.Write(out.body); err != nil {
				d.options.Log.Debugf("failed to write compressed response: %v", err)
			}

			if err := gz.Close(); err != nil {
				d.options.Log.Debugf("failed to close compressed response: %v", err)
			}

			return
		}
	}

	h.Set("Content-Length", strconv.Itoa(len(out.body)))
	w.WriteHeader(out.status)
	if _, err := w.Write(out.body); err != nil {
		d.options.Log.Debugf("failed to write response: %v", err)
	}
}

func (d *Default) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := endpoint.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		d.options.Log.Errorf("failed to execute request %s %s: %v", r.Method, r.URL.Path, err)
	}

	out, rerr := render(status, errorBody{Error: errorMessage(status, err)})
	if rerr != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}

	d.write(w, r, out)
}

// Respond renders the tuple, or the error when not nil.
func (d *Default) Respond(w http.ResponseWriter, r *http.Request, t tuple.Tuple, err error) {
	if err != nil {
		d.respondError(w, r, err)
		return
	}

	if len(t) == 1 {
		if wr, ok := t[0].(Writer); ok {
			if err := wr.WriteResponse(w); err != nil {
				d.options.Log.Debugf("failed to write response: %v", err)
			}

			return
		}
	}

	out, err := renderTuple(t)
	if err != nil {
		d.respondError(w, r, endpoint.NewError(http.StatusInternalServerError, err))
		return
	}

	d.write(w, r, out)
}
