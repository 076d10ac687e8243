/*
Package metrics implements the collection of the request execution
metrics.

Two backends are supported. The CodaHale backend uses the Go
implementation of the Coda Hale metrics library:

https://github.com/rcrowley/go-metrics

and serves the collected values as JSON. The Prometheus backend uses the
official client library:

https://github.com/prometheus/client_golang

The collected metrics include the time of matching a request against the
endpoint tree, the number of requests rejected by the tree per status,
the total time of serving a request per route, method and status, and
the time of the calls to the upstream services.

The backend is selected with Options.Format. When both are enabled, the
handler registered with RegisterHandler serves the CodaHale format to
clients that accept application/codahale+json, and the Prometheus format
to everyone else.
*/
package metrics
