/*
Package waypoint provides a library for building HTTP services from small,
composable endpoints.

An endpoint inspects a request, consumes zero or more segments of its path
and either rejects it or produces an action. The action computes a tuple of
values, synchronously or by suspending on I/O, and the tuple is rendered as
the response. Endpoints are combined by sequencing (And), by alternatives
(Or, OrStrict, OneOf) and by transforming or chaining their results (Map,
Then, AndThen):

	todo := endpoint.Map1(
		endpoint.And(method.Get(), path.Segment("todos"), path.Param[uint64](), path.End()),
		func(id uint64) Todo { return store.Get(id) },
	)

When alternatives both match, the one that consumed more path segments
wins. When both reject, the more informative rejection is reported, e.g.
405 Method Not Allowed rather than 404 Not Found.

# Packages

The core abstractions and the combinators live in the endpoint package,
with the path cursor and the result tuples in the cursor and tuple
packages. The leaf endpoints matching the path, the method, the headers,
the query and the body are in the subpackages of endpoints. The
endpoints/upstream package calls other services with retries and a
circuit breaker, and endpoints/ratelimit limits the request rate.

The server package serves a root endpoint over HTTP, and the responder
package renders the results. Run in this package wires them together with
the logging, metrics and OpenTelemetry setup, as configured by the config
package. The cmd/waypoint command runs a small demo service.

# Testing

The endpointtest package applies and executes endpoints without a server:

	res := endpointtest.NewRequest("GET", "/todos/7").Apply(todo)
*/
package waypoint
