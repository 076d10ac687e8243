/*
Package endpoint implements the combinator engine that matches an HTTP
request against a tree of endpoints and executes the selected branch.

# Endpoints

An Endpoint inspects a Context, the request snapshot together with a
cursor over the request path, and either rejects it or produces an Action.
A rejection is not an error: it is the normal signal for the tree to
backtrack or to try an alternative. Rejections carry an HTTP status, so
that when every alternative fails, the most specific cause can be
reported to the client.

Endpoints are built once and shared by all requests. They must not keep
per-request state.

# Actions

An Action is the per-request computation created by a successful match.
It is executed in two phases:

	Preflight(*Input) Poll  // synchronous, no I/O
	Resume(*Task) Poll      // called repeatedly until the result is final

Both return a Poll that is either pending, ready with a tuple, or failed
with an error. Once an action returned a final poll, it must not be
called again. The actions implemented in this package panic with
ErrResumedAfterFinish when this rule is violated, since it always
indicates a bug in a combinator.

Leaf actions that perform I/O start their work in a goroutine and call
Task.Wake when their result is available. Combinators never block and
never start goroutines on their own, they only advance their children.

# Combinators

	And(a, b)          // both match in sequence, tuples concatenated
	Or(a, b)           // alternation, result tagged with tuple.Either
	OrStrict(a, b)     // alternation of equally shaped branches
	Then(a, f)         // continuation built from the result of a
	AndThen(a, f)      // fallible asynchronous continuation
	Map(a, f)          // pure transformation of the result

When both branches of an alternation match, the branch that consumed more
path segments wins. On a tie, the left branch wins. This allows routes
like /foo and /foo/bar to be combined in any order.

# Execution

The Driver runs the root action of a single request. Execute combines
matching and execution:

	in := endpoint.NewInput(r)
	t, err := endpoint.Execute(r.Context(), root, in)

The error is either a *Rejection, when the root endpoint did not match,
or the failure of the action.
*/
package endpoint
