/*
Package tuple provides the flat, ordered result values accumulated while
an endpoint tree is executed.

Tuples are concatenated by Combine. Combination is associative and the
empty tuple is its identity, so a chain of sequential endpoints always
produces a single flat tuple, independent of how the chain was grouped:

	Combine(Combine(Of(1), Of(2)), Of(3)) // (1, 2, 3)
	Combine(Of(1), Combine(Of(2), Of(3))) // (1, 2, 3)
*/
package tuple

import (
	"fmt"
	"strings"
)

// Tuple is an ordered sequence of extracted values.
type Tuple []any

// Either is the value produced by an alternation whose branches have
// different shapes. Left tells which branch matched.
type Either struct {
	Left  bool
	Value Tuple
}

// Empty is the zero-arity tuple.
var Empty = Tuple{}

// Of creates a tuple from its arguments.
func Of(v ...any) Tuple {
	if len(v) == 0 {
		return Empty
	}

	return Tuple(v)
}

// Combine concatenates two tuples. When either of them is empty, the other
// one is returned as is.
func Combine(a, b Tuple) Tuple {
	switch {
	case len(a) == 0 && len(b) == 0:
		return Empty
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}

	t := make(Tuple, 0, len(a)+len(b))
	t = append(t, a...)
	return append(t, b...)
}

// Len returns the arity of the tuple.
func (t Tuple) Len() int { return len(t) }

func (t Tuple) String() string {
	s := make([]string, len(t))
	for i, v := range t {
		s[i] = fmt.Sprintf("%v", v)
	}

	return "(" + strings.Join(s, ", ") + ")"
}

// At returns the element at position i, converted to T. It fails when the
// tuple is too short or the element has a different type.
func At[T any](t Tuple, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(t) {
		return zero, fmt.Errorf("tuple: index %d out of range for arity %d", i, len(t))
	}

	v, ok := t[i].(T)
	if !ok {
		return zero, fmt.Errorf("tuple: element %d is %T, not %T", i, t[i], zero)
	}

	return v, nil
}

// MustAt is like At but panics on mismatch. It is meant for code that
// already knows the shape of the endpoint that produced the tuple.
func MustAt[T any](t Tuple, i int) T {
	v, err := At[T](t, i)
	if err != nil {
		panic(err)
	}

	return v
}

func arity(t Tuple, n int) error {
	if len(t) != n {
		return fmt.Errorf("tuple: expected arity %d, got %d", n, len(t))
	}

	return nil
}

// Get1 unpacks a one-element tuple.
func Get1[A any](t Tuple) (a A, err error) {
	if err = arity(t, 1); err != nil {
		return
	}

	return At[A](t, 0)
}

// Get2 unpacks a two-element tuple.
func Get2[A, B any](t Tuple) (a A, b B, err error) {
	if err = arity(t, 2); err != nil {
		return
	}

	if a, err = At[A](t, 0); err != nil {
		return
	}

	b, err = At[B](t, 1)
	return
}

// Get3 unpacks a three-element tuple.
func Get3[A, B, C any](t Tuple) (a A, b B, c C, err error) {
	if err = arity(t, 3); err != nil {
		return
	}

	if a, err = At[A](t, 0); err != nil {
		return
	}

	if b, err = At[B](t, 1); err != nil {
		return
	}

	c, err = At[C](t, 2)
	return
}
