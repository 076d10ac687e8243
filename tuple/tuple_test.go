package tuple

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	for _, tt := range []struct {
		msg      string
		a, b     Tuple
		expected Tuple
	}{{
		msg:      "both empty",
		a:        Empty,
		b:        nil,
		expected: Empty,
	}, {
		msg:      "left identity",
		a:        Empty,
		b:        Of(1, "x"),
		expected: Of(1, "x"),
	}, {
		msg:      "right identity",
		a:        Of(uint64(42)),
		b:        Empty,
		expected: Of(uint64(42)),
	}, {
		msg:      "concatenation keeps order",
		a:        Of("a", 1),
		b:        Of(true, 2.5),
		expected: Of("a", 1, true, 2.5),
	}} {
		t.Run(tt.msg, func(t *testing.T) {
			if d := cmp.Diff(tt.expected, Combine(tt.a, tt.b)); d != "" {
				t.Error(d)
			}
		})
	}
}

func TestCombineAssociative(t *testing.T) {
	for _, abc := range [][3]Tuple{
		{Of(1), Of(2), Of(3)},
		{Empty, Of(2), Of(3)},
		{Of(1, 2), Empty, Of(3, 4)},
		{Empty, Empty, Empty},
	} {
		a, b, c := abc[0], abc[1], abc[2]
		left := Combine(Combine(a, b), c)
		right := Combine(a, Combine(b, c))
		if d := cmp.Diff(left, right); d != "" {
			t.Errorf("%v %v %v: %s", a, b, c, d)
		}
	}
}

func TestCombineDoesNotAlias(t *testing.T) {
	a := make(Tuple, 1, 4)
	a[0] = 1
	ab := Combine(a, Of(2))
	ac := Combine(a, Of(3))
	assert.Equal(t, Of(1, 2), ab)
	assert.Equal(t, Of(1, 3), ac)
}

func TestAccessors(t *testing.T) {
	tp := Of(uint64(7), "seven", true)

	n, err := At[uint64](tp, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)

	_, err = At[int](tp, 0)
	assert.Error(t, err)

	_, err = At[string](tp, 3)
	assert.Error(t, err)

	a, b, c, err := Get3[uint64, string, bool](tp)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), a)
	assert.Equal(t, "seven", b)
	assert.True(t, c)

	_, _, err = Get2[uint64, string](tp)
	assert.Error(t, err)

	s, err := Get1[string](Of("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	assert.Panics(t, func() { MustAt[string](tp, 0) })
	assert.Equal(t, "(7, seven, true)", tp.String())
}
