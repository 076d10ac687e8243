/*
Package endpoints contains the parsing helpers shared by the leaf
endpoints. The leaves themselves are in the subpackages:

	path       segments, typed path parameters, end of path, rest of path
	method     request method matchers
	header     header and cookie extractors
	query      query parameter extractors
	body       request body readers and decoders
	primitive  constant values and unconditional rejections
	ratelimit  request rate limiting
	upstream   calls to upstream services
*/
package endpoints

import (
	"fmt"
	"strconv"
)

// Scalar lists the types that path parameters, headers and query values
// can be parsed into.
type Scalar interface {
	string | bool |
		int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// Parse converts s into T.
func Parse[T Scalar](s string) (T, error) {
	var v T
	var err error
	switch p := any(&v).(type) {
	case *string:
		*p = s
	case *bool:
		*p, err = strconv.ParseBool(s)
	case *int:
		var n int64
		n, err = strconv.ParseInt(s, 10, 0)
		*p = int(n)
	case *int8:
		var n int64
		n, err = strconv.ParseInt(s, 10, 8)
		*p = int8(n)
	case *int16:
		var n int64
		n, err = strconv.ParseInt(s, 10, 16)
		*p = int16(n)
	case *int32:
		var n int64
		n, err = strconv.ParseInt(s, 10, 32)
		*p = int32(n)
	case *int64:
		*p, err = strconv.ParseInt(s, 10, 64)
	case *uint:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 0)
		*p = uint(n)
	case *uint8:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 8)
		*p = uint8(n)
	case *uint16:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 16)
		*p = uint16(n)
	case *uint32:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 32)
		*p = uint32(n)
	case *uint64:
		*p, err = strconv.ParseUint(s, 10, 64)
	case *float32:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		*p = float32(f)
	case *float64:
		*p, err = strconv.ParseFloat(s, 64)
	}

	if err != nil {
		var zero T
		return zero, fmt.Errorf("invalid %T value %q: %w", v, s, err)
	}

	return v, nil
}
