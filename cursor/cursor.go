/*
Package cursor implements the position marker used while matching the
path of a request segment by segment.

A Cursor never copies or decodes the path. Segments are returned in their
percent-encoded form, decoding is left to the endpoint that extracts a
value from them. Cursor is a small value type: assigning it to another
variable is the way to take a snapshot of the position before trying an
alternative, and assigning the snapshot back is the way to backtrack.

	c := cursor.New("/todos/7")
	c.Next() // "todos", true
	c.Next() // "7", true
	c.Next() // "", false
*/
package cursor

import "strings"

// Cursor points into the path of a single request.
type Cursor struct {
	path   string
	offset int
	popped int
}

// New creates a cursor positioned after the leading slash of path. An
// empty path is treated as "/".
func New(path string) Cursor {
	if path == "" {
		path = "/"
	}

	offset := 0
	if path[0] == '/' {
		offset = 1
	}

	return Cursor{path: path, offset: offset}
}

// Next returns the next segment and advances the cursor. When the path is
// exhausted, it returns false and the cursor is not moved.
func (c *Cursor) Next() (string, bool) {
	if c.offset >= len(c.path) {
		return "", false
	}

	rest := c.path[c.offset:]
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		c.offset = len(c.path)
		c.popped++
		return rest, true
	}

	c.offset += i + 1
	c.popped++
	return rest[:i], true
}

// Peek returns the next segment without advancing.
func (c Cursor) Peek() (string, bool) {
	return c.Next()
}

// Remaining returns the unconsumed part of the path, without the leading
// slash.
func (c Cursor) Remaining() string {
	return c.path[c.offset:]
}

// Skip advances the cursor to the end of the path and returns the number
// of segments that were consumed.
func (c *Cursor) Skip() int {
	n := 0
	for {
		if _, ok := c.Next(); !ok {
			return n
		}

		n++
	}
}

// Exhausted tells whether there are no more segments.
func (c Cursor) Exhausted() bool { return c.offset >= len(c.path) }

// Position returns the byte offset of the next segment in the path.
func (c Cursor) Position() int { return c.offset }

// Popped returns the number of segments consumed so far.
func (c Cursor) Popped() int { return c.popped }

// Path returns the full path the cursor was created from.
func (c Cursor) Path() string { return c.path }
