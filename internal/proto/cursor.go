package proto

import "errors"

// ErrIncomplete reports that the buffer does not yet hold a complete frame.
// It is an expected runtime condition, not a protocol violation: the caller
// should read more bytes and retry.
var ErrIncomplete = errors.New("incomplete frame")

// Cursor tracks a read position over a byte buffer that may contain zero, one
// or many frames' worth of bytes plus trailing partial data.
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current position, i.e. the number of bytes consumed.
func (c *Cursor) Pos() int {
	return c.pos
}

// Reset moves the cursor back to the start of the buffer.
func (c *Cursor) Reset() {
	c.pos = 0
}

// first peeks at the byte at the current position without advancing.
func (c *Cursor) first() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrIncomplete
	}
	return c.buf[c.pos], nil
}

// line scans for the next CRLF, returns the bytes before it and advances the
// cursor past the terminator. Returns ErrIncomplete if no full terminator is
// buffered yet.
func (c *Cursor) line() ([]byte, error) {
	start := c.pos
	for i := start; i+1 < len(c.buf); i++ {
		if c.buf[i] == '\r' && c.buf[i+1] == '\n' {
			c.pos = i + 2
			return c.buf[start:i], nil
		}
	}
	return nil, ErrIncomplete
}
