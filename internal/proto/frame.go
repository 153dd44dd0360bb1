package proto

// Frame is one complete protocol unit: a single command line, or for storage
// commands a command line plus one raw data line.
type Frame struct {
	// Line is the command line without its CRLF terminator.
	Line []byte
	// Data is the payload line of a storage frame, nil otherwise.
	Data []byte
	// Storage reports whether the frame used two-line framing.
	Storage bool
}

// storageLead maps the leading byte of a command line to its framing class.
// Storage commands ("set", "add", "replace", "append", "prepend", "cas") use
// two lines; the dispatch is on the first byte only, before any tokenization,
// so any command word starting with one of these bytes is framed as storage.
var storageLead = func() [256]bool {
	var t [256]bool
	for _, b := range []byte{'s', 'a', 'r', 'p', 'c'} {
		t[b] = true
	}
	return t
}()

// Check determines, without allocating, whether a complete frame starting at
// the cursor's position is buffered. On success the cursor is left exactly at
// the end of the frame. Returns ErrIncomplete if more bytes are needed.
func Check(c *Cursor) error {
	b, err := c.first()
	if err != nil {
		return err
	}

	if _, err := c.line(); err != nil {
		return err
	}
	if storageLead[b] {
		if _, err := c.line(); err != nil {
			return err
		}
	}
	return nil
}

// Parse materializes the frame at the cursor's position. It must only be
// called after Check succeeded on the same buffer with the cursor reset; the
// returned slices are copies, independent of the read buffer.
func Parse(c *Cursor) (Frame, error) {
	b, err := c.first()
	if err != nil {
		return Frame{}, err
	}

	line, err := c.line()
	if err != nil {
		return Frame{}, err
	}
	if !storageLead[b] {
		return Frame{Line: copyBytes(line)}, nil
	}

	data, err := c.line()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Line: copyBytes(line), Data: copyBytes(data), Storage: true}, nil
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
