package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/wsgreco/sidica/internal/model"
	"github.com/wsgreco/sidica/internal/proto"
)

const readChunkSize = 4096

var (
	// ErrConnReset reports a peer that closed the socket while a partial
	// frame was still buffered, as opposed to a clean close between frames.
	ErrConnReset = errors.New("connection reset by peer")

	// ErrFrameTooLarge reports a frame that did not complete within the
	// configured buffer bound. This is invalid framing, fatal to the
	// connection.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// Conn owns one client connection: the socket, a growable read buffer driven
// by the two-phase check/parse framing loop, and the buffered write side that
// serializes responses in the wire format.
type Conn struct {
	nc net.Conn
	w  *bufio.Writer

	buf      []byte
	tmp      [readChunkSize]byte
	maxFrame int
}

func newConn(nc net.Conn, maxFrame int) *Conn {
	return &Conn{
		nc:       nc,
		w:        bufio.NewWriter(nc),
		maxFrame: maxFrame,
	}
}

// ReadFrame returns the next complete frame from the stream, buffering
// partial reads until a frame boundary is seen. It returns io.EOF on a clean
// close (empty buffer) and ErrConnReset if the peer closed mid-frame.
func (c *Conn) ReadFrame() (*proto.Frame, error) {
	for {
		fr, ok, err := c.parseFrame()
		if err != nil {
			return nil, err
		}
		if ok {
			return fr, nil
		}

		if len(c.buf) >= c.maxFrame {
			return nil, ErrFrameTooLarge
		}

		n, err := c.nc.Read(c.tmp[:])
		if n > 0 {
			c.buf = append(c.buf, c.tmp[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			if fr, ok, perr := c.parseFrame(); perr != nil {
				return nil, perr
			} else if ok {
				return fr, nil
			}
			if len(c.buf) == 0 {
				return nil, io.EOF
			}
			return nil, ErrConnReset
		}
	}
}

// parseFrame attempts to extract one frame from the buffered bytes. The
// allocation-free Check runs first so partial data is rescanned cheaply until
// enough bytes arrive; only a complete frame is materialized by Parse.
func (c *Conn) parseFrame() (*proto.Frame, bool, error) {
	cur := proto.NewCursor(c.buf)

	err := proto.Check(cur)
	switch {
	case err == nil:
		n := cur.Pos()
		cur.Reset()
		fr, err := proto.Parse(cur)
		if err != nil {
			return nil, false, err
		}
		c.buf = c.buf[:copy(c.buf, c.buf[n:])]
		return &fr, true, nil
	case errors.Is(err, proto.ErrIncomplete):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// WriteValue writes one VALUE response line followed by the raw data bytes.
// withCAS selects the gets-style line that echoes the item version.
func (c *Conn) WriteValue(item *model.Item, withCAS bool) error {
	var err error
	if withCAS {
		_, err = fmt.Fprintf(c.w, "VALUE %s %d %d %d\r\n", item.Key, item.Flags, len(item.Data), item.CAS)
	} else {
		_, err = fmt.Fprintf(c.w, "VALUE %s %d %d\r\n", item.Key, item.Flags, len(item.Data))
	}
	if err != nil {
		return err
	}
	if _, err := c.w.Write(item.Data); err != nil {
		return err
	}
	_, err = c.w.WriteString("\r\n")
	return err
}

// WriteLine writes one single-word response line, e.g. STORED or NOT_FOUND.
func (c *Conn) WriteLine(word string) error {
	_, err := fmt.Fprintf(c.w, "%s\r\n", word)
	return err
}

func (c *Conn) WriteEnd() error {
	return c.WriteLine(proto.RespEnd)
}

// WriteNumber writes an increment/decrement result.
func (c *Conn) WriteNumber(v uint64) error {
	_, err := fmt.Fprintf(c.w, "%d\r\n", v)
	return err
}

func (c *Conn) WriteClientError(msg string) error {
	_, err := fmt.Fprintf(c.w, "%s %s\r\n", proto.RespClientErrorPrefix, msg)
	return err
}

func (c *Conn) WriteServerError(msg string) error {
	_, err := fmt.Fprintf(c.w, "%s %s\r\n", proto.RespServerErrorPrefix, msg)
	return err
}

func (c *Conn) WriteError() error {
	return c.WriteLine(proto.RespError)
}

func (c *Conn) Flush() error {
	return c.w.Flush()
}

func (c *Conn) Close() error {
	return c.nc.Close()
}

func (s *Server) handleConn(nc net.Conn) {
	conn := newConn(nc, s.cfg.MaxFrameBytes)
	defer conn.Close()

	for {
		fr, err := conn.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logf("read error: %v", err)
			}
			return
		}

		cmd, err := FromFrame(fr)
		if err != nil {
			if writeErr := writeCommandError(conn, err); writeErr != nil {
				return
			}
			if err := conn.Flush(); err != nil {
				return
			}
			continue
		}

		if _, ok := cmd.(*Quit); ok {
			return
		}

		if err := cmd.Apply(s.cache, conn); err != nil {
			s.logf("write error on %s: %v", cmd.Name(), err)
			return
		}
		if err := conn.Flush(); err != nil {
			return
		}
	}
}

// writeCommandError maps a parse failure to its protocol response. All of
// these are recoverable: the connection stays open for the next command.
func writeCommandError(conn *Conn, err error) error {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return conn.WriteError()
	case errors.Is(err, ErrBadDataChunk):
		return conn.WriteClientError("bad data chunk")
	case errors.Is(err, ErrBadKey):
		return conn.WriteClientError("bad key")
	default:
		return conn.WriteClientError("bad command line format")
	}
}
