package client

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edwingeng/deque/v2"
)

var (
	ErrConnClosed = errors.New("client: connection closed")

	// ErrCacheMiss covers both a get miss and NOT_FOUND from commands that
	// require the key to exist.
	ErrCacheMiss = errors.New("client: cache miss")

	ErrNotStored   = errors.New("client: not stored")
	ErrCasConflict = errors.New("client: compare-and-swap conflict")
)

// Item is a value fetched from the server. CAS is populated because the
// client always retrieves with gets.
type Item struct {
	Key   string
	Flags uint32
	CAS   uint64
	Data  []byte
}

type respKind int

const (
	// respLine expects a single status or numeric line.
	respLine respKind = iota
	// respValues expects zero or more VALUE blocks terminated by END.
	respValues
)

type result struct {
	items []*Item
	line  string
	err   error
}

type pending struct {
	kind respKind
	ch   chan result
}

// Conn is one pipelined connection: requests are written in order under the
// lock and queued as pending responses; a reader goroutine pops the queue and
// matches server responses first-in first-out.
type Conn struct {
	nc net.Conn
	w  *bufio.Writer
	r  *bufio.Reader

	mu     sync.Mutex
	pend   *deque.Deque[pending]
	closed bool
}

func Dial(addr string, timeout time.Duration) (*Conn, error) {
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		nc:   nc,
		w:    bufio.NewWriter(nc),
		r:    bufio.NewReader(nc),
		pend: deque.NewDeque[pending](),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) Close() error {
	c.failAll(ErrConnClosed)
	return c.nc.Close()
}

func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// failAll marks the connection closed and fails every queued request.
func (c *Conn) failAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for c.pend.Len() > 0 {
		p := c.pend.PopFront()
		p.ch <- result{err: err}
	}
}

// roundTrip writes one request and waits for its response. Responses arrive
// in write order, so one pending entry per request keeps the stream matched.
func (c *Conn) roundTrip(req []byte, kind respKind) (result, error) {
	ch := make(chan result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return result{}, ErrConnClosed
	}
	if _, err := c.w.Write(req); err != nil {
		c.mu.Unlock()
		c.failAll(err)
		return result{}, err
	}
	if err := c.w.Flush(); err != nil {
		c.mu.Unlock()
		c.failAll(err)
		return result{}, err
	}
	c.pend.PushBack(pending{kind: kind, ch: ch})
	c.mu.Unlock()

	res := <-ch
	if res.err != nil {
		return result{}, res.err
	}
	return res, nil
}

func (c *Conn) readLoop() {
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.failAll(err)
			} else {
				c.failAll(ErrConnClosed)
			}
			return
		}

		c.mu.Lock()
		if c.pend.Len() == 0 {
			c.mu.Unlock()
			c.failAll(fmt.Errorf("client: unexpected response: %q", line))
			return
		}
		p := c.pend.PopFront()
		c.mu.Unlock()

		res, err := c.readResponse(line, p.kind)
		if err != nil {
			p.ch <- result{err: err}
			c.failAll(err)
			return
		}
		p.ch <- res
	}
}

// readResponse consumes the rest of one response, starting from its first
// line.
func (c *Conn) readResponse(line string, kind respKind) (result, error) {
	if kind == respLine {
		return result{line: strings.TrimRight(line, "\r\n")}, nil
	}

	var items []*Item
	for {
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "END" {
			return result{items: items}, nil
		}

		header := strings.Fields(trimmed)
		if len(header) < 4 || header[0] != "VALUE" {
			return result{}, fmt.Errorf("client: invalid value header: %q", trimmed)
		}

		flags, err := strconv.ParseUint(header[2], 10, 32)
		if err != nil {
			return result{}, fmt.Errorf("client: invalid flags: %w", err)
		}
		size, err := strconv.Atoi(header[3])
		if err != nil || size < 0 {
			return result{}, fmt.Errorf("client: invalid value size: %q", header[3])
		}

		var cas uint64
		if len(header) >= 5 {
			cas, err = strconv.ParseUint(header[4], 10, 64)
			if err != nil {
				return result{}, fmt.Errorf("client: invalid cas: %w", err)
			}
		}

		// Value bytes plus their CRLF terminator.
		data := make([]byte, size+2)
		if _, err := io.ReadFull(c.r, data); err != nil {
			return result{}, err
		}

		items = append(items, &Item{
			Key:   header[1],
			Flags: uint32(flags),
			CAS:   cas,
			Data:  data[:size],
		})

		line, err = c.r.ReadString('\n')
		if err != nil {
			return result{}, err
		}
	}
}

// statusError maps a single-line response to its error, nil for success
// words.
func statusError(line string) error {
	switch line {
	case "STORED", "DELETED", "TOUCHED", "OK":
		return nil
	case "NOT_STORED":
		return ErrNotStored
	case "EXISTS":
		return ErrCasConflict
	case "NOT_FOUND":
		return ErrCacheMiss
	}
	return fmt.Errorf("client: server replied %q", line)
}

// Get fetches one key. Returns ErrCacheMiss if the key is absent.
func (c *Conn) Get(key string) (*Item, error) {
	res, err := c.roundTrip([]byte("gets "+key+"\r\n"), respValues)
	if err != nil {
		return nil, err
	}
	if len(res.items) == 0 {
		return nil, ErrCacheMiss
	}
	return res.items[0], nil
}

// GetMulti fetches several keys in one request. Missing keys are simply
// absent from the result map.
func (c *Conn) GetMulti(keys []string) (map[string]*Item, error) {
	if len(keys) == 0 {
		return map[string]*Item{}, nil
	}

	res, err := c.roundTrip([]byte("gets "+strings.Join(keys, " ")+"\r\n"), respValues)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Item, len(res.items))
	for _, item := range res.items {
		out[item.Key] = item
	}
	return out, nil
}

func (c *Conn) storage(verb, key string, flags, expiration uint32, data []byte) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s %d %d %d\r\n", verb, key, flags, expiration, len(data))
	buf.Write(data)
	buf.WriteString("\r\n")

	res, err := c.roundTrip(buf.Bytes(), respLine)
	if err != nil {
		return "", err
	}
	return res.line, nil
}

func (c *Conn) Set(key string, flags, expiration uint32, data []byte) error {
	line, err := c.storage("set", key, flags, expiration, data)
	if err != nil {
		return err
	}
	return statusError(line)
}

func (c *Conn) Add(key string, flags, expiration uint32, data []byte) error {
	line, err := c.storage("add", key, flags, expiration, data)
	if err != nil {
		return err
	}
	return statusError(line)
}

func (c *Conn) Replace(key string, flags, expiration uint32, data []byte) error {
	line, err := c.storage("replace", key, flags, expiration, data)
	if err != nil {
		return err
	}
	return statusError(line)
}

// CompareAndSwap stores data only if the server-side version still equals
// cas. Returns ErrCasConflict if someone else updated the key, ErrCacheMiss
// if it vanished.
func (c *Conn) CompareAndSwap(key string, flags, expiration uint32, cas uint64, data []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "cas %s %d %d %d %d\r\n", key, flags, expiration, len(data), cas)
	buf.Write(data)
	buf.WriteString("\r\n")

	res, err := c.roundTrip(buf.Bytes(), respLine)
	if err != nil {
		return err
	}
	return statusError(res.line)
}

func (c *Conn) Delete(key string) error {
	res, err := c.roundTrip([]byte("delete "+key+"\r\n"), respLine)
	if err != nil {
		return err
	}
	return statusError(res.line)
}

func (c *Conn) Touch(key string, expiration uint32) error {
	res, err := c.roundTrip(fmt.Appendf(nil, "touch %s %d\r\n", key, expiration), respLine)
	if err != nil {
		return err
	}
	return statusError(res.line)
}

func (c *Conn) arith(verb, key string, delta uint64) (uint64, error) {
	res, err := c.roundTrip(fmt.Appendf(nil, "%s %s %d\r\n", verb, key, delta), respLine)
	if err != nil {
		return 0, err
	}

	if v, err := strconv.ParseUint(res.line, 10, 64); err == nil {
		return v, nil
	}
	return 0, statusError(res.line)
}

// Incr adds delta to the numeric value of key.
func (c *Conn) Incr(key string, delta uint64) (uint64, error) {
	return c.arith("incr", key, delta)
}

// Decr subtracts delta from the numeric value of key, clamping at 0.
func (c *Conn) Decr(key string, delta uint64) (uint64, error) {
	return c.arith("decr", key, delta)
}
