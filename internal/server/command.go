package server

import (
	"errors"

	"github.com/wsgreco/sidica/internal/cache"
	"github.com/wsgreco/sidica/internal/proto"
)

var (
	ErrUnknownCommand = errors.New("unknown command")

	// ErrBadDataChunk reports a storage command whose declared data length
	// does not match the framed payload.
	ErrBadDataChunk = errors.New("bad data chunk")

	ErrBadKey = errors.New("bad key")
)

// Command is one parsed, executable request. Apply runs it against the cache
// and writes the response; the returned error is a write failure, fatal to
// the connection.
type Command interface {
	Name() string
	Apply(c *cache.Cache, conn *Conn) error
}

// FromFrame parses a frame into a typed command. The frame shape selects the
// candidate command set: one-line frames carry retrieval-style commands,
// two-line frames the storage family. The data line is never token-split; it
// passes through as the literal payload bytes.
func FromFrame(fr *proto.Frame) (Command, error) {
	tk := proto.NewTokenizer(fr.Line)
	name, err := tk.NextString()
	if err != nil {
		return nil, err
	}

	var cmd Command
	if fr.Storage {
		switch name {
		case "set":
			cmd, err = parseSet(tk, fr.Data)
		case "add":
			cmd, err = parseAdd(tk, fr.Data)
		case "replace":
			cmd, err = parseReplace(tk, fr.Data)
		case "append":
			cmd, err = parseConcat(tk, fr.Data, false)
		case "prepend":
			cmd, err = parseConcat(tk, fr.Data, true)
		case "cas":
			cmd, err = parseCas(tk, fr.Data)
		default:
			// Skip Finish: an unrecognized command likely has
			// unconsumed fields left in the tokenizer.
			return nil, ErrUnknownCommand
		}
	} else {
		switch name {
		case "get":
			cmd, err = parseGet(tk, false)
		case "gets":
			cmd, err = parseGet(tk, true)
		case "delete":
			cmd, err = parseDelete(tk)
		case "incr":
			cmd, err = parseArith(tk, true)
		case "decr":
			cmd, err = parseArith(tk, false)
		case "touch":
			cmd, err = parseTouch(tk)
		case "quit":
			cmd = &Quit{}
		default:
			return nil, ErrUnknownCommand
		}
	}
	if err != nil {
		return nil, err
	}

	// Reject malformed trailing data rather than silently ignoring it.
	if err := tk.Finish(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func nextKey(tk *proto.Tokenizer) (string, error) {
	key, err := tk.NextString()
	if err != nil {
		return "", err
	}
	if !proto.IsValidKey(key) {
		return "", ErrBadKey
	}
	return key, nil
}

// Get fetches one or more keys. WithCAS selects gets semantics, echoing each
// item's version on its VALUE line.
type Get struct {
	Keys    []string
	WithCAS bool
}

func parseGet(tk *proto.Tokenizer, withCAS bool) (*Get, error) {
	key, err := nextKey(tk)
	if err != nil {
		return nil, err
	}
	keys := []string{key}

	for !tk.Complete() {
		key, err := nextKey(tk)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return &Get{Keys: keys, WithCAS: withCAS}, nil
}

func (g *Get) Name() string {
	if g.WithCAS {
		return "gets"
	}
	return "get"
}

// Apply writes one VALUE response per hit, in request order, then END. A miss
// produces no line; the END terminator is always written.
func (g *Get) Apply(c *cache.Cache, conn *Conn) error {
	for _, key := range g.Keys {
		item, ok := c.Get(key)
		if !ok {
			continue
		}
		if err := conn.WriteValue(item, g.WithCAS); err != nil {
			return err
		}
	}
	return conn.WriteEnd()
}

// storageArgs are the common fields of the storage command line:
// <key> <flags> <expiration> <data_length>.
type storageArgs struct {
	Key        string
	Flags      uint32
	Expiration uint32
	Data       []byte
}

func parseStorageArgs(tk *proto.Tokenizer, data []byte) (storageArgs, error) {
	key, err := nextKey(tk)
	if err != nil {
		return storageArgs{}, err
	}
	flags, err := tk.NextUint32()
	if err != nil {
		return storageArgs{}, err
	}
	expiration, err := tk.NextUint32()
	if err != nil {
		return storageArgs{}, err
	}
	length, err := tk.NextUint32()
	if err != nil {
		return storageArgs{}, err
	}
	if int(length) != len(data) {
		return storageArgs{}, ErrBadDataChunk
	}

	return storageArgs{Key: key, Flags: flags, Expiration: expiration, Data: data}, nil
}

// Set stores a value unconditionally. It never fails: the response is always
// STORED.
type Set struct {
	storageArgs
}

func parseSet(tk *proto.Tokenizer, data []byte) (*Set, error) {
	args, err := parseStorageArgs(tk, data)
	if err != nil {
		return nil, err
	}
	return &Set{storageArgs: args}, nil
}

func (s *Set) Name() string { return "set" }

func (s *Set) Apply(c *cache.Cache, conn *Conn) error {
	c.Set(s.Key, s.Flags, s.Expiration, s.Data)
	return conn.WriteLine(proto.RespStored)
}

// Add stores a value only if the key is absent.
type Add struct {
	storageArgs
}

func parseAdd(tk *proto.Tokenizer, data []byte) (*Add, error) {
	args, err := parseStorageArgs(tk, data)
	if err != nil {
		return nil, err
	}
	return &Add{storageArgs: args}, nil
}

func (a *Add) Name() string { return "add" }

func (a *Add) Apply(c *cache.Cache, conn *Conn) error {
	if c.Add(a.Key, a.Flags, a.Expiration, a.Data) {
		return conn.WriteLine(proto.RespStored)
	}
	return conn.WriteLine(proto.RespNotStored)
}

// Replace stores a value only if the key is already present.
type Replace struct {
	storageArgs
}

func parseReplace(tk *proto.Tokenizer, data []byte) (*Replace, error) {
	args, err := parseStorageArgs(tk, data)
	if err != nil {
		return nil, err
	}
	return &Replace{storageArgs: args}, nil
}

func (r *Replace) Name() string { return "replace" }

func (r *Replace) Apply(c *cache.Cache, conn *Conn) error {
	if c.Replace(r.Key, r.Flags, r.Expiration, r.Data) {
		return conn.WriteLine(proto.RespStored)
	}
	return conn.WriteLine(proto.RespNotStored)
}

// Concat appends or prepends data onto an existing value. The flags and
// expiration fields of the command line are required by the wire format but
// ignored, as in memcached.
type Concat struct {
	storageArgs
	Front bool
}

func parseConcat(tk *proto.Tokenizer, data []byte, front bool) (*Concat, error) {
	args, err := parseStorageArgs(tk, data)
	if err != nil {
		return nil, err
	}
	return &Concat{storageArgs: args, Front: front}, nil
}

func (cc *Concat) Name() string {
	if cc.Front {
		return "prepend"
	}
	return "append"
}

func (cc *Concat) Apply(c *cache.Cache, conn *Conn) error {
	var stored bool
	if cc.Front {
		stored = c.Prepend(cc.Key, cc.Data)
	} else {
		stored = c.Append(cc.Key, cc.Data)
	}
	if stored {
		return conn.WriteLine(proto.RespStored)
	}
	return conn.WriteLine(proto.RespNotStored)
}

// Cas stores a value only if its version still matches the one the client
// last observed.
type Cas struct {
	storageArgs
	CasID uint64
}

func parseCas(tk *proto.Tokenizer, data []byte) (*Cas, error) {
	key, err := nextKey(tk)
	if err != nil {
		return nil, err
	}
	flags, err := tk.NextUint32()
	if err != nil {
		return nil, err
	}
	expiration, err := tk.NextUint32()
	if err != nil {
		return nil, err
	}
	length, err := tk.NextUint32()
	if err != nil {
		return nil, err
	}
	casID, err := tk.NextUint64()
	if err != nil {
		return nil, err
	}
	if int(length) != len(data) {
		return nil, ErrBadDataChunk
	}

	return &Cas{
		storageArgs: storageArgs{Key: key, Flags: flags, Expiration: expiration, Data: data},
		CasID:       casID,
	}, nil
}

func (cs *Cas) Name() string { return "cas" }

func (cs *Cas) Apply(c *cache.Cache, conn *Conn) error {
	switch c.CompareAndSwap(cs.Key, cs.Flags, cs.Expiration, cs.CasID, cs.Data) {
	case cache.CasStored:
		return conn.WriteLine(proto.RespStored)
	case cache.CasExists:
		return conn.WriteLine(proto.RespExists)
	default:
		return conn.WriteLine(proto.RespNotFound)
	}
}

// Delete removes a key.
type Delete struct {
	Key string
}

func parseDelete(tk *proto.Tokenizer) (*Delete, error) {
	key, err := nextKey(tk)
	if err != nil {
		return nil, err
	}
	return &Delete{Key: key}, nil
}

func (d *Delete) Name() string { return "delete" }

func (d *Delete) Apply(c *cache.Cache, conn *Conn) error {
	if c.Delete(d.Key) {
		return conn.WriteLine(proto.RespDeleted)
	}
	return conn.WriteLine(proto.RespNotFound)
}

// Arith is incr or decr: unsigned 64-bit arithmetic on the stored value. The
// key must exist; incr and decr never create it.
type Arith struct {
	Key   string
	Delta uint64
	Incr  bool
}

func parseArith(tk *proto.Tokenizer, incr bool) (*Arith, error) {
	key, err := nextKey(tk)
	if err != nil {
		return nil, err
	}
	delta, err := tk.NextUint64()
	if err != nil {
		return nil, err
	}
	return &Arith{Key: key, Delta: delta, Incr: incr}, nil
}

func (a *Arith) Name() string {
	if a.Incr {
		return "incr"
	}
	return "decr"
}

func (a *Arith) Apply(c *cache.Cache, conn *Conn) error {
	var (
		v   uint64
		err error
	)
	if a.Incr {
		v, err = c.IncrBy(a.Key, a.Delta)
	} else {
		v, err = c.DecrBy(a.Key, a.Delta)
	}
	switch {
	case err == nil:
		return conn.WriteNumber(v)
	case errors.Is(err, cache.ErrNotFound):
		return conn.WriteLine(proto.RespNotFound)
	case errors.Is(err, cache.ErrNonNumeric), errors.Is(err, cache.ErrOverflow):
		return conn.WriteClientError(err.Error())
	default:
		return conn.WriteServerError("internal error")
	}
}

// Touch updates only a key's expiration.
type Touch struct {
	Key        string
	Expiration uint32
}

func parseTouch(tk *proto.Tokenizer) (*Touch, error) {
	key, err := nextKey(tk)
	if err != nil {
		return nil, err
	}
	expiration, err := tk.NextUint32()
	if err != nil {
		return nil, err
	}
	return &Touch{Key: key, Expiration: expiration}, nil
}

func (t *Touch) Name() string { return "touch" }

func (t *Touch) Apply(c *cache.Cache, conn *Conn) error {
	if c.Touch(t.Key, t.Expiration) {
		return conn.WriteLine(proto.RespTouched)
	}
	return conn.WriteLine(proto.RespNotFound)
}

// Quit closes the connection cleanly. It never reaches Apply; the connection
// loop recognizes it and returns.
type Quit struct{}

func (q *Quit) Name() string { return "quit" }

func (q *Quit) Apply(*cache.Cache, *Conn) error { return nil }
