package client

import (
	"context"
	"time"

	"github.com/jackc/puddle/v2"
)

// connPool is a puddle-backed pool of pipelined connections to one server.
type connPool struct {
	pool *puddle.Pool[*Conn]
}

func newConnPool(addr string, maxSize int32, dialTimeout time.Duration) (*connPool, error) {
	pool, err := puddle.NewPool(&puddle.Config[*Conn]{
		Constructor: func(ctx context.Context) (*Conn, error) {
			return Dial(addr, dialTimeout)
		},
		Destructor: func(c *Conn) {
			_ = c.Close()
		},
		MaxSize: maxSize,
	})
	if err != nil {
		return nil, err
	}
	return &connPool{pool: pool}, nil
}

// with runs fn on a pooled connection. A connection that failed is destroyed
// instead of being returned to the pool.
func (p *connPool) with(ctx context.Context, fn func(*Conn) error) error {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	err = fn(res.Value())
	if res.Value().IsClosed() {
		res.Destroy()
	} else {
		res.Release()
	}
	return err
}

func (p *connPool) close() {
	p.pool.Close()
}
