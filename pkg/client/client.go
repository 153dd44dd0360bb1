// Package client is an SDK for sidica servers speaking the memcached text
// protocol. It shards keys across servers with consistent hashing, pools
// pipelined connections per server and optionally guards each server with a
// circuit breaker.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

var ErrNoServers = errors.New("client: no servers configured")

const (
	defaultMaxConnsPerServer = 4
	defaultDialTimeout       = 5 * time.Second
)

type Config struct {
	// Servers is the list of server addresses keys are sharded over.
	Servers []string

	MaxConnsPerServer int32
	DialTimeout       time.Duration

	// Selector picks the server for a key; DefaultSelector when nil.
	Selector Selector

	// NewBreaker, when set, creates one circuit breaker per server; see
	// NewBreakerFactory. No breaker is used when nil.
	NewBreaker func(addr string) *gobreaker.CircuitBreaker[bool]
}

type Client struct {
	servers  []string
	pools    []*connPool
	breakers []*gobreaker.CircuitBreaker[bool]
	selector Selector
}

func New(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	if cfg.MaxConnsPerServer <= 0 {
		cfg.MaxConnsPerServer = defaultMaxConnsPerServer
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.Selector == nil {
		cfg.Selector = DefaultSelector
	}

	c := &Client{
		servers:  cfg.Servers,
		selector: cfg.Selector,
	}
	for _, addr := range cfg.Servers {
		pool, err := newConnPool(addr, cfg.MaxConnsPerServer, cfg.DialTimeout)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.pools = append(c.pools, pool)
		if cfg.NewBreaker != nil {
			c.breakers = append(c.breakers, cfg.NewBreaker(addr))
		}
	}
	return c, nil
}

func (c *Client) Close() {
	for _, pool := range c.pools {
		pool.close()
	}
}

// do runs fn on a pooled connection of the server owning key.
func (c *Client) do(ctx context.Context, key string, fn func(*Conn) error) error {
	i := c.selector(key, len(c.servers))
	return c.doServer(ctx, i, fn)
}

func (c *Client) doServer(ctx context.Context, i int, fn func(*Conn) error) error {
	op := func() error { return c.pools[i].with(ctx, fn) }

	if c.breakers == nil {
		return op()
	}

	var opErr error
	_, err := c.breakers[i].Execute(func() (bool, error) {
		opErr = op()
		if isAppError(opErr) {
			return true, nil
		}
		return opErr == nil, opErr
	})
	if opErr != nil {
		return opErr
	}
	return err
}

func (c *Client) Get(ctx context.Context, key string) (*Item, error) {
	var item *Item
	err := c.do(ctx, key, func(conn *Conn) error {
		var err error
		item, err = conn.Get(key)
		return err
	})
	return item, err
}

// GetMulti fetches several keys, grouping them per owning server. Missing
// keys are absent from the result map.
func (c *Client) GetMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	byServer := make(map[int][]string)
	for _, key := range keys {
		i := c.selector(key, len(c.servers))
		byServer[i] = append(byServer[i], key)
	}

	out := make(map[string]*Item, len(keys))
	for i, serverKeys := range byServer {
		err := c.doServer(ctx, i, func(conn *Conn) error {
			items, err := conn.GetMulti(serverKeys)
			if err != nil {
				return err
			}
			for k, item := range items {
				out[k] = item
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) Set(ctx context.Context, key string, flags, expiration uint32, data []byte) error {
	return c.do(ctx, key, func(conn *Conn) error {
		return conn.Set(key, flags, expiration, data)
	})
}

func (c *Client) Add(ctx context.Context, key string, flags, expiration uint32, data []byte) error {
	return c.do(ctx, key, func(conn *Conn) error {
		return conn.Add(key, flags, expiration, data)
	})
}

func (c *Client) Replace(ctx context.Context, key string, flags, expiration uint32, data []byte) error {
	return c.do(ctx, key, func(conn *Conn) error {
		return conn.Replace(key, flags, expiration, data)
	})
}

func (c *Client) CompareAndSwap(ctx context.Context, key string, flags, expiration uint32, cas uint64, data []byte) error {
	return c.do(ctx, key, func(conn *Conn) error {
		return conn.CompareAndSwap(key, flags, expiration, cas, data)
	})
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, key, func(conn *Conn) error {
		return conn.Delete(key)
	})
}

func (c *Client) Touch(ctx context.Context, key string, expiration uint32) error {
	return c.do(ctx, key, func(conn *Conn) error {
		return conn.Touch(key, expiration)
	})
}

func (c *Client) Incr(ctx context.Context, key string, delta uint64) (uint64, error) {
	var v uint64
	err := c.do(ctx, key, func(conn *Conn) error {
		var err error
		v, err = conn.Incr(key, delta)
		return err
	})
	return v, err
}

func (c *Client) Decr(ctx context.Context, key string, delta uint64) (uint64, error) {
	var v uint64
	err := c.do(ctx, key, func(conn *Conn) error {
		var err error
		v, err = conn.Decr(key, delta)
		return err
	})
	return v, err
}
