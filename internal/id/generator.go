package id

import (
	"sync/atomic"
	"time"
)

// Generator produces process-wide monotonically non-decreasing 64-bit
// identifiers. The high 32 bits are the Unix timestamp truncated to seconds,
// the low 32 bits a per-second sequence counter.
//
// Output is non-decreasing under sequential calls. The timestamp swap and the
// counter reset are two independent atomic operations, so two calls racing
// across a second boundary can both observe a fresh second and hand out the
// same identifier. Callers that need strict uniqueness under concurrency must
// serialize Next themselves.
type Generator struct {
	ts    atomic.Uint32
	count atomic.Uint32
}

var nowUnix = func() uint32 { return uint32(time.Now().Unix()) }

func NewGenerator() *Generator {
	g := &Generator{}
	g.ts.Store(nowUnix())
	return g
}

// Next returns the next identifier. Within one wall-clock second consecutive
// identifiers increase by exactly 1; crossing a second boundary resets the
// low 32 bits to 0.
func (g *Generator) Next() uint64 {
	now := nowUnix()
	last := g.ts.Swap(now)

	var count uint32
	if now == last {
		count = g.count.Add(1) - 1
	} else {
		g.count.Store(0)
	}

	return combine(now, count)
}

func combine(timestamp, count uint32) uint64 {
	return uint64(timestamp)<<32 | uint64(count)
}
