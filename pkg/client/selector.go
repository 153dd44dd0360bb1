package client

import (
	"github.com/zeebo/xxh3"

	"github.com/wsgreco/sidica/internal/jumphash"
)

// Selector picks the server index for a key.
type Selector func(key string, serverCount int) int

// DefaultSelector uses xxh3 plus Jump Hash for consistent server selection
// with minimal key movement when servers are added or removed.
func DefaultSelector(key string, serverCount int) int {
	return jumphash.Hash(xxh3.HashString(key), serverCount)
}
