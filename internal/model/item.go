package model

// Item is the external view of a stored value, reconstructed with the
// caller's key on every read.
type Item struct {
	Key  string
	Data []byte

	// Flags is an opaque client tag stored and echoed verbatim.
	Flags uint32

	// CAS is the per-key version. It starts at 0 and increases by 1 on
	// every successful update of the key.
	CAS uint64

	// Expiration is advisory: stored and reported, never enforced.
	// 0 means no expiration.
	Expiration uint32
}
