package id

// SetNowUnixForTest overrides the generator's clock and returns a restore
// function.
func SetNowUnixForTest(f func() uint32) func() {
	prev := nowUnix
	nowUnix = f
	return func() {
		nowUnix = prev
	}
}

// Combine exposes the timestamp/sequence packing for tests.
func Combine(timestamp, count uint32) uint64 {
	return combine(timestamp, count)
}
