package client

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewBreakerFactory returns a function that creates one circuit breaker per
// server address. The breaker trips when at least 3 requests have been seen
// and 60% of them failed.
func NewBreakerFactory(maxRequests uint32, interval, timeout time.Duration) func(string) *gobreaker.CircuitBreaker[bool] {
	return func(serverAddr string) *gobreaker.CircuitBreaker[bool] {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[bool](settings)
	}
}

// isAppError reports protocol-level outcomes that must not trip the breaker:
// the server is healthy, the key just was not in the expected state.
func isAppError(err error) bool {
	return errors.Is(err, ErrCacheMiss) ||
		errors.Is(err, ErrNotStored) ||
		errors.Is(err, ErrCasConflict)
}
