// Package breaker builds circuit breakers for outbound clients.
package breaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Config controls when a breaker opens and how long it stays open.
type Config struct {
	MaxFailures uint32        `default:"5" usage:"consecutive failures before the breaker opens"`
	OpenTimeout time.Duration `default:"30s" usage:"time the breaker stays open before probing"`
}

// New returns a breaker that opens after cfg.MaxFailures consecutive
// failures. isSuccessful decides which errors count as failures; nil counts
// every error.
func New[T any](name string, cfg Config, lg *zap.Logger, isSuccessful func(error) bool) *gobreaker.CircuitBreaker[T] {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	maxFailures := cfg.MaxFailures
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}
