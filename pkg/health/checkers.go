package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
)

// GoroutineCountCheck fails when the process runs more than threshold
// goroutines. Sessions and rate-limit buckets leaking show up here first.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is satisfied by the Redis ledger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// BreakerState is satisfied by any gobreaker.CircuitBreaker.
type BreakerState interface {
	Name() string
	State() gobreaker.State
}

// BreakerCheck fails while the breaker is open. It is registered as a
// readiness check so that an instance cut off from the backend stops
// receiving checkout traffic.
func BreakerCheck(b BreakerState) CheckFunc {
	return func(context.Context) error {
		if s := b.State(); s == gobreaker.StateOpen {
			return errors.Errorf("circuit %q is %s", b.Name(), s)
		}
		return nil
	}
}
