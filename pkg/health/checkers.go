package health

import (
	"context"
	"fmt"
	"runtime"
)

// Pinger matches dependencies exposing a Ping method, e.g. pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck returns a CheckFunc that pings the dependency.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// GoroutineCountCheck fails once the goroutine count exceeds the
// threshold. A steadily growing count means a leak that only a restart
// clears, which is what liveness probes are for.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return fmt.Errorf("too many goroutines (%d > %d)", count, threshold)
		}
		return nil
	}
}
