package load

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// Option configures an Inspector.
type Option func(*Inspector) error

// WithWorkers bounds the number of tables introspected concurrently.
func WithWorkers(n int) Option {
	return func(i *Inspector) error {
		if n < 1 {
			return fmt.Errorf("pgproto/load: workers must be positive, got %d", n)
		}
		i.workers = n
		return nil
	}
}

// WithLogger sets the logger receiving introspection events.
func WithLogger(log *zap.Logger) Option {
	return func(i *Inspector) error {
		if log == nil {
			return fmt.Errorf("pgproto/load: nil logger")
		}
		i.log = log
		return nil
	}
}

func defaultWorkers() int {
	return max(runtime.GOMAXPROCS(0), 1)
}
