package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Cleaner is anything that can collect its own garbage, e.g., a
// userconfig.Handle.
type Cleaner interface {
	Cleanup() error
}

type Config struct {
	// For time.Ticker ticks
	TickCh <-chan time.Time
	// Number of collections to perform after the first one before
	// returning. Used for testing.
	IterationLimit uint
}

// Run performs a single collection, logging how long it took.
func Run(c Cleaner) error {
	start := time.Now()
	if err := c.Cleanup(); err != nil {
		return err
	}
	log.Debug().Dur("took", time.Since(start)).Msg("collected the storage's garbage")
	return nil
}

// StartLoop collects garbage right away and then on every tick of s.TickCh,
// until ctx is done, a collection fails or the iteration limit is reached.
func StartLoop(ctx context.Context, s *Config, c Cleaner) error {
	// Run the first collection immediately
	if err := Run(c); err != nil {
		return err
	}

	// Implement the iteration limit by replacing the tick channel with a
	// closed, buffered channel pre-loaded with ticks.
	if s.IterationLimit > 0 {
		ch := make(chan time.Time, s.IterationLimit)
		for i := uint(0); i < s.IterationLimit; i++ {
			ch <- time.Time{}
		}
		close(ch)
		s.TickCh = ch
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping the garbage collection loop")
			return nil
		case _, ok := <-s.TickCh:
			// We've run through all the iterations
			if !ok {
				return nil
			}
			if err := Run(c); err != nil {
				return err
			}
		}
	}
}
