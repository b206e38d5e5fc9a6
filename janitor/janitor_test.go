package janitor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingCleaner struct {
	calls int
	// fail on this call, counting from 1
	failAt int
}

func (c *countingCleaner) Cleanup() error {
	c.calls++
	if c.calls == c.failAt {
		return errors.New("collection failed")
	}
	return nil
}

func TestStartLoop(t *testing.T) {
	testCases := []struct {
		description   string
		limit         uint
		failAt        int
		expectedCalls int
		shouldBeError bool
	}{
		{
			description:   "runs once then once per tick",
			limit:         3,
			expectedCalls: 4,
		},
		{
			description:   "first collection fails",
			limit:         3,
			failAt:        1,
			expectedCalls: 1,
			shouldBeError: true,
		},
		{
			description:   "a later collection fails",
			limit:         3,
			failAt:        2,
			expectedCalls: 2,
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			c := &countingCleaner{failAt: tc.failAt}
			err := StartLoop(context.Background(), &Config{IterationLimit: tc.limit}, c)

			if (err != nil) != tc.shouldBeError {
				t.Errorf("expected error status %v but got %v", tc.shouldBeError, err)
			}
			if c.calls != tc.expectedCalls {
				t.Errorf("expected %v collections but got %v", tc.expectedCalls, c.calls)
			}
		})
	}
}

func TestStartLoopStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time)
	c := &countingCleaner{}

	done := make(chan error)
	go func() {
		done <- StartLoop(ctx, &Config{TickCh: ticks}, c)
	}()

	ticks <- time.Now()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("the loop didn't stop after the context was canceled")
	}
	if c.calls != 2 {
		t.Errorf("expected 2 collections but got %v", c.calls)
	}
}
