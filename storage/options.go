package storage

import (
	"fmt"
	"time"
)

// Day is the length of a rotation window when DayScale is 1.
const Day = 24 * time.Hour

// Options configures the behavior shared by every strategy.
type Options struct {
	// Maintain a parent -> children index in the children backend
	ChildrenRegistry bool
	// TTL applied by Set. Zero means values don't expire.
	DefaultTTL time.Duration
}

// CheckAndSetDefaults validates o and either returns a copy of o with default
// settings applied or returns an error due to an invalid configuration
func (o *Options) CheckAndSetDefaults() (Options, error) {
	if o.DefaultTTL < 0 {
		return Options{}, fmt.Errorf("%w: the default TTL can't be negative", ErrInvalidConfig)
	}
	return *o, nil
}

// TimedOptions configures a TimedRoundRobin storage.
type TimedOptions struct {
	Options
	// Start of the first rotation window. The zero value means the Unix
	// epoch.
	BaseTimestamp time.Time
	// Length of a rotation window, in days. Fractions are allowed. Default: 1
	DayScale float64
	// Skip keys carrying a version suffix and unescape the others when
	// iterating, for shards holding keys written by the versioning layer.
	BaseKeysOnly bool
	// Clock used to pick the active shard. Default: time.Now
	Now func() time.Time
}

// CheckAndSetDefaults validates o and either returns a copy of o with default
// settings applied or returns an error due to an invalid configuration
func (o *TimedOptions) CheckAndSetDefaults() (TimedOptions, error) {
	base, err := o.Options.CheckAndSetDefaults()
	if err != nil {
		return TimedOptions{}, err
	}
	c := *o
	c.Options = base

	if c.DayScale < 0 {
		return TimedOptions{}, fmt.Errorf("%w: the day scale can't be negative", ErrInvalidConfig)
	}
	if c.DayScale == 0 {
		c.DayScale = 1
	}
	if c.window() <= 0 {
		return TimedOptions{}, fmt.Errorf("%w: a day scale of %v gives an empty rotation window", ErrInvalidConfig, c.DayScale)
	}
	if c.BaseTimestamp.IsZero() {
		c.BaseTimestamp = time.Unix(0, 0)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c, nil
}

func (o *TimedOptions) window() time.Duration {
	return time.Duration(o.DayScale * float64(Day))
}
