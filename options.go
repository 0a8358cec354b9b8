package nghs

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	defaultBucketSize   uint32  = 16
	defaultLoadFactor   float64 = 0.75
	defaultExpandFactor float64 = 2.0
)

type config struct {
	bucketSize   uint32
	loadFactor   float64
	expandFactor float64
	hasher       Hasher32
	scheduler    Scheduler
	logger       *zap.Logger
}

func defaultConfig() config {
	return config{
		bucketSize:   defaultBucketSize,
		loadFactor:   defaultLoadFactor,
		expandFactor: defaultExpandFactor,
		hasher:       XXHasher32{},
		scheduler:    NewGoroutineScheduler(),
		logger:       zap.NewNop(),
	}
}

// Option configures a Table at construction time. The bucket size B is a
// compile-time template parameter in the C++ origin this table is ported
// from; Go's lack of const generics makes it a construction-time parameter
// here instead. Every other ambient knob (logger, hasher, scheduler,
// load/expand factor) follows the same functional-options shape for
// consistency.
type Option func(*config) error

// WithBucketSize sets B, the number of slots per bucket / leaf. Any
// positive value is accepted; zero is rejected.
func WithBucketSize(b uint32) Option {
	return func(c *config) error {
		if b == 0 {
			return fmt.Errorf("nghs: bucket size must be positive, got %d", b)
		}
		c.bucketSize = b
		return nil
	}
}

// WithLoadFactor overrides the maximum used/capacity ratio the table
// maintains after every batch insertion.
func WithLoadFactor(lf float64) Option {
	return func(c *config) error {
		if lf <= 0 || lf > 1 {
			return fmt.Errorf("nghs: load factor must be in (0,1], got %v", lf)
		}
		c.loadFactor = lf
		return nil
	}
}

// WithExpandFactor overrides the minimum capacity growth multiplier applied
// on resize.
func WithExpandFactor(ef float64) Option {
	return func(c *config) error {
		if ef <= 1 {
			return fmt.Errorf("nghs: expand factor must be > 1, got %v", ef)
		}
		c.expandFactor = ef
		return nil
	}
}

// WithHasher overrides the default xxhash-backed Hasher32.
func WithHasher(h Hasher32) Option {
	return func(c *config) error {
		if h == nil {
			return fmt.Errorf("nghs: hasher must not be nil")
		}
		c.hasher = h
		return nil
	}
}

// WithScheduler overrides the default GoroutineScheduler, e.g. with an
// InlineScheduler for deterministic tests.
func WithScheduler(s Scheduler) Option {
	return func(c *config) error {
		if s == nil {
			return fmt.Errorf("nghs: scheduler must not be nil")
		}
		c.scheduler = s
		return nil
	}
}

// WithLogger overrides the default no-op logger. Contract-violation and
// capacity-exhaustion diagnostics (see errors.go) are written through this
// logger at Fatal level before the process terminates.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return fmt.Errorf("nghs: logger must not be nil")
		}
		c.logger = l
		return nil
	}
}
