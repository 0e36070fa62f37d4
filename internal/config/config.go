// Package config holds the process-wide tuning knobs shared by the engine,
// model arena, and leaf table (spec C9's dimensions): leaf capacity N, the
// PLR error bound epsilon, and the synonym table size. It follows the
// functional-options pattern the teacher uses for its own bootstrap config.
package config

import "github.com/nmxmxh/rolex/internal/leaftable"

// Config bundles the fixed-width dimensions every component needs to agree
// on: the leaf table, the model arena's wire format, and the engine's
// training pass all read from the same values.
type Config struct {
	// LeafCapacity is N, the number of (key, value) slots per leaf.
	LeafCapacity int
	// Epsilon is the PLR training error bound and the query-time slack
	// added around a submodel's predicted position.
	Epsilon float64
	// SynMax is the synonym table capacity shared by every submodel.
	SynMax int
	// LeafArenaCapacity is the total number of leaves preallocated in the
	// leaf arena.
	LeafArenaCapacity uint64
}

// DefaultConfig returns the default dimensions: 64-key leaves, an error
// bound of 32, DefaultSynMax synonym entries per submodel, and a leaf arena
// of 1<<20 preallocated leaves.
func DefaultConfig() Config {
	return Config{
		LeafCapacity:      64,
		Epsilon:           32,
		SynMax:            leaftable.DefaultSynMax,
		LeafArenaCapacity: 1 << 20,
	}
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithLeafCapacity overrides N.
func WithLeafCapacity(n int) Option {
	return func(c *Config) { c.LeafCapacity = n }
}

// WithEpsilon overrides the PLR error bound.
func WithEpsilon(eps float64) Option {
	return func(c *Config) { c.Epsilon = eps }
}

// WithSynMax overrides the synonym table capacity.
func WithSynMax(n int) Option {
	return func(c *Config) { c.SynMax = n }
}

// WithLeafArenaCapacity overrides the leaf arena's total leaf count.
func WithLeafArenaCapacity(n uint64) Option {
	return func(c *Config) { c.LeafArenaCapacity = n }
}

// New builds a Config from DefaultConfig with opts applied in order.
func New(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
