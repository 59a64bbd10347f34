package utils

import (
	"fmt"
	"slices"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/builtins"
)

// Supported program digest hash functions
const (
	HashSHA3   = "sha3"
	HashSHA256 = "sha256"
)

// Config represents the configuration of a VM run
type Config struct {
	// Builtins overrides the builtins declared by the program when not empty
	Builtins []string

	// Range check parameters
	RangeCheckBoundExponent uint // Values must lie in [0, 2^RangeCheckBoundExponent)

	// Execution limits
	MaxSteps uint64 // 0 means unlimited

	// Hash function for the program digest
	HashFunction string // "sha3" or "sha256"

	// TraceEnabled records and relocates the register trace
	TraceEnabled bool
}

// DefaultConfig returns the default run configuration
func DefaultConfig() *Config {
	return &Config{
		RangeCheckBoundExponent: builtins.DefaultRangeCheckBoundExponent,
		MaxSteps:                0,
		HashFunction:            HashSHA3,
		TraceEnabled:            true,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.RangeCheckBoundExponent == 0 || c.RangeCheckBoundExponent > 251 {
		return fmt.Errorf("range check bound exponent must be in [1, 251], got %d", c.RangeCheckBoundExponent)
	}

	if c.HashFunction != HashSHA3 && c.HashFunction != HashSHA256 {
		return fmt.Errorf("hash function must be 'sha3' or 'sha256', got '%s'", c.HashFunction)
	}

	seen := make(map[string]bool, len(c.Builtins))
	for _, name := range c.Builtins {
		if !builtins.IsKnown(name) {
			return fmt.Errorf("unknown builtin '%s'", name)
		}
		if seen[name] {
			return fmt.Errorf("builtin '%s' listed twice", name)
		}
		seen[name] = true
	}

	return nil
}

// WithBuiltins sets the builtins
func (c *Config) WithBuiltins(names ...string) *Config {
	c.Builtins = slices.Clone(names)
	return c
}

// WithRangeCheckBoundExponent sets the range check bound
func (c *Config) WithRangeCheckBoundExponent(n uint) *Config {
	c.RangeCheckBoundExponent = n
	return c
}

// WithMaxSteps sets the step limit
func (c *Config) WithMaxSteps(steps uint64) *Config {
	c.MaxSteps = steps
	return c
}

// WithHashFunction sets the hash function
func (c *Config) WithHashFunction(hashFunc string) *Config {
	c.HashFunction = hashFunc
	return c
}

// WithTrace enables or disables trace recording
func (c *Config) WithTrace(enabled bool) *Config {
	c.TraceEnabled = enabled
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	return &Config{
		Builtins:                slices.Clone(c.Builtins),
		RangeCheckBoundExponent: c.RangeCheckBoundExponent,
		MaxSteps:                c.MaxSteps,
		HashFunction:            c.HashFunction,
		TraceEnabled:            c.TraceEnabled,
	}
}
