package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig tests the DefaultConfig function
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NotNil(t, config)

	assert.Equal(t, uint(128), config.RangeCheckBoundExponent)
	assert.Equal(t, uint64(0), config.MaxSteps)
	assert.Equal(t, HashSHA3, config.HashFunction)
	assert.True(t, config.TraceEnabled)
	assert.Empty(t, config.Builtins)

	assert.NoError(t, config.Validate())
}

// TestConfigValidate tests the Validate method
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		expectErr bool
	}{
		{"valid default config", DefaultConfig(), false},
		{"valid sha256", DefaultConfig().WithHashFunction(HashSHA256), false},
		{"valid builtins", DefaultConfig().WithBuiltins("range_check", "ecdsa", "ec_op"), false},
		{"valid small bound", DefaultConfig().WithRangeCheckBoundExponent(8), false},
		{"zero bound", DefaultConfig().WithRangeCheckBoundExponent(0), true},
		{"bound above field size", DefaultConfig().WithRangeCheckBoundExponent(252), true},
		{"invalid hash function", DefaultConfig().WithHashFunction("poseidon"), true},
		{"unknown builtin", DefaultConfig().WithBuiltins("pedersen"), true},
		{"duplicate builtin", DefaultConfig().WithBuiltins("range_check", "range_check"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestConfigBuilders tests the With* methods chain on the same config
func TestConfigBuilders(t *testing.T) {
	config := DefaultConfig().
		WithBuiltins("range_check").
		WithRangeCheckBoundExponent(64).
		WithMaxSteps(1000).
		WithHashFunction(HashSHA256).
		WithTrace(false)

	assert.Equal(t, []string{"range_check"}, config.Builtins)
	assert.Equal(t, uint(64), config.RangeCheckBoundExponent)
	assert.Equal(t, uint64(1000), config.MaxSteps)
	assert.Equal(t, HashSHA256, config.HashFunction)
	assert.False(t, config.TraceEnabled)
}

// TestConfigClone tests that Clone returns an independent copy
func TestConfigClone(t *testing.T) {
	original := DefaultConfig().WithBuiltins("range_check", "ec_op").WithMaxSteps(10)
	clone := original.Clone()
	assert.Equal(t, original, clone)

	clone.Builtins[0] = "ecdsa"
	clone.MaxSteps = 20
	assert.Equal(t, "range_check", original.Builtins[0])
	assert.Equal(t, uint64(10), original.MaxSteps)
}

func TestWithBuiltinsCopies(t *testing.T) {
	names := []string{"range_check"}
	config := DefaultConfig().WithBuiltins(names...)
	names[0] = "ec_op"
	assert.Equal(t, []string{"range_check"}, config.Builtins)
}
