package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
	// strict by default, raised only for noisy source data
	assert.Equal(t, 1.0, cfg.BypassContainToleranceM)
}

func TestInvalidConfig(t *testing.T) {
	cfg := NewConfig()
	cfg.TIntersectionToleranceM = -1
	cfg.BypassMaxDepth = 100

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TIntersectionToleranceM")
}
