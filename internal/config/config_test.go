package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/cohsim/internal/config"
)

func TestDefaultsAreValidOnceTracePrefixIsSet(t *testing.T) {
	cfg := config.Defaults()
	assert.Error(t, cfg.Validate(), "trace prefix is required")

	cfg.TracePrefix = "app"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	base := config.Defaults()
	base.TracePrefix = "app"

	tooManyBits := base
	tooManyBits.SetIndexBits = 30
	tooManyBits.BlockBits = 5
	assert.Error(t, tooManyBits.Validate())

	tinyBlock := base
	tinyBlock.BlockBits = 1
	assert.Error(t, tinyBlock.Validate())

	zeroWays := base
	zeroWays.Associativity = 0
	assert.Error(t, zeroWays.Validate())

	zeroCores := base
	zeroCores.NumCores = 0
	assert.Error(t, zeroCores.Validate())
}

func TestDerivedGeometryFields(t *testing.T) {
	cfg := config.Config{SetIndexBits: 4, Associativity: 2, BlockBits: 5}

	assert.Equal(t, 16, cfg.NumSets())
	assert.Equal(t, 32, cfg.BlockBytes())
	assert.Equal(t, 1, cfg.CacheSizeKB()) // 16*2*32/1024
}
