package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.CycleInterval)
	assert.Equal(t, 3, cfg.Scheduler.MaxExecutionRetries)
	assert.Equal(t, 5*time.Minute, cfg.Engine.PositionCooldown)
	assert.Equal(t, 100, cfg.Engine.ContractMultiplier)
	assert.Equal(t, uint(1), cfg.Engine.DefaultAccountID)
	assert.Equal(t, 50.0, cfg.PriceGuard.MaxOptionPremium)
	assert.Equal(t, "America/New_York", cfg.Market.TimeZone)
	assert.Equal(t, 5.0, cfg.API.RateLimitPerSecond)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SCHEDULER_CYCLE_INTERVAL", "5m")
	t.Setenv("PRICE_GUARD_MAX_OPTION_PREMIUM", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.CycleInterval)
	assert.Equal(t, 25.0, cfg.PriceGuard.MaxOptionPremium)
}
