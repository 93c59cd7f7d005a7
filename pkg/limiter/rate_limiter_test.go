package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/snow-ghost/patrefine/pkg/registry"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()
	config := registry.ModelConfig{ID: "test-model", MaxRPM: 100}

	limiter := rl.GetLimiter(config)
	require.NotNil(t, limiter)
	assert.Equal(t, 10, limiter.Burst())
	assert.True(t, rl.Allow(config))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, rl.Wait(ctx, config))
}

func TestRateLimiterWithHighLoad(t *testing.T) {
	rl := NewRateLimiter()
	config := registry.ModelConfig{ID: "high-load-model", MaxRPM: 10}

	allowed := 0
	for i := 0; i < 20; i++ {
		if rl.Allow(config) {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter()
	config := registry.ModelConfig{ID: "local"}
	assert.Equal(t, rate.Inf, rl.GetLimiter(config).Limit())
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow(config))
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter()
	config := registry.ModelConfig{ID: "reset-model", MaxRPM: 6}

	first := rl.GetLimiter(config)
	rl.Reset("reset-model")
	assert.NotSame(t, first, rl.GetLimiter(config))
}
