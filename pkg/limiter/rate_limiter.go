package limiter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/snow-ghost/patrefine/pkg/registry"
)

// RateLimiter manages rate limiting for models
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// GetLimiter returns or creates a rate limiter for a model. Models without an
// RPM budget are not limited.
func (rl *RateLimiter) GetLimiter(config registry.ModelConfig) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[config.ID]; exists {
		return limiter
	}

	var limiter *rate.Limiter
	if config.MaxRPM <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		burst := config.MaxRPM / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(config.MaxRPM)/60.0), burst)
	}
	rl.limiters[config.ID] = limiter
	return limiter
}

// Wait waits for the rate limiter to allow the request
func (rl *RateLimiter) Wait(ctx context.Context, config registry.ModelConfig) error {
	if err := rl.GetLimiter(config).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

// Allow checks if the request is allowed without waiting
func (rl *RateLimiter) Allow(config registry.ModelConfig) bool {
	return rl.GetLimiter(config).Allow()
}

// Reset resets the rate limiter for a model
func (rl *RateLimiter) Reset(modelID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, modelID)
}
