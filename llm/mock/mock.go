// Package mock provides a scripted generator for tests and offline runs.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/snow-ghost/patrefine/core"
)

// ErrNoResponse is returned when a generator has nothing scripted.
var ErrNoResponse = errors.New("mock generator has no scripted response")

// Script computes the response to the n-th call (zero-based).
type Script func(n int, prompt string) (string, error)

// Generator implements core.Generator from a script and records every prompt.
type Generator struct {
	script Script

	mu      sync.Mutex
	prompts []string
}

var _ core.Generator = (*Generator)(nil)

// New returns a generator that replays responses in order and repeats the last one.
func New(responses ...string) *Generator {
	return Func(func(n int, _ string) (string, error) {
		if len(responses) == 0 {
			return "", ErrNoResponse
		}
		if n >= len(responses) {
			n = len(responses) - 1
		}
		return responses[n], nil
	})
}

// Func returns a generator driven by an arbitrary script.
func Func(script Script) *Generator {
	return &Generator{script: script}
}

// Load reads a JSON array of responses to replay.
func Load(path string) (*Generator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock responses: %w", err)
	}
	var responses []string
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("failed to decode mock responses: %w", err)
	}
	return New(responses...), nil
}

// Generate records the prompt and returns the scripted response.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	n := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.script(n, prompt)
}

// Prompts returns a copy of the prompts seen so far.
func (g *Generator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// Calls returns the number of Generate calls.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// Fenced wraps code in a csp fenced block with some chatter around it.
func Fenced(code string) string {
	return "Here is the model:\n```csp\n" + code + "\n```\nLet me know if it needs changes."
}
