package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproxEncoder_Count(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{name: "empty string", text: "", expected: 0},
		{name: "short text", text: "Hello", expected: 1},
		{name: "medium text", text: "This is a test message", expected: 5},
		{name: "process", text: "Phil(i) = get.i -> put.i -> Phil(i);", expected: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ApproxEncoder{}.Count(tt.text))
		})
	}
}

func TestCounter_LocalModelsUseApproximation(t *testing.T) {
	c := NewCounter()
	assert.IsType(t, ApproxEncoder{}, c.For("llama3.2"))
	assert.Equal(t, 5, c.Count("qwen2.5-coder", "This is a test message"))
}

func TestCounter_HostedModels(t *testing.T) {
	c := NewCounter()
	n := c.Count("gpt-4o", "Hello, world!")
	if c.Err() != nil {
		t.Skipf("tiktoken encoding unavailable: %v", c.Err())
	}
	assert.IsType(t, &TiktokenEncoder{}, c.For("claude-3-7-sonnet-20250219"))
	assert.Equal(t, 4, n)
}
