// Package tokens counts prompt and completion tokens for generator accounting.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used for every hosted model family.
const DefaultEncoding = "cl100k_base"

// Encoder represents a token encoder for a specific model
type Encoder interface {
	Count(text string) int
}

// TiktokenEncoder implements Encoder using tiktoken-go
type TiktokenEncoder struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEncoder creates a new tiktoken encoder
func NewTiktokenEncoder(encodingName string) (*TiktokenEncoder, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encodingName, err)
	}
	return &TiktokenEncoder{encoding: encoding}, nil
}

// Encode converts text to tokens
func (e *TiktokenEncoder) Encode(text string) []int {
	return e.encoding.Encode(text, nil, nil)
}

// Count returns the number of tokens in text
func (e *TiktokenEncoder) Count(text string) int {
	return len(e.encoding.Encode(text, nil, nil))
}

// ApproxEncoder estimates four characters per token.
type ApproxEncoder struct{}

// Count returns the estimated number of tokens in text, at least one for non-empty text.
func (ApproxEncoder) Count(text string) int {
	if text == "" {
		return 0
	}
	count := len(text) / 4
	if count < 1 {
		count = 1
	}
	return count
}

// Counter maps model names to encoders. Models that tiktoken does not cover,
// or any model when the encoding cannot be loaded, fall back to ApproxEncoder.
type Counter struct {
	once     sync.Once
	tiktoken Encoder
	loadErr  error
}

// NewCounter creates a counter. The tiktoken encoding is loaded lazily.
func NewCounter() *Counter {
	return &Counter{}
}

// For returns the encoder used for a model.
func (c *Counter) For(model string) Encoder {
	if !hosted(model) {
		return ApproxEncoder{}
	}
	c.once.Do(func() {
		enc, err := NewTiktokenEncoder(DefaultEncoding)
		if err != nil {
			c.loadErr = err
			return
		}
		c.tiktoken = enc
	})
	if c.tiktoken == nil {
		return ApproxEncoder{}
	}
	return c.tiktoken
}

// Count counts tokens of text for a model.
func (c *Counter) Count(model, text string) int {
	return c.For(model).Count(text)
}

// Err reports why the tiktoken encoding could not be loaded, if it could not.
func (c *Counter) Err() error {
	return c.loadErr
}

// hosted reports whether a model belongs to a family tiktoken approximates well.
func hosted(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"gpt-", "o1", "o3", "text-embedding", "claude"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}
