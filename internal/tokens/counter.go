// Package tokens counts tokens in advisory prompts and transcripts.
package tokens

import (
	"math"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = tokenizer.Cl100kBase

// Counter counts tokens with a tiktoken encoding. When the encoding cannot be
// loaded it falls back to a character-based estimate.
type Counter struct {
	encoding tokenizer.Encoding

	once  sync.Once
	codec tokenizer.Codec
	err   error

	// CharsPerToken is the estimate used without a codec (default: 4).
	CharsPerToken float64
}

// NewCounter creates a counter for encoding. An empty encoding selects DefaultEncoding.
func NewCounter(encoding tokenizer.Encoding) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Counter{
		encoding:      encoding,
		CharsPerToken: 4.0,
	}
}

func (c *Counter) getCodec() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(c.encoding)
	})
	return c.codec, c.err
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	codec, err := c.getCodec()
	if err != nil {
		return c.Estimate(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return c.Estimate(text)
	}
	return len(ids)
}

// Estimate approximates the token count from the text length.
func (c *Counter) Estimate(text string) int {
	per := c.CharsPerToken
	if per <= 0 {
		per = 4.0
	}
	return int(math.Ceil(float64(len(text)) / per))
}

// Encoding returns the configured encoding name.
func (c *Counter) Encoding() tokenizer.Encoding {
	return c.encoding
}
