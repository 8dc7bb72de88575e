// Package token provides token counting for chunk sizing.
//
// Chunk budgets are enforced against a reference tokenization scheme
// (cl100k_base) so that chunks stay under the embedding model's hard limit
// with margin. A character-based estimator is used as fallback when the
// encoding cannot be loaded, e.g. in offline environments.
package token

import (
	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the reference tokenization scheme used for all budgets.
const Encoding = "cl100k_base"

// charsPerToken is the fallback estimate for English prose.
// AWS documentation states ~4.7 characters per token.
const charsPerToken = 4.7

// Counter counts tokens in a text span. Implementations must be
// deterministic: the same text always yields the same count.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with the cl100k_base encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter returns a tiktoken-backed counter, falling back to the
// character estimator if the encoding cannot be loaded. The second return
// value reports whether the exact encoding is active.
func NewCounter() (Counter, bool) {
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return EstimateCounter{}, false
	}
	return &TiktokenCounter{enc: enc}, true
}

// Count returns the number of cl100k_base tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateCounter approximates token counts from character length.
type EstimateCounter struct{}

// Count estimates the token count at 4.7 characters per token.
func (EstimateCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	n := int(float64(len(text)) / charsPerToken)
	if n == 0 {
		n = 1
	}
	return n
}
