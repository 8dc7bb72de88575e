package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCounter_EmptyText(t *testing.T) {
	assert.Equal(t, 0, EstimateCounter{}.Count(""))
}

func TestEstimateCounter_ShortTextIsAtLeastOne(t *testing.T) {
	assert.Equal(t, 1, EstimateCounter{}.Count("hi"))
}

func TestEstimateCounter_ScalesWithLength(t *testing.T) {
	c := EstimateCounter{}
	short := c.Count(strings.Repeat("a", 470))
	long := c.Count(strings.Repeat("a", 4700))

	assert.Equal(t, 100, short)
	assert.Equal(t, 1000, long)
}

func TestEstimateCounter_Deterministic(t *testing.T) {
	c := EstimateCounter{}
	text := "Lambda scales automatically by running more instances of your function."
	assert.Equal(t, c.Count(text), c.Count(text))
}

func TestNewCounter_ReturnsUsableCounter(t *testing.T) {
	// Either backend must produce a positive, deterministic count.
	c, _ := NewCounter()
	text := "Amazon S3 stores objects in buckets."

	n := c.Count(text)
	assert.Greater(t, n, 0)
	assert.Equal(t, n, c.Count(text))
	assert.Equal(t, 0, c.Count(""))
}
