package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount_Empty(t *testing.T) {
	assert.Equal(t, 0, NewCounter().Count(""))
}

func TestCount_GrowsWithText(t *testing.T) {
	c := NewCounter()
	short := c.Count("Tell me about yourself.")
	long := c.Count(strings.Repeat("Tell me about yourself. ", 50))
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short*10)
}

func TestCountChat_AddsOverhead(t *testing.T) {
	c := NewCounter()
	assert.Greater(t, c.CountChat("sys", "user"), c.Count("sys")+c.Count("user"))
}

func TestCount_FallbackEstimate(t *testing.T) {
	c := &Counter{encoding: "no-such-encoding"}
	assert.Equal(t, 3, c.Count("abcdefghij"))
}

func TestDefaultCounter(t *testing.T) {
	assert.NotNil(t, DefaultCounter)
	assert.Greater(t, DefaultCounter.Count("hello world"), 0)
}
