package textx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello\nworld\t!", SanitizeText("he\x00llo\nwo\x7frld\t!"))
	assert.Equal(t, "", SanitizeText(" \x01\x02 "))
}

func TestCleanList(t *testing.T) {
	assert.Equal(t, []string{"go", "redis"}, CleanList([]string{" go ", "", "\x00", "redis"}))
	assert.Empty(t, CleanList(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...(truncated)", Truncate("abcdef", 3))
	// "é" is two bytes; cutting inside it backs up to the rune start
	assert.Equal(t, "a...(truncated)", Truncate("aéb", 2))
}
