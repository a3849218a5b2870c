// Package tokencount estimates prompt sizes for the Completion Service.
//
// Gemini does not ship an offline tokenizer, so cl100k_base from tiktoken-go
// is used as a close approximation for guarding oversized transcripts.
package tokencount

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Counter provides thread-safe token counting.
type Counter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	err      error
}

// NewCounter creates a counter for the default encoding.
func NewCounter() *Counter { return &Counter{encoding: defaultEncoding} }

// DefaultCounter is a shared counter instance.
var DefaultCounter = NewCounter()

func (c *Counter) load() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(c.encoding)
		if c.err != nil {
			slog.Warn("token encoding unavailable, using character estimate",
				slog.String("encoding", c.encoding),
				slog.Any("error", c.err))
		}
	})
	return c.enc, c.err
}

// Count returns the number of tokens in text. If the encoding cannot be
// loaded it falls back to roughly four characters per token.
func (c *Counter) Count(text string) int {
	enc, err := c.load()
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// CountChat counts a system and user prompt pair including per-message overhead.
func (c *Counter) CountChat(systemPrompt, userPrompt string) int {
	const perMessage = 4
	return c.Count(systemPrompt) + c.Count(userPrompt) + 2*perMessage + 3
}
