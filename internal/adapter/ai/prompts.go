// Package ai holds the grader prompt catalogue and prompt sizing helpers shared
// by the Completion Service clients.
package ai

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

//go:embed prompts/*.yaml
var promptFS embed.FS

// LoadFeedbackPrompts parses the embedded grader catalogue.
func LoadFeedbackPrompts() (usecase.FeedbackPrompts, error) {
	data, err := promptFS.ReadFile("prompts/feedback.yaml")
	if err != nil {
		return usecase.FeedbackPrompts{}, fmt.Errorf("op=prompts.load: %w", err)
	}
	return ParseFeedbackPrompts(data)
}

// ParseFeedbackPrompts decodes and validates a catalogue document.
func ParseFeedbackPrompts(data []byte) (usecase.FeedbackPrompts, error) {
	var p usecase.FeedbackPrompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return usecase.FeedbackPrompts{}, fmt.Errorf("op=prompts.parse: %w", err)
	}
	if err := p.Validate(); err != nil {
		return usecase.FeedbackPrompts{}, fmt.Errorf("op=prompts.parse: %w", err)
	}
	return p, nil
}

// MustLoadFeedbackPrompts panics if the embedded catalogue is invalid.
func MustLoadFeedbackPrompts() usecase.FeedbackPrompts {
	p, err := LoadFeedbackPrompts()
	if err != nil {
		panic(err)
	}
	return p
}
