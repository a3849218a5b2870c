package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// The five evaluation dimensions every feedback document carries, in prompt order.
const (
	CategoryCommunication   = "Communication Skills"
	CategoryTechnical       = "Technical Knowledge"
	CategoryProblemSolving  = "Problem-Solving"
	CategoryCulturalFit     = "Cultural & Role Fit"
	CategoryConfidenceClear = "Confidence & Clarity"
)

// FeedbackCategories lists the fixed categories.
var FeedbackCategories = []string{
	CategoryCommunication,
	CategoryTechnical,
	CategoryProblemSolving,
	CategoryCulturalFit,
	CategoryConfidenceClear,
}

// EvaluationCategory pairs a fixed category with its grading description.
type EvaluationCategory struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// FeedbackPrompts is the grader prompt catalogue.
type FeedbackPrompts struct {
	System         string               `yaml:"system"`
	Instruction    string               `yaml:"instruction"`
	ScoringHeader  string               `yaml:"scoring_header"`
	Categories     []EvaluationCategory `yaml:"categories"`
	OutputContract string               `yaml:"output_contract"`
}

// Validate checks the catalogue names exactly the fixed categories in order.
func (p FeedbackPrompts) Validate() error {
	if strings.TrimSpace(p.System) == "" || strings.TrimSpace(p.Instruction) == "" {
		return fmt.Errorf("prompts: system and instruction are required")
	}
	if len(p.Categories) != len(FeedbackCategories) {
		return fmt.Errorf("prompts: want %d categories, got %d", len(FeedbackCategories), len(p.Categories))
	}
	for i, c := range p.Categories {
		if c.Name != FeedbackCategories[i] {
			return fmt.Errorf("prompts: category %d is %q, want %q", i, c.Name, FeedbackCategories[i])
		}
	}
	return nil
}

// RenderTranscript flattens turns into "- {role}: {content}" lines, in order.
func RenderTranscript(turns []domain.TranscriptTurn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString("- ")
		sb.WriteString(t.Role)
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// BuildUserPrompt embeds the rendered transcript, the categories and the output contract.
// Nothing else about the interview reaches the model.
func (p FeedbackPrompts) BuildUserPrompt(script string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Instruction))
	sb.WriteString("\nTranscript:\n")
	sb.WriteString(script)
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(p.ScoringHeader))
	sb.WriteString("\n")
	for _, c := range p.Categories {
		sb.WriteString("- **")
		sb.WriteString(c.Name)
		sb.WriteString("**: ")
		sb.WriteString(c.Description)
		sb.WriteString("\n")
	}
	if oc := strings.TrimSpace(p.OutputContract); oc != "" {
		sb.WriteString("\n")
		sb.WriteString(oc)
		sb.WriteString("\n")
	}
	return sb.String()
}
