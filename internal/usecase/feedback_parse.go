package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

// feedbackOutput is the contracted model payload. Pointers distinguish a
// missing score from a zero score.
type feedbackOutput struct {
	TotalScore          *float64         `json:"totalScore" validate:"required,gte=0,lte=100"`
	CategoryScores      []categoryOutput `json:"categoryScores" validate:"len=5,dive"`
	Strengths           []string         `json:"strengths" validate:"min=1,dive,required"`
	AreasForImprovement []string         `json:"areasForImprovement" validate:"min=1,dive,required"`
	FinalAssessment     string           `json:"finalAssessment" validate:"required"`
}

type categoryOutput struct {
	Name    string   `json:"name" validate:"required"`
	Score   *float64 `json:"score" validate:"required,gte=0,lte=100"`
	Comment string   `json:"comment"`
}

var (
	outputValidatorOnce sync.Once
	outputValidator     *validator.Validate

	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

func getOutputValidator() *validator.Validate {
	outputValidatorOnce.Do(func() { outputValidator = validator.New() })
	return outputValidator
}

// StripCodeFence removes one wrapping markdown fence (```json ... ``` or ``` ... ```).
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && isFenceLabel(s[:nl]) {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isFenceLabel(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// extractFirstObject returns the first balanced {...} block, honoring string literals.
func extractFirstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth, inStr, esc := 0, false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case esc:
			esc = false
		case inStr && c == '\\':
			esc = true
		case c == '"':
			inStr = !inStr
		case inStr:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func decodeStrict(s string, out *feedbackOutput) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	return dec.Decode(out)
}

// DecodeFeedback runs the two-stage parse: strip the fence and decode; if that
// fails, repair (first balanced object, trailing commas) and decode once more.
func DecodeFeedback(raw string) (feedbackOutput, error) {
	var out feedbackOutput
	body := StripCodeFence(raw)
	firstErr := decodeStrict(body, &out)
	if firstErr == nil {
		return out, nil
	}
	obj, ok := extractFirstObject(body)
	if !ok {
		return feedbackOutput{}, fmt.Errorf("%w: invalid json: %v", domain.ErrFeedbackParse, firstErr)
	}
	out = feedbackOutput{}
	if err := decodeStrict(trailingComma.ReplaceAllString(obj, "$1"), &out); err != nil {
		return feedbackOutput{}, fmt.Errorf("%w: invalid json: %v", domain.ErrFeedbackParse, err)
	}
	return out, nil
}

func categoryKey(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// ValidateFeedback enforces the output contract. Nothing is coerced or dropped.
func ValidateFeedback(out feedbackOutput) error {
	if err := getOutputValidator().Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s", domain.ErrSchemaInvalid, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}
	if strings.TrimSpace(out.FinalAssessment) == "" {
		return fmt.Errorf("%w: finalAssessment is blank", domain.ErrSchemaInvalid)
	}
	want := make(map[string]bool, len(FeedbackCategories))
	for _, c := range FeedbackCategories {
		want[categoryKey(c)] = false
	}
	for _, c := range out.CategoryScores {
		k := categoryKey(c.Name)
		seen, ok := want[k]
		if !ok {
			return fmt.Errorf("%w: unexpected category %q", domain.ErrSchemaInvalid, c.Name)
		}
		if seen {
			return fmt.Errorf("%w: duplicate category %q", domain.ErrSchemaInvalid, c.Name)
		}
		want[k] = true
	}
	return nil
}

func (o feedbackOutput) toFeedback() domain.Feedback {
	cats := make([]domain.CategoryScore, 0, len(o.CategoryScores))
	for _, c := range o.CategoryScores {
		cats = append(cats, domain.CategoryScore{Name: c.Name, Score: *c.Score, Comment: c.Comment})
	}
	return domain.Feedback{
		TotalScore:          *o.TotalScore,
		CategoryScores:      cats,
		Strengths:           o.Strengths,
		AreasForImprovement: o.AreasForImprovement,
		FinalAssessment:     strings.TrimSpace(o.FinalAssessment),
	}
}

// ScoreLabel buckets a 0-100 score.
func ScoreLabel(score float64) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}
