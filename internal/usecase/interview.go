package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/pkg/textx"
)

const latestInterviewsLimit = 20

// InterviewService manages interview definitions.
type InterviewService struct {
	Interviews domain.InterviewRepository
	Now        func() time.Time
	NewID      func() string
}

// NewInterviewService constructs an InterviewService.
func NewInterviewService(repo domain.InterviewRepository) InterviewService {
	return InterviewService{Interviews: repo, Now: nowUTC, NewID: NewUUID}
}

// CreateInterviewInput is a new interview definition.
type CreateInterviewInput struct {
	Role         string
	Type         string
	Level        string
	Questions    []string
	TechStack    []string
	Rubric       string
	AdminCreated bool
	Finalized    bool
}

// ParseInterviewType accepts the canonical names in any casing; anything containing "mix" is Mixed.
func ParseInterviewType(s string) (domain.InterviewType, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(n, "mix"):
		return domain.TypeMixed, true
	case n == "technical":
		return domain.TypeTechnical, true
	case n == "non-technical", n == "nontechnical", n == "non technical", n == "behavioral", n == "behavioural":
		return domain.TypeNonTechnical, true
	}
	return "", false
}

// ParseLevel accepts the canonical levels in any casing.
func ParseLevel(s string) (domain.Level, bool) {
	for _, l := range []domain.Level{domain.LevelEntry, domain.LevelMid, domain.LevelSenior} {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, true
		}
	}
	return "", false
}

// Create validates and stores an interview. Admin-created interviews require the admin role.
func (s InterviewService) Create(ctx domain.Context, creator domain.User, in CreateInterviewInput) (domain.Interview, error) {
	if in.AdminCreated && !creator.IsAdmin() {
		return domain.Interview{}, fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	role := textx.SanitizeText(in.Role)
	if role == "" {
		return domain.Interview{}, fmt.Errorf("%w: role is required", domain.ErrInvalidArgument)
	}
	typ, ok := ParseInterviewType(in.Type)
	if !ok {
		return domain.Interview{}, fmt.Errorf("%w: type must be Technical, Non-Technical or Mixed", domain.ErrInvalidArgument)
	}
	level, ok := ParseLevel(in.Level)
	if !ok {
		return domain.Interview{}, fmt.Errorf("%w: level must be Entry, Mid or Senior", domain.ErrInvalidArgument)
	}
	questions := textx.CleanList(in.Questions)
	if len(questions) == 0 {
		return domain.Interview{}, fmt.Errorf("%w: at least one question is required", domain.ErrInvalidArgument)
	}
	iv := domain.Interview{
		ID:             s.NewID(),
		Role:           role,
		Level:          level,
		Type:           typ,
		Questions:      questions,
		TechStack:      textx.CleanList(in.TechStack),
		Rubric:         textx.SanitizeText(in.Rubric),
		CreatedBy:      creator.ID,
		IsAdminCreated: in.AdminCreated,
		Finalized:      in.AdminCreated || in.Finalized,
		CreatedAt:      s.Now(),
	}
	id, err := s.Interviews.Create(ctx, iv)
	if err != nil {
		return domain.Interview{}, fmt.Errorf("op=interview.create: %w", err)
	}
	iv.ID = id
	return iv, nil
}

// Get returns one interview.
func (s InterviewService) Get(ctx domain.Context, id string) (domain.Interview, error) {
	iv, err := s.Interviews.Get(ctx, id)
	if err != nil {
		return domain.Interview{}, fmt.Errorf("op=interview.get: %w", err)
	}
	return iv, nil
}

// Finalize marks a self-service interview ready; only its creator or an admin may do so.
func (s InterviewService) Finalize(ctx domain.Context, user domain.User, id string) error {
	iv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if iv.CreatedBy != user.ID && !user.IsAdmin() {
		return fmt.Errorf("%w: not the owner of this interview", domain.ErrForbidden)
	}
	if iv.Finalized {
		return nil
	}
	if err := s.Interviews.SetFinalized(ctx, id, true); err != nil {
		return fmt.Errorf("op=interview.finalize: %w", err)
	}
	return nil
}

// ListAdminCreated returns admin-created interviews newest first.
func (s InterviewService) ListAdminCreated(ctx domain.Context) ([]domain.Interview, error) {
	ivs, err := s.Interviews.ListAdminCreated(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=interview.list_admin: %w", err)
	}
	sortInterviewsNewestFirst(ivs)
	return ivs, nil
}

// ListFiltered applies the composable filter over admin-created interviews.
func (s InterviewService) ListFiltered(ctx domain.Context, f domain.InterviewFilter) ([]domain.Interview, error) {
	ivs, err := s.ListAdminCreated(ctx)
	if err != nil {
		return nil, err
	}
	return FilterInterviews(ivs, f)
}

// ListByCreator returns the user's own interviews newest first.
func (s InterviewService) ListByCreator(ctx domain.Context, userID string) ([]domain.Interview, error) {
	ivs, err := s.Interviews.ListByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("op=interview.list_mine: %w", err)
	}
	sortInterviewsNewestFirst(ivs)
	return ivs, nil
}

// Latest returns finalized interviews created by other users, newest first.
func (s InterviewService) Latest(ctx domain.Context, userID string) ([]domain.Interview, error) {
	ivs, err := s.Interviews.ListFinalized(ctx, userID, latestInterviewsLimit)
	if err != nil {
		return nil, fmt.Errorf("op=interview.latest: %w", err)
	}
	sortInterviewsNewestFirst(ivs)
	if len(ivs) > latestInterviewsLimit {
		ivs = ivs[:latestInterviewsLimit]
	}
	return ivs, nil
}

func sortInterviewsNewestFirst(ivs []domain.Interview) {
	sort.SliceStable(ivs, func(i, j int) bool { return ivs[i].CreatedAt.After(ivs[j].CreatedAt) })
}

func normalizeTypeFilter(s string) string {
	n := strings.ToLower(strings.TrimSpace(s))
	if strings.Contains(n, "mix") {
		return "mixed"
	}
	return n
}

func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", domain.ErrInvalidArgument, s)
}

// FilterInterviews keeps interviews matching every active filter field. An
// interview lacking a filtered field is excluded while that filter is active.
func FilterInterviews(ivs []domain.Interview, f domain.InterviewFilter) ([]domain.Interview, error) {
	var from, to time.Time
	if f.DateFrom != "" {
		d, err := parseDay(f.DateFrom)
		if err != nil {
			return nil, err
		}
		from = d
	}
	if f.DateTo != "" {
		d, err := parseDay(f.DateTo)
		if err != nil {
			return nil, err
		}
		to = d.Add(24*time.Hour - time.Millisecond)
	}
	role := strings.ToLower(strings.TrimSpace(f.Role))
	typ := normalizeTypeFilter(f.Type)

	out := make([]domain.Interview, 0, len(ivs))
	for _, iv := range ivs {
		if role != "" && (iv.Role == "" || !strings.Contains(strings.ToLower(iv.Role), role)) {
			continue
		}
		if typ != "" && (iv.Type == "" || normalizeTypeFilter(string(iv.Type)) != typ) {
			continue
		}
		if (!from.IsZero() || !to.IsZero()) && iv.CreatedAt.IsZero() {
			continue
		}
		if !from.IsZero() && iv.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && iv.CreatedAt.After(to) {
			continue
		}
		out = append(out, iv)
	}
	return out, nil
}
