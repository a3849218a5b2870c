package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

const (
	defaultUserPageSize = 10
	maxUserPageSize     = 100
	userSearchLimit     = 10
)

// UserDirectoryService serves the admin user listings.
type UserDirectoryService struct {
	Users domain.UserRepository
}

// NewUserDirectoryService constructs a UserDirectoryService.
func NewUserDirectoryService(users domain.UserRepository) UserDirectoryService {
	return UserDirectoryService{Users: users}
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page             int     `json:"page"`
	Limit            int     `json:"limit"`
	TotalPages       int     `json:"totalPages"`
	TotalCount       int     `json:"totalCount"`
	HasMore          bool    `json:"hasMore"`
	NextPage         *int    `json:"nextPage"`
	PrevPage         *int    `json:"prevPage"`
	NextStartAfterID *string `json:"nextStartAfterId"`
}

// UserList is one page of users.
type UserList struct {
	Data       []domain.User `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// List pages through users, optionally filtered by email prefix.
func (s UserDirectoryService) List(ctx domain.Context, q domain.UserQuery) (UserList, error) {
	if q.Limit <= 0 {
		q.Limit = defaultUserPageSize
	}
	if q.Limit > maxUserPageSize {
		q.Limit = maxUserPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	q.EmailPrefix = normalizeEmail(q.EmailPrefix)
	page, err := s.Users.List(ctx, q)
	if err != nil {
		return UserList{}, fmt.Errorf("op=users.list: %w", err)
	}
	return UserList{Data: page.Users, Pagination: paginate(q, page)}, nil
}

func paginate(q domain.UserQuery, page domain.UserPage) Pagination {
	totalPages := (page.Total + q.Limit - 1) / q.Limit
	p := Pagination{
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages,
		TotalCount: page.Total,
		HasMore:    q.Page < totalPages,
	}
	if p.HasMore {
		p.NextPage = ptr(q.Page + 1)
	}
	if q.Page > 1 {
		p.PrevPage = ptr(q.Page - 1)
	}
	if n := len(page.Users); n > 0 {
		p.NextStartAfterID = ptr(page.Users[n-1].ID)
	}
	return p
}

// Search returns at most ten users whose email starts with prefix.
func (s UserDirectoryService) Search(ctx domain.Context, prefix string) ([]domain.User, error) {
	prefix = normalizeEmail(prefix)
	if strings.TrimSpace(prefix) == "" {
		return nil, fmt.Errorf("%w: email query is required", domain.ErrInvalidArgument)
	}
	users, err := s.Users.SearchByEmailPrefix(ctx, prefix, userSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("op=users.search: %w", err)
	}
	return users, nil
}
