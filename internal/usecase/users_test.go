package usecase_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/adapter/repo/memory"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-mock-interviewer/internal/usecase"
)

func seedUsers(t *testing.T, n int) *memory.UserRepo {
	t.Helper()
	repo := memory.NewUserRepo()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(context.Background(), domain.User{
			ID: fmt.Sprintf("u%02d", i), Email: fmt.Sprintf("user%02d@x.com", i),
		}))
	}
	return repo
}

func TestUserDirectory_ListPagination(t *testing.T) {
	svc := usecase.NewUserDirectoryService(seedUsers(t, 25))
	ctx := context.Background()

	first, err := svc.List(ctx, domain.UserQuery{})
	require.NoError(t, err)
	assert.Len(t, first.Data, 10)
	p := first.Pagination
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 25, p.TotalCount)
	assert.True(t, p.HasMore)
	require.NotNil(t, p.NextPage)
	assert.Equal(t, 2, *p.NextPage)
	assert.Nil(t, p.PrevPage)
	require.NotNil(t, p.NextStartAfterID)
	assert.Equal(t, "u09", *p.NextStartAfterID)

	last, err := svc.List(ctx, domain.UserQuery{Page: 3})
	require.NoError(t, err)
	assert.Len(t, last.Data, 5)
	assert.False(t, last.Pagination.HasMore)
	assert.Nil(t, last.Pagination.NextPage)
	require.NotNil(t, last.Pagination.PrevPage)
	assert.Equal(t, 2, *last.Pagination.PrevPage)

	cursor, err := svc.List(ctx, domain.UserQuery{StartAfterID: "u09", Limit: 5})
	require.NoError(t, err)
	require.Len(t, cursor.Data, 5)
	assert.Equal(t, "u10", cursor.Data[0].ID)

	capped, err := svc.List(ctx, domain.UserQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, capped.Pagination.Limit)
}

func TestUserDirectory_Search(t *testing.T) {
	svc := usecase.NewUserDirectoryService(seedUsers(t, 25))
	ctx := context.Background()

	out, err := svc.Search(ctx, "USER1")
	require.NoError(t, err)
	assert.Len(t, out, 10)
	assert.Equal(t, "user10@x.com", out[0].Email)

	_, err = svc.Search(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
