package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/models"
	"github.com/upb/jaffa-explorer/repositories"
	"github.com/upb/jaffa-explorer/session"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(zap.NewNop())

	visitor, err := models.NewUser("Dana@Example.com", "dana", "jaffa-port", session.RoleVisitor)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, visitor))
	assert.Equal(t, 1, visitor.ID)

	t.Run("duplicate email is case insensitive", func(t *testing.T) {
		dup, err := models.NewUser("dana@example.com", "dana2", "pw-pw-pw-pw", session.RoleVisitor)
		require.NoError(t, err)

		err = repo.Create(ctx, dup)
		assert.ErrorIs(t, err, repositories.ErrDuplicateEmail)
	})

	t.Run("get by email", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "dana@example.com")
		require.NoError(t, err)
		assert.Equal(t, visitor.ID, got.ID)
	})

	t.Run("returned users are copies", func(t *testing.T) {
		got, err := repo.GetByID(ctx, visitor.ID)
		require.NoError(t, err)
		got.Tokens = 99

		again, err := repo.GetByID(ctx, visitor.ID)
		require.NoError(t, err)
		assert.Zero(t, again.Tokens)
	})

	t.Run("update and count", func(t *testing.T) {
		admin, err := models.NewUser("admin@example.com", "admin", "pw-pw-pw-pw", session.RoleAdmin)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, admin))

		admin.IsVisitor = true
		require.NoError(t, repo.Update(ctx, admin))

		n, err := repo.CountByRole(ctx, session.RoleVisitor)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, visitor.ID, all[0].ID)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 404)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, 404), repositories.ErrNotFound)
		assert.ErrorIs(t, repo.Update(ctx, &models.User{ID: 404}), repositories.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, visitor.ID))
		_, err := repo.GetByEmail(ctx, "dana@example.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestPostRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(zap.NewNop())
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	first := &models.Post{AuthorID: 1, User: "dana", Content: "Flea market", CreatedAt: base}
	second := &models.Post{AuthorID: 2, User: "noa", Content: "Old port", CreatedAt: base.Add(time.Hour)}
	third := &models.Post{AuthorID: 1, User: "dana", Content: "Hummus"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, third))

	t.Run("list newest first", func(t *testing.T) {
		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []int{third.ID, second.ID, first.ID}, []int{all[0].ID, all[1].ID, all[2].ID})
	})

	t.Run("list by author", func(t *testing.T) {
		mine, err := repo.ListByAuthor(ctx, 1)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, third.ID, mine[0].ID)
	})

	t.Run("update keeps likes isolated", func(t *testing.T) {
		p, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		p.ToggleLike(5)
		require.NoError(t, repo.Update(ctx, p))

		p.ToggleLike(6)
		stored, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{5}, stored.LikedBy)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, second.ID))
		_, err := repo.GetByID(ctx, second.ID)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}
