package store

import (
	"context"
	"testing"
	"time"

	"github.com/sceneit/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, repo *MemoryUserRepository, username, email string, reviews ...types.Review) types.User {
	t.Helper()
	user, err := repo.Create(context.Background(), types.User{
		Name:     "Test " + username,
		Username: username,
		Email:    email,
		Reviews:  reviews,
	})
	require.NoError(t, err)
	return user
}

func TestMemoryUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user := seedUser(t, repo, "user_aaaaaaaa", "Ann@Example.com")
	assert.False(t, user.ID.IsZero())
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, int64(1), user.Version)
	assert.NotNil(t, user.Reviews)

	t.Run("Duplicate username", func(t *testing.T) {
		_, err := repo.Create(ctx, types.User{Username: "user_aaaaaaaa", Email: "other@example.com"})
		assert.ErrorIs(t, err, ErrDuplicateUsername)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		_, err := repo.Create(ctx, types.User{Username: "user_bbbbbbbb", Email: "ANN@example.com"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})
}

func TestMemoryUserRepository_Save(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	user := seedUser(t, repo, "user_aaaaaaaa", "a@example.com")

	first := user
	second := user

	first.LikedMovies = append(first.LikedMovies, types.LikedMovie{MovieID: 1})
	saved, err := repo.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	second.LikedMovies = append(second.LikedMovies, types.LikedMovie{MovieID: 2})
	_, err = repo.Save(ctx, second)
	assert.ErrorIs(t, err, ErrVersionConflict)

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.LikedMovie{{MovieID: 1}}, stored.LikedMovies)
}

func TestMemoryUserRepository_Deactivate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	user := seedUser(t, repo, "user_aaaaaaaa", "a@example.com",
		types.Review{ReviewID: "r1", MovieID: 42, LikeCount: 3})

	require.NoError(t, repo.Deactivate(ctx, user.ID))

	_, err := repo.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindReview(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	reviews, err := repo.ListReviewsForMovie(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	assert.ErrorIs(t, repo.Deactivate(ctx, user.ID), ErrNotFound)
}

func TestMemoryUserRepository_ListReviewsForMovie(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedUser(t, repo, "user_aaaaaaaa", "a@example.com",
		types.Review{ReviewID: "rC", MovieID: 42, CreatedAt: at},
		types.Review{ReviewID: "rOld", MovieID: 42, CreatedAt: at.Add(-time.Hour)})
	seedUser(t, repo, "user_bbbbbbbb", "b@example.com",
		types.Review{ReviewID: "rA", MovieID: 42, CreatedAt: at},
		types.Review{ReviewID: "rNew", MovieID: 42, CreatedAt: at.Add(time.Hour)},
		types.Review{ReviewID: "rOther", MovieID: 7, CreatedAt: at})
	seedUser(t, repo, "user_cccccccc", "c@example.com",
		types.Review{ReviewID: "rB", MovieID: 42, CreatedAt: at})

	// Map iteration order varies, so repeat to catch an unstable tie-break.
	for i := 0; i < 10; i++ {
		reviews, err := repo.ListReviewsForMovie(ctx, 42)
		require.NoError(t, err)
		ids := make([]string, 0, len(reviews))
		for _, review := range reviews {
			ids = append(ids, review.ReviewID)
		}
		assert.Equal(t, []string{"rNew", "rA", "rB", "rC", "rOld"}, ids)
	}
}

func TestMemoryUserRepository_AdjustReviewLikes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	user := seedUser(t, repo, "user_aaaaaaaa", "a@example.com",
		types.Review{ReviewID: "r1", MovieID: 42})

	count, err := repo.AdjustReviewLikes(ctx, "r1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.AdjustReviewLikes(ctx, "r1", -1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	t.Run("Decrement at zero is clamped", func(t *testing.T) {
		count, err := repo.AdjustReviewLikes(ctx, "r1", -1)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("Counter updates bump the version", func(t *testing.T) {
		stored, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stored.Version)
	})

	t.Run("Unknown review", func(t *testing.T) {
		_, err := repo.AdjustReviewLikes(ctx, "missing", 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryUserRepository_RedeemResetToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	user := seedUser(t, repo, "user_aaaaaaaa", "a@example.com")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, repo.SetResetToken(ctx, user.ID, "hash", now.Add(5*time.Minute)))

	t.Run("Expired", func(t *testing.T) {
		_, err := repo.RedeemResetToken(ctx, "hash", now.Add(6*time.Minute), "new")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	redeemed, err := repo.RedeemResetToken(ctx, "hash", now, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", redeemed.PasswordHash)
	assert.Empty(t, redeemed.ResetPasswordToken)
	require.NotNil(t, redeemed.PasswordChangedAt)
	assert.Equal(t, now, *redeemed.PasswordChangedAt)

	_, err = repo.RedeemResetToken(ctx, "hash", now, "again")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRankReviewers(t *testing.T) {
	repo := NewMemoryUserRepository()
	x := seedUser(t, repo, "user_xxxxxxxx", "x@example.com",
		types.Review{ReviewID: "x1", LikeCount: 7},
		types.Review{ReviewID: "x2", LikeCount: 3})
	seedUser(t, repo, "user_yyyyyyyy", "y@example.com",
		types.Review{ReviewID: "y1", LikeCount: 3})
	seedUser(t, repo, "user_zzzzzzzz", "z@example.com",
		types.Review{ReviewID: "z1", LikeCount: 0})
	seedUser(t, repo, "user_wwwwwwww", "w@example.com")

	board, err := repo.TopReviewers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "user_xxxxxxxx", board[0].Username)
	assert.Equal(t, 10, board[0].TotalLikes)
	assert.Equal(t, "x1", board[0].BestLikedReview.ReviewID)
	assert.Equal(t, "user_yyyyyyyy", board[1].Username)

	board, err = repo.TopReviewers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, x.ID, board[0].ID)
}
