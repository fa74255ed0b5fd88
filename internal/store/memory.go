package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sceneit/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUserRepository is an in-process UserRepository with the same
// versioning, unique index and soft delete behavior as the Mongo one.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]types.User
	now   func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[primitive.ObjectID]types.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id primitive.ObjectID) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok || !user.Active {
		return types.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	email = strings.ToLower(email)
	return r.find(func(u types.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) find(match func(types.User) bool) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Active && match(user) {
			return cloneUser(user), nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	user.ID = primitive.NewObjectID()
	user.Email = strings.ToLower(user.Email)
	user.Active = true
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now
	normalizeCollections(&user)

	if err := r.checkUnique(user); err != nil {
		return types.User{}, err
	}
	r.users[user.ID] = cloneUser(user)
	return user, nil
}

func (r *MemoryUserRepository) Save(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[user.ID]
	if !ok || !current.Active {
		return types.User{}, ErrNotFound
	}
	if current.Version != user.Version {
		return types.User{}, ErrVersionConflict
	}

	user.Version++
	user.UpdatedAt = r.now()
	normalizeCollections(&user)
	if err := r.checkUnique(user); err != nil {
		return types.User{}, err
	}
	r.users[user.ID] = cloneUser(user)
	return user, nil
}

func (r *MemoryUserRepository) UpdateProfile(_ context.Context, id primitive.ObjectID, update types.ProfileUpdate) (types.User, error) {
	return r.update(id, func(user *types.User) error {
		if update.Name != nil {
			user.Name = *update.Name
		}
		if update.Email != nil {
			user.Email = strings.ToLower(*update.Email)
		}
		if update.Gender != nil {
			user.Gender = *update.Gender
		}
		if update.Avatar != nil {
			user.Avatar = *update.Avatar
		}
		if update.Age != nil {
			user.Age = *update.Age
		}
		if update.Country != nil {
			user.Country = *update.Country
		}
		if update.Profession != nil {
			user.Profession = *update.Profession
		}
		return r.checkUnique(*user)
	})
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) (types.User, error) {
	return r.update(id, func(user *types.User) error {
		user.PasswordHash = passwordHash
		user.PasswordChangedAt = &changedAt
		return nil
	})
}

func (r *MemoryUserRepository) Deactivate(_ context.Context, id primitive.ObjectID) error {
	_, err := r.update(id, func(user *types.User) error {
		user.Active = false
		return nil
	})
	return err
}

func (r *MemoryUserRepository) SetResetToken(_ context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	_, err := r.update(id, func(user *types.User) error {
		user.ResetPasswordToken = tokenHash
		user.ResetPasswordTokenExpires = &expires
		return nil
	})
	return err
}

func (r *MemoryUserRepository) ClearResetToken(_ context.Context, id primitive.ObjectID) error {
	_, err := r.update(id, func(user *types.User) error {
		user.ResetPasswordToken = ""
		user.ResetPasswordTokenExpires = nil
		return nil
	})
	return err
}

func (r *MemoryUserRepository) RedeemResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, user := range r.users {
		if !user.Active || user.ResetPasswordToken == "" || user.ResetPasswordToken != tokenHash {
			continue
		}
		if user.ResetPasswordTokenExpires == nil || !user.ResetPasswordTokenExpires.After(now) {
			continue
		}
		user = cloneUser(user)
		user.PasswordHash = passwordHash
		user.PasswordChangedAt = &now
		user.ResetPasswordToken = ""
		user.ResetPasswordTokenExpires = nil
		user.Version++
		user.UpdatedAt = now
		r.users[id] = user
		return cloneUser(user), nil
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) ReviewIDExists(_ context.Context, reviewID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.ReviewIndex(reviewID) >= 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryUserRepository) FindReview(_ context.Context, reviewID string) (types.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if !user.Active {
			continue
		}
		if i := user.ReviewIndex(reviewID); i >= 0 {
			return user.Reviews[i], nil
		}
	}
	return types.Review{}, ErrNotFound
}

func (r *MemoryUserRepository) AdjustReviewLikes(_ context.Context, reviewID string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, user := range r.users {
		if !user.Active {
			continue
		}
		i := user.ReviewIndex(reviewID)
		if i < 0 {
			continue
		}
		if delta < 0 && user.Reviews[i].LikeCount <= 0 {
			return user.Reviews[i].LikeCount, nil
		}
		user = cloneUser(user)
		user.Reviews[i].LikeCount += delta
		user.Version++
		r.users[id] = user
		return user.Reviews[i].LikeCount, nil
	}
	return 0, ErrNotFound
}

func (r *MemoryUserRepository) ListReviewsForMovie(_ context.Context, movieID int) ([]types.MovieReview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reviews := []types.MovieReview{}
	for _, user := range r.users {
		if !user.Active {
			continue
		}
		for _, review := range user.Reviews {
			if review.MovieID != movieID {
				continue
			}
			reviews = append(reviews, types.MovieReview{
				MovieID:    review.MovieID,
				ReviewID:   review.ReviewID,
				Review:     review.Review,
				Username:   review.Username,
				LikeCount:  review.LikeCount,
				CreatedAt:  review.CreatedAt,
				Name:       user.Name,
				Avatar:     user.Avatar,
				Country:    user.Country,
				Profession: user.Profession,
			})
		}
	}
	// Newest first; reviews from the same instant fall back to review id order.
	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
		}
		return reviews[i].ReviewID < reviews[j].ReviewID
	})
	return reviews, nil
}

func (r *MemoryUserRepository) TopReviewers(_ context.Context, limit int) ([]types.ReviewerSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		if user.Active {
			users = append(users, user)
		}
	}
	return RankReviewers(users, limit), nil
}

// RankReviewers computes the top reviewers board over users in memory.
// Users are ordered by total likes, ties broken by id.
func RankReviewers(users []types.User, limit int) []types.ReviewerSummary {
	board := []types.ReviewerSummary{}
	for _, user := range users {
		if len(user.Reviews) == 0 {
			continue
		}
		total := 0
		best := user.Reviews[0]
		for _, review := range user.Reviews {
			total += review.LikeCount
			if review.LikeCount > best.LikeCount {
				best = review
			}
		}
		if total < 1 {
			continue
		}
		board = append(board, types.ReviewerSummary{
			ID:              user.ID,
			Name:            user.Name,
			Username:        user.Username,
			Avatar:          user.Avatar,
			Country:         user.Country,
			Profession:      user.Profession,
			TotalLikes:      total,
			BestLikedReview: best,
		})
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].TotalLikes != board[j].TotalLikes {
			return board[i].TotalLikes > board[j].TotalLikes
		}
		return board[i].ID.Hex() < board[j].ID.Hex()
	})
	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}
	return board
}

// update applies fn to an active user under the write lock and bumps its version.
func (r *MemoryUserRepository) update(id primitive.ObjectID, fn func(*types.User) error) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[id]
	if !ok || !current.Active {
		return types.User{}, ErrNotFound
	}
	user := cloneUser(current)
	if err := fn(&user); err != nil {
		return types.User{}, err
	}
	user.Version++
	user.UpdatedAt = r.now()
	r.users[id] = user
	return cloneUser(user), nil
}

// checkUnique enforces the username, email and review id indexes. Caller holds the lock.
func (r *MemoryUserRepository) checkUnique(user types.User) error {
	for id, other := range r.users {
		if id == user.ID {
			continue
		}
		if other.Username == user.Username {
			return ErrDuplicateUsername
		}
		if other.Email == user.Email {
			return ErrDuplicateEmail
		}
		for _, review := range user.Reviews {
			if other.ReviewIndex(review.ReviewID) >= 0 {
				return ErrDuplicateReviewID
			}
		}
	}
	return nil
}

func cloneUser(user types.User) types.User {
	user.Reviews = append(make([]types.Review, 0, len(user.Reviews)), user.Reviews...)
	user.LikedMovies = append(make([]types.LikedMovie, 0, len(user.LikedMovies)), user.LikedMovies...)
	user.LikedReviews = append(make([]types.LikedReviewRef, 0, len(user.LikedReviews)), user.LikedReviews...)
	if user.PasswordChangedAt != nil {
		t := *user.PasswordChangedAt
		user.PasswordChangedAt = &t
	}
	if user.ResetPasswordTokenExpires != nil {
		t := *user.ResetPasswordTokenExpires
		user.ResetPasswordTokenExpires = &t
	}
	return user
}
