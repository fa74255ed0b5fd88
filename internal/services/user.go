package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/store"
	"github.com/sceneit/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const notProvided = "Not Provided"

var errUserNotFound = apperr.NotFound("User not found")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Save(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update types.ProfileUpdate) (types.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) (types.User, error)
	Deactivate(ctx context.Context, id primitive.ObjectID) error
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID) error
	RedeemResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (types.User, error)
	ReviewIDExists(ctx context.Context, reviewID string) (bool, error)
	FindReview(ctx context.Context, reviewID string) (types.Review, error)
	AdjustReviewLikes(ctx context.Context, reviewID string, delta int) (int, error)
	ListReviewsForMovie(ctx context.Context, movieID int) ([]types.MovieReview, error)
	TopReviewers(ctx context.Context, limit int) ([]types.ReviewerSummary, error)
}

// UserService encapsulates profile use-cases of signed in users.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	return user, userLookupError(err)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	return user, userLookupError(err)
}

func (s *UserService) PublicProfile(ctx context.Context, username string) (types.PublicProfile, error) {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return types.PublicProfile{}, err
	}
	return user.Public(), nil
}

// UpdateProfile changes the editable profile fields after validating them.
func (s *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, update types.ProfileUpdate) (types.User, error) {
	trimFields(&update)
	if update.Empty() {
		return s.GetByID(ctx, id)
	}
	if update.Name != nil && *update.Name == "" {
		return types.User{}, apperr.Validation("Please Enter your name")
	}
	if update.Email != nil && *update.Email == "" {
		return types.User{}, apperr.Validation("Please Enter your Email")
	}
	if err := validateStruct(update); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.UpdateProfile(ctx, id, update)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, apperr.Conflict("This email is already in use")
		}
		return types.User{}, userLookupError(err)
	}
	return user, nil
}

func trimFields(update *types.ProfileUpdate) {
	for _, field := range []*string{update.Name, update.Email, update.Gender, update.Avatar, update.Country, update.Profession} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
}

// Deactivate soft deletes the account; it disappears from every read.
func (s *UserService) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	return userLookupError(s.repo.Deactivate(ctx, id))
}

// ToggleLikedMovie removes movie from the liked list if present and adds it
// otherwise. It reports whether the movie is liked afterwards.
func (s *UserService) ToggleLikedMovie(ctx context.Context, id primitive.ObjectID, movie types.LikedMovie) (types.User, bool, error) {
	if movie.MovieID <= 0 {
		return types.User{}, false, apperr.Validation("Invalid movie id")
	}
	if strings.TrimSpace(movie.MovieName) == "" {
		movie.MovieName = notProvided
	}
	if strings.TrimSpace(movie.MoviePoster) == "" {
		movie.MoviePoster = notProvided
	}

	var liked bool
	user, err := mutateUser(ctx, s.repo, id, func(user *types.User) error {
		for i, existing := range user.LikedMovies {
			if existing.MovieID == movie.MovieID {
				user.LikedMovies = append(user.LikedMovies[:i], user.LikedMovies[i+1:]...)
				liked = false
				return nil
			}
		}
		user.LikedMovies = append(user.LikedMovies, movie)
		liked = true
		return nil
	})
	if err != nil {
		return types.User{}, false, err
	}
	return user, liked, nil
}

func userLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errUserNotFound
	}
	return err
}
