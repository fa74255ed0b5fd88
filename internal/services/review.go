package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/store"
	"github.com/sceneit/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultTopReviewers = 10
	maxTopReviewers     = 100
)

var errReviewNotFound = apperr.NotFound("Review not found")

// CreateReviewInput is a new review of a catalog movie.
type CreateReviewInput struct {
	MovieID   int
	MovieName string
	Review    string
}

// ReviewService manages reviews embedded in their authors' documents and
// the likes other users give them.
type ReviewService struct {
	repo          UserRepository
	codeGenerator func(int) string
	now           func() time.Time
	logger        *slog.Logger
}

func NewReviewService(repo UserRepository, logger *slog.Logger) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{
		repo:          repo,
		codeGenerator: NewShortID,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// CreateReview appends a review to the author's document and returns its id.
func (s *ReviewService) CreateReview(ctx context.Context, userID primitive.ObjectID, input CreateReviewInput) (string, error) {
	if input.MovieID <= 0 {
		return "", apperr.Validation("Invalid movie id")
	}
	text := strings.TrimSpace(input.Review)
	if text == "" {
		return "", apperr.Validation("Review text cannot be empty")
	}
	movieName := strings.TrimSpace(input.MovieName)
	if movieName == "" {
		movieName = notProvided
	}

	// A concurrent insert of the same id is rejected by the unique index; draw again.
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		reviewID, err := s.newReviewID(ctx)
		if err != nil {
			return "", err
		}

		_, err = mutateUser(ctx, s.repo, userID, func(user *types.User) error {
			user.Reviews = append(user.Reviews, types.Review{
				ReviewID:  reviewID,
				MovieID:   input.MovieID,
				MovieName: movieName,
				Review:    text,
				Username:  user.Username,
				CreatedAt: s.now(),
			})
			return nil
		})
		if errors.Is(err, store.ErrDuplicateReviewID) {
			continue
		}
		if err != nil {
			return "", err
		}
		return reviewID, nil
	}
	return "", apperr.Conflict("Could not allocate a review id. Please try again")
}

// newReviewID draws short ids until one is unused by any user, falling back
// to a long id after maxIDAttempts collisions.
func (s *ReviewService) newReviewID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate := s.codeGenerator(shortIDLength)
		exists, err := s.repo.ReviewIDExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	s.logger.Warn("short review ids exhausted, using long id", "attempts", maxIDAttempts)
	return longID(), nil
}

// EditReview replaces the text of one of the user's reviews.
func (s *ReviewService) EditReview(ctx context.Context, userID primitive.ObjectID, reviewID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperr.Validation("Review text cannot be empty")
	}

	_, err := mutateUser(ctx, s.repo, userID, func(user *types.User) error {
		i := user.ReviewIndex(reviewID)
		if i < 0 {
			return errReviewNotFound
		}
		user.Reviews[i].Review = text
		return nil
	})
	return err
}

// DeleteReview removes one of the user's reviews. Deleting a review that is
// already gone fails with NotFound.
func (s *ReviewService) DeleteReview(ctx context.Context, userID primitive.ObjectID, reviewID string) error {
	_, err := mutateUser(ctx, s.repo, userID, func(user *types.User) error {
		i := user.ReviewIndex(reviewID)
		if i < 0 {
			return apperr.NotFound("The review is already deleted or not found")
		}
		user.Reviews = append(user.Reviews[:i], user.Reviews[i+1:]...)
		return nil
	})
	return err
}

// ToggleLike likes reviewID on behalf of the user, or unlikes it if the user
// already liked it. It reports whether the review is liked afterwards.
//
// The liked-review ref is saved with a version check and the counter is
// moved with an atomic increment. If the counter update fails the ref
// change is rolled back.
//
// A review that no longer exists can still be unliked: the stale ref is
// dropped and the call reports not found.
func (s *ReviewService) ToggleLike(ctx context.Context, userID primitive.ObjectID, reviewID string) (bool, error) {
	review, err := s.repo.FindReview(ctx, reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if err := s.dropLikedRef(ctx, userID, reviewID); err != nil {
				return false, err
			}
			return false, errReviewNotFound
		}
		return false, err
	}

	var liked bool
	if _, err := mutateUser(ctx, s.repo, userID, func(user *types.User) error {
		liked = toggleLikedRef(user, review)
		return nil
	}); err != nil {
		return false, err
	}

	delta := -1
	if liked {
		delta = 1
	}
	if _, err := s.repo.AdjustReviewLikes(ctx, reviewID, delta); err != nil {
		s.revertLikedRef(ctx, userID, review, liked)
		if errors.Is(err, store.ErrNotFound) {
			return false, errReviewNotFound
		}
		return false, err
	}
	return liked, nil
}

func toggleLikedRef(user *types.User, review types.Review) bool {
	for i, ref := range user.LikedReviews {
		if ref.ReviewID == review.ReviewID {
			user.LikedReviews = append(user.LikedReviews[:i], user.LikedReviews[i+1:]...)
			return false
		}
	}
	user.LikedReviews = append(user.LikedReviews, types.LikedReviewRef{
		ReviewID:         review.ReviewID,
		MovieID:          review.MovieID,
		MovieName:        review.MovieName,
		Review:           review.Review,
		ReviewerUsername: review.Username,
	})
	return true
}

func (s *ReviewService) revertLikedRef(ctx context.Context, userID primitive.ObjectID, review types.Review, liked bool) {
	_, err := mutateUser(ctx, s.repo, userID, func(user *types.User) error {
		// Only undo if the ref is still in the state this request left it in.
		if hasLikedRef(*user, review.ReviewID) == liked {
			toggleLikedRef(user, review)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to revert liked review",
			"user_id", userID.Hex(), "review_id", review.ReviewID, "error", err)
	}
}

// dropLikedRef removes the user's ref to a deleted review without touching
// any like counter. Users without such a ref are not written.
func (s *ReviewService) dropLikedRef(ctx context.Context, userID primitive.ObjectID, reviewID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errUserNotFound
		}
		return err
	}
	if !hasLikedRef(user, reviewID) {
		return nil
	}
	_, err = mutateUser(ctx, s.repo, userID, func(user *types.User) error {
		user.LikedReviews = slices.DeleteFunc(user.LikedReviews, func(ref types.LikedReviewRef) bool {
			return ref.ReviewID == reviewID
		})
		return nil
	})
	return err
}

func hasLikedRef(user types.User, reviewID string) bool {
	for _, ref := range user.LikedReviews {
		if ref.ReviewID == reviewID {
			return true
		}
	}
	return false
}

// ListReviewsForMovie returns every review of movieID, newest first.
func (s *ReviewService) ListReviewsForMovie(ctx context.Context, movieID int) ([]types.MovieReview, error) {
	if movieID <= 0 {
		return nil, apperr.Validation("Invalid movie id")
	}
	return s.repo.ListReviewsForMovie(ctx, movieID)
}

// TopReviewers returns up to limit users ranked by likes received.
func (s *ReviewService) TopReviewers(ctx context.Context, limit int) ([]types.ReviewerSummary, error) {
	if limit <= 0 {
		limit = defaultTopReviewers
	}
	if limit > maxTopReviewers {
		limit = maxTopReviewers
	}
	return s.repo.TopReviewers(ctx, limit)
}
