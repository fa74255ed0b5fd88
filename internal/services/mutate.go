package services

import (
	"context"
	"errors"

	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/store"
	"github.com/sceneit/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxSaveAttempts = 5

// mutateUser loads the user, applies fn and saves the document with a
// version check. On a concurrent write it reloads and applies fn again.
func mutateUser(ctx context.Context, repo UserRepository, id primitive.ObjectID, fn func(*types.User) error) (types.User, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		user, err := repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return types.User{}, errUserNotFound
			}
			return types.User{}, err
		}
		if err := fn(&user); err != nil {
			return types.User{}, err
		}

		saved, err := repo.Save(ctx, user)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, errUserNotFound
		}
		return saved, err
	}
	return types.User{}, apperr.Conflict("Your data was changed by another request. Please try again")
}
