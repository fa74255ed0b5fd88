package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sceneit/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Index names created by the migrations in internal/db/migrations.
const (
	indexUsername = "username_unique"
	indexEmail    = "email_unique"
	indexReviewID = "reviews_review_id_unique"
)

// UserRepository handles persistence for users and their embedded collections.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(coll *mongo.Collection) *UserRepository {
	return &UserRepository{coll: coll}
}

// active narrows filter to accounts that were not soft deleted.
func active(filter bson.M) bson.M {
	filter["active"] = bson.M{"$ne": false}
	return filter
}

func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var user types.User
	if err := r.coll.FindOne(ctx, active(filter)).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = primitive.NewObjectID()
	user.Active = true
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now
	normalizeCollections(&user)

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return types.User{}, translateWriteError(err)
	}
	return user, nil
}

// Save replaces the whole document if nobody wrote to it since it was loaded.
func (r *UserRepository) Save(ctx context.Context, user types.User) (types.User, error) {
	expected := user.Version
	user.Version++
	user.UpdatedAt = time.Now().UTC()
	normalizeCollections(&user)

	filter := active(bson.M{"_id": user.ID, "version": expected})
	result, err := r.coll.ReplaceOne(ctx, filter, user)
	if err != nil {
		return types.User{}, translateWriteError(err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, user.ID); err != nil {
			return types.User{}, err
		}
		return types.User{}, ErrVersionConflict
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update types.ProfileUpdate) (types.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = strings.ToLower(*update.Email)
	}
	if update.Gender != nil {
		set["gender"] = *update.Gender
	}
	if update.Avatar != nil {
		set["avatar"] = *update.Avatar
	}
	if update.Age != nil {
		set["age"] = *update.Age
	}
	if update.Country != nil {
		set["country"] = *update.Country
	}
	if update.Profession != nil {
		set["profession"] = *update.Profession
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set, "$inc": bson.M{"version": 1}})
}

// UpdatePassword stores a new hash and stamps passwordChangedAt, which
// invalidates every session token issued before changedAt.
func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) (types.User, error) {
	update := bson.M{
		"$set": bson.M{
			"password":          passwordHash,
			"passwordChangedAt": changedAt,
			"updatedAt":         time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

func (r *UserRepository) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.coll.UpdateOne(ctx, active(bson.M{"_id": id}), update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken replaces any outstanding reset token of the user.
func (r *UserRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"resetPasswordToken":        tokenHash,
			"resetPasswordTokenExpires": expires,
		},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.coll.UpdateOne(ctx, active(bson.M{"_id": id}), update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordTokenExpires": ""},
		"$inc":   bson.M{"version": 1},
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// RedeemResetToken consumes an unexpired reset token and sets the new
// password in one atomic update, so a token can be redeemed only once.
func (r *UserRepository) RedeemResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (types.User, error) {
	filter := bson.M{
		"resetPasswordToken":        tokenHash,
		"resetPasswordTokenExpires": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"password":          passwordHash,
			"passwordChangedAt": now,
			"updatedAt":         now,
		},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordTokenExpires": ""},
		"$inc":   bson.M{"version": 1},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *UserRepository) ReviewIDExists(ctx context.Context, reviewID string) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"reviews.reviewId": reviewID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindReview locates a review by id across all active users.
func (r *UserRepository) FindReview(ctx context.Context, reviewID string) (types.Review, error) {
	opts := options.FindOne().SetProjection(bson.M{"reviews.$": 1})
	var user types.User
	err := r.coll.FindOne(ctx, active(bson.M{"reviews.reviewId": reviewID}), opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	if len(user.Reviews) == 0 {
		return types.Review{}, ErrNotFound
	}
	return user.Reviews[0], nil
}

// AdjustReviewLikes atomically adds delta to a review's like counter and
// returns the new count. Decrements only apply while the count is positive.
func (r *UserRepository) AdjustReviewLikes(ctx context.Context, reviewID string, delta int) (int, error) {
	filter := bson.M{"reviews.reviewId": reviewID}
	if delta < 0 {
		filter = bson.M{"reviews": bson.M{"$elemMatch": bson.M{
			"reviewId":  reviewID,
			"likeCount": bson.M{"$gt": 0},
		}}}
	}
	update := bson.M{"$inc": bson.M{"reviews.$.likeCount": delta, "version": 1}}

	user, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, ErrNotFound) && delta < 0 {
		review, findErr := r.FindReview(ctx, reviewID)
		if findErr != nil {
			return 0, findErr
		}
		return review.LikeCount, nil
	}
	if err != nil {
		return 0, err
	}
	if i := user.ReviewIndex(reviewID); i >= 0 {
		return user.Reviews[i].LikeCount, nil
	}
	return 0, ErrNotFound
}

func (r *UserRepository) ListReviewsForMovie(ctx context.Context, movieID int) ([]types.MovieReview, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: active(bson.M{"reviews.movieId": movieID})}},
		{{Key: "$unwind", Value: "$reviews"}},
		{{Key: "$match", Value: bson.M{"reviews.movieId": movieID}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "reviews.createdAt", Value: -1},
			{Key: "reviews.reviewId", Value: 1},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":        0,
			"movieId":    "$reviews.movieId",
			"reviewId":   "$reviews.reviewId",
			"review":     "$reviews.review",
			"username":   "$reviews.username",
			"likeCount":  "$reviews.likeCount",
			"createdAt":  "$reviews.createdAt",
			"name":       1,
			"avatar":     1,
			"country":    1,
			"profession": 1,
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	reviews := []types.MovieReview{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// TopReviewers ranks users with at least one like by the total likes across their reviews.
func (r *UserRepository) TopReviewers(ctx context.Context, limit int) ([]types.ReviewerSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: active(bson.M{"reviews.0": bson.M{"$exists": true}})}},
		{{Key: "$unwind", Value: "$reviews"}},
		{{Key: "$group", Value: bson.M{
			"_id":        "$_id",
			"name":       bson.M{"$first": "$name"},
			"username":   bson.M{"$first": "$username"},
			"avatar":     bson.M{"$first": "$avatar"},
			"country":    bson.M{"$first": "$country"},
			"profession": bson.M{"$first": "$profession"},
			"totalLikes": bson.M{"$sum": "$reviews.likeCount"},
			"reviews":    bson.M{"$push": "$reviews"},
		}}},
		{{Key: "$match", Value: bson.M{"totalLikes": bson.M{"$gte": 1}}}},
		{{Key: "$addFields", Value: bson.M{
			"bestLikedReview": bson.M{"$first": bson.M{"$sortArray": bson.M{
				"input":  "$reviews",
				"sortBy": bson.M{"likeCount": -1},
			}}},
		}}},
		{{Key: "$project", Value: bson.M{"reviews": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalLikes", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	users := []types.ReviewerSummary{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) findOneAndUpdate(ctx context.Context, filter bson.M, update bson.M) (types.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user types.User
	if err := r.coll.FindOneAndUpdate(ctx, active(filter), update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, translateWriteError(err)
	}
	return user, nil
}

// translateWriteError maps unique index violations onto the store sentinels.
func translateWriteError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexUsername):
		return ErrDuplicateUsername
	case strings.Contains(msg, indexEmail):
		return ErrDuplicateEmail
	case strings.Contains(msg, indexReviewID):
		return ErrDuplicateReviewID
	default:
		return err
	}
}

// normalizeCollections keeps embedded arrays encoded as [] rather than null.
func normalizeCollections(user *types.User) {
	if user.Reviews == nil {
		user.Reviews = []types.Review{}
	}
	if user.LikedMovies == nil {
		user.LikedMovies = []types.LikedMovie{}
	}
	if user.LikedReviews == nil {
		user.LikedReviews = []types.LikedReviewRef{}
	}
}
