package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is one user's text review of a catalog movie.
type Review struct {
	// ReviewID is a short identifier, unique across all users.
	ReviewID string `json:"reviewId" bson:"reviewId"`

	// MovieID references the movie in the external catalog.
	MovieID int `json:"movieId" bson:"movieId"`

	// MovieName is a snapshot of the title at the time of writing.
	MovieName string `json:"movieName" bson:"movieName"`

	Review   string `json:"review" bson:"review"`
	Username string `json:"username" bson:"username"`

	// LikeCount is the number of users currently liking the review. Never negative.
	LikeCount int       `json:"likeCount" bson:"likeCount"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// LikedMovie is a bookmark of a catalog movie.
type LikedMovie struct {
	MovieID     int    `json:"movieId" bson:"movieId"`
	MovieName   string `json:"movieName" bson:"movieName"`
	MoviePoster string `json:"moviePoster" bson:"moviePoster"`
}

// LikedReviewRef records a review the user liked, with a snapshot of its content.
type LikedReviewRef struct {
	ReviewID         string `json:"reviewId" bson:"reviewId"`
	MovieID          int    `json:"movieId" bson:"movieId"`
	MovieName        string `json:"movieName" bson:"movieName"`
	Review           string `json:"review" bson:"review"`
	ReviewerUsername string `json:"reviewerUsername" bson:"reviewerUsername"`
}

// MovieReview is a review flattened out of its author's document and
// enriched with the author's public profile fields.
type MovieReview struct {
	MovieID    int       `json:"movieId" bson:"movieId"`
	ReviewID   string    `json:"reviewId" bson:"reviewId"`
	Review     string    `json:"review" bson:"review"`
	Username   string    `json:"username" bson:"username"`
	LikeCount  int       `json:"likeCount" bson:"likeCount"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	Name       string    `json:"name" bson:"name"`
	Avatar     string    `json:"avatar" bson:"avatar"`
	Country    string    `json:"country" bson:"country"`
	Profession string    `json:"profession,omitempty" bson:"profession,omitempty"`
}

// ReviewerSummary aggregates a user's reviews for the top reviewers board.
type ReviewerSummary struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id"`
	Name            string             `json:"name" bson:"name"`
	Username        string             `json:"username" bson:"username"`
	Avatar          string             `json:"avatar" bson:"avatar"`
	Country         string             `json:"country" bson:"country"`
	Profession      string             `json:"profession,omitempty" bson:"profession,omitempty"`
	TotalLikes      int                `json:"totalLikes" bson:"totalLikes"`
	BestLikedReview Review             `json:"bestLikedReview" bson:"bestLikedReview"`
}
