package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	DefaultAvatar  = "default_avatar.png"
	DefaultCountry = "Not provided"
)

// Genders lists the accepted values of User.Gender.
var Genders = []string{"male", "female", "other"}

// Professions lists the accepted values of User.Profession.
var Professions = []string{
	"Doctor", "Engineer", "Teacher", "Student", "Film Director", "Producer", "Actor",
	"Screenwriter", "Cinematographer", "Editor", "Movie Critic", "Movie Analyst",
	"Animator", "Composer", "Sound Designer", "Artist", "Business", "Others",
}

// User represents an account in the system.
// It owns the reviews the user wrote and the movies and reviews they liked.
type User struct {
	// ID is the unique identifier of the user.
	ID primitive.ObjectID `json:"_id" bson:"_id,omitempty"`

	// Name is the user's display name.
	Name string `json:"name" bson:"name"`

	// Username is generated at signup and never changes afterwards.
	Username string `json:"username" bson:"username"`

	// Email is the user's lowercased email address.
	Email string `json:"email" bson:"email"`

	// EmailVerified is reserved for an email confirmation flow.
	EmailVerified bool `json:"emailVerified" bson:"emailVerified"`

	// Avatar is the file name of the avatar picked by the user.
	Avatar string `json:"avatar" bson:"avatar"`

	Age        int    `json:"age" bson:"age"`
	Gender     string `json:"gender,omitempty" bson:"gender,omitempty"`
	Profession string `json:"profession,omitempty" bson:"profession,omitempty"`
	Country    string `json:"country" bson:"country"`

	// Role indicates the user's authorization level ("user" or "admin").
	// It is never exposed in API responses.
	Role string `json:"-" bson:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" bson:"password"`

	// Active is false once the user deleted their account.
	Active bool `json:"-" bson:"active"`

	Reviews      []Review         `json:"reviews" bson:"reviews"`
	LikedMovies  []LikedMovie     `json:"likedMovies" bson:"likedMovies"`
	LikedReviews []LikedReviewRef `json:"likedReviews" bson:"likedReviews"`

	// PasswordChangedAt is stamped whenever the password changes. Session
	// tokens issued before it are rejected.
	PasswordChangedAt *time.Time `json:"-" bson:"passwordChangedAt,omitempty"`

	// ResetPasswordToken is the sha256 hex digest of the outstanding reset token.
	ResetPasswordToken        string     `json:"-" bson:"resetPasswordToken,omitempty"`
	ResetPasswordTokenExpires *time.Time `json:"-" bson:"resetPasswordTokenExpires,omitempty"`

	// Version is bumped by every write and guards whole-document saves.
	Version int64 `json:"-" bson:"version"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ReviewIndex returns the position of reviewID in u.Reviews or -1.
func (u User) ReviewIndex(reviewID string) int {
	for i, review := range u.Reviews {
		if review.ReviewID == reviewID {
			return i
		}
	}
	return -1
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name       *string `json:"name" validate:"omitempty,min=4,max=40"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Gender     *string `json:"gender" validate:"omitempty,gender"`
	Avatar     *string `json:"avatar" validate:"omitempty,max=200"`
	Age        *int    `json:"age" validate:"omitempty,min=14,max=100"`
	Country    *string `json:"country" validate:"omitempty,max=80"`
	Profession *string `json:"profession" validate:"omitempty,profession"`
}

// Empty reports whether no field is set.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Gender == nil && p.Avatar == nil &&
		p.Age == nil && p.Country == nil && p.Profession == nil
}

// PublicProfile is the subset of a user shown to anonymous visitors.
type PublicProfile struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	Name       string             `json:"name" bson:"name"`
	Age        int                `json:"age" bson:"age"`
	Avatar     string             `json:"avatar" bson:"avatar"`
	Country    string             `json:"country" bson:"country"`
	Profession string             `json:"profession,omitempty" bson:"profession,omitempty"`
	Reviews    []Review           `json:"reviews" bson:"reviews"`
}

// Public projects u onto its public profile.
func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:         u.ID,
		Name:       u.Name,
		Age:        u.Age,
		Avatar:     u.Avatar,
		Country:    u.Country,
		Profession: u.Profession,
		Reviews:    u.Reviews,
	}
}
