package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/mail"
	"github.com/sceneit/apiserver/internal/store"
	"github.com/sceneit/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const passwordHashCost = 12

// MailSender delivers outbound mail.
type MailSender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// SignupInput is the payload accepted when creating an account.
type SignupInput struct {
	Name            string `json:"name" validate:"required,min=4,max=40"`
	Email           string `json:"email" validate:"required,email"`
	Age             int    `json:"age" validate:"required,min=14,max=100"`
	Gender          string `json:"gender" validate:"omitempty,gender"`
	Profession      string `json:"profession" validate:"omitempty,profession"`
	Country         string `json:"country" validate:"max=80"`
	Avatar          string `json:"avatar" validate:"max=200"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// PasswordInput is a new password with its confirmation.
type PasswordInput struct {
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// AuthService implements signup, login and the password lifecycle.
type AuthService struct {
	repo          UserRepository
	tokens        *TokenService
	mailer        MailSender
	clientURL     string
	hashCost      int
	codeGenerator func(int) string
	logger        *slog.Logger
}

func NewAuthService(repo UserRepository, tokens *TokenService, mailer MailSender, clientURL string, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		repo:          repo,
		tokens:        tokens,
		mailer:        mailer,
		clientURL:     strings.TrimRight(clientURL, "/"),
		hashCost:      passwordHashCost,
		codeGenerator: NewShortID,
		logger:        logger,
	}
}

// Signup creates an account with a generated username and returns it with a session token.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (types.User, string, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Country = strings.TrimSpace(input.Country)
	input.Avatar = strings.TrimSpace(input.Avatar)
	if err := validateStruct(input); err != nil {
		return types.User{}, "", err
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return types.User{}, "", err
	}

	user := types.User{
		Name:         input.Name,
		Email:        input.Email,
		Age:          input.Age,
		Gender:       input.Gender,
		Profession:   input.Profession,
		Country:      orDefault(input.Country, types.DefaultCountry),
		Avatar:       orDefault(input.Avatar, types.DefaultAvatar),
		Role:         types.RoleUser,
		PasswordHash: hash,
	}

	created, err := s.createWithUsername(ctx, user)
	if err != nil {
		return types.User{}, "", err
	}

	token, err := s.tokens.IssueSessionToken(created.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return created, token, nil
}

// createWithUsername inserts user under a fresh username. The unique index
// decides collisions; after maxIDAttempts short names a long one is used.
func (s *AuthService) createWithUsername(ctx context.Context, user types.User) (types.User, error) {
	for attempt := 0; attempt <= maxIDAttempts; attempt++ {
		if attempt < maxIDAttempts {
			user.Username = newUsername(s.codeGenerator)
		} else {
			user.Username = usernamePrefix + longID()
		}

		created, err := s.repo.Create(ctx, user)
		switch {
		case err == nil:
			return created, nil
		case errors.Is(err, store.ErrDuplicateUsername):
			continue
		case errors.Is(err, store.ErrDuplicateEmail):
			return types.User{}, apperr.Conflict("This email is already in use")
		default:
			return types.User{}, err
		}
	}
	return types.User{}, apperr.Conflict("Could not allocate a username. Please try again")
}

// Login checks an email and password pair and returns a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return types.User{}, "", apperr.Validation("please enter email and password to login")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", apperr.Unauthenticated("email or password is invalid")
		}
		return types.User{}, "", err
	}
	if !checkPassword(user.PasswordHash, password) {
		return types.User{}, "", apperr.Unauthenticated("email or password is invalid")
	}

	token, err := s.tokens.IssueSessionToken(user.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return user, token, nil
}

// ForgotPassword mails a reset link to the owner of email. When the mail
// cannot be sent the reset token is withdrawn again.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.Validation("Please Enter your email")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("We can't find the user with the given email")
		}
		return err
	}

	token, err := s.tokens.IssueResetToken(ctx, user.ID)
	if err != nil {
		return err
	}

	link := s.clientURL + "/reset-password/" + token
	if err := s.mailer.Send(ctx, mail.ResetPasswordMessage(user.Email, link, resetTokenTTL)); err != nil {
		if clearErr := s.repo.ClearResetToken(ctx, user.ID); clearErr != nil {
			s.logger.Error("failed to withdraw reset token", "user_id", user.ID.Hex(), "error", clearErr)
		}
		return apperr.Upstream("Something went wrong. Please try again later", err)
	}
	return nil
}

// ResetPassword redeems a reset token and returns the user with a new session token.
func (s *AuthService) ResetPassword(ctx context.Context, token string, input PasswordInput) (types.User, string, error) {
	if err := validateStruct(input); err != nil {
		return types.User{}, "", err
	}
	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return types.User{}, "", err
	}

	user, err := s.tokens.RedeemResetToken(ctx, token, hash)
	if err != nil {
		return types.User{}, "", err
	}

	session, err := s.tokens.IssueSessionToken(user.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return user, session, nil
}

// UpdatePassword changes the password of a signed in user. Sessions issued
// before the change stop working; the returned token replaces them.
func (s *AuthService) UpdatePassword(ctx context.Context, id primitive.ObjectID, currentPassword string, input PasswordInput) (types.User, string, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, "", userLookupError(err)
	}
	if !checkPassword(user.PasswordHash, currentPassword) {
		return types.User{}, "", apperr.Validation("Incorrect current password")
	}
	if err := validateStruct(input); err != nil {
		return types.User{}, "", err
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return types.User{}, "", err
	}
	updated, err := s.repo.UpdatePassword(ctx, id, hash, s.tokens.Now())
	if err != nil {
		return types.User{}, "", userLookupError(err)
	}

	token, err := s.tokens.IssueSessionToken(updated.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return updated, token, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func checkPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
