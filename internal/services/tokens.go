package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/store"
	"github.com/sceneit/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultTokenTTL = 24 * time.Hour
	resetTokenTTL   = 5 * time.Minute
	resetTokenBytes = 32

	sessionErrorMessage = "Your session is invalid or has expired. Please log in again"
)

var (
	ErrInvalidToken               = errors.New("invalid session token")
	ErrStaleCredential            = errors.New("password changed after the session token was issued")
	ErrUnknownSubject             = errors.New("session token subject does not exist")
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
)

// SessionClaims is the verified content of a session token.
type SessionClaims struct {
	UserID   primitive.ObjectID
	IssuedAt time.Time
}

// TokenService issues and verifies session tokens and password reset tokens.
type TokenService struct {
	repo   UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(repo UserRepository, secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenService{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the lifetime of session tokens, also used as the cookie max-age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Now is the clock used to sign and verify tokens.
func (s *TokenService) Now() time.Time {
	return s.now()
}

func (s *TokenService) IssueSessionToken(userID primitive.ObjectID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TokenService) VerifySessionToken(tokenString string) (SessionClaims, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return SessionClaims{}, ErrInvalidToken
	}
	if claims.IssuedAt == nil {
		return SessionClaims{}, ErrInvalidToken
	}
	userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(claims.Subject))
	if err != nil {
		return SessionClaims{}, ErrInvalidToken
	}
	return SessionClaims{UserID: userID, IssuedAt: claims.IssuedAt.Time}, nil
}

// Authenticate resolves a session token into the identity of an active user.
// Every failure carries the same public message.
func (s *TokenService) Authenticate(ctx context.Context, tokenString string) (types.Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return types.Identity{}, sessionError(ErrInvalidToken)
	}

	claims, err := s.VerifySessionToken(tokenString)
	if err != nil {
		return types.Identity{}, sessionError(err)
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Identity{}, sessionError(ErrUnknownSubject)
		}
		return types.Identity{}, err
	}

	if passwordChangedSince(user, claims.IssuedAt) {
		return types.Identity{}, sessionError(ErrStaleCredential)
	}

	return types.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		IssuedAt: claims.IssuedAt,
	}, nil
}

// passwordChangedSince compares at second precision, like the token's iat claim.
func passwordChangedSince(user types.User, issuedAt time.Time) bool {
	if user.PasswordChangedAt == nil {
		return false
	}
	return user.PasswordChangedAt.Unix() > issuedAt.Unix()
}

func sessionError(err error) error {
	return &apperr.Error{Kind: apperr.KindUnauthenticated, Message: sessionErrorMessage, Err: err}
}

// IssueResetToken stores the hash of a fresh reset token on the user,
// replacing any earlier one, and returns the plaintext token.
func (s *TokenService) IssueResetToken(ctx context.Context, userID primitive.ObjectID) (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	if err := s.repo.SetResetToken(ctx, userID, hashResetToken(token), s.now().Add(resetTokenTTL)); err != nil {
		return "", err
	}
	return token, nil
}

// RedeemResetToken consumes token and sets passwordHash as the new password.
func (s *TokenService) RedeemResetToken(ctx context.Context, token, passwordHash string) (types.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return types.User{}, resetTokenError()
	}
	user, err := s.repo.RedeemResetToken(ctx, hashResetToken(token), s.now(), passwordHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, resetTokenError()
		}
		return types.User{}, err
	}
	return user, nil
}

func resetTokenError() error {
	return &apperr.Error{
		Kind:    apperr.KindValidation,
		Message: "Invalid Token or token has expired. Try again",
		Err:     ErrInvalidOrExpiredResetToken,
	}
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
