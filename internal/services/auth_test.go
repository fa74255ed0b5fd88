package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var resetLinkPattern = regexp.MustCompile(`/reset-password/([0-9a-f]{64})`)

func TestAuthService_Signup(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	alice, token := f.signup(t, "Alice Doe", "Alice@Example.com")
	bob, _ := f.signup(t, "Bob Stone", "bob@example.com")

	assert.True(t, strings.HasPrefix(alice.Username, usernamePrefix))
	assert.Len(t, alice.Username, len(usernamePrefix)+shortIDLength)
	assert.NotEqual(t, alice.Username, bob.Username)
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Equal(t, types.DefaultAvatar, alice.Avatar)
	assert.Equal(t, types.DefaultCountry, alice.Country)
	assert.Equal(t, types.RoleUser, alice.Role)

	assert.NotEqual(t, "password123", alice.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(alice.PasswordHash), []byte("password123")))

	identity, err := f.tokens.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, identity.UserID)

	t.Run("Duplicate email", func(t *testing.T) {
		_, _, err := f.auth.Signup(ctx, validSignup("Alice Again", "alice@example.com"))
		assert.Equal(t, 409, apperr.StatusOf(err))
	})

	t.Run("Validation", func(t *testing.T) {
		cases := map[string]func(*SignupInput){
			"short name":         func(in *SignupInput) { in.Name = "Al" },
			"bad email":          func(in *SignupInput) { in.Email = "not-an-email" },
			"too young":          func(in *SignupInput) { in.Age = 9 },
			"unknown gender":     func(in *SignupInput) { in.Gender = "robot" },
			"short password":     func(in *SignupInput) { in.Password, in.ConfirmPassword = "short", "short" },
			"confirm mismatch":   func(in *SignupInput) { in.ConfirmPassword = "password124" },
			"unknown profession": func(in *SignupInput) { in.Profession = "wizard" },
		}
		for name, mutate := range cases {
			input := validSignup("Carol King", "carol@example.com")
			mutate(&input)
			_, _, err := f.auth.Signup(ctx, input)
			assert.Equal(t, 400, apperr.StatusOf(err), name)
		}
	})
}

func TestAuthService_SignupUsernameCollision(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	f.auth.codeGenerator = sequence("AAAAAAAA")
	first, _ := f.signup(t, "Alice Doe", "alice@example.com")
	assert.Equal(t, "user_AAAAAAAA", first.Username)

	t.Run("Draws again on collision", func(t *testing.T) {
		f.auth.codeGenerator = sequence("AAAAAAAA", "BBBBBBBB")
		user, _, err := f.auth.Signup(ctx, validSignup("Bob Stone", "bob@example.com"))
		require.NoError(t, err)
		assert.Equal(t, "user_BBBBBBBB", user.Username)
	})

	t.Run("Falls back to a long name", func(t *testing.T) {
		f.auth.codeGenerator = sequence("AAAAAAAA")
		user, _, err := f.auth.Signup(ctx, validSignup("Carol King", "carol@example.com"))
		require.NoError(t, err)
		assert.Len(t, user.Username, len(usernamePrefix)+32)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	alice, _ := f.signup(t, "Alice Doe", "alice@example.com")

	user, token, err := f.auth.Login(ctx, " ALICE@example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.NotEmpty(t, token)

	_, _, err = f.auth.Login(ctx, "alice@example.com", "wrong-password")
	assert.Equal(t, 401, apperr.StatusOf(err))

	_, _, err = f.auth.Login(ctx, "nobody@example.com", "password123")
	assert.Equal(t, 401, apperr.StatusOf(err))

	_, _, err = f.auth.Login(ctx, "", "password123")
	assert.Equal(t, 400, apperr.StatusOf(err))

	require.NoError(t, f.repo.Deactivate(ctx, alice.ID))
	_, _, err = f.auth.Login(ctx, "alice@example.com", "password123")
	assert.Equal(t, 401, apperr.StatusOf(err))
}

func TestAuthService_ForgotAndResetPassword(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	alice, oldSession := f.signup(t, "Alice Doe", "alice@example.com")

	t.Run("Unknown email", func(t *testing.T) {
		err := f.auth.ForgotPassword(ctx, "nobody@example.com")
		assert.Equal(t, 404, apperr.StatusOf(err))
	})

	require.NoError(t, f.auth.ForgotPassword(ctx, "alice@example.com"))
	require.Len(t, f.mailer.messages, 1)
	msg := f.mailer.messages[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Contains(t, msg.Text, testClientURL+"/reset-password/")

	match := resetLinkPattern.FindStringSubmatch(msg.Text)
	require.Len(t, match, 2)
	token := match[1]

	t.Run("Reset rejects a mismatched confirmation", func(t *testing.T) {
		_, _, err := f.auth.ResetPassword(ctx, token, PasswordInput{Password: "newpassword1", ConfirmPassword: "newpassword2"})
		assert.Equal(t, 400, apperr.StatusOf(err))
	})

	f.clock.Advance(2 * time.Second)
	user, session, err := f.auth.ResetPassword(ctx, token, PasswordInput{Password: "newpassword1", ConfirmPassword: "newpassword1"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	_, err = f.tokens.Authenticate(ctx, session)
	assert.NoError(t, err)
	_, err = f.tokens.Authenticate(ctx, oldSession)
	assert.ErrorIs(t, err, ErrStaleCredential)

	_, _, err = f.auth.Login(ctx, "alice@example.com", "newpassword1")
	assert.NoError(t, err)

	_, _, err = f.auth.ResetPassword(ctx, token, PasswordInput{Password: "newpassword3", ConfirmPassword: "newpassword3"})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredResetToken)
}

func TestAuthService_ForgotPasswordMailFailure(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	alice, _ := f.signup(t, "Alice Doe", "alice@example.com")

	f.mailer.err = errors.New("smtp down")
	err := f.auth.ForgotPassword(ctx, "alice@example.com")
	assert.Equal(t, 502, apperr.StatusOf(err))

	stored, err := f.repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetPasswordToken)
	assert.Nil(t, stored.ResetPasswordTokenExpires)
}

func TestAuthService_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	alice, oldSession := f.signup(t, "Alice Doe", "alice@example.com")
	input := PasswordInput{Password: "newpassword1", ConfirmPassword: "newpassword1"}

	_, _, err := f.auth.UpdatePassword(ctx, alice.ID, "wrong-password", input)
	assert.Equal(t, 400, apperr.StatusOf(err))

	f.clock.Advance(2 * time.Second)
	_, session, err := f.auth.UpdatePassword(ctx, alice.ID, "password123", input)
	require.NoError(t, err)

	_, err = f.tokens.Authenticate(ctx, session)
	assert.NoError(t, err)
	_, err = f.tokens.Authenticate(ctx, oldSession)
	assert.ErrorIs(t, err, ErrStaleCredential)

	_, _, err = f.auth.Login(ctx, "alice@example.com", "password123")
	assert.Equal(t, 401, apperr.StatusOf(err))
}
