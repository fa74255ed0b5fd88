package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sceneit/apiserver/internal/mail"
	"github.com/sceneit/apiserver/internal/store"
	"github.com/sceneit/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testClientURL = "http://localhost:5173"

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// testClock is a settable clock shared by the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authFixture struct {
	repo   *store.MemoryUserRepository
	tokens *TokenService
	auth   *AuthService
	mailer *recordingMailer
	clock  *testClock
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	repo := store.NewMemoryUserRepository()
	clock := newTestClock()
	tokens := NewTokenService(repo, "test-secret", time.Hour)
	tokens.now = clock.Now
	mailer := &recordingMailer{}
	auth := NewAuthService(repo, tokens, mailer, testClientURL+"/", slog.Default())
	auth.hashCost = bcrypt.MinCost
	return authFixture{repo: repo, tokens: tokens, auth: auth, mailer: mailer, clock: clock}
}

func validSignup(name, email string) SignupInput {
	return SignupInput{
		Name:            name,
		Email:           email,
		Age:             30,
		Gender:          "female",
		Password:        "password123",
		ConfirmPassword: "password123",
	}
}

func (f authFixture) signup(t *testing.T, name, email string) (types.User, string) {
	t.Helper()
	user, token, err := f.auth.Signup(context.Background(), validSignup(name, email))
	require.NoError(t, err)
	return user, token
}

// sequence returns a generator yielding ids in order, repeating the last one.
func sequence(ids ...string) func(int) string {
	var mu sync.Mutex
	i := 0
	return func(int) string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[min(i, len(ids)-1)]
		i++
		return id
	}
}

func createUser(t *testing.T, repo *store.MemoryUserRepository, username string) types.User {
	t.Helper()
	user, err := repo.Create(context.Background(), types.User{
		Name:     "Name " + username,
		Username: username,
		Email:    username + "@example.com",
		Avatar:   types.DefaultAvatar,
		Country:  types.DefaultCountry,
		Role:     types.RoleUser,
	})
	require.NoError(t, err)
	return user
}
