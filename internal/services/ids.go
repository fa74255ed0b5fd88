package services

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

const (
	idAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	shortIDLength  = 8
	maxIDAttempts  = 10
	usernamePrefix = "user_"
)

// NewShortID returns n random characters of a URL-safe alphabet.
func NewShortID(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	// The alphabet has 64 symbols, so masking keeps the distribution uniform.
	for i, b := range buf {
		buf[i] = idAlphabet[b&63]
	}
	return string(buf)
}

// longID is used once short ids kept colliding.
func longID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newUsername(gen func(int) string) string {
	return usernamePrefix + gen(shortIDLength)
}
