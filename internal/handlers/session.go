package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/services"
	"github.com/sceneit/apiserver/types"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "jwt"

// Sessions binds session tokens to cookies and guards routes with them.
type Sessions struct {
	tokens     *services.TokenService
	production bool
}

func NewSessions(tokens *services.TokenService, production bool) *Sessions {
	return &Sessions{tokens: tokens, production: production}
}

func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	ttl := s.tokens.TTL()
	http.SetCookie(w, s.cookie(token, int(ttl/time.Second)))
}

func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie("", -1))
}

func (s *Sessions) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
	}
	// Cross-site clients need SameSite=None, which browsers only accept on secure cookies.
	if s.production {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// RequireAuth resolves the session token into the caller's identity and
// stores it on the request context.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.tokens.Authenticate(r.Context(), sessionToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// RestrictToUser lets a request through only when the {username} path
// parameter names the caller. Admins may act on any user.
func RestrictToUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := currentIdentity(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if identity.Username != chi.URLParam(r, "username") && !identity.IsAdmin() {
			writeError(w, r, apperr.Forbidden("You are not allowed to access this profile"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// targetUser returns the user named by the {username} path parameter.
func targetUser(r *http.Request, users *services.UserService) (types.User, error) {
	identity, err := currentIdentity(r)
	if err != nil {
		return types.User{}, err
	}
	username := chi.URLParam(r, "username")
	if username == identity.Username {
		return users.GetByID(r.Context(), identity.UserID)
	}
	return users.GetByUsername(r.Context(), username)
}

// sessionToken reads the session cookie, falling back to a bearer token.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	token, err := bearerToken(r)
	if err != nil {
		return ""
	}
	return token
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
