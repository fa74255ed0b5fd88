package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/types"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 10 << 10

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"

	genericErrorMessage = "Something went wrong"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// Envelope is the common response shape: {status, message?, data?}.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func withIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// IdentityFromContext returns the caller placed on the context by RequireAuth.
func IdentityFromContext(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(contextIdentityKey).(types.Identity)
	if !ok || identity.UserID.IsZero() {
		return types.Identity{}, false
	}
	return identity, true
}

func currentIdentity(r *http.Request) (types.Identity, error) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		return types.Identity{}, apperr.Unauthenticated("You are not logged in. Please log in to get access")
	}
	return identity, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Status: statusSuccess, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Status: statusSuccess, Message: message})
}

// writeError answers with the message of operational errors. Anything else
// is logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		slog.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, Envelope{Status: statusError, Message: genericErrorMessage})
		return
	}

	status := appErr.Status()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, Envelope{Status: statusFor(status), Message: appErr.Message})
}

func statusFor(code int) string {
	if code >= http.StatusInternalServerError {
		return statusError
	}
	return statusFail
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("Request body is too large")
	}
	return apperr.Validation("Invalid request body")
}

func parseMovieID(r *http.Request, param string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, param)))
	if err != nil || id < 1 {
		return 0, apperr.Validation("Invalid movie id")
	}
	return id, nil
}

// Healthz reports that the process is serving requests.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Envelope{Status: "ok"})
}

// NotFound answers requests that match no route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Envelope{
		Status:  statusFail,
		Message: "Can't find " + r.URL.RequestURI() + " on the server!",
	})
}

// MethodNotAllowed mirrors NotFound for known paths with another method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	NotFound(w, r)
}
