package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sceneit/apiserver/internal/services"
	"github.com/sceneit/apiserver/types"
)

// AuthHandler provides signup, login and password recovery endpoints.
type AuthHandler struct {
	authService *services.AuthService
	sessions    *Sessions
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, sessions *Sessions) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, sessions *Sessions) {
	handler := NewAuthHandler(authService, sessions)

	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.With(sessions.RequireAuth).Get("/logout", handler.Logout)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Patch("/reset-password/{token}", handler.ResetPassword)
}

// Signup creates an account and starts a session.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.sessions.SetCookie(w, token)
	writeData(w, http.StatusCreated, UserData{User: user})
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.sessions.SetCookie(w, token)
	writeData(w, http.StatusOK, LoginData{UserData: user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	writeMessage(w, http.StatusOK, "You have been logged out!")
}

// ForgotPassword mails a reset link to the account owner.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password request url has been sent")
}

// ResetPassword redeems a reset token and starts a fresh session.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req services.PasswordInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	_, token, err := h.authService.ResetPassword(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.sessions.SetCookie(w, token)
	writeData(w, http.StatusOK, MessageData{Message: "Your password is reset"})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// UserData is the data payload of responses carrying the caller's account.
type UserData struct {
	User any `json:"user"`
}

type LoginData struct {
	UserData types.User `json:"userData"`
}

type MessageData struct {
	Message string `json:"message"`
}
