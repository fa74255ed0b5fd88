package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/services"
	"github.com/sceneit/apiserver/types"
)

// UserHandler serves account and profile endpoints.
type UserHandler struct {
	userService   *services.UserService
	authService   *services.AuthService
	reviewService *services.ReviewService
	avatarService *services.AvatarService
	sessions      *Sessions
}

func NewUserHandler(
	userService *services.UserService,
	authService *services.AuthService,
	reviewService *services.ReviewService,
	avatarService *services.AvatarService,
	sessions *Sessions,
) *UserHandler {
	return &UserHandler{
		userService:   userService,
		authService:   authService,
		reviewService: reviewService,
		avatarService: avatarService,
		sessions:      sessions,
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Get("/top-reviewers", handler.TopReviewers)
	r.Get("/public-profile/{username}", handler.PublicProfile)

	r.Group(func(r chi.Router) {
		r.Use(handler.sessions.RequireAuth)
		r.Get("/me", handler.Me)
		r.Get("/getAvatars", handler.Avatars)
		r.Patch("/update-me", handler.UpdateMe)
		r.Delete("/delete-me", handler.DeleteMe)
		r.Patch("/update-password", handler.UpdatePassword)
		r.With(RestrictToUser).Get("/liked-movies/{username}", handler.LikedMovies)
		r.With(RestrictToUser).Get("/{username}", handler.Profile)
	})
}

func (h *UserHandler) TopReviewers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, apperr.Validation("invalid limit"))
			return
		}
		limit = parsed
	}

	users, err := h.reviewService.TopReviewers(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TopReviewersResponse{
		Status: statusSuccess,
		Length: len(users),
		Data:   TopReviewersData{Users: users},
	})
}

func (h *UserHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.PublicProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, UserData{User: profile})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.userService.GetByID(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, UserData{User: user})
}

// Profile returns the full account named in the path.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := targetUser(r, h.userService)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, UserData{User: user})
}

func (h *UserHandler) LikedMovies(w http.ResponseWriter, r *http.Request) {
	user, err := targetUser(r, h.userService)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, LikedMoviesData{LikedMovies: user.LikedMovies})
}

func (h *UserHandler) Avatars(w http.ResponseWriter, r *http.Request) {
	avatars, err := h.avatarService.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvatarsResponse{Status: statusSuccess, Avatars: avatars})
}

// UpdateMe changes profile fields. Passwords have their own endpoint.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req UpdateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Password != nil || req.ConfirmPassword != nil {
		writeError(w, r, apperr.Validation("you can not change your password at this endpoint"))
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), identity.UserID, req.ProfileUpdate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Status:  statusSuccess,
		Message: "Changes saved!",
		Data:    UserData{User: user},
	})
}

// DeleteMe deactivates the caller's account and ends the session.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.userService.Deactivate(r.Context(), identity.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req UpdatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	_, token, err := h.authService.UpdatePassword(r.Context(), identity.UserID, req.CurrentPassword, services.PasswordInput{
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.sessions.SetCookie(w, token)
	writeData(w, http.StatusOK, MessageData{Message: "your password has been updated"})
}

// UpdateMeRequest accepts only the editable profile fields. Password fields
// are decoded so they can be rejected.
type UpdateMeRequest struct {
	types.ProfileUpdate
	Password        *string `json:"password"`
	ConfirmPassword *string `json:"confirmPassword"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type TopReviewersData struct {
	Users []types.ReviewerSummary `json:"users"`
}

type TopReviewersResponse struct {
	Status string           `json:"status"`
	Length int              `json:"length"`
	Data   TopReviewersData `json:"data"`
}

type LikedMoviesData struct {
	LikedMovies []types.LikedMovie `json:"likedMovies"`
}

type AvatarsResponse struct {
	Status  string   `json:"status"`
	Avatars []string `json:"avatars"`
}
