package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/services"
	"github.com/sceneit/apiserver/types"
)

// MovieHandler serves the catalog proxy, reviews and liked movies.
type MovieHandler struct {
	movieService  *services.MovieService
	reviewService *services.ReviewService
	userService   *services.UserService
}

func NewMovieHandler(movieService *services.MovieService, reviewService *services.ReviewService, userService *services.UserService) *MovieHandler {
	return &MovieHandler{
		movieService:  movieService,
		reviewService: reviewService,
		userService:   userService,
	}
}

// MovieRouter registers movie routes on the given router.
func MovieRouter(
	r chi.Router,
	movieService *services.MovieService,
	reviewService *services.ReviewService,
	userService *services.UserService,
	sessions *Sessions,
) {
	handler := NewMovieHandler(movieService, reviewService, userService)

	r.Get("/popular", handler.Popular)
	r.Get("/search", handler.Search)
	r.Get("/reviews/{movieID}", handler.Reviews)
	r.Get("/trailer/{movieID}", handler.Trailers)
	r.Get("/movie/{movieID}", handler.Movie)

	r.Group(func(r chi.Router) {
		r.Use(sessions.RequireAuth)
		r.Patch("/save-review/{movieID}", handler.SaveReview)
		r.Patch("/toggle-review-like/{reviewID}", handler.ToggleReviewLike)
		r.With(RestrictToUser).Patch("/update-review/{username}/{reviewID}", handler.UpdateReview)
		r.With(RestrictToUser).Delete("/delete-review/{username}/{reviewID}", handler.DeleteReview)
		r.Patch("/save-liked-movies/{movieID}", handler.SaveLikedMovie)
	})
}

func (h *MovieHandler) Popular(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := 1
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, apperr.Validation("invalid page"))
			return
		}
		page = parsed
	}

	result, err := h.movieService.Popular(r.Context(), services.PopularQuery{
		Page:     page,
		Language: query.Get("language"),
		Genres:   query.Get("genres"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PopularMoviesResponse{
		Status:       statusSuccess,
		Page:         result.Page,
		TotalPages:   result.TotalPages,
		TotalResults: result.TotalResults,
		Data:         MovieListData{Length: len(result.Results), Movies: result.Results},
	})
}

func (h *MovieHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	movies, err := h.movieService.Search(r.Context(), services.SearchQuery{
		Name:     query.Get("name"),
		Language: query.Get("language"),
		Genres:   query.Get("genres"),
		SortBy:   query.Get("sortBy"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchMoviesResponse{
		Status:  statusSuccess,
		Results: len(movies),
		Data:    MovieListData{Movies: movies},
	})
}

func (h *MovieHandler) Movie(w http.ResponseWriter, r *http.Request) {
	id, err := parseMovieID(r, "movieID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	movie, err := h.movieService.Movie(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, MovieData{Movie: movie})
}

func (h *MovieHandler) Trailers(w http.ResponseWriter, r *http.Request) {
	id, err := parseMovieID(r, "movieID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	trailers, err := h.movieService.Trailers(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, TrailersData{Trailers: trailers})
}

func (h *MovieHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	id, err := parseMovieID(r, "movieID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	reviews, err := h.reviewService.ListReviewsForMovie(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReviewsResponse{Status: statusSuccess, Count: len(reviews), Reviews: reviews})
}

func (h *MovieHandler) SaveReview(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	movieID, err := parseMovieID(r, "movieID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reviewID, err := h.reviewService.CreateReview(r.Context(), identity.UserID, services.CreateReviewInput{
		MovieID:   movieID,
		MovieName: req.MovieName,
		Review:    req.Review,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ReviewSavedResponse{
		Status:   statusSuccess,
		Message:  "Your review was saved!",
		ReviewID: reviewID,
	})
}

func (h *MovieHandler) ToggleReviewLike(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	liked, err := h.reviewService.ToggleLike(r.Context(), identity.UserID, chi.URLParam(r, "reviewID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "Review unliked"
	if liked {
		message = "Review liked"
	}
	writeMessage(w, http.StatusOK, message)
}

func (h *MovieHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	target, err := targetUser(r, h.userService)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.reviewService.EditReview(r.Context(), target.ID, chi.URLParam(r, "reviewID"), req.Review); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Review updated successfully")
}

func (h *MovieHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	target, err := targetUser(r, h.userService)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.reviewService.DeleteReview(r.Context(), target.ID, chi.URLParam(r, "reviewID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MovieHandler) SaveLikedMovie(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	movieID, err := parseMovieID(r, "movieID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req LikedMovieRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, _, err := h.userService.ToggleLikedMovie(r.Context(), identity.UserID, types.LikedMovie{
		MovieID:     movieID,
		MovieName:   req.MovieName,
		MoviePoster: req.MoviePoster,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, UserData{User: user})
}

type ReviewRequest struct {
	Review    string `json:"review"`
	MovieName string `json:"movieName"`
}

type LikedMovieRequest struct {
	MovieName   string `json:"movieName"`
	MoviePoster string `json:"moviePoster"`
}

type MovieListData struct {
	Length int           `json:"length,omitempty"`
	Movies []types.Movie `json:"movies"`
}

// PopularMoviesResponse is one page of the popular movies listing.
type PopularMoviesResponse struct {
	Status       string        `json:"status"`
	Page         int           `json:"page"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
	Data         MovieListData `json:"data"`
}

type SearchMoviesResponse struct {
	Status  string        `json:"status"`
	Results int           `json:"results"`
	Data    MovieListData `json:"data"`
}

type MovieData struct {
	Movie json.RawMessage `json:"movie"`
}

type TrailersData struct {
	Trailers map[string]string `json:"trailers"`
}

type ReviewsResponse struct {
	Status  string              `json:"status"`
	Count   int                 `json:"count"`
	Reviews []types.MovieReview `json:"reviews"`
}

type ReviewSavedResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ReviewID string `json:"reviewId"`
}
