package services

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sceneit/apiserver/internal/apperr"
	"github.com/sceneit/apiserver/internal/tmdb"
	"github.com/sceneit/apiserver/types"
)

const (
	defaultSearchLanguage = "en-US"
	defaultMovieSort      = "popularity.desc"
	youtubeWatchURL       = "https://www.youtube.com/watch?v="
)

// Catalog is the external movie metadata API.
type Catalog interface {
	Popular(ctx context.Context, page int, language, genres string) (types.MoviePage, error)
	Search(ctx context.Context, title, language string) (types.MoviePage, error)
	Movie(ctx context.Context, id int) (json.RawMessage, error)
	Videos(ctx context.Context, id int) ([]types.Video, error)
}

// PopularQuery selects a page of popular movies.
type PopularQuery struct {
	Page     int
	Language string
	Genres   string
}

// SearchQuery finds movies by title and optionally filters and sorts them.
type SearchQuery struct {
	Name     string
	Language string
	Genres   string
	SortBy   string
}

// MovieService proxies the catalog and shapes its responses.
type MovieService struct {
	catalog Catalog
}

func NewMovieService(catalog Catalog) *MovieService {
	return &MovieService{catalog: catalog}
}

func (s *MovieService) Popular(ctx context.Context, q PopularQuery) (types.MoviePage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	page, err := s.catalog.Popular(ctx, q.Page, strings.TrimSpace(q.Language), strings.TrimSpace(q.Genres))
	if err != nil {
		return types.MoviePage{}, catalogError(err, "No movies Found")
	}
	if len(page.Results) == 0 {
		return types.MoviePage{}, apperr.NotFound("No movies Found")
	}
	page.Page = q.Page
	return page, nil
}

func (s *MovieService) Search(ctx context.Context, q SearchQuery) ([]types.Movie, error) {
	name := strings.TrimSpace(q.Name)
	if name == "" {
		return nil, apperr.Validation("Movie name is required")
	}
	language := strings.TrimSpace(q.Language)
	if language == "" {
		language = defaultSearchLanguage
	}

	page, err := s.catalog.Search(ctx, name, language)
	if err != nil {
		return nil, catalogError(err, "No movies found")
	}
	movies := slices.Clone(page.Results)

	if genreIDs := parseGenreIDs(q.Genres); len(genreIDs) > 0 {
		movies = slices.DeleteFunc(movies, func(m types.Movie) bool {
			return !slices.ContainsFunc(m.GenreIDs, func(id int) bool { return slices.Contains(genreIDs, id) })
		})
	}

	sortBy := strings.TrimSpace(q.SortBy)
	if sortBy == "" {
		sortBy = defaultMovieSort
	}
	sortMovies(movies, sortBy)

	if len(movies) == 0 {
		return nil, apperr.NotFound("No movies found")
	}
	return movies, nil
}

// Movie returns the catalog record of one movie unchanged.
func (s *MovieService) Movie(ctx context.Context, id int) (json.RawMessage, error) {
	if id <= 0 {
		return nil, apperr.Validation("Invalid movie id")
	}
	movie, err := s.catalog.Movie(ctx, id)
	if err != nil {
		return nil, catalogError(err, "Movie not found")
	}
	return movie, nil
}

// Trailers maps each language to the watch link of its first YouTube trailer.
func (s *MovieService) Trailers(ctx context.Context, id int) (map[string]string, error) {
	if id <= 0 {
		return nil, apperr.Validation("Invalid movie id")
	}
	videos, err := s.catalog.Videos(ctx, id)
	if err != nil {
		return nil, catalogError(err, "No trailers found")
	}

	trailers := make(map[string]string)
	for _, video := range videos {
		if video.Type != "Trailer" || video.Site != "YouTube" {
			continue
		}
		if _, ok := trailers[video.ISO639_1]; !ok {
			trailers[video.ISO639_1] = youtubeWatchURL + video.Key
		}
	}
	if len(trailers) == 0 {
		return nil, apperr.NotFound("No trailers found")
	}
	return trailers, nil
}

func catalogError(err error, notFoundMessage string) error {
	if errors.Is(err, tmdb.ErrNotFound) {
		return apperr.NotFound(notFoundMessage)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperr.Upstream("The movie catalog is unavailable. Please try again later", err)
}

func parseGenreIDs(raw string) []int {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// sortMovies orders movies in place. An unknown key keeps the catalog order.
func sortMovies(movies []types.Movie, sortBy string) {
	field, direction, _ := strings.Cut(sortBy, ".")
	var compare func(a, b types.Movie) int
	switch field {
	case "popularity":
		compare = func(a, b types.Movie) int { return cmp.Compare(a.Popularity, b.Popularity) }
	case "vote_average":
		compare = func(a, b types.Movie) int { return cmp.Compare(a.VoteAverage, b.VoteAverage) }
	case "release_date":
		compare = func(a, b types.Movie) int { return releaseDate(a).Compare(releaseDate(b)) }
	default:
		return
	}
	switch direction {
	case "asc":
		slices.SortStableFunc(movies, compare)
	case "desc":
		slices.SortStableFunc(movies, func(a, b types.Movie) int { return compare(b, a) })
	}
}

func releaseDate(m types.Movie) time.Time {
	t, err := time.Parse(time.DateOnly, m.ReleaseDate)
	if err != nil {
		return time.Time{}
	}
	return t
}
