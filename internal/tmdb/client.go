// Package tmdb is a read-only client for The Movie Database API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sceneit/apiserver/config"
	"github.com/sceneit/apiserver/types"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 5 << 20
)

// ErrNotFound is returned when the catalog has no such resource.
var ErrNotFound = errors.New("tmdb: not found")

// StatusError is an unexpected response status from the catalog.
type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: %s returned status %d", e.Path, e.StatusCode)
}

// Cache stores raw catalog responses keyed by request.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Client calls the catalog API with the configured key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      Cache
}

// NewClient constructs a client from config. cache may be nil.
func NewClient(cfg config.TMDBConfig, cache Cache) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
	}
}

// Popular discovers movies ordered by popularity.
func (c *Client) Popular(ctx context.Context, page int, language, genres string) (types.MoviePage, error) {
	query := url.Values{}
	query.Set("include_adult", "false")
	query.Set("include_video", "false")
	query.Set("page", strconv.Itoa(page))
	query.Set("sort_by", "popularity.desc")
	if language != "" {
		query.Set("with_original_language", language)
	}
	if genres != "" {
		query.Set("with_genres", genres)
	}

	var result types.MoviePage
	err := c.get(ctx, "/discover/movie", query, &result)
	return result, err
}

// Search finds movies by title.
func (c *Client) Search(ctx context.Context, title, language string) (types.MoviePage, error) {
	query := url.Values{}
	query.Set("query", title)
	query.Set("language", language)

	var result types.MoviePage
	err := c.get(ctx, "/search/movie", query, &result)
	return result, err
}

// Movie returns the full catalog record of a movie.
func (c *Client) Movie(ctx context.Context, id int) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.get(ctx, "/movie/"+strconv.Itoa(id), url.Values{}, &result)
	return result, err
}

// Videos lists trailers, teasers and clips of a movie.
func (c *Client) Videos(ctx context.Context, id int) ([]types.Video, error) {
	var result struct {
		Results []types.Video `json:"results"`
	}
	err := c.get(ctx, "/movie/"+strconv.Itoa(id)+"/videos", url.Values{}, &result)
	return result.Results, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	// The cache key leaves out the api key.
	key := path + "?" + query.Encode()
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, key); ok {
			return json.Unmarshal(cached, out)
		}
	}

	query.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Path: path}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("tmdb: decode %s: %w", path, err)
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, body)
	}
	return nil
}
