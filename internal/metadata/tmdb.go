// Package metadata enriches movie notifications with TMDB details.
// Lookups are cached in memory; failures degrade to "no extra details".
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/arrbiter/arrbiter/internal/errors"
	"github.com/arrbiter/arrbiter/internal/logging"
)

const (
	tmdbBaseURL    = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/original"
	requestTimeout = 10 * time.Second

	cacheTTL     = 6 * time.Hour
	cacheCleanup = time.Hour
)

// MovieDetails is the subset of a TMDB movie record used to enrich
// notifications.
type MovieDetails struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	Runtime      int     `json:"runtime"`
	VoteAverage  float64 `json:"vote_average"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
}

// PosterURL resolves the poster path against the TMDB image host.
func (m *MovieDetails) PosterURL() string {
	if m.PosterPath == "" {
		return ""
	}
	return imageBaseURL + m.PosterPath
}

// BackdropURL resolves the backdrop path against the TMDB image host.
func (m *MovieDetails) BackdropURL() string {
	if m.BackdropPath == "" {
		return ""
	}
	return imageBaseURL + m.BackdropPath
}

// Client fetches movie details from TMDB with a read-through cache.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *gocache.Cache
	logger     *slog.Logger
}

// New builds a TMDB client.
func New(apiKey string) *Client {
	return &Client{
		baseURL:    tmdbBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      gocache.New(cacheTTL, cacheCleanup),
		logger:     logging.ForService("metadata"),
	}
}

// GetMovie returns details for one TMDB movie id, from cache when fresh.
func (c *Client) GetMovie(ctx context.Context, tmdbID int64) (*MovieDetails, error) {
	cacheKey := fmt.Sprintf("movie:%d", tmdbID)
	if cached, found := c.cache.Get(cacheKey); found {
		return cached.(*MovieDetails), nil
	}

	endpoint := fmt.Sprintf("%s/movie/%d?api_key=%s", c.baseURL, tmdbID, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, c.wrapError(err, tmdbID)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrapError(err, tmdbID)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("tmdb returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))).
			Component("metadata").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Context("tmdb_id", tmdbID).
			Build()
	}

	var details MovieDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, c.wrapError(err, tmdbID)
	}

	c.cache.Set(cacheKey, &details, gocache.DefaultExpiration)
	c.logger.Debug("Cached TMDB movie details", "tmdb_id", tmdbID, "title", details.Title)
	return &details, nil
}

func (c *Client) wrapError(err error, tmdbID int64) error {
	return errors.New(err).
		Component("metadata").
		Category(errors.CategoryNetwork).
		Context("tmdb_id", tmdbID).
		Build()
}
