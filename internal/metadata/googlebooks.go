package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/arrbiter/arrbiter/internal/errors"
	"github.com/arrbiter/arrbiter/internal/logging"
)

const (
	googleBooksBaseURL = "https://www.googleapis.com/books/v1"
	bookSearchResults  = 5
)

// BookVolume is one Google Books search result.
type BookVolume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Authors       []string `json:"authors"`
		PublishedDate string   `json:"publishedDate"`
		Description   string   `json:"description"`
		PageCount     int      `json:"pageCount"`
		InfoLink      string   `json:"infoLink"`
		ImageLinks    struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

// Title returns the volume title.
func (v *BookVolume) Title() string {
	return v.VolumeInfo.Title
}

// AuthorLine joins the volume authors for display.
func (v *BookVolume) AuthorLine() string {
	if len(v.VolumeInfo.Authors) == 0 {
		return "Unknown author"
	}
	return strings.Join(v.VolumeInfo.Authors, ", ")
}

type bookSearchResponse struct {
	Items []BookVolume `json:"items"`
}

// BooksClient searches the Google Books volumes API with a read-through
// cache. An API key is optional; without one the public quota applies.
type BooksClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *gocache.Cache
	logger     *slog.Logger
}

// NewBooksClient builds a Google Books client.
func NewBooksClient(apiKey string) *BooksClient {
	return &BooksClient{
		baseURL:    googleBooksBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      gocache.New(cacheTTL, cacheCleanup),
		logger:     logging.ForService("metadata"),
	}
}

// SearchBooks returns the top volume matches for a free-form query. An
// optional author narrows the search with an inauthor: term.
func (c *BooksClient) SearchBooks(ctx context.Context, query, author string) ([]BookVolume, error) {
	term := query
	if author != "" {
		term = fmt.Sprintf("intitle:%s+inauthor:%s", query, author)
	}

	cacheKey := "books:" + term
	if cached, found := c.cache.Get(cacheKey); found {
		return cached.([]BookVolume), nil
	}

	endpoint := fmt.Sprintf("%s/volumes?q=%s&maxResults=%d", c.baseURL, url.QueryEscape(term), bookSearchResults)
	if c.apiKey != "" {
		endpoint += "&key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, c.wrapBooksError(err, term)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrapBooksError(err, term)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("google books returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))).
			Component("metadata").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Context("query", term).
			Build()
	}

	var parsed bookSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, c.wrapBooksError(err, term)
	}

	c.cache.Set(cacheKey, parsed.Items, gocache.DefaultExpiration)
	c.logger.Debug("Cached book search results", "query", term, "results", len(parsed.Items))
	return parsed.Items, nil
}

func (c *BooksClient) wrapBooksError(err error, query string) error {
	return errors.New(err).
		Component("metadata").
		Category(errors.CategoryNetwork).
		Context("query", query).
		Build()
}
