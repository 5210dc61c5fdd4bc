// Package overseerr provides a minimal client for the Overseerr user API,
// used to map Plex usernames to Discord user IDs.
package overseerr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/errors"
	"github.com/arrbiter/arrbiter/internal/logging"
)

const (
	usersPath      = "/api/v1/user"
	requestTimeout = 15 * time.Second
	// Overseerr paginates; a single large page covers realistic server sizes.
	usersPageSize = 999
)

// User is one Overseerr account with its linked identities.
type User struct {
	ID            int    `json:"id"`
	PlexUsername  string `json:"plexUsername"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	DiscordID     string `json:"discordId"`
	UserType      int    `json:"userType"`
	RequestCount  int    `json:"requestCount"`
	MovieQuotaDay int    `json:"movieQuotaDays"`
}

type usersResponse struct {
	PageInfo struct {
		Pages   int `json:"pages"`
		Results int `json:"results"`
	} `json:"pageInfo"`
	Results []User `json:"results"`
}

// Client talks to a single Overseerr instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a client from the Overseerr settings. The base URL is
// normalized so callers can configure it with or without a trailing slash.
func New(settings *conf.OverseerrSettings) (*Client, error) {
	base := strings.TrimRight(settings.BaseURL, "/")
	if base == "" {
		return nil, errors.Newf("overseerr base URL is empty").
			Component("overseerr").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.New(err).
			Component("overseerr").
			Category(errors.CategoryConfiguration).
			Context("base_url", base).
			Build()
	}

	return &Client{
		baseURL:    base,
		apiKey:     settings.APIKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logging.ForService("overseerr"),
	}, nil
}

// GetUsers fetches all Overseerr users in a single page.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	endpoint := fmt.Sprintf("%s%s?take=%d", c.baseURL, usersPath, usersPageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Component("overseerr").
			Category(errors.CategoryNetwork).
			Context("operation", "get_users").
			Build()
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("overseerr").
			Category(errors.CategoryNetwork).
			NetworkContext(c.baseURL, "get_users").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("overseerr returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))).
			Component("overseerr").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			NetworkContext(c.baseURL, "get_users").
			Build()
	}

	var payload usersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.New(err).
			Component("overseerr").
			Category(errors.CategoryNetwork).
			Context("operation", "decode_users").
			Build()
	}

	c.logger.Debug("Fetched Overseerr users", "count", len(payload.Results))
	return payload.Results, nil
}
