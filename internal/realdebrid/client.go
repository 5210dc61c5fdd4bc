// Package realdebrid tracks Real-Debrid premium expiry and warns through
// the notification channel before it lapses.
package realdebrid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arrbiter/arrbiter/internal/errors"
)

const (
	baseURL        = "https://api.real-debrid.com/rest/1.0"
	requestTimeout = 15 * time.Second
)

// Account is the subset of /rest/1.0/user relevant to expiry tracking.
type Account struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Type       string `json:"type"` // "premium" or "free"
	PremiumSec int64  `json:"premium"`
	Expiration string `json:"expiration"` // RFC 3339
}

// ExpiresAt parses the account expiration timestamp.
func (a *Account) ExpiresAt() (time.Time, error) {
	return time.Parse(time.RFC3339, a.Expiration)
}

// DaysLeft reports whole days of premium remaining, rounded down.
// Negative values mean the subscription has lapsed.
func (a *Account) DaysLeft(now time.Time) (int, error) {
	expires, err := a.ExpiresAt()
	if err != nil {
		return 0, errors.New(err).
			Component("realdebrid").
			Category(errors.CategoryValidation).
			Context("expiration", a.Expiration).
			Build()
	}
	return int(expires.Sub(now).Hours() / 24), nil
}

// Client talks to the Real-Debrid REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds a client with the account API token.
func New(apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// GetAccount fetches the current account state.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", http.NoBody)
	if err != nil {
		return nil, c.wrapError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrapError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("real-debrid returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))).
			Component("realdebrid").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, c.wrapError(err)
	}
	return &account, nil
}

func (c *Client) wrapError(err error) error {
	return errors.New(err).
		Component("realdebrid").
		Category(errors.CategoryNetwork).
		Context("operation", "get_account").
		Build()
}
