// Package arr manages Sonarr/Radarr/Readarr instances: connectivity
// checks and webhook registration against their v3 API.
package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/errors"
	"github.com/arrbiter/arrbiter/internal/logging"
)

const (
	apiTimeout = 15 * time.Second
	// webhookName identifies the notification entry this bot manages.
	webhookName = "arrbiter"
)

// Client talks to one *arr instance.
type Client struct {
	name       string
	appType    string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client for one configured instance.
func NewClient(settings *conf.ArrInstanceSettings) (*Client, error) {
	base := strings.TrimRight(settings.URL, "/")
	if base == "" {
		return nil, errors.Newf("%s: URL is empty", settings.Name).
			Component("arr").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Client{
		name:       settings.Name,
		appType:    settings.Type,
		baseURL:    base,
		apiKey:     settings.APIKey,
		httpClient: &http.Client{Timeout: apiTimeout},
		logger:     logging.ForService("arr"),
	}, nil
}

// Name returns the configured instance name.
func (c *Client) Name() string { return c.name }

// SystemStatus is the subset of /api/v3/system/status used for checks.
type SystemStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}

// TestConnection verifies the instance is reachable and the API key is
// accepted.
func (c *Client) TestConnection(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.get(ctx, "/api/v3/system/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// webhookNotification is the *arr notification resource for the webhook
// connector. Fields is a flat list of {name, value} pairs.
type webhookNotification struct {
	ID             int64          `json:"id,omitempty"`
	Name           string         `json:"name"`
	Implementation string         `json:"implementation"`
	ConfigContract string         `json:"configContract"`
	OnGrab         bool           `json:"onGrab"`
	OnDownload     bool           `json:"onDownload"`
	OnUpgrade      bool           `json:"onUpgrade"`
	Fields         []webhookField `json:"fields"`
}

type webhookField struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

// EnsureWebhook registers this bot's webhook endpoint on the instance if
// no notification with our name exists yet. Returns true when a new
// webhook was created.
func (c *Client) EnsureWebhook(ctx context.Context, publicURL string) (bool, error) {
	if publicURL == "" {
		return false, errors.Newf("public webhook URL is not configured").
			Component("arr").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var existing []webhookNotification
	if err := c.get(ctx, "/api/v3/notification", &existing); err != nil {
		return false, err
	}
	for _, notification := range existing {
		if notification.Name == webhookName {
			c.logger.Debug("Webhook already registered", "instance", c.name)
			return false, nil
		}
	}

	target := fmt.Sprintf("%s/webhook/%s", strings.TrimRight(publicURL, "/"), c.appType)
	payload := webhookNotification{
		Name:           webhookName,
		Implementation: "Webhook",
		ConfigContract: "WebhookSettings",
		OnGrab:         false,
		OnDownload:     true,
		OnUpgrade:      true,
		Fields: []webhookField{
			{Name: "url", Value: target},
			{Name: "method", Value: 1}, // POST
		},
	}
	if err := c.post(ctx, "/api/v3/notification", payload); err != nil {
		return false, err
	}

	c.logger.Info("Registered webhook", "instance", c.name, "url", target)
	return true, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return c.wrapError(err, path)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapError(err, path)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.wrapError(err, path)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return c.wrapError(err, path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return c.wrapError(err, path)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapError(err, path)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.statusError(resp, path)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) wrapError(err error, path string) error {
	return errors.New(err).
		Component("arr").
		Category(errors.CategoryNetwork).
		Context("instance", c.name).
		NetworkContext(c.baseURL, path).
		Build()
}

func (c *Client) statusError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.Newf("%s returned status %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(body))).
		Component("arr").
		Category(errors.CategoryNetwork).
		Context("status_code", resp.StatusCode).
		NetworkContext(c.baseURL, path).
		Build()
}
