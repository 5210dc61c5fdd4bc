// Package plex triggers library scans on a Plex server.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/errors"
)

const requestTimeout = 15 * time.Second

// Library is one Plex library section.
type Library struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"` // "movie", "show", "artist"
}

type sectionsResponse struct {
	MediaContainer struct {
		Directory []Library `json:"Directory"`
	} `json:"MediaContainer"`
}

// Client talks to one Plex server using a fixed access token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds a client from the Plex settings.
func New(settings *conf.PlexSettings) (*Client, error) {
	base := strings.TrimRight(settings.URL, "/")
	if base == "" {
		return nil, errors.Newf("plex URL is empty").
			Component("plex").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Client{
		baseURL:    base,
		token:      settings.Token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// Libraries lists the configured library sections.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	resp, err := c.do(ctx, "/library/sections")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var payload sectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, c.wrapError(err, "decode_sections")
	}
	return payload.MediaContainer.Directory, nil
}

// ScanLibrary starts a refresh of one section. Plex gives no completion
// signal; the scan runs in the background on the server.
func (c *Client) ScanLibrary(ctx context.Context, sectionKey string) error {
	resp, err := c.do(ctx, fmt.Sprintf("/library/sections/%s/refresh", sectionKey))
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// ScanAll starts a refresh of every section.
func (c *Client) ScanAll(ctx context.Context) (int, error) {
	libraries, err := c.Libraries(ctx)
	if err != nil {
		return 0, err
	}
	for _, library := range libraries {
		if err := c.ScanLibrary(ctx, library.Key); err != nil {
			return 0, err
		}
	}
	return len(libraries), nil
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, c.wrapError(err, path)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrapError(err, path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, errors.Newf("plex returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))).
			Component("plex").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			NetworkContext(c.baseURL, path).
			Build()
	}
	return resp, nil
}

func (c *Client) wrapError(err error, operation string) error {
	return errors.New(err).
		Component("plex").
		Category(errors.CategoryNetwork).
		Context("operation", operation).
		Build()
}
