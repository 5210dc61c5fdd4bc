package plex

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrbiter/arrbiter/internal/conf"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := New(&conf.PlexSettings{
		URL:   "http://plex.local:32400",
		Token: "plex-token",
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func registerSections(t *testing.T) {
	t.Helper()
	httpmock.RegisterResponder(http.MethodGet, "http://plex.local:32400/library/sections",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "plex-token", req.Header.Get("X-Plex-Token"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"MediaContainer": map[string]any{
					"Directory": []map[string]any{
						{"key": "1", "title": "Movies", "type": "movie"},
						{"key": "2", "title": "TV Shows", "type": "show"},
					},
				},
			})
		})
}

func TestLibraries(t *testing.T) {
	client := newTestClient(t)
	registerSections(t)

	libraries, err := client.Libraries(context.Background())
	require.NoError(t, err)
	require.Len(t, libraries, 2)
	assert.Equal(t, "Movies", libraries[0].Title)
}

func TestScanAll(t *testing.T) {
	client := newTestClient(t)
	registerSections(t)

	httpmock.RegisterResponder(http.MethodGet, "http://plex.local:32400/library/sections/1/refresh",
		httpmock.NewStringResponder(http.StatusOK, ""))
	httpmock.RegisterResponder(http.MethodGet, "http://plex.local:32400/library/sections/2/refresh",
		httpmock.NewStringResponder(http.StatusOK, ""))

	scanned, err := client.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, scanned)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET http://plex.local:32400/library/sections/1/refresh"])
	assert.Equal(t, 1, info["GET http://plex.local:32400/library/sections/2/refresh"])
}

func TestScanAllUnauthorized(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "http://plex.local:32400/library/sections",
		httpmock.NewStringResponder(http.StatusUnauthorized, "unauthorized"))

	_, err := client.ScanAll(context.Background())
	require.Error(t, err)
}
