package overseerr

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

	client, err := New(&conf.OverseerrSettings{
		BaseURL: "http://overseerr.local:5055/",
		APIKey:  "test-key",
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

func TestGetUsers(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "http://overseerr.local:5055/api/v1/user?take=999",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-key", req.Header.Get("X-Api-Key"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"pageInfo": map[string]any{"pages": 1, "results": 2},
				"results": []map[string]any{
					{"id": 1, "plexUsername": "Alice Smith", "discordId": "111"},
					{"id": 2, "plexUsername": "bob", "discordId": ""},
				},
			})
		})

	users, err := client.GetUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice Smith", users[0].PlexUsername)
	assert.Equal(t, "111", users[0].DiscordID)
	assert.Empty(t, users[1].DiscordID)
}

func TestGetUsersServerError(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "http://overseerr.local:5055/api/v1/user?take=999",
		httpmock.NewStringResponder(http.StatusUnauthorized, "invalid api key"))

	_, err := client.GetUsers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	_, err := New(&conf.OverseerrSettings{APIKey: "k"})
	require.Error(t, err)
}
