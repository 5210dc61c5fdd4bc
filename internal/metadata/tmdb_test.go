package metadata

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client := New("tmdb-key")
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestGetMovieCachesResult(t *testing.T) {
	client := newTestClient(t)

	url := "https://api.themoviedb.org/3/movie/603?api_key=tmdb-key"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"id": 603, "title": "The Matrix", "release_date": "1999-03-31",
			"poster_path": "/poster.jpg",
		}))

	first, err := client.GetMovie(context.Background(), 603)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", first.Title)
	assert.Equal(t, "https://image.tmdb.org/t/p/original/poster.jpg", first.PosterURL())

	second, err := client.GetMovie(context.Background(), 603)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+url])
}

func TestGetMovieNotFound(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "https://api.themoviedb.org/3/movie/1?api_key=tmdb-key",
		httpmock.NewStringResponder(http.StatusNotFound, `{"status_message":"not found"}`))

	_, err := client.GetMovie(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestEmptyArtworkPaths(t *testing.T) {
	details := &MovieDetails{}
	assert.Empty(t, details.PosterURL())
	assert.Empty(t, details.BackdropURL())
}
