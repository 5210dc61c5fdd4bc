package metadata

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBooksClient(t *testing.T) *BooksClient {
	t.Helper()
	client := NewBooksClient("")
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func booksResponder() httpmock.Responder {
	return httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
		"items": []map[string]any{
			{
				"id": "vol1",
				"volumeInfo": map[string]any{
					"title":         "The Hobbit",
					"authors":       []string{"J.R.R. Tolkien"},
					"publishedDate": "1937",
				},
			},
			{
				"id": "vol2",
				"volumeInfo": map[string]any{
					"title": "The Hobbit: An Unexpected Journey",
				},
			},
		},
	})
}

func TestSearchBooksCachesResults(t *testing.T) {
	client := newTestBooksClient(t)

	url := "https://www.googleapis.com/books/v1/volumes?q=the+hobbit&maxResults=5"
	httpmock.RegisterResponder(http.MethodGet, url, booksResponder())

	first, err := client.SearchBooks(context.Background(), "the hobbit", "")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "The Hobbit", first[0].Title())
	assert.Equal(t, "J.R.R. Tolkien", first[0].AuthorLine())
	assert.Equal(t, "Unknown author", first[1].AuthorLine())

	second, err := client.SearchBooks(context.Background(), "the hobbit", "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+url])
}

func TestSearchBooksNarrowsByAuthor(t *testing.T) {
	client := newTestBooksClient(t)

	url := "https://www.googleapis.com/books/v1/volumes?q=intitle%3Athe+hobbit%2Binauthor%3Atolkien&maxResults=5"
	httpmock.RegisterResponder(http.MethodGet, url, booksResponder())

	results, err := client.SearchBooks(context.Background(), "the hobbit", "tolkien")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchBooksUpstreamError(t *testing.T) {
	client := newTestBooksClient(t)

	httpmock.RegisterResponder(http.MethodGet, `=~volumes`,
		httpmock.NewStringResponder(http.StatusTooManyRequests, `{"error":"quota"}`))

	_, err := client.SearchBooks(context.Background(), "anything", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
