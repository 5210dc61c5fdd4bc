package realdebrid

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/dispatch"
)

func TestGetAccount(t *testing.T) {
	client := New("rd-token")
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodGet, "https://api.real-debrid.com/rest/1.0/user",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer rd-token", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"id": 1, "username": "homelab", "type": "premium",
				"premium": 864000, "expiration": "2026-09-07T12:00:00.000Z",
			})
		})

	account, err := client.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "premium", account.Type)

	expires, err := account.ExpiresAt()
	require.NoError(t, err)
	assert.Equal(t, 2026, expires.Year())
}

func TestGetAccountBadToken(t *testing.T) {
	client := New("bad")
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodGet, "https://api.real-debrid.com/rest/1.0/user",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"bad_token"}`))

	_, err := client.GetAccount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

type fakeAccountSource struct {
	account *Account
	err     error
}

func (f *fakeAccountSource) GetAccount(context.Context) (*Account, error) {
	return f.account, f.err
}

type captureDispatcher struct {
	broadcasts []dispatch.Message
}

func (c *captureDispatcher) Broadcast(_ context.Context, msg dispatch.Message) error {
	c.broadcasts = append(c.broadcasts, msg)
	return nil
}

func (c *captureDispatcher) DirectMessage(context.Context, string, dispatch.Message) error {
	return dispatch.ErrDirectMessagesUnsupported
}

func accountExpiring(in time.Duration, now time.Time) *Account {
	return &Account{
		Type:       "premium",
		Expiration: now.Add(in).Format(time.RFC3339),
	}
}

func newTestWatcher(source AccountSource, now time.Time) (*Watcher, *captureDispatcher) {
	dispatcher := &captureDispatcher{}
	w := NewWatcher(source, dispatcher, &conf.RealDebridSettings{WarnDays: 7})
	w.now = func() time.Time { return now }
	return w, dispatcher
}

func TestCheckWarnsInsideWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	w, dispatcher := newTestWatcher(&fakeAccountSource{account: accountExpiring(3*24*time.Hour, now)}, now)

	require.NoError(t, w.Check(context.Background()))
	require.Len(t, dispatcher.broadcasts, 1)
	assert.Contains(t, dispatcher.broadcasts[0].Body, "3 day(s)")
}

func TestCheckQuietOutsideWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	w, dispatcher := newTestWatcher(&fakeAccountSource{account: accountExpiring(30*24*time.Hour, now)}, now)

	require.NoError(t, w.Check(context.Background()))
	assert.Empty(t, dispatcher.broadcasts)
}

func TestCheckReportsExpired(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	w, dispatcher := newTestWatcher(&fakeAccountSource{account: accountExpiring(-48*time.Hour, now)}, now)

	require.NoError(t, w.Check(context.Background()))
	require.Len(t, dispatcher.broadcasts, 1)
	assert.Contains(t, dispatcher.broadcasts[0].Title, "expired")
}
