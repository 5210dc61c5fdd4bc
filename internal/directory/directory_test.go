package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/overseerr"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alicesmith", Normalize("Alice Smith"))
	assert.Equal(t, "bob", Normalize("BOB"))
	assert.Equal(t, "", Normalize("   "))
}

func TestResolveSubstringMatch(t *testing.T) {
	d := New()
	d.Replace(map[string]Entry{
		"alice": {DiscordUserID: "111", OriginalPlexUsername: "Alice"},
		"bob":   {DiscordUserID: "222", OriginalPlexUsername: "bob"},
	})

	recipients := d.Resolve([]string{"ALICE-request", "4k"})
	require.Len(t, recipients, 1)
	assert.Equal(t, "111", recipients[0].DiscordUserID)
	assert.Equal(t, "Alice", recipients[0].PlexUsername)
}

func TestResolveUsernameMustBeInsideTag(t *testing.T) {
	d := New()
	d.Replace(map[string]Entry{
		"alicex": {DiscordUserID: "333", OriginalPlexUsername: "alicex"},
	})

	// "alicex" is not a substring of "alice", so nothing matches.
	assert.Empty(t, d.Resolve([]string{"alice"}))
}

func TestResolveCountsUserOnce(t *testing.T) {
	d := New()
	d.Replace(map[string]Entry{
		"alice": {DiscordUserID: "111", OriginalPlexUsername: "alice"},
	})

	recipients := d.Resolve([]string{"alice", "alice-requests"})
	assert.Len(t, recipients, 1)
}

func TestResolveEmptyDirectory(t *testing.T) {
	assert.Empty(t, New().Resolve([]string{"alice"}))
}

func TestReplaceSkipsUnlinkedEntries(t *testing.T) {
	d := New()
	d.Replace(map[string]Entry{
		"alice": {DiscordUserID: "", OriginalPlexUsername: "alice"},
		"bob":   {DiscordUserID: "222", OriginalPlexUsername: "bob"},
	})
	assert.Equal(t, 1, d.Len())
}

type fakeSource struct {
	users []overseerr.User
	err   error
}

func (f *fakeSource) GetUsers(context.Context) ([]overseerr.User, error) {
	return f.users, f.err
}

func syncerSettings() *conf.Settings {
	return &conf.Settings{
		Overseerr: conf.OverseerrSettings{RefreshIntervalMinutes: 60},
		UserMappings: map[string]string{
			"Alice Smith": "111",
			"Carol D":     "999",
		},
	}
}

func TestSyncResolvesRecipientsFromConfiguredMappings(t *testing.T) {
	d := New()
	source := &fakeSource{users: []overseerr.User{
		{PlexUsername: "Alice Smith", DiscordID: "222"},
	}}

	s := NewSyncer(d, source, syncerSettings())
	require.NoError(t, s.Sync(context.Background()))

	entries := d.Entries()
	require.Len(t, entries, 1)
	// The recipient identity comes from the mapping, not from Overseerr.
	assert.Equal(t, "111", entries["alicesmith"].DiscordUserID)
	assert.Equal(t, "Alice Smith", entries["alicesmith"].OriginalPlexUsername)
}

func TestSyncDropsUsersWithoutMapping(t *testing.T) {
	d := New()
	source := &fakeSource{users: []overseerr.User{
		{PlexUsername: "dave", DiscordID: "777"},
	}}

	s := NewSyncer(d, source, &conf.Settings{})
	require.NoError(t, s.Sync(context.Background()))

	// A linked Overseerr account alone is not enough to become a recipient.
	assert.Equal(t, 0, d.Len())
}

func TestSyncRemovedUpstreamUserDisappears(t *testing.T) {
	d := New()
	source := &fakeSource{users: []overseerr.User{
		{PlexUsername: "Carol D"},
	}}

	s := NewSyncer(d, source, syncerSettings())
	require.NoError(t, s.Sync(context.Background()))
	require.Equal(t, 1, d.Len())

	source.users = nil
	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, 0, d.Len())
}

func TestSyncWithoutSourceUsesStaticMappings(t *testing.T) {
	d := New()
	s := NewSyncer(d, nil, syncerSettings())
	require.NoError(t, s.Sync(context.Background()))

	entries := d.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "999", entries["carold"].DiscordUserID)
}

func TestSyncFailureKeepsPreviousMapping(t *testing.T) {
	d := New()
	d.Replace(map[string]Entry{
		"alice": {DiscordUserID: "111", OriginalPlexUsername: "alice"},
	})

	source := &fakeSource{err: errors.New("overseerr down")}
	s := NewSyncer(d, source, &conf.Settings{})

	require.Error(t, s.Sync(context.Background()))
	assert.Equal(t, 1, d.Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := New()
	s := NewSyncer(d, &fakeSource{}, syncerSettings())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("syncer did not stop after cancel")
	}
}
