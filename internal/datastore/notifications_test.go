package datastore

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestStore opens a throwaway SQLite database with the full schema.
func newTestStore(t *testing.T) *DataStore {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, performAutoMigration(db, false, "SQLite", dsn))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return &DataStore{DB: db}
}

func episodeNotification(title string) *Notification {
	return &Notification{
		Type:          TypeEpisode,
		Title:         title,
		Year:          2024,
		MediaType:     "episode",
		SeasonNumber:  1,
		EpisodeNumber: 3,
		EpisodeTitle:  "Pilot",
		Quality:       "WEBDL-1080p",
	}
}

func TestSaveNotificationLinksRecipients(t *testing.T) {
	ds := newTestStore(t)

	id, err := ds.SaveNotification(episodeNotification("Example Show"), []Recipient{
		{DiscordUserID: "U1", PlexUsername: "alice"},
		{DiscordUserID: "U2", PlexUsername: "bob"},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	var links []UserNotification
	require.NoError(t, ds.DB.Where("notification_id = ?", id).Find(&links).Error)
	assert.Len(t, links, 2)

	count, err := ds.GetUserNotificationCount("U1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSaveNotificationDeduplicatesRecipients(t *testing.T) {
	ds := newTestStore(t)

	id, err := ds.SaveNotification(episodeNotification("Example Show"), []Recipient{
		{DiscordUserID: "U1", PlexUsername: "alice"},
		{DiscordUserID: "U1", PlexUsername: "alice"},
	})
	require.NoError(t, err)

	var links []UserNotification
	require.NoError(t, ds.DB.Where("notification_id = ?", id).Find(&links).Error)
	assert.Len(t, links, 1)

	count, err := ds.GetUserNotificationCount("U1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUserCountsIncrementAcrossEvents(t *testing.T) {
	ds := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := ds.SaveNotification(episodeNotification("Example Show"), []Recipient{
			{DiscordUserID: "U1", PlexUsername: "alice"},
		})
		require.NoError(t, err)
	}
	_, err := ds.SaveNotification(episodeNotification("Other Show"), []Recipient{
		{DiscordUserID: "U2", PlexUsername: "bob"},
	})
	require.NoError(t, err)

	counts, err := ds.GetUserNotificationCounts()
	require.NoError(t, err)
	require.Len(t, counts, 2)

	// Ordered by count descending.
	assert.Equal(t, "U1", counts[0].DiscordUserID)
	assert.Equal(t, 3, counts[0].NotificationCount)
	assert.Equal(t, "U2", counts[1].DiscordUserID)
	assert.Equal(t, 1, counts[1].NotificationCount)
}

func TestEpisodeDetailsRoundTrip(t *testing.T) {
	ds := newTestStore(t)

	details := []json.RawMessage{
		json.RawMessage(`{"seasonNumber":1,"episodeNumber":1,"title":"One"}`),
		json.RawMessage(`{"seasonNumber":1,"episodeNumber":2,"title":"Two"}`),
		json.RawMessage(`{"seasonNumber":1,"episodeNumber":3,"title":"Three"}`),
	}

	notification := episodeNotification("Example Show")
	require.NoError(t, notification.SetEpisodes(details))

	id, err := ds.SaveNotification(notification, nil)
	require.NoError(t, err)

	var stored Notification
	require.NoError(t, ds.DB.First(&stored, id).Error)
	assert.Equal(t, 3, stored.EpisodeCount)

	episodes, err := stored.Episodes()
	require.NoError(t, err)
	assert.Len(t, episodes, 3)
	assert.JSONEq(t, string(details[1]), string(episodes[1]))
}

func TestGetRecentNotificationsWindow(t *testing.T) {
	ds := newTestStore(t)

	old := episodeNotification("Old Show")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	_, err := ds.SaveNotification(old, nil)
	require.NoError(t, err)

	_, err = ds.SaveNotification(episodeNotification("Fresh Show"), nil)
	require.NoError(t, err)

	recent, err := ds.GetRecentNotifications(24*time.Hour, 100)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Fresh Show", recent[0].Title)
}

func TestGetUserRecentNotifications(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.SaveNotification(episodeNotification("For Alice"), []Recipient{
		{DiscordUserID: "U1", PlexUsername: "alice"},
	})
	require.NoError(t, err)
	_, err = ds.SaveNotification(episodeNotification("For Bob"), []Recipient{
		{DiscordUserID: "U2", PlexUsername: "bob"},
	})
	require.NoError(t, err)

	aliceNotifications, err := ds.GetUserRecentNotifications("U1", 24*time.Hour, 50)
	require.NoError(t, err)
	require.Len(t, aliceNotifications, 1)
	assert.Equal(t, "For Alice", aliceNotifications[0].Title)

	none, err := ds.GetUserRecentNotifications("U3", 24*time.Hour, 50)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetUserNotificationCountUnknownUser(t *testing.T) {
	ds := newTestStore(t)

	count, err := ds.GetUserNotificationCount("nobody")
	require.NoError(t, err)
	assert.Zero(t, count)
}
