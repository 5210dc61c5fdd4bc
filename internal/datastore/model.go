// model.go this code defines the data model for notification persistence
package datastore

import (
	"encoding/json"
	"time"
)

// Notification types stored in the notifications table.
const (
	TypeEpisode = "episode"
	TypeMovie   = "movie"
	TypeBook    = "book"
	TypeTest    = "test"
)

// Notification represents one delivered (or attempted) notification.
// Records are append-only: created exactly once per dispatch decision and
// never updated or deleted.
type Notification struct {
	ID            uint   `gorm:"primaryKey"`
	Type          string `gorm:"not null"` // episode, movie, book or test
	Title         string `gorm:"not null"`
	Year          int
	MediaType     string
	SeasonNumber  int
	EpisodeNumber int
	EpisodeTitle  string
	Quality       string
	PosterURL     string
	FanartURL     string
	BackdropURL   string
	EpisodeCount  int       `gorm:"default:1"`
	EpisodesJSON  string    `gorm:"type:text"` // per-episode detail blobs, stored verbatim
	CreatedAt     time.Time `gorm:"index:idx_notifications_created_at,sort:desc;not null"`

	Recipients []UserNotification `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE"`
}

// SetEpisodes stores the per-episode detail blobs verbatim and keeps
// EpisodeCount equal to the batch size, or 1 when there is no batch.
func (n *Notification) SetEpisodes(episodes []json.RawMessage) error {
	if len(episodes) == 0 {
		n.EpisodeCount = 1
		n.EpisodesJSON = ""
		return nil
	}
	data, err := json.Marshal(episodes)
	if err != nil {
		return err
	}
	n.EpisodesJSON = string(data)
	n.EpisodeCount = len(episodes)
	return nil
}

// Episodes returns the stored per-episode detail blobs, or nil when the
// record covers a single item without batch details.
func (n *Notification) Episodes() ([]json.RawMessage, error) {
	if n.EpisodesJSON == "" {
		return nil, nil
	}
	var episodes []json.RawMessage
	if err := json.Unmarshal([]byte(n.EpisodesJSON), &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// UserNotificationCount aggregates notifications per Discord recipient.
// One row per recipient, upserted on every delivery.
type UserNotificationCount struct {
	ID                 uint   `gorm:"primaryKey"`
	DiscordUserID      string `gorm:"uniqueIndex;not null"`
	PlexUsername       string
	NotificationCount  int `gorm:"default:0"`
	LastNotificationAt time.Time
	UpdatedAt          time.Time
}

// UserNotification links a Notification to one notified recipient.
// A recipient is linked at most once per notification.
type UserNotification struct {
	ID             uint   `gorm:"primaryKey"`
	NotificationID uint   `gorm:"uniqueIndex:idx_user_notifications_pair;index;not null"`
	DiscordUserID  string `gorm:"uniqueIndex:idx_user_notifications_pair;index:idx_user_notifications_user_id;not null"`
	PlexUsername   string
	NotifiedAt     time.Time `gorm:"not null"`
}

// Recipient identifies a Discord user to record a delivery against.
type Recipient struct {
	DiscordUserID string
	PlexUsername  string
}
