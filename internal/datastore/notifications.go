// notifications.go: database operations for notification history and
// per-user delivery counts. The store is append-only plus counter increment:
// no update or delete operations are exposed.
package datastore

import (
	"time"

	"github.com/arrbiter/arrbiter/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveNotification inserts a notification record and, for each recipient,
// a user_notifications link plus an upsert of the per-user counter. All rows
// for one call are written in a single transaction. Returns the generated
// record id.
func (ds *DataStore) SaveNotification(notification *Notification, recipients []Recipient) (uint, error) {
	if notification == nil {
		return 0, validationError("notification cannot be nil", "notification", nil)
	}
	if notification.Type == "" {
		return 0, validationError("notification type cannot be empty", "type", "")
	}

	now := time.Now()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = now
	}
	if notification.EpisodeCount == 0 {
		notification.EpisodeCount = 1
	}

	// Recipients are a set: collapse duplicates so the unique constraint on
	// (notification_id, discord_user_id) can never trip on caller input.
	unique := make(map[string]Recipient, len(recipients))
	for _, r := range recipients {
		if r.DiscordUserID == "" {
			continue
		}
		if _, seen := unique[r.DiscordUserID]; !seen {
			unique[r.DiscordUserID] = r
		}
	}

	tx := ds.DB.Begin()
	if tx.Error != nil {
		return 0, dbError(tx.Error, "save_notification", errors.PriorityHigh,
			"action", "begin_transaction")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(notification).Error; err != nil {
		tx.Rollback()
		return 0, dbError(err, "save_notification", errors.PriorityHigh,
			"title", notification.Title,
			"table", "notifications")
	}

	for _, recipient := range unique {
		link := UserNotification{
			NotificationID: notification.ID,
			DiscordUserID:  recipient.DiscordUserID,
			PlexUsername:   recipient.PlexUsername,
			NotifiedAt:     now,
		}
		if err := tx.Create(&link).Error; err != nil {
			tx.Rollback()
			return 0, dbError(err, "save_notification", errors.PriorityHigh,
				"discord_user_id", recipient.DiscordUserID,
				"table", "user_notifications")
		}

		// Upsert-with-increment keeps the counter atomic under concurrent
		// batches; a read-then-write here could lose increments.
		count := UserNotificationCount{
			DiscordUserID:      recipient.DiscordUserID,
			PlexUsername:       recipient.PlexUsername,
			NotificationCount:  1,
			LastNotificationAt: now,
			UpdatedAt:          now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "discord_user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"notification_count":   gorm.Expr("notification_count + 1"),
				"last_notification_at": now,
				"updated_at":           now,
			}),
		}).Create(&count).Error
		if err != nil {
			tx.Rollback()
			return 0, dbError(err, "save_notification", errors.PriorityHigh,
				"discord_user_id", recipient.DiscordUserID,
				"table", "user_notification_counts")
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, dbError(err, "save_notification", errors.PriorityHigh,
			"action", "commit_transaction")
	}

	return notification.ID, nil
}

// GetRecentNotifications returns notifications created within the window,
// newest first, capped at limit.
func (ds *DataStore) GetRecentNotifications(window time.Duration, limit int) ([]Notification, error) {
	var notifications []Notification
	cutoff := time.Now().Add(-window)

	err := ds.DB.Where("created_at > ?", cutoff).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, dbError(err, "get_recent_notifications", errors.PriorityMedium,
			"window", window.String())
	}

	return notifications, nil
}

// GetUserNotificationCounts returns all recipients ordered by notification
// count descending, then by most recent delivery.
func (ds *DataStore) GetUserNotificationCounts() ([]UserNotificationCount, error) {
	var counts []UserNotificationCount

	err := ds.DB.Order("notification_count DESC, last_notification_at DESC").
		Find(&counts).Error
	if err != nil {
		return nil, dbError(err, "get_user_notification_counts", errors.PriorityMedium,
			"table", "user_notification_counts")
	}

	return counts, nil
}

// GetUserNotificationCount returns the cumulative count for one recipient,
// zero when the recipient has never been notified.
func (ds *DataStore) GetUserNotificationCount(discordUserID string) (int, error) {
	if discordUserID == "" {
		return 0, validationError("discord user id cannot be empty", "discord_user_id", "")
	}

	var count UserNotificationCount
	err := ds.DB.Where("discord_user_id = ?", discordUserID).First(&count).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, dbError(err, "get_user_notification_count", errors.PriorityMedium,
			"discord_user_id", discordUserID)
	}

	return count.NotificationCount, nil
}

// GetUserRecentNotifications returns notifications linked to the recipient
// within the window, newest first.
func (ds *DataStore) GetUserRecentNotifications(discordUserID string, window time.Duration, limit int) ([]Notification, error) {
	if discordUserID == "" {
		return nil, validationError("discord user id cannot be empty", "discord_user_id", "")
	}

	var notifications []Notification
	cutoff := time.Now().Add(-window)

	err := ds.DB.
		Joins("INNER JOIN user_notifications ON user_notifications.notification_id = notifications.id").
		Where("user_notifications.discord_user_id = ? AND notifications.created_at > ?", discordUserID, cutoff).
		Order("notifications.created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, dbError(err, "get_user_recent_notifications", errors.PriorityMedium,
			"discord_user_id", discordUserID,
			"window", window.String())
	}

	return notifications, nil
}
