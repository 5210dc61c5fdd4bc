// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Interface abstracts the underlying database implementation and defines the
// operations the notification pipeline needs.
type Interface interface {
	Open() error
	Close() error
	SaveNotification(notification *Notification, recipients []Recipient) (uint, error)
	GetRecentNotifications(window time.Duration, limit int) ([]Notification, error)
	GetUserNotificationCounts() ([]UserNotificationCount, error)
	GetUserNotificationCount(discordUserID string) (int, error)
	GetUserRecentNotifications(discordUserID string, window time.Duration, limit int) ([]Notification, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// New creates a new datastore instance based on the enabled output backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{logger: logging.ForService("datastore")},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{logger: logging.ForService("datastore")},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// createGormLogger returns a GORM logger that only reports slow queries and
// errors, keeping normal operation quiet.
func createGormLogger() gormlogger.Interface {
	return gormlogger.Default.LogMode(gormlogger.Warn)
}

// performAutoMigration migrates the schema for all notification tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Notification{}, &UserNotificationCount{}, &UserNotification{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		logging.Debug("Database schema migrated", "type", dbType, "connection", connectionInfo)
	}
	return nil
}

// Close closes the underlying SQL database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}
