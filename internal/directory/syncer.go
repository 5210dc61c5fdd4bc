package directory

import (
	"context"
	"log/slog"
	"time"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/errors"
	"github.com/arrbiter/arrbiter/internal/logging"
	"github.com/arrbiter/arrbiter/internal/overseerr"
)

// UserSource lists users that carry a Plex username and Discord ID.
type UserSource interface {
	GetUsers(ctx context.Context) ([]overseerr.User, error)
}

// Syncer refreshes a Directory from Overseerr on a fixed interval. A failed
// refresh keeps the previous mapping in place.
type Syncer struct {
	directory *Directory
	source    UserSource
	interval  time.Duration
	static    map[string]string
	logger    *slog.Logger
}

// NewSyncer wires a directory to its Overseerr source. The configured user
// mappings decide which upstream users become recipients: an Overseerr user
// whose normalized Plex username has no mapping is dropped.
func NewSyncer(directory *Directory, source UserSource, settings *conf.Settings) *Syncer {
	interval := time.Duration(settings.Overseerr.RefreshIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	static := make(map[string]string, len(settings.UserMappings))
	for username, discordID := range settings.UserMappings {
		static[Normalize(username)] = discordID
	}
	return &Syncer{
		directory: directory,
		source:    source,
		interval:  interval,
		static:    static,
		logger:    logging.ForService("directory"),
	}
}

// Sync performs one refresh. The new mapping replaces the old one wholesale
// only when the source call succeeds. Membership follows the upstream user
// list: a mapped user that disappears from Overseerr drops out of the
// directory on the next refresh.
func (s *Syncer) Sync(ctx context.Context) error {
	entries := make(map[string]Entry)

	if s.source == nil {
		for username, discordID := range s.static {
			if username == "" || discordID == "" {
				continue
			}
			entries[username] = Entry{
				DiscordUserID:        discordID,
				OriginalPlexUsername: username,
			}
		}
		s.directory.Replace(entries)
		s.logger.Info("User directory refreshed from static mappings", "users", len(entries))
		return nil
	}

	users, err := s.source.GetUsers(ctx)
	if err != nil {
		return errors.New(err).
			Component("directory").
			Category(errors.CategoryNetwork).
			Context("operation", "sync_users").
			Build()
	}
	unmapped := 0
	for _, user := range users {
		if user.PlexUsername == "" {
			continue
		}
		key := Normalize(user.PlexUsername)
		discordID, ok := s.static[key]
		if !ok || discordID == "" {
			unmapped++
			continue
		}
		entries[key] = Entry{
			DiscordUserID:        discordID,
			OriginalPlexUsername: user.PlexUsername,
		}
	}
	if unmapped > 0 {
		s.logger.Debug("Dropped users without a configured mapping", "count", unmapped)
	}

	s.directory.Replace(entries)
	s.logger.Info("User directory refreshed", "users", len(entries))
	return nil
}

// Run refreshes the directory until the context is cancelled. The first
// refresh happens immediately.
func (s *Syncer) Run(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		s.logger.Warn("Initial user directory sync failed, keeping previous mapping", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("User directory syncer stopped")
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.Warn("User directory sync failed, keeping previous mapping", "error", err)
			}
		}
	}
}
