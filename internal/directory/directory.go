// Package directory maintains the mapping from Plex usernames to Discord
// user IDs and resolves *arr series tags against it.
package directory

import (
	"strings"
	"sync/atomic"

	"github.com/arrbiter/arrbiter/internal/datastore"
)

// Entry is one directory member keyed by normalized Plex username.
type Entry struct {
	DiscordUserID string
	// OriginalPlexUsername keeps the display form before normalization.
	OriginalPlexUsername string
}

// Directory holds the current username mapping. Lookups read an immutable
// snapshot, so a sync can replace the whole mapping without locking readers.
type Directory struct {
	snapshot atomic.Pointer[map[string]Entry]
}

// New returns an empty directory.
func New() *Directory {
	d := &Directory{}
	empty := make(map[string]Entry)
	d.snapshot.Store(&empty)
	return d
}

// Normalize lowercases a Plex username and strips all spaces, matching how
// usernames are embedded in series tags.
func Normalize(username string) string {
	return strings.ReplaceAll(strings.ToLower(username), " ", "")
}

// Replace atomically swaps in a new mapping. Entries with an empty username
// or Discord ID are skipped.
func (d *Directory) Replace(entries map[string]Entry) {
	next := make(map[string]Entry, len(entries))
	for username, entry := range entries {
		key := Normalize(username)
		if key == "" || entry.DiscordUserID == "" {
			continue
		}
		next[key] = entry
	}
	d.snapshot.Store(&next)
}

// Len reports the number of mapped users.
func (d *Directory) Len() int {
	return len(*d.snapshot.Load())
}

// Entries returns a copy of the current mapping keyed by normalized username.
func (d *Directory) Entries() map[string]Entry {
	current := *d.snapshot.Load()
	out := make(map[string]Entry, len(current))
	for k, v := range current {
		out[k] = v
	}
	return out
}

// Resolve matches series tags against the directory. A user matches when
// their normalized username appears as a substring of any lowercased tag;
// each user is counted at most once regardless of how many tags match.
func (d *Directory) Resolve(tags []string) []datastore.Recipient {
	current := *d.snapshot.Load()
	if len(current) == 0 || len(tags) == 0 {
		return nil
	}

	lowered := make([]string, 0, len(tags))
	for _, tag := range tags {
		lowered = append(lowered, strings.ToLower(tag))
	}

	var recipients []datastore.Recipient
	for username, entry := range current {
		for _, tag := range lowered {
			if strings.Contains(tag, username) {
				recipients = append(recipients, datastore.Recipient{
					DiscordUserID: entry.DiscordUserID,
					PlexUsername:  entry.OriginalPlexUsername,
				})
				break
			}
		}
	}
	return recipients
}
