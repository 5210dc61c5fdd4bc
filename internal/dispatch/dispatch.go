// Package dispatch abstracts outbound notification delivery. The webhook
// processor and the watchers talk to a Dispatcher; implementations cover
// Discord and a shoutrrr broadcast fallback.
package dispatch

import (
	"context"
	"errors"
)

// ErrDirectMessagesUnsupported is reported by dispatchers that can only
// broadcast.
var ErrDirectMessagesUnsupported = errors.New("direct messages not supported by this dispatcher")

// Message is one outbound notification.
type Message struct {
	Title string
	Body  string
	// MentionUserIDs lists the recipients to address in the broadcast text.
	MentionUserIDs []string
	// ImageURL is optional artwork attached to rich renderings.
	ImageURL string
}

// Dispatcher delivers notifications to the chat platform.
type Dispatcher interface {
	// Broadcast sends to the configured notification channel.
	Broadcast(ctx context.Context, msg Message) error
	// DirectMessage sends to a single recipient. Implementations that have
	// no per-user channel report ErrDirectMessagesUnsupported.
	DirectMessage(ctx context.Context, userID string, msg Message) error
}
