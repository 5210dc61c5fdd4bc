package dispatch

import (
	"context"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/arrbiter/arrbiter/internal/errors"
)

// ShoutrrrDispatcher broadcasts through one or more shoutrrr URLs. It is
// the fallback used when no Discord bot token is configured; it cannot
// address individual recipients.
type ShoutrrrDispatcher struct {
	urls   []string
	sender *router.ServiceRouter
}

// NewShoutrrrDispatcher validates the URLs and builds a single sender for
// all of them.
func NewShoutrrrDispatcher(urls []string, timeout time.Duration) (*ShoutrrrDispatcher, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one shoutrrr URL is required").
			Component("dispatch").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(err).
			Component("dispatch").
			Category(errors.CategoryConfiguration).
			Context("urls", len(urls)).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrDispatcher{
		urls:   slices.Clone(urls),
		sender: sender,
	}, nil
}

// Broadcast sends the message to every configured URL. The first per-URL
// error is returned; remaining URLs are still attempted by the router.
func (d *ShoutrrrDispatcher) Broadcast(ctx context.Context, msg Message) error {
	_ = ctx // the router handles its own timeouts

	params := stypes.Params{}
	if msg.Title != "" {
		params.SetTitle(msg.Title)
	}

	errs := d.sender.Send(msg.Body, &params)
	for _, err := range errs {
		if err != nil {
			return errors.New(err).
				Component("dispatch").
				Category(errors.CategoryDispatch).
				Context("operation", "broadcast").
				Build()
		}
	}
	return nil
}

// DirectMessage is unsupported; callers fall back to broadcast-only
// behavior.
func (d *ShoutrrrDispatcher) DirectMessage(_ context.Context, _ string, _ Message) error {
	return ErrDirectMessagesUnsupported
}
