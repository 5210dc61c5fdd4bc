package realdebrid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/dispatch"
	"github.com/arrbiter/arrbiter/internal/logging"
)

const checkInterval = 24 * time.Hour

// AccountSource fetches the current account state.
type AccountSource interface {
	GetAccount(ctx context.Context) (*Account, error)
}

// Watcher checks premium expiry once a day and broadcasts a warning when
// it falls within the configured window.
type Watcher struct {
	source     AccountSource
	dispatcher dispatch.Dispatcher
	warnDays   int
	now        func() time.Time
	logger     *slog.Logger
}

// NewWatcher wires the expiry check to the notification channel.
func NewWatcher(source AccountSource, dispatcher dispatch.Dispatcher, settings *conf.RealDebridSettings) *Watcher {
	warnDays := settings.WarnDays
	if warnDays <= 0 {
		warnDays = 7
	}
	return &Watcher{
		source:     source,
		dispatcher: dispatcher,
		warnDays:   warnDays,
		now:        time.Now,
		logger:     logging.ForService("realdebrid"),
	}
}

// Check performs one expiry evaluation. Failures are returned for the
// caller to log; they never stop the watch loop.
func (w *Watcher) Check(ctx context.Context) error {
	account, err := w.source.GetAccount(ctx)
	if err != nil {
		return err
	}

	daysLeft, err := account.DaysLeft(w.now())
	if err != nil {
		return err
	}

	switch {
	case daysLeft < 0:
		w.logger.Warn("Real-Debrid premium has expired", "days", daysLeft)
		return w.dispatcher.Broadcast(ctx, dispatch.Message{
			Title: "Real-Debrid expired",
			Body:  "The Real-Debrid premium subscription has expired. Downloads will fail until it is renewed.",
		})
	case daysLeft <= w.warnDays:
		w.logger.Warn("Real-Debrid premium expiring soon", "days_left", daysLeft)
		return w.dispatcher.Broadcast(ctx, dispatch.Message{
			Title: "Real-Debrid expiring soon",
			Body:  fmt.Sprintf("Real-Debrid premium expires in %d day(s). Renew it to avoid interruptions.", daysLeft),
		})
	default:
		w.logger.Debug("Real-Debrid premium healthy", "days_left", daysLeft)
		return nil
	}
}

// Run checks immediately and then daily until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if err := w.Check(ctx); err != nil {
		w.logger.Warn("Real-Debrid expiry check failed", "error", err)
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Real-Debrid watcher stopped")
			return
		case <-ticker.C:
			if err := w.Check(ctx); err != nil {
				w.logger.Warn("Real-Debrid expiry check failed", "error", err)
			}
		}
	}
}
