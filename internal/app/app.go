// Package app wires the configured components together and runs them
// until shutdown.
package app

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/arrbiter/arrbiter/internal/arr"
	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/datastore"
	"github.com/arrbiter/arrbiter/internal/directory"
	"github.com/arrbiter/arrbiter/internal/discord"
	"github.com/arrbiter/arrbiter/internal/dispatch"
	"github.com/arrbiter/arrbiter/internal/errors"
	"github.com/arrbiter/arrbiter/internal/logging"
	"github.com/arrbiter/arrbiter/internal/metadata"
	"github.com/arrbiter/arrbiter/internal/orchestrator"
	"github.com/arrbiter/arrbiter/internal/overseerr"
	"github.com/arrbiter/arrbiter/internal/plex"
	"github.com/arrbiter/arrbiter/internal/realdebrid"
	"github.com/arrbiter/arrbiter/internal/webhook"
)

// Run starts every configured component and blocks until SIGINT or
// SIGTERM. Optional collaborators that are not configured are skipped
// with a log line rather than failing startup.
func Run(settings *conf.Settings) error {
	logger := logging.ForService("app")

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close datastore", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userDirectory := directory.New()
	syncer, err := buildSyncer(userDirectory, settings, logger)
	if err != nil {
		return err
	}
	if err := syncer.Sync(ctx); err != nil {
		logger.Warn("Initial user directory sync failed", "error", err)
	}
	go syncer.Run(ctx)

	var dockerOrchestrator *orchestrator.Orchestrator
	if settings.Docker.Host != "" {
		factory, err := orchestrator.NewSSHRunnerFactory(&settings.Docker)
		if err != nil {
			return err
		}
		dockerOrchestrator = orchestrator.New(factory, &settings.Docker)
	} else {
		logger.Info("Docker host not configured, container commands unavailable")
	}

	var realdebridClient *realdebrid.Client
	if settings.RealDebrid.Enabled && settings.RealDebrid.APIKey != "" {
		realdebridClient = realdebrid.New(settings.RealDebrid.APIKey)
	}

	var plexClient *plex.Client
	if settings.Plex.URL != "" {
		plexClient, err = plex.New(&settings.Plex)
		if err != nil {
			return err
		}
	}

	dispatcher, bot, err := buildDispatcher(settings, store, dockerOrchestrator, realdebridClient, plexClient)
	if err != nil {
		return err
	}
	if bot != nil {
		if err := bot.Open(); err != nil {
			return err
		}
		defer func() {
			if err := bot.Close(); err != nil {
				logger.Warn("Failed to close Discord session", "error", err)
			}
		}()
	}

	if realdebridClient != nil {
		watcher := realdebrid.NewWatcher(realdebridClient, dispatcher, &settings.RealDebrid)
		go watcher.Run(ctx)
	}

	registerArrWebhooks(ctx, settings, logger)

	processor := webhook.NewProcessor(store, userDirectory, dispatcher, settings.Discord.DMNotificationsEnabled)
	if settings.TMDB.Enabled && settings.TMDB.APIKey != "" {
		processor.SetMovieEnricher(metadata.New(settings.TMDB.APIKey))
	}
	server := webhook.NewServer(processor, settings.Webhook.Listen)
	if settings.LogFile != "" {
		accessLogger, closeAccessLog, err := logging.NewFileLogger(settings.LogFile, "webhook-access", slog.LevelInfo)
		if err != nil {
			logger.Warn("Access logging disabled", "error", err)
		} else {
			defer func() {
				if err := closeAccessLog(); err != nil {
					logger.Warn("Failed to close access log", "error", err)
				}
			}()
			server.SetAccessLogger(accessLogger)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	logger.Info("arrbiter started", "listen", settings.Webhook.Listen)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildSyncer(userDirectory *directory.Directory, settings *conf.Settings, logger *slog.Logger) (*directory.Syncer, error) {
	var source directory.UserSource
	if settings.Overseerr.Enabled {
		client, err := overseerr.New(&settings.Overseerr)
		if err != nil {
			return nil, err
		}
		source = client
	} else {
		logger.Info("Overseerr not configured, using static user mappings only")
	}
	return directory.NewSyncer(userDirectory, source, settings), nil
}

// buildDispatcher prefers the Discord bot; without a token it falls back
// to shoutrrr broadcast URLs.
func buildDispatcher(settings *conf.Settings, store datastore.Interface, dockerOrchestrator *orchestrator.Orchestrator, realdebridClient *realdebrid.Client, plexClient *plex.Client) (dispatch.Dispatcher, *discord.Bot, error) {
	if settings.Discord.Token != "" {
		var accountSource realdebrid.AccountSource
		if realdebridClient != nil {
			accountSource = realdebridClient
		}
		var books discord.BookSearcher
		if settings.Books.Enabled {
			books = metadata.NewBooksClient(settings.Books.APIKey)
		}
		bot, err := discord.NewBot(&settings.Discord, &settings.Docker, discord.Deps{
			Store:        store,
			Orchestrator: dockerOrchestrator,
			RealDebrid:   accountSource,
			Plex:         plexClient,
			Books:        books,
		})
		if err != nil {
			return nil, nil, err
		}
		return bot, bot, nil
	}

	if len(settings.Discord.ShoutrrrURLs) > 0 {
		dispatcher, err := dispatch.NewShoutrrrDispatcher(settings.Discord.ShoutrrrURLs, 10*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return dispatcher, nil, nil
	}

	return nil, nil, errors.Newf("no dispatcher configured: set a Discord token or shoutrrr URLs").
		Component("app").
		Category(errors.CategoryConfiguration).
		Build()
}

// registerArrWebhooks makes sure each enabled instance points its webhook
// at this bot. Failures are logged per instance, never fatal.
func registerArrWebhooks(ctx context.Context, settings *conf.Settings, logger *slog.Logger) {
	for i := range settings.Arr {
		instance := &settings.Arr[i]
		if !instance.Enabled {
			continue
		}

		client, err := arr.NewClient(instance)
		if err != nil {
			logger.Warn("Skipping misconfigured instance", "instance", instance.Name, "error", err)
			continue
		}

		status, err := client.TestConnection(ctx)
		if err != nil {
			logger.Warn("Instance unreachable", "instance", instance.Name, "error", err)
			continue
		}
		logger.Info("Connected to instance", "instance", instance.Name, "app", status.AppName, "version", status.Version)

		if !instance.CreateWebhook {
			continue
		}
		created, err := client.EnsureWebhook(ctx, settings.Webhook.PublicURL)
		if err != nil {
			logger.Warn("Webhook registration failed", "instance", instance.Name, "error", err)
			continue
		}
		if created {
			logger.Info("Webhook registered", "instance", instance.Name)
		}
	}
}
