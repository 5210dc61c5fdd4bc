package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arrbiter/arrbiter/internal/datastore"
	"github.com/arrbiter/arrbiter/internal/dispatch"
	"github.com/arrbiter/arrbiter/internal/errors"
	"github.com/arrbiter/arrbiter/internal/logging"
	"github.com/arrbiter/arrbiter/internal/metadata"
)

// Store is the slice of the datastore the processor needs.
type Store interface {
	SaveNotification(notification *datastore.Notification, recipients []datastore.Recipient) (uint, error)
}

// Resolver maps media tags to notification recipients.
type Resolver interface {
	Resolve(tags []string) []datastore.Recipient
}

// MovieEnricher looks up extra movie details by TMDB id.
type MovieEnricher interface {
	GetMovie(ctx context.Context, tmdbID int64) (*metadata.MovieDetails, error)
}

// Outcome is the pipeline result reported back to the webhook caller.
type Outcome struct {
	OK      bool // false means the payload was malformed
	Status  string
	Message string
}

func success(message string) Outcome {
	return Outcome{OK: true, Status: "success", Message: message}
}

func clientError(message string) Outcome {
	return Outcome{OK: false, Status: "error", Message: message}
}

// Processor runs the webhook pipeline: dedup, recipient resolution,
// dispatch and persistence. It owns the dedup cache.
type Processor struct {
	store      Store
	resolver   Resolver
	dispatcher dispatch.Dispatcher
	dmEnabled  bool
	enricher   MovieEnricher
	dedupe     *dedupeCache
	logger     *slog.Logger
}

// NewProcessor wires the pipeline. dmEnabled controls whether resolved
// recipients also receive direct messages in addition to the broadcast.
func NewProcessor(store Store, resolver Resolver, dispatcher dispatch.Dispatcher, dmEnabled bool) *Processor {
	return &Processor{
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		dmEnabled:  dmEnabled,
		dedupe:     newDedupeCache(defaultDedupeCapacity),
		logger:     logging.ForService("webhook"),
	}
}

// SetMovieEnricher enables TMDB enrichment of movie notifications.
// Enrichment failures degrade to the payload's own artwork.
func (p *Processor) SetMovieEnricher(enricher MovieEnricher) {
	p.enricher = enricher
}

// contentItem is one deliverable sub-item after payload normalization.
type contentItem struct {
	id     int64
	line   string          // human-readable reference, e.g. "S01E03 - Pilot"
	detail json.RawMessage // stored verbatim on the notification record
}

// contentEvent is the normalized form shared by the three *arr shapes.
type contentEvent struct {
	notificationType string
	mediaType        string
	parentID         int64
	title            string
	year             int
	tags             []string
	items            []contentItem
	releaseLabel     string
	quality          string
	posterURL        string
	fanartURL        string
	backdropURL      string
	seasonNumber     int
	episodeNumber    int
	episodeTitle     string
}

// ProcessSonarr handles one Sonarr webhook delivery.
func (p *Processor) ProcessSonarr(ctx context.Context, event *SonarrEvent) Outcome {
	switch event.EventType {
	case eventTest:
		return p.processTest(ctx, "sonarr")
	case eventDownload, eventEpisodeImported, eventEpisodeImportedSpaced:
	default:
		p.logger.Debug("Ignoring unhandled event type", "app", "sonarr", "event_type", event.EventType)
		return success("ignored")
	}

	if event.Series == nil || len(event.Episodes) == 0 {
		return clientError("payload missing series or episodes")
	}

	releaseLabel, quality := sonarrReleaseInfo(event)

	items := make([]contentItem, 0, len(event.Episodes))
	for _, ep := range event.Episodes {
		detail, err := json.Marshal(ep)
		if err != nil {
			return clientError("unreadable episode details")
		}
		items = append(items, contentItem{
			id:     ep.ID,
			line:   episodeLine(ep),
			detail: detail,
		})
	}

	normalized := &contentEvent{
		notificationType: datastore.TypeEpisode,
		mediaType:        "episode",
		parentID:         event.Series.ID,
		title:            event.Series.Title,
		year:             event.Series.Year,
		tags:             event.Series.AllTags(),
		items:            items,
		releaseLabel:     releaseLabel,
		quality:          quality,
		posterURL:        posterURL(event.Series.Images),
		fanartURL:        fanartURL(event.Series.Images),
		seasonNumber:     event.Episodes[0].SeasonNumber,
		episodeNumber:    event.Episodes[0].EpisodeNumber,
		episodeTitle:     event.Episodes[0].Title,
	}
	return p.processContent(ctx, normalized)
}

// ProcessRadarr handles one Radarr webhook delivery. A movie event is a
// single-item batch.
func (p *Processor) ProcessRadarr(ctx context.Context, event *RadarrEvent) Outcome {
	switch event.EventType {
	case eventTest:
		return p.processTest(ctx, "radarr")
	case eventDownload:
	default:
		p.logger.Debug("Ignoring unhandled event type", "app", "radarr", "event_type", event.EventType)
		return success("ignored")
	}

	if event.Movie == nil {
		return clientError("payload missing movie")
	}

	releaseLabel := ""
	quality := ""
	if event.Release != nil {
		releaseLabel = event.Release.ReleaseTitle
		quality = event.Release.Quality
	}
	if event.MovieFile != nil {
		if releaseLabel == "" {
			releaseLabel = event.MovieFile.RelativePath
		}
		if quality == "" {
			quality = event.MovieFile.Quality
		}
	}

	line := ""
	if event.Movie.Year > 0 {
		line = fmt.Sprintf("(%d)", event.Movie.Year)
	}

	normalized := &contentEvent{
		notificationType: datastore.TypeMovie,
		mediaType:        "movie",
		parentID:         event.Movie.ID,
		title:            event.Movie.Title,
		year:             event.Movie.Year,
		tags:             event.Movie.Tags,
		items:            []contentItem{{id: event.Movie.ID, line: line}},
		releaseLabel:     releaseLabel,
		quality:          quality,
		posterURL:        posterURL(event.Movie.Images),
		fanartURL:        fanartURL(event.Movie.Images),
	}
	p.enrichMovie(ctx, normalized, event.Movie.TmdbID)
	return p.processContent(ctx, normalized)
}

// enrichMovie fills in artwork from TMDB when the payload's own images are
// missing. Lookup failures only cost the extra details.
func (p *Processor) enrichMovie(ctx context.Context, event *contentEvent, tmdbID int64) {
	if p.enricher == nil || tmdbID == 0 {
		return
	}
	details, err := p.enricher.GetMovie(ctx, tmdbID)
	if err != nil {
		p.logger.Debug("Movie enrichment failed", "tmdb_id", tmdbID, "error", err)
		return
	}
	if event.posterURL == "" {
		event.posterURL = details.PosterURL()
	}
	event.backdropURL = details.BackdropURL()
}

// ProcessReadarr handles one Readarr webhook delivery.
func (p *Processor) ProcessReadarr(ctx context.Context, event *ReadarrEvent) Outcome {
	switch event.EventType {
	case eventTest:
		return p.processTest(ctx, "readarr")
	case eventDownload:
	default:
		p.logger.Debug("Ignoring unhandled event type", "app", "readarr", "event_type", event.EventType)
		return success("ignored")
	}

	if event.Author == nil || len(event.Books) == 0 {
		return clientError("payload missing author or books")
	}

	releaseLabel := ""
	quality := ""
	if event.Release != nil {
		releaseLabel = event.Release.ReleaseTitle
		quality = event.Release.Quality
	}

	items := make([]contentItem, 0, len(event.Books))
	for _, book := range event.Books {
		detail, err := json.Marshal(book)
		if err != nil {
			return clientError("unreadable book details")
		}
		items = append(items, contentItem{
			id:     book.ID,
			line:   book.Title,
			detail: detail,
		})
	}

	normalized := &contentEvent{
		notificationType: datastore.TypeBook,
		mediaType:        "book",
		parentID:         event.Author.ID,
		title:            event.Author.Name,
		tags:             event.Author.Tags,
		items:            items,
		releaseLabel:     releaseLabel,
		quality:          quality,
	}
	return p.processContent(ctx, normalized)
}

// processTest records a connectivity-test event with no recipients and
// broadcasts it, bypassing resolution and dedup.
func (p *Processor) processTest(ctx context.Context, app string) Outcome {
	notification := &datastore.Notification{
		Type:      datastore.TypeTest,
		Title:     fmt.Sprintf("%s webhook test", app),
		MediaType: "test",
	}

	if err := p.dispatcher.Broadcast(ctx, dispatch.Message{
		Title: "Webhook test",
		Body:  fmt.Sprintf("Test event received from %s. The webhook is working.", app),
	}); err != nil {
		p.logger.Warn("Test event broadcast failed", "app", app, "error", err)
	}

	if _, err := p.store.SaveNotification(notification, nil); err != nil {
		p.logger.Error("Failed to record test notification", "app", app, "error", err)
	}
	return success("test notification sent")
}

func (p *Processor) processContent(ctx context.Context, event *contentEvent) Outcome {
	recipients := p.resolver.Resolve(event.tags)
	if len(recipients) == 0 {
		p.logger.Info("No recipients resolved for event, skipping",
			"title", event.title, "tags", event.tags)
		return success("no recipients mapped")
	}

	fresh := make([]contentItem, 0, len(event.items))
	for _, item := range event.items {
		key := dedupeKey(event.parentID, item.id, event.releaseLabel)
		if p.dedupe.CheckAndAdd(key) {
			p.logger.Info("Skipping duplicate event",
				"title", event.title, "item", item.line, "key", key)
			continue
		}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return success("duplicate event")
	}

	msg := composeMessage(event, fresh, recipients)
	if err := p.dispatcher.Broadcast(ctx, msg); err != nil {
		p.logger.Error("Broadcast dispatch failed", "title", event.title, "error", err)
	}
	if p.dmEnabled {
		p.directMessageAll(ctx, msg, recipients)
	}

	if err := p.persist(event, fresh, recipients); err != nil {
		p.logger.Error("Failed to persist notification", "title", event.title, "error", err)
	}

	return success("notification sent")
}

// directMessageAll delivers to each recipient individually. Per-recipient
// failures (DMs disabled, unknown user) never fail the batch.
func (p *Processor) directMessageAll(ctx context.Context, msg dispatch.Message, recipients []datastore.Recipient) {
	for _, recipient := range recipients {
		err := p.dispatcher.DirectMessage(ctx, recipient.DiscordUserID, msg)
		if err == nil {
			continue
		}
		if errors.Is(err, dispatch.ErrDirectMessagesUnsupported) {
			return
		}
		p.logger.Warn("Direct message delivery failed",
			"recipient", recipient.DiscordUserID, "error", err)
	}
}

func (p *Processor) persist(event *contentEvent, fresh []contentItem, recipients []datastore.Recipient) error {
	notification := &datastore.Notification{
		Type:          event.notificationType,
		Title:         event.title,
		Year:          event.year,
		MediaType:     event.mediaType,
		SeasonNumber:  event.seasonNumber,
		EpisodeNumber: event.episodeNumber,
		EpisodeTitle:  event.episodeTitle,
		Quality:       event.quality,
		PosterURL:     event.posterURL,
		FanartURL:     event.fanartURL,
		BackdropURL:   event.backdropURL,
	}

	details := make([]json.RawMessage, 0, len(fresh))
	for _, item := range fresh {
		if len(item.detail) > 0 {
			details = append(details, item.detail)
		}
	}
	if err := notification.SetEpisodes(details); err != nil {
		return err
	}

	_, err := p.store.SaveNotification(notification, recipients)
	return err
}

func sonarrReleaseInfo(event *SonarrEvent) (releaseLabel, quality string) {
	if event.Release != nil {
		releaseLabel = event.Release.ReleaseTitle
		quality = event.Release.Quality
	}
	files := event.EpisodeFiles
	if event.EpisodeFile != nil {
		files = append([]EpisodeFile{*event.EpisodeFile}, files...)
	}
	for _, file := range files {
		if releaseLabel == "" {
			releaseLabel = file.RelativePath
		}
		if quality == "" {
			quality = file.Quality
		}
	}
	return releaseLabel, quality
}

func episodeLine(ep Episode) string {
	ref := fmt.Sprintf("S%02dE%02d", ep.SeasonNumber, ep.EpisodeNumber)
	if ep.Title != "" {
		return ref + " - " + ep.Title
	}
	return ref
}

// composeMessage formats the outbound notification. Mentions are rendered
// by the Discord dispatcher; the body references the items textually.
func composeMessage(event *contentEvent, items []contentItem, recipients []datastore.Recipient) dispatch.Message {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(event.title)
		if item.line != "" {
			b.WriteString(" ")
			b.WriteString(item.line)
		}
	}
	if event.quality != "" {
		b.WriteString("\nQuality: ")
		b.WriteString(event.quality)
	}

	mentions := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		mentions = append(mentions, recipient.DiscordUserID)
	}

	title := event.title
	if event.year > 0 {
		title = fmt.Sprintf("%s (%d)", event.title, event.year)
	}

	return dispatch.Message{
		Title:          title,
		Body:           b.String(),
		MentionUserIDs: mentions,
		ImageURL:       event.posterURL,
	}
}
