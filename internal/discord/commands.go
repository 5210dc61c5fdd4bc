package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/arrbiter/arrbiter/internal/datastore"
	"github.com/arrbiter/arrbiter/internal/metadata"
	"github.com/arrbiter/arrbiter/internal/orchestrator"
)

const (
	commandTimeout = 30 * time.Second
	// historyWindow bounds the /notifications and /topusers queries.
	historyWindow = 7 * 24 * time.Hour
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: "status", Description: "Show the health of the monitored containers"},
		{Name: "restart", Description: "Restart the full container stack in dependency order"},
		{Name: "restartplex", Description: "Restart only the Plex container"},
		{Name: "realdebrid", Description: "Show Real-Debrid premium expiry"},
		{Name: "notifications", Description: "Show recent notifications"},
		{Name: "mynotifications", Description: "Show notifications sent to you"},
		{Name: "topusers", Description: "Show who received the most notifications"},
		{Name: "scan", Description: "Trigger a Plex library scan"},
		{
			Name:        "book",
			Description: "Search Google Books",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "title",
					Description: "Book title to search for",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "author",
					Description: "Author to narrow the search",
				},
			},
		},
	}
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	b.logger.Info("Slash command invoked", "command", name)

	switch name {
	case "status":
		b.handleStatus(s, i)
	case "restart":
		b.handleRestart(s, i, b.restartOrder)
	case "restartplex":
		b.handleRestart(s, i, []string{"plex"})
	case "realdebrid":
		b.handleRealDebrid(s, i)
	case "notifications":
		b.handleNotifications(s, i)
	case "mynotifications":
		b.handleMyNotifications(s, i)
	case "topusers":
		b.handleTopUsers(s, i)
	case "scan":
		b.handleScan(s, i)
	case "book":
		b.handleBook(s, i)
	}
}

// respond sends the initial interaction reply.
func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		b.logger.Warn("Failed to respond to interaction", "error", err)
	}
}

// deferResponse acknowledges a long-running command so Discord keeps the
// interaction token alive while we work.
func (b *Bot) deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		b.logger.Warn("Failed to defer interaction", "error", err)
		return false
	}
	return true
}

func (b *Bot) followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: content})
	if err != nil {
		b.logger.Warn("Failed to send follow-up", "error", err)
	}
}

func (b *Bot) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.orchestrator == nil || len(b.containers) == 0 {
		b.respond(s, i, "Container monitoring is not configured.")
		return
	}
	if !b.deferResponse(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	states, err := b.orchestrator.Status(ctx, b.containers)
	if err != nil {
		b.followUp(s, i, "Could not reach the container host: "+err.Error())
		return
	}

	var sb strings.Builder
	sb.WriteString("**Container status**\n")
	for _, state := range states {
		marker := "🔴"
		if state.Healthy() {
			marker = "🟢"
		}
		detail := "stopped"
		if state.Running {
			detail = "running"
			if state.Health != "" {
				detail = state.Health
			}
		} else if state.Health == "not_found" {
			detail = "not found"
		}
		fmt.Fprintf(&sb, "%s `%s` %s\n", marker, state.Container, detail)
	}
	b.followUp(s, i, sb.String())
}

// handleRestart runs a restart batch, streaming per-container progress
// into the interaction channel. Restarts can take minutes; the batch is
// intentionally not cancellable once started.
func (b *Bot) handleRestart(s *discordgo.Session, i *discordgo.InteractionCreate, containers []string) {
	if b.orchestrator == nil || len(containers) == 0 {
		b.respond(s, i, "Container restarts are not configured.")
		return
	}
	if !b.deferResponse(s, i) {
		return
	}

	go func() {
		result := b.orchestrator.Restart(context.Background(), containers, func(p orchestrator.Progress) {
			switch p.Phase {
			case orchestrator.PhaseStopping:
				b.followUp(s, i, fmt.Sprintf("Stopping `%s`...", p.Container))
			case orchestrator.PhaseHealthy:
				b.followUp(s, i, fmt.Sprintf("`%s` is healthy.", p.Container))
			}
		})

		if result.Success {
			b.followUp(s, i, fmt.Sprintf("Restart complete: %s.", strings.Join(result.Restarted, ", ")))
			return
		}
		if result.FailedContainer != "" {
			b.followUp(s, i, fmt.Sprintf("Restart aborted at `%s` (%s): %v. Remaining containers were not attempted.",
				result.FailedContainer, result.FailedPhase, result.Err))
			return
		}
		b.followUp(s, i, fmt.Sprintf("Restart failed before any container was touched: %v", result.Err))
	}()
}

func (b *Bot) handleRealDebrid(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.realdebrid == nil {
		b.respond(s, i, "Real-Debrid tracking is not configured.")
		return
	}
	if !b.deferResponse(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	account, err := b.realdebrid.GetAccount(ctx)
	if err != nil {
		b.followUp(s, i, "Could not reach Real-Debrid: "+err.Error())
		return
	}
	daysLeft, err := account.DaysLeft(time.Now())
	if err != nil {
		b.followUp(s, i, "Real-Debrid returned an unreadable expiry date.")
		return
	}

	switch {
	case daysLeft < 0:
		b.followUp(s, i, "Real-Debrid premium has **expired**.")
	default:
		b.followUp(s, i, fmt.Sprintf("Real-Debrid premium (`%s`): %d day(s) remaining.", account.Username, daysLeft))
	}
}

func (b *Bot) handleNotifications(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.store == nil {
		b.respond(s, i, "Notification history is not configured.")
		return
	}

	notifications, err := b.store.GetRecentNotifications(historyWindow, 10)
	if err != nil {
		b.respond(s, i, "Could not read notification history: "+err.Error())
		return
	}
	if len(notifications) == 0 {
		b.respond(s, i, "No notifications in the last 7 days.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Recent notifications**\n")
	for _, n := range notifications {
		line := n.Title
		if n.Type == datastore.TypeEpisode && n.EpisodeCount > 1 {
			line = fmt.Sprintf("%s (%d episodes)", n.Title, n.EpisodeCount)
		} else if n.Type == datastore.TypeEpisode {
			line = fmt.Sprintf("%s S%02dE%02d", n.Title, n.SeasonNumber, n.EpisodeNumber)
		}
		fmt.Fprintf(&sb, "• %s — %s\n", line, n.CreatedAt.Format("Jan 2 15:04"))
	}
	b.respond(s, i, sb.String())
}

func (b *Bot) handleMyNotifications(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.store == nil {
		b.respond(s, i, "Notification history is not configured.")
		return
	}

	userID := interactionUserID(i)
	if userID == "" {
		b.respond(s, i, "Could not determine who you are.")
		return
	}

	notifications, err := b.store.GetUserRecentNotifications(userID, historyWindow, 10)
	if err != nil {
		b.respond(s, i, "Could not read your notification history: "+err.Error())
		return
	}
	if len(notifications) == 0 {
		b.respond(s, i, "Nothing was sent to you in the last 7 days.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Your recent notifications**\n")
	for _, n := range notifications {
		fmt.Fprintf(&sb, "• %s — %s\n", n.Title, n.CreatedAt.Format("Jan 2 15:04"))
	}
	b.respond(s, i, sb.String())
}

// interactionUserID handles both guild interactions (Member set) and DM
// interactions (User set).
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (b *Bot) handleTopUsers(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.store == nil {
		b.respond(s, i, "Notification history is not configured.")
		return
	}

	counts, err := b.store.GetUserNotificationCounts()
	if err != nil {
		b.respond(s, i, "Could not read notification counts: "+err.Error())
		return
	}
	if len(counts) == 0 {
		b.respond(s, i, "Nobody has been notified yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Most notified users**\n")
	limit := 10
	if len(counts) < limit {
		limit = len(counts)
	}
	for rank, count := range counts[:limit] {
		fmt.Fprintf(&sb, "%d. %s — %d notification(s)\n", rank+1, count.PlexUsername, count.NotificationCount)
	}
	b.respond(s, i, sb.String())
}

// BookSearcher is the slice of the metadata books client the /book
// command needs.
type BookSearcher interface {
	SearchBooks(ctx context.Context, query, author string) ([]metadata.BookVolume, error)
}

func (b *Bot) handleBook(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.books == nil {
		b.respond(s, i, "Book search is not configured.")
		return
	}

	title := stringOption(i, "title")
	author := stringOption(i, "author")
	if title == "" {
		b.respond(s, i, "Tell me a title to search for.")
		return
	}
	if !b.deferResponse(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	volumes, err := b.books.SearchBooks(ctx, title, author)
	if err != nil {
		b.followUp(s, i, "Could not reach Google Books: "+err.Error())
		return
	}
	if len(volumes) == 0 {
		b.followUp(s, i, fmt.Sprintf("No books found for `%s`.", title))
		return
	}

	b.followUp(s, i, formatBookResults(volumes))
}

// formatBookResults renders the search results as a compact list.
func formatBookResults(volumes []metadata.BookVolume) string {
	var sb strings.Builder
	sb.WriteString("**Book search results**\n")
	for _, vol := range volumes {
		line := fmt.Sprintf("• **%s** by %s", vol.Title(), vol.AuthorLine())
		if vol.VolumeInfo.PublishedDate != "" {
			line += fmt.Sprintf(" (%s)", vol.VolumeInfo.PublishedDate)
		}
		if vol.VolumeInfo.InfoLink != "" {
			line += fmt.Sprintf(" — <%s>", vol.VolumeInfo.InfoLink)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// stringOption reads a string option by name from the interaction data.
func stringOption(i *discordgo.InteractionCreate, name string) string {
	for _, option := range i.ApplicationCommandData().Options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionString {
			return option.StringValue()
		}
	}
	return ""
}

func (b *Bot) handleScan(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.plex == nil {
		b.respond(s, i, "Plex is not configured.")
		return
	}
	if !b.deferResponse(s, i) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	scanned, err := b.plex.ScanAll(ctx)
	if err != nil {
		b.followUp(s, i, "Could not start the library scan: "+err.Error())
		return
	}
	b.followUp(s, i, fmt.Sprintf("Started a scan of %d Plex libraries. Scans run in the background on the server.", scanned))
}
