package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/arrbiter/arrbiter/internal/conf"
	"github.com/arrbiter/arrbiter/internal/datastore"
	"github.com/arrbiter/arrbiter/internal/errors"
	"github.com/arrbiter/arrbiter/internal/logging"
	"github.com/arrbiter/arrbiter/internal/orchestrator"
	"github.com/arrbiter/arrbiter/internal/plex"
	"github.com/arrbiter/arrbiter/internal/realdebrid"
)

// Bot owns the Discord session. It implements dispatch.Dispatcher for
// outbound notifications and registers the slash command surface.
type Bot struct {
	session   *discordgo.Session
	guildID   string
	channelID string

	store        datastore.Interface
	orchestrator *orchestrator.Orchestrator
	containers   []string
	restartOrder []string
	realdebrid   realdebrid.AccountSource
	plex         *plex.Client
	books        BookSearcher

	inviteRoleID string
	inviteLink   string

	registered []*discordgo.ApplicationCommand
	logger     *slog.Logger
}

// Deps carries the collaborators the command handlers need. Nil entries
// disable the corresponding commands with a clear reply instead of
// failing.
type Deps struct {
	Store        datastore.Interface
	Orchestrator *orchestrator.Orchestrator
	RealDebrid   realdebrid.AccountSource
	Plex         *plex.Client
	Books        BookSearcher
}

// NewBot creates the session without connecting.
func NewBot(settings *conf.DiscordSettings, docker *conf.DockerSettings, deps Deps) (*Bot, error) {
	if settings.Token == "" {
		return nil, errors.Newf("discord bot token is not configured").
			Component("discord").
			Category(errors.CategoryConfiguration).
			Build()
	}

	session, err := discordgo.New("Bot " + settings.Token)
	if err != nil {
		return nil, errors.New(err).
			Component("discord").
			Category(errors.CategoryConfiguration).
			Build()
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	if settings.InviteRoleID != "" && settings.InviteLink != "" {
		// The welcome DM fires on role grants, which only arrive with
		// the members intent.
		session.Identify.Intents |= discordgo.IntentsGuildMembers
	}

	return &Bot{
		session:      session,
		guildID:      settings.GuildID,
		channelID:    settings.NotificationChannelID,
		store:        deps.Store,
		orchestrator: deps.Orchestrator,
		containers:   docker.Containers,
		restartOrder: docker.RestartOrder,
		realdebrid:   deps.RealDebrid,
		plex:         deps.Plex,
		books:        deps.Books,
		inviteRoleID: settings.InviteRoleID,
		inviteLink:   settings.InviteLink,
		logger:       logging.ForService("discord"),
	}, nil
}

// Open connects the gateway and registers the slash commands.
func (b *Bot) Open() error {
	b.session.AddHandler(b.handleInteraction)
	if b.inviteRoleID != "" && b.inviteLink != "" {
		b.session.AddHandler(b.handleMemberUpdate)
	}

	if err := b.session.Open(); err != nil {
		return errors.New(err).
			Component("discord").
			Category(errors.CategoryNetwork).
			Context("operation", "gateway_open").
			Build()
	}

	if err := b.registerCommands(); err != nil {
		_ = b.session.Close()
		return err
	}

	b.logger.Info("Discord bot connected", "commands", len(b.registered))
	return nil
}

// Close removes the registered commands and disconnects.
func (b *Bot) Close() error {
	appID := b.session.State.User.ID
	for _, command := range b.registered {
		if err := b.session.ApplicationCommandDelete(appID, b.guildID, command.ID); err != nil {
			b.logger.Warn("Failed to remove slash command", "command", command.Name, "error", err)
		}
	}
	return b.session.Close()
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	for _, definition := range commandDefinitions() {
		command, err := b.session.ApplicationCommandCreate(appID, b.guildID, definition)
		if err != nil {
			return errors.New(err).
				Component("discord").
				Category(errors.CategoryNetwork).
				Context("command", definition.Name).
				Build()
		}
		b.registered = append(b.registered, command)
	}
	return nil
}
