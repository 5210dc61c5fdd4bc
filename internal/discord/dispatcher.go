// Package discord hosts the bot session: outbound notification delivery
// and the slash command surface.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/arrbiter/arrbiter/internal/dispatch"
	"github.com/arrbiter/arrbiter/internal/errors"
)

// Broadcast posts to the configured notification channel, prefixing the
// message with mentions for the resolved recipients.
func (b *Bot) Broadcast(_ context.Context, msg dispatch.Message) error {
	if b.channelID == "" {
		return errors.Newf("notification channel is not configured").
			Component("discord").
			Category(errors.CategoryConfiguration).
			Build()
	}

	embed := messageEmbed(msg)

	var content string
	if len(msg.MentionUserIDs) > 0 {
		mentions := make([]string, 0, len(msg.MentionUserIDs))
		for _, userID := range msg.MentionUserIDs {
			mentions = append(mentions, fmt.Sprintf("<@%s>", userID))
		}
		content = strings.Join(mentions, " ")
	}

	_, err := b.session.ChannelMessageSendComplex(b.channelID, &discordgo.MessageSend{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		return errors.New(err).
			Component("discord").
			Category(errors.CategoryDispatch).
			Context("channel_id", b.channelID).
			Build()
	}
	return nil
}

// DirectMessage opens (or reuses) the DM channel for one user and sends
// the notification there.
func (b *Bot) DirectMessage(_ context.Context, userID string, msg dispatch.Message) error {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return errors.New(err).
			Component("discord").
			Category(errors.CategoryDispatch).
			Context("user_id", userID).
			Build()
	}

	_, err = b.session.ChannelMessageSendEmbed(channel.ID, messageEmbed(msg))
	if err != nil {
		return errors.New(err).
			Component("discord").
			Category(errors.CategoryDispatch).
			Context("user_id", userID).
			Build()
	}
	return nil
}

func messageEmbed(msg dispatch.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       0xE5A00D, // Plex amber
	}
	if msg.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: msg.ImageURL}
	}
	return embed
}
