package discord

import (
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
)

// handleMemberUpdate watches for the configured invite role being granted
// and welcomes the member with the invite link over DM.
func (b *Bot) handleMemberUpdate(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || m.Member.User == nil {
		return
	}

	var before []string
	if m.BeforeUpdate != nil {
		before = m.BeforeUpdate.Roles
	}
	if !roleGranted(before, m.Member.Roles, b.inviteRoleID) {
		return
	}

	b.logger.Info("Invite role granted, sending welcome DM", "user", m.Member.User.Username)

	channel, err := s.UserChannelCreate(m.Member.User.ID)
	if err != nil {
		b.logger.Warn("Could not open DM channel for welcome message", "user", m.Member.User.Username, "error", err)
		return
	}
	if _, err := s.ChannelMessageSend(channel.ID, welcomeMessage(memberDisplayName(m.Member), b.inviteLink)); err != nil {
		// DMs can be disabled per user; nothing to do about that.
		b.logger.Warn("Could not send welcome DM", "user", m.Member.User.Username, "error", err)
	}
}

// roleGranted reports whether roleID is present in after but not in before.
// An unknown previous state counts as "not present" so a missed cache
// still produces at most one welcome.
func roleGranted(before, after []string, roleID string) bool {
	if roleID == "" {
		return false
	}
	return slices.Contains(after, roleID) && !slices.Contains(before, roleID)
}

func memberDisplayName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil {
		return member.User.Username
	}
	return "there"
}

func welcomeMessage(displayName, inviteLink string) string {
	return fmt.Sprintf("Hello %s!\n\nWelcome! Here is your invite link:\n%s", displayName, inviteLink)
}
