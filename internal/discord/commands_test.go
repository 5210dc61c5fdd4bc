package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/arrbiter/arrbiter/internal/metadata"
)

func TestFormatBookResults(t *testing.T) {
	var vol metadata.BookVolume
	vol.VolumeInfo.Title = "The Hobbit"
	vol.VolumeInfo.Authors = []string{"J.R.R. Tolkien"}
	vol.VolumeInfo.PublishedDate = "1937"
	vol.VolumeInfo.InfoLink = "https://books.example/hobbit"

	out := formatBookResults([]metadata.BookVolume{vol})
	assert.Contains(t, out, "**The Hobbit** by J.R.R. Tolkien (1937)")
	assert.Contains(t, out, "<https://books.example/hobbit>")
}

func TestStringOption(t *testing.T) {
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "book",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "title", Type: discordgo.ApplicationCommandOptionString, Value: "dune"},
				},
			},
		},
	}

	assert.Equal(t, "dune", stringOption(i, "title"))
	assert.Equal(t, "", stringOption(i, "author"))
}
