// Package serve runs the bot.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/arrbiter/arrbiter/internal/app"
	"github.com/arrbiter/arrbiter/internal/conf"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server and the Discord bot",
		Long:  "Run all configured components: the webhook server, the Discord bot, the user directory sync and the Real-Debrid expiry watcher.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(settings)
		},
	}
}
