// Package cmd assembles the CLI.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arrbiter/arrbiter/cmd/serve"
	"github.com/arrbiter/arrbiter/cmd/validate"
	"github.com/arrbiter/arrbiter/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arrbiter",
		Short: "Discord bot bridging Plex, the *arr stack and Real-Debrid",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		validate.Command(settings),
	)

	return rootCmd
}

// setupFlags configures the global flags and binds them to viper so
// command-line arguments take precedence over the config file.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Webhook.Listen, "listen", viper.GetString("webhook.listen"), "Webhook server listen address")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
