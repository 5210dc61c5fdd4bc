// Package validate checks the configuration without starting anything.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arrbiter/arrbiter/internal/conf"
)

// Command creates the validate command.
func Command(settings *conf.Settings) *cobra.Command {
	var writePath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.ValidateSettings(settings); err != nil {
				return err
			}

			if configPath, err := conf.FindConfigFile(); err == nil {
				fmt.Println("Configuration file:", configPath)
			}
			fmt.Println("Configuration is valid.")
			summarize(settings)

			if writePath != "" {
				if err := conf.SaveYAMLConfig(writePath, settings); err != nil {
					return err
				}
				fmt.Println("Resolved configuration written to:", writePath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&writePath, "write", "", "write the fully resolved configuration, including expanded secrets, to this file")
	return cmd
}

func summarize(settings *conf.Settings) {
	onOff := func(enabled bool) string {
		if enabled {
			return "enabled"
		}
		return "disabled"
	}

	fmt.Printf("  webhook listen:   %s\n", settings.Webhook.Listen)
	fmt.Printf("  overseerr:        %s\n", onOff(settings.Overseerr.Enabled))
	fmt.Printf("  real-debrid:      %s\n", onOff(settings.RealDebrid.Enabled))
	fmt.Printf("  docker host:      %s\n", valueOr(settings.Docker.Host, "not configured"))
	fmt.Printf("  arr instances:    %d\n", len(settings.Arr))
	fmt.Printf("  static mappings:  %d\n", len(settings.UserMappings))
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
