// config.go: settings struct and functions to load and save the application
// configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// DiscordSettings contains settings for the Discord surface.
type DiscordSettings struct {
	Token                  string   // bot token, normally set via ARRBITER_DISCORD_TOKEN
	GuildID                string   // guild to register slash commands in, empty for global
	NotificationChannelID  string   // channel for broadcast notifications
	DMNotificationsEnabled bool     // send direct messages to resolved recipients
	ShoutrrrURLs           []string // fallback broadcast URLs used when no token is set

	// Granting InviteRoleID to a member triggers a welcome DM carrying
	// InviteLink. Both must be set to enable the feature.
	InviteRoleID string
	InviteLink   string
}

// WebhookSettings contains settings for the inbound webhook server.
type WebhookSettings struct {
	Listen    string // listen address for the webhook HTTP server
	PublicURL string // externally reachable base URL, used when registering webhooks in *arr instances
}

// OverseerrSettings contains settings for the Overseerr user directory.
type OverseerrSettings struct {
	Enabled                bool
	BaseURL                string
	APIKey                 string
	RefreshIntervalMinutes int // user directory sync interval
}

// ArrInstanceSettings describes one Sonarr/Radarr/Readarr instance.
type ArrInstanceSettings struct {
	Name          string
	Type          string // "sonarr", "radarr" or "readarr"
	URL           string
	APIKey        string
	Enabled       bool
	CreateWebhook bool // register this bot's webhook on startup
}

// DockerSettings contains settings for the remote container host.
type DockerSettings struct {
	Host               string
	Port               int
	Username           string
	Password           string
	KeyFile            string
	Containers         []string // containers monitored by the status command
	RestartOrder       []string // restart sequence, dependency order
	HealthPollInterval int      // seconds between health checks
	HealthMaxAttempts  int      // polling attempts before declaring failure
}

// RealDebridSettings contains settings for premium expiry tracking.
type RealDebridSettings struct {
	Enabled  bool
	APIKey   string
	WarnDays int // warn when premium expires within this many days
}

// PlexSettings contains settings for library scan commands.
type PlexSettings struct {
	URL   string
	Token string
}

// TMDBSettings contains settings for movie metadata lookups.
type TMDBSettings struct {
	Enabled bool
	APIKey  string
}

// BooksSettings contains settings for Google Books lookups.
type BooksSettings struct {
	Enabled bool
	APIKey  string // optional, raises the public API quota
}

// SQLiteSettings contains SQLite database settings.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains MySQL database settings.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings contains the persistence backends.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug    bool
	LogLevel string
	LogFile  string // rotated webhook access log, empty disables it

	Discord    DiscordSettings
	Webhook    WebhookSettings
	Overseerr  OverseerrSettings
	Arr        []ArrInstanceSettings
	Docker     DockerSettings
	RealDebrid RealDebridSettings
	Plex       PlexSettings
	TMDB       TMDBSettings
	Books      BooksSettings

	// UserMappings maps a normalized Plex username to a Discord user id.
	UserMappings map[string]string

	Output OutputSettings
}

// Load reads the configuration file and environment variables into a new
// Settings instance.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	expandEnvPlaceholders(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Secrets can be supplied as ARRBITER_DISCORD_TOKEN etc.
	viper.SetEnvPrefix("arrbiter")
	viper.AutomaticEnv()

	// Defaults defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the primary
// config path and loads it.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// SaveYAMLConfig writes the given settings to the configuration file using an
// atomic rename. Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, yamlData, 0o644); err != nil {
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
