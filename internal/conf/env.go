// env.go - environment variable placeholder expansion for secret settings
package conf

import (
	"os"
	"regexp"
)

// placeholderRe matches values of the form ${ENV_VAR_NAME}.
var placeholderRe = regexp.MustCompile(`^\$\{(\w+)\}$`)

// expandPlaceholder resolves a ${ENV_VAR} placeholder against the process
// environment. Unset variables leave the placeholder in place so validation
// can report the missing secret instead of silently using an empty string.
func expandPlaceholder(value string) string {
	m := placeholderRe.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	if resolved, ok := os.LookupEnv(m[1]); ok {
		return resolved
	}
	return value
}

// expandEnvPlaceholders resolves placeholders in every secret-bearing field.
func expandEnvPlaceholders(settings *Settings) {
	settings.Discord.Token = expandPlaceholder(settings.Discord.Token)
	settings.Overseerr.APIKey = expandPlaceholder(settings.Overseerr.APIKey)
	settings.Docker.Password = expandPlaceholder(settings.Docker.Password)
	settings.RealDebrid.APIKey = expandPlaceholder(settings.RealDebrid.APIKey)
	settings.Plex.Token = expandPlaceholder(settings.Plex.Token)
	settings.TMDB.APIKey = expandPlaceholder(settings.TMDB.APIKey)
	settings.Output.MySQL.Password = expandPlaceholder(settings.Output.MySQL.Password)

	for i := range settings.Arr {
		settings.Arr[i].APIKey = expandPlaceholder(settings.Arr[i].APIKey)
	}
}
