// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateOverseerrSettings(&settings.Overseerr); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateDockerSettings(&settings.Docker); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateArrSettings(settings.Arr); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateOutputSettings(output *OutputSettings) error {
	if !output.SQLite.Enabled && !output.MySQL.Enabled {
		return fmt.Errorf("no database backend enabled, enable output.sqlite or output.mysql")
	}
	if output.SQLite.Enabled && output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must be set when SQLite is enabled")
	}
	if output.MySQL.Enabled {
		if output.MySQL.Host == "" || output.MySQL.Database == "" {
			return fmt.Errorf("output.mysql.host and output.mysql.database must be set when MySQL is enabled")
		}
	}
	return nil
}

func validateOverseerrSettings(overseerr *OverseerrSettings) error {
	if !overseerr.Enabled {
		return nil
	}
	if overseerr.BaseURL == "" {
		return fmt.Errorf("overseerr.baseurl must be set when Overseerr is enabled")
	}
	if _, err := url.ParseRequestURI(overseerr.BaseURL); err != nil {
		return fmt.Errorf("overseerr.baseurl is not a valid URL: %w", err)
	}
	if overseerr.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("overseerr.refreshintervalminutes must be positive")
	}
	return nil
}

func validateDockerSettings(docker *DockerSettings) error {
	if docker.Host == "" {
		// Container commands degrade to unavailable, not a config error.
		return nil
	}
	if docker.Port <= 0 || docker.Port > 65535 {
		return fmt.Errorf("docker.port must be between 1 and 65535")
	}
	if docker.Username == "" {
		return fmt.Errorf("docker.username must be set when docker.host is configured")
	}
	if docker.Password == "" && docker.KeyFile == "" {
		return fmt.Errorf("either docker.password or docker.keyfile must be set when docker.host is configured")
	}
	if docker.HealthPollInterval <= 0 {
		return fmt.Errorf("docker.healthpollinterval must be positive")
	}
	if docker.HealthMaxAttempts <= 0 {
		return fmt.Errorf("docker.healthmaxattempts must be positive")
	}
	return nil
}

func validateArrSettings(instances []ArrInstanceSettings) error {
	for i := range instances {
		instance := &instances[i]
		if !instance.Enabled {
			continue
		}
		switch strings.ToLower(instance.Type) {
		case "sonarr", "radarr", "readarr":
		default:
			return fmt.Errorf("arr instance %q has unknown type %q", instance.Name, instance.Type)
		}
		if instance.URL == "" || instance.APIKey == "" {
			return fmt.Errorf("arr instance %q needs both url and apikey", instance.Name)
		}
	}
	return nil
}
