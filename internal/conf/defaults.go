// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")

	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.guildid", "")
	viper.SetDefault("discord.notificationchannelid", "")
	viper.SetDefault("discord.dmnotificationsenabled", true)
	viper.SetDefault("discord.shoutrrrurls", []string{})
	viper.SetDefault("discord.inviteroleid", "")
	viper.SetDefault("discord.invitelink", "")

	viper.SetDefault("webhook.listen", ":5000")
	viper.SetDefault("webhook.publicurl", "")

	viper.SetDefault("overseerr.enabled", false)
	viper.SetDefault("overseerr.baseurl", "")
	viper.SetDefault("overseerr.apikey", "")
	viper.SetDefault("overseerr.refreshintervalminutes", 60)

	viper.SetDefault("docker.host", "")
	viper.SetDefault("docker.port", 22)
	viper.SetDefault("docker.username", "")
	viper.SetDefault("docker.password", "")
	viper.SetDefault("docker.keyfile", "")
	viper.SetDefault("docker.containers", []string{})
	viper.SetDefault("docker.restartorder", []string{})
	viper.SetDefault("docker.healthpollinterval", 10)
	viper.SetDefault("docker.healthmaxattempts", 60)

	viper.SetDefault("realdebrid.enabled", false)
	viper.SetDefault("realdebrid.apikey", "")
	viper.SetDefault("realdebrid.warndays", 7)

	viper.SetDefault("plex.url", "")
	viper.SetDefault("plex.token", "")

	viper.SetDefault("tmdb.enabled", false)
	viper.SetDefault("tmdb.apikey", "")

	viper.SetDefault("books.enabled", false)
	viper.SetDefault("books.apikey", "")

	viper.SetDefault("usermappings", map[string]string{})

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "notifications.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "arrbiter")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "arrbiter")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
