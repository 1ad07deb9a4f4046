// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Pitwall")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "pitwall.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "pitwall")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "pitwall")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("provider.baseurl", "http://localhost:8300")
	viper.SetDefault("provider.timeout", 120*time.Second)
	viper.SetDefault("provider.cachettl", time.Hour)
	viper.SetDefault("provider.maxretries", 3)
	viper.SetDefault("provider.retrydelay", 60*time.Second)

	viper.SetDefault("ratelimit.pauseduration", time.Hour)
	viper.SetDefault("ratelimit.maxrequestsperhour", 500)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.timeout", 30*time.Second)
}
