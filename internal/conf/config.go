// Package conf loads and holds the application settings. Configuration is
// read from config.yaml, overridden by PITWALL_* environment variables and
// finally by command line flags bound through viper.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Settings is the root configuration structure.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version string `yaml:"-"`

	Main struct {
		Name string // name of this pitwall node, used in notifications
	}

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database file
		}
		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}

	Provider struct {
		BaseURL    string        // base URL of the session data service
		Timeout    time.Duration // per-request timeout
		CacheTTL   time.Duration // session payload memoization window
		MaxRetries int           // transient failure retry attempts
		RetryDelay time.Duration // fixed delay between transient retries
	}

	RateLimit struct {
		PauseDuration      time.Duration // cooldown after a rate limit signal
		MaxRequestsPerHour int           // provider budget, for stats reporting only
	}

	Notification struct {
		Enabled bool          // true to enable push notifications
		URLs    []string      // shoutrrr service URLs
		Timeout time.Duration // per-delivery timeout
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// GetSettings returns the current settings instance, or nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting is a shorthand for GetSettings.
func Setting() *Settings {
	return GetSettings()
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/pitwall")
	viper.AddConfigPath("/etc/pitwall")

	viper.SetEnvPrefix("pitwall")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults plus flags cover everything
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// LoadFile reads an explicit configuration file into settings, replacing
// whatever the default search path found.
func LoadFile(path string, settings *Settings) error {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	return nil
}

// SyncViper copies flag-bound viper values back into the settings struct so
// command line flags take precedence over file and environment values.
func SyncViper(settings *Settings) {
	settings.Debug = viper.GetBool("debug")
}

// ValidateSettings checks that the loaded settings are usable.
func ValidateSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("only one database output may be enabled at a time")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("one of sqlite or mysql output must be enabled")
	}
	if settings.Provider.BaseURL == "" {
		return fmt.Errorf("provider base URL is required")
	}
	if settings.Provider.MaxRetries < 0 {
		return fmt.Errorf("provider max retries must not be negative")
	}
	if settings.RateLimit.PauseDuration <= 0 {
		return fmt.Errorf("rate limit pause duration must be positive")
	}
	return nil
}
