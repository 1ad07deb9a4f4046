package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSettings() *Settings {
	settings := &Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = "pitwall.db"
	settings.Provider.BaseURL = "http://localhost:8300"
	settings.RateLimit.PauseDuration = time.Hour
	return settings
}

func TestValidateSettingsAccepted(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejectsBothDatabases(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings.Output.MySQL.Enabled = true
	assert.Error(t, ValidateSettings(settings))
}

func TestValidateSettingsRejectsNoDatabase(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings.Output.SQLite.Enabled = false
	assert.Error(t, ValidateSettings(settings))
}

func TestValidateSettingsRequiresBaseURL(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings.Provider.BaseURL = ""
	assert.Error(t, ValidateSettings(settings))
}

func TestValidateSettingsRequiresPositivePause(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings.RateLimit.PauseDuration = 0
	assert.Error(t, ValidateSettings(settings))

	settings.RateLimit.PauseDuration = -time.Minute
	assert.Error(t, ValidateSettings(settings))
}

func TestValidateSettingsRejectsNegativeRetries(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings.Provider.MaxRetries = -1
	assert.Error(t, ValidateSettings(settings))
}
