package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gapscmd "github.com/tmakela/pitwall/cmd/gaps"
	"github.com/tmakela/pitwall/cmd/ingest"
	notifycmd "github.com/tmakela/pitwall/cmd/notify"
	"github.com/tmakela/pitwall/internal/conf"
)

// RootCommand creates and returns the root command with all subcommands
// attached.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pitwall",
		Short: "Pitwall racing telemetry ingestion CLI",
	}

	var configFile string
	setupFlags(rootCmd, settings, &configFile)

	rootCmd.AddCommand(
		ingest.Command(settings),
		gapscmd.Command(settings),
		notifycmd.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := conf.LoadFile(configFile, settings); err != nil {
				return err
			}
		}
		// Sync settings with viper so command-line flags take precedence
		// over config file and environment values.
		conf.SyncViper(settings)
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines the global command-line flags.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings, configFile *string) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(configFile, "config", "", "Path to a configuration file")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}
