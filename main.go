package main

import (
	"fmt"
	"os"

	"github.com/tmakela/pitwall/cmd"
	"github.com/tmakela/pitwall/internal/conf"
	"github.com/tmakela/pitwall/internal/logging"
)

var version = "dev" // overridden at build time with -ldflags

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version

	level := logging.LevelFromDebug(settings.Debug)
	logging.Init(level)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
