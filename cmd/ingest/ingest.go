// Package ingest implements the full pipeline run command.
package ingest

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tmakela/pitwall/internal/conf"
	"github.com/tmakela/pitwall/internal/datastore"
	"github.com/tmakela/pitwall/internal/notification"
	"github.com/tmakela/pitwall/internal/pipeline"
	"github.com/tmakela/pitwall/internal/provider"
	"github.com/tmakela/pitwall/internal/ratelimit"
)

// Command creates the ingest command, which runs one complete ingestion
// pass for a season.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		round  int
		force  bool
		notify bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [year]",
		Short: "Detect data gaps for a season and ingest the missing sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q: %w", args[0], err)
			}
			var roundFilter *int
			if cmd.Flags().Changed("round") {
				roundFilter = &round
			}
			return runIngest(settings, year, roundFilter, force, notify)
		},
	}

	cmd.Flags().IntVarP(&round, "round", "r", 0, "Restrict the run to one round")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-ingest every matching session, overwriting existing data")
	cmd.Flags().BoolVarP(&notify, "notify", "n", false, "Send a completion notification")

	return cmd
}

func runIngest(settings *conf.Settings, year int, round *int, force, notify bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database output enabled")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	notifier, err := notification.NewService(settings)
	if err != nil {
		return err
	}
	defer notifier.Close()

	governor := ratelimit.NewGovernor(store, notifier, settings)

	loader, err := provider.NewClient(provider.ConfigFromSettings(settings), governor)
	if err != nil {
		return err
	}
	defer loader.Close()

	runner := pipeline.NewRunner(store, loader, governor, notifier)
	summary, err := runner.Run(ctx, year, round, force, notify)
	if summary != nil {
		fmt.Println(summary.String())
	}
	return err
}
