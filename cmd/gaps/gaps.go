// Package gaps implements the read-only gap report command.
package gaps

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmakela/pitwall/internal/conf"
	"github.com/tmakela/pitwall/internal/datastore"
	"github.com/tmakela/pitwall/internal/gaps"
	"github.com/tmakela/pitwall/internal/ratelimit"
)

// Command creates the gaps command, which prints the data gap report and
// provider usage stats for a season without writing anything.
func Command(settings *conf.Settings) *cobra.Command {
	var round int

	cmd := &cobra.Command{
		Use:   "gaps [year]",
		Short: "Report missing races, sessions and data categories for a season",
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
			return runReport(cmd.Context(), settings, year, roundFilter)
		},
	}

	cmd.Flags().IntVarP(&round, "round", "r", 0, "Restrict the report to one round")

	return cmd
}

func runReport(ctx context.Context, settings *conf.Settings, year int, round *int) error {
	if ctx == nil {
		ctx = context.Background()
	}

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

	report, err := gaps.NewDetector(store).Detect(ctx, year)
	if err != nil {
		return err
	}

	printReport(os.Stdout, report, round)

	governor := ratelimit.NewGovernor(store, nil, settings)
	stats, err := governor.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("\nprovider usage (trailing hour): %d/%d calls, %d remaining [%s]\n",
		stats.CallsMade, stats.MaxCalls, stats.Remaining, stats.Status)
	if stats.NextReset != nil {
		fmt.Printf("window resets at %s\n", stats.NextReset.Format(time.RFC3339))
	}

	return nil
}

// printReport renders the gap report, restricted to one round when the
// filter is set. Counts always cover exactly the rows printed.
func printReport(w io.Writer, report *gaps.Report, round *int) {
	fmt.Fprintf(w, "season %d gap report\n", report.SeasonYear)
	if !report.SeasonKnown {
		fmt.Fprintln(w, "season not found in database, run an import first")
		return
	}

	var missingRaces []int
	for _, r := range report.MissingRaces {
		if round != nil && r != *round {
			continue
		}
		missingRaces = append(missingRaces, r)
	}
	if len(missingRaces) > 0 {
		fmt.Fprintf(w, "missing races (rounds): %v\n", missingRaces)
	}

	var missingSlots []gaps.MissingSession
	for _, m := range report.MissingSessions {
		if round != nil && m.RoundNumber != *round {
			continue
		}
		missingSlots = append(missingSlots, m)
	}
	if len(missingSlots) > 0 {
		fmt.Fprintf(w, "missing session slots: %d\n", len(missingSlots))
		for _, m := range missingSlots {
			fmt.Fprintf(w, "  round %d session %d\n", m.RoundNumber, m.SessionNumber)
		}
	}

	shown := 0
	for i := range report.SessionGaps {
		gap := &report.SessionGaps[i]
		if round != nil && gap.RoundNumber != *round {
			continue
		}
		shown++
		fmt.Fprintf(w, "  %s missing: %v\n", gap.String(), gap.MissingCategories())
	}
	if shown == 0 && len(missingRaces) == 0 && len(missingSlots) == 0 {
		fmt.Fprintln(w, "no gaps detected")
		return
	}
	fmt.Fprintf(w, "sessions with gaps: %d (provider calls needed: %d)\n", shown, shown)
}
