package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-graph-service/internal/dataset"
)

func newStatsCommand() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats <snapshot>",
		Short: "Print the counters of a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := dataset.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), snap, top)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of unknown publishers to list")
	return cmd
}

func printStats(w io.Writer, snap *dataset.Snapshot, top int) error {
	stats := snap.Stats()

	var refs int
	for _, rec := range snap.Papers {
		if rec != nil {
			refs += len(rec.References)
		}
	}

	lines := []struct {
		label string
		value any
	}{
		{"papers", stats.Papers},
		{"papers resolved", stats.PapersResolved},
		{"references resolved", stats.ReferencesResolved},
		{"reference edges", refs},
		{"unknown publishers", stats.UnknownPublishers},
		{"last page", snap.LastPage},
		{"resume page", resumePage(snap)},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-20s %v\n", l.label+":", l.value); err != nil {
			return err
		}
	}
	if !snap.WrittenAt.IsZero() {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", "written at:", snap.WrittenAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}

	if top <= 0 || len(snap.UnknownPublishers) == 0 {
		return nil
	}
	type tally struct {
		name  string
		count int
	}
	tallies := make([]tally, 0, len(snap.UnknownPublishers))
	for name, count := range snap.UnknownPublishers {
		tallies = append(tallies, tally{name, count})
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].count != tallies[j].count {
			return tallies[i].count > tallies[j].count
		}
		return tallies[i].name < tallies[j].name
	})
	if len(tallies) > top {
		tallies = tallies[:top]
	}
	if _, err := fmt.Fprintln(w, "\nunknown publishers:"); err != nil {
		return err
	}
	for _, t := range tallies {
		if _, err := fmt.Fprintf(w, "  %6d  %s\n", t.count, t.name); err != nil {
			return err
		}
	}
	return nil
}
