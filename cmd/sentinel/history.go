package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/raaihank/grammar-sentinel/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export recorded checks",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, done, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer done()

		limit, _ := cmd.Flags().GetInt("limit")
		records, err := store.List(cmd.Context(), limit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tWHEN\tHIGHLIGHTS\tSKIPPED\tTEXT")
		for _, rec := range records {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n",
				rec.ID,
				rec.CreatedAt.Local().Format(time.DateTime),
				rec.Highlights,
				rec.Skipped,
				abbreviate(rec.Text, 48),
			)
		}
		return tw.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show totals over all recorded checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, done, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer done()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checks: %d\nhighlights: %d\nskipped: %d\n",
			stats.Checks, stats.Highlights, stats.Skipped)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export recorded checks as CSV, JSON lines or Parquet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		format := history.DetectFormat(path)
		if name, _ := cmd.Flags().GetString("format"); name != "" {
			var err error
			if format, err = history.ParseFormat(name); err != nil {
				return err
			}
		}

		store, done, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer done()

		limit, _ := cmd.Flags().GetInt("limit")
		records, err := store.List(cmd.Context(), limit)
		if err != nil {
			return err
		}

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		n, err := history.Export(f, format, records)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d checks to %s (%s)\n", n, path, format)
		return nil
	},
}

func openHistory(cmd *cobra.Command) (*history.Store, func(), error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	if !a.cfg.History.Enabled {
		a.close()
		return nil, nil, fmt.Errorf("history is disabled, set history.enabled in the configuration")
	}
	store, err := a.historyStore()
	if err != nil {
		a.close()
		return nil, nil, err
	}
	return store, a.close, nil
}

func abbreviate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyStatsCmd, historyExportCmd)
	historyListCmd.Flags().IntP("limit", "n", 20, "Number of checks to show (0 for all)")
	historyExportCmd.Flags().IntP("limit", "n", 0, "Number of checks to export (0 for all)")
	historyExportCmd.Flags().String("format", "", "csv, json or parquet (default from the file extension)")
}
