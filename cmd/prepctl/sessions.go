package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <session-id>",
	Short: "Print the summary of a finished session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbh, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer dbh.Close()

		sum, err := newEngine(dbh).GetSummary(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}

var olderThan time.Duration

var abandonStaleCmd = &cobra.Command{
	Use:   "abandon-stale",
	Short: "Abandon sessions idle for longer than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		if olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		dbh, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer dbh.Close()

		n, err := newEngine(dbh).AbandonStale(cmd.Context(), olderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ended %d stale sessions\n", n)
		return nil
	},
}

func init() {
	abandonStaleCmd.Flags().DurationVar(&olderThan, "older-than", cfg.StaleAfter, "idle time after which a session is abandoned")
}
