package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-cache/internal/config"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle and print its summary as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}

		refresher, _, err := newRefresher(cfg, logger)
		if err != nil {
			return err
		}

		summary, err := refresher.Refresh(cmd.Context())
		if err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}

		// Marshal the summary into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal summary to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
