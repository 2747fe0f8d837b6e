package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-cache/internal/client"
	"github.com/naka-gawa/repo-cache/internal/config"
)

var readmeCmd = &cobra.Command{
	Use:   "readme <repository>",
	Short: "Print a repository's full README",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		cfg := config.Load()

		reader := client.NewReadmeReader(client.NewAPI(cfg.APIBaseURL, nil), newClientCache(cfg, logger), logger)
		readme, err := reader.Readme(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), readme)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readmeCmd)
}
