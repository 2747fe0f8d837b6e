package cmd

import (
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-cache/internal/config"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Clear the local client cache",
	Long:  `Removes every entry of the client cache, so the next repos or readme call goes to the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		cfg := config.Load()
		return newClientCache(cfg, logger).Purge()
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
