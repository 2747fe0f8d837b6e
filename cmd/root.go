// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-cache/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "repo-cache",
	Short: "Mirror a GitHub account's repositories into a local cache and serve them.",
	Long: `repo-cache periodically mirrors the public repositories of one GitHub account
(listing, language statistics and READMEs) into a directory of JSON and Markdown files,
and serves that snapshot over a small read-only HTTP API.

The client commands (repos, readme, purge) read the API through a local cache that
expires after one hour and is refreshed when the server has newer data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Values already in the environment win over .env.
		return config.LoadDotEnv()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}

// newLogger builds the structured logger every component receives. Logs go to stderr so
// command output on stdout stays machine readable.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
