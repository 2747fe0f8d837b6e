package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-cache/internal/client"
	"github.com/naka-gawa/repo-cache/internal/config"
	"github.com/naka-gawa/repo-cache/internal/domain"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List repositories through the local client cache",
	Long: `Lists the repositories served by the API at API_BASE_URL. A cached copy younger than
one hour is shown immediately; the command then checks whether the server refreshed
since and, if so, replaces the cached copy for the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		cfg := config.Load()
		asJSON, _ := cmd.Flags().GetBool("json")

		api := client.NewAPI(cfg.APIBaseURL, nil)
		explorer := client.NewExplorer(api, newClientCache(cfg, logger), logger)

		snap, updates, err := explorer.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("error loading repositories: %w", err)
		}

		if asJSON {
			jsonData, err := json.MarshalIndent(snap.Repositories, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal repositories to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		} else {
			printRepositories(cmd.OutOrStdout(), snap)
		}

		for rec := range updates {
			if rec.Refreshed {
				logger.Info("server has newer data, client cache updated",
					"last_updated", rec.Snapshot.Metadata.LastUpdated)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reposCmd)
	reposCmd.Flags().Bool("json", false, "Print the repositories as JSON")
}

// newClientCache opens the client cache under CLIENT_CACHE_DIR.
func newClientCache(cfg *config.Config, logger *slog.Logger) *client.Cache {
	return client.NewCache(client.NewDiskStorage(osfs.New(cfg.ClientCacheDir)), logger)
}

func printRepositories(w io.Writer, snap *client.Snapshot) {
	source := "server"
	if snap.FromCache {
		source = "local cache"
	}
	fmt.Fprintf(w, "%d repositories (updated %s, from %s)\n\n",
		len(snap.Repositories), snap.Metadata.LastUpdated.Format("2006-01-02 15:04 MST"), source)

	for _, repo := range snap.Repositories {
		fmt.Fprintf(w, "%s  (pushed %s)\n", repo.Name, repo.PushedAt.Format("2006-01-02"))
		if repo.Description != nil && *repo.Description != "" {
			fmt.Fprintf(w, "  %s\n", *repo.Description)
		}
		if shares := repo.Languages.Significant(); len(shares) > 0 {
			fmt.Fprintf(w, "  %s\n", formatShares(shares))
		}
		if repo.ReadmePreview != nil {
			fmt.Fprintf(w, "  > %s\n", *repo.ReadmePreview)
		}
		fmt.Fprintf(w, "  %s\n\n", repo.HTMLURL)
	}
}

func formatShares(shares []domain.LanguageShare) string {
	parts := make([]string, 0, len(shares))
	for _, s := range shares {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", s.Name, s.Percent))
	}
	return strings.Join(parts, ", ")
}
