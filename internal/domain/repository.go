// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Repository is one upstream repository as persisted in the cache and served to clients.
// The Name is the join key for the per-repository language and README artifacts.
type Repository struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Description   *string     `json:"description"`
	HTMLURL       string      `json:"html_url"`
	Language      *string     `json:"language"`
	LanguagesURL  string      `json:"languages_url"`
	PushedAt      time.Time   `json:"pushed_at"`
	DefaultBranch string      `json:"default_branch"`
	ReadmePreview *string     `json:"readme_preview"`
	Languages     LanguageMap `json:"languages,omitempty"`
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// IsSafeName reports whether name can be used as a file name inside the cache root.
func IsSafeName(name string) bool {
	return name != "." && name != ".." && safeName.MatchString(name)
}

// SortByPushedAt orders repositories by last push, most recent first.
// The sort is stable, so equal timestamps keep their upstream order.
func SortByPushedAt(repos []Repository) {
	sort.SliceStable(repos, func(i, j int) bool {
		return repos[i].PushedAt.After(repos[j].PushedAt)
	})
}

const defaultPreviewLength = 150

var headingMarker = regexp.MustCompile(`^#+\s`)

// TruncateReadme builds the short preview shown on a repository card: the first line of the
// README without its heading marker, cut at maxLength runes. "..." marks any dropped content.
// A non-positive maxLength selects the default of 150.
func TruncateReadme(markdown string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = defaultPreviewLength
	}
	lines := strings.Split(markdown, "\n")
	first := headingMarker.ReplaceAllString(strings.TrimRight(lines[0], "\r"), "")

	runes := []rune(first)
	if len(runes) > maxLength {
		return string(runes[:maxLength]) + "..."
	}
	if len(lines) > 1 {
		return first + "..."
	}
	return first
}
