// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/repo-cache/internal/domain"
)

const (
	// MaxPageSize is the largest page the listing endpoint accepts.
	MaxPageSize = 100

	jsonMediaType = "application/vnd.github.v3+json"
	rawMediaType  = "application/vnd.github.raw"
	userAgent     = "repo-cache"
)

// Fetcher defines the behavior of a gateway for fetching repository data from GitHub.
type Fetcher interface {
	ListRepositories(ctx context.Context, user string) ([]domain.Repository, error)
	FetchLanguages(ctx context.Context, user, repo string) (domain.LanguageMap, error)
	// FetchReadme returns the raw README text. A repository without a README
	// yields an error for which IsNotFound reports true.
	FetchReadme(ctx context.Context, user, repo string) (string, error)
}

// Options configures a GitHubGateway.
type Options struct {
	// Token is optional. Without it requests are unauthenticated and rate limited harder.
	Token string
	// UseGraphQL fetches language statistics through the GraphQL API. Requires Token.
	UseGraphQL bool
	// Timeout bounds every single upstream call. Zero disables the bound.
	Timeout time.Duration
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	timeout       time.Duration
	logger        *slog.Logger
}

// languagesQuery reads a repository's language breakdown in one round trip.
type languagesQuery struct {
	Repository struct {
		Languages struct {
			Edges []struct {
				Size int
				Node struct {
					Name string
				}
			}
		} `graphql:"languages(first: 100)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts Options, logger *slog.Logger) (*GitHubGateway, error) {
	if opts.UseGraphQL && opts.Token == "" {
		return nil, errors.New("the GraphQL API requires a token")
	}
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	var transport http.RoundTripper = rateLimitWaiter
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		}
	}
	httpClient := &http.Client{Transport: transport, Timeout: opts.Timeout}

	restClient := github.NewClient(httpClient)
	restClient.UserAgent = userAgent

	g := &GitHubGateway{
		restClient: restClient,
		timeout:    opts.Timeout,
		logger:     logger,
	}
	if opts.UseGraphQL {
		g.graphqlClient = githubv4.NewClient(httpClient)
	}
	return g, nil
}

// ListRepositories returns the user's public repositories in upstream order.
func (g *GitHubGateway) ListRepositories(ctx context.Context, user string) ([]domain.Repository, error) {
	var upstream []*github.Repository
	endpoint := fmt.Sprintf("users/%s/repos?per_page=%d", user, MaxPageSize)
	if err := g.FetchJSON(ctx, endpoint, &upstream); err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	repos := make([]domain.Repository, 0, len(upstream))
	for _, r := range upstream {
		repos = append(repos, toDomain(r))
	}
	g.logger.Debug("listed repositories", "user", user, "count", len(repos))
	return repos, nil
}

// FetchLanguages returns the byte count per language of one repository.
func (g *GitHubGateway) FetchLanguages(ctx context.Context, user, repo string) (domain.LanguageMap, error) {
	if g.graphqlClient != nil {
		return g.fetchLanguagesGraphQL(ctx, user, repo)
	}
	languages := domain.LanguageMap{}
	if err := g.FetchJSON(ctx, fmt.Sprintf("repos/%s/%s/languages", user, repo), &languages); err != nil {
		return nil, fmt.Errorf("failed to fetch languages: %w", err)
	}
	return languages, nil
}

func (g *GitHubGateway) fetchLanguagesGraphQL(ctx context.Context, user, repo string) (domain.LanguageMap, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var q languagesQuery
	variables := map[string]interface{}{
		"owner": githubv4.String(user),
		"name":  githubv4.String(repo),
	}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL query for languages: %w", err)
	}
	languages := make(domain.LanguageMap, len(q.Repository.Languages.Edges))
	for _, edge := range q.Repository.Languages.Edges {
		languages[edge.Node.Name] = int64(edge.Size)
	}
	return languages, nil
}

// FetchReadme returns the README of one repository as raw text.
func (g *GitHubGateway) FetchReadme(ctx context.Context, user, repo string) (string, error) {
	readme, err := g.FetchRaw(ctx, fmt.Sprintf("repos/%s/%s/readme", user, repo))
	if err != nil {
		return "", fmt.Errorf("failed to fetch README: %w", err)
	}
	return readme, nil
}

// FetchJSON issues a GET for endpoint, relative to the API base URL, and decodes the
// JSON response into v.
func (g *GitHubGateway) FetchJSON(ctx context.Context, endpoint string, v interface{}) error {
	req, err := g.restClient.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", jsonMediaType)
	return g.do(ctx, endpoint, req, v)
}

// FetchRaw issues a GET for endpoint asking for the raw media type and returns the body.
func (g *GitHubGateway) FetchRaw(ctx context.Context, endpoint string) (string, error) {
	req, err := g.restClient.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", rawMediaType)

	var buf bytes.Buffer
	if err := g.do(ctx, endpoint, req, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (g *GitHubGateway) do(ctx context.Context, endpoint string, req *http.Request, v interface{}) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := g.restClient.Do(ctx, req, v)
	g.logger.Debug("upstream request", "endpoint", endpoint, "duration", time.Since(start), "error", err)
	if err != nil {
		return asUpstreamError(endpoint, err)
	}
	return nil
}

func (g *GitHubGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func toDomain(r *github.Repository) domain.Repository {
	return domain.Repository{
		ID:            r.GetID(),
		Name:          r.GetName(),
		Description:   r.Description,
		HTMLURL:       r.GetHTMLURL(),
		Language:      r.Language,
		LanguagesURL:  r.GetLanguagesURL(),
		PushedAt:      r.GetPushedAt().Time.UTC(),
		DefaultBranch: r.GetDefaultBranch(),
	}
}
