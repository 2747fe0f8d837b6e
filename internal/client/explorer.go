package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-cache/internal/domain"
)

// Snapshot is what a consumer renders: the repository list with languages and README
// previews filled in, plus the metadata of the server refresh it came from.
type Snapshot struct {
	Repositories []domain.Repository
	Metadata     domain.CacheMetadata
	FromCache    bool
}

// Reconciliation is the outcome of comparing a cached snapshot against the server.
// Refreshed is set when the server had newer data and the cache was replaced.
type Reconciliation struct {
	Refreshed bool
	Snapshot  *Snapshot
	Err       error
}

// Explorer loads repository data for display, preferring the local cache.
type Explorer struct {
	api         *API
	cache       *Cache
	concurrency int
	logger      *slog.Logger
}

// ExplorerOption customizes an Explorer.
type ExplorerOption func(*Explorer)

// WithFetchConcurrency bounds how many repositories have their details fetched at once.
func WithFetchConcurrency(n int) ExplorerOption {
	return func(e *Explorer) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewExplorer creates a new Explorer.
func NewExplorer(api *API, cache *Cache, logger *slog.Logger, opts ...ExplorerOption) *Explorer {
	e := &Explorer{api: api, cache: cache, concurrency: 4, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load returns a snapshot. When both the cached list and metadata are still valid they are
// returned right away and a background check against the server reports on the channel;
// otherwise everything is fetched from the server and the channel is closed without a value.
func (e *Explorer) Load(ctx context.Context) (*Snapshot, <-chan Reconciliation, error) {
	var (
		repos []domain.Repository
		meta  domain.CacheMetadata
	)
	hasRepos, err := e.cache.Get(KeyRepositories, &repos)
	if err != nil {
		e.logger.Warn("reading cached repositories", "error", err)
	}
	hasMeta, err := e.cache.Get(KeyMetadata, &meta)
	if err != nil {
		e.logger.Warn("reading cached metadata", "error", err)
	}

	ch := make(chan Reconciliation, 1)
	if hasRepos && hasMeta {
		e.logger.Info("loading cached repository data", "count", len(repos))
		go func() {
			defer close(ch)
			ch <- e.Reconcile(ctx, meta)
		}()
		return &Snapshot{Repositories: repos, Metadata: meta, FromCache: true}, ch, nil
	}
	close(ch)

	snap, err := e.Fetch(ctx)
	if err != nil {
		return nil, ch, err
	}
	return snap, ch, nil
}

// Reconcile asks the server for its metadata and refetches everything when the server
// refreshed after cached. A failed check leaves the cache alone.
func (e *Explorer) Reconcile(ctx context.Context, cached domain.CacheMetadata) Reconciliation {
	var server domain.CacheMetadata
	if err := e.api.FetchJSON(ctx, "/metadata", &server); err != nil {
		e.logger.Error("failed to check server metadata", "error", err)
		return Reconciliation{Err: err}
	}
	if !server.NewerThan(cached) {
		return Reconciliation{}
	}

	e.logger.Info("updating cached data from server", "cached", cached.LastUpdated, "server", server.LastUpdated)
	snap, err := e.Fetch(ctx)
	if err != nil {
		return Reconciliation{Err: err}
	}
	return Reconciliation{Refreshed: true, Snapshot: snap}
}

// Fetch loads the list and every repository's details from the server and replaces the
// cached copies. Detail failures only leave that field empty; a list or metadata failure
// is returned.
func (e *Explorer) Fetch(ctx context.Context) (*Snapshot, error) {
	e.logger.Info("fetching repository data from server")

	var repos []domain.Repository
	if err := e.api.FetchJSON(ctx, "/repos", &repos); err != nil {
		return nil, fmt.Errorf("failed to fetch repository data: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range repos {
		g.Go(func() error {
			e.fillDetails(gctx, &repos[i])
			return nil
		})
	}
	_ = g.Wait()

	e.store(KeyRepositories, repos)

	var meta domain.CacheMetadata
	if err := e.api.FetchJSON(ctx, "/metadata", &meta); err != nil {
		return nil, fmt.Errorf("failed to fetch repository data: %w", err)
	}
	e.store(KeyMetadata, meta)

	return &Snapshot{Repositories: repos, Metadata: meta}, nil
}

func (e *Explorer) fillDetails(ctx context.Context, repo *domain.Repository) {
	repo.Languages = nil
	escaped := url.PathEscape(repo.Name)

	var languages domain.LanguageMap
	if err := e.api.FetchJSON(ctx, "/repos/"+escaped+"/languages", &languages); err != nil {
		e.logger.Info("failed to fetch languages", "repo", repo.Name, "error", err)
	} else {
		repo.Languages = languages
		e.store(LanguagesKey(repo.Name), languages)
	}

	readme, err := e.api.FetchText(ctx, "/repos/"+escaped+"/readme")
	if err != nil {
		e.logger.Info("failed to fetch README", "repo", repo.Name, "error", err)
		return
	}
	preview := domain.TruncateReadme(readme, 0)
	repo.ReadmePreview = &preview
	e.store(ReadmeKey(repo.Name), readme)
}

// store writes v to the cache, logging failures.
func (e *Explorer) store(key string, v any) {
	if err := e.cache.Set(key, v); err != nil {
		e.logger.Warn("failed to cache", "key", key, "error", err)
	}
}
