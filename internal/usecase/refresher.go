// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-cache/internal/domain"
	"github.com/naka-gawa/repo-cache/internal/gateway"
)

// SnapshotWriter is the part of the durable store the refresher needs.
type SnapshotWriter interface {
	WriteRepositories(repos []domain.Repository) error
	WriteLanguages(name string, languages domain.LanguageMap) error
	WriteReadme(name, readme string) error
	DeleteReadme(name string) error
	WriteMetadata(meta domain.CacheMetadata) error
	ReadMetadata() (*domain.CacheMetadata, error)
}

// Refresher is the use case for mirroring an account's repositories into the store.
// It orchestrates one refresh cycle: list, sort, persist, then fetch the per-repository
// artifacts with failures isolated to the repository they happened in.
type Refresher struct {
	fetcher     gateway.Fetcher
	store       SnapshotWriter
	user        string
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// RefresherOption customizes a Refresher.
type RefresherOption func(*Refresher)

// WithConcurrency bounds how many repositories are processed at once. The default of 1
// keeps the cycle sequential.
func WithConcurrency(n int) RefresherOption {
	return func(r *Refresher) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) { r.now = now }
}

// NewRefresher creates a new Refresher instance.
func NewRefresher(fetcher gateway.Fetcher, store SnapshotWriter, user string, logger *slog.Logger, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		fetcher:     fetcher,
		store:       store,
		user:        user,
		concurrency: 1,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh runs one refresh cycle.
// An error means the listing or the snapshot itself could not be written; the previous
// snapshot is then left as it was. Per-repository failures are reported in the summary only.
func (r *Refresher) Refresh(ctx context.Context) (*domain.CycleSummary, error) {
	summary := &domain.CycleSummary{StartedAt: r.now().UTC()}
	r.logger.Info("starting cache update", "user", r.user)

	repos, err := r.fetcher.ListRepositories(ctx, r.user)
	if err != nil {
		r.logger.Error("cache update failed", "error", err)
		return nil, err
	}
	domain.SortByPushedAt(repos)
	summary.Listed = len(repos)

	if err := r.store.WriteRepositories(repos); err != nil {
		r.logger.Error("cache update failed", "error", err)
		return nil, fmt.Errorf("save repositories: %w", err)
	}

	summary.Outcomes = make([]domain.RepoOutcome, len(repos))

	// Tasks never return an error so one repository cannot cancel its siblings.
	eg := new(errgroup.Group)
	eg.SetLimit(r.concurrency)
	for i := range repos {
		eg.Go(func() error {
			summary.Outcomes[i] = r.refreshRepository(ctx, repos[i].Name)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cache update interrupted: %w", err)
	}

	// A missing or unreadable previous metadata document only loses the monotonic guard.
	previous, _ := r.store.ReadMetadata()
	meta := domain.CacheMetadata{
		LastUpdated: domain.NextRefreshTime(r.now(), previous),
		RepoCount:   len(repos),
	}
	if err := r.store.WriteMetadata(meta); err != nil {
		r.logger.Error("cache update failed", "error", err)
		return nil, fmt.Errorf("save metadata: %w", err)
	}

	summary.FinishedAt = r.now().UTC()
	summary.Tally()
	r.logger.Info("cache update completed",
		"listed", summary.Listed,
		"succeeded", summary.Succeeded,
		"without_readme", summary.WithoutReadme,
		"failed", summary.Failed,
		"median", summary.MedianDuration,
		"max", summary.MaxDuration,
	)
	return summary, nil
}

// refreshRepository fetches and stores the language map and README of one repository.
// Both steps are attempted even when the first one fails.
func (r *Refresher) refreshRepository(ctx context.Context, name string) domain.RepoOutcome {
	start := time.Now()
	outcome := domain.RepoOutcome{Name: name, Status: domain.OutcomeOK}
	logger := r.logger.With("repo", name)
	logger.Debug("processing repository")

	var errs []error
	fail := func(step string, err error) {
		logger.Error("error processing repository", "step", step, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", step, err))
	}

	if !domain.IsSafeName(name) {
		fail("validate", fmt.Errorf("name %q is not filesystem safe", name))
	} else {
		if languages, err := r.fetcher.FetchLanguages(ctx, r.user, name); err != nil {
			fail("languages", err)
		} else if err := r.store.WriteLanguages(name, languages); err != nil {
			fail("languages", err)
		}

		readme, err := r.fetcher.FetchReadme(ctx, r.user, name)
		switch {
		case gateway.IsNotFound(err):
			logger.Info("no README found")
			outcome.Status = domain.OutcomeNoReadme
			if err := r.store.DeleteReadme(name); err != nil {
				fail("readme", err)
			}
		case err != nil:
			fail("readme", err)
		default:
			if err := r.store.WriteReadme(name, readme); err != nil {
				fail("readme", err)
			}
		}
	}

	if len(errs) > 0 {
		outcome.Status = domain.OutcomeFailed
		outcome.Error = errors.Join(errs...).Error()
	}
	outcome.Duration = time.Since(start)
	return outcome
}
