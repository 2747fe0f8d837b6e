package client

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
)

// ErrReadmeUnavailable is returned when a README is in neither cache and the server could
// not provide it.
var ErrReadmeUnavailable = errors.New("README unavailable")

// ReadmeReader returns full READMEs on demand, checking an in-memory session map, then the
// persistent cache, then the server.
type ReadmeReader struct {
	api    *API
	cache  *Cache
	logger *slog.Logger

	mu      sync.Mutex
	session map[string]string
}

// NewReadmeReader creates a new ReadmeReader.
func NewReadmeReader(api *API, cache *Cache, logger *slog.Logger) *ReadmeReader {
	return &ReadmeReader{api: api, cache: cache, logger: logger, session: make(map[string]string)}
}

// Readme returns the README of the named repository.
func (r *ReadmeReader) Readme(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	readme, ok := r.session[name]
	r.mu.Unlock()
	if ok {
		return readme, nil
	}

	if hit, err := r.cache.Get(ReadmeKey(name), &readme); err != nil {
		r.logger.Warn("reading cached README", "repo", name, "error", err)
	} else if hit {
		r.remember(name, readme)
		return readme, nil
	}

	readme, err := r.api.FetchText(ctx, "/repos/"+url.PathEscape(name)+"/readme")
	if err != nil {
		r.logger.Info("README unavailable", "repo", name, "error", err)
		return "", ErrReadmeUnavailable
	}
	if err := r.cache.Set(ReadmeKey(name), readme); err != nil {
		r.logger.Warn("failed to cache README", "repo", name, "error", err)
	}
	r.remember(name, readme)
	return readme, nil
}

func (r *ReadmeReader) remember(name, readme string) {
	r.mu.Lock()
	r.session[name] = readme
	r.mu.Unlock()
}
