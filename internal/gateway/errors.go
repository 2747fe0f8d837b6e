package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v62/github"
)

// UpstreamError is returned when GitHub answers with a non-success status.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("GitHub API error on %s: %d %s", e.Endpoint, e.StatusCode, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries a 404 from GitHub.
func IsNotFound(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound
}

// asUpstreamError converts go-github's status-bearing errors into an UpstreamError and wraps
// everything else (transport failures, timeouts) unchanged.
func asUpstreamError(endpoint string, err error) error {
	var resp *http.Response

	var errResp *github.ErrorResponse
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &errResp):
		resp = errResp.Response
	case errors.As(err, &rateErr):
		resp = rateErr.Response
	case errors.As(err, &abuseErr):
		resp = abuseErr.Response
	}
	if resp == nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	return &UpstreamError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Err:        err,
	}
}
