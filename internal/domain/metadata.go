package domain

import "time"

// CacheMetadata records when the cache was last refreshed and how many repositories the
// listing contained. Clients compare LastUpdated, not their own clock, to detect staleness.
type CacheMetadata struct {
	LastUpdated time.Time `json:"last_updated"`
	RepoCount   int       `json:"repo_count"`
}

// NewerThan reports whether m was produced by a later refresh than other.
func (m CacheMetadata) NewerThan(other CacheMetadata) bool {
	return m.LastUpdated.After(other.LastUpdated)
}

// NextRefreshTime returns now, or one millisecond past previous when the clock has not
// moved beyond it, so LastUpdated keeps strictly increasing.
func NextRefreshTime(now time.Time, previous *CacheMetadata) time.Time {
	now = now.UTC()
	if previous != nil && !now.After(previous.LastUpdated) {
		return previous.LastUpdated.UTC().Add(time.Millisecond)
	}
	return now
}
