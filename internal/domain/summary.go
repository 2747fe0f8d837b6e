package domain

import (
	"time"

	"github.com/montanaflynn/stats"
)

// OutcomeStatus classifies how one repository fared in a refresh cycle.
type OutcomeStatus string

const (
	// OutcomeOK means languages and README were both stored.
	OutcomeOK OutcomeStatus = "ok"
	// OutcomeNoReadme means languages were stored and upstream has no README.
	OutcomeNoReadme OutcomeStatus = "no_readme"
	// OutcomeFailed means at least one step failed; see Error.
	OutcomeFailed OutcomeStatus = "failed"
)

// RepoOutcome is the result of refreshing a single repository.
type RepoOutcome struct {
	Name     string        `json:"name"`
	Status   OutcomeStatus `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// CycleSummary aggregates the outcomes of one refresh cycle.
type CycleSummary struct {
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Listed         int           `json:"listed"`
	Succeeded      int           `json:"succeeded"`
	WithoutReadme  int           `json:"without_readme"`
	Failed         int           `json:"failed"`
	MedianDuration time.Duration `json:"median_duration_ns"`
	MaxDuration    time.Duration `json:"max_duration_ns"`
	Outcomes       []RepoOutcome `json:"outcomes"`
}

// Tally fills the counters and duration statistics from Outcomes.
func (s *CycleSummary) Tally() {
	s.Succeeded, s.WithoutReadme, s.Failed = 0, 0, 0
	durations := make(stats.Float64Data, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		switch o.Status {
		case OutcomeOK:
			s.Succeeded++
		case OutcomeNoReadme:
			s.WithoutReadme++
		case OutcomeFailed:
			s.Failed++
		}
		durations = append(durations, float64(o.Duration))
	}
	if len(durations) == 0 {
		return
	}
	if median, err := durations.Median(); err == nil {
		s.MedianDuration = time.Duration(median)
	}
	if max, err := durations.Max(); err == nil {
		s.MaxDuration = time.Duration(max)
	}
}
