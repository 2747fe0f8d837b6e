package domain

import (
	"sort"

	"github.com/montanaflynn/stats"
)

// SignificantShare is the percentage below which a language is not worth displaying.
const SignificantShare = 1.0

// LanguageMap maps a language name to the number of bytes written in it.
type LanguageMap map[string]int64

// LanguageShare is one language's slice of a repository.
type LanguageShare struct {
	Name    string  `json:"name"`
	Bytes   int64   `json:"bytes"`
	Percent float64 `json:"percent"`
}

// Total returns the sum of all byte counts.
func (m LanguageMap) Total() int64 {
	if len(m) == 0 {
		return 0
	}
	values := make(stats.Float64Data, 0, len(m))
	for _, b := range m {
		values = append(values, float64(b))
	}
	sum, err := stats.Sum(values)
	if err != nil {
		return 0
	}
	return int64(sum)
}

// Percentages returns every language with its share of the total, largest first.
// Ties are ordered by name so the output is deterministic.
func (m LanguageMap) Percentages() []LanguageShare {
	total := m.Total()
	shares := make([]LanguageShare, 0, len(m))
	for name, b := range m {
		share := LanguageShare{Name: name, Bytes: b}
		if total > 0 {
			share.Percent = float64(b) / float64(total) * 100
		}
		shares = append(shares, share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Bytes != shares[j].Bytes {
			return shares[i].Bytes > shares[j].Bytes
		}
		return shares[i].Name < shares[j].Name
	})
	return shares
}

// Significant is Percentages without the entries under SignificantShare.
func (m LanguageMap) Significant() []LanguageShare {
	all := m.Percentages()
	out := all[:0]
	for _, s := range all {
		if s.Percent >= SignificantShare {
			out = append(out, s)
		}
	}
	return out
}
