// Package summary aggregates scan results.
package summary

import (
	"fmt"
	"math"
	"sort"

	"github.com/prettymuchbryce/kpicheck/internal/scan"
)

// Summary holds the aggregate figures of one scan.
type Summary struct {
	TotalFiles        int         `json:"total_files"`
	Compliant         int         `json:"compliant"`
	NonCompliant      int         `json:"noncompliant"`
	Unreadable        int         `json:"unreadable"`
	ScoredFiles       int         `json:"scored_files"`
	AverageScore      float64     `json:"average_score"` // two decimals, 0 without scores
	ScoreDistribution map[int]int `json:"score_distribution"`
}

// Summarize computes the summary of results. Empty input yields all zeros.
func Summarize(results []scan.CheckResult) Summary {
	s := Summary{
		TotalFiles:        len(results),
		ScoreDistribution: make(map[int]int),
	}

	total := 0
	for _, r := range results {
		switch r.Status {
		case scan.StatusCompliant:
			s.Compliant++
		case scan.StatusNonCompliant:
			s.NonCompliant++
		case scan.StatusUnreadable:
			s.Unreadable++
		}
		if r.HasKPI && r.Score != nil {
			s.ScoredFiles++
			total += *r.Score
			s.ScoreDistribution[*r.Score]++
		}
	}

	if s.ScoredFiles > 0 {
		s.AverageScore = math.Round(float64(total)/float64(s.ScoredFiles)*100) / 100
	}
	return s
}

// AverageText renders the average score, "N/A" when nothing was scored.
func (s Summary) AverageText() string {
	if s.ScoredFiles == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", s.AverageScore)
}

// ComplianceRate is the percentage of compliant files, 0 for an empty scan.
func (s Summary) ComplianceRate() float64 {
	if s.TotalFiles == 0 {
		return 0
	}
	return math.Round(float64(s.Compliant)/float64(s.TotalFiles)*10000) / 100
}

// Scores returns the distinct scores in descending order.
func (s Summary) Scores() []int {
	scores := make([]int, 0, len(s.ScoreDistribution))
	for score := range s.ScoreDistribution {
		scores = append(scores, score)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	return scores
}

// Partition splits results into compliant and noncompliant ones, keeping
// input order. Unreadable results belong to neither.
func Partition(results []scan.CheckResult) (compliant, noncompliant []scan.CheckResult) {
	for _, r := range results {
		switch r.Status {
		case scan.StatusCompliant:
			compliant = append(compliant, r)
		case scan.StatusNonCompliant:
			noncompliant = append(noncompliant, r)
		}
	}
	return compliant, noncompliant
}

// Unreadable returns the results whose documents could not be read.
func Unreadable(results []scan.CheckResult) []scan.CheckResult {
	var out []scan.CheckResult
	for _, r := range results {
		if r.Status == scan.StatusUnreadable {
			out = append(out, r)
		}
	}
	return out
}
