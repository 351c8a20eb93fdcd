package assign

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/backend/internal/models"
)

type Overview struct {
	TotalAssignments  int     `json:"total_assignments"`
	AverageScore      float64 `json:"average_score"`
	CompletionRate    float64 `json:"completion_rate"`
	AverageTravelTime float64 `json:"average_travel_time"`
	AverageCost       float64 `json:"average_cost"`
}

type GroupStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

type TeamStats struct {
	TeamID         string  `json:"team_id"`
	Name           string  `json:"name"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
	AverageRating  float64 `json:"average_rating"`
}

type PerformanceReport struct {
	TotalAssignments      int                   `json:"total_assignments"`
	CompletedAssignments  int                   `json:"completed_assignments"`
	AverageScore          float64               `json:"average_score"`
	AverageRating         float64               `json:"average_rating"`
	AverageCompletionTime float64               `json:"average_completion_time"`
	ByCategory            map[string]GroupStats `json:"by_category"`
	ByPriority            map[string]GroupStats `json:"by_priority"`
	TopPerformers         []TeamStats           `json:"top_performers"`
}

// ParseTimeframe turns "7d"-style windows into a start time. Bad input falls
// back to the default window.
func ParseTimeframe(tf string, defaultDays int, now time.Time) time.Time {
	days := defaultDays
	if v := strings.TrimSuffix(tf, "d"); v != tf {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	return now.AddDate(0, 0, -days)
}

// Analytics summarizes assignment activity over a timeframe like "7d".
func (s *Service) Analytics(ctx context.Context, timeframe string) (Overview, error) {
	since := ParseTimeframe(timeframe, 7, s.now())
	assignments, err := s.Store.ListAssignmentsSince(ctx, since, "")
	if err != nil {
		return Overview{}, err
	}

	o := Overview{TotalAssignments: len(assignments)}
	if len(assignments) == 0 {
		return o, nil
	}

	var completed int
	var scoreSum, travelSum, costSum float64
	for _, a := range assignments {
		scoreSum += a.AssignmentScore
		if a.Status == models.AssignmentCompleted {
			completed++
		}
		switch {
		case a.TravelTime.Actual != nil:
			travelSum += float64(*a.TravelTime.Actual)
		case a.TravelTime.Estimated != nil:
			travelSum += float64(*a.TravelTime.Estimated)
		}
		if a.ActualCost != nil {
			costSum += *a.ActualCost
		} else {
			costSum += a.EstimatedCost
		}
	}

	n := float64(len(assignments))
	o.AverageScore = scoreSum / n
	o.CompletionRate = float64(completed) / n * 100
	o.AverageTravelTime = travelSum / n
	o.AverageCost = costSum / n
	return o, nil
}

// Performance builds the per-category, per-priority, and per-team rollup,
// optionally scoped to one technician.
func (s *Service) Performance(ctx context.Context, timeframe, teamID string) (PerformanceReport, error) {
	since := ParseTimeframe(timeframe, 30, s.now())
	rows, err := s.Store.ListAssignmentRollups(ctx, since, teamID)
	if err != nil {
		return PerformanceReport{}, err
	}

	report := PerformanceReport{
		TotalAssignments: len(rows),
		ByCategory:       map[string]GroupStats{},
		ByPriority:       map[string]GroupStats{},
		TopPerformers:    []TeamStats{},
	}
	if len(rows) == 0 {
		return report, nil
	}

	type teamAcc struct {
		stats     TeamStats
		ratingSum float64
		rated     int
	}

	teams := map[string]*teamAcc{}
	var scoreSum, ratingSum, timeSum float64
	var rated, timed int

	for _, r := range rows {
		a := r.Assignment
		scoreSum += a.AssignmentScore
		done := a.Status == models.AssignmentCompleted
		if done {
			report.CompletedAssignments++
			if a.Performance.CustomerRating != nil {
				ratingSum += *a.Performance.CustomerRating
				rated++
			}
			if a.Performance.CompletionTime != nil {
				timeSum += float64(*a.Performance.CompletionTime)
				timed++
			}
		}

		cat := report.ByCategory[r.Category]
		cat.Total++
		if done {
			cat.Completed++
		}
		report.ByCategory[r.Category] = cat

		pri := report.ByPriority[r.Priority]
		pri.Total++
		if done {
			pri.Completed++
		}
		report.ByPriority[r.Priority] = pri

		acc, ok := teams[a.TeamID]
		if !ok {
			acc = &teamAcc{stats: TeamStats{TeamID: a.TeamID, Name: r.TeamName}}
			teams[a.TeamID] = acc
		}
		acc.stats.Total++
		if done {
			acc.stats.Completed++
			if a.Performance.CustomerRating != nil {
				acc.ratingSum += *a.Performance.CustomerRating
				acc.rated++
			}
		}
	}

	report.AverageScore = scoreSum / float64(len(rows))
	if rated > 0 {
		report.AverageRating = ratingSum / float64(rated)
	}
	if timed > 0 {
		report.AverageCompletionTime = timeSum / float64(timed)
	}

	for _, acc := range teams {
		st := acc.stats
		if st.Total > 0 {
			st.CompletionRate = float64(st.Completed) / float64(st.Total) * 100
		}
		if acc.rated > 0 {
			st.AverageRating = acc.ratingSum / float64(acc.rated)
		}
		report.TopPerformers = append(report.TopPerformers, st)
	}
	sort.Slice(report.TopPerformers, func(i, j int) bool {
		if report.TopPerformers[i].AverageRating == report.TopPerformers[j].AverageRating {
			return report.TopPerformers[i].TeamID < report.TopPerformers[j].TeamID
		}
		return report.TopPerformers[i].AverageRating > report.TopPerformers[j].AverageRating
	})
	if len(report.TopPerformers) > 10 {
		report.TopPerformers = report.TopPerformers[:10]
	}
	return report, nil
}
