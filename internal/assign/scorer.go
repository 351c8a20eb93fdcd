package assign

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/backend/internal/geo"
	"github.com/fieldops/backend/internal/models"
)

// Weights control how the five sub-scores combine into the aggregate. They
// must sum to 1.0; DefaultWeights matches the dispatch heuristic in
// production.
type Weights struct {
	Productivity float64
	Availability float64
	Cost         float64
	Distance     float64
	Skills       float64
}

func DefaultWeights() Weights {
	return Weights{
		Productivity: 0.30,
		Availability: 0.20,
		Cost:         0.20,
		Distance:     0.20,
		Skills:       0.10,
	}
}

func (w Weights) Sum() float64 {
	return w.Productivity + w.Availability + w.Cost + w.Distance + w.Skills
}

// Candidate is one technician scored against a ticket.
type Candidate struct {
	Team             models.FieldTeam `json:"team"`
	TotalScore       float64          `json:"total_score"`
	Factors          models.Factors   `json:"factors"`
	Reasoning        []string         `json:"reasoning"`
	DistanceKm       float64          `json:"distance_km"`
	TravelMinutes    int              `json:"travel_minutes"`
	EstimatedCost    float64          `json:"estimated_cost"`
	EstimatedArrival time.Time        `json:"estimated_arrival"`
}

// WithinWorkingHours checks the half-open interval [start_hour, end_hour).
// Minutes in the "HH:MM" strings are ignored.
func WithinWorkingHours(av models.Availability, now time.Time) bool {
	startHour, okStart := parseHour(av.WorkingHours.Start)
	endHour, okEnd := parseHour(av.WorkingHours.End)
	if !okStart || !okEnd {
		return false
	}
	h := now.Hour()
	return h >= startHour && h < endHour
}

func parseHour(hhmm string) (int, bool) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) == 0 || parts[0] == "" {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// EligibleTeams filters the pool down to technicians that can take the ticket:
// active, marked available, holding at least one required skill, not already
// assigned, and inside working hours.
func EligibleTeams(teams []models.FieldTeam, ticket models.Ticket, now time.Time) []models.FieldTeam {
	required := ticket.RequiredSkills()
	out := make([]models.FieldTeam, 0, len(teams))
	for _, t := range teams {
		if t.Status != models.TeamActive {
			continue
		}
		if !t.Availability.IsAvailable {
			continue
		}
		if t.CurrentAssignment != nil {
			continue
		}
		if !hasAnySkill(t, required) {
			continue
		}
		if !WithinWorkingHours(t.Availability, now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func hasAnySkill(team models.FieldTeam, required []string) bool {
	for _, r := range required {
		if team.HasSkill(r) {
			return true
		}
	}
	return false
}

// ProductivityScore rewards rating, volume, and efficiency, each additively
// capped so no single dimension saturates the score alone.
func ProductivityScore(p models.Productivity) float64 {
	ratingScore := (p.CustomerRating / 5) * 50
	experienceScore := math.Min(float64(p.TotalTicketsCompleted)/10, 30)
	efficiencyBonus := math.Min(p.EfficiencyScore*20, 20)
	return clamp(ratingScore + experienceScore + efficiencyBonus)
}

// AvailabilityScore is 0 when the technician is flagged unavailable, otherwise
// a 50-point base plus bonuses for being inside working hours and unassigned.
func AvailabilityScore(team models.FieldTeam, now time.Time) float64 {
	if !team.Availability.IsAvailable {
		return 0
	}
	score := 50.0
	if WithinWorkingHours(team.Availability, now) {
		score += 30
	}
	if team.CurrentAssignment == nil {
		score += 20
	}
	return clamp(score)
}

// CostScore estimates travel plus labour cost and decays linearly: a $100 job
// scores 50, a $200 job scores 0.
func CostScore(ticket models.Ticket, team models.FieldTeam, distanceKm float64) (score, totalCost float64) {
	travelCost := distanceKm * team.Cost.TravelCostPerKm
	workCost := (float64(ticket.EstimatedDuration) / 60) * team.Cost.HourlyRate
	totalCost = travelCost + workCost
	score = clamp(100 - (totalCost/100)*50)
	return score, totalCost
}

// DistanceScore decays linearly with distance; anything at or beyond 50 km
// scores 0.
func DistanceScore(distanceKm float64) float64 {
	return clamp(100 - (distanceKm/50)*100)
}

// SkillsScore is the fraction of required skills the technician holds.
func SkillsScore(ticket models.Ticket, team models.FieldTeam) float64 {
	required := ticket.RequiredSkills()
	if len(required) == 0 {
		return 0
	}
	matched := 0
	for _, r := range required {
		if team.HasSkill(r) {
			matched++
		}
	}
	return clamp(float64(matched) / float64(len(required)) * 100)
}

// ScoreCandidate computes all five sub-scores and the weighted aggregate for
// one technician.
func ScoreCandidate(ticket models.Ticket, team models.FieldTeam, w Weights, now time.Time) Candidate {
	distance := geo.HaversineKm(
		team.CurrentLocation.Latitude, team.CurrentLocation.Longitude,
		ticket.Location.Latitude, ticket.Location.Longitude,
	)
	travelMinutes := geo.TravelMinutes(distance)

	factors := models.Factors{
		Productivity: ProductivityScore(team.Productivity),
		Availability: AvailabilityScore(team, now),
		Distance:     DistanceScore(distance),
		Skills:       SkillsScore(ticket, team),
	}
	costScore, totalCost := CostScore(ticket, team, distance)
	factors.Cost = costScore

	total := factors.Productivity*w.Productivity +
		factors.Availability*w.Availability +
		factors.Cost*w.Cost +
		factors.Distance*w.Distance +
		factors.Skills*w.Skills

	availabilityLabel := "Unavailable"
	if team.Availability.IsAvailable {
		availabilityLabel = "Available"
	}
	reasoning := []string{
		fmt.Sprintf("Productivity: %.1f (%d tickets completed, %.1f avg rating)",
			factors.Productivity, team.Productivity.TotalTicketsCompleted, team.Productivity.CustomerRating),
		fmt.Sprintf("Availability: %.1f (%s)", factors.Availability, availabilityLabel),
		fmt.Sprintf("Cost: %.1f ($%.2f estimated)", factors.Cost, totalCost),
		fmt.Sprintf("Distance: %.1f (%.1fkm, %dmin travel)", factors.Distance, distance, travelMinutes),
		fmt.Sprintf("Skills: %.1f (%.0f%% match)", factors.Skills, factors.Skills),
	}

	return Candidate{
		Team:             team,
		TotalScore:       total,
		Factors:          factors,
		Reasoning:        reasoning,
		DistanceKm:       distance,
		TravelMinutes:    travelMinutes,
		EstimatedCost:    totalCost,
		EstimatedArrival: now.Add(time.Duration(travelMinutes) * time.Minute),
	}
}

// Rank scores every eligible technician and sorts best first. Equal aggregate
// scores break on the lower team ID so the ranking is deterministic.
func Rank(ticket models.Ticket, teams []models.FieldTeam, w Weights, now time.Time) []Candidate {
	eligible := EligibleTeams(teams, ticket, now)
	candidates := make([]Candidate, 0, len(eligible))
	for _, t := range eligible {
		candidates = append(candidates, ScoreCandidate(ticket, t, w, now))
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].TotalScore == candidates[j].TotalScore {
			return candidates[i].Team.ID < candidates[j].Team.ID
		}
		return candidates[i].TotalScore > candidates[j].TotalScore
	})
	return candidates
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
