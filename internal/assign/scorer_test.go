package assign

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/fieldops/backend/internal/models"
)

// workday falls inside the default 08:00-17:00 window.
var workday = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func sampleTeam(id string) models.FieldTeam {
	return models.FieldTeam{
		ID:     id,
		Name:   "Crew " + id,
		Skills: []string{"electrical"},
		CurrentLocation: models.TeamLocation{
			Latitude:  3.1400,
			Longitude: 101.6800,
		},
		Availability: models.Availability{
			IsAvailable:  true,
			WorkingHours: models.WorkingHours{Start: "08:00", End: "17:00"},
			Timezone:     "UTC",
		},
		Productivity: models.Productivity{
			TotalTicketsCompleted: 50,
			CustomerRating:        4.5,
			EfficiencyScore:       1.0,
		},
		Cost: models.Cost{
			HourlyRate:      45,
			TravelCostPerKm: 0.5,
		},
		Status: models.TeamActive,
	}
}

func sampleTicket() models.Ticket {
	return models.Ticket{
		ID:       "ticket-1",
		Title:    "Breaker fault",
		Priority: models.PriorityHigh,
		Category: "electrical",
		Status:   models.TicketOpen,
		Location: models.Location{
			Latitude:  3.1390,
			Longitude: 101.6870,
		},
		EstimatedDuration: 90,
		SkillsRequired:    []string{"electrical"},
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	if got := DefaultWeights().Sum(); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected weights to sum to 1.0, got %f", got)
	}
}

func TestProductivityScore(t *testing.T) {
	perfect := models.Productivity{
		TotalTicketsCompleted: 300,
		CustomerRating:        5,
		EfficiencyScore:       1,
	}
	if got := ProductivityScore(perfect); got != 100 {
		t.Fatalf("expected 100 for a perfect record, got %f", got)
	}

	if got := ProductivityScore(models.Productivity{}); got != 0 {
		t.Fatalf("expected 0 for an empty record, got %f", got)
	}

	mid := models.Productivity{
		TotalTicketsCompleted: 50,
		CustomerRating:        4.5,
		EfficiencyScore:       1.0,
	}
	// (4.5/5)*50 + 50/10 + 20 = 70
	if got := ProductivityScore(mid); math.Abs(got-70) > 1e-9 {
		t.Fatalf("expected 70, got %f", got)
	}
}

func TestAvailabilityScore(t *testing.T) {
	team := sampleTeam("a")

	if got := AvailabilityScore(team, workday); got != 100 {
		t.Fatalf("available, in hours, unassigned should be 100, got %f", got)
	}

	team.Availability.IsAvailable = false
	if got := AvailabilityScore(team, workday); got != 0 {
		t.Fatalf("unavailable technician must score 0, got %f", got)
	}

	team = sampleTeam("a")
	night := time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)
	if got := AvailabilityScore(team, night); got != 70 {
		t.Fatalf("outside working hours should drop the 30-point bonus, got %f", got)
	}

	team = sampleTeam("a")
	assignment := "ticket-9"
	team.CurrentAssignment = &assignment
	if got := AvailabilityScore(team, workday); got != 80 {
		t.Fatalf("assigned technician should drop the 20-point bonus, got %f", got)
	}
}

func TestDistanceScore(t *testing.T) {
	cases := []struct {
		km   float64
		want float64
	}{
		{0, 100},
		{25, 50},
		{50, 0},
		{100, 0},
	}
	for _, tc := range cases {
		if got := DistanceScore(tc.km); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("DistanceScore(%f) = %f, want %f", tc.km, got, tc.want)
		}
	}
}

func TestCostScore(t *testing.T) {
	ticket := sampleTicket()
	ticket.EstimatedDuration = 60

	team := sampleTeam("a")
	team.Cost.HourlyRate = 100
	team.Cost.TravelCostPerKm = 0.5

	// total = 0 + 1h * 100 = 100 -> 50
	score, total := CostScore(ticket, team, 0)
	if math.Abs(total-100) > 1e-9 || math.Abs(score-50) > 1e-9 {
		t.Fatalf("total=%f score=%f, want 100 and 50", total, score)
	}

	team.Cost.HourlyRate = 250
	score, _ = CostScore(ticket, team, 0)
	if score != 0 {
		t.Fatalf("expensive jobs must clamp to 0, got %f", score)
	}

	team.Cost.HourlyRate = 0
	score, total = CostScore(ticket, team, 0)
	if total != 0 || score != 100 {
		t.Fatalf("free jobs should score 100, got total=%f score=%f", total, score)
	}
}

func TestSkillsScore(t *testing.T) {
	ticket := sampleTicket()
	ticket.SkillsRequired = []string{"electrical", "hvac"}

	team := sampleTeam("a")
	team.Skills = []string{"electrical", "hvac", "plumbing"}
	if got := SkillsScore(ticket, team); got != 100 {
		t.Fatalf("full match should be 100, got %f", got)
	}

	team.Skills = []string{"electrical"}
	if got := SkillsScore(ticket, team); got != 50 {
		t.Fatalf("half match should be 50, got %f", got)
	}

	team.Skills = []string{"plumbing"}
	if got := SkillsScore(ticket, team); got != 0 {
		t.Fatalf("no match should be 0, got %f", got)
	}
}

func TestSkillsScoreDefaultsToCategory(t *testing.T) {
	ticket := sampleTicket()
	ticket.SkillsRequired = nil

	team := sampleTeam("a")
	if got := SkillsScore(ticket, team); got != 100 {
		t.Fatalf("category should stand in for missing skills, got %f", got)
	}
}

func TestWithinWorkingHours(t *testing.T) {
	av := models.Availability{WorkingHours: models.WorkingHours{Start: "08:30", End: "17:45"}}

	cases := []struct {
		hour int
		want bool
	}{
		{7, false},
		{8, true}, // minutes of the start time are ignored
		{12, true},
		{16, true},
		{17, false}, // end hour is exclusive
		{23, false},
	}
	for _, tc := range cases {
		now := time.Date(2026, 3, 2, tc.hour, 5, 0, 0, time.UTC)
		if got := WithinWorkingHours(av, now); got != tc.want {
			t.Fatalf("hour %d: got %v, want %v", tc.hour, got, tc.want)
		}
	}

	if WithinWorkingHours(models.Availability{}, workday) {
		t.Fatal("unparseable hours must not count as in-hours")
	}
}

func TestEligibleTeamsFilters(t *testing.T) {
	ticket := sampleTicket()

	ok := sampleTeam("ok")
	inactive := sampleTeam("inactive")
	inactive.Status = models.TeamInactive
	unavailable := sampleTeam("unavailable")
	unavailable.Availability.IsAvailable = false
	busy := sampleTeam("busy")
	current := "ticket-7"
	busy.CurrentAssignment = &current
	wrongSkill := sampleTeam("wrong-skill")
	wrongSkill.Skills = []string{"plumbing"}
	offShift := sampleTeam("off-shift")
	offShift.Availability.WorkingHours = models.WorkingHours{Start: "00:00", End: "06:00"}

	pool := []models.FieldTeam{ok, inactive, unavailable, busy, wrongSkill, offShift}
	eligible := EligibleTeams(pool, ticket, workday)
	if len(eligible) != 1 || eligible[0].ID != "ok" {
		t.Fatalf("expected only the clean technician to survive, got %+v", eligible)
	}
}

func TestScoreCandidatePerfectHundred(t *testing.T) {
	ticket := sampleTicket()
	team := sampleTeam("a")
	team.CurrentLocation.Latitude = ticket.Location.Latitude
	team.CurrentLocation.Longitude = ticket.Location.Longitude
	team.Productivity = models.Productivity{
		TotalTicketsCompleted: 300,
		CustomerRating:        5,
		EfficiencyScore:       1,
	}
	team.Cost.HourlyRate = 0
	team.Cost.TravelCostPerKm = 0

	c := ScoreCandidate(ticket, team, DefaultWeights(), workday)
	if math.Abs(c.TotalScore-100) > 1e-9 {
		t.Fatalf("all-perfect factors should aggregate to 100, got %f", c.TotalScore)
	}
	for i, r := range c.Reasoning {
		if r == "" {
			t.Fatalf("reasoning line %d is empty", i)
		}
	}
}

func TestScoreCandidateKualaLumpur(t *testing.T) {
	ticket := sampleTicket()
	team := sampleTeam("a")

	c := ScoreCandidate(ticket, team, DefaultWeights(), workday)

	if c.DistanceKm <= 0.5 || c.DistanceKm >= 1.0 {
		t.Fatalf("expected sub-kilometre distance, got %f", c.DistanceKm)
	}
	if c.Factors.Skills != 100 {
		t.Fatalf("expected full skills match, got %f", c.Factors.Skills)
	}
	if c.Factors.Availability != 100 {
		t.Fatalf("expected full availability, got %f", c.Factors.Availability)
	}
	if c.Factors.Distance < 95 {
		t.Fatalf("expected near-perfect distance score, got %f", c.Factors.Distance)
	}
	// 1.5h at $45 plus pennies of travel puts the cost score in the 60s.
	if c.Factors.Cost < 60 || c.Factors.Cost > 70 {
		t.Fatalf("unexpected cost score %f", c.Factors.Cost)
	}
	if c.TotalScore < 80 || c.TotalScore > 90 {
		t.Fatalf("expected aggregate in the 80s, got %f", c.TotalScore)
	}
	if c.TravelMinutes != 1 {
		t.Fatalf("expected 1 minute travel estimate, got %d", c.TravelMinutes)
	}
	if !c.EstimatedArrival.Equal(workday.Add(time.Minute)) {
		t.Fatalf("unexpected arrival estimate %v", c.EstimatedArrival)
	}
}

func TestRankOrdersByScore(t *testing.T) {
	ticket := sampleTicket()

	strong := sampleTeam("strong")
	strong.Productivity.CustomerRating = 5
	strong.Productivity.TotalTicketsCompleted = 300

	middling := sampleTeam("middling")
	middling.Productivity.CustomerRating = 3.5
	middling.Productivity.TotalTicketsCompleted = 60

	weak := sampleTeam("weak")
	weak.Productivity.CustomerRating = 2
	weak.Productivity.TotalTicketsCompleted = 3
	weak.Productivity.EfficiencyScore = 0.2
	weak.CurrentLocation.Latitude = 3.5 // much farther out

	ranked := Rank(ticket, []models.FieldTeam{weak, strong, middling}, DefaultWeights(), workday)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(ranked))
	}
	want := []string{"strong", "middling", "weak"}
	for i, id := range want {
		if ranked[i].Team.ID != id {
			t.Fatalf("position %d: got %s, want %s", i, ranked[i].Team.ID, id)
		}
	}
	if !(ranked[0].TotalScore > ranked[1].TotalScore && ranked[1].TotalScore > ranked[2].TotalScore) {
		t.Fatalf("scores not strictly descending: %f %f %f",
			ranked[0].TotalScore, ranked[1].TotalScore, ranked[2].TotalScore)
	}
}

func TestRankTieBreaksOnTeamID(t *testing.T) {
	ticket := sampleTicket()

	teams := []models.FieldTeam{sampleTeam("team-b"), sampleTeam("team-a"), sampleTeam("team-c")}
	for run := 0; run < 5; run++ {
		ranked := Rank(ticket, teams, DefaultWeights(), workday)
		for i, want := range []string{"team-a", "team-b", "team-c"} {
			if ranked[i].Team.ID != want {
				t.Fatalf("run %d position %d: got %s, want %s", run, i, ranked[i].Team.ID, want)
			}
		}
	}
}

func TestRankExcludesBusyTechnician(t *testing.T) {
	ticket := sampleTicket()

	free := sampleTeam("free")
	busy := sampleTeam("busy")
	busy.Status = models.TeamBusy
	current := "ticket-5"
	busy.CurrentAssignment = &current

	ranked := Rank(ticket, []models.FieldTeam{busy, free}, DefaultWeights(), workday)
	if len(ranked) != 1 || ranked[0].Team.ID != "free" {
		t.Fatalf("busy technician must not be ranked, got %+v", ranked)
	}
}

func TestParseTimeframe(t *testing.T) {
	now := workday
	cases := []struct {
		in       string
		fallback int
		wantDays int
	}{
		{"7d", 30, 7},
		{"30d", 7, 30},
		{"bogus", 7, 7},
		{"", 14, 14},
		{"-3d", 7, 7},
	}
	for _, tc := range cases {
		got := ParseTimeframe(tc.in, tc.fallback, now)
		want := now.AddDate(0, 0, -tc.wantDays)
		if !got.Equal(want) {
			t.Fatalf("ParseTimeframe(%q) = %v, want %v", tc.in, got, want)
		}
	}
}

func TestReasoningFormat(t *testing.T) {
	ticket := sampleTicket()
	team := sampleTeam("a")
	c := ScoreCandidate(ticket, team, DefaultWeights(), workday)

	wantFirst := fmt.Sprintf("Productivity: %.1f (50 tickets completed, 4.5 avg rating)", c.Factors.Productivity)
	if c.Reasoning[0] != wantFirst {
		t.Fatalf("got %q, want %q", c.Reasoning[0], wantFirst)
	}
}

func TestRankEmptyWhenNoTeamIsEligible(t *testing.T) {
	ticket := sampleTicket()

	inactive := sampleTeam("a")
	inactive.Status = models.TeamInactive

	unavailable := sampleTeam("b")
	unavailable.Availability.IsAvailable = false

	busy := sampleTeam("c")
	current := "ticket-9"
	busy.CurrentAssignment = &current

	unskilled := sampleTeam("d")
	unskilled.Skills = []string{"plumbing"}

	offShift := sampleTeam("e")
	offShift.Availability.WorkingHours = models.WorkingHours{Start: "18:00", End: "20:00"}

	pool := []models.FieldTeam{inactive, unavailable, busy, unskilled, offShift}

	if eligible := EligibleTeams(pool, ticket, workday); len(eligible) != 0 {
		t.Fatalf("expected no eligible teams, got %d", len(eligible))
	}
	if candidates := Rank(ticket, pool, DefaultWeights(), workday); len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}
