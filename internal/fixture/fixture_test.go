package fixture

import (
	"reflect"
	"testing"
	"time"

	"github.com/fieldops/backend/internal/geo"
	"github.com/fieldops/backend/internal/models"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(42, fixedNow)
	b := NewGenerator(42, fixedNow)

	if !reflect.DeepEqual(a.Teams(5), b.Teams(5)) {
		t.Fatal("same seed must yield identical teams")
	}
	if !reflect.DeepEqual(a.Tickets(5), b.Tickets(5)) {
		t.Fatal("same seed must yield identical tickets")
	}
}

func TestGeneratorSeedsDiffer(t *testing.T) {
	a := NewGenerator(1, fixedNow).Teams(3)
	b := NewGenerator(2, fixedNow).Teams(3)
	if reflect.DeepEqual(a, b) {
		t.Fatal("different seeds should yield different teams")
	}
}

func TestGeneratedTeamsAreAssignable(t *testing.T) {
	teams := NewGenerator(7, fixedNow).Teams(10)
	if len(teams) != 10 {
		t.Fatalf("expected 10 teams, got %d", len(teams))
	}
	for _, team := range teams {
		if team.Status != models.TeamActive {
			t.Fatalf("team %s not active", team.ID)
		}
		if !team.Availability.IsAvailable {
			t.Fatalf("team %s not available", team.ID)
		}
		if len(team.Skills) == 0 {
			t.Fatalf("team %s has no skills", team.ID)
		}
		if !geo.ValidCoordinates(team.CurrentLocation.Latitude, team.CurrentLocation.Longitude) {
			t.Fatalf("team %s has invalid coordinates", team.ID)
		}
		if team.Cost.HourlyRate <= 0 || team.Cost.TravelCostPerKm <= 0 {
			t.Fatalf("team %s has invalid cost data", team.ID)
		}
	}
}

func TestGeneratedTicketsAreOpen(t *testing.T) {
	tickets := NewGenerator(7, fixedNow).Tickets(10)
	seen := map[string]bool{}
	for _, ticket := range tickets {
		if !ticket.CanBeAssigned() {
			t.Fatalf("ticket %s not assignable", ticket.ID)
		}
		if len(ticket.RequiredSkills()) == 0 {
			t.Fatalf("ticket %s has no required skills", ticket.ID)
		}
		if !geo.ValidCoordinates(ticket.Location.Latitude, ticket.Location.Longitude) {
			t.Fatalf("ticket %s has invalid coordinates", ticket.ID)
		}
		if seen[ticket.TicketNumber] {
			t.Fatalf("duplicate ticket number %s", ticket.TicketNumber)
		}
		seen[ticket.TicketNumber] = true
	}
}
