package geo

import (
	"math"
	"testing"

	"github.com/fieldops/backend/internal/models"
)

func TestHaversineKm(t *testing.T) {
	if d := HaversineKm(3.139, 101.687, 3.139, 101.687); d != 0 {
		t.Fatalf("distance to self must be 0, got %f", d)
	}

	// Kuala Lumpur to George Town is roughly 290 km as the crow flies.
	d := HaversineKm(3.139, 101.687, 5.414, 100.329)
	if d < 280 || d > 300 {
		t.Fatalf("unexpected KL-George Town distance %f", d)
	}

	// Symmetry.
	back := HaversineKm(5.414, 100.329, 3.139, 101.687)
	if math.Abs(d-back) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", d, back)
	}
}

func TestTravelMinutes(t *testing.T) {
	cases := []struct {
		km   float64
		want int
	}{
		{0, 0},
		{10, 15},
		{0.785, 1},
		{33.4, 50},
	}
	for _, tc := range cases {
		if got := TravelMinutes(tc.km); got != tc.want {
			t.Fatalf("TravelMinutes(%f) = %d, want %d", tc.km, got, tc.want)
		}
	}
}

func TestValidCoordinates(t *testing.T) {
	valid := [][2]float64{{0, 0}, {-90, -180}, {90, 180}, {3.14, 101.69}}
	for _, c := range valid {
		if !ValidCoordinates(c[0], c[1]) {
			t.Fatalf("expected (%f, %f) to be valid", c[0], c[1])
		}
	}
	invalid := [][2]float64{{-91, 0}, {91, 0}, {0, -181}, {0, 181}}
	for _, c := range invalid {
		if ValidCoordinates(c[0], c[1]) {
			t.Fatalf("expected (%f, %f) to be invalid", c[0], c[1])
		}
	}
}

func teamAt(id string, lat, lon float64) models.FieldTeam {
	return models.FieldTeam{
		ID:              id,
		CurrentLocation: models.TeamLocation{Latitude: lat, Longitude: lon},
	}
}

func TestNearbyTeams(t *testing.T) {
	teams := []models.FieldTeam{
		teamAt("far", 4.0, 102.5),
		teamAt("near", 3.141, 101.688),
		teamAt("mid", 3.3, 101.8),
	}

	nearby := NearbyTeams(3.139, 101.687, teams, 50)
	if len(nearby) != 2 {
		t.Fatalf("expected 2 teams inside 50km, got %d", len(nearby))
	}
	if nearby[0].Team.ID != "near" || nearby[1].Team.ID != "mid" {
		t.Fatalf("expected nearest-first ordering, got %s then %s", nearby[0].Team.ID, nearby[1].Team.ID)
	}
	if nearby[0].DistanceKm >= nearby[1].DistanceKm {
		t.Fatalf("distances not ascending: %f >= %f", nearby[0].DistanceKm, nearby[1].DistanceKm)
	}
}

func TestOptimizeRoute(t *testing.T) {
	// Stops laid out on a line east of the start; nearest-neighbour should
	// visit them in longitude order regardless of input order.
	waypoints := []Waypoint{
		{ID: "c", TicketNumber: "TT-000003", Latitude: 3.139, Longitude: 101.75},
		{ID: "a", TicketNumber: "TT-000001", Latitude: 3.139, Longitude: 101.69},
		{ID: "b", TicketNumber: "TT-000002", Latitude: 3.139, Longitude: 101.72},
	}

	route := OptimizeRoute(3.139, 101.687, waypoints)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if route[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, route[i].ID, id)
		}
	}
}

func TestOptimizeRouteSmallInputs(t *testing.T) {
	if got := OptimizeRoute(0, 0, nil); len(got) != 0 {
		t.Fatalf("empty input should stay empty, got %v", got)
	}
	one := []Waypoint{{ID: "only"}}
	if got := OptimizeRoute(0, 0, one); len(got) != 1 || got[0].ID != "only" {
		t.Fatalf("single waypoint should pass through, got %v", got)
	}
}

func TestPlanJourney(t *testing.T) {
	waypoints := []Waypoint{
		{ID: "b", TicketNumber: "TT-000002", Latitude: 3.139, Longitude: 101.72},
		{ID: "a", TicketNumber: "TT-000001", Latitude: 3.139, Longitude: 101.69},
	}

	j := PlanJourney(3.139, 101.687, waypoints)
	if len(j.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(j.Legs))
	}
	if j.Order[0] != "TT-000001" || j.Order[1] != "TT-000002" {
		t.Fatalf("unexpected visiting order %v", j.Order)
	}
	if j.TotalDistanceKm <= 0 {
		t.Fatalf("expected positive total distance, got %f", j.TotalDistanceKm)
	}

	// Per-leg durations carry the 20% traffic margin over the base proxy.
	for _, leg := range j.Legs {
		want := leg.DistanceKm * 1.5 * 1.2
		if math.Abs(leg.DurationMn-want) > 1e-9 {
			t.Fatalf("leg duration %f, want %f", leg.DurationMn, want)
		}
	}
}
