package geo

import (
	"math"
	"sort"

	"github.com/fieldops/backend/internal/models"
)

const earthRadiusKm = 6371.0

// Travel time proxy: 1.5 minutes per kilometre at an assumed average speed.
// A routing API would replace this; the scorer only needs a consistent estimate.
const minutesPerKm = 1.5

// HaversineKm returns the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	lat1R := degreesToRadians(lat1)
	lat2R := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1R)*math.Cos(lat2R)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}

// TravelMinutes estimates door-to-door travel time for a distance.
func TravelMinutes(distanceKm float64) int {
	return int(math.Round(distanceKm * minutesPerKm))
}

// ValidCoordinates checks latitude/longitude ranges.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

type NearbyTeam struct {
	Team       models.FieldTeam `json:"team"`
	DistanceKm float64          `json:"distance_km"`
}

// NearbyTeams filters teams within radiusKm of a point, sorted nearest first.
func NearbyTeams(lat, lon float64, teams []models.FieldTeam, radiusKm float64) []NearbyTeam {
	out := make([]NearbyTeam, 0, len(teams))
	for _, t := range teams {
		d := HaversineKm(lat, lon, t.CurrentLocation.Latitude, t.CurrentLocation.Longitude)
		if d <= radiusKm {
			out = append(out, NearbyTeam{Team: t, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

type Waypoint struct {
	ID           string  `json:"id"`
	TicketNumber string  `json:"ticket_number"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

type Leg struct {
	Waypoint   Waypoint `json:"waypoint"`
	DistanceKm float64  `json:"distance_km"`
	DurationMn float64  `json:"duration_minutes"`
}

type Journey struct {
	TotalDistanceKm float64  `json:"total_distance_km"`
	TotalMinutes    float64  `json:"total_minutes"`
	Legs            []Leg    `json:"legs"`
	Order           []string `json:"order"`
}

// OptimizeRoute orders waypoints by repeatedly visiting the nearest unvisited
// one (nearest-neighbour TSP approximation).
func OptimizeRoute(startLat, startLon float64, waypoints []Waypoint) []Waypoint {
	if len(waypoints) <= 1 {
		return waypoints
	}

	unvisited := make([]Waypoint, len(waypoints))
	copy(unvisited, waypoints)

	route := make([]Waypoint, 0, len(waypoints))
	curLat, curLon := startLat, startLon

	for len(unvisited) > 0 {
		nearest := 0
		nearestDist := HaversineKm(curLat, curLon, unvisited[0].Latitude, unvisited[0].Longitude)
		for i := 1; i < len(unvisited); i++ {
			d := HaversineKm(curLat, curLon, unvisited[i].Latitude, unvisited[i].Longitude)
			if d < nearestDist {
				nearestDist = d
				nearest = i
			}
		}
		next := unvisited[nearest]
		unvisited = append(unvisited[:nearest], unvisited[nearest+1:]...)
		route = append(route, next)
		curLat, curLon = next.Latitude, next.Longitude
	}
	return route
}

// PlanJourney optimizes the visiting order and totals up per-leg travel data.
// Leg durations carry a 20% traffic margin on top of the base estimate.
func PlanJourney(startLat, startLon float64, waypoints []Waypoint) Journey {
	ordered := OptimizeRoute(startLat, startLon, waypoints)

	j := Journey{Legs: []Leg{}, Order: []string{}}
	curLat, curLon := startLat, startLon
	for _, wp := range ordered {
		d := HaversineKm(curLat, curLon, wp.Latitude, wp.Longitude)
		duration := d * minutesPerKm * 1.2
		j.TotalDistanceKm += d
		j.TotalMinutes += duration
		j.Legs = append(j.Legs, Leg{Waypoint: wp, DistanceKm: d, DurationMn: duration})
		j.Order = append(j.Order, wp.TicketNumber)
		curLat, curLon = wp.Latitude, wp.Longitude
	}
	j.TotalDistanceKm = math.Round(j.TotalDistanceKm*100) / 100
	j.TotalMinutes = math.Round(j.TotalMinutes)
	return j
}
