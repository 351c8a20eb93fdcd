// Package fixture generates deterministic sample data for tests and demos.
// The same seed always yields the same tickets and teams.
package fixture

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/fieldops/backend/internal/models"
)

var skillPool = []string{"electrical", "plumbing", "hvac", "general", "emergency", "maintenance"}

var priorityPool = []string{
	models.PriorityLow,
	models.PriorityMedium,
	models.PriorityHigh,
	models.PriorityUrgent,
	models.PriorityEmergency,
}

// Center of the generated service area.
const (
	baseLat = 3.1390
	baseLon = 101.6869
)

type Generator struct {
	rng *rand.Rand
	now time.Time
}

func NewGenerator(seed int64, now time.Time) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed)), now: now.UTC()}
}

// Teams produces n active, available technicians spread around the base
// coordinates with staggered skills, rates and track records.
func (g *Generator) Teams(n int) []models.FieldTeam {
	teams := make([]models.FieldTeam, 0, n)
	for i := 0; i < n; i++ {
		skills := g.pickSkills(1 + g.rng.Intn(3))
		team := models.FieldTeam{
			ID:     fmt.Sprintf("team-%03d", i+1),
			Name:   fmt.Sprintf("Crew %03d", i+1),
			Email:  fmt.Sprintf("crew%03d@fieldops.test", i+1),
			Phone:  fmt.Sprintf("+60-12-%07d", 1000000+g.rng.Intn(9000000)),
			Skills: skills,
			CurrentLocation: models.TeamLocation{
				Latitude:    baseLat + g.jitter(0.2),
				Longitude:   baseLon + g.jitter(0.2),
				Address:     fmt.Sprintf("%d Depot Road", 1+g.rng.Intn(200)),
				LastUpdated: g.now,
			},
			Availability: models.Availability{
				IsAvailable:  true,
				WorkingHours: models.WorkingHours{Start: "08:00", End: "17:00"},
				Timezone:     "Asia/Kuala_Lumpur",
			},
			Productivity: models.Productivity{
				TotalTicketsCompleted: g.rng.Intn(120),
				AverageCompletionTime: 40 + g.rng.Float64()*80,
				CustomerRating:        3 + g.rng.Float64()*2,
				EfficiencyScore:       0.6 + g.rng.Float64()*0.6,
			},
			Cost: models.Cost{
				HourlyRate:      30 + g.rng.Float64()*40,
				TravelCostPerKm: 0.5,
			},
			Status:    models.TeamActive,
			CreatedAt: g.now,
			UpdatedAt: g.now,
		}
		teams = append(teams, team)
	}
	return teams
}

// Tickets produces n open tickets near the base coordinates.
func (g *Generator) Tickets(n int) []models.Ticket {
	tickets := make([]models.Ticket, 0, n)
	for i := 0; i < n; i++ {
		category := skillPool[g.rng.Intn(len(skillPool))]
		ticket := models.Ticket{
			ID:           fmt.Sprintf("ticket-%03d", i+1),
			TicketNumber: fmt.Sprintf("TT-%06d", i+1),
			Title:        fmt.Sprintf("%s fault %03d", category, i+1),
			Description:  fmt.Sprintf("Reported %s issue requiring a site visit", category),
			Priority:     priorityPool[g.rng.Intn(len(priorityPool))],
			Category:     category,
			Status:       models.TicketOpen,
			Location: models.Location{
				Address:   fmt.Sprintf("%d Jalan Service", 1+g.rng.Intn(500)),
				Latitude:  baseLat + g.jitter(0.3),
				Longitude: baseLon + g.jitter(0.3),
				City:      "Kuala Lumpur",
			},
			Customer: models.Customer{
				Name:  fmt.Sprintf("Customer %03d", i+1),
				Email: fmt.Sprintf("customer%03d@example.test", i+1),
				Phone: fmt.Sprintf("+60-3-%07d", 1000000+g.rng.Intn(9000000)),
			},
			EstimatedDuration: 30 + g.rng.Intn(150),
			SkillsRequired:    []string{category},
			CreatedAt:         g.now.Add(-time.Duration(g.rng.Intn(72)) * time.Hour),
			UpdatedAt:         g.now,
		}
		tickets = append(tickets, ticket)
	}
	return tickets
}

func (g *Generator) pickSkills(n int) []string {
	idx := g.rng.Perm(len(skillPool))
	skills := make([]string, 0, n)
	for _, i := range idx[:n] {
		skills = append(skills, skillPool[i])
	}
	return skills
}

func (g *Generator) jitter(span float64) float64 {
	return (g.rng.Float64()*2 - 1) * span
}
