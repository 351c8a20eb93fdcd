package assign

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/models"
)

func TestAutoAssignNoEligiblePoolIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := db.New(ctx, url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer store.Close()

	number, err := store.NextTicketNumber(ctx)
	if err != nil {
		t.Fatalf("ticket number: %v", err)
	}

	// a skill no seeded team carries, so the eligible pool is empty
	now := time.Now().UTC()
	ticket := models.Ticket{
		ID:           uuid.NewString(),
		TicketNumber: number,
		Title:        "Unassignable ticket",
		Description:  "Needs a skill nobody has",
		Priority:     models.PriorityMedium,
		Category:     "electrical",
		Status:       models.TicketOpen,
		Location: models.Location{
			Address:   "12 Jalan Ampang",
			Latitude:  3.1390,
			Longitude: 101.6869,
		},
		Customer:          models.Customer{Name: "Aminah"},
		EstimatedDuration: 60,
		SkillsRequired:    []string{"skill-" + uuid.NewString()},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := store.InsertTicket(ctx, ticket); err != nil {
		t.Fatalf("insert ticket: %v", err)
	}

	svc := NewService(store, nil, zerolog.Nop())
	if _, err := svc.AutoAssign(ctx, ticket.ID); !errors.Is(err, ErrNoAvailableTeams) {
		t.Fatalf("expected ErrNoAvailableTeams, got %v", err)
	}

	assignments, total, err := store.ListAssignments(ctx, db.AssignmentFilter{TicketID: ticket.ID})
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if total != 0 || len(assignments) != 0 {
		t.Fatalf("expected no assignment rows, got %d", total)
	}

	after, err := store.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if after.Status != models.TicketOpen {
		t.Fatalf("ticket status changed to %s", after.Status)
	}
}
