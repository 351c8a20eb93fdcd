package assign

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/models"
	"github.com/fieldops/backend/internal/realtime"
)

// EventSink receives domain events; the realtime bus implements it.
type EventSink interface {
	Publish(ctx context.Context, e realtime.Event)
}

type Service struct {
	Store   *db.Store
	Events  EventSink
	Logger  zerolog.Logger
	Weights Weights

	// Now is injectable for working-hours tests; defaults to time.Now.
	Now func() time.Time
}

func NewService(store *db.Store, events EventSink, logger zerolog.Logger) *Service {
	return &Service{
		Store:   store,
		Events:  events,
		Logger:  logger,
		Weights: DefaultWeights(),
		Now:     time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Result is the auto-assign response: the committed assignment, the winning
// score with its reasoning, and up to three runners-up.
type Result struct {
	Assignment   models.Assignment `json:"assignment"`
	Score        float64           `json:"score"`
	Reasoning    []string          `json:"reasoning"`
	Alternatives []Candidate       `json:"alternatives"`
}

// AutoAssign ranks the eligible pool against the ticket and commits the top
// candidate. The factors and score are snapshotted on the assignment row and
// never recomputed.
func (s *Service) AutoAssign(ctx context.Context, ticketID string) (Result, error) {
	ticket, err := s.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return Result{}, err
	}
	if !ticket.CanBeAssigned() {
		return Result{}, ErrTicketNotAssignable
	}

	pool, err := s.Store.ListAssignableTeams(ctx, ticket.RequiredSkills())
	if err != nil {
		return Result{}, err
	}

	now := s.now()
	candidates := Rank(ticket, pool, s.Weights, now)
	if len(candidates) == 0 {
		return Result{}, ErrNoAvailableTeams
	}

	best := candidates[0]
	assignment := s.buildAssignment(ticket, best, models.AssignAutomatic, now)

	if err := s.commit(ctx, ticket, best.Team, assignment); err != nil {
		return Result{}, err
	}

	s.Logger.Info().
		Str("ticket_id", ticket.ID).
		Str("team_id", best.Team.ID).
		Float64("score", best.TotalScore).
		Msg("ticket auto-assigned")

	alternatives := candidates[1:]
	if len(alternatives) > 3 {
		alternatives = alternatives[:3]
	}

	s.publish(ctx, realtime.Event{
		Type:   realtime.EventAssignmentMade,
		TeamID: best.Team.ID,
		Payload: map[string]any{
			"assignment_id": assignment.ID,
			"ticket_id":     ticket.ID,
			"ticket_number": ticket.TicketNumber,
			"score":         best.TotalScore,
		},
	})

	return Result{
		Assignment:   assignment,
		Score:        best.TotalScore,
		Reasoning:    best.Reasoning,
		Alternatives: alternatives,
	}, nil
}

// ManualAssign bypasses scoring: it validates assignability and availability,
// then performs the same three writes with no computed score.
func (s *Service) ManualAssign(ctx context.Context, ticketID, teamID, assignmentType string) (models.Assignment, error) {
	ticket, err := s.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return models.Assignment{}, err
	}
	team, err := s.Store.GetTeam(ctx, teamID)
	if err != nil {
		return models.Assignment{}, err
	}

	if !ticket.CanBeAssigned() {
		return models.Assignment{}, ErrTicketNotAssignable
	}
	now := s.now()
	if team.Status != models.TeamActive || !team.Availability.IsAvailable ||
		team.CurrentAssignment != nil || !WithinWorkingHours(team.Availability, now) {
		return models.Assignment{}, ErrTeamUnavailable
	}

	if assignmentType != models.AssignManual && assignmentType != models.AssignOverride {
		assignmentType = models.AssignManual
	}

	candidate := ScoreCandidate(ticket, team, s.Weights, now)
	assignment := s.buildAssignment(ticket, candidate, assignmentType, now)
	assignment.AssignmentScore = 0
	assignment.Factors = models.Factors{}

	if err := s.commit(ctx, ticket, team, assignment); err != nil {
		return models.Assignment{}, err
	}

	s.Logger.Info().
		Str("ticket_id", ticket.ID).
		Str("team_id", team.ID).
		Str("type", assignmentType).
		Msg("ticket manually assigned")

	s.publish(ctx, realtime.Event{
		Type:   realtime.EventAssignmentMade,
		TeamID: team.ID,
		Payload: map[string]any{
			"assignment_id": assignment.ID,
			"ticket_id":     ticket.ID,
			"ticket_number": ticket.TicketNumber,
			"type":          assignmentType,
		},
	})

	return assignment, nil
}

func (s *Service) buildAssignment(ticket models.Ticket, c Candidate, assignmentType string, now time.Time) models.Assignment {
	eta := c.EstimatedArrival
	travelEst := c.TravelMinutes
	return models.Assignment{
		ID:                   uuid.NewString(),
		TicketID:             ticket.ID,
		TeamID:               c.Team.ID,
		AssignmentType:       assignmentType,
		Status:               models.AssignmentAssigned,
		AssignedAt:           now,
		EstimatedArrivalTime: &eta,
		TravelTime:           models.TravelTime{Estimated: &travelEst},
		DistanceKm:           c.DistanceKm,
		EstimatedCost:        c.EstimatedCost,
		AssignmentScore:      c.TotalScore,
		Factors:              c.Factors,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// commit runs the three writes (assignment, ticket, team) in one transaction.
// Two concurrent auto-assigns can still race to pick the same technician
// before either commits; that is left to a product decision rather than
// guarded with locks here.
func (s *Service) commit(ctx context.Context, ticket models.Ticket, team models.FieldTeam, a models.Assignment) error {
	return s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.Store.InsertAssignment(ctx, tx, a); err != nil {
			return err
		}
		if err := s.Store.AssignTicket(ctx, tx, ticket.ID, team.ID, a.AssignedAt); err != nil {
			return err
		}
		return s.Store.OccupyTeam(ctx, tx, team.ID, ticket.ID)
	})
}

func (s *Service) publish(ctx context.Context, e realtime.Event) {
	if s.Events != nil {
		s.Events.Publish(ctx, e)
	}
}

// StatusUpdate carries the optional fields of a lifecycle transition.
type StatusUpdate struct {
	Status            string
	ActualArrivalTime *time.Time
	ActualDuration    *int
	CustomerRating    *float64
	CustomerFeedback  string
}

// UpdateAssignmentStatus applies a lifecycle transition to the assignment and
// cascades to the ticket and the technician: completion frees the technician
// and folds the rating into their running average.
func (s *Service) UpdateAssignmentStatus(ctx context.Context, assignmentID string, upd StatusUpdate) (models.Assignment, error) {
	a, err := s.Store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return models.Assignment{}, err
	}

	now := s.now()
	switch upd.Status {
	case models.AssignmentAccepted:
		if a.AcceptedAt == nil {
			a.AcceptedAt = &now
		}
	case models.AssignmentInProgress:
		if a.StartedAt == nil {
			a.StartedAt = &now
		}
	case models.AssignmentCompleted:
		if a.CompletedAt == nil {
			a.CompletedAt = &now
		}
	case models.AssignmentCancelled, models.AssignmentRejected:
	default:
		return models.Assignment{}, ErrInvalidTransition
	}
	a.Status = upd.Status

	ticket, err := s.Store.GetTicket(ctx, a.TicketID)
	if err != nil {
		return models.Assignment{}, err
	}

	if upd.ActualArrivalTime != nil {
		a.ActualArrivalTime = upd.ActualArrivalTime
		actual := int(upd.ActualArrivalTime.Sub(a.AssignedAt).Minutes())
		a.TravelTime.Actual = &actual
	}
	if upd.ActualDuration != nil {
		a.Performance.CompletionTime = upd.ActualDuration
		a.Performance.Efficiency = a.Efficiency(ticket.EstimatedDuration)
	}
	if upd.CustomerRating != nil {
		a.Performance.CustomerRating = upd.CustomerRating
	}

	if err := s.Store.UpdateAssignment(ctx, a); err != nil {
		return models.Assignment{}, err
	}
	if err := s.cascade(ctx, a, ticket, upd); err != nil {
		return models.Assignment{}, err
	}

	s.publish(ctx, realtime.Event{
		Type:   realtime.EventAssignmentStatus,
		TeamID: a.TeamID,
		Payload: map[string]any{
			"assignment_id": a.ID,
			"ticket_id":     a.TicketID,
			"status":        a.Status,
		},
	})

	return a, nil
}

// cascade mirrors the assignment transition onto the ticket and technician.
func (s *Service) cascade(ctx context.Context, a models.Assignment, ticket models.Ticket, upd StatusUpdate) error {
	now := s.now()

	switch a.Status {
	case models.AssignmentAccepted:
		ticket.Status = models.TicketAssigned
	case models.AssignmentInProgress:
		ticket.Status = models.TicketInProgress
		if ticket.StartedAt == nil {
			ticket.StartedAt = &now
		}
		if err := s.Store.UpdateTeamStatus(ctx, a.TeamID, models.TeamBusy); err != nil {
			return err
		}
	case models.AssignmentCompleted:
		ticket.Status = models.TicketCompleted
		if ticket.CompletedAt == nil {
			ticket.CompletedAt = &now
		}
		ticket.ActualDuration = a.Performance.CompletionTime
		ticket.CustomerRating = a.Performance.CustomerRating
		if upd.CustomerFeedback != "" {
			ticket.CustomerFeedback = upd.CustomerFeedback
		}
		if err := s.completeForTeam(ctx, a.TeamID, a.Performance.CustomerRating); err != nil {
			return err
		}
	case models.AssignmentRejected, models.AssignmentCancelled:
		ticket.Status = models.TicketOpen
		ticket.AssignedTo = nil
		if err := s.Store.ReleaseTeam(ctx, a.TeamID); err != nil {
			return err
		}
	default:
		return nil
	}
	return s.Store.UpdateTicket(ctx, ticket)
}

// completeForTeam frees the technician and updates their productivity stats.
// The rating is a running weighted average over completed tickets.
func (s *Service) completeForTeam(ctx context.Context, teamID string, rating *float64) error {
	team, err := s.Store.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}

	team.CurrentAssignment = nil
	team.Status = models.TeamActive
	team.Productivity.TotalTicketsCompleted++
	if rating != nil {
		prev := team.Productivity.CustomerRating
		n := float64(team.Productivity.TotalTicketsCompleted)
		team.Productivity.CustomerRating = (prev*(n-1) + *rating) / n
	}
	return s.Store.UpdateTeam(ctx, team)
}

// Reject moves a still-pending assignment to rejected, reopens the ticket,
// and frees the technician.
func (s *Service) Reject(ctx context.Context, assignmentID, reason string) (models.Assignment, error) {
	a, err := s.Store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return models.Assignment{}, err
	}
	if a.Status != models.AssignmentAssigned {
		return models.Assignment{}, ErrInvalidTransition
	}

	a.Status = models.AssignmentRejected
	a.RejectionReason = reason
	if err := s.Store.UpdateAssignment(ctx, a); err != nil {
		return models.Assignment{}, err
	}

	ticket, err := s.Store.GetTicket(ctx, a.TicketID)
	if err != nil {
		return models.Assignment{}, err
	}
	ticket.Status = models.TicketOpen
	ticket.AssignedTo = nil
	if err := s.Store.UpdateTicket(ctx, ticket); err != nil {
		return models.Assignment{}, err
	}
	if err := s.Store.ReleaseTeam(ctx, a.TeamID); err != nil {
		return models.Assignment{}, err
	}

	s.publish(ctx, realtime.Event{
		Type:   realtime.EventAssignmentStatus,
		TeamID: a.TeamID,
		Payload: map[string]any{
			"assignment_id": a.ID,
			"ticket_id":     a.TicketID,
			"status":        a.Status,
			"reason":        reason,
		},
	})

	return a, nil
}

// UpdateTicketStatus drives the lifecycle from the ticket side and keeps the
// active assignment and technician in step.
func (s *Service) UpdateTicketStatus(ctx context.Context, ticketID string, upd StatusUpdate) (models.Ticket, error) {
	ticket, err := s.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}

	now := s.now()
	ticket.Status = upd.Status
	switch upd.Status {
	case models.TicketInProgress:
		if ticket.StartedAt == nil {
			ticket.StartedAt = &now
		}
	case models.TicketCompleted:
		if ticket.CompletedAt == nil {
			ticket.CompletedAt = &now
		}
		if upd.ActualDuration != nil {
			ticket.ActualDuration = upd.ActualDuration
		}
		if upd.CustomerRating != nil {
			ticket.CustomerRating = upd.CustomerRating
		}
		if upd.CustomerFeedback != "" {
			ticket.CustomerFeedback = upd.CustomerFeedback
		}
	}
	if err := s.Store.UpdateTicket(ctx, ticket); err != nil {
		return models.Ticket{}, err
	}

	if a, err := s.Store.GetActiveAssignment(ctx, ticketID); err == nil {
		switch upd.Status {
		case models.TicketInProgress:
			a.Status = models.AssignmentInProgress
			if a.StartedAt == nil {
				a.StartedAt = &now
			}
		case models.TicketCompleted:
			a.Status = models.AssignmentCompleted
			if a.CompletedAt == nil {
				a.CompletedAt = &now
			}
			a.Performance.CompletionTime = upd.ActualDuration
			a.Performance.CustomerRating = upd.CustomerRating
			a.Performance.Efficiency = a.Efficiency(ticket.EstimatedDuration)
		case models.TicketCancelled:
			a.Status = models.AssignmentCancelled
		}
		if err := s.Store.UpdateAssignment(ctx, a); err != nil {
			return models.Ticket{}, err
		}
	}

	if ticket.AssignedTo != nil {
		switch upd.Status {
		case models.TicketInProgress:
			if err := s.Store.UpdateTeamStatus(ctx, *ticket.AssignedTo, models.TeamBusy); err != nil {
				return models.Ticket{}, err
			}
		case models.TicketCompleted:
			if err := s.completeForTeam(ctx, *ticket.AssignedTo, upd.CustomerRating); err != nil {
				return models.Ticket{}, err
			}
		case models.TicketCancelled:
			if err := s.Store.ReleaseTeam(ctx, *ticket.AssignedTo); err != nil {
				return models.Ticket{}, err
			}
		}
	}

	s.publish(ctx, realtime.Event{
		Type:    realtime.EventTicketStatus,
		Payload: map[string]any{"ticket_id": ticket.ID, "status": ticket.Status},
	})

	return ticket, nil
}
