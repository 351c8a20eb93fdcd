package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/geo"
	"github.com/fieldops/backend/internal/models"
)

// Service answers natural-language questions by loading the slice of system
// data the query type needs and handing it to the configured assistant.
type Service struct {
	Store     *db.Store
	Assistant Assistant
	Logger    zerolog.Logger

	// Now is swappable in tests.
	Now func() time.Time
}

func NewService(store *db.Store, assistant Assistant, logger zerolog.Logger) *Service {
	return &Service{
		Store:     store,
		Assistant: assistant,
		Logger:    logger.With().Str("component", "llm").Logger(),
		Now:       time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type TeamAnswer struct {
	Answer       string       `json:"answer"`
	QueryType    string       `json:"query_type"`
	RelevantData FieldContext `json:"relevant_data"`
	Timestamp    time.Time    `json:"timestamp"`
}

// ProcessTeamQuery answers a technician question with their own data inlined.
func (s *Service) ProcessTeamQuery(ctx context.Context, query, teamID string, qc QueryContext) (TeamAnswer, error) {
	queryType := IdentifyQueryType(query)
	data := s.relevantData(ctx, queryType, teamID)

	prompt := BuildFieldPrompt(query, data, qc)
	answer, err := s.Assistant.Ask(ctx, prompt, []ChatMessage{{Role: "system", Content: FieldSystemPrompt()}})
	if err != nil {
		return TeamAnswer{}, err
	}
	return TeamAnswer{
		Answer:       answer,
		QueryType:    queryType,
		RelevantData: data,
		Timestamp:    s.now(),
	}, nil
}

type AdminAnswer struct {
	Response   string         `json:"response"`
	QueryType  string         `json:"query_type"`
	SystemData map[string]any `json:"system_data"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ProcessAdminQuery answers a dashboard question against a fresh snapshot of
// ticket, team and assignment metrics. History carries the running chat.
func (s *Service) ProcessAdminQuery(ctx context.Context, query string, history []ChatMessage) (AdminAnswer, error) {
	systemData := s.systemSnapshot(ctx)

	messages := append([]ChatMessage{{Role: "system", Content: AdminSystemPrompt()}}, history...)
	answer, err := s.Assistant.Ask(ctx, BuildAdminPrompt(query, systemData), messages)
	if err != nil {
		return AdminAnswer{}, err
	}
	return AdminAnswer{
		Response:   answer,
		QueryType:  IdentifyAdminQueryType(query),
		SystemData: systemData,
		Timestamp:  s.now(),
	}, nil
}

type TroubleshootResult struct {
	Suggestions string    `json:"suggestions"`
	TicketInfo  any       `json:"ticket_info"`
	Timestamp   time.Time `json:"timestamp"`
}

// Troubleshoot produces a repair walkthrough for one ticket.
func (s *Service) Troubleshoot(ctx context.Context, ticketID string) (TroubleshootResult, error) {
	ticket, err := s.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return TroubleshootResult{}, err
	}
	suggestions, err := s.Assistant.Ask(ctx, BuildTroubleshootPrompt(ticket), []ChatMessage{{Role: "system", Content: FieldSystemPrompt()}})
	if err != nil {
		return TroubleshootResult{}, err
	}
	return TroubleshootResult{
		Suggestions: suggestions,
		TicketInfo: map[string]any{
			"ticket_number": ticket.TicketNumber,
			"category":      ticket.Category,
			"priority":      ticket.Priority,
		},
		Timestamp: s.now(),
	}, nil
}

type InsightsResult struct {
	Insights  string         `json:"insights"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// PerformanceInsights turns a technician's recent numbers into coaching notes.
func (s *Service) PerformanceInsights(ctx context.Context, teamID string) (InsightsResult, error) {
	perf := s.performanceData(ctx, teamID)
	insights, err := s.Assistant.Ask(ctx, BuildInsightsPrompt(perf), []ChatMessage{{Role: "system", Content: FieldSystemPrompt()}})
	if err != nil {
		return InsightsResult{}, err
	}
	return InsightsResult{Insights: insights, Data: perf, Timestamp: s.now()}, nil
}

func (s *Service) relevantData(ctx context.Context, queryType, teamID string) FieldContext {
	data := FieldContext{}

	team, err := s.Store.GetTeam(ctx, teamID)
	if err != nil {
		s.Logger.Warn().Err(err).Str("team_id", teamID).Msg("load team for query context")
		return data
	}
	data.TeamMember = map[string]any{
		"name":             team.Name,
		"skills":           team.Skills,
		"current_location": team.CurrentLocation,
		"productivity":     team.Productivity,
		"availability":     team.Availability,
	}

	switch queryType {
	case QueryPerformance:
		data.Performance = s.performanceData(ctx, teamID)
	case QueryTicket:
		data.Tickets = s.ticketData(ctx, teamID)
	case QueryRoute:
		data.Route = s.routeData(ctx, team)
	case QuerySchedule:
		data.Schedule = s.scheduleData(ctx, team)
	case QueryCustomer:
		data.Customer = s.customerData(ctx, teamID)
	default:
		data.Tickets = s.recentActivity(ctx, teamID)
	}
	return data
}

func (s *Service) performanceData(ctx context.Context, teamID string) map[string]any {
	assignments, _, err := s.Store.ListAssignments(ctx, db.AssignmentFilter{TeamID: teamID, Limit: 20})
	if err != nil {
		s.Logger.Warn().Err(err).Msg("load assignments for performance data")
		return nil
	}

	perf := map[string]any{
		"total_tickets":           len(assignments),
		"completed_tickets":       0,
		"average_rating":          0.0,
		"average_completion_time": 0.0,
	}

	var completed int
	var ratingSum, timeSum float64
	for _, a := range assignments {
		if a.Status != models.AssignmentCompleted {
			continue
		}
		completed++
		if a.Performance.CustomerRating != nil {
			ratingSum += *a.Performance.CustomerRating
		}
		if a.Performance.CompletionTime != nil {
			timeSum += float64(*a.Performance.CompletionTime)
		}
	}
	perf["completed_tickets"] = completed
	if completed > 0 {
		perf["average_rating"] = ratingSum / float64(completed)
		perf["average_completion_time"] = timeSum / float64(completed)
	}

	recent := []map[string]any{}
	for i, a := range assignments {
		if i == 5 {
			break
		}
		entry := map[string]any{
			"status":          a.Status,
			"rating":          a.Performance.CustomerRating,
			"completion_time": a.Performance.CompletionTime,
			"assigned_at":     a.AssignedAt,
		}
		if t, err := s.Store.GetTicket(ctx, a.TicketID); err == nil {
			entry["ticket_number"] = t.TicketNumber
		}
		recent = append(recent, entry)
	}
	perf["recent_performance"] = recent
	return perf
}

func (s *Service) ticketData(ctx context.Context, teamID string) []any {
	out := []any{}
	if current, ok := s.currentTicket(ctx, teamID); ok {
		out = append(out, map[string]any{
			"current":            true,
			"ticket_number":      current.TicketNumber,
			"title":              current.Title,
			"description":        current.Description,
			"priority":           current.Priority,
			"category":           current.Category,
			"location":           current.Location,
			"customer":           current.Customer,
			"estimated_duration": current.EstimatedDuration,
		})
	}
	recent, _, err := s.Store.ListTickets(ctx, db.TicketFilter{AssignedTo: teamID, Limit: 10})
	if err != nil {
		s.Logger.Warn().Err(err).Msg("load recent tickets")
		return out
	}
	for _, t := range recent {
		out = append(out, map[string]any{
			"ticket_number": t.TicketNumber,
			"title":         t.Title,
			"status":        t.Status,
			"priority":      t.Priority,
			"category":      t.Category,
			"created_at":    t.CreatedAt,
		})
	}
	return out
}

func (s *Service) routeData(ctx context.Context, team models.FieldTeam) map[string]any {
	current, ok := s.currentTicket(ctx, team.ID)
	if !ok {
		return nil
	}
	distance := geo.HaversineKm(
		team.CurrentLocation.Latitude, team.CurrentLocation.Longitude,
		current.Location.Latitude, current.Location.Longitude,
	)
	from := team.CurrentLocation.Address
	if from == "" {
		from = "Current Location"
	}
	return map[string]any{
		"current_location":      team.CurrentLocation,
		"destination":           current.Location,
		"distance_km":           float64(int(distance*100+0.5)) / 100,
		"estimated_travel_time": geo.TravelMinutes(distance),
		"route":                 map[string]string{"from": from, "to": current.Location.Address},
	}
}

func (s *Service) scheduleData(ctx context.Context, team models.FieldTeam) map[string]any {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	assignments, _, err := s.Store.ListAssignments(ctx, db.AssignmentFilter{
		TeamID:   team.ID,
		DateFrom: &startOfDay,
		DateTo:   &endOfDay,
	})
	if err != nil {
		s.Logger.Warn().Err(err).Msg("load today's assignments")
	}

	today := []map[string]any{}
	for _, a := range assignments {
		entry := map[string]any{
			"status":         a.Status,
			"scheduled_time": a.EstimatedArrivalTime,
		}
		if t, err := s.Store.GetTicket(ctx, a.TicketID); err == nil {
			entry["ticket_number"] = t.TicketNumber
			entry["priority"] = t.Priority
		}
		today = append(today, entry)
	}
	return map[string]any{
		"working_hours":     team.Availability.WorkingHours,
		"is_available":      team.Availability.IsAvailable,
		"today_assignments": today,
	}
}

func (s *Service) customerData(ctx context.Context, teamID string) map[string]any {
	current, ok := s.currentTicket(ctx, teamID)
	if !ok {
		return nil
	}
	return map[string]any{
		"customer":      current.Customer,
		"ticket_number": current.TicketNumber,
		"priority":      current.Priority,
		"category":      current.Category,
	}
}

func (s *Service) recentActivity(ctx context.Context, teamID string) []any {
	assignments, _, err := s.Store.ListAssignments(ctx, db.AssignmentFilter{TeamID: teamID, Limit: 5})
	if err != nil {
		s.Logger.Warn().Err(err).Msg("load recent activity")
		return nil
	}
	out := []any{}
	for _, a := range assignments {
		entry := map[string]any{
			"status":      a.Status,
			"assigned_at": a.AssignedAt,
		}
		if t, err := s.Store.GetTicket(ctx, a.TicketID); err == nil {
			entry["ticket_number"] = t.TicketNumber
		}
		out = append(out, entry)
	}
	return out
}

// currentTicket finds the active job a technician is on, if any.
func (s *Service) currentTicket(ctx context.Context, teamID string) (models.Ticket, bool) {
	for _, status := range []string{models.TicketAssigned, models.TicketInProgress} {
		tickets, _, err := s.Store.ListTickets(ctx, db.TicketFilter{AssignedTo: teamID, Status: status, Limit: 1})
		if err == nil && len(tickets) > 0 {
			return tickets[0], true
		}
	}
	return models.Ticket{}, false
}

func (s *Service) systemSnapshot(ctx context.Context) map[string]any {
	snapshot := map[string]any{"timestamp": s.now()}

	since := s.now().AddDate(0, 0, -30)
	if counts, err := s.Store.TicketAnalytics(ctx, since); err == nil {
		snapshot["tickets"] = counts
	} else {
		s.Logger.Warn().Err(err).Msg("load ticket metrics for snapshot")
	}

	teams, _, err := s.Store.ListTeams(ctx, db.TeamFilter{Limit: 100})
	if err == nil {
		summary := []map[string]any{}
		for _, t := range teams {
			summary = append(summary, map[string]any{
				"name":         t.Name,
				"status":       t.Status,
				"is_available": t.Availability.IsAvailable,
				"skills":       t.Skills,
				"rating":       t.Productivity.CustomerRating,
				"completed":    t.Productivity.TotalTicketsCompleted,
			})
		}
		snapshot["teams"] = summary
	} else {
		s.Logger.Warn().Err(err).Msg("load teams for snapshot")
	}

	if rollups, err := s.Store.ListAssignmentRollups(ctx, since, ""); err == nil {
		var completed int
		var scoreSum float64
		for _, r := range rollups {
			if r.Assignment.Status == models.AssignmentCompleted {
				completed++
			}
			scoreSum += r.Assignment.AssignmentScore
		}
		avgScore := 0.0
		if len(rollups) > 0 {
			avgScore = scoreSum / float64(len(rollups))
		}
		snapshot["assignments"] = map[string]any{
			"total":         len(rollups),
			"completed":     completed,
			"average_score": avgScore,
		}
	} else {
		s.Logger.Warn().Err(err).Msg("load assignments for snapshot")
	}
	return snapshot
}
