package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fieldops/backend/internal/models"
)

// AssignmentRollupRow pairs an assignment with the ticket and team fields the
// analytics rollups group by.
type AssignmentRollupRow struct {
	Assignment models.Assignment
	TeamName   string
	Category   string
	Priority   string
}

func (s *Store) ListAssignmentRollups(ctx context.Context, since time.Time, teamID string) ([]AssignmentRollupRow, error) {
	query := `
		SELECT a.id, a.ticket_id, a.team_id, a.assignment_type, a.status, a.assigned_at,
			a.completed_at, a.travel_time, a.distance_km, a.estimated_cost, a.actual_cost,
			a.assignment_score, a.performance,
			f.name, t.category, t.priority
		FROM assignments a
		JOIN tickets t ON t.id = a.ticket_id
		JOIN field_teams f ON f.id = a.team_id
		WHERE a.assigned_at >= $1`
	args := []any{since}
	if teamID != "" {
		args = append(args, teamID)
		query += " AND a.team_id = $2"
	}
	query += " ORDER BY a.assigned_at DESC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssignmentRollupRow
	for rows.Next() {
		var (
			r           AssignmentRollupRow
			travelTime  []byte
			performance []byte
		)
		if err := rows.Scan(&r.Assignment.ID, &r.Assignment.TicketID, &r.Assignment.TeamID,
			&r.Assignment.AssignmentType, &r.Assignment.Status, &r.Assignment.AssignedAt,
			&r.Assignment.CompletedAt, &travelTime, &r.Assignment.DistanceKm,
			&r.Assignment.EstimatedCost, &r.Assignment.ActualCost, &r.Assignment.AssignmentScore,
			&performance, &r.TeamName, &r.Category, &r.Priority); err != nil {
			return nil, err
		}
		if len(travelTime) > 0 {
			if err := json.Unmarshal(travelTime, &r.Assignment.TravelTime); err != nil {
				return nil, err
			}
		}
		if len(performance) > 0 {
			if err := json.Unmarshal(performance, &r.Assignment.Performance); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
