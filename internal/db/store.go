package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// NextTicketNumber draws from a sequence so numbers stay unique under
// concurrent intake.
func (s *Store) NextTicketNumber(ctx context.Context) (string, error) {
	var n int64
	if err := s.Pool.QueryRow(ctx, `SELECT nextval('ticket_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("TT-%06d", n), nil
}

const ticketColumns = `id, ticket_number, title, description, priority, category, status,
	location, customer, assigned_to, estimated_duration, actual_duration,
	scheduled_time, started_at, completed_at, estimated_cost, actual_cost,
	skills_required, customer_rating, customer_feedback, created_at, updated_at`

func (s *Store) InsertTicket(ctx context.Context, t models.Ticket) error {
	location, _ := json.Marshal(t.Location)
	customer, _ := json.Marshal(t.Customer)
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`, t.ID, t.TicketNumber, t.Title, t.Description, t.Priority, t.Category, t.Status,
		location, customer, t.AssignedTo, t.EstimatedDuration, t.ActualDuration,
		t.ScheduledTime, t.StartedAt, t.CompletedAt, t.EstimatedCost, t.ActualCost,
		t.SkillsRequired, t.CustomerRating, t.CustomerFeedback, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	return scanTicket(row)
}

type TicketFilter struct {
	Status     string
	Priority   string
	Category   string
	AssignedTo string
	Search     string
	Limit      int
	Offset     int
}

func (s *Store) ListTickets(ctx context.Context, f TicketFilter) ([]models.Ticket, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var args []any
	var wheres []string
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		wheres = append(wheres, fmt.Sprintf("priority = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		wheres = append(wheres, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.AssignedTo != "" {
		args = append(args, f.AssignedTo)
		wheres = append(wheres, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		wheres = append(wheres, fmt.Sprintf(
			"(ticket_number ILIKE $%d OR title ILIKE $%d OR description ILIKE $%d OR customer->>'name' ILIKE $%d)",
			n, n, n, n))
	}

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateTicket(ctx context.Context, t models.Ticket) error {
	location, _ := json.Marshal(t.Location)
	customer, _ := json.Marshal(t.Customer)
	_, err := s.Pool.Exec(ctx, `
		UPDATE tickets SET
			title = $2, description = $3, priority = $4, category = $5, status = $6,
			location = $7, customer = $8, assigned_to = $9, estimated_duration = $10,
			actual_duration = $11, scheduled_time = $12, started_at = $13, completed_at = $14,
			estimated_cost = $15, actual_cost = $16, skills_required = $17,
			customer_rating = $18, customer_feedback = $19, updated_at = NOW()
		WHERE id = $1
	`, t.ID, t.Title, t.Description, t.Priority, t.Category, t.Status,
		location, customer, t.AssignedTo, t.EstimatedDuration,
		t.ActualDuration, t.ScheduledTime, t.StartedAt, t.CompletedAt,
		t.EstimatedCost, t.ActualCost, t.SkillsRequired,
		t.CustomerRating, t.CustomerFeedback)
	return err
}

// AssignTicket sets the ticket side of an assignment commit inside the caller's
// transaction.
func (s *Store) AssignTicket(ctx context.Context, tx pgx.Tx, ticketID, teamID string, scheduled time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE tickets SET assigned_to = $2, status = $3, scheduled_time = $4, updated_at = NOW()
		WHERE id = $1
	`, ticketID, teamID, models.TicketAssigned, scheduled)
	return err
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var (
		t        models.Ticket
		location []byte
		customer []byte
	)
	err := row.Scan(&t.ID, &t.TicketNumber, &t.Title, &t.Description, &t.Priority, &t.Category, &t.Status,
		&location, &customer, &t.AssignedTo, &t.EstimatedDuration, &t.ActualDuration,
		&t.ScheduledTime, &t.StartedAt, &t.CompletedAt, &t.EstimatedCost, &t.ActualCost,
		&t.SkillsRequired, &t.CustomerRating, &t.CustomerFeedback, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := json.Unmarshal(location, &t.Location); err != nil {
		return models.Ticket{}, err
	}
	if err := json.Unmarshal(customer, &t.Customer); err != nil {
		return models.Ticket{}, err
	}
	return t, nil
}

const teamColumns = `id, name, email, phone, skills, current_location, availability,
	productivity, cost, status, current_assignment, created_at, updated_at`

func (s *Store) InsertTeam(ctx context.Context, t models.FieldTeam) error {
	location, _ := json.Marshal(t.CurrentLocation)
	availability, _ := json.Marshal(t.Availability)
	productivity, _ := json.Marshal(t.Productivity)
	cost, _ := json.Marshal(t.Cost)
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO field_teams (`+teamColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, t.ID, t.Name, t.Email, t.Phone, t.Skills, location, availability,
		productivity, cost, t.Status, t.CurrentAssignment, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) GetTeam(ctx context.Context, id string) (models.FieldTeam, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM field_teams WHERE id = $1`, id)
	return scanTeam(row)
}

type TeamFilter struct {
	Status    string
	Skills    []string
	Available bool
	Search    string
	Limit     int
	Offset    int
}

func (s *Store) ListTeams(ctx context.Context, f TeamFilter) ([]models.FieldTeam, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var args []any
	var wheres []string
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(f.Skills) > 0 {
		args = append(args, f.Skills)
		wheres = append(wheres, fmt.Sprintf("skills && $%d", len(args)))
	}
	if f.Available {
		wheres = append(wheres, "(availability->>'is_available')::boolean = true")
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		wheres = append(wheres, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", n, n))
	}

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM field_teams`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + teamColumns + ` FROM field_teams` + where +
		fmt.Sprintf(" ORDER BY name ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.FieldTeam
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// ListAssignableTeams loads the candidate pool for the scorer: active teams
// whose skill set overlaps the required tags. Working hours and the busy flag
// are filtered in memory by the scorer.
func (s *Store) ListAssignableTeams(ctx context.Context, requiredSkills []string) ([]models.FieldTeam, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+teamColumns+` FROM field_teams
		WHERE status = $1 AND (availability->>'is_available')::boolean = true AND skills && $2
		ORDER BY id ASC
	`, models.TeamActive, requiredSkills)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FieldTeam
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTeam(ctx context.Context, t models.FieldTeam) error {
	location, _ := json.Marshal(t.CurrentLocation)
	availability, _ := json.Marshal(t.Availability)
	productivity, _ := json.Marshal(t.Productivity)
	cost, _ := json.Marshal(t.Cost)
	_, err := s.Pool.Exec(ctx, `
		UPDATE field_teams SET
			name = $2, email = $3, phone = $4, skills = $5, current_location = $6,
			availability = $7, productivity = $8, cost = $9, status = $10,
			current_assignment = $11, updated_at = NOW()
		WHERE id = $1
	`, t.ID, t.Name, t.Email, t.Phone, t.Skills, location,
		availability, productivity, cost, t.Status, t.CurrentAssignment)
	return err
}

func (s *Store) UpdateTeamLocation(ctx context.Context, id string, loc models.TeamLocation) error {
	location, _ := json.Marshal(loc)
	_, err := s.Pool.Exec(ctx, `
		UPDATE field_teams SET current_location = $2, updated_at = NOW() WHERE id = $1
	`, id, location)
	return err
}

func (s *Store) UpdateTeamAvailability(ctx context.Context, id string, av models.Availability) error {
	availability, _ := json.Marshal(av)
	_, err := s.Pool.Exec(ctx, `
		UPDATE field_teams SET availability = $2, updated_at = NOW() WHERE id = $1
	`, id, availability)
	return err
}

func (s *Store) UpdateTeamStatus(ctx context.Context, id, status string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE field_teams SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// OccupyTeam marks the technician busy with the given ticket inside the
// caller's transaction.
func (s *Store) OccupyTeam(ctx context.Context, tx pgx.Tx, teamID, ticketID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE field_teams SET current_assignment = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, teamID, ticketID, models.TeamBusy)
	return err
}

// ReleaseTeam clears the technician's current assignment and returns them to
// active.
func (s *Store) ReleaseTeam(ctx context.Context, teamID string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE field_teams SET current_assignment = NULL, status = $2, updated_at = NOW()
		WHERE id = $1
	`, teamID, models.TeamActive)
	return err
}

func scanTeam(row pgx.Row) (models.FieldTeam, error) {
	var (
		t            models.FieldTeam
		location     []byte
		availability []byte
		productivity []byte
		cost         []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Skills, &location, &availability,
		&productivity, &cost, &t.Status, &t.CurrentAssignment, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.FieldTeam{}, err
	}
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{location, &t.CurrentLocation},
		{availability, &t.Availability},
		{productivity, &t.Productivity},
		{cost, &t.Cost},
	} {
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return models.FieldTeam{}, err
		}
	}
	return t, nil
}

const assignmentColumns = `id, ticket_id, team_id, assignment_type, status, assigned_at,
	accepted_at, started_at, completed_at, estimated_arrival, actual_arrival,
	travel_time, distance_km, estimated_cost, actual_cost, assignment_score,
	factors, rejection_reason, performance, created_at, updated_at`

func (s *Store) InsertAssignment(ctx context.Context, tx pgx.Tx, a models.Assignment) error {
	travelTime, _ := json.Marshal(a.TravelTime)
	factors, _ := json.Marshal(a.Factors)
	performance, _ := json.Marshal(a.Performance)
	_, err := tx.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, a.ID, a.TicketID, a.TeamID, a.AssignmentType, a.Status, a.AssignedAt,
		a.AcceptedAt, a.StartedAt, a.CompletedAt, a.EstimatedArrivalTime, a.ActualArrivalTime,
		travelTime, a.DistanceKm, a.EstimatedCost, a.ActualCost, a.AssignmentScore,
		factors, a.RejectionReason, performance, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *Store) GetAssignment(ctx context.Context, id string) (models.Assignment, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

// GetActiveAssignment finds the in-flight assignment binding a ticket to its
// current technician, if any.
func (s *Store) GetActiveAssignment(ctx context.Context, ticketID string) (models.Assignment, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE ticket_id = $1 AND status IN ($2, $3, $4)
		ORDER BY assigned_at DESC LIMIT 1
	`, ticketID, models.AssignmentAssigned, models.AssignmentAccepted, models.AssignmentInProgress)
	return scanAssignment(row)
}

type AssignmentFilter struct {
	Status   string
	TeamID   string
	TicketID string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

func (s *Store) ListAssignments(ctx context.Context, f AssignmentFilter) ([]models.Assignment, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var args []any
	var wheres []string
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.TeamID != "" {
		args = append(args, f.TeamID)
		wheres = append(wheres, fmt.Sprintf("team_id = $%d", len(args)))
	}
	if f.TicketID != "" {
		args = append(args, f.TicketID)
		wheres = append(wheres, fmt.Sprintf("ticket_id = $%d", len(args)))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		wheres = append(wheres, fmt.Sprintf("assigned_at >= $%d", len(args)))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		wheres = append(wheres, fmt.Sprintf("assigned_at <= $%d", len(args)))
	}

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM assignments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + assignmentColumns + ` FROM assignments` + where +
		fmt.Sprintf(" ORDER BY assigned_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// ListAssignmentsSince loads every assignment newer than the cutoff for
// analytics rollups.
func (s *Store) ListAssignmentsSince(ctx context.Context, since time.Time, teamID string) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE assigned_at >= $1`
	args := []any{since}
	if teamID != "" {
		args = append(args, teamID)
		query += fmt.Sprintf(" AND team_id = $%d", len(args))
	}
	query += " ORDER BY assigned_at DESC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAssignment(ctx context.Context, a models.Assignment) error {
	travelTime, _ := json.Marshal(a.TravelTime)
	performance, _ := json.Marshal(a.Performance)
	_, err := s.Pool.Exec(ctx, `
		UPDATE assignments SET
			status = $2, accepted_at = $3, started_at = $4, completed_at = $5,
			actual_arrival = $6, travel_time = $7, actual_cost = $8,
			rejection_reason = $9, performance = $10, updated_at = NOW()
		WHERE id = $1
	`, a.ID, a.Status, a.AcceptedAt, a.StartedAt, a.CompletedAt,
		a.ActualArrivalTime, travelTime, a.ActualCost,
		a.RejectionReason, performance)
	return err
}

func scanAssignment(row pgx.Row) (models.Assignment, error) {
	var (
		a           models.Assignment
		travelTime  []byte
		factors     []byte
		performance []byte
	)
	err := row.Scan(&a.ID, &a.TicketID, &a.TeamID, &a.AssignmentType, &a.Status, &a.AssignedAt,
		&a.AcceptedAt, &a.StartedAt, &a.CompletedAt, &a.EstimatedArrivalTime, &a.ActualArrivalTime,
		&travelTime, &a.DistanceKm, &a.EstimatedCost, &a.ActualCost, &a.AssignmentScore,
		&factors, &a.RejectionReason, &performance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Assignment{}, err
	}
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{travelTime, &a.TravelTime},
		{factors, &a.Factors},
		{performance, &a.Performance},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return models.Assignment{}, err
		}
	}
	return a, nil
}

// TicketCounts aggregates intake statistics for the analytics overview.
type TicketCounts struct {
	Total             int            `json:"total"`
	Open              int            `json:"open"`
	InProgress        int            `json:"in_progress"`
	Completed         int            `json:"completed"`
	AvgCompletionTime float64        `json:"avg_completion_time"`
	ByPriority        map[string]int `json:"by_priority"`
	ByCategory        map[string]int `json:"by_category"`
}

func (s *Store) TicketAnalytics(ctx context.Context, since time.Time) (TicketCounts, error) {
	counts := TicketCounts{ByPriority: map[string]int{}, ByCategory: map[string]int{}}

	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'open'),
			COUNT(*) FILTER (WHERE status = 'in-progress'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COALESCE(AVG(actual_duration) FILTER (WHERE status = 'completed'), 0)
		FROM tickets WHERE created_at >= $1
	`, since).Scan(&counts.Total, &counts.Open, &counts.InProgress, &counts.Completed, &counts.AvgCompletionTime)
	if err != nil {
		return TicketCounts{}, err
	}

	for _, group := range []struct {
		column string
		dst    map[string]int
	}{
		{"priority", counts.ByPriority},
		{"category", counts.ByCategory},
	} {
		rows, err := s.Pool.Query(ctx,
			`SELECT `+group.column+`, COUNT(*) FROM tickets WHERE created_at >= $1 GROUP BY `+group.column, since)
		if err != nil {
			return TicketCounts{}, err
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return TicketCounts{}, err
			}
			group.dst[key] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return TicketCounts{}, err
		}
	}
	return counts, nil
}
