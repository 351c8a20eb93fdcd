package models

import "time"

const (
	PriorityLow       = "low"
	PriorityMedium    = "medium"
	PriorityHigh      = "high"
	PriorityUrgent    = "urgent"
	PriorityEmergency = "emergency"
)

const (
	TicketOpen       = "open"
	TicketAssigned   = "assigned"
	TicketInProgress = "in-progress"
	TicketCompleted  = "completed"
	TicketCancelled  = "cancelled"
	TicketOnHold     = "on-hold"
)

const (
	TeamActive   = "active"
	TeamInactive = "inactive"
	TeamBusy     = "busy"
	TeamOffline  = "offline"
)

const (
	AssignmentAssigned   = "assigned"
	AssignmentAccepted   = "accepted"
	AssignmentRejected   = "rejected"
	AssignmentInProgress = "in-progress"
	AssignmentCompleted  = "completed"
	AssignmentCancelled  = "cancelled"
)

const (
	AssignAutomatic = "automatic"
	AssignManual    = "manual"
	AssignOverride  = "override"
)

// Categories double as skill tags.
var Categories = []string{"electrical", "plumbing", "hvac", "general", "emergency", "maintenance"}

type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	ZipCode   string  `json:"zip_code,omitempty"`
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company,omitempty"`
}

type Ticket struct {
	ID                string     `json:"id"`
	TicketNumber      string     `json:"ticket_number"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Priority          string     `json:"priority"`
	Category          string     `json:"category"`
	Status            string     `json:"status"`
	Location          Location   `json:"location"`
	Customer          Customer   `json:"customer"`
	AssignedTo        *string    `json:"assigned_to"`
	EstimatedDuration int        `json:"estimated_duration"`
	ActualDuration    *int       `json:"actual_duration"`
	ScheduledTime     *time.Time `json:"scheduled_time"`
	StartedAt         *time.Time `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	EstimatedCost     float64    `json:"estimated_cost"`
	ActualCost        *float64   `json:"actual_cost"`
	SkillsRequired    []string   `json:"skills_required"`
	CustomerRating    *float64   `json:"customer_rating"`
	CustomerFeedback  string     `json:"customer_feedback,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CanBeAssigned reports whether the ticket is in an assignable state.
func (t Ticket) CanBeAssigned() bool {
	return t.Status == TicketOpen || t.Status == TicketOnHold
}

// RequiredSkills returns the skill set the ticket needs, defaulting to its category.
func (t Ticket) RequiredSkills() []string {
	if len(t.SkillsRequired) > 0 {
		return t.SkillsRequired
	}
	return []string{t.Category}
}

// UrgencyScore combines the priority weight with ticket age, capped at 5
// points for age.
func (t Ticket) UrgencyScore(now time.Time) float64 {
	weights := map[string]float64{
		PriorityEmergency: 10,
		PriorityUrgent:    8,
		PriorityHigh:      6,
		PriorityMedium:    4,
		PriorityLow:       2,
	}
	ageWeight := now.Sub(t.CreatedAt).Hours() / 24
	if ageWeight > 5 {
		ageWeight = 5
	}
	if ageWeight < 0 {
		ageWeight = 0
	}
	return weights[t.Priority] + ageWeight
}

type TeamLocation struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Availability struct {
	IsAvailable  bool         `json:"is_available"`
	WorkingHours WorkingHours `json:"working_hours"`
	Timezone     string       `json:"timezone"`
}

type Productivity struct {
	TotalTicketsCompleted int     `json:"total_tickets_completed"`
	AverageCompletionTime float64 `json:"average_completion_time"`
	CustomerRating        float64 `json:"customer_rating"`
	EfficiencyScore       float64 `json:"efficiency_score"`
}

type Cost struct {
	HourlyRate      float64 `json:"hourly_rate"`
	TravelCostPerKm float64 `json:"travel_cost_per_km"`
}

type FieldTeam struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Email             string       `json:"email"`
	Phone             string       `json:"phone"`
	Skills            []string     `json:"skills"`
	CurrentLocation   TeamLocation `json:"current_location"`
	Availability      Availability `json:"availability"`
	Productivity      Productivity `json:"productivity"`
	Cost              Cost         `json:"cost"`
	Status            string       `json:"status"`
	CurrentAssignment *string      `json:"current_assignment"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// HasSkill reports whether the technician carries the given skill tag.
func (f FieldTeam) HasSkill(skill string) bool {
	for _, s := range f.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

type TravelTime struct {
	Estimated *int `json:"estimated"`
	Actual    *int `json:"actual"`
}

type Performance struct {
	CustomerRating *float64 `json:"customer_rating"`
	CompletionTime *int     `json:"completion_time"`
	Efficiency     *float64 `json:"efficiency"`
}

// Factors holds the five sub-scores snapshotted when an assignment is created.
// They are never recomputed after the fact.
type Factors struct {
	Productivity float64 `json:"productivity"`
	Availability float64 `json:"availability"`
	Cost         float64 `json:"cost"`
	Distance     float64 `json:"distance"`
	Skills       float64 `json:"skills"`
}

type Assignment struct {
	ID                   string      `json:"id"`
	TicketID             string      `json:"ticket_id"`
	TeamID               string      `json:"team_id"`
	AssignmentType       string      `json:"assignment_type"`
	Status               string      `json:"status"`
	AssignedAt           time.Time   `json:"assigned_at"`
	AcceptedAt           *time.Time  `json:"accepted_at"`
	StartedAt            *time.Time  `json:"started_at"`
	CompletedAt          *time.Time  `json:"completed_at"`
	EstimatedArrivalTime *time.Time  `json:"estimated_arrival_time"`
	ActualArrivalTime    *time.Time  `json:"actual_arrival_time"`
	TravelTime           TravelTime  `json:"travel_time"`
	DistanceKm           float64     `json:"distance_km"`
	EstimatedCost        float64     `json:"estimated_cost"`
	ActualCost           *float64    `json:"actual_cost"`
	AssignmentScore      float64     `json:"assignment_score"`
	Factors              Factors     `json:"factors"`
	RejectionReason      string      `json:"rejection_reason,omitempty"`
	Performance          Performance `json:"performance"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// IsActive reports whether the assignment still occupies the technician.
func (a Assignment) IsActive() bool {
	switch a.Status {
	case AssignmentAssigned, AssignmentAccepted, AssignmentInProgress:
		return true
	}
	return false
}

// Efficiency is estimated duration over actual completion time; values above
// 1 mean the job finished faster than estimated.
func (a Assignment) Efficiency(estimatedDuration int) *float64 {
	if a.Performance.CompletionTime == nil || *a.Performance.CompletionTime <= 0 || estimatedDuration <= 0 {
		return nil
	}
	e := float64(estimatedDuration) / float64(*a.Performance.CompletionTime)
	return &e
}
