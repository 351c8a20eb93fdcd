package assign

import "errors"

var (
	// ErrNoAvailableTeams means the eligible pool was empty; no assignment
	// record is created in this case.
	ErrNoAvailableTeams = errors.New("no available field team members found")

	// ErrTicketNotAssignable means the ticket is not open or on hold.
	ErrTicketNotAssignable = errors.New("ticket cannot be assigned in current status")

	// ErrTeamUnavailable means the technician is inactive, flagged
	// unavailable, or already holds an assignment.
	ErrTeamUnavailable = errors.New("team member is not available")

	// ErrInvalidTransition means the requested lifecycle change is not legal
	// from the current status.
	ErrInvalidTransition = errors.New("status transition not allowed")
)
