package llm

import (
	"context"
	"strings"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Assistant interface {
	Ask(ctx context.Context, prompt string, history []ChatMessage) (string, error)
}

// Query types drive which system data gets loaded into the prompt.
const (
	QueryPerformance = "performance"
	QueryTicket      = "ticket"
	QueryRoute       = "route"
	QuerySchedule    = "schedule"
	QueryCustomer    = "customer"
	QueryGeneral     = "general"
)

const (
	AdminQueryPerformance  = "performance"
	AdminQueryTickets      = "tickets"
	AdminQueryTeams        = "teams"
	AdminQueryCost         = "cost"
	AdminQueryOptimization = "optimization"
	AdminQueryAssignment   = "assignment"
	AdminQueryGeneral      = "general"
)

// IdentifyQueryType classifies a field technician's question by keyword.
func IdentifyQueryType(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "performance", "productivity", "rating"):
		return QueryPerformance
	case containsAny(q, "ticket", "job", "assignment"):
		return QueryTicket
	case containsAny(q, "route", "distance", "travel"):
		return QueryRoute
	case containsAny(q, "schedule", "time", "availability"):
		return QuerySchedule
	case containsAny(q, "customer", "communication"):
		return QueryCustomer
	default:
		return QueryGeneral
	}
}

// IdentifyAdminQueryType classifies a dashboard question by keyword.
func IdentifyAdminQueryType(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "performance", "productivity", "rating"):
		return AdminQueryPerformance
	case containsAny(q, "ticket", "trend", "category"):
		return AdminQueryTickets
	case containsAny(q, "team", "staff", "member"):
		return AdminQueryTeams
	case containsAny(q, "cost", "budget", "expense"):
		return AdminQueryCost
	case containsAny(q, "optimize", "improve", "efficiency"):
		return AdminQueryOptimization
	case containsAny(q, "assign", "schedule", "route"):
		return AdminQueryAssignment
	default:
		return AdminQueryGeneral
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
