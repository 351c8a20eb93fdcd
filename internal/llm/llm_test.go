package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/fieldops/backend/internal/models"
)

func TestIdentifyQueryType(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"How is my performance this month?", QueryPerformance},
		{"What's my current rating?", QueryPerformance},
		{"Tell me about my next job", QueryTicket},
		{"What's the best route to the site?", QueryRoute},
		{"How far is the travel today?", QueryRoute},
		{"What's my schedule tomorrow?", QuerySchedule},
		{"How should I contact the customer?", QueryCustomer},
		{"Hello there", QueryGeneral},
	}
	for _, tc := range cases {
		if got := IdentifyQueryType(tc.query); got != tc.want {
			t.Fatalf("IdentifyQueryType(%q) = %s, want %s", tc.query, got, tc.want)
		}
	}
}

func TestIdentifyAdminQueryType(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"Show me productivity numbers", AdminQueryPerformance},
		{"What are the ticket trends by category?", AdminQueryTickets},
		{"Which staff members are free?", AdminQueryTeams},
		{"What's our travel expense this week?", AdminQueryCost},
		{"How can we improve efficiency?", AdminQueryOptimization},
		{"Suggest a better dispatch schedule", AdminQueryAssignment},
		{"Good morning", AdminQueryGeneral},
	}
	for _, tc := range cases {
		if got := IdentifyAdminQueryType(tc.query); got != tc.want {
			t.Fatalf("IdentifyAdminQueryType(%q) = %s, want %s", tc.query, got, tc.want)
		}
	}
}

func TestBuildFieldPrompt(t *testing.T) {
	data := FieldContext{
		TeamMember: map[string]any{"name": "Crew 001"},
	}
	prompt := BuildFieldPrompt("Where do I go next?", data, QueryContext{TicketID: "ticket-1"})

	for _, fragment := range []string{
		`Field team member query: "Where do I go next?"`,
		"Crew 001",
		"Current ticket: ticket-1",
		"Be specific and actionable.",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}

func TestBuildAdminPrompt(t *testing.T) {
	prompt := BuildAdminPrompt("How are we doing?", map[string]any{
		"tickets":     map[string]any{"total": 12},
		"teams":       []any{},
		"assignments": map[string]any{"completed": 4},
	})

	for _, fragment := range []string{
		`Admin Dashboard Query: "How are we doing?"`,
		"Tickets:",
		"Teams:",
		"Assignments:",
		"actionable recommendations",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}

func TestBuildTroubleshootPrompt(t *testing.T) {
	ticket := models.Ticket{
		Category:    "hvac",
		Priority:    models.PriorityUrgent,
		Description: "Compressor making grinding noises",
	}
	prompt := BuildTroubleshootPrompt(ticket)

	for _, fragment := range []string{
		"Category: hvac",
		"Priority: urgent",
		"Compressor making grinding noises",
		"Safety considerations",
		"When to escalate to supervisor",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}

func TestMockAssistantIsDeterministic(t *testing.T) {
	mock := MockAssistant{ModelVersion: "mock-v1"}

	first, err := mock.Ask(context.Background(), "How is my performance?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := mock.Ask(context.Background(), "How is my performance?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("same prompt should yield same answer:\n%s\n%s", first, second)
	}
	if !strings.Contains(first, "completion rate") {
		t.Fatalf("performance query should get the performance canned answer, got %q", first)
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	if got := (RateLimitError{}).Error(); got != "rate limited" {
		t.Fatalf("unexpected message %q", got)
	}
	withDelay := RateLimitError{RetryAfter: 30000000000} // 30s
	if !strings.Contains(withDelay.Error(), "30s") {
		t.Fatalf("expected retry delay in message, got %q", withDelay.Error())
	}
}

func TestExtractRetryAfter(t *testing.T) {
	body := map[string]any{
		"error": map[string]any{
			"details": []any{
				map[string]any{
					"@type":      "type.googleapis.com/google.rpc.RetryInfo",
					"retryDelay": "21s",
				},
			},
		},
	}
	if d := extractRetryAfter(body); d.Seconds() != 21 {
		t.Fatalf("expected 21s, got %v", d)
	}
	if d := extractRetryAfter(map[string]any{}); d != 0 {
		t.Fatalf("expected 0 for empty body, got %v", d)
	}
}
