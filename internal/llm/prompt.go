package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fieldops/backend/internal/models"
)

const fieldSystemPrompt = `You are an intelligent assistant for a field service management system. You help field teams with:

1. Ticket details and troubleshooting guidance
2. Performance analytics and insights
3. Productivity recommendations
4. Route optimization suggestions
5. Customer communication assistance

You have access to:
- Field team member profiles and performance data
- Ticket information and history
- Assignment records and analytics
- Geographic and scheduling data

Always provide helpful, accurate, and actionable information. If you don't have specific data, clearly state that and suggest how to obtain it.`

const adminSystemPrompt = `You are an intelligent AI assistant for a field service management system dashboard. You help administrators and managers with:

1. System analytics and performance insights
2. Team productivity analysis and recommendations
3. Ticket assignment optimization strategies
4. Operational efficiency improvements
5. Data interpretation and trend analysis
6. Resource allocation suggestions
7. Cost optimization recommendations

You have access to real-time system data including:
- Ticket metrics (total, completed, open, categories)
- Team status and availability
- Assignment performance and ratings
- Cost and time analytics

Always provide:
- Clear, actionable insights
- Data-driven recommendations
- Specific metrics and trends
- Practical next steps
- Professional, helpful tone

If you don't have specific data, clearly state that and suggest how to obtain it.`

func FieldSystemPrompt() string { return fieldSystemPrompt }
func AdminSystemPrompt() string { return adminSystemPrompt }

// FieldContext carries whatever data was loaded for the technician's query.
// Only the sections relevant to the query type are populated.
type FieldContext struct {
	TeamMember  map[string]any `json:"team_member,omitempty"`
	Performance map[string]any `json:"performance,omitempty"`
	Tickets     []any          `json:"tickets,omitempty"`
	Route       map[string]any `json:"route,omitempty"`
	Schedule    map[string]any `json:"schedule,omitempty"`
	Customer    map[string]any `json:"customer,omitempty"`
}

// QueryContext is extra context the caller attaches to a query.
type QueryContext struct {
	TicketID string           `json:"ticket_id,omitempty"`
	Location *models.Location `json:"location,omitempty"`
}

// BuildFieldPrompt assembles the user turn for a technician query. The
// relevant data is inlined as indented JSON so the model can quote it back.
func BuildFieldPrompt(query string, data FieldContext, qc QueryContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Field team member query: %q\n\n", query)
	b.WriteString("Relevant data:\n")
	b.WriteString(indentJSON(data))
	if qc.TicketID != "" {
		fmt.Fprintf(&b, "\nCurrent ticket: %s", qc.TicketID)
	}
	if qc.Location != nil {
		b.WriteString("\nCurrent location: ")
		b.WriteString(indentJSON(qc.Location))
	}
	b.WriteString("\n\nPlease provide a helpful response based on this data. Be specific and actionable.")
	return b.String()
}

// BuildAdminPrompt assembles the user turn for a dashboard query.
func BuildAdminPrompt(query string, systemData map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Admin Dashboard Query: %q\n\n", query)
	b.WriteString("Current System Data:\n")
	for _, key := range []string{"tickets", "teams", "assignments"} {
		if v, ok := systemData[key]; ok {
			fmt.Fprintf(&b, "%s: %s\n\n", strings.ToUpper(key[:1])+key[1:], indentJSON(v))
		}
	}
	b.WriteString("Please provide a comprehensive analysis and actionable recommendations based on this data. ")
	b.WriteString("Focus on insights that can help improve operations, efficiency, and decision-making.")
	return b.String()
}

// BuildTroubleshootPrompt asks for a repair walkthrough for one ticket.
func BuildTroubleshootPrompt(t models.Ticket) string {
	var b strings.Builder
	b.WriteString("Provide troubleshooting suggestions for this ticket:\n\n")
	fmt.Fprintf(&b, "Category: %s\n", t.Category)
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Description: %s\n\n", t.Description)
	b.WriteString("Please provide:\n")
	b.WriteString("1. Step-by-step troubleshooting approach\n")
	b.WriteString("2. Common issues and solutions for this category\n")
	b.WriteString("3. Safety considerations\n")
	b.WriteString("4. Tools and equipment needed\n")
	b.WriteString("5. When to escalate to supervisor")
	return b.String()
}

// BuildInsightsPrompt asks for coaching feedback from a performance snapshot.
func BuildInsightsPrompt(performance map[string]any) string {
	var b strings.Builder
	b.WriteString("Based on this performance data, provide insights and recommendations:\n\n")
	b.WriteString(indentJSON(performance))
	b.WriteString("\n\nFocus on:\n")
	b.WriteString("1. Key strengths and areas for improvement\n")
	b.WriteString("2. Productivity trends\n")
	b.WriteString("3. Specific actionable recommendations\n")
	b.WriteString("4. Goal setting suggestions")
	return b.String()
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
