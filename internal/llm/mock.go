package llm

import (
	"context"
	"hash/fnv"
)

// MockAssistant answers locally without calling any model endpoint. It keys
// canned responses off the query type so that handlers and prompts can be
// exercised offline.
type MockAssistant struct {
	ModelVersion string
}

var mockAnswers = map[string]string{
	QueryPerformance: "Your completion rate is trending up. Keep first-visit fix rate above 80% and your rating should follow.",
	QueryTicket:      "Review the ticket description and required skills before departure, and confirm parts availability with the customer.",
	QueryRoute:       "Batch nearby jobs together and handle the farthest stop first while traffic is light.",
	QuerySchedule:    "You have open capacity later today. Mark yourself available once the current job wraps up.",
	QueryCustomer:    "Send the customer an arrival window and a short summary of the planned work before you head out.",
	QueryGeneral:     "I can help with tickets, routes, schedules, performance and customer communication. Ask me something specific.",
}

var mockClosers = []string{
	"Let me know if you need more detail.",
	"Happy to dig deeper into the numbers.",
	"Ping me again when the job status changes.",
}

func (m MockAssistant) Ask(ctx context.Context, prompt string, history []ChatMessage) (string, error) {
	answer, ok := mockAnswers[IdentifyQueryType(prompt)]
	if !ok {
		answer = mockAnswers[QueryGeneral]
	}
	h := fnv.New64a()
	h.Write([]byte(prompt))
	closer := mockClosers[int(h.Sum64()%uint64(len(mockClosers)))]
	return answer + " " + closer, nil
}
