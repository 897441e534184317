// Package tools implements the tools the assistant can invoke while
// answering: the mid-answer retrieval tool that fetches additional context
// under the chunk budget, and adapters that expose each source plugin's
// declared tools to the agent. Every tool satisfies Eino's tool.BaseTool
// contract so it can be registered directly with the agent.
package tools

import (
	"github.com/mysticfalconvt/rob-rag-sub000/internal/budget"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
)

// AssistantTool extends the Eino tool contract with a Name accessor so the
// agent can log and route tool calls by name without type assertions.
type AssistantTool interface {
	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns the LLM-facing description of what the tool does.
	Description() string
}

// TurnState accumulates the retrieval context for one question. The initial
// retrieval seeds it; mid-answer retrievals append to it, deduplicated by
// exact chunk content. One TurnState serves exactly one question and is not
// shared across goroutines.
type TurnState struct {
	// Query is the user's question verbatim.
	Query string

	// SourceFilter scopes every retrieval in this turn.
	SourceFilter retrieval.SourceFilter

	// Retrieved is everything fetched so far, in retrieval order.
	Retrieved []retrieval.SearchResult

	// Budget caps total chunk retrieval for the turn.
	Budget *budget.Budget

	seen map[string]bool
}

// NewTurnState starts a turn for query with the given chunk budget.
func NewTurnState(query string, sf retrieval.SourceFilter, b *budget.Budget) *TurnState {
	if b == nil {
		b = budget.New(0)
	}
	return &TurnState{
		Query:        query,
		SourceFilter: sf,
		Budget:       b,
		seen:         make(map[string]bool),
	}
}

// Add appends results not already present, keyed by exact content, charges
// the budget for what was kept, and returns the newly added results.
func (s *TurnState) Add(results []retrieval.SearchResult) []retrieval.SearchResult {
	added := make([]retrieval.SearchResult, 0, len(results))
	for _, r := range results {
		if s.seen[r.Content] {
			continue
		}
		s.seen[r.Content] = true
		s.Retrieved = append(s.Retrieved, r)
		added = append(added, r)
	}
	s.Budget.Spend(len(added))
	return added
}
