package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
)

// MoreContextTool lets the model fetch additional chunks mid-answer when the
// initial retrieval was not enough. Every call is charged against the turn's
// chunk budget, and results already in the turn are dropped, so repeated
// calls converge instead of re-fetching the same context.
type MoreContextTool struct {
	searcher retrieval.Searcher
	state    *TurnState
}

// moreContextInput is the JSON-serialisable input schema.
type moreContextInput struct {
	// Reason is the model's stated justification for needing more context.
	Reason string `json:"reason"`

	// FocusArea optionally refines what to search for; the original question
	// is used when empty.
	FocusArea string `json:"focus_area,omitempty"`

	// AdditionalChunks is how many more chunks to fetch.
	AdditionalChunks int `json:"additional_chunks,omitempty"`
}

// moreContextOutput is the JSON result returned to the model.
type moreContextOutput struct {
	Success         bool                `json:"success"`
	ChunksRetrieved int                 `json:"chunks_retrieved"`
	Context         string              `json:"context,omitempty"`
	Sources         []moreContextSource `json:"sources,omitempty"`
	Message         string              `json:"message,omitempty"`
}

type moreContextSource struct {
	FileName string  `json:"file_name"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
}

// NewMoreContextTool constructs the tool bound to one turn's state.
func NewMoreContextTool(searcher retrieval.Searcher, state *TurnState) *MoreContextTool {
	return &MoreContextTool{searcher: searcher, state: state}
}

// Name returns the tool name registered with the agent.
func (t *MoreContextTool) Name() string { return "search_for_more_context" }

// Description returns the LLM-facing description of this tool.
func (t *MoreContextTool) Description() string {
	return "Retrieves additional knowledge-base chunks when the context provided so far is insufficient to answer. " +
		"State why more context is needed; optionally narrow the search with focus_area. " +
		"The total amount of context per question is limited, so use this only when something specific is missing."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *MoreContextTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"reason": {
				Type:     schema.String,
				Desc:     "Why the current context is insufficient.",
				Required: true,
			},
			"focus_area": {
				Type: schema.String,
				Desc: "Optional refined search phrase; the original question is searched when omitted.",
			},
			"additional_chunks": {
				Type: schema.Integer,
				Desc: "How many more chunks to fetch (1-15, default 5).",
			},
		}),
	}, nil
}

// InvokableRun performs the additional retrieval and reports the outcome as
// JSON. Budget exhaustion and empty retrievals are reported as structured
// failures rather than errors, so the agent run continues.
func (t *MoreContextTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	log := logging.FromContext(ctx)

	var input moreContextInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("search_for_more_context: invalid input: %w", err)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return "", fmt.Errorf("search_for_more_context: reason is required")
	}

	grant := t.state.Budget.Grant(input.AdditionalChunks)
	if grant == 0 {
		log.Debug("tools: chunk budget exhausted",
			slog.Int("spent", t.state.Budget.Spent()),
			slog.String("reason", input.Reason),
		)
		return marshalOutput(moreContextOutput{
			Message: fmt.Sprintf("The retrieval limit of %d chunks for this question is exhausted. Answer with the context already provided.", t.state.Budget.Max()),
		})
	}

	query := strings.TrimSpace(input.FocusArea)
	if query == "" {
		query = t.state.Query
	}

	// Over-fetch so that dedup against already-retrieved chunks still
	// yields new material.
	results := t.searcher.Search(ctx, query, grant+len(t.state.Retrieved), t.state.SourceFilter)
	fresh := t.state.Add(capResults(dropKnown(results, t.state), grant))

	if len(fresh) == 0 {
		return marshalOutput(moreContextOutput{
			Message: "No additional relevant context was found. Answer with the context already provided.",
		})
	}

	log.Debug("tools: additional context retrieved",
		slog.Int("chunks", len(fresh)),
		slog.Int("spent", t.state.Budget.Spent()),
		slog.String("focusArea", input.FocusArea),
	)

	var sb strings.Builder
	out := moreContextOutput{Success: true, ChunksRetrieved: len(fresh)}
	for _, r := range fresh {
		fmt.Fprintf(&sb, "--- %s ---\n%s\n", r.FileName(), r.Content)
		out.Sources = append(out.Sources, moreContextSource{
			FileName: r.FileName(),
			Source:   r.Source(),
			Score:    r.Score,
		})
	}
	out.Context = sb.String()
	return marshalOutput(out)
}

// dropKnown removes results whose content the turn already holds, without
// mutating the state.
func dropKnown(results []retrieval.SearchResult, state *TurnState) []retrieval.SearchResult {
	out := make([]retrieval.SearchResult, 0, len(results))
	for _, r := range results {
		if !state.seen[r.Content] {
			out = append(out, r)
		}
	}
	return out
}

// capResults truncates results to at most n entries.
func capResults(results []retrieval.SearchResult, n int) []retrieval.SearchResult {
	if len(results) > n {
		return results[:n]
	}
	return results
}

func marshalOutput(out moreContextOutput) (string, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("search_for_more_context: encoding result: %w", err)
	}
	return string(data), nil
}
