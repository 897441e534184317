// Package agent wires the Eino ReAct agent to the retrieval engine, the
// iterative retrieval tool, and the source plugin tools to form the core
// question-answering assistant. Each question runs as one turn: initial
// retrieval, context expansion, the ReAct loop (which may pull more chunks
// through tools), then relevance attribution over everything retrieved.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/attribution"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/budget"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/logging"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/tools"
)

// systemPrompt is the base system prompt injected into every turn. It
// establishes the assistant's persona and the rules for using retrieved
// context and tools.
const systemPrompt = `You are a personal knowledge assistant. You answer questions using the
user's own documents: notes, saved articles, managed documents, reading
history, calendar events, and email. Retrieved excerpts from those documents
are provided to you as context.

## How to answer

- Ground every claim in the provided context. If the context does not
  contain the answer, say so plainly instead of guessing.
- Prefer the user's own words and records over general knowledge. General
  knowledge may fill small gaps, but never contradict the documents.
- Answer directly and concisely. Do not restate the question or enumerate
  the documents you were given unless the user asks where something came
  from.
- When documents disagree, prefer the more recent one and note the
  discrepancy.

## Tools

- Use search_for_more_context when the provided context is clearly
  insufficient to answer: it retrieves additional document excerpts for a
  refined query. State your reason. There is a per-question retrieval
  limit; when the tool reports the limit is reached, answer with what you
  have.
- Source-specific tools (structured metadata queries, upcoming events) are
  better than semantic search for questions about exact fields: dates,
  authors, ratings, senders. Prefer them when the question names such a
  field.
- Never call a tool to re-fetch context you already have.

## Style

- Plain prose. Use a short list only when the user asks for an enumeration.
- Mention document names naturally ("your note meeting-2026-03.md says...")
  when it helps the user find the original.`

// Config holds the dependencies required to construct an Assistant.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Searcher performs ranked chunk retrieval. Required.
	Searcher retrieval.Searcher

	// Expander widens well-covered documents to their full bodies before
	// the context reaches the LLM. May be nil, which passes chunks through
	// unexpanded.
	Expander *retrieval.Expander

	// Attribution scores retrieved sources against the final response.
	// May be nil, in which case answers carry unscored sources.
	Attribution *attribution.Engine

	// Registry exposes source plugin tools to the agent. May be nil.
	Registry *source.Registry

	// TopK is the initial retrieval size per question. Defaults to 5.
	TopK int

	// MaxChunks caps total chunk retrieval per question, initial retrieval
	// included. Defaults to budget.DefaultMaxChunks.
	MaxChunks int
}

// Assistant answers questions over the user's indexed documents.
type Assistant struct {
	chatModel   model.ToolCallingChatModel
	searcher    retrieval.Searcher
	expander    *retrieval.Expander
	attribution *attribution.Engine
	registry    *source.Registry
	topK        int
	maxChunks   int
}

// New constructs an Assistant from the provided Config.
func New(cfg *Config) (*Assistant, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("agent: Searcher must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	maxChunks := cfg.MaxChunks
	if maxChunks <= 0 {
		maxChunks = budget.DefaultMaxChunks
	}

	expander := cfg.Expander
	if expander == nil {
		expander = retrieval.NewExpander(nil, retrieval.ExpanderConfig{})
	}

	return &Assistant{
		chatModel:   cfg.ChatModel,
		searcher:    cfg.Searcher,
		expander:    expander,
		attribution: cfg.Attribution,
		registry:    cfg.Registry,
		topK:        topK,
		maxChunks:   maxChunks,
	}, nil
}

// Ask answers a single question scoped by sf, streaming response text to w
// as it arrives. The returned Answer carries the full text plus per-source
// relevance annotations; it is non-nil whenever the error is nil.
func (a *Assistant) Ask(ctx context.Context, question string, sf retrieval.SourceFilter, w io.Writer) (*Answer, error) {
	log := logging.FromContext(ctx)

	state := tools.NewTurnState(question, sf, budget.New(a.maxChunks))

	// Initial retrieval, charged against the turn budget like every later
	// tool-driven retrieval.
	grant := state.Budget.Grant(a.topK)
	if grant > 0 {
		results := a.searcher.Search(ctx, question, grant, sf)
		state.Add(capResults(results, grant))
	}
	items := a.expander.Expand(ctx, state.Retrieved)
	log.Debug("agent: initial retrieval complete",
		slog.Int("chunks", len(state.Retrieved)),
		slog.Int("context_items", len(items)),
	)

	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: a.chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: a.buildTools(ctx, state),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}

	sr, err := reactAgent.Stream(ctx, a.buildMessages(question, items))
	if err != nil {
		return nil, fmt.Errorf("agent: stream failed: %w", err)
	}
	defer sr.Close()

	var msgBuf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("agent: stream receive error: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		msgBuf.WriteString(msg.Content)
		if w != nil {
			if _, err := fmt.Fprint(w, msg.Content); err != nil {
				return nil, fmt.Errorf("agent: write error: %w", err)
			}
		}
	}

	answer := &Answer{Text: msgBuf.String()}
	if a.attribution != nil {
		answer.Sources = a.attribution.AnalyzeReferencedSources(ctx, answer.Text, state.Retrieved)
	} else {
		for _, r := range state.Retrieved {
			answer.Sources = append(answer.Sources, attribution.SourceRelevance{SearchResult: r})
		}
	}
	return answer, nil
}

// buildTools assembles the per-turn tool list: the iterative retrieval tool
// plus every tool declared by a configured source plugin.
func (a *Assistant) buildTools(ctx context.Context, state *tools.TurnState) []tool.BaseTool {
	list := []tool.BaseTool{tools.NewMoreContextTool(a.searcher, state)}
	if a.registry == nil {
		return list
	}
	for _, p := range a.registry.Configured(ctx) {
		for _, def := range p.Tools() {
			list = append(list, tools.NewPluginTool(a.registry, p.Name(), def, state))
		}
	}
	return list
}

// buildMessages constructs the message slice: system prompt, retrieved
// context as a second system message, then the user question.
func (a *Assistant) buildMessages(question string, items []retrieval.ContextItem) []*schema.Message {
	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	if ctxMsg := buildRetrievalContext(items); ctxMsg != "" {
		messages = append(messages, schema.SystemMessage(ctxMsg))
	}
	return append(messages, schema.UserMessage(question))
}

// buildRetrievalContext formats expanded retrieval items into a system
// message. Returns an empty string when nothing was retrieved.
func buildRetrievalContext(items []retrieval.ContextItem) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Retrieved Context\n\n")
	sb.WriteString("The following excerpts from the user's documents are relevant to the question. Entries marked (full document) carry the complete document body.\n\n")
	for _, item := range items {
		label := item.FileName
		if label == "" {
			label = item.FilePath
		}
		if item.Expanded {
			fmt.Fprintf(&sb, "### %s (%s, full document)\n%s\n\n", label, item.Source, item.Content)
		} else {
			fmt.Fprintf(&sb, "### %s (%s)\n%s\n\n", label, item.Source, item.Content)
		}
	}
	return sb.String()
}

// capResults truncates results to at most n entries.
func capResults(results []retrieval.SearchResult, n int) []retrieval.SearchResult {
	if len(results) <= n {
		return results
	}
	return results[:n]
}
