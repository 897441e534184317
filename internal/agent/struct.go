package agent

import (
	"github.com/mysticfalconvt/rob-rag-sub000/internal/attribution"
)

// Answer is the result of one question: the streamed response text plus the
// per-source relevance annotations computed after the response completed.
type Answer struct {
	// Text is the full assistant response.
	Text string `json:"text"`
	// Sources lists every chunk retrieved during the turn, scored against
	// the response and sorted by descending relevance. Entries with
	// IsReferenced set are the ones the answer is judged to have drawn on.
	Sources []attribution.SourceRelevance `json:"sources"`
}
