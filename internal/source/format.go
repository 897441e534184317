package source

import (
	"fmt"
	"strings"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
)

// formatQueryResults renders metadata-query results as plain text for the
// model. Each result contributes its display name and content; scores are
// omitted since metadata queries carry no meaningful similarity.
func formatQueryResults(results []retrieval.SearchResult) string {
	if len(results) == 0 {
		return "No matching documents found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching document(s):\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "\n--- %d. %s (%s) ---\n", i+1, r.FileName(), r.Source())
		b.WriteString(strings.TrimSpace(r.Content))
		b.WriteString("\n")
	}
	return b.String()
}
