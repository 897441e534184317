package retrieval

import (
	"strings"
)

// FilterByTags narrows results in memory by tag substring match. Plugins
// whose storage represents multi-valued fields as delimited strings (e.g.
// pipe-delimited tag lists) cannot express "contains" against the store, so
// they post-filter after the primary store query. This never replaces that
// query, which already narrowed by source, date, and so on.
//
// A result is kept when any lower-cased query term is a substring of any
// token of the stored value split on delim. Results missing the field are
// dropped. Empty terms return the input unchanged.
func FilterByTags(results []SearchResult, terms []string, field, delim string) []SearchResult {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return results
	}
	if delim == "" {
		delim = "|"
	}

	kept := make([]SearchResult, 0, len(results))
	for _, r := range results {
		stored := strings.ToLower(r.Metadata.String(field))
		if stored == "" {
			continue
		}
		if anyTermMatches(terms, strings.Split(stored, delim)) {
			kept = append(kept, r)
		}
	}
	return kept
}

// normalizeTerms lower-cases and trims terms, dropping empties.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// anyTermMatches reports whether any term is a substring of any token.
func anyTermMatches(terms, tokens []string) bool {
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		for _, term := range terms {
			if strings.Contains(tok, term) {
				return true
			}
		}
	}
	return false
}
