// Package cypher provides safe literal construction and the content-addressed
// identity scheme for the hypergraph: deterministic ids for contexts and
// hyperedges, random ids for state-change events, and the escaping rules for
// the rare places where a value is interpolated instead of parameterised.
package cypher

import (
	"fmt"
	"strings"
)

// NullToken stands in for an absent value when hashing and when coalescing
// nullable properties inside queries, so "unknown start" collapses to a
// single identity.
const NullToken = "__NULL__"

// Escape doubles single quotes so a string can be embedded in a
// single-quoted Cypher literal. User-supplied strings should be passed as
// parameters instead; this is for structural fragments and deterministic ids.
func Escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Quote wraps s in single quotes, escaped.
func Quote(s string) string {
	return "'" + Escape(s) + "'"
}

// QuoteList renders a Cypher list literal of quoted strings.
func QuoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// OrNullToken maps a nil string pointer to the null token.
func OrNullToken(s *string) string {
	if s == nil {
		return NullToken
	}
	return *s
}

// NullableLiteral renders a nullable string as a Cypher literal: the null
// token (and nil) become the keyword null, anything else a quoted string.
func NullableLiteral(s *string) string {
	if s == nil || *s == NullToken {
		return "null"
	}
	return Quote(*s)
}

// PointLiteral renders a native point literal.
func PointLiteral(lon, lat float64) string {
	return fmt.Sprintf("point({longitude: %g, latitude: %g})", lon, lat)
}
