// Package anonymizer — resolver.go
//
// The span resolver turns raw classifier candidates into a clean span list:
// validated against the text, non-overlapping, sorted, with adjacent
// same-type fragments merged. Every downstream stage (allocation, rewrite)
// assumes these guarantees.
package anonymizer

import (
	"sort"

	"interview-anonymizer/internal/entity"
)

// Resolve validates, deduplicates and orders candidate spans over text.
//
// Overlap policy: the longer span wins; equal lengths go to the earlier
// start offset. The loser is discarded entirely rather than trimmed —
// a trimmed span would anonymize half a value and leave a malformed
// fragment next to the identifier.
//
// Adjacent spans of the same type with no separating character are merged
// into one span, so a first/last name split across two candidates receives
// a single identifier.
func Resolve(text string, candidates []entity.Span) []entity.Span {
	valid := make([]entity.Span, 0, len(candidates))
	for _, s := range candidates {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			continue
		}
		// A candidate whose text disagrees with its offsets is stale or
		// hallucinated; anonymizing it would replace the wrong bytes.
		slice := text[s.Start:s.End]
		if s.Text != "" && s.Text != slice {
			continue
		}
		s.Text = slice
		valid = append(valid, s)
	}

	// Longest first, then earliest, so the greedy pass below implements the
	// overlap preference directly.
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Len() != valid[j].Len() {
			return valid[i].Len() > valid[j].Len()
		}
		return valid[i].Start < valid[j].Start
	})

	var accepted []entity.Span
	for _, s := range valid {
		if !overlapsAny(s, accepted) {
			accepted = append(accepted, s)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })

	return mergeAdjacent(text, accepted)
}

// overlapsAny reports whether s overlaps any span in spans.
func overlapsAny(s entity.Span, spans []entity.Span) bool {
	for _, o := range spans {
		if s.Start < o.End && o.Start < s.End {
			return true
		}
	}
	return false
}

// mergeAdjacent coalesces runs of same-type spans that touch with no
// characters in between. Input must be sorted and non-overlapping.
func mergeAdjacent(text string, spans []entity.Span) []entity.Span {
	if len(spans) == 0 {
		return spans
	}
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.Start == last.End && s.Type == last.Type {
			last.End = s.End
			last.Text = text[last.Start:last.End]
			continue
		}
		out = append(out, s)
	}
	return out
}
