// Package anonymizer detects and replaces PII in interview transcripts.
//
// Detection is pluggable behind the Classifier interface:
//   - RuleClassifier: regex pass for structured and contextual patterns
//     (emails, phones, ages, dates, "my name is ..." constructions)
//   - LLMClassifier: model-backed pass for free-form names, locations and
//     organizations, via any OpenAI-compatible endpoint
//   - Multi: both, with candidates merged by the span resolver
//
// Unlike a best-effort redactor, classification failure is a hard error:
// returning an empty span list on a dead classifier would present raw PII
// as "nothing found". Callers decide how to degrade.
package anonymizer

import (
	"context"
	"errors"
	"regexp"

	"interview-anonymizer/internal/entity"
)

// ErrClassifierUnavailable is returned when the classifier collaborator
// fails or times out. It is distinct from a successful zero-PII result.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Classifier finds candidate PII spans in text. Candidates may overlap or
// sit adjacent to each other; the span resolver cleans that up. A failed
// classifier must return an error, never a silent empty slice.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]entity.Span, error)
}

// pattern pairs a compiled regex with the entity type it detects.
// If the expression contains a capture group, group 1 is the span and the
// rest of the match is context (e.g. the "my name is " lead-in).
type pattern struct {
	re  *regexp.Regexp
	typ entity.Type
}

// RuleClassifier is the deterministic regex-based classifier. It covers
// structured values (email, phone, dates, ages) and a handful of contextual
// constructions for names, locations and organizations.
type RuleClassifier struct {
	patterns []pattern
}

// ruleSpecs is the full rule set. Structured patterns match the value
// directly; contextual patterns capture the value in group 1.
var ruleSpecs = []struct {
	expr string
	typ  entity.Type
}{
	// Structured values.
	{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, entity.TypeEmail},
	{`\+?\d{1,2}[\s.\-]\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`, entity.TypePhone},
	{`\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`, entity.TypePhone},
	{`\b\d{3}[.\-]\d{4}\b`, entity.TypePhone},
	{`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`, entity.TypeDateOfBirth},
	{`\b\d{1,2}/\d{1,2}/\d{4}\b`, entity.TypeDateOfBirth},

	// Ages: the span is just the number, the phrasing is context.
	{`\b(\d{1,3})\s+years?\s+old\b`, entity.TypeAge},
	{`\b(?:age|aged)[:\s]+(\d{1,3})\b`, entity.TypeAge},

	// Contextual names.
	{`\b(?:[Mm]y name is|[Mm]y name's)\s+([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+)*)`, entity.TypeName},
	{`\b(?:I am|I'm)\s+([A-Z][a-z'\-]+\s+[A-Z][A-Za-z'\-]+)\b`, entity.TypeName},
	{`\b[Ii]nterview with\s+([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+)*)`, entity.TypeName},

	// Contextual locations.
	{`\b(?:[Ll]ives? in|[Ll]iving in|[Bb]ased in|[Ll]ocated in|[Mm]oved to|[Gg]rew up in)\s+([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*)`, entity.TypeLocation},

	// Organizations: contextual, plus corporate suffixes.
	{`\b(?:[Ww]ork(?:s|ed|ing)?\s+(?:at|for)|[Ee]mployed\s+(?:at|by)|[Ii]nterned\s+at|[Jj]oined)\s+([A-Z][A-Za-z0-9&\-]*(?:\s+[A-Z][A-Za-z0-9&\-]*)*)`, entity.TypeOrganization},
	{`\b[A-Z][A-Za-z0-9]+(?:\s+[A-Z][A-Za-z0-9]+)*\s+(?:Corp|Corporation|Inc|LLC|Ltd|GmbH)\b`, entity.TypeOrganization},
}

// NewRuleClassifier compiles the rule set. The expressions are constants,
// so compilation failure is a programming error and panics via MustCompile.
func NewRuleClassifier() *RuleClassifier {
	c := &RuleClassifier{}
	for _, s := range ruleSpecs {
		c.patterns = append(c.patterns, pattern{re: regexp.MustCompile(s.expr), typ: s.typ})
	}
	return c
}

// Classify runs every pattern over text and returns the raw candidates.
// Overlaps between patterns are expected and left to the resolver.
func (c *RuleClassifier) Classify(_ context.Context, text string) ([]entity.Span, error) {
	var spans []entity.Span
	for _, p := range c.patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			// Capture group present and matched: the group is the value.
			if len(m) >= 4 && m[2] >= 0 {
				start, end = m[2], m[3]
			}
			if start >= end {
				continue
			}
			spans = append(spans, entity.Span{
				Start: start,
				End:   end,
				Text:  text[start:end],
				Type:  p.typ,
			})
		}
	}
	return spans, nil
}

// Multi combines several classifiers into one. Candidates are concatenated;
// dedup and overlap resolution happen downstream. If any sub-classifier
// fails the whole classification fails — a partial result would silently
// leave that classifier's entity kinds unmasked.
type Multi []Classifier

// Classify implements Classifier.
func (m Multi) Classify(ctx context.Context, text string) ([]entity.Span, error) {
	var all []entity.Span
	for _, c := range m {
		spans, err := c.Classify(ctx, text)
		if err != nil {
			return nil, err
		}
		all = append(all, spans...)
	}
	return all, nil
}
