package anonymizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"interview-anonymizer/internal/entity"
	"interview-anonymizer/internal/logger"
	"interview-anonymizer/internal/metrics"
)

// Result is the output of one anonymization call: the rewritten transcript
// and the entity mapping table in first-seen order.
type Result struct {
	AnonymizedText string                `json:"anonymizedTranscript"`
	Entities       []entity.MappingEntry `json:"entityMappingTable"`
}

// Anonymizer is the anonymization pipeline: classify, resolve spans,
// allocate identifiers, rewrite. Each call gets a fresh mapping table, so
// identifier counters restart at 1 per transcript.
type Anonymizer struct {
	classifier Classifier
	log        *logger.Logger
	metrics    *metrics.Metrics // nil = no metrics
}

// New builds the pipeline around the given classifier. m may be nil.
func New(classifier Classifier, log *logger.Logger, m *metrics.Metrics) *Anonymizer {
	return &Anonymizer{classifier: classifier, log: log, metrics: m}
}

// Anonymize replaces every detected PII span in text with a type-prefixed
// identifier and returns the rewritten text together with the mapping
// table. All non-PII bytes are preserved exactly.
//
// A classifier failure propagates as ErrClassifierUnavailable; the caller
// owns the degradation decision (the session orchestrator keeps the raw
// answer and flags the record).
func (a *Anonymizer) Anonymize(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	candidates, err := a.classifier.Classify(ctx, text)
	if err != nil {
		if a.metrics != nil {
			a.metrics.ClassifierErrors.Add(1)
		}
		return nil, fmt.Errorf("classify transcript: %w", err)
	}
	if a.metrics != nil {
		a.metrics.RecordClassifyLatency(time.Since(start))
	}

	spans := Resolve(text, candidates)

	table := entity.NewMappingTable()
	for _, s := range spans {
		table.Allocate(s.Type, s.Text)
	}

	out := rewrite(text, spans, table)

	if a.metrics != nil {
		a.metrics.EntitiesReplaced.Add(int64(len(spans)))
		for _, e := range table.Entries() {
			a.metrics.RecordEntityReplaced(string(e.Type))
		}
	}
	a.log.Debugf("anonymize", "%d spans, %d distinct entities in %d bytes",
		len(spans), table.Len(), len(text))

	return &Result{AnonymizedText: out, Entities: table.Entries()}, nil
}

// rewrite substitutes each span with its allocated identifier, copying all
// untouched bytes verbatim. spans must be sorted and non-overlapping; the
// table must already hold an entry per span text (Allocate is idempotent,
// so re-allocating here cannot mint new identifiers).
func rewrite(text string, spans []entity.Span, table *entity.MappingTable) string {
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.Start])
		b.WriteString(table.Allocate(s.Type, s.Text))
		last = s.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// Deanonymize reverses an anonymized transcript using its mapping table.
// Longer identifiers are substituted first so that, once counters widen
// past three digits, N100 can never clip the front of N1000.
func Deanonymize(text string, entries []entity.MappingEntry) string {
	sorted := make([]entity.MappingEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Identifier) > len(sorted[j].Identifier)
	})
	for _, e := range sorted {
		text = strings.ReplaceAll(text, e.Identifier, e.Original)
	}
	return text
}
