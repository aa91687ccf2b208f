package anonymizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"interview-anonymizer/internal/entity"
	"interview-anonymizer/internal/logger"
	"interview-anonymizer/internal/metrics"
)

// classifierFunc adapts a function to the Classifier interface.
type classifierFunc func(ctx context.Context, text string) ([]entity.Span, error)

func (f classifierFunc) Classify(ctx context.Context, text string) ([]entity.Span, error) {
	return f(ctx, text)
}

// spansFor builds spans by locating the given value/type pairs in text.
func spansFor(text string, pairs ...any) []entity.Span {
	var spans []entity.Span
	for i := 0; i < len(pairs); i += 2 {
		value := pairs[i].(string)
		typ := pairs[i+1].(entity.Type)
		from := 0
		for {
			idx := strings.Index(text[from:], value)
			if idx < 0 {
				break
			}
			start := from + idx
			spans = append(spans, entity.Span{Start: start, End: start + len(value), Text: value, Type: typ})
			from = start + len(value)
		}
	}
	return spans
}

func fixedClassifier(pairs ...any) Classifier {
	return classifierFunc(func(_ context.Context, text string) ([]entity.Span, error) {
		return spansFor(text, pairs...), nil
	})
}

func newTestAnonymizer(c Classifier) *Anonymizer {
	return New(c, logger.New("test", "error"), nil)
}

func TestAnonymizeEmailAndPhoneExample(t *testing.T) {
	text := "Email john@x.com, call 555-1234"
	a := newTestAnonymizer(fixedClassifier(
		"john@x.com", entity.TypeEmail,
		"555-1234", entity.TypePhone,
	))

	res, err := a.Anonymize(context.Background(), text)
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	if res.AnonymizedText != "Email E001, call P001" {
		t.Errorf("anonymized = %q, want %q", res.AnonymizedText, "Email E001, call P001")
	}
	want := []entity.MappingEntry{
		{Original: "john@x.com", Identifier: "E001", Type: entity.TypeEmail},
		{Original: "555-1234", Identifier: "P001", Type: entity.TypePhone},
	}
	if len(res.Entities) != len(want) {
		t.Fatalf("entity map has %d entries, want %d", len(res.Entities), len(want))
	}
	for i := range want {
		if res.Entities[i] != want[i] {
			t.Errorf("entity %d = %+v, want %+v", i, res.Entities[i], want[i])
		}
	}
}

func TestAnonymizePIIFreeTextUnchanged(t *testing.T) {
	a := newTestAnonymizer(fixedClassifier())
	text := "I enjoy solving hard problems with small teams.\n\tIndentation stays."

	res, err := a.Anonymize(context.Background(), text)
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	if res.AnonymizedText != text {
		t.Errorf("PII-free text changed:\n  want: %q\n   got: %q", text, res.AnonymizedText)
	}
	if len(res.Entities) != 0 {
		t.Errorf("expected empty entity map, got %+v", res.Entities)
	}
}

func TestRepeatedValueSharesIdentifier(t *testing.T) {
	text := "John met John, and John left."
	a := newTestAnonymizer(fixedClassifier("John", entity.TypeName))

	res, err := a.Anonymize(context.Background(), text)
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	if res.AnonymizedText != "N001 met N001, and N001 left." {
		t.Errorf("anonymized = %q", res.AnonymizedText)
	}
	if len(res.Entities) != 1 {
		t.Errorf("entity map has %d entries, want 1", len(res.Entities))
	}
}

func TestIdentifiersIncreaseInFirstSeenOrder(t *testing.T) {
	text := "Alice then Bob then Carol"
	a := newTestAnonymizer(fixedClassifier(
		"Alice", entity.TypeName,
		"Bob", entity.TypeName,
		"Carol", entity.TypeName,
	))

	res, err := a.Anonymize(context.Background(), text)
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	wantIDs := []string{"N001", "N002", "N003"}
	for i, e := range res.Entities {
		if e.Identifier != wantIDs[i] {
			t.Errorf("entity %d identifier = %q, want %q", i, e.Identifier, wantIDs[i])
		}
	}
	if res.AnonymizedText != "N001 then N002 then N003" {
		t.Errorf("anonymized = %q", res.AnonymizedText)
	}
}

func TestDeanonymizeRoundTrip(t *testing.T) {
	text := "Interview with John Doe on April 15, 2024. Email john.doe@example.com, phone 123-456-7890. John Doe lives in New York."
	a := newTestAnonymizer(fixedClassifier(
		"John Doe", entity.TypeName,
		"April 15, 2024", entity.TypeDateOfBirth,
		"john.doe@example.com", entity.TypeEmail,
		"123-456-7890", entity.TypePhone,
		"New York", entity.TypeLocation,
	))

	res, err := a.Anonymize(context.Background(), text)
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	if strings.Contains(res.AnonymizedText, "John Doe") {
		t.Errorf("name not anonymized: %q", res.AnonymizedText)
	}

	restored := Deanonymize(res.AnonymizedText, res.Entities)
	if restored != text {
		t.Errorf("round-trip failed\n  want: %q\n   got: %q", text, restored)
	}
}

func TestAnonymizeIdempotentShape(t *testing.T) {
	text := "Contact alice@example.com or call 555-0000."
	c := fixedClassifier("alice@example.com", entity.TypeEmail, "555-0000", entity.TypePhone)

	first, err := newTestAnonymizer(c).Anonymize(context.Background(), text)
	if err != nil {
		t.Fatalf("first Anonymize: %v", err)
	}
	second, err := newTestAnonymizer(c).Anonymize(context.Background(), text)
	if err != nil {
		t.Fatalf("second Anonymize: %v", err)
	}
	// Fresh tables restart counters; identical input must still yield
	// identical output and an equal entity map.
	if first.AnonymizedText != second.AnonymizedText {
		t.Errorf("runs differ:\n  first:  %q\n  second: %q", first.AnonymizedText, second.AnonymizedText)
	}
	if len(first.Entities) != len(second.Entities) {
		t.Fatalf("entity counts differ: %d vs %d", len(first.Entities), len(second.Entities))
	}
	for i := range first.Entities {
		if first.Entities[i] != second.Entities[i] {
			t.Errorf("entity %d differs: %+v vs %+v", i, first.Entities[i], second.Entities[i])
		}
	}
}

func TestClassifierFailurePropagates(t *testing.T) {
	a := newTestAnonymizer(classifierFunc(func(context.Context, string) ([]entity.Span, error) {
		return nil, ErrClassifierUnavailable
	}))

	res, err := a.Anonymize(context.Background(), "My SSN-free text")
	if res != nil {
		t.Errorf("expected nil result on classifier failure, got %+v", res)
	}
	if !errors.Is(err, ErrClassifierUnavailable) {
		t.Errorf("err = %v, want ErrClassifierUnavailable", err)
	}
}

func TestAnonymizeRecordsMetrics(t *testing.T) {
	m := metrics.New()
	a := New(fixedClassifier("bob@corp.io", entity.TypeEmail), logger.New("test", "error"), m)

	if _, err := a.Anonymize(context.Background(), "mail bob@corp.io twice: bob@corp.io"); err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	if got := m.EntitiesReplaced.Load(); got != 2 {
		t.Errorf("EntitiesReplaced = %d, want 2 (two spans, one entity)", got)
	}
	if got := m.Snapshot().Entities.ByType["email"]; got != 1 {
		t.Errorf("per-type email count = %d, want 1", got)
	}
}

func TestDeanonymizeLongerIdentifiersFirst(t *testing.T) {
	// N1000 contains N100 as a prefix. Substituting N100 first would
	// corrupt N1000; the longest-first order prevents that.
	entries := []entity.MappingEntry{
		{Original: "Alpha", Identifier: "N100", Type: entity.TypeName},
		{Original: "Beta", Identifier: "N1000", Type: entity.TypeName},
	}
	got := Deanonymize("N100 and N1000", entries)
	if got != "Alpha and Beta" {
		t.Errorf("got %q, want %q", got, "Alpha and Beta")
	}
}
