package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"interview-anonymizer/internal/anonymizer"
	"interview-anonymizer/internal/capture"
	"interview-anonymizer/internal/entity"
	"interview-anonymizer/internal/feedback"
	"interview-anonymizer/internal/history"
	"interview-anonymizer/internal/logger"
	"interview-anonymizer/internal/metrics"
)

// stubSupplier hands out numbered questions and can be switched to fail.
type stubSupplier struct {
	fail  bool
	calls int
	seen  [][]string // excluded list per call
}

func (s *stubSupplier) NextQuestion(_ context.Context, role string, excluded []string) (string, error) {
	s.seen = append(s.seen, append([]string(nil), excluded...))
	if s.fail {
		return "", errors.New("question source down")
	}
	s.calls++
	return fmt.Sprintf("question %d for %s", s.calls, role), nil
}

// stubClassifier finds every occurrence of a fixed email, or fails.
type stubClassifier struct{ fail bool }

func (s *stubClassifier) Classify(_ context.Context, text string) ([]entity.Span, error) {
	if s.fail {
		return nil, anonymizer.ErrClassifierUnavailable
	}
	var spans []entity.Span
	const needle = "a@b.co"
	for from := 0; ; {
		i := strings.Index(text[from:], needle)
		if i < 0 {
			break
		}
		start := from + i
		spans = append(spans, entity.Span{Start: start, End: start + len(needle), Text: needle, Type: entity.TypeEmail})
		from = start + len(needle)
	}
	return spans, nil
}

// failStore wraps a MemoryStore and can reject appends.
type failStore struct {
	*history.MemoryStore
	fail bool
}

func (s *failStore) Append(ctx context.Context, rec *history.InterviewRecord) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.MemoryStore.Append(ctx, rec)
}

// stubCoach returns canned feedback, or fails.
type stubCoach struct {
	fail  bool
	calls int
	last  string // anonymized answer handed to Review
}

func (c *stubCoach) Review(_ context.Context, _, _, anonymizedAnswer string) (*feedback.Feedback, error) {
	c.calls++
	c.last = anonymizedAnswer
	if c.fail {
		return nil, errors.New("coach down")
	}
	return &feedback.Feedback{Clarity: "clear", Relevance: "relevant"}, nil
}

type fixture struct {
	orch       *Orchestrator
	supplier   *stubSupplier
	classifier *stubClassifier
	store      *failStore
	coach      *stubCoach
	metrics    *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewWithWriter("session-test", "error", io.Discard)
	f := &fixture{
		supplier:   &stubSupplier{},
		classifier: &stubClassifier{},
		store:      &failStore{MemoryStore: history.NewMemoryStore()},
		coach:      &stubCoach{},
		metrics:    metrics.New(),
	}
	anon := anonymizer.New(f.classifier, log, f.metrics)
	f.orch = New(anon, f.supplier, f.store, f.coach, log, f.metrics)
	return f
}

func startSession(t *testing.T, f *fixture) string {
	t.Helper()
	q, err := f.orch.StartSession(context.Background(), "software engineer", history.InputText)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return q
}

func TestStartSessionServesFirstQuestion(t *testing.T) {
	f := newFixture(t)
	q := startSession(t, f)
	if q == "" {
		t.Fatal("StartSession returned empty question")
	}
	if got := f.orch.State(); got != StateAwaitingAnswer {
		t.Errorf("state = %s, want %s", got, StateAwaitingAnswer)
	}
	if f.orch.CurrentQuestion() != q {
		t.Errorf("CurrentQuestion = %q, want %q", f.orch.CurrentQuestion(), q)
	}
}

func TestSubmitAnswerBeforeStartRejected(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orch.SubmitAnswer(context.Background(), "hello"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("err = %v, want ErrNotStarted", err)
	}
}

func TestSubmitAnswerRecordsAndAdvances(t *testing.T) {
	f := newFixture(t)
	q1 := startSession(t, f)

	rec, err := f.orch.SubmitAnswer(context.Background(), "reach me at a@b.co")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if rec.Question != q1 {
		t.Errorf("rec.Question = %q, want %q", rec.Question, q1)
	}
	if rec.RawAnswer != "reach me at a@b.co" {
		t.Errorf("rec.RawAnswer = %q", rec.RawAnswer)
	}
	if rec.AnonymizedAnswer != "reach me at E001" {
		t.Errorf("rec.AnonymizedAnswer = %q, want %q", rec.AnonymizedAnswer, "reach me at E001")
	}
	if len(rec.EntityMap) != 1 || rec.EntityMap[0].Identifier != "E001" {
		t.Errorf("rec.EntityMap = %+v", rec.EntityMap)
	}
	if rec.Degraded {
		t.Error("rec.Degraded = true on the success path")
	}
	if rec.Feedback == nil || rec.Feedback.Clarity != "clear" {
		t.Errorf("rec.Feedback = %+v", rec.Feedback)
	}
	if f.coach.last != "reach me at E001" {
		t.Errorf("coach saw %q, want the anonymized answer", f.coach.last)
	}

	// The session moved on to the next question.
	q2 := f.orch.CurrentQuestion()
	if q2 == "" || q2 == q1 {
		t.Errorf("next question = %q (previous %q)", q2, q1)
	}
	if got := f.orch.State(); got != StateAwaitingAnswer {
		t.Errorf("state = %s, want %s", got, StateAwaitingAnswer)
	}

	// And the record landed in the store.
	recs, err := f.store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != rec.ID {
		t.Errorf("stored records = %+v", recs)
	}
}

func TestSubmitAnswerDegradedOnClassifierOutage(t *testing.T) {
	f := newFixture(t)
	startSession(t, f)
	f.classifier.fail = true

	rec, err := f.orch.SubmitAnswer(context.Background(), "my email is a@b.co")
	if !errors.Is(err, anonymizer.ErrClassifierUnavailable) {
		t.Fatalf("err = %v, want ErrClassifierUnavailable", err)
	}
	if rec == nil {
		t.Fatal("rec = nil, want degraded record")
	}
	if !rec.Degraded {
		t.Error("rec.Degraded = false")
	}
	if rec.AnonymizedAnswer != "my email is a@b.co" {
		t.Errorf("rec.AnonymizedAnswer = %q, want the raw text", rec.AnonymizedAnswer)
	}
	if len(rec.EntityMap) != 0 {
		t.Errorf("rec.EntityMap = %+v, want empty", rec.EntityMap)
	}
	if rec.Feedback != nil {
		t.Error("degraded record carries feedback; raw text must not reach the coach")
	}
	if f.coach.calls != 0 {
		t.Errorf("coach called %d times on the degraded path", f.coach.calls)
	}
	if got := f.metrics.AnswersDegraded.Load(); got != 1 {
		t.Errorf("AnswersDegraded = %d, want 1", got)
	}

	// Degraded records still persist.
	recs, _ := f.store.List(context.Background(), 0)
	if len(recs) != 1 || !recs[0].Degraded {
		t.Errorf("stored records = %+v", recs)
	}
}

func TestSubmitAnswerPersistFailureNonFatal(t *testing.T) {
	f := newFixture(t)
	startSession(t, f)
	f.store.fail = true

	rec, err := f.orch.SubmitAnswer(context.Background(), "contact a@b.co")
	if err == nil {
		t.Fatal("err = nil, want persist error surfaced")
	}
	if rec == nil || rec.AnonymizedAnswer != "contact E001" {
		t.Fatalf("rec = %+v, want anonymized record despite persist failure", rec)
	}
	if got := f.metrics.PersistFailures.Load(); got != 1 {
		t.Errorf("PersistFailures = %d, want 1", got)
	}
	// The session still advanced.
	if got := f.orch.State(); got != StateAwaitingAnswer {
		t.Errorf("state = %s, want %s", got, StateAwaitingAnswer)
	}
}

// blockingClassifier parks Classify until released, so a test can hold
// the orchestrator in the analyzing state.
type blockingClassifier struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingClassifier) Classify(context.Context, string) ([]entity.Span, error) {
	b.entered <- struct{}{}
	<-b.release
	return nil, nil
}

func TestSubmitAnswerWhileAnalyzingRejected(t *testing.T) {
	log := logger.NewWithWriter("session-test", "error", io.Discard)
	cls := &blockingClassifier{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := metrics.New()
	anon := anonymizer.New(cls, log, m)
	orch := New(anon, &stubSupplier{}, history.NewMemoryStore(), &stubCoach{}, log, m)
	if _, err := orch.StartSession(context.Background(), "software engineer", history.InputText); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := orch.SubmitAnswer(context.Background(), "first answer")
		done <- err
	}()
	<-cls.entered // first submission is now mid-analysis

	_, err := orch.SubmitAnswer(context.Background(), "second answer")
	if !errors.Is(err, ErrAnalysisInProgress) {
		t.Errorf("concurrent SubmitAnswer err = %v, want ErrAnalysisInProgress", err)
	}

	close(cls.release)
	if err := <-done; err != nil {
		t.Fatalf("first SubmitAnswer: %v", err)
	}
	if got := orch.State(); got != StateAwaitingAnswer {
		t.Errorf("state after analysis = %s, want %s", got, StateAwaitingAnswer)
	}
}

func TestSubmitAnswerQuestionFailureLeavesRetryableState(t *testing.T) {
	f := newFixture(t)
	startSession(t, f)
	f.supplier.fail = true

	rec, err := f.orch.SubmitAnswer(context.Background(), "answer with a@b.co")
	if err == nil {
		t.Fatal("err = nil, want next-question error")
	}
	if rec == nil || rec.AnonymizedAnswer != "answer with E001" {
		t.Fatalf("rec = %+v, want anonymized record despite question failure", rec)
	}
	if got := f.orch.State(); got != StateAwaitingQuestion {
		t.Fatalf("state = %s, want %s", got, StateAwaitingQuestion)
	}

	// RequestQuestion retries once the supplier recovers.
	f.supplier.fail = false
	q, err := f.orch.RequestQuestion(context.Background())
	if err != nil {
		t.Fatalf("RequestQuestion: %v", err)
	}
	if q == "" {
		t.Fatal("RequestQuestion returned empty question")
	}
	if got := f.orch.State(); got != StateAwaitingAnswer {
		t.Errorf("state = %s, want %s", got, StateAwaitingAnswer)
	}
}

func TestRequestQuestionOutsideAwaitingQuestionRejected(t *testing.T) {
	f := newFixture(t)
	startSession(t, f)
	if _, err := f.orch.RequestQuestion(context.Background()); !errors.Is(err, ErrNoQuestionPending) {
		t.Errorf("err = %v, want ErrNoQuestionPending", err)
	}
}

func TestAskedQuestionsAreExcluded(t *testing.T) {
	f := newFixture(t)
	q1 := startSession(t, f)
	if _, err := f.orch.SubmitAnswer(context.Background(), "plain answer"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	last := f.supplier.seen[len(f.supplier.seen)-1]
	if len(last) != 1 || last[0] != q1 {
		t.Errorf("exclusion list = %v, want [%q]", last, q1)
	}
}

func TestRoleChangeResetsExclusions(t *testing.T) {
	f := newFixture(t)
	startSession(t, f)
	if _, err := f.orch.SubmitAnswer(context.Background(), "plain answer"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	// Same role: exclusions survive the restart.
	if _, err := f.orch.StartSession(context.Background(), "software engineer", history.InputText); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if last := f.supplier.seen[len(f.supplier.seen)-1]; len(last) != 2 {
		t.Errorf("same-role restart exclusions = %v, want 2 entries", last)
	}

	// New role: exclusions are reset.
	if _, err := f.orch.StartSession(context.Background(), "product manager", history.InputText); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if last := f.supplier.seen[len(f.supplier.seen)-1]; len(last) != 0 {
		t.Errorf("role-change exclusions = %v, want empty", last)
	}
}

func TestNextQuestionSkipsAndAbortsCapture(t *testing.T) {
	f := newFixture(t)
	q1 := startSession(t, f)

	cs := f.orch.Capture()
	if err := cs.Start(); err != nil {
		t.Fatalf("capture Start: %v", err)
	}
	if err := cs.OnSegment("partial spe", false, 0); err != nil {
		t.Fatalf("OnSegment: %v", err)
	}

	q2, err := f.orch.NextQuestion(context.Background())
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if q2 == q1 {
		t.Errorf("NextQuestion returned the same question %q", q2)
	}
	if cs.State() != capture.StateIdle {
		t.Errorf("capture state = %s, want %s", cs.State(), capture.StateIdle)
	}
	if got := f.metrics.CaptureAborts.Load(); got != 1 {
		t.Errorf("CaptureAborts = %d, want 1", got)
	}
}

func TestNextQuestionWithoutPendingQuestionRejected(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orch.NextQuestion(context.Background()); !errors.Is(err, ErrNoQuestionPending) {
		t.Errorf("err = %v, want ErrNoQuestionPending", err)
	}
}

func TestFeedbackFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixture(t)
	startSession(t, f)
	f.coach.fail = true

	rec, err := f.orch.SubmitAnswer(context.Background(), "contact a@b.co")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if rec.Feedback != nil {
		t.Errorf("rec.Feedback = %+v, want nil after coach failure", rec.Feedback)
	}
	if rec.AnonymizedAnswer != "contact E001" {
		t.Errorf("rec.AnonymizedAnswer = %q", rec.AnonymizedAnswer)
	}
}
