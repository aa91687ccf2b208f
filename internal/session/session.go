// Package session orchestrates one interview practice session: the
// question cycle, per-answer anonymization, and history emission.
//
// The orchestrator is a state machine:
//
//	NotStarted → AwaitingQuestion → AwaitingAnswer → Analyzing → AwaitingQuestion → …
//
// A single answer's anonymization failure never crashes the session: the
// raw answer is kept in a degraded, flagged record rather than discarded.
// Only one answer may be in Analyzing at a time; a second submission is
// rejected, not queued.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"interview-anonymizer/internal/anonymizer"
	"interview-anonymizer/internal/capture"
	"interview-anonymizer/internal/entity"
	"interview-anonymizer/internal/feedback"
	"interview-anonymizer/internal/history"
	"interview-anonymizer/internal/logger"
	"interview-anonymizer/internal/metrics"
	"interview-anonymizer/internal/question"
)

// State is the orchestrator lifecycle state.
type State int

// Orchestrator states.
const (
	StateNotStarted State = iota
	StateAwaitingQuestion
	StateAwaitingAnswer
	StateAnalyzing
)

// String implements fmt.Stringer for log lines.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateAwaitingQuestion:
		return "awaiting-question"
	case StateAwaitingAnswer:
		return "awaiting-answer"
	case StateAnalyzing:
		return "analyzing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Orchestrator misuse errors.
var (
	ErrNotStarted         = errors.New("session not started")
	ErrNoQuestionPending  = errors.New("no question pending")
	ErrAnalysisInProgress = errors.New("an answer is already being analyzed")
)

// Orchestrator drives one interview session.
type Orchestrator struct {
	anon      *anonymizer.Anonymizer
	questions question.Supplier
	store     history.Store
	coach     feedback.Provider // nil = feedback disabled
	log       *logger.Logger
	metrics   *metrics.Metrics // nil = no metrics
	capture   *capture.Session

	mu        sync.Mutex
	state     State
	role      string
	inputType history.InputType
	current   string   // question awaiting an answer
	asked     []string // exclusion list; grows per session, reset on role change
}

// New builds an orchestrator. coach and m may be nil.
func New(anon *anonymizer.Anonymizer, questions question.Supplier, store history.Store,
	coach feedback.Provider, log *logger.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		anon:      anon,
		questions: questions,
		store:     store,
		coach:     coach,
		log:       log,
		metrics:   m,
		capture:   capture.NewSession(),
		state:     StateNotStarted,
	}
}

// State returns the current orchestrator state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CurrentQuestion returns the question awaiting an answer, if any.
func (o *Orchestrator) CurrentQuestion() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Capture returns the capture session attached to this orchestrator, for
// the engine delivering segment events.
func (o *Orchestrator) Capture() *capture.Session {
	return o.capture
}

// StartSession begins (or restarts) a session for the given role and input
// type, requesting the first question. Switching roles resets the question
// exclusion list; restarting with the same role keeps it, so questions do
// not repeat across restarts within a run.
//
// On question-supply failure the session stays in AwaitingQuestion and the
// user can retry with RequestQuestion.
func (o *Orchestrator) StartSession(ctx context.Context, role string, inputType history.InputType) (string, error) {
	o.mu.Lock()
	if o.state == StateAnalyzing {
		o.mu.Unlock()
		return "", ErrAnalysisInProgress
	}
	if role != o.role {
		o.asked = nil
	}
	o.role = role
	o.inputType = inputType
	o.current = ""
	o.state = StateAwaitingQuestion
	o.mu.Unlock()

	o.log.Infof("session_start", "role=%q input=%s", role, inputType)
	return o.fetchQuestion(ctx)
}

// RequestQuestion retries the question fetch after a supply failure.
// Valid only while AwaitingQuestion.
func (o *Orchestrator) RequestQuestion(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.state != StateAwaitingQuestion {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: state %s", ErrNoQuestionPending, o.state)
	}
	o.mu.Unlock()
	return o.fetchQuestion(ctx)
}

// SubmitAnswer anonymizes one answer, emits its history record, and
// advances to the next question. Valid only while AwaitingAnswer; a
// submission while another is in Analyzing is rejected with
// ErrAnalysisInProgress.
//
// The returned record is always non-nil once past the state check:
//   - classifier outage → degraded record (raw text kept, flagged) plus
//     the classification error;
//   - persistence failure → record still returned plus the store error;
//   - question-supply failure for the NEXT question → record returned,
//     session left in AwaitingQuestion for retry.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, rawText string) (*history.InterviewRecord, error) {
	o.mu.Lock()
	switch o.state {
	case StateAnalyzing:
		o.mu.Unlock()
		return nil, ErrAnalysisInProgress
	case StateAwaitingAnswer:
		// proceed
	case StateNotStarted:
		o.mu.Unlock()
		return nil, ErrNotStarted
	default:
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: state %s", ErrNoQuestionPending, o.state)
	}
	o.state = StateAnalyzing
	q, role, input := o.current, o.role, o.inputType
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.AnswersSubmitted.Add(1)
	}

	rec := &history.InterviewRecord{
		ID:        uuid.NewString(),
		Question:  q,
		RawAnswer: rawText,
		Role:      role,
		InputType: input,
		Timestamp: time.Now().UTC(),
	}

	var firstErr error
	res, err := o.anon.Anonymize(ctx, rawText)
	if err != nil {
		// Degrade, never discard: the raw answer survives, flagged so the
		// UI can warn that anonymization did not run.
		rec.AnonymizedAnswer = rawText
		rec.EntityMap = []entity.MappingEntry{}
		rec.Degraded = true
		firstErr = err
		if o.metrics != nil {
			o.metrics.AnswersDegraded.Add(1)
		}
		o.log.Warnf("answer_degraded", "anonymization failed, keeping raw answer: %v", err)
	} else {
		rec.AnonymizedAnswer = res.AnonymizedText
		rec.EntityMap = res.Entities
		if o.metrics != nil {
			o.metrics.AnswersAnonymized.Add(1)
		}
		if o.coach != nil {
			if fb, fbErr := o.coach.Review(ctx, role, q, res.AnonymizedText); fbErr == nil {
				rec.Feedback = fb
			} else {
				o.log.Warnf("feedback", "review failed, record emitted without feedback: %v", fbErr)
			}
		}
	}

	if err := o.store.Append(ctx, rec); err != nil {
		// Non-fatal: the in-memory record is still handed back.
		if o.metrics != nil {
			o.metrics.PersistFailures.Add(1)
		}
		o.log.Warnf("persist", "append record %s: %v", rec.ID, err)
		if firstErr == nil {
			firstErr = fmt.Errorf("persist record: %w", err)
		}
	}
	o.log.Infof("answer_recorded", "record=%s entities=%d degraded=%v", rec.ID, len(rec.EntityMap), rec.Degraded)

	if _, err := o.fetchQuestion(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return rec, firstErr
}

// NextQuestion skips the current question without answering it. Any
// in-flight capture is aborted first. Valid only while AwaitingAnswer.
func (o *Orchestrator) NextQuestion(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.state != StateAwaitingAnswer {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: state %s", ErrNoQuestionPending, o.state)
	}
	o.mu.Unlock()

	if o.capture.State() == capture.StateRecording {
		o.capture.Abort()
		if o.metrics != nil {
			o.metrics.CaptureAborts.Add(1)
		}
		o.log.Debug("capture_abort", "in-flight capture cancelled by question skip")
	}
	return o.fetchQuestion(ctx)
}

// fetchQuestion asks the supplier for the next question, excluding all
// previously asked ones. On failure the session is left in
// AwaitingQuestion; on success the question joins the exclusion list and
// the session moves to AwaitingAnswer.
func (o *Orchestrator) fetchQuestion(ctx context.Context) (string, error) {
	o.mu.Lock()
	role := o.role
	excluded := append([]string(nil), o.asked...)
	o.state = StateAwaitingQuestion
	o.current = ""
	o.mu.Unlock()

	start := time.Now()
	q, err := o.questions.NextQuestion(ctx, role, excluded)
	if o.metrics != nil {
		o.metrics.RecordQuestionLatency(time.Since(start))
	}
	if err != nil {
		if o.metrics != nil {
			o.metrics.QuestionErrors.Add(1)
		}
		o.log.Errorf("question_fetch", "supply failed for role %q: %v", role, err)
		return "", fmt.Errorf("next question: %w", err)
	}

	o.mu.Lock()
	o.current = q
	o.asked = append(o.asked, q)
	o.state = StateAwaitingAnswer
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.QuestionsServed.Add(1)
	}
	o.log.Debugf("question_served", "%q", q)
	return q, nil
}
