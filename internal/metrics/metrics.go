// Package metrics provides lightweight performance and volume counters for
// the interview anonymizer.
//
// Counters use sync/atomic so hot paths (classification, span rewrite)
// incur no mutex contention. Latency statistics use a single mutex per
// dimension; they are updated at most once per answer.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"interview-anonymizer/internal/entity"
)

// Metrics holds all runtime counters for one running instance.
// Use New(); the zero value lacks the per-type counter maps.
type Metrics struct {
	// Session counters
	AnswersSubmitted  atomic.Int64
	AnswersAnonymized atomic.Int64
	AnswersDegraded   atomic.Int64

	// Anonymization volume
	EntitiesReplaced atomic.Int64
	ClassifierErrors atomic.Int64

	// Classifier result cache
	ClassifierCacheHits   atomic.Int64
	ClassifierCacheMisses atomic.Int64

	// Collaborator counters
	QuestionsServed atomic.Int64
	QuestionErrors  atomic.Int64
	PersistFailures atomic.Int64
	CaptureAborts   atomic.Int64

	// Per-type entity counts. Map written only in New(); concurrent reads
	// of the atomic values are safe without a lock.
	entitiesByType map[string]*atomic.Int64

	// Latency statistics
	classifyMu   sync.Mutex
	classifyStat latencyStats

	questionMu   sync.Mutex
	questionStat latencyStats

	startTime time.Time
}

// New returns a Metrics with the start time recorded and per-type entity
// counters pre-populated for all known entity types.
func New() *Metrics {
	m := &Metrics{
		startTime:      time.Now(),
		entitiesByType: make(map[string]*atomic.Int64, len(entity.Types)),
	}
	for _, t := range entity.Types {
		m.entitiesByType[string(t)] = new(atomic.Int64)
	}
	return m
}

// RecordEntityReplaced increments the per-type entity counter.
// Unknown types are silently ignored.
func (m *Metrics) RecordEntityReplaced(entityType string) {
	if c, ok := m.entitiesByType[entityType]; ok {
		c.Add(1)
	}
}

// RecordClassifyLatency records the duration of one classification pass.
func (m *Metrics) RecordClassifyLatency(d time.Duration) {
	m.classifyMu.Lock()
	m.classifyStat.record(float64(d.Microseconds()) / 1000.0)
	m.classifyMu.Unlock()
}

// RecordQuestionLatency records one question-supply round trip.
func (m *Metrics) RecordQuestionLatency(d time.Duration) {
	m.questionMu.Lock()
	m.questionStat.record(float64(d.Microseconds()) / 1000.0)
	m.questionMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON
// encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.classifyMu.Lock()
	classify := m.classifyStat.snapshot()
	m.classifyMu.Unlock()

	m.questionMu.Lock()
	question := m.questionStat.snapshot()
	m.questionMu.Unlock()

	byType := make(map[string]int64, len(m.entitiesByType))
	for t, c := range m.entitiesByType {
		if n := c.Load(); n > 0 {
			byType[t] = n
		}
	}

	return Snapshot{
		Answers: AnswerSnapshot{
			Submitted:  m.AnswersSubmitted.Load(),
			Anonymized: m.AnswersAnonymized.Load(),
			Degraded:   m.AnswersDegraded.Load(),
		},
		Entities: EntitySnapshot{
			Replaced: m.EntitiesReplaced.Load(),
			ByType:   byType,
		},
		Classifier: ClassifierSnapshot{
			Errors:      m.ClassifierErrors.Load(),
			CacheHits:   m.ClassifierCacheHits.Load(),
			CacheMisses: m.ClassifierCacheMisses.Load(),
		},
		Collaborators: CollaboratorSnapshot{
			QuestionsServed: m.QuestionsServed.Load(),
			QuestionErrors:  m.QuestionErrors.Load(),
			PersistFailures: m.PersistFailures.Load(),
			CaptureAborts:   m.CaptureAborts.Load(),
		},
		Latency: LatencyGroup{
			ClassificationMs: classify,
			QuestionFetchMs:  question,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Answers       AnswerSnapshot       `json:"answers"`
	Entities      EntitySnapshot       `json:"entities"`
	Classifier    ClassifierSnapshot   `json:"classifier"`
	Collaborators CollaboratorSnapshot `json:"collaborators"`
	Latency       LatencyGroup         `json:"latency"`
	UptimeSecs    float64              `json:"uptimeSecs"`
}

// AnswerSnapshot holds answer-level counters.
type AnswerSnapshot struct {
	Submitted  int64 `json:"submitted"`
	Anonymized int64 `json:"anonymized"`
	Degraded   int64 `json:"degraded"`
}

// EntitySnapshot holds entity replacement volume.
type EntitySnapshot struct {
	Replaced int64 `json:"replaced"`
	// Per-type counts (only types with non-zero counts appear).
	ByType map[string]int64 `json:"byType,omitempty"`
}

// ClassifierSnapshot holds classifier health and cache effectiveness.
type ClassifierSnapshot struct {
	Errors      int64 `json:"errors"`
	CacheHits   int64 `json:"cacheHits"`
	CacheMisses int64 `json:"cacheMisses"`
}

// CollaboratorSnapshot holds counters for the external collaborators.
type CollaboratorSnapshot struct {
	QuestionsServed int64 `json:"questionsServed"`
	QuestionErrors  int64 `json:"questionErrors"`
	PersistFailures int64 `json:"persistFailures"`
	CaptureAborts   int64 `json:"captureAborts"`
}

// LatencyGroup groups the two latency dimensions.
type LatencyGroup struct {
	ClassificationMs LatencySnapshot `json:"classificationMs"`
	QuestionFetchMs  LatencySnapshot `json:"questionFetchMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
