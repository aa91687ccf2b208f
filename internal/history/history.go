// Package history persists interview records.
//
// Records are append-only: the core never mutates or deletes a record once
// emitted, and read-back is newest-first by timestamp for display. Two
// stores are provided:
//   - MemoryStore — in-memory only, used in tests and when no path is
//     configured.
//   - BoltStore   — embedded key-value store (bbolt), used in production.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"interview-anonymizer/internal/entity"
	"interview-anonymizer/internal/feedback"
)

// InputType distinguishes how an answer was captured.
type InputType string

// Supported input types.
const (
	InputVoice InputType = "voice"
	InputText  InputType = "text"
)

// InterviewRecord is one question/answer exchange. It is immutable once
// created; ownership passes to the store on Append and the orchestrator
// never re-reads a record it already emitted.
//
// Degraded marks records whose anonymization did not run (classifier
// outage): AnonymizedAnswer then holds the raw text and EntityMap is empty,
// so the UI can warn rather than silently present unmasked PII as clean.
type InterviewRecord struct {
	ID               string                `json:"id"`
	Question         string                `json:"question"`
	RawAnswer        string                `json:"rawAnswer"`
	AnonymizedAnswer string                `json:"anonymizedAnswer"`
	EntityMap        []entity.MappingEntry `json:"entityMap"`
	Role             string                `json:"role"`
	InputType        InputType             `json:"inputType"`
	Timestamp        time.Time             `json:"timestamp"`
	Degraded         bool                  `json:"degraded,omitempty"`
	Feedback         *feedback.Feedback    `json:"feedback,omitempty"`
}

// Store is the persistence collaborator. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append adds one record. Records are never overwritten.
	Append(ctx context.Context, rec *InterviewRecord) error

	// List returns up to limit records, newest first by timestamp.
	// limit <= 0 means all records.
	List(ctx context.Context, limit int) ([]InterviewRecord, error)

	// Close releases any resources held by the store.
	Close() error
}

// --- MemoryStore ----------------------------------------------------------

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records []InterviewRecord // append order == chronological order
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, rec *InterviewRecord) error {
	s.mu.Lock()
	s.records = append(s.records, *rec)
	s.mu.Unlock()
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit int) ([]InterviewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]InterviewRecord, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// --- BoltStore ------------------------------------------------------------

const historyBucket = "interview_history"

// BoltStore is a Store backed by an embedded bbolt database. Keys are
// zero-padded unix-nano timestamps plus the record ID, so a reverse cursor
// walk yields newest-first order directly.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at path and ensures the
// history bucket exists.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open history store %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(historyBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create history bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// key builds the timestamp-sortable record key.
func key(rec *InterviewRecord) []byte {
	return []byte(fmt.Sprintf("%020d-%s", rec.Timestamp.UnixNano(), rec.ID))
}

// Append implements Store.
func (s *BoltStore) Append(_ context.Context, rec *InterviewRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", historyBucket)
		}
		return b.Put(key(rec), data)
	}); err != nil {
		return fmt.Errorf("append record %s: %w", rec.ID, err)
	}
	return nil
}

// List implements Store.
func (s *BoltStore) List(_ context.Context, limit int) ([]InterviewRecord, error) {
	var out []InterviewRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec InterviewRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode record %q: %w", k, err)
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close implements Store.
func (s *BoltStore) Close() error { return s.db.Close() }
