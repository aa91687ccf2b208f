// Package entity defines the PII vocabulary shared by the whole tool:
// the closed set of entity types, detected spans, and the session-scoped
// mapping table that assigns stable anonymized identifiers.
//
// A MappingTable lives for exactly one anonymization call. It is created
// empty, filled while the transcript is rewritten, and then frozen into the
// interview record. Counters never leak across transcripts, so every
// transcript starts again at N001, E001, and so on.
package entity

import "fmt"

// Type classifies one kind of personally identifiable information.
type Type string

// The closed set of entity types the anonymizer handles.
const (
	TypeName         Type = "name"
	TypeAge          Type = "age"
	TypeDateOfBirth  Type = "dateOfBirth"
	TypePhone        Type = "phone"
	TypeEmail        Type = "email"
	TypeLocation     Type = "location"
	TypeOrganization Type = "organization"
)

// Types lists all valid entity types in a fixed order. Used to pre-populate
// per-type metric counters and to validate classifier output.
var Types = []Type{
	TypeName, TypeAge, TypeDateOfBirth, TypePhone,
	TypeEmail, TypeLocation, TypeOrganization,
}

// identifierWidth is the zero-padded counter width in minted identifiers
// (N001, AGE001, ...). Counters past 999 simply widen; identifiers stay
// unique either way.
const identifierWidth = 3

// Prefix returns the identifier prefix for the type (N001, AGE001, DOB001,
// P001, E001, L001, O001). Unknown types get an "X" prefix so a bad
// classifier label is visible in output rather than silently dropped.
func (t Type) Prefix() string {
	switch t {
	case TypeName:
		return "N"
	case TypeAge:
		return "AGE"
	case TypeDateOfBirth:
		return "DOB"
	case TypePhone:
		return "P"
	case TypeEmail:
		return "E"
	case TypeLocation:
		return "L"
	case TypeOrganization:
		return "O"
	}
	return "X"
}

// Valid reports whether t is one of the known entity types.
func (t Type) Valid() bool {
	switch t {
	case TypeName, TypeAge, TypeDateOfBirth, TypePhone,
		TypeEmail, TypeLocation, TypeOrganization:
		return true
	}
	return false
}

// Span is a half-open byte range [Start, End) into a source transcript,
// together with the exact substring and its classification.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
	Type  Type   `json:"type"`
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// MappingEntry records one original value and the identifier it was
// replaced with.
type MappingEntry struct {
	Original   string `json:"original"`
	Identifier string `json:"identifier"`
	Type       Type   `json:"type"`
}

// MappingTable maps original PII values to their anonymized identifiers for
// a single anonymization call. Lookups are exact-match and case-sensitive:
// "John" and "john" are two entries. Each type has its own monotonically
// increasing counter starting at 1.
//
// Not safe for concurrent use; a table is owned by one anonymize call.
type MappingTable struct {
	entries  map[string]*MappingEntry
	order    []string // insertion order of original values
	counters map[Type]int
}

// NewMappingTable returns an empty table.
func NewMappingTable() *MappingTable {
	return &MappingTable{
		entries:  make(map[string]*MappingEntry),
		counters: make(map[Type]int),
	}
}

// Allocate returns the identifier for original, minting a new one on first
// sight. The same original always yields the same identifier within one
// table, even when it appears under repeated spans. Identifiers are unique
// per type within the table.
func (t *MappingTable) Allocate(typ Type, original string) string {
	if e, ok := t.entries[original]; ok {
		return e.Identifier
	}
	t.counters[typ]++
	id := fmt.Sprintf("%s%0*d", typ.Prefix(), identifierWidth, t.counters[typ])
	t.entries[original] = &MappingEntry{Original: original, Identifier: id, Type: typ}
	t.order = append(t.order, original)
	return id
}

// Lookup returns the existing entry for original, if any.
func (t *MappingTable) Lookup(original string) (MappingEntry, bool) {
	e, ok := t.entries[original]
	if !ok {
		return MappingEntry{}, false
	}
	return *e, true
}

// Len returns the number of distinct original values in the table.
func (t *MappingTable) Len() int { return len(t.order) }

// Entries returns all entries in first-seen order.
func (t *MappingTable) Entries() []MappingEntry {
	out := make([]MappingEntry, 0, len(t.order))
	for _, orig := range t.order {
		out = append(out, *t.entries[orig])
	}
	return out
}
