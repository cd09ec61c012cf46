// Package filerecord holds the File record aggregate: the row shape
// shared by every layer that reads or writes the files table, plus a
// small Clock seam so transition tests can inject deterministic
// timestamps instead of depending on wall-clock time.
package filerecord

import "time"

// IntentKind names the single write-ahead intent kind this engine
// supports today. The column is nullable text so a future intent kind
// does not require a schema migration, only a new constant here.
type IntentKind string

const (
	IntentReset IntentKind = "RESET"
)

// Record is one row of the files table: one per local source path. Every
// field maps 1:1 onto a column; nullable columns are pointers so a zero
// value and "not set" are never confused.
type Record struct {
	FilePath    string
	ContentHash string
	State       string // fsmstate.State, stored as plain string to avoid an import cycle with the persistence layer's row-scanning helpers
	Version     int64

	RemoteRawID      *string
	RemoteStoreDocID *string

	IntentKind      *IntentKind
	IntentStartedAt *time.Time
	IntentStepsDone *int

	FailureReason *string
	FSMUpdatedAt  time.Time

	// BatchRunID and LastErrorCode are operability columns: neither is
	// read nor written by FSM logic. They exist purely for log
	// correlation and CLI filtering.
	BatchRunID    *string
	LastErrorCode *string

	// AIMetadataJSON is opaque and sacred: no operation in this engine
	// writes, resets, or deletes it. It is carried here only so a full
	// row scan has somewhere to put the column; every transition method
	// in the persistence layer must leave it untouched.
	AIMetadataJSON *string
}

// HasIntent reports whether the record has a write-ahead intent recorded,
// used by the recovery crawler's single query and by IntentInProgress
// guards in the orchestrator.
func (r *Record) HasIntent() bool {
	return r.IntentKind != nil
}

// StepsDone returns the number of completed compensation steps for the
// record's intent, or 0 if no intent is recorded.
func (r *Record) StepsDone() int {
	if r.IntentStepsDone == nil {
		return 0
	}
	return *r.IntentStepsDone
}

// Clock abstracts "now" so the transition layer can be driven by a fixed
// clock in tests, the same "now" vs. "reconstruct from a stored value"
// split the teacher's timestamp helpers use.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a test Clock that always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (f FixedClock) Now() time.Time { return f.At }

func StrPtr(s string) *string { return &s }

func IntPtr(i int) *int { return &i }
