// Package fsm is the declarative state graph: five states, eight legal
// transitions, validation-only. It contains no I/O and no callbacks that
// mutate durable state — that distinction belongs entirely to the
// transition layer in internal/infrastructure/persistence/sqlite. Treating
// INDEXED or FAILED as terminal here would make the reset and retry edges
// uncompilable, which is exactly the bug this package exists to prevent.
package fsm

import (
	"fmt"

	"github.com/agilenature/filelifecycle/internal/domain/errkind"
	"github.com/agilenature/filelifecycle/internal/domain/fsmstate"
)

// Event names one of the eight legal transitions below. Events are the
// only vocabulary callers use to request a state change; there is no way
// to request an arbitrary (from, to) pair directly.
type Event string

const (
	StartUpload       Event = "start_upload"
	CompleteUpload    Event = "complete_upload"
	CompleteProcessing Event = "complete_processing"
	FailUpload        Event = "fail_upload"
	FailProcessing    Event = "fail_processing"
	Reset             Event = "reset"
	FailReset         Event = "fail_reset"
	Retry             Event = "retry"
)

type key struct {
	from  fsmstate.State
	event Event
}

// table is the fixed (from, event) -> to mapping. It is unexported so the
// only way to consult it is through Validate, keeping the package
// validation-only in spirit as well as in practice.
var table = map[key]fsmstate.State{
	{fsmstate.Untracked, StartUpload}:        fsmstate.Uploading,
	{fsmstate.Uploading, CompleteUpload}:     fsmstate.Processing,
	{fsmstate.Processing, CompleteProcessing}: fsmstate.Indexed,
	{fsmstate.Uploading, FailUpload}:         fsmstate.Failed,
	{fsmstate.Processing, FailProcessing}:    fsmstate.Failed,
	{fsmstate.Indexed, Reset}:                fsmstate.Untracked,
	{fsmstate.Indexed, FailReset}:            fsmstate.Failed,
	{fsmstate.Failed, Retry}:                 fsmstate.Untracked,
}

// Validate returns the resulting state for (from, event), or
// errkind.ErrIllegalTransition if the pair is not in the graph. It performs
// no I/O: callers are responsible for ensuring "from" reflects the row's
// actual current state before acting on the result.
func Validate(from fsmstate.State, event Event) (fsmstate.State, error) {
	to, ok := table[key{from, event}]
	if !ok {
		return "", fmt.Errorf("fsm: %s -(%s)-> ?: %w", from, event, errkind.ErrIllegalTransition)
	}
	return to, nil
}

// Events lists every event recognized by the table, for table-driven tests
// that want to assert every (state, event) pair not explicitly listed
// above returns ErrIllegalTransition.
func Events() []Event {
	return []Event{
		StartUpload, CompleteUpload, CompleteProcessing,
		FailUpload, FailProcessing, Reset, FailReset, Retry,
	}
}

// States lists every declared state, for the same exhaustive-test purpose.
func States() []fsmstate.State {
	return []fsmstate.State{
		fsmstate.Untracked, fsmstate.Uploading, fsmstate.Processing,
		fsmstate.Indexed, fsmstate.Failed,
	}
}
