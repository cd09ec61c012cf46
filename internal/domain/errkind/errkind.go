// Package errkind declares the sentinel error values that every caller in
// this engine distinguishes with errors.Is/errors.As, following the error
// taxonomy of the error handling design: illegal transitions, OCC
// conflicts, the three remote-call tiers, and the intent-in-progress
// guard. No third-party error-wrapping library is used anywhere in this
// module, so plain errors/fmt.Errorf("...: %w", err) is the grounded
// choice here.
package errkind

import "errors"

var (
	// ErrIllegalTransition means the proposed (from, event) pair is not in
	// the FSM graph. Always a programming error; callers propagate it
	// rather than retry.
	ErrIllegalTransition = errors.New("errkind: illegal transition")

	// ErrOCCConflict means the expected version did not match the row at
	// UPDATE time: another writer won the race. During normal flow the
	// caller abandons the file for this batch; during finalize_reset the
	// caller must raise it explicitly rather than swallow it.
	ErrOCCConflict = errors.New("errkind: optimistic concurrency conflict")

	// ErrRemoteTransient is a retryable remote failure (429/5xx). The
	// remote client retries with backoff; exhaustion promotes the error
	// to ErrRemoteFatal.
	ErrRemoteTransient = errors.New("errkind: transient remote failure")

	// ErrRemoteFatal is a non-retryable remote failure. Transitions the
	// file to FAILED with the error's short form as failure_reason.
	ErrRemoteFatal = errors.New("errkind: fatal remote failure")

	// ErrRemoteNotFound is normalized to success by the idempotent-delete
	// wrappers in internal/infrastructure/remote, and otherwise propagated
	// by GetStoreDoc so the verifier can distinguish a ghost from a
	// stable document.
	ErrRemoteNotFound = errors.New("errkind: remote resource not found")

	// ErrIntentInProgress is raised when a caller attempts to start a new
	// transition on a row whose intent_kind is already non-null. The
	// caller must invoke recovery first.
	ErrIntentInProgress = errors.New("errkind: intent already in progress")

	// ErrConfig means an engine-level setup failure: the database is
	// unreachable, remote credentials are missing, or a configured remote
	// resource (bucket, store) does not exist. Distinct from a per-file
	// transition or remote error — callers abort the whole process with
	// exit code 2 for this instead of recording a per-file outcome.
	ErrConfig = errors.New("errkind: configuration error")
)

// Transient wraps err as ErrRemoteTransient.
func Transient(err error) error {
	return &wrapped{kind: ErrRemoteTransient, cause: err}
}

// Fatal wraps err as ErrRemoteFatal.
func Fatal(err error) error {
	return &wrapped{kind: ErrRemoteFatal, cause: err}
}

// NotFound wraps err as ErrRemoteNotFound.
func NotFound(err error) error {
	return &wrapped{kind: ErrRemoteNotFound, cause: err}
}

// Config wraps err as ErrConfig.
func Config(err error) error {
	return &wrapped{kind: ErrConfig, cause: err}
}

type wrapped struct {
	kind  error
	cause error
}

func (w *wrapped) Error() string {
	if w.cause == nil {
		return w.kind.Error()
	}
	return w.kind.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.kind, w.cause}
}

// ShortCode returns the short error-kind tag stored in the files table's
// last_error_code column, or "" if err does not match a known kind.
func ShortCode(err error) string {
	switch {
	case errors.Is(err, ErrIllegalTransition):
		return "IllegalTransition"
	case errors.Is(err, ErrOCCConflict):
		return "OCCConflict"
	case errors.Is(err, ErrRemoteTransient):
		return "RemoteTransient"
	case errors.Is(err, ErrRemoteFatal):
		return "RemoteFatal"
	case errors.Is(err, ErrRemoteNotFound):
		return "RemoteNotFound"
	case errors.Is(err, ErrIntentInProgress):
		return "IntentInProgress"
	default:
		return ""
	}
}
