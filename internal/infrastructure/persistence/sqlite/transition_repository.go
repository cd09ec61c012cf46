package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agilenature/filelifecycle/internal/domain/errkind"
	"github.com/agilenature/filelifecycle/internal/domain/filerecord"
	"github.com/agilenature/filelifecycle/internal/domain/fsm"
	"github.com/agilenature/filelifecycle/internal/domain/fsmstate"
)

// TransitionRepository is the sole authorized writer of the files table's
// state columns. Every method here validates the proposed transition
// against fsm.Validate, issues exactly one OCC-guarded UPDATE, and returns
// errkind.ErrOCCConflict on a zero-row result. No method opens a
// transaction, and no method is ever called with a remote call still
// outstanding: callers complete the remote call first, then call here.
type TransitionRepository struct {
	db    *sql.DB
	clock filerecord.Clock
}

func NewTransitionRepository(db *sql.DB, clock filerecord.Clock) *TransitionRepository {
	if clock == nil {
		clock = filerecord.SystemClock{}
	}
	return &TransitionRepository{db: db, clock: clock}
}

// exec runs a single OCC-guarded UPDATE and normalizes the zero-rows case
// to errkind.ErrOCCConflict. It is the one place RowsAffected is checked,
// so every transition method shares identical conflict semantics.
func (r *TransitionRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if n == 0 {
		return errkind.ErrOCCConflict
	}
	return nil
}

func (r *TransitionRepository) validate(from fsmstate.State, event fsm.Event) (fsmstate.State, error) {
	return fsm.Validate(from, event)
}

// StartUpload: UNTRACKED -> UPLOADING.
func (r *TransitionRepository) StartUpload(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State) error {
	to, err := r.validate(from, fsm.StartUpload)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE files SET fsm_state = ?, version = version + 1, fsm_updated_at = ?
		WHERE file_path = ? AND version = ?`,
		to, r.clock.Now(), filePath, expectedVersion,
	)
}

// CompleteUpload: UPLOADING -> PROCESSING, recording remote_raw_id.
func (r *TransitionRepository) CompleteUpload(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, remoteRawID string) error {
	to, err := r.validate(from, fsm.CompleteUpload)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE files SET fsm_state = ?, remote_raw_id = ?, version = version + 1, fsm_updated_at = ?
		WHERE file_path = ? AND version = ?`,
		to, remoteRawID, r.clock.Now(), filePath, expectedVersion,
	)
}

// CompleteProcessing: PROCESSING -> INDEXED, recording remote_store_doc_id.
func (r *TransitionRepository) CompleteProcessing(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, remoteStoreDocID string) error {
	to, err := r.validate(from, fsm.CompleteProcessing)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE files SET fsm_state = ?, remote_store_doc_id = ?, version = version + 1, fsm_updated_at = ?
		WHERE file_path = ? AND version = ?`,
		to, remoteStoreDocID, r.clock.Now(), filePath, expectedVersion,
	)
}

// FailUpload: UPLOADING -> FAILED, recording failure_reason.
func (r *TransitionRepository) FailUpload(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, reason string, errCode string) error {
	return r.fail(ctx, filePath, expectedVersion, from, fsm.FailUpload, reason, errCode)
}

// FailProcessing: PROCESSING -> FAILED, recording failure_reason.
func (r *TransitionRepository) FailProcessing(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, reason string, errCode string) error {
	return r.fail(ctx, filePath, expectedVersion, from, fsm.FailProcessing, reason, errCode)
}

// FailReset: INDEXED -> FAILED, recording failure_reason. Also clears the
// in-progress reset intent, since FAILED rows must have a null intent_kind
// per the data model's invariant 3.
func (r *TransitionRepository) FailReset(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, reason string, errCode string) error {
	to, err := r.validate(from, fsm.FailReset)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE files SET fsm_state = ?, failure_reason = ?, last_error_code = ?,
			intent_kind = NULL, intent_started_at = NULL, intent_steps_done = NULL,
			version = version + 1, fsm_updated_at = ?
		WHERE file_path = ? AND version = ?`,
		to, reason, errCode, r.clock.Now(), filePath, expectedVersion,
	)
}

func (r *TransitionRepository) fail(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, event fsm.Event, reason, errCode string) error {
	to, err := r.validate(from, event)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE files SET fsm_state = ?, failure_reason = ?, last_error_code = ?, version = version + 1, fsm_updated_at = ?
		WHERE file_path = ? AND version = ?`,
		to, reason, errCode, r.clock.Now(), filePath, expectedVersion,
	)
}

// Retry: FAILED -> UNTRACKED, clearing all remote/intent fields. This is
// the single FAILED escape named in the external interfaces section: the
// only write site outside the eight transition methods, and it exists
// because the data model calls it out explicitly as a separate on-demand
// command rather than a transition triggered by the orchestrator itself.
func (r *TransitionRepository) Retry(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State) error {
	to, err := r.validate(from, fsm.Retry)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE files SET fsm_state = ?,
			remote_raw_id = NULL, remote_store_doc_id = NULL,
			intent_kind = NULL, intent_started_at = NULL, intent_steps_done = NULL,
			failure_reason = NULL, last_error_code = NULL,
			version = version + 1, fsm_updated_at = ?
		WHERE file_path = ? AND version = ?`,
		to, r.clock.Now(), filePath, expectedVersion,
	)
}

// WriteResetIntent records intent_kind=RESET, intent_started_at=now,
// intent_steps_done=0, WITHOUT incrementing version, OCC-guarded on the
// current (INDEXED, version) pair. The intent itself becomes the
// concurrency token for the remainder of the reset flow.
func (r *TransitionRepository) WriteResetIntent(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State) error {
	// Reset is validated the same way as the finalize transition: the
	// intent is only legal to start from the state that finalize_reset's
	// event would also accept.
	if _, err := r.validate(from, fsm.Reset); err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE files SET intent_kind = ?, intent_started_at = ?, intent_steps_done = 0
		WHERE file_path = ? AND version = ? AND intent_kind IS NULL`,
		filerecord.IntentReset, r.clock.Now(), filePath, expectedVersion,
	)
}

// BumpIntentProgress advances intent_steps_done. Unversioned: the intent
// record itself, not the row version, is the concurrency token during
// compensation, matching the reset flow's write-ahead protocol.
func (r *TransitionRepository) BumpIntentProgress(ctx context.Context, filePath string, stepsDone int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE files SET intent_steps_done = ?
		WHERE file_path = ? AND intent_kind IS NOT NULL`,
		stepsDone, filePath,
	)
	if err != nil {
		return fmt.Errorf("bump intent progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump intent progress rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bump intent progress: no row with an open intent for %s", filePath)
	}
	return nil
}

// FinalizeReset transitions INDEXED -> UNTRACKED, clears remote
// identifiers and intent columns, and bumps version. OCC-guarded on
// expectedVersion — the version captured when the intent was written, per
// §4.3's crash-recovery semantics. Returns errkind.ErrOCCConflict (rather
// than a bool) so the recovery crawler can treat it uniformly with every
// other transition's conflict handling.
func (r *TransitionRepository) FinalizeReset(ctx context.Context, filePath string, expectedVersion int64) error {
	return r.exec(ctx, `
		UPDATE files SET fsm_state = ?,
			remote_raw_id = NULL, remote_store_doc_id = NULL,
			intent_kind = NULL, intent_started_at = NULL, intent_steps_done = NULL,
			version = version + 1, fsm_updated_at = ?
		WHERE file_path = ? AND version = ? AND fsm_state = ?`,
		fsmstate.Untracked, r.clock.Now(), filePath, expectedVersion, fsmstate.Indexed,
	)
}
