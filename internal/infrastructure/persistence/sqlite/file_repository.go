package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agilenature/filelifecycle/internal/domain/filerecord"
)

// FileRepository is the read-only half of the files table access: Get,
// List, and the Snapshot re-read the orchestrator and recovery crawler use
// before retrying a transition. It never writes fsm_state; the sole
// authorized writer is TransitionRepository.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

const selectColumns = `
	file_path, content_hash, fsm_state, version,
	remote_raw_id, remote_store_doc_id,
	intent_kind, intent_started_at, intent_steps_done,
	failure_reason, fsm_updated_at,
	batch_run_id, last_error_code, ai_metadata_json
`

// Get returns the single row for filePath, or sql.ErrNoRows if absent.
func (r *FileRepository) Get(ctx context.Context, filePath string) (*filerecord.Record, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM files WHERE file_path = ?", filePath)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Snapshot is an alias for Get used at retry call sites, matching the
// vocabulary of "a fresh read is mandatory before retry" from the
// orchestrator's design.
func (r *FileRepository) Snapshot(ctx context.Context, filePath string) (*filerecord.Record, error) {
	return r.Get(ctx, filePath)
}

// ListByState returns every row in the given fsm_state, used by the
// recovery crawler's retry-failed pass and by the verifier for the count
// invariant.
func (r *FileRepository) ListByState(ctx context.Context, state string) ([]*filerecord.Record, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM files WHERE fsm_state = ?", state)
	if err != nil {
		return nil, fmt.Errorf("list by state: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ListWithIntent returns every row carrying a non-null intent_kind, the
// recovery crawler's single query.
func (r *FileRepository) ListWithIntent(ctx context.Context) ([]*filerecord.Record, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM files WHERE intent_kind IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("list with intent: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ListAll returns every row, used by the upload command to discover
// UNTRACKED candidates and by the verifier for no-stuck-transitions.
func (r *FileRepository) ListAll(ctx context.Context) ([]*filerecord.Record, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM files")
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// Upsert inserts a new UNTRACKED row. For an existing row it updates only
// content_hash, and only when the hash changed; the state columns are left
// untouched.
// This is the scanner's entry point into the engine (the scanner itself is
// an external collaborator; this method is the seam it calls through).
func (r *FileRepository) Upsert(ctx context.Context, filePath, contentHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO files (file_path, content_hash, fsm_state, version, fsm_updated_at)
		VALUES (?, ?, 'UNTRACKED', 0, CURRENT_TIMESTAMP)
		ON CONFLICT(file_path) DO UPDATE SET content_hash = excluded.content_hash
		WHERE files.content_hash != excluded.content_hash
	`, filePath, contentHash)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", filePath, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*filerecord.Record, error) {
	var rec filerecord.Record
	var intentKind sql.NullString
	var intentStartedAt sql.NullTime
	var intentStepsDone sql.NullInt64
	var remoteRawID, remoteStoreDocID, failureReason sql.NullString
	var batchRunID, lastErrorCode, aiMetadata sql.NullString

	if err := row.Scan(
		&rec.FilePath, &rec.ContentHash, &rec.State, &rec.Version,
		&remoteRawID, &remoteStoreDocID,
		&intentKind, &intentStartedAt, &intentStepsDone,
		&failureReason, &rec.FSMUpdatedAt,
		&batchRunID, &lastErrorCode, &aiMetadata,
	); err != nil {
		return nil, err
	}

	if remoteRawID.Valid {
		rec.RemoteRawID = &remoteRawID.String
	}
	if remoteStoreDocID.Valid {
		rec.RemoteStoreDocID = &remoteStoreDocID.String
	}
	if intentKind.Valid {
		ik := filerecord.IntentKind(intentKind.String)
		rec.IntentKind = &ik
	}
	if intentStartedAt.Valid {
		rec.IntentStartedAt = &intentStartedAt.Time
	}
	if intentStepsDone.Valid {
		v := int(intentStepsDone.Int64)
		rec.IntentStepsDone = &v
	}
	if failureReason.Valid {
		rec.FailureReason = &failureReason.String
	}
	if batchRunID.Valid {
		rec.BatchRunID = &batchRunID.String
	}
	if lastErrorCode.Valid {
		rec.LastErrorCode = &lastErrorCode.String
	}
	if aiMetadata.Valid {
		rec.AIMetadataJSON = &aiMetadata.String
	}

	return &rec, nil
}

func scanAll(rows *sql.Rows) ([]*filerecord.Record, error) {
	var out []*filerecord.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
