// Package recovery implements the startup/on-demand crawler that resumes
// interrupted write-ahead intents and the separate on-demand FAILED
// escape. It never aborts on the first error: per-file OCC conflicts
// during finalize are logged and the crawler proceeds to the next row.
package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/agilenature/filelifecycle/internal/app"
	"github.com/agilenature/filelifecycle/internal/domain/errkind"
	"github.com/agilenature/filelifecycle/internal/domain/filerecord"
	"github.com/agilenature/filelifecycle/internal/domain/fsmstate"
)

// TransitionWriter is the subset of sqlite.TransitionRepository the
// crawler needs to complete a reset's remaining compensation steps.
type TransitionWriter interface {
	BumpIntentProgress(ctx context.Context, filePath string, stepsDone int) error
	FinalizeReset(ctx context.Context, filePath string, expectedVersion int64) error
	FailReset(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, reason, errCode string) error
	Retry(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State) error
}

// FileReader is the subset of sqlite.FileRepository the crawler needs.
type FileReader interface {
	ListWithIntent(ctx context.Context) ([]*filerecord.Record, error)
	ListByState(ctx context.Context, state string) ([]*filerecord.Record, error)
}

// RemoteClient is the subset of remote.Client the crawler needs to replay
// the two deletes of a reset intent.
type RemoteClient interface {
	DeleteStoreDoc(ctx context.Context, name string) error
	DeleteRaw(ctx context.Context, rawID string) error
}

// Report is the crawler's per-run outcome: how many intents were resumed,
// how many OCC conflicts were raised (and for which files), so the CLI can
// print a summary without the crawler itself aborting on the first
// conflict.
type Report struct {
	Resumed      int
	OCCConflicts []string
}

// Crawler resumes write-ahead intents left behind by a crash and, on
// demand, escapes FAILED rows back to UNTRACKED.
type Crawler struct {
	Transitions TransitionWriter
	Files       FileReader
	Remote      RemoteClient
	Logger      app.Logger
}

// Run scans every row with a non-null intent_kind and resumes compensation
// from the first incomplete step. Re-running Run on an empty intent set is
// a no-op.
func (c *Crawler) Run(ctx context.Context) (*Report, error) {
	rows, err := c.Files.ListWithIntent(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovery: list intents: %w", err)
	}

	report := &Report{}
	for _, rec := range rows {
		if err := c.resumeReset(ctx, rec); err != nil {
			if errors.Is(err, errkind.ErrOCCConflict) {
				report.OCCConflicts = append(report.OCCConflicts, rec.FilePath)
				if c.Logger != nil {
					c.Logger.Warn("recovery: OCC conflict finalizing reset for %s, will retry next pass", rec.FilePath)
				}
				continue
			}
			if c.Logger != nil {
				c.Logger.Error("recovery: failed to resume reset for %s: %v", rec.FilePath, err)
			}
			continue
		}
		report.Resumed++
	}
	return report, nil
}

// resumeReset replays the remaining steps of a RESET intent based on
// intent_steps_done, per the crash-recovery semantics in the reset flow:
// steps_done=0 resumes from delete_store_doc, steps_done=1 resumes from
// delete_raw, steps_done=2 only needs finalize.
func (c *Crawler) resumeReset(ctx context.Context, rec *filerecord.Record) error {
	stepsDone := rec.StepsDone()

	if stepsDone < 1 {
		if rec.RemoteStoreDocID != nil {
			if err := c.Remote.DeleteStoreDoc(ctx, *rec.RemoteStoreDocID); err != nil {
				return fmt.Errorf("delete_store_doc: %w", err)
			}
		}
		if err := c.Transitions.BumpIntentProgress(ctx, rec.FilePath, 1); err != nil {
			return fmt.Errorf("bump_intent_progress(1): %w", err)
		}
	}

	if stepsDone < 2 {
		if rec.RemoteRawID != nil {
			if err := c.Remote.DeleteRaw(ctx, *rec.RemoteRawID); err != nil {
				return fmt.Errorf("delete_raw: %w", err)
			}
		}
		if err := c.Transitions.BumpIntentProgress(ctx, rec.FilePath, 2); err != nil {
			return fmt.Errorf("bump_intent_progress(2): %w", err)
		}
	}

	if err := c.Transitions.FinalizeReset(ctx, rec.FilePath, rec.Version); err != nil {
		return fmt.Errorf("finalize_reset: %w", err)
	}
	return nil
}

// RetryFailed moves every FAILED row to UNTRACKED so it re-enters the
// normal upload flow at the next batch. This is the single on-demand
// escape named in the error handling design: there is no silent
// auto-retry for FAILED, because that would mask permanent errors like
// expired credentials or exhausted quota.
func (c *Crawler) RetryFailed(ctx context.Context) (int, error) {
	rows, err := c.Files.ListByState(ctx, string(fsmstate.Failed))
	if err != nil {
		return 0, fmt.Errorf("recovery: list failed: %w", err)
	}
	n := 0
	for _, rec := range rows {
		if err := c.Transitions.Retry(ctx, rec.FilePath, rec.Version, fsmstate.Failed); err != nil {
			if c.Logger != nil {
				c.Logger.Warn("recovery: retry_failed skipped %s: %v", rec.FilePath, err)
			}
			continue
		}
		n++
	}
	return n, nil
}
