// Package orchestrator drives batches of files through the FSM: the
// normal upload flow (steps 1-8 of the component design) and the
// reset/re-upload flow for files that are already INDEXED. It owns no
// durable state of its own — every write goes through a TransitionWriter,
// every remote call through a RemoteClient — and holds no transaction
// across a remote call, per the concurrency model's absolute rule.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agilenature/filelifecycle/internal/app"
	"github.com/agilenature/filelifecycle/internal/domain/errkind"
	"github.com/agilenature/filelifecycle/internal/domain/filerecord"
	"github.com/agilenature/filelifecycle/internal/domain/fsmstate"
	"github.com/agilenature/filelifecycle/internal/infrastructure/remote"
)

// TransitionWriter is the narrow surface the orchestrator needs from the
// sole authorized state-column writer. sqlite.TransitionRepository
// satisfies this interface structurally.
type TransitionWriter interface {
	StartUpload(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State) error
	CompleteUpload(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, remoteRawID string) error
	CompleteProcessing(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, remoteStoreDocID string) error
	FailUpload(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, reason, errCode string) error
	FailProcessing(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, reason, errCode string) error
	FailReset(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State, reason, errCode string) error
	Retry(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State) error
	WriteResetIntent(ctx context.Context, filePath string, expectedVersion int64, from fsmstate.State) error
	BumpIntentProgress(ctx context.Context, filePath string, stepsDone int) error
	FinalizeReset(ctx context.Context, filePath string, expectedVersion int64) error
}

// FileReader is the narrow read surface. sqlite.FileRepository satisfies
// this structurally.
type FileReader interface {
	Get(ctx context.Context, filePath string) (*filerecord.Record, error)
	Snapshot(ctx context.Context, filePath string) (*filerecord.Record, error)
	ListAll(ctx context.Context) ([]*filerecord.Record, error)
}

// RemoteClient is the narrow remote surface. remote.Client satisfies this
// structurally.
type RemoteClient interface {
	UploadRaw(ctx context.Context, displayName string, content []byte) (rawID, uri string, err error)
	ImportToStore(ctx context.Context, rawID string) (handle string, err error)
	PollOperation(ctx context.Context, handle string) (remote.PollResult, error)
	DeleteStoreDoc(ctx context.Context, name string) error
	DeleteRaw(ctx context.Context, rawID string) error
	FindStoreDocForRaw(ctx context.Context, rawID string) (remote.StoreDoc, error)
}

// LocalFS reads a candidate file's raw bytes from disk. Satisfied by
// afero.Afero, so tests can swap in afero.NewMemMapFs() without touching
// the real filesystem.
type LocalFS interface {
	ReadFile(path string) ([]byte, error)
}

// Options configures a single upload batch, matching the `upload` command
// surface 1:1.
type Options struct {
	Limit         int
	BatchSize     int
	Concurrency   int
	ResetExisting bool

	PollInterval  time.Duration
	SoftDeadline  time.Duration
	HardDeadline  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.SoftDeadline <= 0 {
		o.SoftDeadline = 30 * time.Second
	}
	if o.HardDeadline <= 0 {
		o.HardDeadline = 2 * time.Minute
	}
	return o
}

// FileOutcome records what happened to one file during a batch, the unit
// the CLI prints in its summary.
type FileOutcome struct {
	FilePath string
	Final    fsmstate.State
	Reason   string
}

// BatchSummary is the orchestrator's batch-level report. BatchRunID is a
// ULID identifying this run in the summary and in the CLI's batch history;
// it is not written to the files table's batch_run_id column.
type BatchSummary struct {
	BatchRunID string
	Indexed    int
	Failed     int
	Skipped    int
	Outcomes   []FileOutcome
}

// Orchestrator drives batches of files concurrently through the FSM.
type Orchestrator struct {
	Transitions TransitionWriter
	Files       FileReader
	Remote      RemoteClient
	FS          LocalFS
	Logger      app.Logger
}

// RunBatch selects UNTRACKED candidates (and, if ResetExisting, INDEXED
// files due for re-upload), then drives each through the FSM with bounded
// parallelism. Per-file errors never abort the batch; they are recorded
// and reported in the returned summary.
func (o *Orchestrator) RunBatch(ctx context.Context, opts Options) (*BatchSummary, error) {
	opts = opts.withDefaults()
	all, err := o.Files.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list files: %w", err)
	}

	var candidates []*filerecord.Record
	for _, rec := range all {
		switch fsmstate.State(rec.State) {
		case fsmstate.Untracked:
			candidates = append(candidates, rec)
		case fsmstate.Indexed:
			if opts.ResetExisting {
				candidates = append(candidates, rec)
			}
		}
		if opts.Limit > 0 && len(candidates) >= opts.Limit {
			break
		}
	}

	summary := &BatchSummary{BatchRunID: ulid.Make().String()}
	sem := make(chan struct{}, opts.Concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, rec := range candidates {
		rec := rec
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := o.processOne(ctx, rec, opts)

			mu.Lock()
			defer mu.Unlock()
			summary.Outcomes = append(summary.Outcomes, outcome)
			switch outcome.Final {
			case fsmstate.Indexed:
				summary.Indexed++
			case fsmstate.Failed:
				summary.Failed++
			default:
				summary.Skipped++
			}
		}()
	}
	wg.Wait()

	return summary, nil
}

func (o *Orchestrator) processOne(ctx context.Context, rec *filerecord.Record, opts Options) FileOutcome {
	if rec.HasIntent() {
		return FileOutcome{FilePath: rec.FilePath, Final: fsmstate.State(rec.State), Reason: errkind.ErrIntentInProgress.Error()}
	}

	state := fsmstate.State(rec.State)
	version := rec.Version

	if state == fsmstate.Indexed {
		if err := o.resetFile(ctx, rec.FilePath, version, rec.RemoteStoreDocID, rec.RemoteRawID); err != nil {
			return FileOutcome{FilePath: rec.FilePath, Final: fsmstate.Indexed, Reason: err.Error()}
		}
		state = fsmstate.Untracked
		version++
	}

	return o.uploadOne(ctx, rec.FilePath, version, state, opts)
}

func (o *Orchestrator) uploadOne(ctx context.Context, filePath string, version int64, state fsmstate.State, opts Options) FileOutcome {
	if err := o.Transitions.StartUpload(ctx, filePath, version, state); err != nil {
		return FileOutcome{FilePath: filePath, Final: state, Reason: err.Error()}
	}
	version++
	state = fsmstate.Uploading

	content, err := o.FS.ReadFile(filePath)
	if err != nil {
		o.failUpload(ctx, filePath, version, "read local file: "+err.Error())
		return FileOutcome{FilePath: filePath, Final: fsmstate.Failed, Reason: err.Error()}
	}

	displayName := remote.SanitizeDisplayName(baseName(filePath))
	rawID, _, err := o.Remote.UploadRaw(ctx, displayName, content)
	if err != nil {
		o.failUpload(ctx, filePath, version, err.Error())
		return FileOutcome{FilePath: filePath, Final: fsmstate.Failed, Reason: err.Error()}
	}

	handle, err := o.Remote.ImportToStore(ctx, rawID)
	if err != nil {
		o.failUpload(ctx, filePath, version, err.Error())
		return FileOutcome{FilePath: filePath, Final: fsmstate.Failed, Reason: err.Error()}
	}

	if err := o.Transitions.CompleteUpload(ctx, filePath, version, state, rawID); err != nil {
		return FileOutcome{FilePath: filePath, Final: state, Reason: err.Error()}
	}
	version++
	state = fsmstate.Processing

	storeDocID, err := o.pollUntilComplete(ctx, handle, rawID, opts)
	if err != nil {
		o.failProcessing(ctx, filePath, version, err.Error())
		return FileOutcome{FilePath: filePath, Final: fsmstate.Failed, Reason: err.Error()}
	}

	if err := o.Transitions.CompleteProcessing(ctx, filePath, version, state, storeDocID); err != nil {
		return FileOutcome{FilePath: filePath, Final: state, Reason: err.Error()}
	}

	return FileOutcome{FilePath: filePath, Final: fsmstate.Indexed}
}

func (o *Orchestrator) failUpload(ctx context.Context, filePath string, version int64, reason string) {
	if err := o.Transitions.FailUpload(ctx, filePath, version, fsmstate.Uploading, reason, shortCode(reason)); err != nil && o.Logger != nil {
		o.Logger.Error("fail_upload transition failed for %s: %v", filePath, err)
	}
}

func (o *Orchestrator) failProcessing(ctx context.Context, filePath string, version int64, reason string) {
	if err := o.Transitions.FailProcessing(ctx, filePath, version, fsmstate.Processing, reason, shortCode(reason)); err != nil && o.Logger != nil {
		o.Logger.Error("fail_processing transition failed for %s: %v", filePath, err)
	}
}

func shortCode(reason string) string {
	switch {
	case strings.Contains(reason, errkind.ErrRemoteFatal.Error()):
		return "RemoteFatal"
	case strings.Contains(reason, "processing timeout"):
		return "ProcessingTimeout"
	default:
		return ""
	}
}

// pollUntilComplete implements the cancellation/timeout model of the
// concurrency design: poll on an interval until the soft deadline, then
// fall back to listing the store and searching for the expected document;
// if still not found by the hard deadline, report a processing timeout.
func (o *Orchestrator) pollUntilComplete(ctx context.Context, handle, rawID string, opts Options) (string, error) {
	start := time.Now()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		res, err := o.Remote.PollOperation(ctx, handle)
		if err != nil {
			return "", err
		}
		if res.Done {
			if res.StoreDocID != "" {
				return res.StoreDocID, nil
			}
			if v, ok := res.RawPayload["store_doc_id"].(string); ok && v != "" {
				return v, nil
			}
		}

		elapsed := time.Since(start)
		if elapsed > opts.SoftDeadline {
			if doc, err := o.Remote.FindStoreDocForRaw(ctx, rawID); err == nil {
				return doc.Name, nil
			}
		}
		if elapsed > opts.HardDeadline {
			return "", fmt.Errorf("processing timeout")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// resetFile implements the reset/re-upload flow's write-ahead protocol.
// The ordering is structural: DeleteRaw can never execute before
// DeleteStoreDoc has returned (successfully or not-found).
func (o *Orchestrator) resetFile(ctx context.Context, filePath string, version int64, storeDocID, rawID *string) error {
	if err := o.Transitions.WriteResetIntent(ctx, filePath, version, fsmstate.Indexed); err != nil {
		return fmt.Errorf("write_reset_intent: %w", err)
	}

	if storeDocID != nil {
		if err := o.Remote.DeleteStoreDoc(ctx, *storeDocID); err != nil {
			_ = o.Transitions.FailReset(ctx, filePath, version, fsmstate.Indexed, err.Error(), errkind.ShortCode(err))
			return fmt.Errorf("delete_store_doc: %w", err)
		}
	}
	if err := o.Transitions.BumpIntentProgress(ctx, filePath, 1); err != nil {
		return fmt.Errorf("bump_intent_progress(1): %w", err)
	}

	if rawID != nil {
		if err := o.Remote.DeleteRaw(ctx, *rawID); err != nil {
			_ = o.Transitions.FailReset(ctx, filePath, version, fsmstate.Indexed, err.Error(), errkind.ShortCode(err))
			return fmt.Errorf("delete_raw: %w", err)
		}
	}
	if err := o.Transitions.BumpIntentProgress(ctx, filePath, 2); err != nil {
		return fmt.Errorf("bump_intent_progress(2): %w", err)
	}

	if err := o.Transitions.FinalizeReset(ctx, filePath, version); err != nil {
		return fmt.Errorf("finalize_reset: %w", err)
	}
	return nil
}

func baseName(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return path
	}
	return path[i+1:]
}
