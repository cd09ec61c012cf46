package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/agilenature/filelifecycle/internal/domain/errkind"
)

// FakeSDK is a direct in-memory implementation of SDK, used by
// orchestrator, recovery, and CLI tests that want to exercise the
// full upload/reset/verify flow without any AWS dependency. It implements
// the same two-resource, exact-match-identity contract as S3SDK.
type FakeSDK struct {
	mu sync.Mutex

	raw   map[string]rawFile
	store map[string]StoreDoc

	// Injected failure hooks let tests simulate transient/fatal errors and
	// timed-out operations at specific call sites.
	FailUploadRaw       error
	FailImportToStore    error
	PollNeverCompletes  bool
}

type rawFile struct {
	displayName string
	content     []byte
}

func NewFakeSDK() *FakeSDK {
	return &FakeSDK{
		raw:   make(map[string]rawFile),
		store: make(map[string]StoreDoc),
	}
}

func (f *FakeSDK) UploadRaw(ctx context.Context, displayName string, content []byte) (string, string, error) {
	if f.FailUploadRaw != nil {
		return "", "", f.FailUploadRaw
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.raw[id] = rawFile{displayName: displayName, content: content}
	return id, "fake://raw/" + id, nil
}

func (f *FakeSDK) ImportToStore(ctx context.Context, rawID string) (string, error) {
	if f.FailImportToStore != nil {
		return "", f.FailImportToStore
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.raw[rawID]
	if !ok {
		return "", errkind.NotFound(fmt.Errorf("import_to_store: raw %s absent", rawID))
	}
	suffix := uuid.NewString()[:8]
	name := rawID + "-" + suffix
	f.store[name] = StoreDoc{Name: name, DisplayName: raw.displayName}
	return name, nil
}

func (f *FakeSDK) PollOperation(ctx context.Context, operationHandle string) (PollResult, error) {
	if f.PollNeverCompletes {
		return PollResult{Done: false}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.store[operationHandle]; !ok {
		return PollResult{Done: false}, nil
	}
	return PollResult{Done: true, StoreDocID: operationHandle}, nil
}

func (f *FakeSDK) ListStoreDocs(ctx context.Context) ([]StoreDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StoreDoc, 0, len(f.store))
	for _, d := range f.store {
		out = append(out, d)
	}
	return out, nil
}

func (f *FakeSDK) GetStoreDoc(ctx context.Context, name string) (StoreDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.store[name]
	if !ok {
		return StoreDoc{}, errkind.NotFound(fmt.Errorf("get_store_doc: %s", name))
	}
	return d, nil
}

func (f *FakeSDK) DeleteStoreDoc(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.store[name]; !ok {
		return errkind.NotFound(fmt.Errorf("delete_store_doc: %s", name))
	}
	delete(f.store, name)
	return nil
}

func (f *FakeSDK) DeleteRaw(ctx context.Context, rawID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.raw[rawID]; !ok {
		return errkind.NotFound(fmt.Errorf("delete_raw: %s", rawID))
	}
	delete(f.raw, rawID)
	return nil
}

func (f *FakeSDK) Search(ctx context.Context, query string, topK int) ([]Citation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Citation
	q := strings.ToLower(query)
	for _, d := range f.store {
		if strings.Contains(strings.ToLower(d.DisplayName), q) {
			out = append(out, Citation{StoreDocID: d.Name, Score: 1.0})
		}
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

// StoreDocCount is a test helper.
func (f *FakeSDK) StoreDocCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.store)
}
