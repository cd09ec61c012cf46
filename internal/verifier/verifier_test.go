package verifier

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agilenature/filelifecycle/internal/domain/errkind"
	"github.com/agilenature/filelifecycle/internal/domain/filerecord"
	"github.com/agilenature/filelifecycle/internal/infrastructure/remote"
)

type fakeFiles struct {
	all []*filerecord.Record
}

func (f *fakeFiles) ListAll(ctx context.Context) ([]*filerecord.Record, error) {
	return f.all, nil
}

func (f *fakeFiles) ListByState(ctx context.Context, state string) ([]*filerecord.Record, error) {
	var out []*filerecord.Record
	for _, r := range f.all {
		if r.State == state {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeRemote struct {
	docs      []remote.StoreDoc
	citations []remote.Citation
	missing   map[string]bool
}

func (f *fakeRemote) ListStoreDocs(ctx context.Context) ([]remote.StoreDoc, error) {
	return f.docs, nil
}

func (f *fakeRemote) GetStoreDoc(ctx context.Context, name string) (remote.StoreDoc, error) {
	if f.missing[name] {
		return remote.StoreDoc{}, errkind.NotFound(errors.New("not found: " + name))
	}
	for _, d := range f.docs {
		if d.Name == name {
			return d, nil
		}
	}
	return remote.StoreDoc{}, errkind.NotFound(errors.New("not found: " + name))
}

func (f *fakeRemote) Search(ctx context.Context, query string, topK int) ([]remote.Citation, error) {
	return f.citations, nil
}

func indexedRecord(path, docID string) *filerecord.Record {
	return &filerecord.Record{
		FilePath:         path,
		State:            "INDEXED",
		Version:          1,
		RemoteStoreDocID: filerecord.StrPtr(docID),
		FSMUpdatedAt:     time.Now().UTC(),
	}
}

func TestVerifier_AllPass(t *testing.T) {
	ctx := context.Background()
	files := &fakeFiles{all: []*filerecord.Record{
		indexedRecord("/a.md", "doc-a"),
		indexedRecord("/b.md", "doc-b"),
	}}
	rem := &fakeRemote{
		docs:      []remote.StoreDoc{{Name: "doc-a"}, {Name: "doc-b"}},
		citations: []remote.Citation{{StoreDocID: "doc-a", Score: 0.9}, {StoreDocID: "doc-b", Score: 0.8}},
		missing:   map[string]bool{},
	}
	v := &Verifier{Files: files, Remote: rem}

	report, err := v.Run(ctx, Options{SearchQuery: "invoice"})
	require.NoError(t, err)
	require.True(t, report.AllPassed())
	require.Equal(t, 0, report.ExitCode())
}

func TestVerifier_CountInvariant_Fails_OnOrphan(t *testing.T) {
	ctx := context.Background()
	files := &fakeFiles{all: []*filerecord.Record{
		indexedRecord("/a.md", "doc-a"),
	}}
	rem := &fakeRemote{
		docs:    []remote.StoreDoc{{Name: "doc-a"}, {Name: "doc-orphan"}},
		missing: map[string]bool{},
	}
	v := &Verifier{Files: files, Remote: rem}

	report, err := v.Run(ctx, Options{})
	require.NoError(t, err)
	require.False(t, report.AllPassed())
	require.Equal(t, 1, report.ExitCode())

	byName := map[string]Assertion{}
	for _, a := range report.Assertions {
		byName[a.Name] = a
	}
	require.False(t, byName["count_invariant"].Passed)
	require.False(t, byName["no_orphans"].Passed)
	require.True(t, byName["no_ghosts"].Passed)
}

func TestVerifier_NoGhosts_Fails_OnMissingRemote(t *testing.T) {
	ctx := context.Background()
	files := &fakeFiles{all: []*filerecord.Record{
		indexedRecord("/a.md", "doc-a"),
	}}
	rem := &fakeRemote{
		docs:    []remote.StoreDoc{{Name: "doc-a"}},
		missing: map[string]bool{"doc-a": true},
	}
	v := &Verifier{Files: files, Remote: rem}

	report, err := v.Run(ctx, Options{})
	require.NoError(t, err)
	require.False(t, report.AllPassed())

	var ghosts Assertion
	for _, a := range report.Assertions {
		if a.Name == "no_ghosts" {
			ghosts = a
		}
	}
	require.False(t, ghosts.Passed)
}

func TestVerifier_NoStuckTransitions_Fails_OnStaleUploading(t *testing.T) {
	ctx := context.Background()
	stale := &filerecord.Record{
		FilePath:     "/stuck.md",
		State:        "UPLOADING",
		FSMUpdatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	files := &fakeFiles{all: []*filerecord.Record{stale}}
	rem := &fakeRemote{}
	v := &Verifier{Files: files, Remote: rem}

	report, err := v.Run(ctx, Options{StuckThreshold: time.Hour})
	require.NoError(t, err)

	var stuck Assertion
	for _, a := range report.Assertions {
		if a.Name == "no_stuck_transitions" {
			stuck = a
		}
	}
	require.False(t, stuck.Passed)
	require.Contains(t, stuck.Detail, "/stuck.md")
}

func TestVerifier_CitationResolution_Fails_OnUnknownCitation(t *testing.T) {
	ctx := context.Background()
	files := &fakeFiles{all: []*filerecord.Record{
		indexedRecord("/a.md", "doc-a"),
	}}
	rem := &fakeRemote{
		docs:      []remote.StoreDoc{{Name: "doc-a"}},
		citations: []remote.Citation{{StoreDocID: "doc-unrelated"}},
	}
	v := &Verifier{Files: files, Remote: rem}

	report, err := v.Run(ctx, Options{SearchQuery: "invoice"})
	require.NoError(t, err)

	var resolution Assertion
	for _, a := range report.Assertions {
		if a.Name == "citation_resolution" {
			resolution = a
		}
	}
	require.False(t, resolution.Passed)
}

func TestVerifier_PerFileSearchability_ToleratesDeclaredCategory(t *testing.T) {
	ctx := context.Background()
	rec := indexedRecord("/series/ep-001.md", "doc-ep1")
	files := &fakeFiles{all: []*filerecord.Record{rec}}
	rem := &fakeRemote{
		docs:      []remote.StoreDoc{{Name: "doc-ep1"}},
		citations: nil, // search never returns the file
	}
	v := &Verifier{Files: files, Remote: rem}

	tolerance := CategoryTolerance{
		"series": Tolerance{MissAllowed: true, Reason: "sequential episode numbers are not semantically distinct"},
	}
	report, err := v.Run(ctx, Options{SampleSize: 1, TopM: 3, CategoryTolerance: tolerance})
	require.NoError(t, err)

	var searchability Assertion
	for _, a := range report.Assertions {
		if a.Name == "per_file_searchability" {
			searchability = a
		}
	}
	require.True(t, searchability.Passed)
	require.Contains(t, searchability.Detail, "series")
}

func TestLoadCategoryTolerance_MissingFileIsEmpty(t *testing.T) {
	tol, err := LoadCategoryTolerance("/does/not/exist.yaml")
	require.NoError(t, err)
	require.Empty(t, tol)
}

func TestLoadCategoryTolerance_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/tolerance.yaml"
	content := []byte("categories:\n  podcasts:\n    miss_allowed: true\n    reason: sequential episode numbers\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	tol, err := LoadCategoryTolerance(path)
	require.NoError(t, err)
	require.True(t, tol.For("podcasts").MissAllowed)
	require.False(t, tol.For("invoices").MissAllowed)
}
