// Package verifier implements the temporal stability verifier: an
// out-of-process check that reads the database, enumerates remote store
// documents, and asserts a fixed set of bidirectional invariants. All
// seven assertions are evaluated independently; a failure in any one
// downgrades the run to exit code 1, never silently swallowed.
package verifier

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/agilenature/filelifecycle/internal/domain/errkind"
	"github.com/agilenature/filelifecycle/internal/domain/filerecord"
	"github.com/agilenature/filelifecycle/internal/domain/fsmstate"
	"github.com/agilenature/filelifecycle/internal/infrastructure/remote"
)

// ErrConfig signals a configuration error such as a named store that does
// not exist remotely, distinct from an assertion failure. The
// verify-stability command maps this to exit code 2, assertion failures to
// exit code 1. It is the
// same sentinel errkind.ErrConfig uses everywhere else in the engine, so
// errors.Is(err, ErrConfig) matches regardless of which layer raised it.
var ErrConfig = errkind.ErrConfig

// FileReader is the subset of sqlite.FileRepository the verifier needs.
type FileReader interface {
	ListAll(ctx context.Context) ([]*filerecord.Record, error)
	ListByState(ctx context.Context, state string) ([]*filerecord.Record, error)
}

// RemoteClient is the subset of remote.Client the verifier needs.
type RemoteClient interface {
	ListStoreDocs(ctx context.Context) ([]remote.StoreDoc, error)
	GetStoreDoc(ctx context.Context, name string) (remote.StoreDoc, error)
	Search(ctx context.Context, query string, topK int) ([]remote.Citation, error)
}

// Assertion is one named pass/fail result, printed verbatim in the report.
type Assertion struct {
	Name    string
	Passed  bool
	Detail  string
}

// Report is the verifier's full output. ExitCode returns 0 if every
// assertion passed and 1 if any failed. It never returns 2: a
// configuration error is reported by Run as an error wrapping ErrConfig,
// with no Report, and the caller maps that error to exit code 2.
type Report struct {
	Assertions []Assertion
	GeneratedAt time.Time
}

func (r *Report) AllPassed() bool {
	for _, a := range r.Assertions {
		if !a.Passed {
			return false
		}
	}
	return true
}

func (r *Report) ExitCode() int {
	if r.AllPassed() {
		return 0
	}
	return 1
}

func (r *Report) add(name string, passed bool, detail string) {
	r.Assertions = append(r.Assertions, Assertion{Name: name, Passed: passed, Detail: detail})
}

// Options configures the assertions that need operator-supplied inputs:
// the stuck-transition threshold, the canonical search query and its
// minimum citation count, and the searchability sample.
type Options struct {
	StuckThreshold   time.Duration
	SearchQuery      string
	MinCitations      int
	SampleSize        int
	TopM              int
	CategoryTolerance CategoryTolerance
}

func (o Options) withDefaults() Options {
	if o.StuckThreshold <= 0 {
		o.StuckThreshold = 30 * time.Minute
	}
	if o.MinCitations <= 0 {
		o.MinCitations = 1
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 20
	}
	if o.TopM <= 0 {
		o.TopM = 5
	}
	return o
}

// Verifier runs the seven assertions against the durable store and the
// remote store.
type Verifier struct {
	Files  FileReader
	Remote RemoteClient
}

// Run evaluates all seven assertions and never short-circuits: every
// assertion is attempted even if an earlier one failed, matching the
// error handling design's "the verifier downgrades no errors" rule.
func (v *Verifier) Run(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	report := &Report{GeneratedAt: time.Now().UTC()}

	indexed, err := v.Files.ListByState(ctx, string(fsmstate.Indexed))
	if err != nil {
		return nil, fmt.Errorf("verifier: list indexed: %w", errkind.Config(err))
	}
	docs, err := v.Remote.ListStoreDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("verifier: list store docs: %w", errkind.Config(err))
	}

	v.assertCountInvariant(report, indexed, docs)
	v.assertNoGhosts(ctx, report, indexed)
	v.assertNoOrphans(report, indexed, docs)

	all, err := v.Files.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("verifier: list all: %w", errkind.Config(err))
	}
	v.assertNoStuckTransitions(report, all, opts.StuckThreshold)

	v.assertSearchReturnsResults(ctx, report, opts)
	citations := v.assertCitationResolution(ctx, report, opts, indexed)
	_ = citations
	v.assertPerFileSearchability(ctx, report, indexed, opts)

	return report, nil
}

// Assertion 1: count(files where fsm_state=INDEXED) equals len(list_store_docs()).
func (v *Verifier) assertCountInvariant(report *Report, indexed []*filerecord.Record, docs []remote.StoreDoc) {
	passed := len(indexed) == len(docs)
	report.add("count_invariant", passed, fmt.Sprintf("indexed=%d store_docs=%d", len(indexed), len(docs)))
}

// Assertion 2: DB -> Store, no ghosts. Every INDEXED row's
// remote_store_doc_id must resolve via get_store_doc.
func (v *Verifier) assertNoGhosts(ctx context.Context, report *Report, indexed []*filerecord.Record) {
	var ghosts []string
	for _, rec := range indexed {
		if rec.RemoteStoreDocID == nil {
			ghosts = append(ghosts, rec.FilePath+" (no store doc id recorded)")
			continue
		}
		if _, err := v.Remote.GetStoreDoc(ctx, *rec.RemoteStoreDocID); err != nil {
			ghosts = append(ghosts, rec.FilePath+" -> "+*rec.RemoteStoreDocID)
		}
	}
	report.add("no_ghosts", len(ghosts) == 0, summarize("ghosts", ghosts))
}

// Assertion 3: Store -> DB, no orphans. Every document from
// list_store_docs must match some row's remote_store_doc_id.
func (v *Verifier) assertNoOrphans(report *Report, indexed []*filerecord.Record, docs []remote.StoreDoc) {
	known := make(map[string]bool, len(indexed))
	for _, rec := range indexed {
		if rec.RemoteStoreDocID != nil {
			known[*rec.RemoteStoreDocID] = true
		}
	}
	var orphans []string
	for _, d := range docs {
		if !known[d.Name] {
			orphans = append(orphans, d.Name)
		}
	}
	report.add("no_orphans", len(orphans) == 0, summarize("orphans", orphans))
}

// Assertion 4: no files remain in UPLOADING or PROCESSING older than
// threshold.
func (v *Verifier) assertNoStuckTransitions(report *Report, all []*filerecord.Record, threshold time.Duration) {
	var stuck []string
	now := time.Now().UTC()
	for _, rec := range all {
		state := fsmstate.State(rec.State)
		if state != fsmstate.Uploading && state != fsmstate.Processing {
			continue
		}
		if now.Sub(rec.FSMUpdatedAt) > threshold {
			stuck = append(stuck, fmt.Sprintf("%s (%s since %s)", rec.FilePath, rec.State, rec.FSMUpdatedAt))
		}
	}
	report.add("no_stuck_transitions", len(stuck) == 0, summarize("stuck", stuck))
}

// Assertion 5: a canonical semantic query returns at least MinCitations.
func (v *Verifier) assertSearchReturnsResults(ctx context.Context, report *Report, opts Options) {
	if opts.SearchQuery == "" {
		report.add("search_returns_results", true, "no canonical query configured, skipped")
		return
	}
	cites, err := v.Remote.Search(ctx, opts.SearchQuery, opts.MinCitations*4+1)
	if err != nil {
		report.add("search_returns_results", false, err.Error())
		return
	}
	passed := len(cites) >= opts.MinCitations
	report.add("search_returns_results", passed, fmt.Sprintf("got %d citations, want >= %d", len(cites), opts.MinCitations))
}

// Assertion 6: every citation resolves via exact-match against
// remote_store_doc_id. Substring/LIKE matching is prohibited.
func (v *Verifier) assertCitationResolution(ctx context.Context, report *Report, opts Options, indexed []*filerecord.Record) []remote.Citation {
	if opts.SearchQuery == "" {
		report.add("citation_resolution", true, "no canonical query configured, skipped")
		return nil
	}
	cites, err := v.Remote.Search(ctx, opts.SearchQuery, opts.MinCitations*4+1)
	if err != nil {
		report.add("citation_resolution", false, err.Error())
		return nil
	}
	known := make(map[string]bool, len(indexed))
	for _, rec := range indexed {
		if rec.RemoteStoreDocID != nil {
			known[*rec.RemoteStoreDocID] = true
		}
	}
	var unresolved []string
	for _, c := range cites {
		if !known[c.StoreDocID] {
			unresolved = append(unresolved, c.StoreDocID)
		}
	}
	report.add("citation_resolution", len(unresolved) == 0, summarize("unresolved citations", unresolved))
	return cites
}

// Assertion 7: for K randomly sampled INDEXED files, a targeted query
// constructed from the file's discriminating metadata returns the file in
// the top-M results. A per-category tolerance may exclude categories where
// semantic discrimination is inherently limited (large numbered series);
// the tolerance and excluded categories are declared in the assertion
// output, per the design's requirement that nothing here be silent.
func (v *Verifier) assertPerFileSearchability(ctx context.Context, report *Report, indexed []*filerecord.Record, opts Options) {
	if len(indexed) == 0 {
		report.add("per_file_searchability", true, "no indexed files to sample")
		return
	}
	sample := sampleRecords(indexed, opts.SampleSize)

	var misses []string
	for _, rec := range sample {
		category := categorize(rec.FilePath)
		tolerance := opts.CategoryTolerance.For(category)

		cites, err := v.Remote.Search(ctx, displayQuery(rec.FilePath), opts.TopM)
		if err != nil {
			misses = append(misses, rec.FilePath+": "+err.Error())
			continue
		}
		found := false
		for _, c := range cites {
			if rec.RemoteStoreDocID != nil && c.StoreDocID == *rec.RemoteStoreDocID {
				found = true
				break
			}
		}
		if !found && tolerance.MissAllowed {
			continue
		}
		if !found {
			misses = append(misses, rec.FilePath)
		}
	}

	passed := len(misses) == 0
	detail := summarize("missed", misses)
	if len(opts.CategoryTolerance) > 0 {
		detail += "; tolerances: " + opts.CategoryTolerance.String()
	}
	report.add("per_file_searchability", passed, detail)
}

func sampleRecords(all []*filerecord.Record, k int) []*filerecord.Record {
	if k >= len(all) {
		return all
	}
	idx := rand.Perm(len(all))[:k]
	out := make([]*filerecord.Record, 0, k)
	for _, i := range idx {
		out = append(out, all[i])
	}
	return out
}

func categorize(filePath string) string {
	parts := strings.Split(filePath, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return ""
}

func displayQuery(filePath string) string {
	parts := strings.Split(filePath, "/")
	return parts[len(parts)-1]
}

func summarize(label string, items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return fmt.Sprintf("%d %s: %s", len(items), label, strings.Join(items, ", "))
}
