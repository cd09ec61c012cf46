// Package remote wraps the four opaque remote-store RPCs named in the
// external interfaces section (upload_raw, import_to_store,
// delete_store_doc, delete_raw) plus the three read/poll RPCs
// (poll_operation, list_store_docs, get_store_doc) and the verifier's
// search RPC, behind a single SDK interface. Client adds retry-with-
// backoff, rate limiting, idempotent-delete normalization, and exact-match
// correlation on top of whatever SDK implementation is wired in.
package remote

import "context"

// StoreDoc is one persistent, indexed document as returned by
// ListStoreDocs/GetStoreDoc. Name is the server-assigned identifier;
// DisplayName is whatever the caller passed to UploadRaw, echoed back
// verbatim per the remote service's display-name contract.
type StoreDoc struct {
	Name        string
	DisplayName string
}

// PollResult is the outcome of one PollOperation call. When Done is true
// and StoreDocID is empty, the typed completion response's document field
// was null despite completion — the open question from the design notes —
// and the caller must fall back to reparsing RawPayload.
type PollResult struct {
	Done       bool
	StoreDocID string
	RawPayload map[string]any
}

// Citation is one search result, used only by the temporal stability
// verifier's searchability assertions.
type Citation struct {
	StoreDocID string
	Score      float64
}

// SDK is the remote store's wire contract, implemented once against a
// real backing store (S3, in this deployment) and once as an in-memory
// fake for tests. No method here normalizes "not found" to success or
// retries transient errors — that belongs to Client, which wraps an SDK.
type SDK interface {
	// UploadRaw creates the transient raw-file resource. displayName is
	// caller-controlled and echoed back verbatim by GetStoreDoc/
	// ListStoreDocs; the remote service never derives it from content.
	UploadRaw(ctx context.Context, displayName string, content []byte) (rawID string, uri string, err error)

	// ImportToStore starts the long-running import of a raw file into the
	// persistent store and returns an operation handle to poll.
	ImportToStore(ctx context.Context, rawID string) (operationHandle string, err error)

	// PollOperation reports whether the operation has completed.
	PollOperation(ctx context.Context, operationHandle string) (PollResult, error)

	// ListStoreDocs enumerates every persistent store-document. Pagination,
	// if the backing store has any, is handled inside the implementation;
	// callers always see a fully materialized slice.
	ListStoreDocs(ctx context.Context) ([]StoreDoc, error)

	// GetStoreDoc resolves a single store-document by name. Returns an
	// error satisfying errors.Is(err, errkind.ErrRemoteNotFound) if absent.
	GetStoreDoc(ctx context.Context, name string) (StoreDoc, error)

	// DeleteStoreDoc removes a persistent store-document. Returns an error
	// satisfying errors.Is(err, errkind.ErrRemoteNotFound) if already
	// absent; Client normalizes that case to success.
	DeleteStoreDoc(ctx context.Context, name string) error

	// DeleteRaw removes a transient raw file. Same not-found contract as
	// DeleteStoreDoc. Deleting a raw file never deletes its derived
	// store-document — the two resources are independent and both must be
	// deleted explicitly.
	DeleteRaw(ctx context.Context, rawID string) error

	// Search runs a semantic query against the store, returning up to topK
	// citations ordered by relevance. Used only by the verifier.
	Search(ctx context.Context, query string, topK int) ([]Citation, error)
}
