package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/agilenature/filelifecycle/internal/domain/errkind"
)

func fastClient(sdk SDK) *Client {
	return NewClient(sdk, rate.NewLimiter(rate.Inf, 1), RetryPolicy{
		MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond,
	})
}

func TestSanitizeDisplayName(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeDisplayName("  hello world  "))
	assert.Equal(t, "café", SanitizeDisplayName("café"))
}

func TestClient_DeleteStoreDoc_NotFoundIsSuccess(t *testing.T) {
	fake := NewFakeSDK()
	c := fastClient(fake)
	err := c.DeleteStoreDoc(context.Background(), "does-not-exist")
	require.NoError(t, err)
}

func TestClient_DeleteStoreDoc_DoubleDeleteSucceedsBoth(t *testing.T) {
	fake := NewFakeSDK()
	ctx := context.Background()
	rawID, _, err := fake.UploadRaw(ctx, "doc", []byte("x"))
	require.NoError(t, err)
	name, err := fake.ImportToStore(ctx, rawID)
	require.NoError(t, err)

	c := fastClient(fake)
	require.NoError(t, c.DeleteStoreDoc(ctx, name))
	require.NoError(t, c.DeleteStoreDoc(ctx, name))
}

type transientThenOKSDK struct {
	*FakeSDK
	fails int
}

func (s *transientThenOKSDK) UploadRaw(ctx context.Context, displayName string, content []byte) (string, string, error) {
	if s.fails > 0 {
		s.fails--
		return "", "", errkind.Transient(errors.New("503"))
	}
	return s.FakeSDK.UploadRaw(ctx, displayName, content)
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	sdk := &transientThenOKSDK{FakeSDK: NewFakeSDK(), fails: 2}
	c := fastClient(sdk)
	rawID, _, err := c.UploadRaw(context.Background(), "name", []byte("x"))
	require.NoError(t, err)
	assert.NotEmpty(t, rawID)
}

type alwaysTransientSDK struct{ *FakeSDK }

func (s *alwaysTransientSDK) UploadRaw(ctx context.Context, displayName string, content []byte) (string, string, error) {
	return "", "", errkind.Transient(errors.New("503"))
}

func TestClient_RetriesExhaustedPromotesToFatal(t *testing.T) {
	sdk := &alwaysTransientSDK{FakeSDK: NewFakeSDK()}
	c := fastClient(sdk)
	_, _, err := c.UploadRaw(context.Background(), "name", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrRemoteFatal))
}

func TestClient_FindStoreDocForRaw_ExactMatchOnly(t *testing.T) {
	fake := NewFakeSDK()
	ctx := context.Background()

	rawA, _, err := fake.UploadRaw(ctx, "a", []byte("x"))
	require.NoError(t, err)
	nameA, err := fake.ImportToStore(ctx, rawA)
	require.NoError(t, err)

	// A second raw id that is a superstring of rawA must never match rawA's
	// lookup: substring containment is explicitly prohibited.
	rawB := rawA + "-extra"
	fake.raw[rawB] = rawFile{displayName: "b", content: []byte("y")}
	nameB, err := fake.ImportToStore(ctx, rawB)
	require.NoError(t, err)
	require.NotEqual(t, nameA, nameB)

	c := fastClient(fake)
	doc, err := c.FindStoreDocForRaw(ctx, rawA)
	require.NoError(t, err)
	assert.Equal(t, nameA, doc.Name)
}

func TestClient_FindStoreDocForRaw_NotFound(t *testing.T) {
	fake := NewFakeSDK()
	c := fastClient(fake)
	_, err := c.FindStoreDocForRaw(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrRemoteNotFound))
}
