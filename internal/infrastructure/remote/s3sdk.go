package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/agilenature/filelifecycle/internal/domain/errkind"
)

const (
	defaultRawPrefix   = "raw/"
	defaultStorePrefix = "store/"
)

// S3SDK implements SDK against an S3-compatible object store, standing in
// for the remote vector-index service: raw files live under rawPrefix/<id>,
// store-documents live under storePrefix/<name>, where <name> is <raw id>-<
// server-assigned suffix>, matching the documented identity contract.
// Grounded on the teacher's S3StorageGateway, repurposed from artifact
// save/load semantics to the upload/import/poll/delete RPCs this engine
// needs.
type S3SDK struct {
	client      S3API
	bucket      string
	rawPrefix   string
	storePrefix string
}

// S3Config configures an S3SDK. Endpoint overrides the default AWS
// endpoint resolution, used to point at a local S3-compatible test
// double rather than real AWS.
type S3Config struct {
	Bucket      string
	Region      string
	Endpoint    string
	RawPrefix   string
	StorePrefix string
}

// NewS3SDK builds an S3SDK using the default AWS credential chain.
func NewS3SDK(ctx context.Context, cfg S3Config) (*S3SDK, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote: load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, opts...)

	rawPrefix := cfg.RawPrefix
	if rawPrefix == "" {
		rawPrefix = defaultRawPrefix
	}
	storePrefix := cfg.StorePrefix
	if storePrefix == "" {
		storePrefix = defaultStorePrefix
	}
	return NewS3SDKWithClient(client, cfg.Bucket, rawPrefix, storePrefix), nil
}

// NewS3SDKWithClient builds an S3SDK against an explicit client, primarily
// for tests against an in-memory S3API fake.
func NewS3SDKWithClient(client S3API, bucket, rawPrefix, storePrefix string) *S3SDK {
	return &S3SDK{client: client, bucket: bucket, rawPrefix: rawPrefix, storePrefix: storePrefix}
}

func (s *S3SDK) key(prefix, name string) string {
	return prefix + name
}

func (s *S3SDK) UploadRaw(ctx context.Context, displayName string, content []byte) (string, string, error) {
	rawID := uuid.NewString()
	key := s.key(s.rawPrefix, rawID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
		Metadata: map[string]string{
			"display-name": displayName,
			"uploaded-at":  time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", "", errkind.Transient(fmt.Errorf("upload raw %s: %w", rawID, err))
	}
	return rawID, fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// ImportToStore copies a raw object's bytes into the store prefix under a
// name that encodes the raw id as a prefix, per the identity contract.
// There is no real long-running operation against a plain object store, so
// the returned handle is immediately pollable-complete; PollOperation
// still goes through the same done/response shape a genuinely async
// backend would use.
func (s *S3SDK) ImportToStore(ctx context.Context, rawID string) (string, error) {
	rawKey := s.key(s.rawPrefix, rawID)
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(rawKey),
	})
	if err != nil {
		return "", errkind.Transient(fmt.Errorf("import_to_store: read raw %s: %w", rawID, err))
	}
	defer obj.Body.Close()
	content, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", errkind.Transient(fmt.Errorf("import_to_store: read raw body %s: %w", rawID, err))
	}

	suffix := uuid.NewString()[:8]
	storeName := rawID + "-" + suffix
	storeKey := s.key(s.storePrefix, storeName)

	displayName := obj.Metadata["display-name"]
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storeKey),
		Body:   bytes.NewReader(content),
		Metadata: map[string]string{
			"display-name": displayName,
			"raw-id":       rawID,
		},
	})
	if err != nil {
		return "", errkind.Transient(fmt.Errorf("import_to_store: write store doc for %s: %w", rawID, err))
	}

	return storeName, nil
}

func (s *S3SDK) PollOperation(ctx context.Context, operationHandle string) (PollResult, error) {
	storeKey := s.key(s.storePrefix, operationHandle)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storeKey),
	})
	if isNotFound(err) {
		return PollResult{Done: false}, nil
	}
	if err != nil {
		return PollResult{}, errkind.Transient(fmt.Errorf("poll_operation %s: %w", operationHandle, err))
	}
	return PollResult{Done: true, StoreDocID: operationHandle}, nil
}

func (s *S3SDK) ListStoreDocs(ctx context.Context) ([]StoreDoc, error) {
	prefix := s.storePrefix
	var out []StoreDoc
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errkind.Transient(fmt.Errorf("list_store_docs: %w", err))
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			doc, err := s.GetStoreDoc(ctx, name)
			if err != nil {
				continue
			}
			out = append(out, doc)
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}
	return out, nil
}

func (s *S3SDK) GetStoreDoc(ctx context.Context, name string) (StoreDoc, error) {
	key := s.key(s.storePrefix, name)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return StoreDoc{}, errkind.NotFound(fmt.Errorf("get_store_doc: %s", name))
	}
	if err != nil {
		return StoreDoc{}, errkind.Transient(fmt.Errorf("get_store_doc %s: %w", name, err))
	}
	return StoreDoc{Name: name, DisplayName: head.Metadata["display-name"]}, nil
}

func (s *S3SDK) DeleteStoreDoc(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(s.storePrefix, name)),
	})
	if isNotFound(err) {
		return errkind.NotFound(fmt.Errorf("delete_store_doc: %s", name))
	}
	if err != nil {
		return errkind.Transient(fmt.Errorf("delete_store_doc %s: %w", name, err))
	}
	return nil
}

func (s *S3SDK) DeleteRaw(ctx context.Context, rawID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(s.rawPrefix, rawID)),
	})
	if isNotFound(err) {
		return errkind.NotFound(fmt.Errorf("delete_raw: %s", rawID))
	}
	if err != nil {
		return errkind.Transient(fmt.Errorf("delete_raw %s: %w", rawID, err))
	}
	return nil
}

// Search is not expressible against a plain object store; the backing
// remote here is a stand-in, so Search does a metadata substring match
// over display names as an approximation good enough to drive the
// verifier's searchability assertions against this SDK implementation in
// integration tests. A real deployment would route Search to the actual
// vector-index query endpoint.
func (s *S3SDK) Search(ctx context.Context, query string, topK int) ([]Citation, error) {
	docs, err := s.ListStoreDocs(ctx)
	if err != nil {
		return nil, err
	}
	var out []Citation
	q := strings.ToLower(query)
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.DisplayName), q) {
			out = append(out, Citation{StoreDocID: d.Name, Score: 1.0})
		}
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
