package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// InMemoryS3 is a mock implementation of S3API for testing S3SDK without a
// network call, grounded on the teacher's MockS3Client: objects live in a
// map instead of a bucket, and NoSuchKey is returned for absent keys the
// same way the real S3 client would.
type InMemoryS3 struct {
	mu      sync.RWMutex
	objects map[string]*memObject
}

type memObject struct {
	content  []byte
	metadata map[string]string
}

func NewInMemoryS3() *InMemoryS3 {
	return &InMemoryS3{objects: make(map[string]*memObject)}
}

func (m *InMemoryS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	m.objects[aws.ToString(in.Key)] = &memObject{content: content, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (m *InMemoryS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := aws.ToString(in.Key)
	obj, ok := m.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key: " + key)}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.content)),
		Metadata: obj.metadata,
	}, nil
}

func (m *InMemoryS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := aws.ToString(in.Key)
	obj, ok := m.objects[key]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("no such key: " + key)}
	}
	return &s3.HeadObjectOutput{Metadata: obj.metadata}, nil
}

func (m *InMemoryS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := aws.ToString(in.Prefix)
	var contents []types.Object
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{Key: aws.String(key)})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func (m *InMemoryS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := aws.ToString(in.Key)
	if _, ok := m.objects[key]; !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key: " + key)}
	}
	delete(m.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *InMemoryS3) CopyObject(ctx context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Not exercised by S3SDK today (ImportToStore reads+writes instead of
	// server-side copying), kept only to satisfy S3API for callers that
	// prefer CopyObject against a real bucket.
	return &s3.CopyObjectOutput{}, nil
}

// Count returns the number of stored objects, for test assertions.
func (m *InMemoryS3) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
