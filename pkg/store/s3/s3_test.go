package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittoxfer/pkg/store"
	storetesting "github.com/marmos91/dittoxfer/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory S3 bucket. ListObjectsV2 pages through keys
// in lexical order, pageSize keys at a time.
type fakeClient struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string][]byte
	pageSize int
}

func newFakeClient(bucket string) *fakeClient {
	return &fakeClient{bucket: bucket, objects: make(map[string][]byte), pageSize: 3}
}

func (f *fakeClient) checkBucket(bucket *string) error {
	if aws.ToString(bucket) != f.bucket {
		return &types.NoSuchBucket{}
	}
	return nil
}

func (f *fakeClient) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeClient) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(slices.Clone(data)))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	start := 0
	if in.ContinuationToken != nil {
		n, err := strconv.Atoi(*in.ContinuationToken)
		if err != nil {
			return nil, err
		}
		start = n
	}
	end := min(start+f.pageSize, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func newTestStore(t *testing.T, client *fakeClient, prefix string) *S3Store {
	t.Helper()
	s, err := New(context.Background(), Config{Client: client, Bucket: client.bucket, KeyPrefix: prefix})
	require.NoError(t, err)
	return s
}

// TestS3Store runs the complete FileStore test suite against S3Store
// backed by an in-memory fake bucket.
func TestS3Store(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func() store.FileStore {
			return newTestStore(t, newFakeClient("xfer-test"), "files/")
		},
	}

	suite.Run(t)
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = New(ctx, Config{Client: newFakeClient("b")})
	assert.Error(t, err)

	_, err = New(ctx, Config{Client: newFakeClient("b"), Bucket: "other"})
	var noBucket *types.NoSuchBucket
	assert.True(t, errors.As(err, &noBucket))
}

func TestS3Store_KeyPrefixIsolation(t *testing.T) {
	client := newFakeClient("shared")
	ctx := context.Background()

	a := newTestStore(t, client, "a/")
	b := newTestStore(t, client, "b/")

	require.NoError(t, a.Write(ctx, "one.txt", []byte("1")))
	require.NoError(t, b.Write(ctx, "two.txt", []byte("2")))
	client.objects["a/nested/deep.txt"] = []byte("not a flat file")

	names, err := a.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one.txt"}, names)

	_, ok := client.objects["b/two.txt"]
	assert.True(t, ok)

	_, err = a.Read(ctx, "two.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestS3Store_ListPaginates(t *testing.T) {
	client := newFakeClient("paged")
	s := newTestStore(t, client, "")
	ctx := context.Background()

	var want []string
	for i := range 10 {
		name := "f" + strconv.Itoa(i) + ".txt"
		want = append(want, name)
		require.NoError(t, s.Write(ctx, name, []byte(name)))
	}
	slices.Sort(want)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, names)
}
