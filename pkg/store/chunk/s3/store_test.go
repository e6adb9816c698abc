package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/store/chunk"
	chunktesting "github.com/marmos91/dittocraft/pkg/store/chunk/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory bucket speaking the subset of the S3 API the
// store uses. It pages listings two keys at a time to exercise pagination.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(append([]byte(nil), data...)))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
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
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for key := range f.objects {
		if bytes.HasPrefix([]byte(key), []byte(aws.ToString(in.Prefix))) && key > aws.ToString(in.ContinuationToken) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func TestS3ChunkStore(t *testing.T) {
	suite := &chunktesting.StoreTestSuite{
		NewStore: func(t *testing.T) chunk.Store {
			store, err := NewS3ChunkStore(context.Background(), S3ChunkStoreConfig{
				Client:    newFakeClient(),
				Bucket:    "worlds",
				KeyPrefix: "test/",
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestS3ChunkStoreIgnoresForeignObjects(t *testing.T) {
	client := newFakeClient()
	client.objects["test/r.1.2.chunk"] = []byte{1}
	client.objects["test/r.bad.chunk"] = []byte{1}
	client.objects["test/readme.txt"] = []byte{1}
	client.objects["other/r.3.4.chunk"] = []byte{1}

	store, err := NewS3ChunkStore(context.Background(), S3ChunkStoreConfig{Client: client, Bucket: "b", KeyPrefix: "test/"})
	require.NoError(t, err)

	coords, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []world.ChunkCoord{{X: 1, Z: 2}}, coords)
}

func TestNewS3ChunkStoreValidation(t *testing.T) {
	_, err := NewS3ChunkStore(context.Background(), S3ChunkStoreConfig{Bucket: "b"})
	assert.Error(t, err)
	_, err = NewS3ChunkStore(context.Background(), S3ChunkStoreConfig{Client: newFakeClient()})
	assert.Error(t, err)
}

// TestS3ChunkStoreLive runs the suite against a real bucket named by
// DITTOCRAFT_S3_TEST_BUCKET, using the default AWS credential chain.
func TestS3ChunkStoreLive(t *testing.T) {
	bucket := os.Getenv("DITTOCRAFT_S3_TEST_BUCKET")
	if bucket == "" {
		t.Skip("DITTOCRAFT_S3_TEST_BUCKET not set")
	}

	cfg, err := awsConfig.LoadDefaultConfig(context.Background())
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := os.Getenv("DITTOCRAFT_S3_TEST_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	suite := &chunktesting.StoreTestSuite{
		NewStore: func(t *testing.T) chunk.Store {
			store, err := NewS3ChunkStore(context.Background(), S3ChunkStoreConfig{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: "dittocraft-test/" + uuid.NewString() + "/",
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}
