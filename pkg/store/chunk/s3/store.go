package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/store/chunk"
)

// objectSuffix ends every chunk object key.
const objectSuffix = ".chunk"

// Client is the subset of the S3 API the store uses. *s3.Client satisfies it.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3ChunkStore implements chunk.Store on an S3 bucket, one object per chunk.
//
// Object keys have the form "<prefix>r.<x>.<z>.chunk", so a world can share
// a bucket with other data under its own prefix.
type S3ChunkStore struct {
	client Client
	bucket string
	prefix string
}

// S3ChunkStoreConfig contains configuration for an S3 chunk store.
type S3ChunkStoreConfig struct {
	// Client is a configured S3 client
	Client Client

	// Bucket holds the chunk objects
	Bucket string

	// KeyPrefix is prepended to every object key, e.g. "worlds/main/"
	KeyPrefix string
}

// NewS3ChunkStore creates a chunk store on an existing bucket.
func NewS3ChunkStore(ctx context.Context, config S3ChunkStoreConfig) (*S3ChunkStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.Client == nil {
		return nil, errors.New("s3 chunk store: client is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("s3 chunk store: bucket is required")
	}
	return &S3ChunkStore{
		client: config.Client,
		bucket: config.Bucket,
		prefix: config.KeyPrefix,
	}, nil
}

func (s *S3ChunkStore) objectKey(coord world.ChunkCoord) string {
	return fmt.Sprintf("%sr.%d.%d%s", s.prefix, coord.X, coord.Z, objectSuffix)
}

// parseObjectKey extracts the coordinate from a key built by objectKey.
func (s *S3ChunkStore) parseObjectKey(key string) (world.ChunkCoord, bool) {
	name, ok := strings.CutPrefix(key, s.prefix+"r.")
	if !ok {
		return world.ChunkCoord{}, false
	}
	name, ok = strings.CutSuffix(name, objectSuffix)
	if !ok {
		return world.ChunkCoord{}, false
	}
	xs, zs, ok := strings.Cut(name, ".")
	if !ok {
		return world.ChunkCoord{}, false
	}
	x, errX := strconv.ParseInt(xs, 10, 32)
	z, errZ := strconv.ParseInt(zs, 10, 32)
	if errX != nil || errZ != nil {
		return world.ChunkCoord{}, false
	}
	return world.ChunkCoord{X: int32(x), Z: int32(z)}, true
}

func (s *S3ChunkStore) Get(ctx context.Context, coord world.ChunkCoord) ([]byte, error) {
	key := s.objectKey(coord)
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, chunk.ErrChunkNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

func (s *S3ChunkStore) Put(ctx context.Context, coord world.ChunkCoord, data []byte) error {
	key := s.objectKey(coord)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Delete removes the object. S3 reports success for missing keys.
func (s *S3ChunkStore) Delete(ctx context.Context, coord world.ChunkCoord) error {
	key := s.objectKey(coord)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3ChunkStore) List(ctx context.Context) ([]world.ChunkCoord, error) {
	var coords []world.ChunkCoord
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + "r."),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks in %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			coord, ok := s.parseObjectKey(aws.ToString(obj.Key))
			if !ok {
				logger.Debug("Ignoring foreign object %s in chunk bucket", aws.ToString(obj.Key))
				continue
			}
			coords = append(coords, coord)
		}
	}
	return coords, nil
}

// Close is a no-op; the client has no resources to release.
func (s *S3ChunkStore) Close() error {
	return nil
}
