// Package content caches content-network blobs by hash and builds the
// content-addressed file sets uploaded with deployments.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Cache stores blobs by content hash. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, hash string) ([]byte, bool, error)
	Put(ctx context.Context, hash string, data []byte) error
}

// MinioCache keeps blobs in an S3-compatible bucket, one object per hash.
type MinioCache struct {
	client *minio.Client
	bucket string
}

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// NewMinioCache connects to the object store and creates the bucket if it
// does not exist.
func NewMinioCache(ctx context.Context, opts MinioOptions) (*MinioCache, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}
	return &MinioCache{client: client, bucket: opts.Bucket}, nil
}

func (c *MinioCache) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	object, err := c.client.GetObject(ctx, c.bucket, hash, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("get object %s: %w", hash, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read object %s: %w", hash, err)
	}
	return data, true, nil
}

func (c *MinioCache) Put(ctx context.Context, hash string, data []byte) error {
	_, err := c.client.PutObject(ctx, c.bucket, hash, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", hash, err)
	}
	return nil
}

// MemoryCache is an unbounded in-process cache.
type MemoryCache struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{blobs: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, hash string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.blobs[hash]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (c *MemoryCache) Put(_ context.Context, hash string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[hash] = append([]byte(nil), data...)
	return nil
}

// Fetcher downloads a blob from the content network.
type Fetcher interface {
	FetchContent(ctx context.Context, hash string) ([]byte, error)
}

var ErrEmptyHash = errors.New("empty content hash")

// Store reads blobs through a cache. Cache failures are logged and never
// fail the read.
type Store struct {
	fetcher Fetcher
	cache   Cache
	logger  *zap.Logger
}

func NewStore(fetcher Fetcher, cache Cache, logger *zap.Logger) *Store {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fetcher: fetcher, cache: cache, logger: logger}
}

func (s *Store) Fetch(ctx context.Context, hash string) ([]byte, error) {
	if hash == "" {
		return nil, ErrEmptyHash
	}
	data, ok, err := s.cache.Get(ctx, hash)
	if err != nil {
		s.logger.Warn("content cache read", zap.String("hash", hash), zap.Error(err))
	} else if ok {
		return data, nil
	}

	data, err = s.fetcher.FetchContent(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, hash, data); err != nil {
		s.logger.Warn("content cache write", zap.String("hash", hash), zap.Error(err))
	}
	return data, nil
}

// FetchAll downloads every path's blob, requesting each distinct hash once.
func (s *Store) FetchAll(ctx context.Context, contents map[string]string) (map[string][]byte, error) {
	byHash := make(map[string][]byte, len(contents))
	files := make(map[string][]byte, len(contents))
	for path, hash := range contents {
		data, ok := byHash[hash]
		if !ok {
			var err error
			data, err = s.Fetch(ctx, hash)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", path, err)
			}
			byHash[hash] = data
		}
		files[path] = data
	}
	return files, nil
}
