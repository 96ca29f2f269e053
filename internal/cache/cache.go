package cache

import (
	"context"
	"fmt"
	"path"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"gamefetch/internal/download"
	"gamefetch/internal/logging"
)

// Store is a content-addressed object cache on a gocloud bucket. Objects are
// keyed as objects/<hash[0:2]>/<hash>, mirroring the install layout, so one
// bucket can back many installation roots.
type Store struct {
	bucket *blob.Bucket
}

// Open opens the bucket at url (file:///path or mem://).
func Open(ctx context.Context, url string) (*Store, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open cache bucket: %w", err)
	}
	logging.With(ctx).Info("content cache opened", "event", "cache_open", "url", logging.RedactURL(url))
	return &Store{bucket: b}, nil
}

// New wraps an already opened bucket.
func New(b *blob.Bucket) *Store {
	return &Store{bucket: b}
}

// Close releases the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// Get returns the object for hash or download.ErrCacheMiss.
func (s *Store) Get(ctx context.Context, hash string) ([]byte, error) {
	key, err := objectKey(hash)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, download.ErrCacheMiss
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Put stores data under hash.
func (s *Store) Put(ctx context.Context, hash string, data []byte) error {
	key, err := objectKey(hash)
	if err != nil {
		return err
	}
	if err := s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: "application/octet-stream"}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Has reports whether hash is cached.
func (s *Store) Has(ctx context.Context, hash string) (bool, error) {
	key, err := objectKey(hash)
	if err != nil {
		return false, err
	}
	return s.bucket.Exists(ctx, key)
}

func objectKey(hash string) (string, error) {
	if !download.ValidHash(hash) {
		return "", fmt.Errorf("%w: %q", download.ErrMalformedHash, hash)
	}
	return path.Join("objects", hash[:2], hash), nil
}
