// Package gcp reads knowledge source files from Cloud Storage.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/haven-backend/internal/platform/logger"
)

// MaxObjectBytes caps a single downloaded object.
const MaxObjectBytes = 8 << 20

var ErrNotGCSURI = errors.New("not a gs:// uri")

type BucketConfig struct {
	// EmulatorHost points the client at a fake-gcs-server style emulator.
	EmulatorHost string
	Timeout      time.Duration
}

type BucketReader struct {
	client  *storage.Client
	timeout time.Duration
	log     *logger.Logger
}

func NewBucketReader(ctx context.Context, log *logger.Logger, cfg BucketConfig) (*BucketReader, error) {
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadOnly))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &BucketReader{client: client, timeout: cfg.Timeout, log: log.With("service", "BucketReader")}, nil
}

// ParseURI splits "gs://bucket/some/prefix" into bucket and object prefix.
func ParseURI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "gs://")
	if !ok {
		return "", "", ErrNotGCSURI
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", uri)
	}
	return bucket, prefix, nil
}

// List returns object names under prefix, skipping directory placeholders.
func (b *BucketReader) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	it := b.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (b *BucketReader) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	r, err := b.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, MaxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, key, err)
	}
	if len(data) > MaxObjectBytes {
		return nil, fmt.Errorf("gs://%s/%s exceeds %d bytes", bucket, key, MaxObjectBytes)
	}
	b.log.Debug("object read", "bucket", bucket, "key", key, "bytes", len(data))
	return data, nil
}

func (b *BucketReader) Close() error {
	return b.client.Close()
}
