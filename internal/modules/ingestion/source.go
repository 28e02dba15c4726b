package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yungbote/haven-backend/internal/platform/gcp"
)

// Source yields the raw knowledge files to import.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads a single file or every supported file under a directory.
type DirSource struct {
	Root string
}

func (s DirSource) List(ctx context.Context) ([]string, error) {
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{s.Root}, nil
	}
	var out []string
	err = filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && Supported(path) {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (s DirSource) Read(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(name)
}

type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Read(ctx context.Context, bucket, key string) ([]byte, error)
}

// BucketSource reads supported objects under gs://Bucket/Prefix.
type BucketSource struct {
	Store  ObjectStore
	Bucket string
	Prefix string
}

func NewBucketSource(store ObjectStore, uri string) (BucketSource, error) {
	bucket, prefix, err := gcp.ParseURI(uri)
	if err != nil {
		return BucketSource{}, err
	}
	return BucketSource{Store: store, Bucket: bucket, Prefix: prefix}, nil
}

func (s BucketSource) List(ctx context.Context) ([]string, error) {
	names, err := s.Store.List(ctx, s.Bucket, s.Prefix)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if Supported(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s BucketSource) Read(ctx context.Context, name string) ([]byte, error) {
	return s.Store.Read(ctx, s.Bucket, name)
}

// Supported reports whether the file extension is a known document format.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func formatOf(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	}
	return "", fmt.Errorf("unsupported file type %q", name)
}
