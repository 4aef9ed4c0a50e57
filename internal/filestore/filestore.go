// Package filestore persists binary artifacts extracted from archives to
// addressable storage: a local directory tree or an S3-compatible bucket.
package filestore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/afero"

	"github.com/lootsift/lootsift/internal/config"
	ingesterrors "github.com/lootsift/lootsift/internal/errors"
)

// Store writes one artifact and returns the pointer recorded in the file
// row. Pointers are relative keys, interpretable by whichever backend wrote
// them.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64) (string, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._/ -]`)

// SanitizeKey converts an archive path into a storage-safe relative key:
// backslashes become separators, traversal segments and unsafe characters
// are replaced.
func SanitizeKey(raw string) string {
	key := strings.ReplaceAll(raw, "\\", "/")
	parts := strings.Split(key, "/")
	clean := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		clean = append(clean, unsafeKeyChars.ReplaceAllString(p, "_"))
	}
	if len(clean) == 0 {
		return "_"
	}
	return strings.Join(clean, "/")
}

// LocalStore writes artifacts under a root directory.
type LocalStore struct {
	fs   afero.Fs
	root string
}

// NewLocalStore creates a local artifact store rooted at root.
func NewLocalStore(fs afero.Fs, root string) (*LocalStore, error) {
	if err := fs.MkdirAll(root, 0o750); err != nil {
		return nil, ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to create artifact root %s", root)
	}
	return &LocalStore{fs: fs, root: root}, nil
}

// Save streams the artifact to disk and returns its relative key.
func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ingesterrors.Wrap(ingesterrors.KindCancelled, err, "artifact write aborted")
	}
	key = SanitizeKey(key)
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := s.fs.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to create artifact directory for %s", key)
	}

	f, err := s.fs.Create(full)
	if err != nil {
		return "", ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to create artifact %s", key)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = s.fs.Remove(full)
		return "", ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to write artifact %s", key)
	}
	return key, nil
}

// S3Store writes artifacts to an S3-compatible bucket via minio.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store connects to the configured S3-compatible endpoint and ensures
// the bucket exists.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client for %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Save uploads the artifact and returns its object key.
func (s *S3Store) Save(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	key = SanitizeKey(key)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to upload artifact %s", key)
	}
	return key, nil
}

// FromConfig builds the artifact store selected by configuration.
func FromConfig(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageBackendS3:
		return NewS3Store(ctx, cfg)
	default:
		return NewLocalStore(afero.NewOsFs(), cfg.LocalPath)
	}
}
