// Package chunkstore provides durable temporary storage for chunked uploads.
// Each file-in-flight owns a fragment directory; chunks are index-addressed
// so out-of-order and concurrent arrival are correctness-preserving.
package chunkstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/afero"

	ingesterrors "github.com/lootsift/lootsift/internal/errors"
)

var validFileID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Store keeps uploaded chunks under root, one directory per file id.
type Store struct {
	fs   afero.Fs
	root string
	log  *slog.Logger
}

// New creates a chunk store rooted at root on the given filesystem.
func New(fs afero.Fs, root string) (*Store, error) {
	if err := fs.MkdirAll(root, 0o750); err != nil {
		return nil, ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to create chunk root %s", root)
	}
	return &Store{
		fs:   fs,
		root: root,
		log:  slog.Default().With("component", "chunkstore"),
	}, nil
}

func (s *Store) fileDir(fileID string) string {
	return filepath.Join(s.root, fileID)
}

func (s *Store) chunkPath(fileID string, index int) string {
	return filepath.Join(s.fileDir(fileID), fmt.Sprintf("chunk_%06d.part", index))
}

func checkFileID(fileID string) error {
	if !validFileID.MatchString(fileID) {
		return ingesterrors.New(ingesterrors.KindValidation, "invalid file id %q", fileID)
	}
	return nil
}

// WriteChunk stores one byte range at its index. Rewriting an index
// overwrites the previous fragment, making retries idempotent. Transient
// write failures are retried once.
func (s *Store) WriteChunk(ctx context.Context, fileID string, index int, r io.Reader) (int64, error) {
	if err := checkFileID(fileID); err != nil {
		return 0, err
	}
	if index < 0 {
		return 0, ingesterrors.New(ingesterrors.KindValidation, "chunk index %d out of range", index)
	}
	if err := s.fs.MkdirAll(s.fileDir(fileID), 0o750); err != nil {
		return 0, ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to create chunk directory for %s", fileID)
	}

	// Buffer the chunk once so the retry writes identical bytes even when
	// the reader is a network body that cannot be rewound.
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to read chunk %d of %s", index, fileID)
	}

	final := s.chunkPath(fileID, index)
	err = retry.Do(
		func() error {
			// Each attempt writes its own temp file, so concurrent
			// rewrites of the same index only race at the rename and the
			// published fragment is always one writer's complete bytes.
			tmp, err := afero.TempFile(s.fs, s.fileDir(fileID), fmt.Sprintf("chunk_%06d_*.tmp", index))
			if err != nil {
				return err
			}
			name := tmp.Name()
			if _, err := tmp.Write(data); err != nil {
				tmp.Close()
				_ = s.fs.Remove(name)
				return err
			}
			if err := tmp.Close(); err != nil {
				_ = s.fs.Remove(name)
				return err
			}
			if err := s.fs.Rename(name, final); err != nil {
				_ = s.fs.Remove(name)
				return err
			}
			return nil
		},
		retry.Attempts(2),
		retry.Delay(50*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return 0, ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to write chunk %d of %s", index, fileID)
	}
	return int64(len(data)), nil
}

// IsComplete reports whether every index in [0, totalChunks) is present.
func (s *Store) IsComplete(fileID string, totalChunks int) (bool, error) {
	missing, err := s.MissingChunks(fileID, totalChunks)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// MissingChunks returns the indices in [0, totalChunks) not yet received.
func (s *Store) MissingChunks(fileID string, totalChunks int) ([]int, error) {
	if err := checkFileID(fileID); err != nil {
		return nil, err
	}
	var missing []int
	for i := 0; i < totalChunks; i++ {
		if _, err := s.fs.Stat(s.chunkPath(fileID, i)); err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, i)
				continue
			}
			return nil, ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to stat chunk %d of %s", i, fileID)
		}
	}
	return missing, nil
}

// Assemble concatenates all chunks in index order into destinationPath and
// removes the fragments on success. Fragments are left in place on failure so
// the upload can resume.
func (s *Store) Assemble(ctx context.Context, fileID string, totalChunks int, destinationPath string) (int64, error) {
	missing, err := s.MissingChunks(fileID, totalChunks)
	if err != nil {
		return 0, err
	}
	if len(missing) > 0 {
		return 0, ingesterrors.New(ingesterrors.KindIncompleteUpload,
			"upload %s is incomplete: %d of %d chunks missing (first missing index %d)",
			fileID, len(missing), totalChunks, missing[0])
	}

	dst, err := s.fs.OpenFile(destinationPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to create assembly target %s", destinationPath)
	}
	defer dst.Close()

	var total int64
	for i := 0; i < totalChunks; i++ {
		if err := ctx.Err(); err != nil {
			return total, ingesterrors.Wrap(ingesterrors.KindCancelled, err, "assembly of %s aborted", fileID)
		}
		src, err := s.fs.Open(s.chunkPath(fileID, i))
		if err != nil {
			return total, ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to open chunk %d of %s", i, fileID)
		}
		n, err := io.Copy(dst, src)
		src.Close()
		total += n
		if err != nil {
			return total, ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to append chunk %d of %s", i, fileID)
		}
	}

	if err := s.Discard(fileID); err != nil {
		// Assembly succeeded; leftover fragments are picked up by the sweep.
		s.log.Warn("failed to remove assembled chunk fragments", "file_id", fileID, "error", err)
	}
	return total, nil
}

// Discard removes all fragments for a file id.
func (s *Store) Discard(fileID string) error {
	if err := checkFileID(fileID); err != nil {
		return err
	}
	if err := s.fs.RemoveAll(s.fileDir(fileID)); err != nil {
		return ingesterrors.Wrap(ingesterrors.KindStorage, err, "failed to discard chunks for %s", fileID)
	}
	return nil
}

// SweepExpired deletes chunk sets whose newest fragment is older than maxAge.
// Individual failures are logged and never fatal. It returns the number of
// chunk sets removed.
func (s *Store) SweepExpired(ctx context.Context, maxAge time.Duration) int {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		s.log.Warn("chunk sweep could not read root", "root", s.root, "error", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed
		}
		if !entry.IsDir() && !strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		newest := entry.ModTime()
		if entry.IsDir() {
			if frags, err := afero.ReadDir(s.fs, filepath.Join(s.root, entry.Name())); err == nil {
				for _, f := range frags {
					if f.ModTime().After(newest) {
						newest = f.ModTime()
					}
				}
			}
		}
		if newest.After(cutoff) {
			continue
		}
		if err := s.fs.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil {
			s.log.Warn("failed to sweep expired chunk set", "name", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("swept expired chunk sets", "removed", removed, "max_age", maxAge)
	}
	return removed
}
