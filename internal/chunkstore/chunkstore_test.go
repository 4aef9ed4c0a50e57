package chunkstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesterrors "github.com/lootsift/lootsift/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(afero.NewMemMapFs(), "/chunks")
	require.NoError(t, err)
	return store
}

func writeChunk(t *testing.T, s *Store, fileID string, index int, data string) {
	t.Helper()
	n, err := s.WriteChunk(context.Background(), fileID, index, strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
}

func TestCompleteness(t *testing.T) {
	s := newTestStore(t)

	// size 10, chunk size 3 -> ceil(10/3) = 4 chunks
	total := 4
	for _, idx := range []int{2, 0, 3} {
		writeChunk(t, s, "file-1", idx, fmt.Sprintf("c%d-", idx))
	}

	ok, err := s.IsComplete("file-1", total)
	require.NoError(t, err)
	assert.False(t, ok)

	// Rewriting present indices must not make the set complete.
	writeChunk(t, s, "file-1", 0, "c0-")
	writeChunk(t, s, "file-1", 2, "c2-")
	ok, err = s.IsComplete("file-1", total)
	require.NoError(t, err)
	assert.False(t, ok)

	writeChunk(t, s, "file-1", 1, "c1-")
	ok, err = s.IsComplete("file-1", total)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAssembleDeterminism(t *testing.T) {
	ctx := context.Background()
	chunks := []string{"alpha-", "bravo-", "charlie-", "delta"}

	assemble := func(order []int) []byte {
		s := newTestStore(t)
		for _, idx := range order {
			writeChunk(t, s, "f", idx, chunks[idx])
		}
		n, err := s.Assemble(ctx, "f", len(chunks), "/out.zip")
		require.NoError(t, err)
		data, err := afero.ReadFile(s.fs, "/out.zip")
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), n)
		return data
	}

	forward := assemble([]int{0, 1, 2, 3})
	reverse := assemble([]int{3, 2, 1, 0})
	interleaved := assemble([]int{1, 3, 0, 2})

	assert.True(t, bytes.Equal(forward, reverse))
	assert.True(t, bytes.Equal(forward, interleaved))
	assert.Equal(t, "alpha-bravo-charlie-delta", string(forward))
}

func TestAssembleIncomplete(t *testing.T) {
	s := newTestStore(t)
	writeChunk(t, s, "f", 0, "aa")
	writeChunk(t, s, "f", 2, "cc")

	_, err := s.Assemble(context.Background(), "f", 3, "/out.zip")
	require.Error(t, err)
	assert.True(t, ingesterrors.Is(err, ingesterrors.KindIncompleteUpload))
	assert.Contains(t, err.Error(), "index 1")

	// Fragments survive a failed assembly so the upload can resume.
	missing, err := s.MissingChunks("f", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, missing)
}

func TestAssembleRemovesFragments(t *testing.T) {
	s := newTestStore(t)
	writeChunk(t, s, "f", 0, "data")

	_, err := s.Assemble(context.Background(), "f", 1, "/out.zip")
	require.NoError(t, err)

	exists, err := afero.DirExists(s.fs, "/chunks/f")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRewriteOverwrites(t *testing.T) {
	s := newTestStore(t)
	writeChunk(t, s, "f", 0, "old-bytes")
	writeChunk(t, s, "f", 0, "new")

	_, err := s.Assemble(context.Background(), "f", 1, "/out.zip")
	require.NoError(t, err)
	data, err := afero.ReadFile(s.fs, "/out.zip")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestConcurrentRewritesPublishWholeFragment(t *testing.T) {
	s := newTestStore(t)

	// Every writer rewrites index 0 with its own distinct payload. The
	// surviving fragment must be exactly one writer's bytes, never a blend.
	const writers = 8
	payloads := make([]string, writers)
	for i := range payloads {
		payloads[i] = fmt.Sprintf("writer-%d-%s", i, strings.Repeat("x", 256))
	}

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := s.WriteChunk(context.Background(), "f", 0, strings.NewReader(p))
			assert.NoError(t, err)
		}(payloads[i])
	}
	wg.Wait()

	_, err := s.Assemble(context.Background(), "f", 1, "/out.zip")
	require.NoError(t, err)
	data, err := afero.ReadFile(s.fs, "/out.zip")
	require.NoError(t, err)
	assert.Contains(t, payloads, string(data))
}

func TestInvalidFileID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.WriteChunk(context.Background(), "../escape", 0, strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, ingesterrors.Is(err, ingesterrors.KindValidation))
}

func TestSweepExpired(t *testing.T) {
	s := newTestStore(t)
	writeChunk(t, s, "old", 0, "x")
	writeChunk(t, s, "fresh", 0, "y")

	// Backdate the old chunk set.
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.fs.Chtimes("/chunks/old", old, old))
	require.NoError(t, s.fs.Chtimes("/chunks/old/chunk_000000.part", old, old))

	removed := s.SweepExpired(context.Background(), 24*time.Hour)
	assert.Equal(t, 1, removed)

	exists, _ := afero.DirExists(s.fs, "/chunks/old")
	assert.False(t, exists)
	exists, _ = afero.DirExists(s.fs, "/chunks/fresh")
	assert.True(t, exists)
}
