package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_FlushesAtThreshold(t *testing.T) {
	ctx := context.Background()
	var batches [][]int
	w := NewWriter("test", 3, func(_ context.Context, rows []int) error {
		batch := make([]int, len(rows))
		copy(batch, rows)
		batches = append(batches, batch)
		return nil
	})

	for i := 1; i <= 7; i++ {
		w.Add(ctx, i)
	}
	assert.Len(t, batches, 2)
	assert.Equal(t, []int{1, 2, 3}, batches[0])
	assert.Equal(t, []int{4, 5, 6}, batches[1])
	assert.Equal(t, 1, w.Pending())

	w.Flush(ctx)
	assert.Len(t, batches, 3)
	assert.Equal(t, []int{7}, batches[2])
	assert.Equal(t, 7, w.Flushed())
	assert.Equal(t, 0, w.Pending())
}

func TestWriter_FailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	calls := 0
	w := NewWriter("test", 2, func(_ context.Context, rows []int) error {
		calls++
		if rows[0] == 1 {
			return errors.New("disk on fire")
		}
		return nil
	})

	w.Add(ctx, 1)
	w.Add(ctx, 2) // first batch fails (twice, via retry)
	w.Add(ctx, 3)
	w.Add(ctx, 4) // second batch succeeds

	assert.Equal(t, 1, w.FailedBatches())
	assert.Equal(t, 2, w.Flushed())
	assert.GreaterOrEqual(t, calls, 3)
}

func TestWriter_EmptyFlushIsNoOp(t *testing.T) {
	calls := 0
	w := NewWriter("test", 2, func(_ context.Context, rows []int) error {
		calls++
		return nil
	})
	w.Flush(context.Background())
	assert.Zero(t, calls)
}
