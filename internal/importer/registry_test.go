package importer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryStartAndCancel(t *testing.T) {
	r := NewRegistry(2)

	started := make(chan struct{})
	var sawCancel atomic.Bool
	require.NoError(t, r.Start("job-1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	}))

	<-started
	assert.True(t, r.IsRunning("job-1"))
	assert.Equal(t, 1, r.Running())

	assert.True(t, r.Cancel("job-1"))
	<-r.Wait("job-1")
	assert.True(t, sawCancel.Load())
	assert.False(t, r.IsRunning("job-1"))
}

func TestRegistryRejectsDuplicateJob(t *testing.T) {
	r := NewRegistry(2)

	release := make(chan struct{})
	require.NoError(t, r.Start("job-1", func(ctx context.Context) { <-release }))
	require.Error(t, r.Start("job-1", func(ctx context.Context) {}))

	close(release)
	<-r.Wait("job-1")
}

func TestRegistryAdmissionGate(t *testing.T) {
	r := NewRegistry(1)

	release := make(chan struct{})
	holding := make(chan struct{})
	require.NoError(t, r.Start("job-1", func(ctx context.Context) {
		close(holding)
		<-release
	}))
	// run only executes once the slot is acquired, so after this receive
	// job-1 definitely holds it and job-2 must queue behind it.
	<-holding

	secondRan := make(chan struct{})
	require.NoError(t, r.Start("job-2", func(ctx context.Context) {
		if ctx.Err() == nil {
			close(secondRan)
		}
	}))

	// job-2 is queued behind the single slot.
	select {
	case <-secondRan:
		t.Fatal("second job ran before the slot was free")
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, r.IsRunning("job-2"))

	close(release)
	select {
	case <-secondRan:
	case <-time.After(2 * time.Second):
		t.Fatal("second job never ran after the slot was freed")
	}
	<-r.Wait("job-2")
}

func TestRegistryCancelWhileQueued(t *testing.T) {
	r := NewRegistry(1)

	release := make(chan struct{})
	defer close(release)
	holding := make(chan struct{})
	require.NoError(t, r.Start("job-1", func(ctx context.Context) {
		close(holding)
		<-release
	}))
	<-holding

	gotDeadCtx := make(chan bool, 1)
	require.NoError(t, r.Start("job-2", func(ctx context.Context) {
		gotDeadCtx <- ctx.Err() != nil
	}))

	require.True(t, r.Cancel("job-2"))
	select {
	case dead := <-gotDeadCtx:
		assert.True(t, dead, "queued job should run with an already-cancelled context")
	case <-time.After(2 * time.Second):
		t.Fatal("queued job runner never exited")
	}

	assert.False(t, r.Cancel("missing"))
}

func TestRegistryWaitUnknownJob(t *testing.T) {
	r := NewRegistry(1)
	select {
	case <-r.Wait("missing"):
	default:
		t.Fatal("wait on unknown job should be closed")
	}
}
