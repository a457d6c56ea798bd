package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelscope/agentscope-sub001/types"
)

func snapshotWith(nodeID string) *types.Snapshot {
	return &types.Snapshot{
		Entries: map[string]*types.NodeCacheEntry{
			nodeID: {Status: types.StatusSucceeded},
		},
		Messages: []types.Message{types.NewUserMessage("hello")},
	}
}

func TestManager_CreateAssignsIncreasingVersions(t *testing.T) {
	m := NewManager(NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	cp1, err := m.Create(ctx, "thread-1", "run-1", snapshotWith("a"))
	require.NoError(t, err)
	cp2, err := m.Create(ctx, "thread-1", "run-2", snapshotWith("b"))
	require.NoError(t, err)
	other, err := m.Create(ctx, "thread-2", "run-3", snapshotWith("c"))
	require.NoError(t, err)

	assert.Equal(t, 1, cp1.Version)
	assert.Equal(t, 2, cp2.Version)
	assert.Equal(t, 1, other.Version, "versions are per thread")
	assert.NotEmpty(t, cp1.ID)
	assert.NotEqual(t, cp1.ID, cp2.ID)
	assert.False(t, cp1.CreatedAt.IsZero())
}

func TestManager_ResumeReturnsLatestState(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := m.Create(ctx, "thread-1", "run-1", snapshotWith("a"))
	require.NoError(t, err)
	_, err = m.Create(ctx, "thread-1", "run-2", snapshotWith("b"))
	require.NoError(t, err)

	snap, err := m.Resume(ctx, "thread-1")
	require.NoError(t, err)
	assert.Contains(t, snap.Entries, "b")

	_, err = m.Resume(ctx, "no-such-thread")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_LoadAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	cp := &Checkpoint{ID: "cp-1", ThreadID: "t", Version: 1, State: snapshotWith("a")}
	require.NoError(t, s.Save(ctx, cp))

	got, err := s.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp, got)

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "cp-1"))
	_, err = s.Load(ctx, "cp-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "cp-1"), ErrNotFound)
}

func TestMemoryStore_DeleteLatestFallsBackToPrevious(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	v1 := &Checkpoint{ID: "cp-1", ThreadID: "t", Version: 1, State: snapshotWith("a")}
	v2 := &Checkpoint{ID: "cp-2", ThreadID: "t", Version: 2, State: snapshotWith("b")}
	require.NoError(t, s.Save(ctx, v1))
	require.NoError(t, s.Save(ctx, v2))

	require.NoError(t, s.Delete(ctx, "cp-2"))

	latest, err := s.LoadLatest(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "cp-1", latest.ID)

	require.NoError(t, s.Delete(ctx, "cp-1"))
	_, err = s.LoadLatest(ctx, "t")
	assert.ErrorIs(t, err, ErrNotFound)
}
