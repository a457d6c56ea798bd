// Package checkpoint persists run snapshots across turns so a workflow can
// pause at a suspension boundary and resume in a later invocation. The
// snapshot format is the full global cache (node id -> status and results)
// plus the original turn's message list.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modelscope/agentscope-sub001/types"
)

// ErrNotFound is returned when no checkpoint matches the query.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is one persisted snapshot of a run, versioned per thread so a
// multi-turn conversation accumulates a resumable history.
type Checkpoint struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	RunID     string          `json:"run_id,omitempty"`
	Version   int             `json:"version"`
	State     *types.Snapshot `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is the storage interface for checkpoints.
type Store interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, id string) (*Checkpoint, error)
	LoadLatest(ctx context.Context, threadID string) (*Checkpoint, error)
	Delete(ctx context.Context, id string) error
}

// Manager wraps a Store with version bookkeeping.
type Manager struct {
	store  Store
	logger *zap.Logger
}

// NewManager creates a checkpoint manager.
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		logger: logger.With(zap.String("component", "checkpoint_manager")),
	}
}

// Create persists a new checkpoint for the thread, assigning the next
// version number.
func (m *Manager) Create(ctx context.Context, threadID, runID string, state *types.Snapshot) (*Checkpoint, error) {
	version := 1
	if latest, err := m.store.LoadLatest(ctx, threadID); err == nil && latest != nil {
		version = latest.Version + 1
	}

	cp := &Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		RunID:     runID,
		Version:   version,
		State:     state,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Save(ctx, cp); err != nil {
		return nil, err
	}

	m.logger.Info("checkpoint created",
		zap.String("id", cp.ID),
		zap.String("thread_id", threadID),
		zap.Int("version", version),
	)
	return cp, nil
}

// Resume loads the thread's latest checkpoint state.
func (m *Manager) Resume(ctx context.Context, threadID string) (*types.Snapshot, error) {
	cp, err := m.store.LoadLatest(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return cp.State, nil
}
