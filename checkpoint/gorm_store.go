package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/modelscope/agentscope-sub001/types"
)

// checkpointRecord is the relational row shape. State is stored as a JSON
// blob so the schema stays stable as the cache format evolves.
type checkpointRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	ThreadID  string    `gorm:"index:idx_thread_version,priority:1;size:128;not null"`
	RunID     string    `gorm:"size:64"`
	Version   int       `gorm:"index:idx_thread_version,priority:2;not null"`
	State     []byte    `gorm:"type:blob"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (checkpointRecord) TableName() string { return "workflow_checkpoints" }

// GormStore persists checkpoints in a relational database through GORM.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore creates the store and migrates its table.
func NewGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&checkpointRecord{}); err != nil {
		return nil, fmt.Errorf("migrate checkpoint table: %w", err)
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "checkpoint_gorm")),
	}, nil
}

func (s *GormStore) Save(ctx context.Context, cp *Checkpoint) error {
	state, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal checkpoint state: %w", err)
	}
	rec := checkpointRecord{
		ID:        cp.ID,
		ThreadID:  cp.ThreadID,
		RunID:     cp.RunID,
		Version:   cp.Version,
		State:     state,
		CreatedAt: cp.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.ID, err)
	}
	return nil
}

func (s *GormStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	var rec checkpointRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	return recordToCheckpoint(&rec)
}

func (s *GormStore) LoadLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	var rec checkpointRecord
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("version DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest for thread %s: %w", threadID, err)
	}
	return recordToCheckpoint(&rec)
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&checkpointRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete checkpoint %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func recordToCheckpoint(rec *checkpointRecord) (*Checkpoint, error) {
	state := &types.Snapshot{}
	if len(rec.State) > 0 {
		if err := json.Unmarshal(rec.State, state); err != nil {
			return nil, fmt.Errorf("decode checkpoint state: %w", err)
		}
	}
	return &Checkpoint{
		ID:        rec.ID,
		ThreadID:  rec.ThreadID,
		RunID:     rec.RunID,
		Version:   rec.Version,
		State:     state,
		CreatedAt: rec.CreatedAt,
	}, nil
}
