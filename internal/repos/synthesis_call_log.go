package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/types"
)

type SynthesisCallLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.SynthesisCallLog) (*types.SynthesisCallLog, error)
	ListByRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.SynthesisCallLog, error)
}

type synthesisCallLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSynthesisCallLogRepo(db *gorm.DB, baseLog *logger.Logger) SynthesisCallLogRepo {
	return &synthesisCallLogRepo{
		db:  db,
		log: baseLog.With("repo", "SynthesisCallLogRepo"),
	}
}

func (r *synthesisCallLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.SynthesisCallLog) (*types.SynthesisCallLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil || row.ScopeID == uuid.Nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *synthesisCallLogRepo) ListByRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.SynthesisCallLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if runID == uuid.Nil {
		return nil, nil
	}
	var out []*types.SynthesisCallLog
	err := transaction.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
