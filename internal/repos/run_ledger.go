package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/types"
)

type RunLedgerRepo interface {
	Start(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, budget float64) (*types.RunLedger, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RunLedger, error)
	GetActiveByScope(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID) (*types.RunLedger, error)
	// TryDebit records spend atomically and reports whether the ledger had
	// room. A false return means budget exhaustion, not an error.
	TryDebit(ctx context.Context, tx *gorm.DB, id uuid.UUID, cost float64) (bool, error)
	Finish(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type runLedgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunLedgerRepo(db *gorm.DB, baseLog *logger.Logger) RunLedgerRepo {
	return &runLedgerRepo{
		db:  db,
		log: baseLog.With("repo", "RunLedgerRepo"),
	}
}

func (r *runLedgerRepo) Start(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, budget float64) (*types.RunLedger, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scopeID == uuid.Nil {
		return nil, nil
	}
	if budget < 0 {
		budget = 0
	}
	ledger := &types.RunLedger{
		ID:        uuid.New(),
		ScopeID:   scopeID,
		Budget:    budget,
		Spent:     0,
		Status:    types.LedgerActive,
		StartedAt: time.Now(),
	}
	if err := transaction.WithContext(ctx).Create(ledger).Error; err != nil {
		return nil, err
	}
	return ledger, nil
}

func (r *runLedgerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RunLedger, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var ledger types.RunLedger
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&ledger).Error
	if err != nil {
		return nil, err
	}
	if ledger.ID == uuid.Nil {
		return nil, nil
	}
	return &ledger, nil
}

func (r *runLedgerRepo) GetActiveByScope(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID) (*types.RunLedger, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scopeID == uuid.Nil {
		return nil, nil
	}
	var ledger types.RunLedger
	err := transaction.WithContext(ctx).
		Where("scope_id = ? AND status = ?", scopeID, types.LedgerActive).
		Order("started_at DESC").
		Limit(1).
		Find(&ledger).Error
	if err != nil {
		return nil, err
	}
	if ledger.ID == uuid.Nil {
		return nil, nil
	}
	return &ledger, nil
}

func (r *runLedgerRepo) TryDebit(ctx context.Context, tx *gorm.DB, id uuid.UUID, cost float64) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || cost <= 0 {
		return false, nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.RunLedger{}).
		Where("id = ? AND status = ? AND spent + ? <= budget", id, types.LedgerActive, cost).
		Updates(map[string]interface{}{
			"spent":      gorm.Expr("spent + ?", cost),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *runLedgerRepo) Finish(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.RunLedger{}).
		Where("id = ? AND status = ?", id, types.LedgerActive).
		Updates(map[string]interface{}{
			"status":      types.LedgerFinished,
			"finished_at": now,
			"updated_at":  now,
		}).Error
}
