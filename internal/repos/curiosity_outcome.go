package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/types"
)

type CuriosityOutcomeRepo interface {
	// EnsurePair creates a pending row for the (signal, tension) pair if none
	// exists. The unique index makes this safe to call on every run.
	EnsurePair(ctx context.Context, tx *gorm.DB, scopeID, signalID, tensionID uuid.UUID) error
	GetPair(ctx context.Context, tx *gorm.DB, signalID, tensionID uuid.UUID) (*types.CuriosityOutcome, error)
	// ListActionable returns pairs that may be attempted this run: pending, or
	// failed with attempts below the cap. Terminal states never come back.
	ListActionable(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, maxAttempts, limit int) ([]*types.CuriosityOutcome, error)
	// MarkInProgress claims the pair for this worker. A false return means the
	// row was not claimable (already in progress, or moved to a terminal
	// state) and the caller must not attempt it.
	MarkInProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	// RecoverInterrupted returns rows stranded in in_progress by a crash to
	// pending. Safe to call whenever the caller holds the scope's run lock,
	// since the lock guarantees no live worker owns them.
	RecoverInterrupted(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID) (int64, error)
	MarkTerminal(ctx context.Context, tx *gorm.DB, id uuid.UUID, state string) error
	// RecordFailure bumps the attempt counter and moves the pair to failed, or
	// to abandoned once attempts reach maxAttempts.
	RecordFailure(ctx context.Context, tx *gorm.DB, id uuid.UUID, callErr string, maxAttempts int) (abandoned bool, err error)
	CountByState(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, state string) (int64, error)
}

type curiosityOutcomeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCuriosityOutcomeRepo(db *gorm.DB, baseLog *logger.Logger) CuriosityOutcomeRepo {
	return &curiosityOutcomeRepo{
		db:  db,
		log: baseLog.With("repo", "CuriosityOutcomeRepo"),
	}
}

func (r *curiosityOutcomeRepo) EnsurePair(ctx context.Context, tx *gorm.DB, scopeID, signalID, tensionID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scopeID == uuid.Nil || signalID == uuid.Nil || tensionID == uuid.Nil {
		return nil
	}
	row := &types.CuriosityOutcome{
		ID:        uuid.New(),
		ScopeID:   scopeID,
		SignalID:  signalID,
		TensionID: tensionID,
		State:     types.CuriosityPending,
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "signal_id"}, {Name: "tension_id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *curiosityOutcomeRepo) GetPair(ctx context.Context, tx *gorm.DB, signalID, tensionID uuid.UUID) (*types.CuriosityOutcome, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if signalID == uuid.Nil || tensionID == uuid.Nil {
		return nil, nil
	}
	var row types.CuriosityOutcome
	err := transaction.WithContext(ctx).
		Where("signal_id = ? AND tension_id = ?", signalID, tensionID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *curiosityOutcomeRepo) ListActionable(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, maxAttempts, limit int) ([]*types.CuriosityOutcome, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scopeID == uuid.Nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	var out []*types.CuriosityOutcome
	err := transaction.WithContext(ctx).
		Where("scope_id = ? AND (state = ? OR (state = ? AND attempts < ?))",
			scopeID, types.CuriosityPending, types.CuriosityFailed, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *curiosityOutcomeRepo) MarkInProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.CuriosityOutcome{}).
		Where("id = ? AND state IN ?", id, []string{types.CuriosityPending, types.CuriosityFailed}).
		Updates(map[string]interface{}{
			"state":           types.CuriosityInProgress,
			"last_attempt_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *curiosityOutcomeRepo) RecoverInterrupted(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scopeID == uuid.Nil {
		return 0, nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.CuriosityOutcome{}).
		Where("scope_id = ? AND state = ?", scopeID, types.CuriosityInProgress).
		Updates(map[string]interface{}{
			"state":      types.CuriosityPending,
			"last_error": "interrupted",
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Warn("recovered interrupted curiosity pairs", "scope_id", scopeID, "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func (r *curiosityOutcomeRepo) MarkTerminal(ctx context.Context, tx *gorm.DB, id uuid.UUID, state string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || !types.CuriosityTerminal(state) {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.CuriosityOutcome{}).
		Where("id = ? AND state = ?", id, types.CuriosityInProgress).
		Updates(map[string]interface{}{
			"state":      state,
			"last_error": "",
			"updated_at": time.Now(),
		}).Error
}

func (r *curiosityOutcomeRepo) RecordFailure(ctx context.Context, tx *gorm.DB, id uuid.UUID, callErr string, maxAttempts int) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	var abandoned bool
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var row types.CuriosityOutcome
		if err := txx.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
			return err
		}
		if row.ID == uuid.Nil {
			return nil
		}
		attempts := row.Attempts + 1
		state := types.CuriosityFailed
		if attempts >= maxAttempts {
			state = types.CuriosityAbandoned
			abandoned = true
		}
		return txx.Model(&types.CuriosityOutcome{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"state":      state,
				"attempts":   attempts,
				"last_error": callErr,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return false, err
	}
	return abandoned, nil
}

func (r *curiosityOutcomeRepo) CountByState(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, state string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scopeID == uuid.Nil || state == "" {
		return 0, nil
	}
	var n int64
	err := transaction.WithContext(ctx).
		Model(&types.CuriosityOutcome{}).
		Where("scope_id = ? AND state = ?", scopeID, state).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}
