package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/types"
)

// ErrScopeLocked means a phase transition was attempted while the scope's
// status did not allow it, including the case of a run already in flight.
var ErrScopeLocked = errors.New("scope is locked by another run or phase")

type ScopeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, scope *types.Scope) (*types.Scope, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Scope, error)
	GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Scope, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Scope, error)
	// Transition moves the scope's status to `to` only if the current status
	// is one of `from`; otherwise it returns ErrScopeLocked. This
	// compare-and-set is the durable run lock.
	Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []string, to string) error
	SetLastRun(ctx context.Context, tx *gorm.DB, id uuid.UUID, runID uuid.UUID) error
	// ForceIdle is the administrative reset for a stuck run.
	ForceIdle(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type scopeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScopeRepo(db *gorm.DB, baseLog *logger.Logger) ScopeRepo {
	return &scopeRepo{
		db:  db,
		log: baseLog.With("repo", "ScopeRepo"),
	}
}

func (r *scopeRepo) Create(ctx context.Context, tx *gorm.DB, scope *types.Scope) (*types.Scope, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scope == nil {
		return nil, nil
	}
	if scope.ID == uuid.Nil {
		scope.ID = uuid.New()
	}
	if scope.Status == "" {
		scope.Status = types.ScopeIdle
	}
	if err := transaction.WithContext(ctx).Create(scope).Error; err != nil {
		return nil, err
	}
	return scope, nil
}

func (r *scopeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Scope, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var scope types.Scope
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&scope).Error
	if err != nil {
		return nil, err
	}
	if scope.ID == uuid.Nil {
		return nil, nil
	}
	return &scope, nil
}

func (r *scopeRepo) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Scope, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if key == "" {
		return nil, nil
	}
	var scope types.Scope
	err := transaction.WithContext(ctx).
		Where("key = ?", key).
		Limit(1).
		Find(&scope).Error
	if err != nil {
		return nil, err
	}
	if scope.ID == uuid.Nil {
		return nil, nil
	}
	return &scope, nil
}

func (r *scopeRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Scope, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Scope
	if err := transaction.WithContext(ctx).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *scopeRepo) Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []string, to string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || to == "" || len(from) == 0 {
		return ErrScopeLocked
	}
	res := transaction.WithContext(ctx).
		Model(&types.Scope{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrScopeLocked
	}
	return nil
}

func (r *scopeRepo) SetLastRun(ctx context.Context, tx *gorm.DB, id uuid.UUID, runID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || runID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Scope{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_run_id": runID,
			"updated_at":  time.Now(),
		}).Error
}

func (r *scopeRepo) ForceIdle(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	r.log.Warn("forcing scope back to idle", "scope_id", id)
	return transaction.WithContext(ctx).
		Model(&types.Scope{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     types.ScopeIdle,
			"updated_at": time.Now(),
		}).Error
}
