package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/types"
)

type FindingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, finding *types.Finding) (*types.Finding, error)
	List(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, status string, limit int) ([]*types.Finding, error)
	ExistsOpen(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, kind, detail string) (bool, error)
	Dismiss(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type findingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFindingRepo(db *gorm.DB, baseLog *logger.Logger) FindingRepo {
	return &findingRepo{
		db:  db,
		log: baseLog.With("repo", "FindingRepo"),
	}
}

func (r *findingRepo) Create(ctx context.Context, tx *gorm.DB, finding *types.Finding) (*types.Finding, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if finding == nil || finding.ScopeID == uuid.Nil {
		return nil, nil
	}
	if finding.ID == uuid.Nil {
		finding.ID = uuid.New()
	}
	if finding.Status == "" {
		finding.Status = types.FindingOpen
	}
	if err := transaction.WithContext(ctx).Create(finding).Error; err != nil {
		return nil, err
	}
	return finding, nil
}

func (r *findingRepo) List(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, status string, limit int) ([]*types.Finding, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scopeID == uuid.Nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	q := transaction.WithContext(ctx).
		Where("scope_id = ?", scopeID).
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*types.Finding
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ExistsOpen reports whether an open finding with the same kind and detail is
// already filed, so scans re-run every cycle do not pile up duplicates.
func (r *findingRepo) ExistsOpen(ctx context.Context, tx *gorm.DB, scopeID uuid.UUID, kind, detail string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if scopeID == uuid.Nil {
		return false, nil
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Finding{}).
		Where("scope_id = ? AND kind = ? AND detail = ? AND status = ?", scopeID, kind, detail, types.FindingOpen).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *findingRepo) Dismiss(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Finding{}).
		Where("id = ? AND status = ?", id, types.FindingOpen).
		Updates(map[string]interface{}{
			"status":     types.FindingDismissed,
			"updated_at": time.Now(),
		}).Error
}
