package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scope status strings double as the per-scope run lock: any "running_*"
// status means a run owns the scope and further phase starts must fail fast.
const (
	ScopeIdle               = "idle"
	ScopeRunningReconcile   = "running_reconcile"
	ScopeReconcileComplete  = "reconcile_complete"
	ScopeRunningWeave       = "running_weave"
	ScopeWeaveComplete      = "weave_complete"
	ScopeRunningCuriosity   = "running_curiosity"
	ScopeCuriosityComplete  = "curiosity_complete"
	ScopeRunningEnrichment  = "running_enrichment"
	ScopeEnrichmentComplete = "enrichment_complete"
)

type Scope struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Key       string         `gorm:"column:key;not null;uniqueIndex" json:"key"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Status    string         `gorm:"column:status;not null;default:idle;index" json:"status"`
	LastRunID *uuid.UUID     `gorm:"type:uuid" json:"last_run_id,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Scope) TableName() string { return "scope" }

func ScopeRunning(status string) bool {
	switch status {
	case ScopeRunningReconcile, ScopeRunningWeave, ScopeRunningCuriosity, ScopeRunningEnrichment:
		return true
	default:
		return false
	}
}
