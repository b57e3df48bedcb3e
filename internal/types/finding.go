package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FindingOpen      = "open"
	FindingDismissed = "dismissed"

	FindingKindCoverageGap   = "coverage_gap"
	FindingKindInconsistency = "structural_inconsistency"
)

// Finding is a supervisor-facing issue surfaced for human triage, e.g. a
// batch of abandoned investigations or a story found with no contained
// signals. The engine produces findings; it never consumes them.
type Finding struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ScopeID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"scope_id"`
	Kind      string         `gorm:"column:kind;not null;index" json:"kind"`
	Status    string         `gorm:"column:status;not null;default:open;index" json:"status"`
	Detail    string         `gorm:"column:detail;not null" json:"detail"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Finding) TableName() string { return "finding" }
