package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CuriosityPending    = "pending"
	CuriosityInProgress = "in_progress"
	CuriosityDone       = "done"
	CuriositySkipped    = "skipped"
	CuriosityFailed     = "failed"
	CuriosityAbandoned  = "abandoned"
)

// CuriosityOutcome tracks one (signal, tension) investigation pair across
// scheduling cycles. Attempts is carried in the row rather than in-process so
// the retry cap survives restarts; Abandoned and the success states are
// terminal.
type CuriosityOutcome struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ScopeID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"scope_id"`
	SignalID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_curiosity_pair" json:"signal_id"`
	TensionID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_curiosity_pair" json:"tension_id"`
	State         string         `gorm:"column:state;not null;default:pending;index" json:"state"`
	Attempts      int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError     string         `gorm:"column:last_error" json:"last_error,omitempty"`
	LastAttemptAt *time.Time     `gorm:"column:last_attempt_at" json:"last_attempt_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CuriosityOutcome) TableName() string { return "curiosity_outcome" }

func CuriosityTerminal(state string) bool {
	switch state {
	case CuriosityDone, CuriositySkipped, CuriosityAbandoned:
		return true
	default:
		return false
	}
}
