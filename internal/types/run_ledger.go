package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	LedgerActive   = "active"
	LedgerFinished = "finished"
)

// RunLedger is one run's spend ceiling. Spent only ever increases and is
// debited atomically, so the remaining budget is a monotonically-decreasing
// counter across the run.
type RunLedger struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ScopeID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"scope_id"`
	Budget     float64    `gorm:"column:budget;not null" json:"budget"`
	Spent      float64    `gorm:"column:spent;not null;default:0" json:"spent"`
	Status     string     `gorm:"column:status;not null;default:active;index" json:"status"` // active|finished
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}

func (RunLedger) TableName() string { return "run_ledger" }

func (l RunLedger) Remaining() float64 {
	r := l.Budget - l.Spent
	if r < 0 {
		return 0
	}
	return r
}
