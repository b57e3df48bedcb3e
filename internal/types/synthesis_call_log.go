package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CallTypeInvestigation = "investigation"
	CallTypeSynthesis     = "synthesis"
)

// SynthesisCallLog is the audit row for every external investigation or
// synthesis call, successful or not. Cost rows roll up into the run ledger.
type SynthesisCallLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ScopeID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"scope_id"`
	RunID     *uuid.UUID     `gorm:"type:uuid;index" json:"run_id,omitempty"`
	TargetID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"target_id"`
	CallType  string         `gorm:"column:call_type;not null" json:"call_type"`
	Prompt    string         `gorm:"column:prompt" json:"prompt"`
	Response  string         `gorm:"column:response" json:"response"`
	Success   bool           `gorm:"column:success;not null" json:"success"`
	Error     string         `gorm:"column:error" json:"error"`
	Cost      float64        `gorm:"column:cost;not null;default:0" json:"cost"`
	Usage     datatypes.JSON `gorm:"type:jsonb;column:usage" json:"usage,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (SynthesisCallLog) TableName() string { return "synthesis_call_log" }
