package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SignalType string

const (
	SignalGathering SignalType = "gathering"
	SignalAid       SignalType = "aid"
	SignalNeed      SignalType = "need"
	SignalNotice    SignalType = "notice"
	SignalTension   SignalType = "tension"
)

func ParseSignalType(s string) (SignalType, bool) {
	switch SignalType(strings.ToLower(strings.TrimSpace(s))) {
	case SignalGathering:
		return SignalGathering, true
	case SignalAid:
		return SignalAid, true
	case SignalNeed:
		return SignalNeed, true
	case SignalNotice:
		return SignalNotice, true
	case SignalTension:
		return SignalTension, true
	default:
		return "", false
	}
}

// Signal is an observation node in the graph. Immutable after creation except
// for confidence, evidence URLs and the superseded flag.
type Signal struct {
	ID                 uuid.UUID  `json:"id"`
	ScopeID            uuid.UUID  `json:"scope_id"`
	Type               SignalType `json:"type"`
	Title              string     `json:"title"`
	Summary            string     `json:"summary"`
	Confidence         float64    `json:"confidence"`
	SourceURL          string     `json:"source_url"`
	SourceDomain       string     `json:"source_domain"`
	EvidenceURLs       []string   `json:"evidence_urls,omitempty"`
	CorroborationCount int        `json:"corroboration_count"`
	ContentDate        time.Time  `json:"content_date"`
	Actors             []string   `json:"actors,omitempty"`
	Superseded         bool       `json:"superseded"`
}

// CandidateSignal is what the extraction service hands to the reconciler:
// a signal payload plus its embedding, before any identity has been assigned.
type CandidateSignal struct {
	ScopeID     uuid.UUID  `json:"scope_id"`
	Type        SignalType `json:"type"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Confidence  float64    `json:"confidence"`
	Embedding   []float32  `json:"embedding"`
	SourceURL   string     `json:"source_url"`
	ContentDate time.Time  `json:"content_date"`
	Actors      []string   `json:"actors,omitempty"`
}

type ReconcileDecision string

const (
	ReconcileCreated      ReconcileDecision = "created"
	ReconcileDeduplicated ReconcileDecision = "deduplicated"
	ReconcileCorroborated ReconcileDecision = "corroborated"
)

// ReconcileOutcome reports what the reconciler did with one candidate.
// SignalID is the new node for Created, and the existing node for
// Deduplicated and Corroborated.
type ReconcileOutcome struct {
	Decision   ReconcileDecision `json:"decision"`
	SignalID   uuid.UUID         `json:"signal_id"`
	Similarity float64           `json:"similarity,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
}
