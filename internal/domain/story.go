package domain

import (
	"time"

	"github.com/google/uuid"
)

type Arc string

const (
	ArcEmerging  Arc = "emerging"
	ArcGrowing   Arc = "growing"
	ArcStable    Arc = "stable"
	ArcFading    Arc = "fading"
	ArcResurgent Arc = "resurgent"
	ArcCold      Arc = "cold"
)

// Quiet reports whether the arc means the story had gone silent. A new arrival
// on a quiet story is what produces Resurgent.
func (a Arc) Quiet() bool {
	return a == ArcFading || a == ArcCold
}

// Story is a materialized view of one tension plus its responding signals.
// Derived data: it can always be regenerated from the tension and its
// RESPONDS_TO edges, and is never hard-deleted by the engine.
type Story struct {
	ID                uuid.UUID `json:"id"`
	ScopeID           uuid.UUID `json:"scope_id"`
	TensionID         uuid.UUID `json:"tension_id"`
	Headline          string    `json:"headline"`
	Summary           string    `json:"summary"`
	Lede              string    `json:"lede,omitempty"`
	Narrative         string    `json:"narrative,omitempty"`
	Arc               Arc       `json:"arc"`
	Energy            float64   `json:"energy"`
	SignalCount       int       `json:"signal_count"`
	TypeDiversity     int       `json:"type_diversity"`
	SourceDomainCount int       `json:"source_domain_count"`
	SynthesisPending  bool      `json:"synthesis_pending"`
	NeedsRefinement   bool      `json:"needs_refinement"`

	// Arc bookkeeping carried on the node so classification survives restarts.
	ActiveRuns       int       `json:"active_runs"`
	RunsSinceArrival int       `json:"runs_since_arrival"`
	LastArrivalRate  int       `json:"last_arrival_rate"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StorySignals pairs a story id with the set of signal ids it contains,
// used by the absorption overlap check before materializing.
type StorySignals struct {
	StoryID   uuid.UUID
	TensionID uuid.UUID
	SignalIDs []uuid.UUID
}

// Overlap returns the fraction of ids shared with the story's signal set.
// The denominator is always len(ids): absorption asks how much of the
// candidate hub an existing story already covers, so a small story can never
// swallow a much larger hub.
func (s StorySignals) Overlap(ids []uuid.UUID) float64 {
	if len(ids) == 0 || len(s.SignalIDs) == 0 {
		return 0
	}
	have := make(map[uuid.UUID]bool, len(s.SignalIDs))
	for _, id := range s.SignalIDs {
		have[id] = true
	}
	shared := 0
	for _, id := range ids {
		if have[id] {
			shared++
		}
	}
	return float64(shared) / float64(len(ids))
}
