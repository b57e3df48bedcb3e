package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tension is a hub node representing an unresolved situation. It accumulates
// RESPONDS_TO edges from signals over time and is the source of truth that a
// Story is derived from.
type Tension struct {
	ID       uuid.UUID `json:"id"`
	ScopeID  uuid.UUID `json:"scope_id"`
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	Severity float64   `json:"severity"`
	Category string    `json:"category"`
}

// Respondent is one RESPONDS_TO edge plus the fields of its source signal the
// weaving phases need. Strength and Explanation live on the edge.
type Respondent struct {
	SignalID     uuid.UUID  `json:"signal_id"`
	SignalType   SignalType `json:"signal_type"`
	SourceURL    string     `json:"source_url"`
	SourceDomain string     `json:"source_domain"`
	Strength     float64    `json:"strength"`
	Explanation  string     `json:"explanation,omitempty"`
	LinkedAt     time.Time  `json:"linked_at"`
}

// TensionHub is a tension with its full respondent set, as returned by the hub
// scan. Qualification (respondent and domain minimums) is decided by the
// finder, not the query.
type TensionHub struct {
	Tension     Tension      `json:"tension"`
	Respondents []Respondent `json:"respondents"`
}

// DistinctDomains counts distinct source domains across the hub's respondents.
func (h TensionHub) DistinctDomains() int {
	seen := map[string]bool{}
	for _, r := range h.Respondents {
		if r.SourceDomain != "" {
			seen[r.SourceDomain] = true
		}
	}
	return len(seen)
}
