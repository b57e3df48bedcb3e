package services

import (
	"time"

	"github.com/civicweave/civicweave-backend/internal/domain"
)

// StoryAggregates are the derived fields recomputed from a story's
// respondent set every time Phase A or B touches it.
type StoryAggregates struct {
	SignalCount       int
	TypeDiversity     int
	SourceDomainCount int
	Energy            float64
}

// ComputeAggregates derives counts and a recency-weighted energy score from
// a tension's respondents. A respondent linked today contributes 1.0; the
// contribution halves roughly weekly, so a story with many stale signals
// scores below a story with a few fresh ones.
func ComputeAggregates(respondents []domain.Respondent, now time.Time) StoryAggregates {
	types := map[domain.SignalType]bool{}
	domains := map[string]bool{}
	energy := 0.0
	for _, r := range respondents {
		if r.SignalType != "" {
			types[r.SignalType] = true
		}
		if r.SourceDomain != "" {
			domains[r.SourceDomain] = true
		}
		ageDays := 0.0
		if !r.LinkedAt.IsZero() && now.After(r.LinkedAt) {
			ageDays = now.Sub(r.LinkedAt).Hours() / 24
		}
		energy += 1.0 / (1.0 + ageDays/7.0)
	}
	return StoryAggregates{
		SignalCount:       len(respondents),
		TypeDiversity:     len(types),
		SourceDomainCount: len(domains),
		Energy:            energy,
	}
}
