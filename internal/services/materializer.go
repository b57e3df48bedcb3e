package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/domain"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
)

type MaterializerConfig struct {
	// AbsorptionOverlap is the signal-set overlap fraction above which a hub
	// folds into an existing story instead of becoming a new one. Policy
	// constant without a derivation; configurable on purpose.
	AbsorptionOverlap float64
}

func (c MaterializerConfig) withDefaults() MaterializerConfig {
	if c.AbsorptionOverlap <= 0 || c.AbsorptionOverlap > 1 {
		c.AbsorptionOverlap = 0.5
	}
	return c
}

// MaterializeReport says what one Phase A pass did. CreatedIDs lets the
// grower leave this pass's newborn stories alone until the next run.
type MaterializeReport struct {
	Created    int         `json:"created"`
	Absorbed   int         `json:"absorbed"`
	Skipped    int         `json:"skipped"`
	CreatedIDs []uuid.UUID `json:"created_story_ids,omitempty"`
}

// MaterializerService is Phase A: qualifying tension hubs become Stories.
// Cheap, always runs, never calls the synthesis path.
type MaterializerService interface {
	MaterializeAll(ctx context.Context, scopeID uuid.UUID, hubs []domain.TensionHub) (MaterializeReport, error)
}

type materializer struct {
	log     *logger.Logger
	cfg     MaterializerConfig
	stories StoryGraph
	now     func() time.Time
}

func NewMaterializerService(log *logger.Logger, cfg MaterializerConfig, stories StoryGraph) MaterializerService {
	return &materializer{
		log:     log.With("service", "MaterializerService"),
		cfg:     cfg.withDefaults(),
		stories: stories,
		now:     time.Now,
	}
}

func (m *materializer) MaterializeAll(ctx context.Context, scopeID uuid.UUID, hubs []domain.TensionHub) (MaterializeReport, error) {
	var report MaterializeReport
	if len(hubs) == 0 {
		return report, nil
	}

	sets, err := m.stories.StorySignalSets(ctx, scopeID)
	if err != nil {
		return report, fmt.Errorf("load story signal sets: %w", err)
	}

	for _, hub := range hubs {
		hubIDs := make([]uuid.UUID, 0, len(hub.Respondents))
		for _, r := range hub.Respondents {
			hubIDs = append(hubIDs, r.SignalID)
		}

		// The hub list may predate a crash-recovery re-run; a tension that
		// gained its story in the meantime is skipped, not duplicated.
		if existing, err := m.stories.StoryForTension(ctx, hub.Tension.ID); err != nil {
			return report, fmt.Errorf("check story for tension %s: %w", hub.Tension.ID, err)
		} else if existing != nil {
			report.Skipped++
			continue
		}

		if absorbedInto := m.absorptionTarget(sets, hubIDs); absorbedInto != nil {
			missing := missingIDs(absorbedInto.SignalIDs, hubIDs)
			if len(missing) > 0 {
				if err := m.stories.AddContains(ctx, absorbedInto.StoryID, missing); err != nil {
					return report, fmt.Errorf("absorb hub %s into story %s: %w", hub.Tension.ID, absorbedInto.StoryID, err)
				}
				absorbedInto.SignalIDs = append(absorbedInto.SignalIDs, missing...)
			}
			m.log.Info("hub absorbed into existing story",
				"tension_id", hub.Tension.ID,
				"story_id", absorbedInto.StoryID,
				"added_signals", len(missing),
			)
			report.Absorbed++
			continue
		}

		agg := ComputeAggregates(hub.Respondents, m.now())
		story := domain.Story{
			ID:                uuid.New(),
			ScopeID:           scopeID,
			TensionID:         hub.Tension.ID,
			Headline:          hub.Tension.Title,
			Summary:           hub.Tension.Summary,
			Arc:               domain.ArcEmerging,
			Energy:            agg.Energy,
			SignalCount:       agg.SignalCount,
			TypeDiversity:     agg.TypeDiversity,
			SourceDomainCount: agg.SourceDomainCount,
			SynthesisPending:  true,
		}
		if err := m.stories.MaterializeStory(ctx, story, hubIDs); err != nil {
			return report, fmt.Errorf("materialize story for tension %s: %w", hub.Tension.ID, err)
		}
		sets = append(sets, domain.StorySignals{StoryID: story.ID, TensionID: story.TensionID, SignalIDs: hubIDs})
		m.log.Info("story materialized",
			"story_id", story.ID,
			"tension_id", hub.Tension.ID,
			"signal_count", agg.SignalCount,
		)
		report.Created++
		report.CreatedIDs = append(report.CreatedIDs, story.ID)
	}
	return report, nil
}

// absorptionTarget returns the story whose signal set overlaps the hub's by
// at least the configured fraction, preferring the largest overlap. Prevents
// two stories from claiming overlapping majority signal sets.
func (m *materializer) absorptionTarget(sets []domain.StorySignals, hubIDs []uuid.UUID) *domain.StorySignals {
	var best *domain.StorySignals
	bestOverlap := 0.0
	for i := range sets {
		ov := sets[i].Overlap(hubIDs)
		if ov >= m.cfg.AbsorptionOverlap && ov > bestOverlap {
			best = &sets[i]
			bestOverlap = ov
		}
	}
	return best
}

func missingIDs(have, want []uuid.UUID) []uuid.UUID {
	set := make(map[uuid.UUID]bool, len(have))
	for _, id := range have {
		set[id] = true
	}
	out := []uuid.UUID{}
	for _, id := range want {
		if !set[id] {
			out = append(out, id)
		}
	}
	return out
}
