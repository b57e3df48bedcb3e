package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/domain"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
)

type GrowerConfig struct {
	// MegaTensionThreshold is the respondent count past which a story is
	// flagged for a downstream splitting pass. Policy constant; configurable.
	MegaTensionThreshold int
	Arc                  ArcConfig
}

func (c GrowerConfig) withDefaults() GrowerConfig {
	if c.MegaTensionThreshold <= 0 {
		c.MegaTensionThreshold = 30
	}
	return c
}

type GrowReport struct {
	StoriesTouched int `json:"stories_touched"`
	EdgesAdded     int `json:"edges_added"`
	Resurgent      int `json:"resurgent"`
	FlaggedMega    int `json:"flagged_mega"`
}

// GrowerService is Phase B: every existing story picks up respondents that
// arrived since the last run, refreshes its aggregates and re-runs the arc
// classifier. Always runs, no synthesis calls. Stories in skip — the ones
// Phase A just created — sit this pass out so their first run does not count
// as a silent one.
type GrowerService interface {
	GrowAll(ctx context.Context, scopeID uuid.UUID, skip []uuid.UUID) (GrowReport, error)
}

type grower struct {
	log      *logger.Logger
	cfg      GrowerConfig
	stories  StoryGraph
	tensions TensionGraph
	now      func() time.Time
}

func NewGrowerService(log *logger.Logger, cfg GrowerConfig, stories StoryGraph, tensions TensionGraph) GrowerService {
	return &grower{
		log:      log.With("service", "GrowerService"),
		cfg:      cfg.withDefaults(),
		stories:  stories,
		tensions: tensions,
		now:      time.Now,
	}
}

func (g *grower) GrowAll(ctx context.Context, scopeID uuid.UUID, skip []uuid.UUID) (GrowReport, error) {
	var report GrowReport
	stories, err := g.stories.ListStories(ctx, scopeID)
	if err != nil {
		return report, fmt.Errorf("list stories: %w", err)
	}

	skipSet := make(map[uuid.UUID]bool, len(skip))
	for _, id := range skip {
		skipSet[id] = true
	}

	for i := range stories {
		if skipSet[stories[i].ID] {
			continue
		}
		added, resurgent, err := g.growOne(ctx, &stories[i])
		if err != nil {
			return report, err
		}
		report.StoriesTouched++
		report.EdgesAdded += added
		if resurgent {
			report.Resurgent++
		}
		if stories[i].NeedsRefinement {
			report.FlaggedMega++
		}
	}
	return report, nil
}

func (g *grower) growOne(ctx context.Context, story *domain.Story) (added int, resurgent bool, err error) {
	respondents, err := g.tensions.Respondents(ctx, story.TensionID)
	if err != nil {
		return 0, false, fmt.Errorf("respondents of tension %s: %w", story.TensionID, err)
	}
	contained, err := g.stories.ContainedSignalIDs(ctx, story.ID)
	if err != nil {
		return 0, false, fmt.Errorf("contained signals of story %s: %w", story.ID, err)
	}

	respIDs := make([]uuid.UUID, 0, len(respondents))
	for _, r := range respondents {
		respIDs = append(respIDs, r.SignalID)
	}
	missing := missingIDs(contained, respIDs)
	if len(missing) > 0 {
		if err := g.stories.AddContains(ctx, story.ID, missing); err != nil {
			return 0, false, fmt.Errorf("attach signals to story %s: %w", story.ID, err)
		}
	}

	agg := ComputeAggregates(respondents, g.now())
	res := ClassifyArc(ArcObservation{
		PriorArc:         story.Arc,
		WasFading:        story.Arc.Quiet(),
		NewArrivals:      len(missing),
		PrevArrivalRate:  story.LastArrivalRate,
		ActiveRuns:       story.ActiveRuns,
		RunsSinceArrival: story.RunsSinceArrival,
	}, g.cfg.Arc)

	resurgent = res.Arc == domain.ArcResurgent && story.Arc != domain.ArcResurgent

	story.Arc = res.Arc
	story.ActiveRuns = res.ActiveRuns
	story.RunsSinceArrival = res.RunsSinceArrival
	if len(missing) > 0 {
		story.LastArrivalRate = len(missing)
	}
	story.Energy = agg.Energy
	story.SignalCount = agg.SignalCount
	story.TypeDiversity = agg.TypeDiversity
	story.SourceDomainCount = agg.SourceDomainCount
	if agg.SignalCount > g.cfg.MegaTensionThreshold {
		story.NeedsRefinement = true
	}

	if err := g.stories.UpdateStoryAggregates(ctx, *story); err != nil {
		return 0, false, fmt.Errorf("update story %s aggregates: %w", story.ID, err)
	}
	if resurgent {
		g.log.Info("story resurgent", "story_id", story.ID, "new_arrivals", len(missing))
	}
	return len(missing), resurgent, nil
}
