package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/domain"
)

func newTestGrower(t *testing.T, stories *fakeStoryGraph, tensions *fakeTensionGraph, threshold int) GrowerService {
	return NewGrowerService(testLogger(t), GrowerConfig{
		MegaTensionThreshold: threshold,
		Arc:                  ArcConfig{GrowRuns: 2, FadeRuns: 3, ColdRuns: 6},
	}, stories, tensions)
}

func respondentsFor(n int) []domain.Respondent {
	out := make([]domain.Respondent, 0, n)
	for i := 0; i < n; i++ {
		dom := "a.org"
		if i%2 == 1 {
			dom = "b.org"
		}
		out = append(out, domain.Respondent{
			SignalID:     uuid.New(),
			SignalType:   domain.SignalNotice,
			SourceDomain: dom,
			LinkedAt:     time.Now().Add(-time.Hour),
		})
	}
	return out
}

func TestGrowAttachesNewRespondents(t *testing.T) {
	stories := newFakeStoryGraph()
	tensions := newFakeTensionGraph()

	story := domain.Story{ID: uuid.New(), TensionID: uuid.New(), Arc: domain.ArcEmerging, ActiveRuns: 1}
	respondents := respondentsFor(4)
	contained := []uuid.UUID{respondents[0].SignalID, respondents[1].SignalID}
	stories.addStory(story, contained)
	tensions.respondents[story.TensionID] = respondents

	g := newTestGrower(t, stories, tensions, 30)
	report, err := g.GrowAll(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("GrowAll() error = %v", err)
	}
	if report.EdgesAdded != 2 {
		t.Fatalf("edges added = %d, want 2", report.EdgesAdded)
	}

	after, _ := stories.ContainedSignalIDs(context.Background(), story.ID)
	if len(after) != 4 {
		t.Fatalf("contained = %d, want 4", len(after))
	}

	updated, _ := stories.GetStory(context.Background(), story.ID)
	if updated.SignalCount != 4 {
		t.Fatalf("signal count = %d, want 4", updated.SignalCount)
	}
	if updated.LastArrivalRate != 2 {
		t.Fatalf("last arrival rate = %d, want 2", updated.LastArrivalRate)
	}
}

func TestGrowContainsIsMonotone(t *testing.T) {
	stories := newFakeStoryGraph()
	tensions := newFakeTensionGraph()

	story := domain.Story{ID: uuid.New(), TensionID: uuid.New(), Arc: domain.ArcStable}
	respondents := respondentsFor(2)
	contained := []uuid.UUID{respondents[0].SignalID, respondents[1].SignalID, uuid.New()}
	stories.addStory(story, contained)
	// The tension lost a respondent the story already contains; growth must
	// never remove it.
	tensions.respondents[story.TensionID] = respondents

	g := newTestGrower(t, stories, tensions, 30)
	if _, err := g.GrowAll(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("GrowAll() error = %v", err)
	}

	after, _ := stories.ContainedSignalIDs(context.Background(), story.ID)
	if len(after) != 3 {
		t.Fatalf("contained = %d, want 3 (contains is append-only)", len(after))
	}
}

func TestGrowSkipsNewbornStories(t *testing.T) {
	stories := newFakeStoryGraph()
	tensions := newFakeTensionGraph()

	newborn := domain.Story{ID: uuid.New(), TensionID: uuid.New(), Arc: domain.ArcEmerging}
	respondents := respondentsFor(2)
	stories.addStory(newborn, []uuid.UUID{respondents[0].SignalID, respondents[1].SignalID})
	tensions.respondents[newborn.TensionID] = respondents

	g := newTestGrower(t, stories, tensions, 30)
	report, err := g.GrowAll(context.Background(), uuid.New(), []uuid.UUID{newborn.ID})
	if err != nil {
		t.Fatalf("GrowAll() error = %v", err)
	}
	if report.StoriesTouched != 0 {
		t.Fatalf("stories touched = %d, want 0 for a story created this pass", report.StoriesTouched)
	}

	// Arc bookkeeping untouched: the story's first pass must not register as
	// a silent run.
	updated, _ := stories.GetStory(context.Background(), newborn.ID)
	if updated.RunsSinceArrival != 0 || updated.ActiveRuns != 0 {
		t.Fatalf("bookkeeping = %d/%d, want 0/0", updated.RunsSinceArrival, updated.ActiveRuns)
	}
}

func TestGrowResurgence(t *testing.T) {
	stories := newFakeStoryGraph()
	tensions := newFakeTensionGraph()

	story := domain.Story{
		ID:               uuid.New(),
		TensionID:        uuid.New(),
		Arc:              domain.ArcFading,
		RunsSinceArrival: 4,
	}
	respondents := respondentsFor(3)
	// Story only contains two of them; the third arrived while fading.
	stories.addStory(story, []uuid.UUID{respondents[0].SignalID, respondents[1].SignalID})
	tensions.respondents[story.TensionID] = respondents

	g := newTestGrower(t, stories, tensions, 30)
	report, err := g.GrowAll(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("GrowAll() error = %v", err)
	}
	if report.Resurgent != 1 {
		t.Fatalf("resurgent = %d, want 1", report.Resurgent)
	}

	updated, _ := stories.GetStory(context.Background(), story.ID)
	if updated.Arc != domain.ArcResurgent {
		t.Fatalf("arc = %s, want resurgent", updated.Arc)
	}
	if updated.RunsSinceArrival != 0 {
		t.Fatalf("runs since arrival = %d, want 0", updated.RunsSinceArrival)
	}
}

func TestGrowFlagsMegaTension(t *testing.T) {
	stories := newFakeStoryGraph()
	tensions := newFakeTensionGraph()

	story := domain.Story{ID: uuid.New(), TensionID: uuid.New(), Arc: domain.ArcGrowing}
	respondents := respondentsFor(5)
	stories.addStory(story, nil)
	tensions.respondents[story.TensionID] = respondents

	g := newTestGrower(t, stories, tensions, 4)
	report, err := g.GrowAll(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("GrowAll() error = %v", err)
	}
	if report.FlaggedMega != 1 {
		t.Fatalf("flagged mega = %d, want 1", report.FlaggedMega)
	}

	updated, _ := stories.GetStory(context.Background(), story.ID)
	if !updated.NeedsRefinement {
		t.Fatal("needs_refinement not set above threshold")
	}
}

func TestGrowNeverTouchesNarrative(t *testing.T) {
	stories := newFakeStoryGraph()
	tensions := newFakeTensionGraph()

	story := domain.Story{
		ID:        uuid.New(),
		TensionID: uuid.New(),
		Arc:       domain.ArcStable,
		Lede:      "existing lede",
		Narrative: "existing narrative",
	}
	respondents := respondentsFor(2)
	stories.addStory(story, []uuid.UUID{respondents[0].SignalID})
	tensions.respondents[story.TensionID] = respondents

	g := newTestGrower(t, stories, tensions, 30)
	if _, err := g.GrowAll(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("GrowAll() error = %v", err)
	}

	updated, _ := stories.GetStory(context.Background(), story.ID)
	if updated.Lede != "existing lede" || updated.Narrative != "existing narrative" {
		t.Fatal("growth pass must not overwrite narrative fields")
	}
}
