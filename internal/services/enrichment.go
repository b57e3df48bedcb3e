package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/domain"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/repos"
	"github.com/civicweave/civicweave-backend/internal/types"
)

type EnrichmentConfig struct {
	// CostPerSynthesis is the ledger debit charged before each call.
	CostPerSynthesis float64
}

func (c EnrichmentConfig) withDefaults() EnrichmentConfig {
	if c.CostPerSynthesis <= 0 {
		c.CostPerSynthesis = 1.0
	}
	return c
}

type EnrichReport struct {
	Pending     int `json:"pending"`
	Synthesized int `json:"synthesized"`
	Failed      int `json:"failed"`
	// BudgetExhausted is set when the ledger refused a debit; the remaining
	// pending stories stay flagged for the next funded run.
	BudgetExhausted bool `json:"budget_exhausted"`
}

// EnrichmentScheduler spends the run's synthesis budget on stories flagged
// synthesis_pending, highest value first. A story that misses out stays
// pending; a story whose call fails stays pending too, so nothing is lost to
// a bad run.
type EnrichmentScheduler struct {
	log     *logger.Logger
	cfg     EnrichmentConfig
	stories StoryGraph
	ledger  repos.RunLedgerRepo
	calls   repos.SynthesisCallLogRepo
	client  SynthesisClient
}

func NewEnrichmentScheduler(
	log *logger.Logger,
	cfg EnrichmentConfig,
	stories StoryGraph,
	ledger repos.RunLedgerRepo,
	calls repos.SynthesisCallLogRepo,
	client SynthesisClient,
) *EnrichmentScheduler {
	return &EnrichmentScheduler{
		log:     log.With("service", "EnrichmentScheduler"),
		cfg:     cfg.withDefaults(),
		stories: stories,
		ledger:  ledger,
		calls:   calls,
		client:  client,
	}
}

// Enrich runs one synthesis pass against the given ledger. It stops cleanly
// the first time the ledger refuses a debit.
func (s *EnrichmentScheduler) Enrich(ctx context.Context, scopeID, ledgerID uuid.UUID, runID *uuid.UUID) (*EnrichReport, error) {
	pending, err := s.stories.StoriesPendingSynthesis(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list pending stories: %w", err)
	}
	OrderForSynthesis(pending)

	report := &EnrichReport{Pending: len(pending)}
	for _, story := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ok, err := s.ledger.TryDebit(ctx, nil, ledgerID, s.cfg.CostPerSynthesis)
		if err != nil {
			return report, fmt.Errorf("debit run ledger: %w", err)
		}
		if !ok {
			report.BudgetExhausted = true
			s.log.Info("synthesis budget exhausted",
				"scope_id", scopeID,
				"synthesized", report.Synthesized,
				"still_pending", report.Pending-report.Synthesized)
			return report, nil
		}

		if s.synthesizeOne(ctx, scopeID, runID, story) {
			report.Synthesized++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

func (s *EnrichmentScheduler) synthesizeOne(ctx context.Context, scopeID uuid.UUID, runID *uuid.UUID, story domain.Story) bool {
	log := s.log.With("story_id", story.ID)

	req := SynthesisRequest{
		ScopeID:          scopeID,
		StoryID:          story.ID,
		Headline:         story.Headline,
		Summary:          story.Summary,
		Prompt:           synthesisPrompt(story),
		MultiPerspective: story.TypeDiversity > 1,
	}

	res, err := s.client.Synthesize(ctx, req)
	s.logCall(ctx, scopeID, runID, story.ID, req.Prompt, res, err)
	if err != nil {
		// Leave synthesis_pending set; the story competes again next run.
		log.Warn("synthesis call failed", "error", err)
		return false
	}
	if err := s.stories.ApplyNarrative(ctx, story.ID, res.Lede, res.Narrative); err != nil {
		log.Error("failed to apply narrative", "error", err)
		return false
	}
	return true
}

// OrderForSynthesis sorts stories by spend priority: resurgent stories first,
// then by energy descending.
func OrderForSynthesis(stories []domain.Story) {
	sort.SliceStable(stories, func(i, j int) bool {
		ri, rj := stories[i].Arc == domain.ArcResurgent, stories[j].Arc == domain.ArcResurgent
		if ri != rj {
			return ri
		}
		return stories[i].Energy > stories[j].Energy
	})
}

func synthesisPrompt(story domain.Story) string {
	prompt := fmt.Sprintf("Write a lede and narrative for the story %q. Context: %s. It currently contains %d signals across %d source domains.",
		story.Headline, story.Summary, story.SignalCount, story.SourceDomainCount)
	if story.TypeDiversity > 1 {
		prompt += " The signals span multiple types; present disagreement between them as distinct perspectives instead of resolving it."
	}
	return prompt
}

func (s *EnrichmentScheduler) logCall(ctx context.Context, scopeID uuid.UUID, runID *uuid.UUID, storyID uuid.UUID, prompt string, res *SynthesisResult, callErr error) {
	row := &types.SynthesisCallLog{
		ScopeID:  scopeID,
		RunID:    runID,
		TargetID: storyID,
		CallType: types.CallTypeSynthesis,
		Prompt:   prompt,
		Success:  callErr == nil,
	}
	if callErr != nil {
		row.Error = callErr.Error()
	} else {
		row.Response = res.Raw
		row.Cost = res.Cost
	}
	if _, err := s.calls.Create(ctx, nil, row); err != nil {
		s.log.Error("failed to log synthesis call", "story_id", storyID, "error", err)
	}
}
