package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/repos"
	"github.com/civicweave/civicweave-backend/internal/types"
)

type CuriosityConfig struct {
	// MaxAttempts is the per-pair retry cap; a pair that fails this many
	// times is abandoned and surfaced as a coverage-gap finding.
	MaxAttempts int
	// BatchLimit caps how many pairs one run will attempt.
	BatchLimit int
	// Parallelism bounds concurrent investigation calls.
	Parallelism int
	// MinRespondents mirrors the hub threshold: tensions below it are the
	// thin ones worth investigating.
	MinRespondents int
}

func (c CuriosityConfig) withDefaults() CuriosityConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 25
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	if c.MinRespondents <= 0 {
		c.MinRespondents = 2
	}
	return c
}

type CuriosityReport struct {
	Recovered int `json:"recovered"`
	Seeded    int `json:"seeded"`
	Attempted int `json:"attempted"`
	Done      int `json:"done"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Abandoned int `json:"abandoned"`
}

// CuriosityService investigates thin tensions: hubs that exist in the graph
// but lack the respondent mass to become stories. Each (signal, tension) pair
// gets a durable outcome row so attempts survive restarts and terminal pairs
// are never re-investigated.
type CuriosityService struct {
	log      *logger.Logger
	cfg      CuriosityConfig
	tensions TensionGraph
	signals  SignalGraph
	outcomes repos.CuriosityOutcomeRepo
	findings repos.FindingRepo
	calls    repos.SynthesisCallLogRepo
	client   SynthesisClient
}

func NewCuriosityService(
	log *logger.Logger,
	cfg CuriosityConfig,
	tensions TensionGraph,
	signals SignalGraph,
	outcomes repos.CuriosityOutcomeRepo,
	findings repos.FindingRepo,
	calls repos.SynthesisCallLogRepo,
	client SynthesisClient,
) *CuriosityService {
	return &CuriosityService{
		log:      log.With("service", "CuriosityService"),
		cfg:      cfg.withDefaults(),
		tensions: tensions,
		signals:  signals,
		outcomes: outcomes,
		findings: findings,
		calls:    calls,
		client:   client,
	}
}

// Investigate runs one curiosity pass for the scope: seed outcome rows for
// every (respondent, thin tension) pair, then work through the actionable
// backlog with bounded parallelism.
func (s *CuriosityService) Investigate(ctx context.Context, scopeID uuid.UUID, runID *uuid.UUID) (*CuriosityReport, error) {
	report := &CuriosityReport{}

	// We hold the scope's run lock, so any in_progress row is a leftover from
	// an interrupted run, not a live worker.
	recovered, err := s.outcomes.RecoverInterrupted(ctx, nil, scopeID)
	if err != nil {
		return nil, fmt.Errorf("recover interrupted pairs: %w", err)
	}
	report.Recovered = int(recovered)

	seeded, err := s.seedPairs(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("seed curiosity pairs: %w", err)
	}
	report.Seeded = seeded

	batch, err := s.outcomes.ListActionable(ctx, nil, scopeID, s.cfg.MaxAttempts, s.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("list actionable pairs: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, pair := range batch {
		pair := pair
		g.Go(func() error {
			outcome := s.investigateOne(gctx, scopeID, runID, pair)
			mu.Lock()
			report.Attempted++
			switch outcome {
			case types.CuriosityDone:
				report.Done++
			case types.CuriositySkipped:
				report.Skipped++
			case types.CuriosityAbandoned:
				report.Abandoned++
			case types.CuriosityFailed:
				report.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Info("curiosity pass complete",
		"scope_id", scopeID,
		"seeded", report.Seeded,
		"attempted", report.Attempted,
		"done", report.Done,
		"abandoned", report.Abandoned)
	return report, nil
}

func (s *CuriosityService) seedPairs(ctx context.Context, scopeID uuid.UUID) (int, error) {
	thin, err := s.tensions.ThinTensions(ctx, scopeID, s.cfg.MinRespondents)
	if err != nil {
		return 0, err
	}
	seeded := 0
	for _, hub := range thin {
		for _, r := range hub.Respondents {
			if err := s.outcomes.EnsurePair(ctx, nil, scopeID, r.SignalID, hub.Tension.ID); err != nil {
				return seeded, err
			}
			seeded++
		}
	}
	return seeded, nil
}

// investigateOne drives a single pair through its state machine and returns
// the state it ended the run in. Errors are absorbed into the pair's failure
// bookkeeping; they never abort the batch.
func (s *CuriosityService) investigateOne(ctx context.Context, scopeID uuid.UUID, runID *uuid.UUID, pair *types.CuriosityOutcome) string {
	log := s.log.With("signal_id", pair.SignalID, "tension_id", pair.TensionID)

	claimed, err := s.outcomes.MarkInProgress(ctx, nil, pair.ID)
	if err != nil {
		log.Error("failed to claim curiosity pair", "error", err)
		return pair.State
	}
	if !claimed {
		// Another worker got here first, or the row moved on. Not a failure.
		log.Warn("curiosity pair no longer claimable")
		return pair.State
	}

	req := InvestigationRequest{
		ScopeID:   scopeID,
		TensionID: pair.TensionID,
		SignalID:  pair.SignalID,
		Prompt:    s.investigationPrompt(ctx, pair),
	}

	res, err := s.client.Investigate(ctx, req)
	s.logCall(ctx, scopeID, runID, pair.TensionID, req.Prompt, res, err)
	if err != nil {
		return s.recordFailure(ctx, scopeID, pair, err, log)
	}

	linked := 0
	for _, d := range res.Respondents {
		if d.SignalID == uuid.Nil {
			continue
		}
		if err := s.tensions.CreateRespondsTo(ctx, d.SignalID, pair.TensionID, d.Strength, d.Explanation); err != nil {
			return s.recordFailure(ctx, scopeID, pair, fmt.Errorf("link discovered respondent: %w", err), log)
		}
		linked++
	}

	state := types.CuriosityDone
	if linked == 0 {
		// The call succeeded but found nothing. That answer is final.
		state = types.CuriositySkipped
	}
	if err := s.outcomes.MarkTerminal(ctx, nil, pair.ID, state); err != nil {
		log.Error("failed to mark curiosity pair terminal", "state", state, "error", err)
		return types.CuriosityFailed
	}
	return state
}

func (s *CuriosityService) recordFailure(ctx context.Context, scopeID uuid.UUID, pair *types.CuriosityOutcome, callErr error, log *logger.Logger) string {
	abandoned, err := s.outcomes.RecordFailure(ctx, nil, pair.ID, callErr.Error(), s.cfg.MaxAttempts)
	if err != nil {
		log.Error("failed to record investigation failure", "error", err)
		return types.CuriosityFailed
	}
	if !abandoned {
		log.Warn("investigation failed, will retry", "error", callErr)
		return types.CuriosityFailed
	}

	log.Warn("investigation abandoned after retry cap", "error", callErr)
	meta, _ := json.Marshal(map[string]any{
		"signal_id":  pair.SignalID,
		"tension_id": pair.TensionID,
		"attempts":   s.cfg.MaxAttempts,
		"last_error": callErr.Error(),
	})
	if _, err := s.findings.Create(ctx, nil, &types.Finding{
		ScopeID:  scopeID,
		Kind:     types.FindingKindCoverageGap,
		Detail:   fmt.Sprintf("investigation of tension %s from signal %s abandoned after %d attempts", pair.TensionID, pair.SignalID, s.cfg.MaxAttempts),
		Metadata: datatypes.JSON(meta),
	}); err != nil {
		log.Error("failed to create coverage-gap finding", "error", err)
	}
	return types.CuriosityAbandoned
}

func (s *CuriosityService) investigationPrompt(ctx context.Context, pair *types.CuriosityOutcome) string {
	prompt := fmt.Sprintf("Find additional civic signals that respond to tension %s.", pair.TensionID)
	sig, err := s.signals.GetSignal(ctx, pair.SignalID)
	if err != nil || sig == nil {
		return prompt
	}
	return fmt.Sprintf("%s Start from the known respondent %q (%s): %s", prompt, sig.Title, sig.Type, sig.Summary)
}

func (s *CuriosityService) logCall(ctx context.Context, scopeID uuid.UUID, runID *uuid.UUID, targetID uuid.UUID, prompt string, res *InvestigationResult, callErr error) {
	row := &types.SynthesisCallLog{
		ScopeID:  scopeID,
		RunID:    runID,
		TargetID: targetID,
		CallType: types.CallTypeInvestigation,
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
		s.log.Error("failed to log investigation call", "target_id", targetID, "error", err)
	}
}
