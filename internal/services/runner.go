package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/platform/redis"
	"github.com/civicweave/civicweave-backend/internal/repos"
	"github.com/civicweave/civicweave-backend/internal/types"
)

const (
	PhaseReconcile  = "reconcile"
	PhaseWeave      = "weave"
	PhaseCuriosity  = "curiosity"
	PhaseEnrichment = "enrichment"
)

// phaseEntry lists, per phase, which scope statuses may start it and which
// status it leaves behind. A phase starts only from its prerequisite's
// completion status; reconcile alone also starts a fresh idle scope. Together
// with ScopeRepo.Transition this is the durable run lock: two callers racing
// the same phase produce exactly one winner, the loser sees ErrScopeLocked.
type phaseEntry struct {
	from    []string
	running string
	done    string
}

var phaseTable = map[string]phaseEntry{
	PhaseReconcile: {
		from:    []string{types.ScopeIdle, types.ScopeEnrichmentComplete},
		running: types.ScopeRunningReconcile,
		done:    types.ScopeReconcileComplete,
	},
	PhaseWeave: {
		from:    []string{types.ScopeReconcileComplete},
		running: types.ScopeRunningWeave,
		done:    types.ScopeWeaveComplete,
	},
	PhaseCuriosity: {
		from:    []string{types.ScopeWeaveComplete},
		running: types.ScopeRunningCuriosity,
		done:    types.ScopeCuriosityComplete,
	},
	PhaseEnrichment: {
		from:    []string{types.ScopeCuriosityComplete},
		running: types.ScopeRunningEnrichment,
		done:    types.ScopeEnrichmentComplete,
	},
}

// rollbackStatus picks the status a failed phase returns the scope to: the
// status it was observed in before the lock was taken, when that status is a
// legal start for the phase, else the phase's canonical predecessor.
func rollbackStatus(entry phaseEntry, observed string) string {
	for _, s := range entry.from {
		if s == observed {
			return observed
		}
	}
	return entry.from[0]
}

type ReconcileReport struct {
	Retried int `json:"retried"`
}

type PhaseResult struct {
	Phase      string           `json:"phase"`
	Reconcile  *ReconcileReport `json:"reconcile,omitempty"`
	Weave      *WeaveReport     `json:"weave,omitempty"`
	Curiosity  *CuriosityReport `json:"curiosity,omitempty"`
	Enrichment *EnrichReport    `json:"enrichment,omitempty"`
}

type WeaveReport struct {
	Hubs        int               `json:"hubs"`
	Materialize MaterializeReport `json:"materialize"`
	Grow        GrowReport        `json:"grow"`
	Findings    int               `json:"findings"`
}

type CycleSummary struct {
	RunID  uuid.UUID      `json:"run_id"`
	Phases []*PhaseResult `json:"phases"`
}

// Runner coordinates the phase pipeline for a scope. All cross-phase state
// lives in Postgres (scope status, ledger, curiosity outcomes) and the graph;
// the runner itself is stateless and safe to replicate.
type Runner struct {
	log         *logger.Logger
	scopes      repos.ScopeRepo
	ledger      repos.RunLedgerRepo
	events      redis.RunEventBus
	reconciler  ReconcilerService
	hubs        HubFinderService
	materialize MaterializerService
	grower      GrowerService
	curiosity   *CuriosityService
	enrichment  *EnrichmentScheduler
	findings    *FindingService
}

func NewRunner(
	log *logger.Logger,
	scopes repos.ScopeRepo,
	ledger repos.RunLedgerRepo,
	events redis.RunEventBus,
	reconciler ReconcilerService,
	hubs HubFinderService,
	materialize MaterializerService,
	grower GrowerService,
	curiosity *CuriosityService,
	enrichment *EnrichmentScheduler,
	findings *FindingService,
) *Runner {
	return &Runner{
		log:         log.With("service", "Runner"),
		scopes:      scopes,
		ledger:      ledger,
		events:      events,
		reconciler:  reconciler,
		hubs:        hubs,
		materialize: materialize,
		grower:      grower,
		curiosity:   curiosity,
		enrichment:  enrichment,
		findings:    findings,
	}
}

// RunCycle drives all four phases in order for the scope and returns the
// scope to idle. A locked scope fails fast with ErrScopeLocked before any
// work happens.
func (r *Runner) RunCycle(ctx context.Context, scopeKey string, budget float64) (*CycleSummary, error) {
	scope, err := r.scopes.GetByKey(ctx, nil, scopeKey)
	if err != nil {
		return nil, err
	}
	if scope == nil {
		return nil, fmt.Errorf("unknown scope %q", scopeKey)
	}

	runID := uuid.New()
	summary := &CycleSummary{RunID: runID}

	for _, phase := range []string{PhaseReconcile, PhaseWeave, PhaseCuriosity, PhaseEnrichment} {
		res, err := r.RunPhase(ctx, scopeKey, phase, budget, &runID)
		if err != nil {
			return summary, err
		}
		summary.Phases = append(summary.Phases, res)
	}

	// Close the loop: enrichment_complete -> idle.
	if err := r.scopes.Transition(ctx, nil, scope.ID, []string{types.ScopeEnrichmentComplete}, types.ScopeIdle); err != nil {
		return summary, err
	}
	if err := r.scopes.SetLastRun(ctx, nil, scope.ID, runID); err != nil {
		r.log.Warn("failed to record last run", "scope", scopeKey, "error", err)
	}
	return summary, nil
}

// RunPhase acquires the lock for one phase, executes it, and releases the
// lock into the phase's completion status. On failure the scope rolls back to
// the status it started from so the phase can be retried.
func (r *Runner) RunPhase(ctx context.Context, scopeKey, phase string, budget float64, runID *uuid.UUID) (*PhaseResult, error) {
	entry, ok := phaseTable[phase]
	if !ok {
		return nil, fmt.Errorf("unknown phase %q", phase)
	}
	scope, err := r.scopes.GetByKey(ctx, nil, scopeKey)
	if err != nil {
		return nil, err
	}
	if scope == nil {
		return nil, fmt.Errorf("unknown scope %q", scopeKey)
	}

	if err := r.scopes.Transition(ctx, nil, scope.ID, entry.from, entry.running); err != nil {
		return nil, err
	}
	r.publish(ctx, scopeKey, phase, "started", nil)

	result, phaseErr := r.execute(ctx, scope, phase, budget, runID)
	if phaseErr != nil {
		// Best effort rollback to the status the transition consumed so the
		// phase stays retryable without fabricating a completion.
		if rbErr := r.scopes.Transition(ctx, nil, scope.ID, []string{entry.running}, rollbackStatus(entry, scope.Status)); rbErr != nil {
			r.log.Error("phase rollback failed, scope needs reset", "scope", scopeKey, "phase", phase, "error", rbErr)
		}
		r.publish(ctx, scopeKey, phase, "failed", map[string]any{"error": phaseErr.Error()})
		return nil, phaseErr
	}

	if err := r.scopes.Transition(ctx, nil, scope.ID, []string{entry.running}, entry.done); err != nil {
		return nil, err
	}
	r.publish(ctx, scopeKey, phase, "complete", nil)
	return result, nil
}

func (r *Runner) execute(ctx context.Context, scope *types.Scope, phase string, budget float64, runID *uuid.UUID) (*PhaseResult, error) {
	result := &PhaseResult{Phase: phase}
	switch phase {
	case PhaseReconcile:
		retried, err := r.reconciler.RetryQueued(ctx, scope.Key)
		if err != nil {
			return nil, err
		}
		result.Reconcile = &ReconcileReport{Retried: retried}

	case PhaseWeave:
		hubs, err := r.hubs.FindHubs(ctx, scope.ID)
		if err != nil {
			return nil, err
		}
		mat, err := r.materialize.MaterializeAll(ctx, scope.ID, hubs)
		if err != nil {
			return nil, err
		}
		grow, err := r.grower.GrowAll(ctx, scope.ID, mat.CreatedIDs)
		if err != nil {
			return nil, err
		}
		filed, err := r.findings.ScanStructure(ctx, scope.ID)
		if err != nil {
			return nil, err
		}
		result.Weave = &WeaveReport{Hubs: len(hubs), Materialize: mat, Grow: grow, Findings: filed}

	case PhaseCuriosity:
		rep, err := r.curiosity.Investigate(ctx, scope.ID, runID)
		if err != nil {
			return nil, err
		}
		result.Curiosity = rep

	case PhaseEnrichment:
		ledger, err := r.activeLedger(ctx, scope.ID, budget)
		if err != nil {
			return nil, err
		}
		rep, err := r.enrichment.Enrich(ctx, scope.ID, ledger.ID, runID)
		if err != nil {
			return nil, err
		}
		if err := r.ledger.Finish(ctx, nil, ledger.ID); err != nil {
			r.log.Warn("failed to close run ledger", "ledger_id", ledger.ID, "error", err)
		}
		result.Enrichment = rep
	}
	return result, nil
}

func (r *Runner) activeLedger(ctx context.Context, scopeID uuid.UUID, budget float64) (*types.RunLedger, error) {
	ledger, err := r.ledger.GetActiveByScope(ctx, nil, scopeID)
	if err != nil {
		return nil, err
	}
	if ledger != nil {
		return ledger, nil
	}
	return r.ledger.Start(ctx, nil, scopeID, budget)
}

// ResetScopeLock is the administrative escape hatch for a scope wedged in a
// running status by a crashed worker.
func (r *Runner) ResetScopeLock(ctx context.Context, scopeKey string) error {
	scope, err := r.scopes.GetByKey(ctx, nil, scopeKey)
	if err != nil {
		return err
	}
	if scope == nil {
		return fmt.Errorf("unknown scope %q", scopeKey)
	}
	if err := r.scopes.ForceIdle(ctx, nil, scope.ID); err != nil {
		return err
	}
	r.publish(ctx, scopeKey, "admin", "lock_reset", nil)
	return nil
}

func (r *Runner) publish(ctx context.Context, scopeKey, phase, status string, detail map[string]any) {
	if r.events == nil {
		return
	}
	ev := redis.RunEvent{
		ScopeKey: scopeKey,
		Phase:    phase,
		Status:   status,
		Detail:   detail,
		At:       time.Now().UTC(),
	}
	if err := r.events.Publish(ctx, ev); err != nil {
		r.log.Warn("failed to publish run event", "scope", scopeKey, "phase", phase, "error", err)
	}
}
