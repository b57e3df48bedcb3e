package app

import (
	"github.com/civicweave/civicweave-backend/internal/handlers"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
)

type Handlers struct {
	Scopes    *handlers.ScopesHandler
	Reconcile *handlers.ReconcileHandler
	Tensions  *handlers.TensionsHandler
	Runs      *handlers.RunsHandler
	Stories   *handlers.StoriesHandler
	Findings  *handlers.FindingsHandler
	Budget    *handlers.BudgetHandler
}

func wireHandlers(log *logger.Logger, cfg Config, serviceset Services, reposet Repos) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Scopes:    handlers.NewScopesHandler(reposet.Scope),
		Reconcile: handlers.NewReconcileHandler(serviceset.Reconciler),
		Tensions:  handlers.NewTensionsHandler(serviceset.Graph, serviceset.Graph, reposet.Scope),
		Runs:      handlers.NewRunsHandler(serviceset.Runner, reposet.Scope, cfg.DefaultBudget),
		Stories:   handlers.NewStoriesHandler(serviceset.Graph, reposet.Scope),
		Findings:  handlers.NewFindingsHandler(serviceset.Findings, reposet.Scope),
		Budget:    handlers.NewBudgetHandler(reposet.RunLedger, reposet.SynthesisCallLog, reposet.Scope),
	}
}
