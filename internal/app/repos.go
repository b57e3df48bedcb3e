package app

import (
	"gorm.io/gorm"

	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/repos"
)

type Repos struct {
	Scope            repos.ScopeRepo
	RunLedger        repos.RunLedgerRepo
	CuriosityOutcome repos.CuriosityOutcomeRepo
	Finding          repos.FindingRepo
	SynthesisCallLog repos.SynthesisCallLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Scope:            repos.NewScopeRepo(db, log),
		RunLedger:        repos.NewRunLedgerRepo(db, log),
		CuriosityOutcome: repos.NewCuriosityOutcomeRepo(db, log),
		Finding:          repos.NewFindingRepo(db, log),
		SynthesisCallLog: repos.NewSynthesisCallLogRepo(db, log),
	}
}
