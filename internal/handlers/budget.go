package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/repos"
)

type BudgetHandler struct {
	ledger repos.RunLedgerRepo
	calls  repos.SynthesisCallLogRepo
	scopes repos.ScopeRepo
}

func NewBudgetHandler(ledger repos.RunLedgerRepo, calls repos.SynthesisCallLogRepo, scopes repos.ScopeRepo) *BudgetHandler {
	return &BudgetHandler{ledger: ledger, calls: calls, scopes: scopes}
}

// GET /api/scopes/:key/budget
func (h *BudgetHandler) Active(c *gin.Context) {
	scope, ok := resolveScope(c, h.scopes)
	if !ok {
		return
	}

	ledger, err := h.ledger.GetActiveByScope(c.Request.Context(), nil, scope.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "ledger_lookup_failed", err)
		return
	}
	if ledger == nil {
		RespondOK(c, gin.H{"active": false})
		return
	}

	RespondOK(c, gin.H{
		"active":    true,
		"ledger":    ledger,
		"remaining": ledger.Remaining(),
	})
}

// GET /api/runs/:id/calls
func (h *BudgetHandler) RunCalls(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}

	calls, err := h.calls.ListByRun(c.Request.Context(), nil, runID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "calls_list_failed", err)
		return
	}

	RespondOK(c, gin.H{"calls": calls})
}
