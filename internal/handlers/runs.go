package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicweave/civicweave-backend/internal/repos"
	"github.com/civicweave/civicweave-backend/internal/services"
)

type RunsHandler struct {
	runner        *services.Runner
	scopes        repos.ScopeRepo
	defaultBudget float64
}

func NewRunsHandler(runner *services.Runner, scopes repos.ScopeRepo, defaultBudget float64) *RunsHandler {
	return &RunsHandler{runner: runner, scopes: scopes, defaultBudget: defaultBudget}
}

type runRequest struct {
	Budget float64 `json:"budget"`
}

func (h *RunsHandler) budgetOrDefault(req runRequest) float64 {
	if req.Budget > 0 {
		return req.Budget
	}
	return h.defaultBudget
}

// POST /api/scopes/:key/run
func (h *RunsHandler) RunCycle(c *gin.Context) {
	scopeKey := c.Param("key")

	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_run_request", err)
			return
		}
	}

	summary, err := h.runner.RunCycle(c.Request.Context(), scopeKey, h.budgetOrDefault(req))
	if err != nil {
		if errors.Is(err, repos.ErrScopeLocked) {
			RespondError(c, http.StatusConflict, "scope_locked", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "run_failed", err)
		return
	}

	RespondOK(c, gin.H{"run": summary})
}

// POST /api/scopes/:key/run/:phase
func (h *RunsHandler) RunPhase(c *gin.Context) {
	scopeKey := c.Param("key")
	phase := c.Param("phase")

	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_run_request", err)
			return
		}
	}

	result, err := h.runner.RunPhase(c.Request.Context(), scopeKey, phase, h.budgetOrDefault(req), nil)
	if err != nil {
		if errors.Is(err, repos.ErrScopeLocked) {
			RespondError(c, http.StatusConflict, "scope_locked", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "phase_failed", err)
		return
	}

	RespondOK(c, gin.H{"result": result})
}

// POST /api/scopes/:key/reset-lock
func (h *RunsHandler) ResetLock(c *gin.Context) {
	scopeKey := c.Param("key")

	if err := h.runner.ResetScopeLock(c.Request.Context(), scopeKey); err != nil {
		RespondError(c, http.StatusBadRequest, "reset_failed", err)
		return
	}

	RespondOK(c, gin.H{"reset": true})
}

// GET /api/scopes/:key/status
func (h *RunsHandler) Status(c *gin.Context) {
	scopeKey := c.Param("key")

	scope, err := h.scopes.GetByKey(c.Request.Context(), nil, scopeKey)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "scope_lookup_failed", err)
		return
	}
	if scope == nil {
		RespondError(c, http.StatusNotFound, "scope_not_found", errors.New("unknown scope"))
		return
	}

	RespondOK(c, gin.H{"scope": scope})
}
