package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/repos"
	"github.com/civicweave/civicweave-backend/internal/services"
)

type FindingsHandler struct {
	findings *services.FindingService
	scopes   repos.ScopeRepo
}

func NewFindingsHandler(findings *services.FindingService, scopes repos.ScopeRepo) *FindingsHandler {
	return &FindingsHandler{findings: findings, scopes: scopes}
}

// GET /api/scopes/:key/findings?status=open&limit=50
func (h *FindingsHandler) List(c *gin.Context) {
	scope, ok := resolveScope(c, h.scopes)
	if !ok {
		return
	}

	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	findings, err := h.findings.List(c.Request.Context(), scope.ID, status, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "findings_list_failed", err)
		return
	}

	RespondOK(c, gin.H{"findings": findings})
}

// POST /api/findings/:id/dismiss
func (h *FindingsHandler) Dismiss(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_finding_id", err)
		return
	}

	if err := h.findings.Dismiss(c.Request.Context(), id); err != nil {
		RespondError(c, http.StatusBadRequest, "dismiss_failed", err)
		return
	}

	RespondOK(c, gin.H{"dismissed": true})
}
