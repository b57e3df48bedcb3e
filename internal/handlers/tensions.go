package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/domain"
	"github.com/civicweave/civicweave-backend/internal/repos"
	"github.com/civicweave/civicweave-backend/internal/services"
)

// TensionsHandler is the intake surface the extraction service uses to put
// tension nodes and RESPONDS_TO edges into the graph. The weaving phases only
// read what arrives here.
type TensionsHandler struct {
	tensions services.TensionGraph
	signals  services.SignalGraph
	scopes   repos.ScopeRepo
}

func NewTensionsHandler(tensions services.TensionGraph, signals services.SignalGraph, scopes repos.ScopeRepo) *TensionsHandler {
	return &TensionsHandler{tensions: tensions, signals: signals, scopes: scopes}
}

type upsertTensionRequest struct {
	ID       *uuid.UUID `json:"id"`
	Title    string     `json:"title" binding:"required"`
	Summary  string     `json:"summary"`
	Severity float64    `json:"severity"`
	Category string     `json:"category"`
}

// POST /api/scopes/:key/tensions
func (h *TensionsHandler) Upsert(c *gin.Context) {
	scope, ok := resolveScope(c, h.scopes)
	if !ok {
		return
	}

	var req upsertTensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_tension", err)
		return
	}

	t := domain.Tension{
		ID:       uuid.New(),
		ScopeID:  scope.ID,
		Title:    req.Title,
		Summary:  req.Summary,
		Severity: req.Severity,
		Category: req.Category,
	}
	if req.ID != nil && *req.ID != uuid.Nil {
		t.ID = *req.ID
	}

	if err := h.tensions.UpsertTension(c.Request.Context(), t); err != nil {
		RespondError(c, http.StatusInternalServerError, "tension_upsert_failed", err)
		return
	}

	RespondOK(c, gin.H{"tension": t})
}

type respondsToRequest struct {
	SignalID    uuid.UUID `json:"signal_id" binding:"required"`
	Strength    float64   `json:"strength"`
	Explanation string    `json:"explanation"`
}

// POST /api/tensions/:id/respondents
func (h *TensionsHandler) Respond(c *gin.Context) {
	tensionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_tension_id", err)
		return
	}

	var req respondsToRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_respondent", err)
		return
	}

	if err := h.tensions.CreateRespondsTo(c.Request.Context(), req.SignalID, tensionID, req.Strength, req.Explanation); err != nil {
		RespondError(c, http.StatusInternalServerError, "responds_to_failed", err)
		return
	}

	RespondOK(c, gin.H{"linked": true})
}

// POST /api/signals/:id/supersede
func (h *TensionsHandler) Supersede(c *gin.Context) {
	signalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_signal_id", err)
		return
	}

	if err := h.signals.MarkSuperseded(c.Request.Context(), signalID); err != nil {
		RespondError(c, http.StatusInternalServerError, "supersede_failed", err)
		return
	}

	RespondOK(c, gin.H{"superseded": true})
}
