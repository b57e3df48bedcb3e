package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicweave/civicweave-backend/internal/domain"
	"github.com/civicweave/civicweave-backend/internal/services"
)

type ReconcileHandler struct {
	reconciler services.ReconcilerService
}

func NewReconcileHandler(reconciler services.ReconcilerService) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler}
}

// POST /api/scopes/:key/signals
func (h *ReconcileHandler) ReconcileSignal(c *gin.Context) {
	scopeKey := c.Param("key")

	var cand domain.CandidateSignal
	if err := c.ShouldBindJSON(&cand); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_candidate", err)
		return
	}

	outcome, err := h.reconciler.Reconcile(c.Request.Context(), scopeKey, cand)
	if err != nil {
		if errors.Is(err, services.ErrSimilarityUnavailable) {
			// The candidate is parked on the retry queue, not lost.
			c.JSON(http.StatusAccepted, gin.H{"queued": true})
			return
		}
		RespondError(c, http.StatusBadRequest, "reconcile_failed", err)
		return
	}

	RespondOK(c, gin.H{"outcome": outcome})
}

// POST /api/scopes/:key/signals/retry
func (h *ReconcileHandler) RetryQueued(c *gin.Context) {
	scopeKey := c.Param("key")

	processed, err := h.reconciler.RetryQueued(c.Request.Context(), scopeKey)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "retry_failed", err)
		return
	}

	RespondOK(c, gin.H{"processed": processed})
}
