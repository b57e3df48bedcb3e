package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicweave/civicweave-backend/internal/repos"
	"github.com/civicweave/civicweave-backend/internal/types"
)

var errScopeNotFound = errors.New("unknown scope")

// resolveScope turns the :key path param into a scope row, writing the error
// response itself when the lookup fails.
func resolveScope(c *gin.Context, scopes repos.ScopeRepo) (*types.Scope, bool) {
	scope, err := scopes.GetByKey(c.Request.Context(), nil, c.Param("key"))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "scope_lookup_failed", err)
		return nil, false
	}
	if scope == nil {
		RespondError(c, http.StatusNotFound, "scope_not_found", errScopeNotFound)
		return nil, false
	}
	return scope, true
}

type ScopesHandler struct {
	scopes repos.ScopeRepo
}

func NewScopesHandler(scopes repos.ScopeRepo) *ScopesHandler {
	return &ScopesHandler{scopes: scopes}
}

type createScopeRequest struct {
	Key string `json:"key" binding:"required"`
}

// POST /api/scopes
func (h *ScopesHandler) Create(c *gin.Context) {
	var req createScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_scope", err)
		return
	}

	scope, err := h.scopes.Create(c.Request.Context(), nil, &types.Scope{Key: req.Key})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "scope_create_failed", err)
		return
	}

	RespondOK(c, gin.H{"scope": scope})
}

// GET /api/scopes
func (h *ScopesHandler) List(c *gin.Context) {
	scopes, err := h.scopes.List(c.Request.Context(), nil)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "scope_list_failed", err)
		return
	}

	RespondOK(c, gin.H{"scopes": scopes})
}

// GET /api/scopes/:key
func (h *ScopesHandler) Get(c *gin.Context) {
	scope, ok := resolveScope(c, h.scopes)
	if !ok {
		return
	}
	RespondOK(c, gin.H{"scope": scope})
}
