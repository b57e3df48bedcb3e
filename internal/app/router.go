package app

import (
	"github.com/gin-gonic/gin"

	"github.com/civicweave/civicweave-backend/internal/server"
)

func wireRouter(handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ScopesHandler:    handlerset.Scopes,
		ReconcileHandler: handlerset.Reconcile,
		TensionsHandler:  handlerset.Tensions,
		RunsHandler:      handlerset.Runs,
		StoriesHandler:   handlerset.Stories,
		FindingsHandler:  handlerset.Findings,
		BudgetHandler:    handlerset.Budget,
	})
}
