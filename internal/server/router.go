package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/civicweave/civicweave-backend/internal/handlers"
	"github.com/civicweave/civicweave-backend/internal/platform/envutil"
)

type RouterConfig struct {
	ScopesHandler    *handlers.ScopesHandler
	ReconcileHandler *handlers.ReconcileHandler
	TensionsHandler  *handlers.TensionsHandler
	RunsHandler      *handlers.RunsHandler
	StoriesHandler   *handlers.StoriesHandler
	FindingsHandler  *handlers.FindingsHandler
	BudgetHandler    *handlers.BudgetHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{envutil.String("CORS_ORIGIN", "http://localhost:3000")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Scopes
		api.POST("/scopes", cfg.ScopesHandler.Create)
		api.GET("/scopes", cfg.ScopesHandler.List)
		api.GET("/scopes/:key", cfg.ScopesHandler.Get)
		api.GET("/scopes/:key/status", cfg.RunsHandler.Status)
		api.POST("/scopes/:key/reset-lock", cfg.RunsHandler.ResetLock)

		// Signal intake
		api.POST("/scopes/:key/signals", cfg.ReconcileHandler.ReconcileSignal)
		api.POST("/scopes/:key/signals/retry", cfg.ReconcileHandler.RetryQueued)
		api.POST("/signals/:id/supersede", cfg.TensionsHandler.Supersede)

		// Tension intake
		api.POST("/scopes/:key/tensions", cfg.TensionsHandler.Upsert)
		api.POST("/tensions/:id/respondents", cfg.TensionsHandler.Respond)

		// Runs
		api.POST("/scopes/:key/run", cfg.RunsHandler.RunCycle)
		api.POST("/scopes/:key/run/:phase", cfg.RunsHandler.RunPhase)
		api.GET("/runs/:id/calls", cfg.BudgetHandler.RunCalls)

		// Stories
		api.GET("/scopes/:key/stories", cfg.StoriesHandler.List)
		api.GET("/stories/:id", cfg.StoriesHandler.Get)

		// Findings
		api.GET("/scopes/:key/findings", cfg.FindingsHandler.List)
		api.POST("/findings/:id/dismiss", cfg.FindingsHandler.Dismiss)

		// Budget
		api.GET("/scopes/:key/budget", cfg.BudgetHandler.Active)
	}

	return router
}
