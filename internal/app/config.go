package app

import (
	"time"

	"github.com/civicweave/civicweave-backend/internal/platform/envutil"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/platform/pinecone"
	"github.com/civicweave/civicweave-backend/internal/services"
)

type Config struct {
	Pinecone      pinecone.Config
	Reconciler    services.ReconcilerConfig
	Hub           services.HubConfig
	Materializer  services.MaterializerConfig
	Grower        services.GrowerConfig
	Curiosity     services.CuriosityConfig
	Enrichment    services.EnrichmentConfig
	DefaultBudget float64
}

func LoadConfig(log *logger.Logger) Config {
	log.Info("Loading engine configuration...")
	return Config{
		Pinecone: pinecone.Config{
			APIKey:     envutil.String("PINECONE_API_KEY", ""),
			APIVersion: envutil.String("PINECONE_API_VERSION", ""),
			BaseURL:    envutil.String("PINECONE_BASE_URL", ""),
			Timeout:    time.Duration(envutil.Int("PINECONE_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Reconciler: services.ReconcilerConfig{
			SimilarityLow:       envutil.Float("RECONCILE_SIMILARITY_LOW", 0.80),
			SimilarityHigh:      envutil.Float("RECONCILE_SIMILARITY_HIGH", 0.92),
			ConfidenceIncrement: envutil.Float("RECONCILE_CONFIDENCE_INCREMENT", 0.05),
			ConfidenceCeiling:   envutil.Float("RECONCILE_CONFIDENCE_CEILING", 0.99),
			TopK:                envutil.Int("RECONCILE_TOP_K", 5),
		},
		Hub: services.HubConfig{
			MinRespondents: envutil.Int("HUB_MIN_RESPONDENTS", 2),
			MinDomains:     envutil.Int("HUB_MIN_DOMAINS", 2),
		},
		Materializer: services.MaterializerConfig{
			AbsorptionOverlap: envutil.Float("STORY_ABSORPTION_OVERLAP", 0.5),
		},
		Grower: services.GrowerConfig{
			MegaTensionThreshold: envutil.Int("MEGA_TENSION_THRESHOLD", 30),
			Arc: services.ArcConfig{
				GrowRuns: envutil.Int("ARC_GROW_RUNS", 2),
				FadeRuns: envutil.Int("ARC_FADE_RUNS", 3),
				ColdRuns: envutil.Int("ARC_COLD_RUNS", 6),
			},
		},
		Curiosity: services.CuriosityConfig{
			MaxAttempts:    envutil.Int("CURIOSITY_MAX_ATTEMPTS", 3),
			BatchLimit:     envutil.Int("CURIOSITY_BATCH_LIMIT", 25),
			Parallelism:    envutil.Int("CURIOSITY_PARALLELISM", 4),
			MinRespondents: envutil.Int("HUB_MIN_RESPONDENTS", 2),
		},
		Enrichment: services.EnrichmentConfig{
			CostPerSynthesis: envutil.Float("SYNTHESIS_COST_PER_CALL", 1.0),
		},
		DefaultBudget: envutil.Float("RUN_DEFAULT_BUDGET", 10.0),
	}
}
