package app

import (
	"fmt"

	"github.com/civicweave/civicweave-backend/internal/data/graph"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/platform/neo4jdb"
	"github.com/civicweave/civicweave-backend/internal/platform/pinecone"
	"github.com/civicweave/civicweave-backend/internal/platform/redis"
	"github.com/civicweave/civicweave-backend/internal/services"
)

type Services struct {
	Graph      *graph.Store
	Vectors    pinecone.VectorStore
	Queue      redis.CandidateQueue
	Events     redis.RunEventBus
	Synthesis  services.SynthesisClient
	Reconciler services.ReconcilerService
	Hubs       services.HubFinderService
	Material   services.MaterializerService
	Grower     services.GrowerService
	Curiosity  *services.CuriosityService
	Enrichment *services.EnrichmentScheduler
	Findings   *services.FindingService
	Runner     *services.Runner
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	neoClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		return Services{}, fmt.Errorf("init neo4j: %w", err)
	}
	graphStore, err := graph.NewStore(neoClient, log)
	if err != nil {
		return Services{}, fmt.Errorf("init graph store: %w", err)
	}

	pineconeClient, err := pinecone.New(log, cfg.Pinecone)
	if err != nil {
		return Services{}, fmt.Errorf("init pinecone: %w", err)
	}
	vectors, err := pinecone.NewVectorStore(log, pineconeClient)
	if err != nil {
		return Services{}, fmt.Errorf("init vector store: %w", err)
	}

	queue, err := redis.NewCandidateQueue(log)
	if err != nil {
		return Services{}, fmt.Errorf("init candidate queue: %w", err)
	}
	events, err := redis.NewRunEventBus(log)
	if err != nil {
		return Services{}, fmt.Errorf("init run event bus: %w", err)
	}

	synthesis, err := services.NewSynthesisClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init synthesis client: %w", err)
	}

	reconciler := services.NewReconcilerService(log, cfg.Reconciler, graphStore, vectors, queue)
	hubs := services.NewHubFinderService(log, cfg.Hub, graphStore)
	material := services.NewMaterializerService(log, cfg.Materializer, graphStore)
	grower := services.NewGrowerService(log, cfg.Grower, graphStore, graphStore)
	curiosity := services.NewCuriosityService(log, cfg.Curiosity, graphStore, graphStore,
		reposet.CuriosityOutcome, reposet.Finding, reposet.SynthesisCallLog, synthesis)
	enrichment := services.NewEnrichmentScheduler(log, cfg.Enrichment, graphStore,
		reposet.RunLedger, reposet.SynthesisCallLog, synthesis)
	findings := services.NewFindingService(log, reposet.Finding, graphStore)
	runner := services.NewRunner(log, reposet.Scope, reposet.RunLedger, events,
		reconciler, hubs, material, grower, curiosity, enrichment, findings)

	return Services{
		Graph:      graphStore,
		Vectors:    vectors,
		Queue:      queue,
		Events:     events,
		Synthesis:  synthesis,
		Reconciler: reconciler,
		Hubs:       hubs,
		Material:   material,
		Grower:     grower,
		Curiosity:  curiosity,
		Enrichment: enrichment,
		Findings:   findings,
		Runner:     runner,
	}, nil
}
