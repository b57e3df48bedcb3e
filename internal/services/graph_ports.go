package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/domain"
)

// Narrow views of the graph store, one per consumer, so each service can be
// exercised against a fake in tests. *graph.Store satisfies all of them.

type SignalGraph interface {
	CreateSignal(ctx context.Context, sig domain.Signal) error
	GetSignal(ctx context.Context, id uuid.UUID) (*domain.Signal, error)
	GetSignalsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Signal, error)
	AttachEvidence(ctx context.Context, id uuid.UUID, sourceURL string, confidence float64) error
	MarkSuperseded(ctx context.Context, id uuid.UUID) error
}

type TensionGraph interface {
	UpsertTension(ctx context.Context, t domain.Tension) error
	TensionsWithoutStory(ctx context.Context, scopeID uuid.UUID) ([]domain.TensionHub, error)
	Respondents(ctx context.Context, tensionID uuid.UUID) ([]domain.Respondent, error)
	ThinTensions(ctx context.Context, scopeID uuid.UUID, minRespondents int) ([]domain.TensionHub, error)
	CreateRespondsTo(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation string) error
}

type StoryGraph interface {
	GetStory(ctx context.Context, id uuid.UUID) (*domain.Story, error)
	StoryForTension(ctx context.Context, tensionID uuid.UUID) (*domain.Story, error)
	MaterializeStory(ctx context.Context, story domain.Story, signalIDs []uuid.UUID) error
	AddContains(ctx context.Context, storyID uuid.UUID, signalIDs []uuid.UUID) error
	ContainedSignalIDs(ctx context.Context, storyID uuid.UUID) ([]uuid.UUID, error)
	StorySignalSets(ctx context.Context, scopeID uuid.UUID) ([]domain.StorySignals, error)
	ListStories(ctx context.Context, scopeID uuid.UUID) ([]domain.Story, error)
	StoriesPendingSynthesis(ctx context.Context, scopeID uuid.UUID) ([]domain.Story, error)
	UpdateStoryAggregates(ctx context.Context, story domain.Story) error
	ApplyNarrative(ctx context.Context, storyID uuid.UUID, lede, narrative string) error
	EmptyStories(ctx context.Context, scopeID uuid.UUID) ([]uuid.UUID, error)
}
