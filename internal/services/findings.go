package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/repos"
	"github.com/civicweave/civicweave-backend/internal/types"
)

// FindingService is the human-triage surface over findings, plus the
// structural scans that produce inconsistency findings.
type FindingService struct {
	log      *logger.Logger
	findings repos.FindingRepo
	stories  StoryGraph
}

func NewFindingService(log *logger.Logger, findings repos.FindingRepo, stories StoryGraph) *FindingService {
	return &FindingService{
		log:      log.With("service", "FindingService"),
		findings: findings,
		stories:  stories,
	}
}

func (s *FindingService) List(ctx context.Context, scopeID uuid.UUID, status string, limit int) ([]*types.Finding, error) {
	return s.findings.List(ctx, nil, scopeID, status, limit)
}

func (s *FindingService) Dismiss(ctx context.Context, id uuid.UUID) error {
	return s.findings.Dismiss(ctx, nil, id)
}

// ScanStructure looks for graph states the engine should never produce and
// files one inconsistency finding per offender. Today that is stories with no
// contained signals.
func (s *FindingService) ScanStructure(ctx context.Context, scopeID uuid.UUID) (int, error) {
	empty, err := s.stories.EmptyStories(ctx, scopeID)
	if err != nil {
		return 0, fmt.Errorf("scan empty stories: %w", err)
	}
	filed := 0
	for _, storyID := range empty {
		detail := fmt.Sprintf("story %s contains no signals", storyID)
		if exists, err := s.findings.ExistsOpen(ctx, nil, scopeID, types.FindingKindInconsistency, detail); err != nil {
			return filed, err
		} else if exists {
			continue
		}
		meta, _ := json.Marshal(map[string]any{"story_id": storyID})
		if _, err := s.findings.Create(ctx, nil, &types.Finding{
			ScopeID:  scopeID,
			Kind:     types.FindingKindInconsistency,
			Detail:   detail,
			Metadata: datatypes.JSON(meta),
		}); err != nil {
			return filed, err
		}
		filed++
	}
	if filed > 0 {
		s.log.Warn("structural scan filed findings", "scope_id", scopeID, "count", filed)
	}
	return filed, nil
}
