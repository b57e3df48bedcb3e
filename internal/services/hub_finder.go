package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/domain"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
)

type HubConfig struct {
	// MinRespondents and MinDomains form the story existence threshold,
	// checked only at materialization time.
	MinRespondents int
	MinDomains     int
}

func (c HubConfig) withDefaults() HubConfig {
	if c.MinRespondents <= 0 {
		c.MinRespondents = 2
	}
	if c.MinDomains <= 0 {
		c.MinDomains = 2
	}
	return c
}

// HubFinderService scans for tensions that have become coherent enough to
// present: at least MinRespondents responding signals from at least
// MinDomains distinct source domains, and no Story yet. Pure read,
// deterministic, idempotent.
type HubFinderService interface {
	FindHubs(ctx context.Context, scopeID uuid.UUID) ([]domain.TensionHub, error)
}

type hubFinder struct {
	log      *logger.Logger
	cfg      HubConfig
	tensions TensionGraph
}

func NewHubFinderService(log *logger.Logger, cfg HubConfig, tensions TensionGraph) HubFinderService {
	return &hubFinder{
		log:      log.With("service", "HubFinderService"),
		cfg:      cfg.withDefaults(),
		tensions: tensions,
	}
}

func (f *hubFinder) FindHubs(ctx context.Context, scopeID uuid.UUID) ([]domain.TensionHub, error) {
	all, err := f.tensions.TensionsWithoutStory(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TensionHub, 0, len(all))
	for _, hub := range all {
		if QualifiesAsHub(hub, f.cfg) {
			out = append(out, hub)
		}
	}
	return out, nil
}

// QualifiesAsHub applies the existence threshold to one tension.
func QualifiesAsHub(hub domain.TensionHub, cfg HubConfig) bool {
	cfg = cfg.withDefaults()
	if len(hub.Respondents) < cfg.MinRespondents {
		return false
	}
	return hub.DistinctDomains() >= cfg.MinDomains
}
