package services

import (
	"github.com/civicweave/civicweave-backend/internal/domain"
)

type ArcConfig struct {
	// GrowRuns is how many consecutive runs with arrivals an Emerging story
	// needs before it counts as Growing.
	GrowRuns int
	// FadeRuns is how many silent runs before any arc drops to Fading.
	FadeRuns int
	// ColdRuns is how many silent runs before Fading drops to Cold.
	ColdRuns int
}

func (c ArcConfig) withDefaults() ArcConfig {
	if c.GrowRuns <= 0 {
		c.GrowRuns = 2
	}
	if c.FadeRuns <= 0 {
		c.FadeRuns = 3
	}
	if c.ColdRuns <= c.FadeRuns {
		c.ColdRuns = c.FadeRuns * 2
	}
	return c
}

// ArcObservation is everything the classifier may look at: the current
// arrival facts plus the one piece of history the machine needs, the prior
// arc. WasFading is passed explicitly rather than inferred from energy, so a
// story that went quiet and came back is Resurgent and never mistaken for a
// brand-new Emerging story.
type ArcObservation struct {
	PriorArc         domain.Arc
	WasFading        bool
	NewArrivals      int
	PrevArrivalRate  int
	ActiveRuns       int
	RunsSinceArrival int
}

// ArcResult carries the new arc plus the updated run counters the caller
// persists on the story for the next classification.
type ArcResult struct {
	Arc              domain.Arc
	ActiveRuns       int
	RunsSinceArrival int
}

// ClassifyArc is a pure function: same observation, same result. No clock,
// no store access.
func ClassifyArc(obs ArcObservation, cfg ArcConfig) ArcResult {
	cfg = cfg.withDefaults()

	if obs.PriorArc == "" {
		return ArcResult{Arc: domain.ArcEmerging, ActiveRuns: 1}
	}

	if obs.NewArrivals > 0 {
		active := obs.ActiveRuns + 1
		out := ArcResult{ActiveRuns: active, RunsSinceArrival: 0}

		if obs.WasFading || obs.PriorArc.Quiet() {
			out.Arc = domain.ArcResurgent
			out.ActiveRuns = 1
			return out
		}

		switch obs.PriorArc {
		case domain.ArcEmerging:
			if active >= cfg.GrowRuns {
				out.Arc = domain.ArcGrowing
			} else {
				out.Arc = domain.ArcEmerging
			}
		case domain.ArcGrowing:
			if obs.PrevArrivalRate > 0 && obs.NewArrivals < obs.PrevArrivalRate {
				out.Arc = domain.ArcStable
			} else {
				out.Arc = domain.ArcGrowing
			}
		case domain.ArcStable:
			if obs.PrevArrivalRate > 0 && obs.NewArrivals > obs.PrevArrivalRate {
				out.Arc = domain.ArcGrowing
			} else {
				out.Arc = domain.ArcStable
			}
		case domain.ArcResurgent:
			// A comeback that keeps arriving is growth again.
			out.Arc = domain.ArcGrowing
		default:
			out.Arc = obs.PriorArc
		}
		return out
	}

	silent := obs.RunsSinceArrival + 1
	out := ArcResult{ActiveRuns: 0, RunsSinceArrival: silent}
	switch {
	case silent >= cfg.ColdRuns:
		out.Arc = domain.ArcCold
	case silent >= cfg.FadeRuns:
		out.Arc = domain.ArcFading
	default:
		out.Arc = obs.PriorArc
	}
	return out
}
