package services

import (
	"testing"

	"github.com/civicweave/civicweave-backend/internal/domain"
)

func TestClassifyArc(t *testing.T) {
	cfg := ArcConfig{GrowRuns: 2, FadeRuns: 3, ColdRuns: 6}

	tests := []struct {
		name string
		obs  ArcObservation
		want domain.Arc
	}{
		{
			name: "new story is emerging",
			obs:  ArcObservation{PriorArc: "", NewArrivals: 3},
			want: domain.ArcEmerging,
		},
		{
			name: "emerging with one active run stays emerging",
			obs:  ArcObservation{PriorArc: domain.ArcEmerging, NewArrivals: 2, ActiveRuns: 0},
			want: domain.ArcEmerging,
		},
		{
			name: "emerging crosses grow threshold",
			obs:  ArcObservation{PriorArc: domain.ArcEmerging, NewArrivals: 2, ActiveRuns: 1},
			want: domain.ArcGrowing,
		},
		{
			name: "growing slows into stable",
			obs:  ArcObservation{PriorArc: domain.ArcGrowing, NewArrivals: 1, PrevArrivalRate: 4, ActiveRuns: 3},
			want: domain.ArcStable,
		},
		{
			name: "growing keeps growing at flat rate",
			obs:  ArcObservation{PriorArc: domain.ArcGrowing, NewArrivals: 4, PrevArrivalRate: 4, ActiveRuns: 3},
			want: domain.ArcGrowing,
		},
		{
			name: "stable accelerates back to growing",
			obs:  ArcObservation{PriorArc: domain.ArcStable, NewArrivals: 6, PrevArrivalRate: 2, ActiveRuns: 5},
			want: domain.ArcGrowing,
		},
		{
			name: "fading story with arrival is resurgent, not emerging",
			obs:  ArcObservation{PriorArc: domain.ArcFading, WasFading: true, NewArrivals: 1, RunsSinceArrival: 4},
			want: domain.ArcResurgent,
		},
		{
			name: "cold story with arrival is resurgent",
			obs:  ArcObservation{PriorArc: domain.ArcCold, WasFading: true, NewArrivals: 2, RunsSinceArrival: 7},
			want: domain.ArcResurgent,
		},
		{
			name: "resurgent with continued arrivals becomes growing",
			obs:  ArcObservation{PriorArc: domain.ArcResurgent, NewArrivals: 3, ActiveRuns: 1},
			want: domain.ArcGrowing,
		},
		{
			name: "short silence keeps prior arc",
			obs:  ArcObservation{PriorArc: domain.ArcStable, NewArrivals: 0, RunsSinceArrival: 1},
			want: domain.ArcStable,
		},
		{
			name: "silence past fade threshold",
			obs:  ArcObservation{PriorArc: domain.ArcStable, NewArrivals: 0, RunsSinceArrival: 2},
			want: domain.ArcFading,
		},
		{
			name: "silence past cold threshold",
			obs:  ArcObservation{PriorArc: domain.ArcFading, NewArrivals: 0, RunsSinceArrival: 5},
			want: domain.ArcCold,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyArc(tc.obs, cfg)
			if got.Arc != tc.want {
				t.Fatalf("ClassifyArc() arc = %s, want %s", got.Arc, tc.want)
			}
		})
	}
}

func TestClassifyArcCounters(t *testing.T) {
	cfg := ArcConfig{GrowRuns: 2, FadeRuns: 3, ColdRuns: 6}

	t.Run("arrival resets silence and bumps active runs", func(t *testing.T) {
		res := ClassifyArc(ArcObservation{
			PriorArc:         domain.ArcGrowing,
			NewArrivals:      2,
			ActiveRuns:       3,
			RunsSinceArrival: 1,
		}, cfg)
		if res.ActiveRuns != 4 {
			t.Fatalf("ActiveRuns = %d, want 4", res.ActiveRuns)
		}
		if res.RunsSinceArrival != 0 {
			t.Fatalf("RunsSinceArrival = %d, want 0", res.RunsSinceArrival)
		}
	})

	t.Run("resurgence restarts the active streak", func(t *testing.T) {
		res := ClassifyArc(ArcObservation{
			PriorArc:         domain.ArcCold,
			WasFading:        true,
			NewArrivals:      1,
			ActiveRuns:       0,
			RunsSinceArrival: 8,
		}, cfg)
		if res.Arc != domain.ArcResurgent {
			t.Fatalf("arc = %s, want resurgent", res.Arc)
		}
		if res.ActiveRuns != 1 {
			t.Fatalf("ActiveRuns = %d, want 1", res.ActiveRuns)
		}
	})

	t.Run("silence accumulates", func(t *testing.T) {
		res := ClassifyArc(ArcObservation{
			PriorArc:         domain.ArcStable,
			NewArrivals:      0,
			ActiveRuns:       5,
			RunsSinceArrival: 0,
		}, cfg)
		if res.RunsSinceArrival != 1 {
			t.Fatalf("RunsSinceArrival = %d, want 1", res.RunsSinceArrival)
		}
		if res.ActiveRuns != 0 {
			t.Fatalf("ActiveRuns = %d, want 0", res.ActiveRuns)
		}
	})
}
