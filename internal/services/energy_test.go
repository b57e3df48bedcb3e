package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/domain"
)

func TestComputeAggregates(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	respondents := []domain.Respondent{
		{SignalID: uuid.New(), SignalType: domain.SignalNotice, SourceDomain: "a.org", LinkedAt: now},
		{SignalID: uuid.New(), SignalType: domain.SignalTension, SourceDomain: "a.org", LinkedAt: now.Add(-7 * 24 * time.Hour)},
		{SignalID: uuid.New(), SignalType: domain.SignalNotice, SourceDomain: "b.org", LinkedAt: now.Add(-28 * 24 * time.Hour)},
	}

	agg := ComputeAggregates(respondents, now)
	if agg.SignalCount != 3 {
		t.Fatalf("signal count = %d, want 3", agg.SignalCount)
	}
	if agg.TypeDiversity != 2 {
		t.Fatalf("type diversity = %d, want 2", agg.TypeDiversity)
	}
	if agg.SourceDomainCount != 2 {
		t.Fatalf("source domain count = %d, want 2", agg.SourceDomainCount)
	}

	// 1.0 today + 0.5 at one week + 0.2 at four weeks.
	want := 1.0 + 0.5 + 0.2
	if diff := agg.Energy - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("energy = %f, want %f", agg.Energy, want)
	}
}

func TestEnergyFavorsFreshSignals(t *testing.T) {
	now := time.Now()
	fresh := []domain.Respondent{
		{SignalID: uuid.New(), LinkedAt: now.Add(-time.Hour)},
		{SignalID: uuid.New(), LinkedAt: now.Add(-2 * time.Hour)},
	}
	stale := []domain.Respondent{
		{SignalID: uuid.New(), LinkedAt: now.Add(-60 * 24 * time.Hour)},
		{SignalID: uuid.New(), LinkedAt: now.Add(-90 * 24 * time.Hour)},
		{SignalID: uuid.New(), LinkedAt: now.Add(-120 * 24 * time.Hour)},
	}

	if ComputeAggregates(fresh, now).Energy <= ComputeAggregates(stale, now).Energy {
		t.Fatal("two fresh respondents should out-score three stale ones")
	}
}
