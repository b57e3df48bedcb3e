package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/domain"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/platform/pinecone"
	"github.com/civicweave/civicweave-backend/internal/platform/redis"
)

// ErrSimilarityUnavailable means the embedding lookup failed; the candidate
// has been queued and will be retried on the next run.
var ErrSimilarityUnavailable = errors.New("similarity lookup unavailable; candidate queued for retry")

type ReconcilerConfig struct {
	// Below SimilarityLow a candidate is distinct; above SimilarityHigh it is
	// the same fact from another source. In between, source domains break the
	// tie.
	SimilarityLow  float64
	SimilarityHigh float64
	// ConfidenceIncrement is the bounded bump one corroboration adds before
	// the diversity weighting.
	ConfidenceIncrement float64
	ConfidenceCeiling   float64
	TopK                int
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.SimilarityLow <= 0 {
		c.SimilarityLow = 0.80
	}
	if c.SimilarityHigh <= c.SimilarityLow {
		c.SimilarityHigh = 0.92
	}
	if c.ConfidenceIncrement <= 0 {
		c.ConfidenceIncrement = 0.05
	}
	if c.ConfidenceCeiling <= 0 || c.ConfidenceCeiling > 1 {
		c.ConfidenceCeiling = 0.99
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	return c
}

type ReconcilerService interface {
	Reconcile(ctx context.Context, scopeKey string, cand domain.CandidateSignal) (domain.ReconcileOutcome, error)
	// RetryQueued drains candidates parked by earlier lookup failures. A
	// candidate that fails again goes back on the queue.
	RetryQueued(ctx context.Context, scopeKey string) (processed int, err error)
}

type reconciler struct {
	log     *logger.Logger
	cfg     ReconcilerConfig
	signals SignalGraph
	vectors pinecone.VectorStore
	queue   redis.CandidateQueue
}

func NewReconcilerService(log *logger.Logger, cfg ReconcilerConfig, signals SignalGraph, vectors pinecone.VectorStore, queue redis.CandidateQueue) ReconcilerService {
	return &reconciler{
		log:     log.With("service", "ReconcilerService"),
		cfg:     cfg.withDefaults(),
		signals: signals,
		vectors: vectors,
		queue:   queue,
	}
}

func (r *reconciler) Reconcile(ctx context.Context, scopeKey string, cand domain.CandidateSignal) (domain.ReconcileOutcome, error) {
	if cand.ScopeID == uuid.Nil {
		return domain.ReconcileOutcome{}, fmt.Errorf("reconcile: scope id required")
	}
	if _, ok := domain.ParseSignalType(string(cand.Type)); !ok {
		return domain.ReconcileOutcome{}, fmt.Errorf("reconcile: unknown signal type %q", cand.Type)
	}
	if len(cand.Embedding) == 0 {
		return domain.ReconcileOutcome{}, fmt.Errorf("reconcile: embedding required")
	}

	matches, err := r.vectors.QueryMatches(ctx, cand.ScopeID.String(), cand.Embedding, r.cfg.TopK, map[string]any{
		"type": string(cand.Type),
	})
	if err != nil {
		if r.queue != nil {
			if qErr := r.queue.Push(ctx, scopeKey, cand); qErr != nil {
				return domain.ReconcileOutcome{}, fmt.Errorf("similarity lookup failed and queueing failed: %v: %w", qErr, err)
			}
		}
		r.log.Warn("similarity lookup failed; candidate queued", "scope", scopeKey, "error", err)
		return domain.ReconcileOutcome{}, fmt.Errorf("%w: %v", ErrSimilarityUnavailable, err)
	}

	best, bestScore := r.bestExisting(ctx, matches)
	if best == nil || bestScore < r.cfg.SimilarityLow {
		return r.create(ctx, cand)
	}

	sameDomain := best.SourceDomain != "" && best.SourceDomain == SourceDomain(cand.SourceURL)
	switch {
	case bestScore >= r.cfg.SimilarityHigh:
		if best.SourceURL == cand.SourceURL {
			// The exact same document re-scraped carries no new evidence.
			r.log.Debug("dedup: identical source re-seen", "signal_id", best.ID, "score", bestScore)
			return domain.ReconcileOutcome{Decision: domain.ReconcileDeduplicated, SignalID: best.ID, Similarity: bestScore}, nil
		}
		return r.corroborate(ctx, best, cand, bestScore)
	case sameDomain:
		// Gray band, same outlet: most likely the same content re-scraped.
		r.log.Debug("dedup: ambiguous match within one domain", "signal_id", best.ID, "score", bestScore)
		return domain.ReconcileOutcome{Decision: domain.ReconcileDeduplicated, SignalID: best.ID, Similarity: bestScore}, nil
	default:
		// Gray band, different outlet: independent sourcing raises trust.
		return r.corroborate(ctx, best, cand, bestScore)
	}
}

func (r *reconciler) bestExisting(ctx context.Context, matches []pinecone.VectorMatch) (*domain.Signal, float64) {
	ids := make([]uuid.UUID, 0, len(matches))
	scores := map[uuid.UUID]float64{}
	for _, m := range matches {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		scores[id] = m.Score
	}
	if len(ids) == 0 {
		return nil, 0
	}
	sigs, err := r.signals.GetSignalsByIDs(ctx, ids)
	if err != nil {
		r.log.Warn("match hydration failed; treating candidate as distinct", "error", err)
		return nil, 0
	}
	var best *domain.Signal
	bestScore := 0.0
	for i := range sigs {
		if sigs[i].Superseded {
			continue
		}
		if sc := scores[sigs[i].ID]; best == nil || sc > bestScore {
			best = &sigs[i]
			bestScore = sc
		}
	}
	return best, bestScore
}

func (r *reconciler) create(ctx context.Context, cand domain.CandidateSignal) (domain.ReconcileOutcome, error) {
	sig := domain.Signal{
		ID:           uuid.New(),
		ScopeID:      cand.ScopeID,
		Type:         cand.Type,
		Title:        cand.Title,
		Summary:      cand.Summary,
		Confidence:   cand.Confidence,
		SourceURL:    cand.SourceURL,
		SourceDomain: SourceDomain(cand.SourceURL),
		ContentDate:  cand.ContentDate,
		Actors:       cand.Actors,
	}
	if err := r.signals.CreateSignal(ctx, sig); err != nil {
		return domain.ReconcileOutcome{}, fmt.Errorf("create signal: %w", err)
	}
	if err := r.vectors.Upsert(ctx, cand.ScopeID.String(), []pinecone.Vector{{
		ID:     sig.ID.String(),
		Values: cand.Embedding,
		Metadata: map[string]any{
			"type": string(sig.Type),
		},
	}}); err != nil {
		// The node exists; the vector can be backfilled. Log, don't fail.
		r.log.Warn("vector upsert failed after signal create", "signal_id", sig.ID, "error", err)
	}
	return domain.ReconcileOutcome{Decision: domain.ReconcileCreated, SignalID: sig.ID, Confidence: sig.Confidence}, nil
}

func (r *reconciler) corroborate(ctx context.Context, existing *domain.Signal, cand domain.CandidateSignal, score float64) (domain.ReconcileOutcome, error) {
	conf := CorroboratedConfidence(*existing, cand.SourceURL, r.cfg.ConfidenceIncrement, r.cfg.ConfidenceCeiling)
	if err := r.signals.AttachEvidence(ctx, existing.ID, cand.SourceURL, conf); err != nil {
		return domain.ReconcileOutcome{}, fmt.Errorf("attach evidence: %w", err)
	}
	r.log.Debug("corroborated signal", "signal_id", existing.ID, "score", score, "confidence", conf)
	return domain.ReconcileOutcome{
		Decision:   domain.ReconcileCorroborated,
		SignalID:   existing.ID,
		Similarity: score,
		Confidence: conf,
	}, nil
}

func (r *reconciler) RetryQueued(ctx context.Context, scopeKey string) (int, error) {
	if r.queue == nil {
		return 0, nil
	}
	n, err := r.queue.Len(ctx, scopeKey)
	if err != nil {
		return 0, err
	}
	processed := 0
	// Bound the drain to the queue length at entry so a candidate that fails
	// again and re-queues is not retried in the same run.
	for i := int64(0); i < n; i++ {
		cand, err := r.queue.Pop(ctx, scopeKey)
		if err != nil {
			return processed, err
		}
		if cand == nil {
			break
		}
		if _, err := r.Reconcile(ctx, scopeKey, *cand); err != nil {
			if errors.Is(err, ErrSimilarityUnavailable) {
				continue
			}
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// CorroboratedConfidence recomputes a signal's confidence from its evidence
// after one more source joins. Bounded: the increment scales with source
// diversity but the result never exceeds the ceiling.
func CorroboratedConfidence(sig domain.Signal, newURL string, increment, ceiling float64) float64 {
	domains := map[string]bool{}
	for _, u := range sig.EvidenceURLs {
		if d := SourceDomain(u); d != "" {
			domains[d] = true
		}
	}
	if d := SourceDomain(sig.SourceURL); d != "" {
		domains[d] = true
	}
	if d := SourceDomain(newURL); d != "" {
		domains[d] = true
	}
	diversity := float64(len(domains))
	if diversity < 1 {
		diversity = 1
	}
	conf := sig.Confidence + increment*(1+0.5*(diversity-1))
	if conf > ceiling {
		conf = ceiling
	}
	return conf
}

// SourceDomain extracts a comparable source identifier from a URL: the host,
// lowercased, with any www prefix dropped.
func SourceDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Bare hosts ("example.org/a") parse with an empty Host.
		if i := strings.IndexByte(raw, '/'); i > 0 {
			return strings.TrimPrefix(strings.ToLower(raw[:i]), "www.")
		}
		return strings.TrimPrefix(strings.ToLower(raw), "www.")
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
