package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/civicweave/civicweave-backend/internal/domain"
)

func signalFromProps(props map[string]any) domain.Signal {
	return domain.Signal{
		ID:                 propUUID(props, "id"),
		ScopeID:            propUUID(props, "scope_id"),
		Type:               domain.SignalType(propString(props, "type")),
		Title:              propString(props, "title"),
		Summary:            propString(props, "summary"),
		Confidence:         propFloat(props, "confidence"),
		SourceURL:          propString(props, "source_url"),
		SourceDomain:       propString(props, "source_domain"),
		EvidenceURLs:       propStrings(props, "evidence_urls"),
		CorroborationCount: propInt(props, "corroboration_count"),
		ContentDate:        propTime(props, "content_date"),
		Actors:             propStrings(props, "actors"),
		Superseded:         propBool(props, "superseded"),
	}
}

// CreateSignal writes a new Signal node. MERGE on id keeps a retried write
// from producing a second node.
func (s *Store) CreateSignal(ctx context.Context, sig domain.Signal) error {
	if sig.ID == uuid.Nil {
		return fmt.Errorf("graph: signal id required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.write(ctx, `
MERGE (n:Signal {id: $id})
ON CREATE SET
    n.scope_id = $scope_id,
    n.type = $type,
    n.title = $title,
    n.summary = $summary,
    n.confidence = $confidence,
    n.source_url = $source_url,
    n.source_domain = $source_domain,
    n.evidence_urls = $evidence_urls,
    n.corroboration_count = 0,
    n.content_date = $content_date,
    n.actors = $actors,
    n.superseded = false,
    n.created_at = $now
`, map[string]any{
		"id":            sig.ID.String(),
		"scope_id":      sig.ScopeID.String(),
		"type":          string(sig.Type),
		"title":         sig.Title,
		"summary":       sig.Summary,
		"confidence":    sig.Confidence,
		"source_url":    sig.SourceURL,
		"source_domain": sig.SourceDomain,
		"evidence_urls": []any{sig.SourceURL},
		"content_date":  sig.ContentDate.UTC().Format(time.RFC3339Nano),
		"actors":        toAnySlice(sig.Actors),
		"now":           now,
	})
}

func (s *Store) GetSignal(ctx context.Context, id uuid.UUID) (*domain.Signal, error) {
	records, err := s.read(ctx, `
MATCH (n:Signal {id: $id})
RETURN n
`, map[string]any{"id": id.String()})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	node, ok := records[0].Values[0].(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("graph: unexpected record shape for signal %s", id)
	}
	sig := signalFromProps(node.Props)
	return &sig, nil
}

func (s *Store) GetSignalsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Signal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idStrs := make([]any, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil {
			idStrs = append(idStrs, id.String())
		}
	}
	records, err := s.read(ctx, `
MATCH (n:Signal)
WHERE n.id IN $ids
RETURN n
`, map[string]any{"ids": idStrs})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Signal, 0, len(records))
	for _, rec := range records {
		node, ok := rec.Values[0].(neo4j.Node)
		if !ok {
			continue
		}
		out = append(out, signalFromProps(node.Props))
	}
	return out, nil
}

// AttachEvidence folds a corroborating source into an existing signal: the
// URL joins the evidence list if absent, the corroboration count follows the
// list size, and confidence is set to the value the reconciler computed.
// Single atomic write.
func (s *Store) AttachEvidence(ctx context.Context, id uuid.UUID, sourceURL string, confidence float64) error {
	if id == uuid.Nil {
		return fmt.Errorf("graph: signal id required")
	}
	return s.write(ctx, `
MATCH (n:Signal {id: $id})
SET n.evidence_urls = CASE
        WHEN $url IN coalesce(n.evidence_urls, []) THEN n.evidence_urls
        ELSE coalesce(n.evidence_urls, []) + $url
    END
SET n.corroboration_count = size(n.evidence_urls) - 1,
    n.confidence = $confidence,
    n.updated_at = $now
`, map[string]any{
		"id":         id.String(),
		"url":        sourceURL,
		"confidence": confidence,
		"now":        time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Store) MarkSuperseded(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return s.write(ctx, `
MATCH (n:Signal {id: $id})
SET n.superseded = true,
    n.updated_at = $now
`, map[string]any{
		"id":  id.String(),
		"now": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// CreateRespondsTo links a signal to a tension. MERGE on the pair keeps the
// edge unique no matter how many times curiosity or extraction proposes it.
func (s *Store) CreateRespondsTo(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation string) error {
	if signalID == uuid.Nil || tensionID == uuid.Nil {
		return fmt.Errorf("graph: responds_to requires signal and tension ids")
	}
	return s.write(ctx, `
MATCH (sig:Signal {id: $signal_id})
MATCH (t:Tension {id: $tension_id})
MERGE (sig)-[e:RESPONDS_TO]->(t)
ON CREATE SET
    e.strength = $strength,
    e.explanation = $explanation,
    e.linked_at = $now
`, map[string]any{
		"signal_id":   signalID.String(),
		"tension_id":  tensionID.String(),
		"strength":    strength,
		"explanation": explanation,
		"now":         time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func toAnySlice(in []string) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}
