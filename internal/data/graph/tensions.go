package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/civicweave/civicweave-backend/internal/domain"
)

func tensionFromProps(props map[string]any) domain.Tension {
	return domain.Tension{
		ID:       propUUID(props, "id"),
		ScopeID:  propUUID(props, "scope_id"),
		Title:    propString(props, "title"),
		Summary:  propString(props, "summary"),
		Severity: propFloat(props, "severity"),
		Category: propString(props, "category"),
	}
}

func respondentFromRecord(rec *neo4j.Record) (domain.Respondent, bool) {
	node, ok := rec.Values[1].(neo4j.Node)
	if !ok {
		return domain.Respondent{}, false
	}
	rel, ok := rec.Values[2].(neo4j.Relationship)
	if !ok {
		return domain.Respondent{}, false
	}
	return domain.Respondent{
		SignalID:     propUUID(node.Props, "id"),
		SignalType:   domain.SignalType(propString(node.Props, "type")),
		SourceURL:    propString(node.Props, "source_url"),
		SourceDomain: propString(node.Props, "source_domain"),
		Strength:     propFloat(rel.Props, "strength"),
		Explanation:  propString(rel.Props, "explanation"),
		LinkedAt:     propTime(rel.Props, "linked_at"),
	}, true
}

func (s *Store) UpsertTension(ctx context.Context, t domain.Tension) error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("graph: tension id required")
	}
	return s.write(ctx, `
MERGE (t:Tension {id: $id})
SET t.scope_id = $scope_id,
    t.title = $title,
    t.summary = $summary,
    t.severity = $severity,
    t.category = $category,
    t.updated_at = $now
`, map[string]any{
		"id":       t.ID.String(),
		"scope_id": t.ScopeID.String(),
		"title":    t.Title,
		"summary":  t.Summary,
		"severity": t.Severity,
		"category": t.Category,
		"now":      time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// TensionsWithoutStory returns every tension in the scope that no Story yet
// covers, each with its full respondent set. Pure read; qualification is the
// hub finder's job.
func (s *Store) TensionsWithoutStory(ctx context.Context, scopeID uuid.UUID) ([]domain.TensionHub, error) {
	records, err := s.read(ctx, `
MATCH (t:Tension {scope_id: $scope_id})
WHERE NOT ( (:Story)-[:CONTAINS]->(t) )
OPTIONAL MATCH (sig:Signal)-[e:RESPONDS_TO]->(t)
RETURN t, sig, e
ORDER BY t.id
`, map[string]any{"scope_id": scopeID.String()})
	if err != nil {
		return nil, err
	}
	return collectHubs(records), nil
}

// Respondents returns the RESPONDS_TO edges of one tension with their signal
// fields, newest link last.
func (s *Store) Respondents(ctx context.Context, tensionID uuid.UUID) ([]domain.Respondent, error) {
	if tensionID == uuid.Nil {
		return nil, nil
	}
	records, err := s.read(ctx, `
MATCH (t:Tension {id: $id})
MATCH (sig:Signal)-[e:RESPONDS_TO]->(t)
RETURN t, sig, e
ORDER BY e.linked_at
`, map[string]any{"id": tensionID.String()})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Respondent, 0, len(records))
	for _, rec := range records {
		if r, ok := respondentFromRecord(rec); ok && r.SignalID != uuid.Nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// ThinTensions returns tensions whose evidence is thin or one-sided: fewer
// respondents than minRespondents, or all respondents from a single source
// domain. These are the curiosity investigation candidates.
func (s *Store) ThinTensions(ctx context.Context, scopeID uuid.UUID, minRespondents int) ([]domain.TensionHub, error) {
	if minRespondents <= 0 {
		minRespondents = 2
	}
	records, err := s.read(ctx, `
MATCH (t:Tension {scope_id: $scope_id})
MATCH (sig:Signal)-[e:RESPONDS_TO]->(t)
WITH t, collect({sig: sig, e: e}) AS rows, collect(DISTINCT sig.source_domain) AS domains
WHERE size(rows) < $min OR size(domains) < 2
UNWIND rows AS row
RETURN t, row.sig, row.e
ORDER BY t.id
`, map[string]any{"scope_id": scopeID.String(), "min": minRespondents})
	if err != nil {
		return nil, err
	}
	return collectHubs(records), nil
}

func collectHubs(records []*neo4j.Record) []domain.TensionHub {
	order := []uuid.UUID{}
	byID := map[uuid.UUID]*domain.TensionHub{}
	for _, rec := range records {
		tNode, ok := rec.Values[0].(neo4j.Node)
		if !ok {
			continue
		}
		t := tensionFromProps(tNode.Props)
		if t.ID == uuid.Nil {
			continue
		}
		hub := byID[t.ID]
		if hub == nil {
			hub = &domain.TensionHub{Tension: t}
			byID[t.ID] = hub
			order = append(order, t.ID)
		}
		if r, ok := respondentFromRecord(rec); ok && r.SignalID != uuid.Nil {
			hub.Respondents = append(hub.Respondents, r)
		}
	}
	out := make([]domain.TensionHub, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
