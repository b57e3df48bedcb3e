package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/civicweave/civicweave-backend/internal/domain"
)

func storyFromProps(props map[string]any) domain.Story {
	return domain.Story{
		ID:                propUUID(props, "id"),
		ScopeID:           propUUID(props, "scope_id"),
		TensionID:         propUUID(props, "tension_id"),
		Headline:          propString(props, "headline"),
		Summary:           propString(props, "summary"),
		Lede:              propString(props, "lede"),
		Narrative:         propString(props, "narrative"),
		Arc:               domain.Arc(propString(props, "arc")),
		Energy:            propFloat(props, "energy"),
		SignalCount:       propInt(props, "signal_count"),
		TypeDiversity:     propInt(props, "type_diversity"),
		SourceDomainCount: propInt(props, "source_domain_count"),
		SynthesisPending:  propBool(props, "synthesis_pending"),
		NeedsRefinement:   propBool(props, "needs_refinement"),
		ActiveRuns:        propInt(props, "active_runs"),
		RunsSinceArrival:  propInt(props, "runs_since_arrival"),
		LastArrivalRate:   propInt(props, "last_arrival_rate"),
		CreatedAt:         propTime(props, "created_at"),
		UpdatedAt:         propTime(props, "updated_at"),
	}
}

func (s *Store) GetStory(ctx context.Context, id uuid.UUID) (*domain.Story, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	records, err := s.read(ctx, `
MATCH (st:Story {id: $id})
RETURN st
`, map[string]any{"id": id.String()})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	node, ok := records[0].Values[0].(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("graph: unexpected record shape for story %s", id)
	}
	story := storyFromProps(node.Props)
	return &story, nil
}

func (s *Store) StoryForTension(ctx context.Context, tensionID uuid.UUID) (*domain.Story, error) {
	if tensionID == uuid.Nil {
		return nil, nil
	}
	records, err := s.read(ctx, `
MATCH (st:Story {tension_id: $tension_id})
RETURN st
LIMIT 1
`, map[string]any{"tension_id": tensionID.String()})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	node, ok := records[0].Values[0].(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("graph: unexpected record shape for tension %s story", tensionID)
	}
	story := storyFromProps(node.Props)
	return &story, nil
}

// MaterializeStory creates the Story node and its Contains edges in one
// write transaction. MERGE keyed on tension_id means a re-run (or a crash
// between phases) can never produce a second Story for the same tension, and
// re-linking an already-contained signal is a no-op.
func (s *Store) MaterializeStory(ctx context.Context, story domain.Story, signalIDs []uuid.UUID) error {
	if story.ID == uuid.Nil || story.TensionID == uuid.Nil {
		return fmt.Errorf("graph: story and tension ids required")
	}
	ids := make([]any, 0, len(signalIDs))
	for _, id := range signalIDs {
		if id != uuid.Nil {
			ids = append(ids, id.String())
		}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.write(ctx, `
MATCH (t:Tension {id: $tension_id})
MERGE (st:Story {tension_id: $tension_id})
ON CREATE SET
    st.id = $id,
    st.scope_id = $scope_id,
    st.headline = $headline,
    st.summary = $summary,
    st.lede = '',
    st.narrative = '',
    st.arc = $arc,
    st.energy = $energy,
    st.signal_count = $signal_count,
    st.type_diversity = $type_diversity,
    st.source_domain_count = $source_domain_count,
    st.synthesis_pending = true,
    st.needs_refinement = false,
    st.active_runs = 1,
    st.runs_since_arrival = 0,
    st.last_arrival_rate = $signal_count,
    st.created_at = $now,
    st.updated_at = $now
MERGE (st)-[:CONTAINS]->(t)
WITH st
UNWIND $signal_ids AS sid
MATCH (sig:Signal {id: sid})
MERGE (st)-[c:CONTAINS]->(sig)
ON CREATE SET c.linked_at = $now
`, map[string]any{
		"id":                  story.ID.String(),
		"tension_id":          story.TensionID.String(),
		"scope_id":            story.ScopeID.String(),
		"headline":            story.Headline,
		"summary":             story.Summary,
		"arc":                 string(story.Arc),
		"energy":              story.Energy,
		"signal_count":        story.SignalCount,
		"type_diversity":      story.TypeDiversity,
		"source_domain_count": story.SourceDomainCount,
		"signal_ids":          ids,
		"now":                 now,
	})
}

// AddContains links signals into a story. Append-only and idempotent: an
// existing edge is left untouched, so the Contains set only ever grows.
func (s *Store) AddContains(ctx context.Context, storyID uuid.UUID, signalIDs []uuid.UUID) error {
	if storyID == uuid.Nil || len(signalIDs) == 0 {
		return nil
	}
	ids := make([]any, 0, len(signalIDs))
	for _, id := range signalIDs {
		if id != uuid.Nil {
			ids = append(ids, id.String())
		}
	}
	return s.write(ctx, `
MATCH (st:Story {id: $story_id})
UNWIND $signal_ids AS sid
MATCH (sig:Signal {id: sid})
MERGE (st)-[c:CONTAINS]->(sig)
ON CREATE SET c.linked_at = $now
`, map[string]any{
		"story_id":   storyID.String(),
		"signal_ids": ids,
		"now":        time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Store) ContainedSignalIDs(ctx context.Context, storyID uuid.UUID) ([]uuid.UUID, error) {
	if storyID == uuid.Nil {
		return nil, nil
	}
	records, err := s.read(ctx, `
MATCH (st:Story {id: $story_id})-[:CONTAINS]->(sig:Signal)
RETURN sig.id
`, map[string]any{"story_id": storyID.String()})
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		raw, _ := rec.Values[0].(string)
		if id, err := uuid.Parse(raw); err == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

// StorySignalSets returns every story in the scope with its contained signal
// ids, for the absorption overlap check.
func (s *Store) StorySignalSets(ctx context.Context, scopeID uuid.UUID) ([]domain.StorySignals, error) {
	records, err := s.read(ctx, `
MATCH (st:Story {scope_id: $scope_id})
OPTIONAL MATCH (st)-[:CONTAINS]->(sig:Signal)
RETURN st.id, st.tension_id, collect(sig.id)
`, map[string]any{"scope_id": scopeID.String()})
	if err != nil {
		return nil, err
	}
	out := make([]domain.StorySignals, 0, len(records))
	for _, rec := range records {
		idRaw, _ := rec.Values[0].(string)
		storyID, err := uuid.Parse(idRaw)
		if err != nil {
			continue
		}
		tidRaw, _ := rec.Values[1].(string)
		tensionID, _ := uuid.Parse(tidRaw)
		set := domain.StorySignals{StoryID: storyID, TensionID: tensionID}
		if raw, ok := rec.Values[2].([]any); ok {
			for _, v := range raw {
				if s, ok := v.(string); ok {
					if sid, err := uuid.Parse(s); err == nil {
						set.SignalIDs = append(set.SignalIDs, sid)
					}
				}
			}
		}
		out = append(out, set)
	}
	return out, nil
}

func (s *Store) ListStories(ctx context.Context, scopeID uuid.UUID) ([]domain.Story, error) {
	records, err := s.read(ctx, `
MATCH (st:Story {scope_id: $scope_id})
RETURN st
ORDER BY st.energy DESC
`, map[string]any{"scope_id": scopeID.String()})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Story, 0, len(records))
	for _, rec := range records {
		if node, ok := rec.Values[0].(neo4j.Node); ok {
			out = append(out, storyFromProps(node.Props))
		}
	}
	return out, nil
}

func (s *Store) StoriesPendingSynthesis(ctx context.Context, scopeID uuid.UUID) ([]domain.Story, error) {
	records, err := s.read(ctx, `
MATCH (st:Story {scope_id: $scope_id})
WHERE st.synthesis_pending = true
RETURN st
`, map[string]any{"scope_id": scopeID.String()})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Story, 0, len(records))
	for _, rec := range records {
		if node, ok := rec.Values[0].(neo4j.Node); ok {
			out = append(out, storyFromProps(node.Props))
		}
	}
	return out, nil
}

// UpdateStoryAggregates refreshes the derived fields Phase B recomputes.
// It never touches headline, lede or narrative; a Story stays regenerable
// from its tension no matter how often this runs.
func (s *Store) UpdateStoryAggregates(ctx context.Context, story domain.Story) error {
	if story.ID == uuid.Nil {
		return fmt.Errorf("graph: story id required")
	}
	return s.write(ctx, `
MATCH (st:Story {id: $id})
SET st.arc = $arc,
    st.energy = $energy,
    st.signal_count = $signal_count,
    st.type_diversity = $type_diversity,
    st.source_domain_count = $source_domain_count,
    st.needs_refinement = $needs_refinement,
    st.active_runs = $active_runs,
    st.runs_since_arrival = $runs_since_arrival,
    st.last_arrival_rate = $last_arrival_rate,
    st.updated_at = $now
`, map[string]any{
		"id":                  story.ID.String(),
		"arc":                 string(story.Arc),
		"energy":              story.Energy,
		"signal_count":        story.SignalCount,
		"type_diversity":      story.TypeDiversity,
		"source_domain_count": story.SourceDomainCount,
		"needs_refinement":    story.NeedsRefinement,
		"active_runs":         story.ActiveRuns,
		"runs_since_arrival":  story.RunsSinceArrival,
		"last_arrival_rate":   story.LastArrivalRate,
		"now":                 time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// ApplyNarrative fills the synthesized prose and clears synthesis_pending in
// one write, guarded on the flag still being set: the result lands whole or
// not at all, never as a half-written narrative.
func (s *Store) ApplyNarrative(ctx context.Context, storyID uuid.UUID, lede, narrative string) error {
	if storyID == uuid.Nil {
		return fmt.Errorf("graph: story id required")
	}
	return s.write(ctx, `
MATCH (st:Story {id: $id})
WHERE st.synthesis_pending = true
SET st.lede = $lede,
    st.narrative = $narrative,
    st.synthesis_pending = false,
    st.updated_at = $now
`, map[string]any{
		"id":        storyID.String(),
		"lede":      lede,
		"narrative": narrative,
		"now":       time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// EmptyStories finds stories that contain no signals at all, which should be
// impossible given the materialization threshold. Reported as findings, not
// treated as fatal.
func (s *Store) EmptyStories(ctx context.Context, scopeID uuid.UUID) ([]uuid.UUID, error) {
	records, err := s.read(ctx, `
MATCH (st:Story {scope_id: $scope_id})
WHERE NOT ( (st)-[:CONTAINS]->(:Signal) )
RETURN st.id
`, map[string]any{"scope_id": scopeID.String()})
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		raw, _ := rec.Values[0].(string)
		if id, err := uuid.Parse(raw); err == nil {
			out = append(out, id)
		}
	}
	return out, nil
}
