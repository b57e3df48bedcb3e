package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicweave/civicweave-backend/internal/domain"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
	"github.com/civicweave/civicweave-backend/internal/platform/pinecone"
	"github.com/civicweave/civicweave-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// ---- graph fakes ----

type attachCall struct {
	SignalID   uuid.UUID
	SourceURL  string
	Confidence float64
}

type fakeSignalGraph struct {
	mu       sync.Mutex
	signals  map[uuid.UUID]domain.Signal
	created  []domain.Signal
	attached []attachCall
}

func newFakeSignalGraph() *fakeSignalGraph {
	return &fakeSignalGraph{signals: map[uuid.UUID]domain.Signal{}}
}

func (f *fakeSignalGraph) CreateSignal(_ context.Context, sig domain.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals[sig.ID] = sig
	f.created = append(f.created, sig)
	return nil
}

func (f *fakeSignalGraph) GetSignal(_ context.Context, id uuid.UUID) (*domain.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sig, ok := f.signals[id]; ok {
		return &sig, nil
	}
	return nil, nil
}

func (f *fakeSignalGraph) GetSignalsByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Signal{}
	for _, id := range ids {
		if sig, ok := f.signals[id]; ok {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (f *fakeSignalGraph) AttachEvidence(_ context.Context, id uuid.UUID, sourceURL string, confidence float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sig, ok := f.signals[id]
	if !ok {
		return fmt.Errorf("no signal %s", id)
	}
	sig.EvidenceURLs = append(sig.EvidenceURLs, sourceURL)
	sig.CorroborationCount = len(sig.EvidenceURLs) - 1
	sig.Confidence = confidence
	f.signals[id] = sig
	f.attached = append(f.attached, attachCall{SignalID: id, SourceURL: sourceURL, Confidence: confidence})
	return nil
}

func (f *fakeSignalGraph) MarkSuperseded(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sig, ok := f.signals[id]
	if !ok {
		return fmt.Errorf("no signal %s", id)
	}
	sig.Superseded = true
	f.signals[id] = sig
	return nil
}

type respondsToEdge struct {
	SignalID  uuid.UUID
	TensionID uuid.UUID
	Strength  float64
}

type fakeTensionGraph struct {
	mu           sync.Mutex
	upserted     []domain.Tension
	withoutStory []domain.TensionHub
	thin         []domain.TensionHub
	respondents  map[uuid.UUID][]domain.Respondent
	edges        []respondsToEdge
	edgeErr      error
}

func newFakeTensionGraph() *fakeTensionGraph {
	return &fakeTensionGraph{respondents: map[uuid.UUID][]domain.Respondent{}}
}

func (f *fakeTensionGraph) UpsertTension(_ context.Context, t domain.Tension) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, t)
	return nil
}

func (f *fakeTensionGraph) TensionsWithoutStory(_ context.Context, _ uuid.UUID) ([]domain.TensionHub, error) {
	return f.withoutStory, nil
}

func (f *fakeTensionGraph) Respondents(_ context.Context, tensionID uuid.UUID) ([]domain.Respondent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.respondents[tensionID], nil
}

func (f *fakeTensionGraph) ThinTensions(_ context.Context, _ uuid.UUID, _ int) ([]domain.TensionHub, error) {
	return f.thin, nil
}

func (f *fakeTensionGraph) CreateRespondsTo(_ context.Context, signalID, tensionID uuid.UUID, strength float64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.edgeErr != nil {
		return f.edgeErr
	}
	f.edges = append(f.edges, respondsToEdge{SignalID: signalID, TensionID: tensionID, Strength: strength})
	return nil
}

type narrativeCall struct {
	StoryID   uuid.UUID
	Lede      string
	Narrative string
}

type fakeStoryGraph struct {
	mu         sync.Mutex
	stories    map[uuid.UUID]domain.Story
	byTension  map[uuid.UUID]uuid.UUID
	contains   map[uuid.UUID][]uuid.UUID
	narratives []narrativeCall
	updates    []domain.Story
	empty      []uuid.UUID
	applyErr   error
}

func newFakeStoryGraph() *fakeStoryGraph {
	return &fakeStoryGraph{
		stories:   map[uuid.UUID]domain.Story{},
		byTension: map[uuid.UUID]uuid.UUID{},
		contains:  map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeStoryGraph) addStory(story domain.Story, signalIDs []uuid.UUID) {
	f.stories[story.ID] = story
	f.byTension[story.TensionID] = story.ID
	f.contains[story.ID] = append([]uuid.UUID{}, signalIDs...)
}

func (f *fakeStoryGraph) GetStory(_ context.Context, id uuid.UUID) (*domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.stories[id]; ok {
		return &st, nil
	}
	return nil, nil
}

func (f *fakeStoryGraph) StoryForTension(_ context.Context, tensionID uuid.UUID) (*domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byTension[tensionID]; ok {
		st := f.stories[id]
		return &st, nil
	}
	return nil, nil
}

func (f *fakeStoryGraph) MaterializeStory(_ context.Context, story domain.Story, signalIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byTension[story.TensionID]; ok {
		return nil // MERGE semantics: second materialize is a no-op
	}
	f.addStory(story, signalIDs)
	return nil
}

func (f *fakeStoryGraph) AddContains(_ context.Context, storyID uuid.UUID, signalIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	have := map[uuid.UUID]bool{}
	for _, id := range f.contains[storyID] {
		have[id] = true
	}
	for _, id := range signalIDs {
		if !have[id] {
			f.contains[storyID] = append(f.contains[storyID], id)
		}
	}
	return nil
}

func (f *fakeStoryGraph) ContainedSignalIDs(_ context.Context, storyID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID{}, f.contains[storyID]...), nil
}

func (f *fakeStoryGraph) StorySignalSets(_ context.Context, _ uuid.UUID) ([]domain.StorySignals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.StorySignals{}
	for id, st := range f.stories {
		out = append(out, domain.StorySignals{
			StoryID:   id,
			TensionID: st.TensionID,
			SignalIDs: append([]uuid.UUID{}, f.contains[id]...),
		})
	}
	return out, nil
}

func (f *fakeStoryGraph) ListStories(_ context.Context, _ uuid.UUID) ([]domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Story{}
	for _, st := range f.stories {
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeStoryGraph) StoriesPendingSynthesis(_ context.Context, _ uuid.UUID) ([]domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Story{}
	for _, st := range f.stories {
		if st.SynthesisPending {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeStoryGraph) UpdateStoryAggregates(_ context.Context, story domain.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.stories[story.ID]
	if !ok {
		return fmt.Errorf("no story %s", story.ID)
	}
	// Narrative fields never travel through this path.
	story.Lede = existing.Lede
	story.Narrative = existing.Narrative
	f.stories[story.ID] = story
	f.updates = append(f.updates, story)
	return nil
}

func (f *fakeStoryGraph) ApplyNarrative(_ context.Context, storyID uuid.UUID, lede, narrative string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	st, ok := f.stories[storyID]
	if !ok || !st.SynthesisPending {
		return nil // guarded write matches nothing
	}
	st.Lede = lede
	st.Narrative = narrative
	st.SynthesisPending = false
	f.stories[storyID] = st
	f.narratives = append(f.narratives, narrativeCall{StoryID: storyID, Lede: lede, Narrative: narrative})
	return nil
}

func (f *fakeStoryGraph) EmptyStories(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	return f.empty, nil
}

// ---- vector / queue fakes ----

type fakeVectorStore struct {
	matches  []pinecone.VectorMatch
	queryErr error
	upserts  [][]pinecone.Vector
}

func (f *fakeVectorStore) Upsert(_ context.Context, _ string, vectors []pinecone.Vector) error {
	f.upserts = append(f.upserts, vectors)
	return nil
}

func (f *fakeVectorStore) QueryMatches(_ context.Context, _ string, _ []float32, _ int, _ map[string]any) ([]pinecone.VectorMatch, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

type fakeQueue struct {
	items  []domain.CandidateSignal
	lenErr error
}

func (f *fakeQueue) Push(_ context.Context, _ string, cand domain.CandidateSignal) error {
	f.items = append(f.items, cand)
	return nil
}

func (f *fakeQueue) Pop(_ context.Context, _ string) (*domain.CandidateSignal, error) {
	if len(f.items) == 0 {
		return nil, nil
	}
	cand := f.items[0]
	f.items = f.items[1:]
	return &cand, nil
}

func (f *fakeQueue) Len(_ context.Context, _ string) (int64, error) {
	if f.lenErr != nil {
		return 0, f.lenErr
	}
	return int64(len(f.items)), nil
}

// ---- repo fakes ----

type fakeOutcomes struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.CuriosityOutcome
}

func newFakeOutcomes() *fakeOutcomes {
	return &fakeOutcomes{rows: map[uuid.UUID]*types.CuriosityOutcome{}}
}

func (f *fakeOutcomes) EnsurePair(_ context.Context, _ *gorm.DB, scopeID, signalID, tensionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.SignalID == signalID && row.TensionID == tensionID {
			return nil
		}
	}
	id := uuid.New()
	f.rows[id] = &types.CuriosityOutcome{
		ID:        id,
		ScopeID:   scopeID,
		SignalID:  signalID,
		TensionID: tensionID,
		State:     types.CuriosityPending,
	}
	return nil
}

func (f *fakeOutcomes) GetPair(_ context.Context, _ *gorm.DB, signalID, tensionID uuid.UUID) (*types.CuriosityOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.SignalID == signalID && row.TensionID == tensionID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOutcomes) ListActionable(_ context.Context, _ *gorm.DB, scopeID uuid.UUID, maxAttempts, limit int) ([]*types.CuriosityOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*types.CuriosityOutcome{}
	for _, row := range f.rows {
		if row.ScopeID != scopeID {
			continue
		}
		if row.State == types.CuriosityPending || (row.State == types.CuriosityFailed && row.Attempts < maxAttempts) {
			cp := *row
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutcomes) MarkInProgress(_ context.Context, _ *gorm.DB, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return false, fmt.Errorf("no pair %s", id)
	}
	if row.State != types.CuriosityPending && row.State != types.CuriosityFailed {
		return false, nil
	}
	row.State = types.CuriosityInProgress
	return true, nil
}

func (f *fakeOutcomes) RecoverInterrupted(_ context.Context, _ *gorm.DB, scopeID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if row.ScopeID == scopeID && row.State == types.CuriosityInProgress {
			row.State = types.CuriosityPending
			row.LastError = "interrupted"
			n++
		}
	}
	return n, nil
}

func (f *fakeOutcomes) MarkTerminal(_ context.Context, _ *gorm.DB, id uuid.UUID, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("no pair %s", id)
	}
	if row.State != types.CuriosityInProgress {
		return fmt.Errorf("pair %s not in progress", id)
	}
	if !types.CuriosityTerminal(state) {
		return fmt.Errorf("state %s not terminal", state)
	}
	row.State = state
	return nil
}

func (f *fakeOutcomes) RecordFailure(_ context.Context, _ *gorm.DB, id uuid.UUID, callErr string, maxAttempts int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return false, fmt.Errorf("no pair %s", id)
	}
	row.Attempts++
	row.LastError = callErr
	if row.Attempts >= maxAttempts {
		row.State = types.CuriosityAbandoned
		return true, nil
	}
	row.State = types.CuriosityFailed
	return false, nil
}

func (f *fakeOutcomes) CountByState(_ context.Context, _ *gorm.DB, scopeID uuid.UUID, state string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if row.ScopeID == scopeID && row.State == state {
			n++
		}
	}
	return n, nil
}

func (f *fakeOutcomes) stateOf(signalID, tensionID uuid.UUID) (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.SignalID == signalID && row.TensionID == tensionID {
			return row.State, row.Attempts
		}
	}
	return "", 0
}

type fakeFindings struct {
	mu   sync.Mutex
	rows []*types.Finding
}

func (f *fakeFindings) Create(_ context.Context, _ *gorm.DB, finding *types.Finding) (*types.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if finding.ID == uuid.Nil {
		finding.ID = uuid.New()
	}
	if finding.Status == "" {
		finding.Status = types.FindingOpen
	}
	f.rows = append(f.rows, finding)
	return finding, nil
}

func (f *fakeFindings) List(_ context.Context, _ *gorm.DB, scopeID uuid.UUID, status string, _ int) ([]*types.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*types.Finding{}
	for _, row := range f.rows {
		if row.ScopeID == scopeID && (status == "" || row.Status == status) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeFindings) ExistsOpen(_ context.Context, _ *gorm.DB, scopeID uuid.UUID, kind, detail string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ScopeID == scopeID && row.Kind == kind && row.Detail == detail && row.Status == types.FindingOpen {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFindings) Dismiss(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			if row.Status != types.FindingOpen {
				return fmt.Errorf("finding %s not open", id)
			}
			row.Status = types.FindingDismissed
			return nil
		}
	}
	return fmt.Errorf("no finding %s", id)
}

type fakeCalls struct {
	mu   sync.Mutex
	rows []*types.SynthesisCallLog
}

func (f *fakeCalls) Create(_ context.Context, _ *gorm.DB, row *types.SynthesisCallLog) (*types.SynthesisCallLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	f.rows = append(f.rows, row)
	return row, nil
}

func (f *fakeCalls) ListByRun(_ context.Context, _ *gorm.DB, runID uuid.UUID) ([]*types.SynthesisCallLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*types.SynthesisCallLog{}
	for _, row := range f.rows {
		if row.RunID != nil && *row.RunID == runID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeLedger struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]*types.RunLedger
	debits int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[uuid.UUID]*types.RunLedger{}}
}

func (f *fakeLedger) Start(_ context.Context, _ *gorm.DB, scopeID uuid.UUID, budget float64) (*types.RunLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := &types.RunLedger{ID: uuid.New(), ScopeID: scopeID, Budget: budget, Status: types.LedgerActive}
	f.rows[row.ID] = row
	return row, nil
}

func (f *fakeLedger) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.RunLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeLedger) GetActiveByScope(_ context.Context, _ *gorm.DB, scopeID uuid.UUID) (*types.RunLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ScopeID == scopeID && row.Status == types.LedgerActive {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) TryDebit(_ context.Context, _ *gorm.DB, id uuid.UUID, cost float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.Status != types.LedgerActive {
		return false, nil
	}
	if row.Spent+cost > row.Budget {
		return false, nil
	}
	row.Spent += cost
	f.debits++
	return true, nil
}

func (f *fakeLedger) Finish(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.Status = types.LedgerFinished
	}
	return nil
}

// ---- synthesis client fake ----

type fakeSynthesis struct {
	mu              sync.Mutex
	investigations  int
	syntheses       int
	investigateFn   func(req InvestigationRequest) (*InvestigationResult, error)
	synthesizeFn    func(req SynthesisRequest) (*SynthesisResult, error)
	synthesizeOrder []uuid.UUID
}

func (f *fakeSynthesis) Investigate(_ context.Context, req InvestigationRequest) (*InvestigationResult, error) {
	f.mu.Lock()
	f.investigations++
	fn := f.investigateFn
	f.mu.Unlock()
	if fn == nil {
		return &InvestigationResult{}, nil
	}
	return fn(req)
}

func (f *fakeSynthesis) Synthesize(_ context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	f.mu.Lock()
	f.syntheses++
	f.synthesizeOrder = append(f.synthesizeOrder, req.StoryID)
	fn := f.synthesizeFn
	f.mu.Unlock()
	if fn == nil {
		return &SynthesisResult{Lede: "lede", Narrative: "narrative"}, nil
	}
	return fn(req)
}
