package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-agent/internal/logger"
	"property-agent/internal/model"
	"property-agent/internal/repository"
	"property-agent/internal/session"
)

// scriptedExtractor answers by message text; unknown messages extract nothing.
type scriptedExtractor struct {
	mu      sync.Mutex
	answers map[string]map[string]any
	calls   int
}

func (s *scriptedExtractor) Extract(ctx context.Context, text string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if raw, ok := s.answers[text]; ok {
		return raw, nil
	}
	return map[string]any{}, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	results []model.Property
	err     error
	block   bool
	plans   []model.QueryPlan
}

func (f *fakeSearcher) SearchProperties(ctx context.Context, plan model.QueryPlan) ([]model.Property, error) {
	f.mu.Lock()
	f.plans = append(f.plans, plan)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.results, f.err
}

var fullExtraction = map[string]any{
	"distrito":    "San Isidro",
	"area_minima": float64(80),
	"estado":      "disponible",
	"presupuesto": float64(250000),
	"dormitorios": float64(2),
}

func newTestDialog(t *testing.T, ex Extractor, searcher PropertySearcher) (*DialogController, session.Store) {
	store := session.NewMemoryStore(3)
	log := logger.NewTestLogger(t)
	dc := NewDialogController(NewNormalizer(ex, log), store, searcher, DialogConfig{
		MaxResults:    5,
		SearchTimeout: time.Second,
	}, log)
	return dc, store
}

func threeRows() []model.Property {
	return []model.Property{{ID: 1}, {ID: 2}, {ID: 3}}
}

func TestAdvance_AsksForFirstMissingField(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]map[string]any{
		"Busco en San Isidro 2 dormitorios": {"district": "San Isidro", "bedrooms": float64(2)},
	}}
	searcher := &fakeSearcher{}
	dc, _ := newTestDialog(t, ex, searcher)

	turn, err := dc.Advance(context.Background(), "", "Busco en San Isidro 2 dormitorios")
	require.NoError(t, err)

	assert.NotEmpty(t, turn.SessionID)
	assert.Equal(t, QuestionFor(model.FieldMinArea), turn.Reply)
	assert.False(t, turn.SearchTriggered)
	assert.Equal(t, StateCollecting, turn.DialogState)
	assert.Nil(t, turn.Properties)
	assert.Equal(t, []model.FieldKey{model.FieldMinArea, model.FieldStatus, model.FieldMaxBudget},
		turn.State.CollectedFilters.Missing())
	assert.Equal(t, []model.ChatMessage{
		{Role: model.RoleUser, Content: "Busco en San Isidro 2 dormitorios"},
		{Role: model.RoleAssistant, Content: QuestionFor(model.FieldMinArea)},
	}, turn.State.Messages)
	assert.Empty(t, searcher.plans)
}

func TestAdvance_QuestionsFollowPriorityOrder(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]map[string]any{
		"dos dormitorios": {"dormitorios": float64(2)},
		"en Lince":        {"distrito": "Lince"},
		"80 metros":       {"metros": "80"},
		"disponible":      {"estado": "disponible"},
	}}
	dc, _ := newTestDialog(t, ex, &fakeSearcher{})
	ctx := context.Background()

	turn, err := dc.Advance(ctx, "", "dos dormitorios")
	require.NoError(t, err)
	assert.Equal(t, QuestionFor(model.FieldDistrict), turn.Reply)

	id := turn.SessionID

	turn, err = dc.Advance(ctx, id, "en Lince")
	require.NoError(t, err)
	assert.Equal(t, QuestionFor(model.FieldMinArea), turn.Reply)

	turn, err = dc.Advance(ctx, id, "80 metros")
	require.NoError(t, err)
	assert.Equal(t, QuestionFor(model.FieldStatus), turn.Reply)

	turn, err = dc.Advance(ctx, id, "disponible")
	require.NoError(t, err)
	assert.Equal(t, QuestionFor(model.FieldMaxBudget), turn.Reply)
	assert.Equal(t, id, turn.SessionID)
}

func TestAdvance_NoNewKeysIsIdempotent(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]map[string]any{
		"San Isidro": {"distrito": "San Isidro"},
	}}
	dc, store := newTestDialog(t, ex, &fakeSearcher{})
	ctx := context.Background()

	first, err := dc.Advance(ctx, "", "San Isidro")
	require.NoError(t, err)
	before := first.State.CollectedFilters.Fields()

	second, err := dc.Advance(ctx, first.SessionID, "mmm no sé")
	require.NoError(t, err)

	assert.Equal(t, first.Reply, second.Reply)
	assert.Equal(t, before, second.State.CollectedFilters.Fields())

	state, err := store.Load(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, state.Messages, 4)
}

func TestAdvance_SearchesWhenComplete(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]map[string]any{"todo": fullExtraction}}
	searcher := &fakeSearcher{results: threeRows()}
	dc, _ := newTestDialog(t, ex, searcher)
	ctx := context.Background()

	turn, err := dc.Advance(ctx, "", "todo")
	require.NoError(t, err)

	assert.True(t, turn.SearchTriggered)
	assert.Equal(t, StateReady, turn.DialogState)
	assert.Equal(t, "Encontré 3 propiedades que coinciden con tu búsqueda.", turn.Reply)
	assert.Len(t, turn.Properties, 3)

	require.Len(t, searcher.plans, 1)
	expected := repository.BuildPropertySearchQuery(turn.State.CollectedFilters, 5)
	assert.Equal(t, expected, searcher.plans[0])
	assert.Equal(t, []any{"San Isidro", 80.0, "AVAILABLE", 250000.0, 2}, searcher.plans[0].Args)

	last, err := dc.LastSearch(ctx, turn.SessionID)
	require.NoError(t, err)
	assert.Equal(t, expected.SQL, last.SQL)
	assert.Equal(t, turn.Properties, last.Results)
}

func TestAdvance_ZeroResults(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]map[string]any{"todo": fullExtraction}}
	dc, _ := newTestDialog(t, ex, &fakeSearcher{results: []model.Property{}})

	turn, err := dc.Advance(context.Background(), "", "todo")
	require.NoError(t, err)
	assert.True(t, turn.SearchTriggered)
	assert.Equal(t, replyNoResults, turn.Reply)

	last, err := dc.LastSearch(context.Background(), turn.SessionID)
	require.NoError(t, err)
	assert.NotNil(t, last.Results)
	assert.Empty(t, last.Results)
}

func TestAdvance_SearchFailureIsApology(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]map[string]any{"todo": fullExtraction}}
	dc, _ := newTestDialog(t, ex, &fakeSearcher{err: errors.New("relation does not exist")})
	ctx := context.Background()

	turn, err := dc.Advance(ctx, "", "todo")
	require.NoError(t, err)
	assert.Equal(t, replySearchFailed, turn.Reply)
	assert.True(t, turn.SearchTriggered)
	assert.Nil(t, turn.Properties)

	last, err := dc.LastSearch(ctx, turn.SessionID)
	require.NoError(t, err)
	assert.Contains(t, last.SQL, "SELECT")
	assert.Nil(t, last.Results)
}

func TestAdvance_SearchTimeout(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]map[string]any{"todo": fullExtraction}}
	store := session.NewMemoryStore(3)
	log := logger.NewNoOpLogger()
	dc := NewDialogController(NewNormalizer(ex, log), store, &fakeSearcher{block: true}, DialogConfig{
		MaxResults:    5,
		SearchTimeout: 10 * time.Millisecond,
	}, log)

	turn, err := dc.Advance(context.Background(), "", "todo")
	require.NoError(t, err)
	assert.Equal(t, replySearchFailed, turn.Reply)
}

func TestAdvance_RefinementAfterSearchSearchesAgain(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]map[string]any{
		"todo":        fullExtraction,
		"con balcón":  {"balcon": "sí"},
		"mejor Lince": {"distrito": "Lince"},
	}}
	searcher := &fakeSearcher{results: threeRows()}
	dc, _ := newTestDialog(t, ex, searcher)
	ctx := context.Background()

	turn, err := dc.Advance(ctx, "", "todo")
	require.NoError(t, err)

	turn, err = dc.Advance(ctx, turn.SessionID, "con balcón")
	require.NoError(t, err)
	assert.True(t, turn.SearchTriggered)

	turn, err = dc.Advance(ctx, turn.SessionID, "mejor Lince")
	require.NoError(t, err)

	require.Len(t, searcher.plans, 3)
	assert.Equal(t, []any{"Lince", 80.0, "AVAILABLE", 250000.0, 2, true}, searcher.plans[2].Args)
}

func TestAdvance_ExtractionFailureKeepsFilters(t *testing.T) {
	calls := 0
	ex := extractorFunc(func(ctx context.Context, text string) (map[string]any, error) {
		calls++
		if calls == 1 {
			return map[string]any{"distrito": "Lince"}, nil
		}
		return nil, fmt.Errorf("%w: timeout", ErrExtractionFailed)
	})
	searcher := &fakeSearcher{}
	dc, _ := newTestDialog(t, ex, searcher)
	ctx := context.Background()

	first, err := dc.Advance(ctx, "", "Lince")
	require.NoError(t, err)

	turn, err := dc.Advance(ctx, first.SessionID, "80 metros")
	require.NoError(t, err)
	assert.Equal(t, replyExtractionFailed, turn.Reply)
	assert.False(t, turn.SearchTriggered)
	assert.Equal(t, first.State.CollectedFilters.Fields(), turn.State.CollectedFilters.Fields())
	assert.Len(t, turn.State.Messages, 4)
	assert.Empty(t, searcher.plans)
}

func TestAdvance_InvalidExtractionContinues(t *testing.T) {
	ex := extractorFunc(func(ctx context.Context, text string) (map[string]any, error) {
		return nil, fmt.Errorf("%w: got string", ErrInvalidExtraction)
	})
	dc, _ := newTestDialog(t, ex, &fakeSearcher{})

	turn, err := dc.Advance(context.Background(), "", "Nada relevante")
	require.NoError(t, err)
	assert.Equal(t, QuestionFor(model.FieldDistrict), turn.Reply)
}

func TestAdvance_EmptyMessage(t *testing.T) {
	dc, store := newTestDialog(t, &scriptedExtractor{}, &fakeSearcher{})

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := dc.Advance(context.Background(), "", msg)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdvance_UnknownSessionStartsNewOne(t *testing.T) {
	dc, store := newTestDialog(t, &scriptedExtractor{}, &fakeSearcher{})
	ctx := context.Background()

	turn, err := dc.Advance(ctx, "does-not-exist", "hola")
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", turn.SessionID)

	_, err = store.Load(ctx, turn.SessionID)
	assert.NoError(t, err)
}

func TestAdvance_ConcurrentMessagesSameSession(t *testing.T) {
	dc, store := newTestDialog(t, &scriptedExtractor{}, &fakeSearcher{})
	ctx := context.Background()

	id, err := dc.CreateSession(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := dc.Advance(ctx, id, fmt.Sprintf("mensaje %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, state.Messages, 40)
}

func TestAdvance_ConcurrentMessagesAcrossReplicas(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	log := logger.NewTestLogger(t)
	newReplica := func() *DialogController {
		store := session.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "agent:", 3)
		t.Cleanup(func() { store.Close() })
		return NewDialogController(NewNormalizer(&scriptedExtractor{}, log), store, &fakeSearcher{}, DialogConfig{
			MaxResults:    5,
			SearchTimeout: time.Second,
		}, log)
	}
	replicas := []*DialogController{newReplica(), newReplica()}
	ctx := context.Background()

	id, err := replicas[0].CreateSession(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 15; i++ {
		for _, dc := range replicas {
			wg.Add(1)
			go func(dc *DialogController, i int) {
				defer wg.Done()
				_, err := dc.Advance(ctx, id, fmt.Sprintf("mensaje %d", i))
				assert.NoError(t, err)
			}(dc, i)
		}
	}
	wg.Wait()

	reader := session.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "agent:", 3)
	defer reader.Close()
	state, err := reader.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, state.Messages, 60)
}

func TestLastSearch(t *testing.T) {
	dc, _ := newTestDialog(t, &scriptedExtractor{}, &fakeSearcher{})
	ctx := context.Background()

	_, err := dc.LastSearch(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	turn, err := dc.Advance(ctx, "", "hola")
	require.NoError(t, err)
	_, err = dc.LastSearch(ctx, turn.SessionID)
	assert.ErrorIs(t, err, ErrNoSearchYet)
}

func TestResetSession(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]map[string]any{"todo": fullExtraction}}
	dc, store := newTestDialog(t, ex, &fakeSearcher{results: threeRows()})
	ctx := context.Background()

	turn, err := dc.Advance(ctx, "", "todo")
	require.NoError(t, err)
	require.NoError(t, dc.ResetSession(ctx, turn.SessionID))

	state, err := store.Load(ctx, turn.SessionID)
	require.NoError(t, err)
	assert.True(t, state.CollectedFilters.IsEmpty())
	assert.Empty(t, state.Messages)

	_, err = dc.LastSearch(ctx, turn.SessionID)
	assert.ErrorIs(t, err, ErrNoSearchYet)

	n, err := dc.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResultReply(t *testing.T) {
	assert.Equal(t, replyNoResults, ResultReply(0))
	assert.Equal(t, "Encontré 1 propiedad que coincide con tu búsqueda.", ResultReply(1))
	assert.Equal(t, "Encontré 5 propiedades que coinciden con tu búsqueda.", ResultReply(5))
}
