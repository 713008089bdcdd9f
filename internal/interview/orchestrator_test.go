package interview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interview-agent/backend/internal/evaluation"
	"github.com/interview-agent/backend/internal/plan"
	"github.com/interview-agent/backend/internal/session"
)

// memoryStore is an in-memory session.Store for orchestrator tests.
type memoryStore struct {
	envelopes map[string]*session.Envelope
	states    map[string]*session.State
	leases    map[string]bool
	leaseHeld bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		envelopes: map[string]*session.Envelope{},
		states:    map[string]*session.State{},
		leases:    map[string]bool{},
	}
}

func (m *memoryStore) GetEnvelope(ctx context.Context, sessionID string) (*session.Envelope, error) {
	env, ok := m.envelopes[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return env, nil
}

func (m *memoryStore) PutEnvelope(ctx context.Context, env *session.Envelope, ttl time.Duration) error {
	m.envelopes[env.SessionID] = env
	return nil
}

func (m *memoryStore) GetState(ctx context.Context, sessionID string) (*session.State, error) {
	state, ok := m.states[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return state, nil
}

func (m *memoryStore) PutState(ctx context.Context, state *session.State, ttl time.Duration) error {
	m.states[state.SessionID] = state
	return nil
}

func (m *memoryStore) AcquireLease(ctx context.Context, sessionID string, ttl time.Duration) error {
	if m.leaseHeld || m.leases[sessionID] {
		return session.ErrTurnInProgress
	}
	m.leases[sessionID] = true
	return nil
}

func (m *memoryStore) ReleaseLease(ctx context.Context, sessionID string) error {
	delete(m.leases, sessionID)
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, sessionID string) error {
	delete(m.envelopes, sessionID)
	delete(m.states, sessionID)
	delete(m.leases, sessionID)
	return nil
}

// memoryArchive records durable writes for assertions.
type memoryArchive struct {
	sessions   []*session.Envelope
	snapshots  []*session.State
	scorecards []*evaluation.Scorecard
}

func (m *memoryArchive) SaveSession(ctx context.Context, env *session.Envelope) error {
	m.sessions = append(m.sessions, env)
	return nil
}

func (m *memoryArchive) SaveFinalState(ctx context.Context, state *session.State) error {
	m.snapshots = append(m.snapshots, state)
	return nil
}

func (m *memoryArchive) SaveScorecard(ctx context.Context, card *evaluation.Scorecard) error {
	m.scorecards = append(m.scorecards, card)
	return nil
}

func seededOrchestrator(t *testing.T, gateway *scriptedGateway, graph *plan.TopicGraph) (*Orchestrator, *memoryStore, *memoryArchive, string) {
	t.Helper()

	store := newMemoryStore()
	archive := &memoryArchive{}
	orch := NewOrchestrator(
		store,
		archive,
		plan.NewBuilder(gateway, 2),
		NewRouter(gateway, 0),
		NewGenerator(gateway, 0),
		evaluation.NewEvaluator(gateway),
		Config{},
	)

	const sessionID = "test-session"
	env := &session.Envelope{
		SessionID: sessionID,
		Role:      "Backend Engineer",
		Seniority: "Senior",
		Skills:    []string{"Go", "System Design"},
		Graph:     graph,
		Archetype: plan.ArchetypeCaseStudy,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.PutEnvelope(context.Background(), env, time.Hour))
	require.NoError(t, store.PutState(context.Background(), session.NewState(sessionID, graph), time.Hour))

	return orch, store, archive, sessionID
}

func threeTopicGraph() *plan.TopicGraph {
	return &plan.TopicGraph{
		Topics: []plan.Topic{
			{TopicID: "topic_01", PrimarySkill: "System Design", TopicName: "Decomposition", Goal: "g1"},
			{TopicID: "topic_02", PrimarySkill: "System Design", TopicName: "Data modeling", Goal: "g2", Dependencies: []string{"topic_01"}},
			{TopicID: "topic_03", PrimarySkill: "Operations", TopicName: "Scaling", Goal: "g3", Dependencies: []string{"topic_02"}},
		},
		Archetype: plan.ArchetypeCaseStudy,
	}
}

func TestHandleTurnAdvancesThroughGraph(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{
		routerResponse("ACKNOWLEDGE_AND_TRANSITION", true),
		composerResponse("Nice. Now, how would you model the core entities?"),
	}}
	orch, store, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())

	result, err := orch.HandleTurn(context.Background(), sessionID, "I would split by bounded context.")
	require.NoError(t, err)

	assert.Equal(t, "ACKNOWLEDGE_AND_TRANSITION", result.Action)
	assert.Equal(t, "topic_02", result.CurrentTopicID)
	assert.Equal(t, []string{"topic_01"}, result.CoveredTopicIDs)
	assert.False(t, result.Completed)

	state := store.states[sessionID]
	require.Len(t, state.History, 1)
	assert.Equal(t, "I would split by bounded context.", state.History[0].Answer)
	assert.Equal(t, 1, state.RouterCalls)
	assert.Equal(t, 1, state.GeneratorCalls)
	assert.NotNil(t, state.Signals["System Design"])

	// Lease released after the turn.
	assert.Empty(t, store.leases)
}

func TestHandleTurnFollowUpKeepsTopic(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{
		routerResponse("GENERATE_FOLLOW_UP", false),
		composerResponse("Can you go deeper on the failure modes?"),
	}}
	orch, store, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())

	result, err := orch.HandleTurn(context.Background(), sessionID, "We use queues.")
	require.NoError(t, err)

	assert.Equal(t, "topic_01", result.CurrentTopicID)
	assert.Empty(t, result.CoveredTopicIDs)
	assert.Equal(t, 1, store.states[sessionID].TopicProgress["topic_01"].Attempts)
}

func TestHandleTurnRedirectNeverShrinksCoverage(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{
		routerResponse("REDIRECT_TO_TOPIC", false),
		composerResponse("Interesting, but let us get back to the data model."),
	}}
	orch, store, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())

	state := store.states[sessionID]
	state.MarkTopicCompleted("topic_01", nil)
	state.CurrentTopicID = "topic_02"

	result, err := orch.HandleTurn(context.Background(), sessionID, "Let me tell you about my hobbies.")
	require.NoError(t, err)

	assert.Equal(t, "topic_02", result.CurrentTopicID)
	assert.Equal(t, []string{"topic_01"}, result.CoveredTopicIDs)
}

func TestHandleTurnCompletesInterview(t *testing.T) {
	graph := &plan.TopicGraph{
		Topics: []plan.Topic{
			{TopicID: "topic_01", PrimarySkill: "Go", TopicName: "Concurrency", Goal: "g1"},
		},
	}
	gateway := &scriptedGateway{responses: []string{
		routerResponse("ACKNOWLEDGE_AND_TRANSITION", true),
	}}
	orch, _, _, sessionID := seededOrchestrator(t, gateway, graph)

	result, err := orch.HandleTurn(context.Background(), sessionID, "Channels plus a worker pool.")
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Equal(t, plan.TopicGraphComplete, result.CurrentTopicID)
	// The closing line comes from a template; only the router hit the model.
	assert.Equal(t, 1, gateway.calls)
	assert.NotEmpty(t, result.Utterance)
}

func TestHandleTurnAfterCompletionIsGraceful(t *testing.T) {
	gateway := &scriptedGateway{}
	orch, store, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())
	store.states[sessionID].CurrentTopicID = plan.TopicGraphComplete

	result, err := orch.HandleTurn(context.Background(), sessionID, "Anything else?")
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Zero(t, gateway.calls)
}

func TestHandleTurnHesitationSkipsComposer(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{
		routerResponse("PROBE_HESITATION", false),
	}}
	orch, _, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())

	result, err := orch.HandleTurn(context.Background(), sessionID, "I... I'm not sure where to start.")
	require.NoError(t, err)

	assert.Equal(t, 1, gateway.calls)
	assert.Contains(t, result.Utterance, "take your time")
	assert.Contains(t, result.Utterance, "decomposition")
}

func TestHandleTurnSurvivesModelOutage(t *testing.T) {
	gateway := &scriptedGateway{err: errors.New("model down")}
	orch, store, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())

	result, err := orch.HandleTurn(context.Background(), sessionID, "An answer into the void.")
	require.NoError(t, err)

	assert.Equal(t, FallbackUtterance, result.Utterance)
	assert.Equal(t, "GENERATE_FOLLOW_UP", result.Action)
	assert.Equal(t, "topic_01", result.CurrentTopicID)
	require.Len(t, store.states[sessionID].History, 1)
}

func TestHandleTurnUnknownSession(t *testing.T) {
	gateway := &scriptedGateway{}
	orch, _, _, _ := seededOrchestrator(t, gateway, threeTopicGraph())

	_, err := orch.HandleTurn(context.Background(), "no-such-session", "hello?")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestHandleTurnExpiredStateReinitializes(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{
		routerResponse("GENERATE_FOLLOW_UP", false),
		composerResponse("Let us pick that back up."),
	}}
	orch, store, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())
	delete(store.states, sessionID)

	result, err := orch.HandleTurn(context.Background(), sessionID, "Where were we?")
	require.NoError(t, err)

	assert.Equal(t, "topic_01", result.CurrentTopicID)
	assert.Len(t, store.states[sessionID].History, 1)
}

func TestHandleTurnLeaseContention(t *testing.T) {
	gateway := &scriptedGateway{}
	orch, store, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())
	store.leaseHeld = true

	_, err := orch.HandleTurn(context.Background(), sessionID, "concurrent answer")
	assert.ErrorIs(t, err, session.ErrTurnInProgress)
}

func TestHandleTurnCorruptTopicID(t *testing.T) {
	gateway := &scriptedGateway{}
	orch, store, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())
	store.states[sessionID].CurrentTopicID = "topic_99"

	_, err := orch.HandleTurn(context.Background(), sessionID, "answer")
	assert.ErrorIs(t, err, ErrStateInconsistency)
}

const evaluationResponse = `{
	"dimension_evaluations": {
		"System Design": {"rating": 4, "confidence": "High", "assessment": "solid"},
		"Operations": {"rating": 5, "confidence": "Medium", "assessment": "strong"}
	},
	"overall_feedback": "Strong showing overall."
}`

func TestCompleteInterview(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{evaluationResponse}}
	orch, store, archive, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())
	store.states[sessionID].MarkTopicCompleted("topic_01", []string{"clear"})

	card, err := orch.Complete(context.Background(), sessionID)
	require.NoError(t, err)

	assert.Equal(t, sessionID, card.SessionID)
	assert.Empty(t, card.Error)
	assert.InDelta(t, 4.5, card.AggregateScore, 0.001)

	require.Len(t, archive.snapshots, 1)
	require.Len(t, archive.scorecards, 1)

	// Live keys are gone once the record is durable.
	_, err = store.GetEnvelope(context.Background(), sessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestCompleteInterviewEvaluatorOutage(t *testing.T) {
	gateway := &scriptedGateway{err: errors.New("model down")}
	orch, _, archive, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())

	card, err := orch.Complete(context.Background(), sessionID)
	require.NoError(t, err)

	assert.NotEmpty(t, card.Error)
	assert.Empty(t, card.Dimensions)
	// The snapshot was still archived before evaluation ran.
	require.Len(t, archive.snapshots, 1)
	require.Len(t, archive.scorecards, 1)
}

func TestSummary(t *testing.T) {
	gateway := &scriptedGateway{}
	orch, store, _, sessionID := seededOrchestrator(t, gateway, threeTopicGraph())
	store.states[sessionID].MarkTopicCompleted("topic_01", nil)
	store.states[sessionID].CurrentTopicID = "topic_02"

	summary, err := orch.Summary(context.Background(), sessionID)
	require.NoError(t, err)

	assert.Equal(t, "topic_02", summary.CurrentTopicID)
	assert.Equal(t, []string{"topic_01"}, summary.CoveredTopicIDs)
	assert.Equal(t, 3, summary.TopicCount)
	assert.False(t, summary.Completed)
}

func TestStartInterview(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{
		`{"archetype": "CASE_STUDY", "confidence_score": 0.9, "suggested_focus": "System Design"}`,
		`{"topic_graph": [
			{"topic_id": "topic_01", "primary_skill": "System Design", "topic_name": "Decomposition", "goal": "g1"}
		], "session_narrative": "A payments startup."}`,
		composerResponse("Welcome! Walk me through your first design decision."),
	}}

	store := newMemoryStore()
	archive := &memoryArchive{}
	orch := NewOrchestrator(store, archive, plan.NewBuilder(gateway, 2), NewRouter(gateway, 0),
		NewGenerator(gateway, 0), evaluation.NewEvaluator(gateway), Config{})

	result, err := orch.StartInterview(context.Background(), "Backend Engineer", "Senior", []string{"Go", "System Design"})
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, plan.ArchetypeCaseStudy, result.Archetype)
	assert.Equal(t, 1, result.TopicCount)
	assert.Contains(t, result.Opening, "Welcome")

	require.Contains(t, store.envelopes, result.SessionID)
	require.Contains(t, store.states, result.SessionID)
	assert.Equal(t, "topic_01", store.states[result.SessionID].CurrentTopicID)
	require.Len(t, archive.sessions, 1)
}

func TestStartInterviewPlanFailure(t *testing.T) {
	gateway := &scriptedGateway{err: errors.New("model down")}
	store := newMemoryStore()
	orch := NewOrchestrator(store, &memoryArchive{}, plan.NewBuilder(gateway, 2), NewRouter(gateway, 0),
		NewGenerator(gateway, 0), evaluation.NewEvaluator(gateway), Config{})

	_, err := orch.StartInterview(context.Background(), "Backend Engineer", "Senior", []string{"Go"})
	require.ErrorIs(t, err, plan.ErrGenerationFailure)
	assert.Empty(t, store.envelopes)
}
