package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/interview-agent/backend/internal/evaluation"
	"github.com/interview-agent/backend/internal/metrics"
	"github.com/interview-agent/backend/internal/plan"
	"github.com/interview-agent/backend/internal/session"
	"github.com/interview-agent/backend/internal/signals"
	"github.com/interview-agent/backend/pkg/logger"
)

// Archive is the durable boundary. Live sessions stay in the session store;
// the archive receives the session row at start and the write-once snapshot
// plus scorecard at completion. *sqlite.Client satisfies it.
type Archive interface {
	SaveSession(ctx context.Context, env *session.Envelope) error
	SaveFinalState(ctx context.Context, state *session.State) error
	SaveScorecard(ctx context.Context, card *evaluation.Scorecard) error
}

// Config carries the orchestrator's operational knobs.
type Config struct {
	SessionTTL   time.Duration
	LeaseTTL     time.Duration
	HistoryLimit int
}

// Orchestrator runs the turn-by-turn interview state machine. It owns every
// read-modify-write of session state; the router and generator are stateless
// workers it consults.
type Orchestrator struct {
	store     session.Store
	archive   Archive
	builder   *plan.Builder
	router    *Router
	generator *Generator
	evaluator *evaluation.Evaluator

	sessionTTL   time.Duration
	leaseTTL     time.Duration
	historyLimit int
}

func NewOrchestrator(store session.Store, archive Archive, builder *plan.Builder, router *Router, generator *Generator, evaluator *evaluation.Evaluator, cfg Config) *Orchestrator {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 15 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}

	return &Orchestrator{
		store:        store,
		archive:      archive,
		builder:      builder,
		router:       router,
		generator:    generator,
		evaluator:    evaluator,
		sessionTTL:   cfg.SessionTTL,
		leaseTTL:     cfg.LeaseTTL,
		historyLimit: cfg.HistoryLimit,
	}
}

// StartResult is returned to the caller who opened the interview.
type StartResult struct {
	SessionID  string    `json:"session_id"`
	Opening    string    `json:"opening"`
	Archetype  string    `json:"archetype"`
	TopicCount int       `json:"topic_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// TurnResult is the outcome of one candidate answer.
type TurnResult struct {
	SessionID       string   `json:"session_id"`
	Utterance       string   `json:"utterance"`
	Action          string   `json:"action"`
	CurrentTopicID  string   `json:"current_topic_id"`
	CoveredTopicIDs []string `json:"covered_topic_ids"`
	Completed       bool     `json:"completed"`

	RouterLatencyMS    int64 `json:"router_latency_ms"`
	GeneratorLatencyMS int64 `json:"generator_latency_ms"`
	TotalLatencyMS     int64 `json:"total_latency_ms"`
}

// StartInterview builds the topic graph for the candidate profile, seeds the
// live session, and composes the opening question.
func (o *Orchestrator) StartInterview(ctx context.Context, role, seniority string, skills []string) (*StartResult, error) {
	buildStart := time.Now()
	graph, selection, err := o.builder.Build(ctx, role, seniority, skills)
	if err != nil {
		return nil, fmt.Errorf("failed to build interview plan: %w", err)
	}
	metrics.PlanBuildDuration.Observe(time.Since(buildStart).Seconds())
	metrics.PlanTopicsCount.Observe(float64(len(graph.Topics)))

	persona := DefaultPersona(role, seniority)
	env := &session.Envelope{
		SessionID: uuid.New().String(),
		Role:      role,
		Seniority: seniority,
		Skills:    skills,
		Persona:   persona.Style,
		Graph:     graph,
		Archetype: selection.Archetype,
		CreatedAt: time.Now().UTC(),
	}

	if err := o.store.PutEnvelope(ctx, env, o.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	state := session.NewState(env.SessionID, graph)
	if err := o.store.PutState(ctx, state, o.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session state: %w", err)
	}

	if err := o.archive.SaveSession(ctx, env); err != nil {
		// The live session is usable without the archive row; completion
		// will fail loudly if the archive stays down.
		logger.Error("Failed to archive session row", zap.String("session_id", env.SessionID), zap.Error(err))
	}

	opening := o.generator.ComposeOpening(ctx, persona, graph)
	if opening.Err != nil {
		metrics.FallbackTotal.WithLabelValues("generator").Inc()
	}

	metrics.SessionsStarted.Inc()
	logger.Info("Interview started",
		zap.String("session_id", env.SessionID),
		zap.String("archetype", selection.Archetype),
		zap.Int("topics", len(graph.Topics)),
	)

	return &StartResult{
		SessionID:  env.SessionID,
		Opening:    opening.Text,
		Archetype:  selection.Archetype,
		TopicCount: len(graph.Topics),
		CreatedAt:  env.CreatedAt,
	}, nil
}

// HandleTurn processes one candidate answer: classify, maybe advance the
// topic, compose the reply, persist the updated state. A per-session lease
// serializes concurrent turns; the loser gets session.ErrTurnInProgress.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, answer string) (*TurnResult, error) {
	turnStart := time.Now()

	if err := o.store.AcquireLease(ctx, sessionID, o.leaseTTL); err != nil {
		if errors.Is(err, session.ErrTurnInProgress) {
			metrics.LeaseContention.Inc()
		}
		return nil, err
	}
	defer func() {
		if err := o.store.ReleaseLease(context.WithoutCancel(ctx), sessionID); err != nil {
			logger.Warn("Failed to release session lease", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	env, err := o.store.GetEnvelope(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state, err := o.store.GetState(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		// The volatile state expired while the plan survived; restart the
		// conversation from the top of the graph rather than failing.
		logger.Warn("Session state expired, reinitializing", zap.String("session_id", sessionID))
		state = session.NewState(sessionID, env.Graph)
	} else if err != nil {
		return nil, err
	}
	if state.Signals == nil {
		state.Signals = signals.Evidence{}
	}

	if state.Completed() {
		return &TurnResult{
			SessionID:       sessionID,
			Utterance:       closingUtterance,
			Action:          "NONE",
			CurrentTopicID:  plan.TopicGraphComplete,
			CoveredTopicIDs: state.CoveredTopicIDs,
			Completed:       true,
			TotalLatencyMS:  time.Since(turnStart).Milliseconds(),
		}, nil
	}

	topic, ok := env.Graph.Topic(state.CurrentTopicID)
	if !ok {
		return nil, fmt.Errorf("%w: current topic %q not in graph", ErrStateInconsistency, state.CurrentTopicID)
	}

	state.RecordAttempt(topic.TopicID)

	decision := o.router.Classify(ctx, topic.Goal, state.RecentHistory(3), answer)
	state.RouterCalls++
	if decision.Fallback() {
		metrics.FallbackTotal.WithLabelValues("router").Inc()
	}
	metrics.TurnDuration.WithLabelValues("router").Observe(float64(decision.LatencyMS) / 1000)

	state.Signals.Record(topic.PrimarySkill, decision.QualitativeMarkers, decision.GoalAchieved, answer)

	if decision.GoalAchieved {
		state.MarkTopicCompleted(topic.TopicID, decision.QualitativeMarkers)
		state.CurrentTopicID = env.Graph.NextTopicID(topic.TopicID, state.CoveredTopicIDs)
	}

	utterance := o.composeReply(ctx, env, state, topic, decision)
	if utterance.Err != nil {
		metrics.FallbackTotal.WithLabelValues("generator").Inc()
	}
	metrics.TurnDuration.WithLabelValues("generator").Observe(float64(utterance.LatencyMS) / 1000)

	state.AppendTurn(session.Turn{
		Question:  utterance.Text,
		Answer:    answer,
		Timestamp: time.Now().UTC(),
	}, o.historyLimit)

	totalMS := time.Since(turnStart).Milliseconds()
	state.TotalResponseTimeMS += totalMS

	if err := o.store.PutState(ctx, state, o.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session state: %w", err)
	}
	// Rewrite the envelope to push its expiry out alongside the state.
	if err := o.store.PutEnvelope(ctx, env, o.sessionTTL); err != nil {
		logger.Warn("Failed to refresh session envelope", zap.String("session_id", sessionID), zap.Error(err))
	}

	metrics.TurnTotal.WithLabelValues(decision.Action.String()).Inc()
	metrics.TurnDuration.WithLabelValues("total").Observe(float64(totalMS) / 1000)

	logger.Info("Turn processed",
		zap.String("session_id", sessionID),
		zap.String("action", decision.Action.String()),
		zap.Bool("goal_achieved", decision.GoalAchieved),
		zap.String("current_topic", state.CurrentTopicID),
		zap.Int64("total_ms", totalMS),
	)

	return &TurnResult{
		SessionID:          sessionID,
		Utterance:          utterance.Text,
		Action:             decision.Action.String(),
		CurrentTopicID:     state.CurrentTopicID,
		CoveredTopicIDs:    state.CoveredTopicIDs,
		Completed:          state.Completed(),
		RouterLatencyMS:    decision.LatencyMS,
		GeneratorLatencyMS: utterance.LatencyMS,
		TotalLatencyMS:     totalMS,
	}, nil
}

func (o *Orchestrator) composeReply(ctx context.Context, env *session.Envelope, state *session.State, topic *plan.Topic, decision Decision) Utterance {
	if decision.GoalAchieved && state.Completed() {
		return Utterance{Text: closingUtterance}
	}

	// Hesitation gets an empathetic canned reframe; calling the model here
	// risks escalating difficulty on a candidate who is already stuck.
	if decision.Action == ActionProbeHesitation {
		return Utterance{Text: hesitationUtterance(topic)}
	}

	persona := DefaultPersona(env.Role, env.Seniority)
	utterance := o.generator.Compose(ctx, persona, env.Graph, state.CurrentTopicID, state.CoveredTopicIDs, state.History, decision)
	state.GeneratorCalls++
	return utterance
}

const closingUtterance = "That covers everything I wanted to explore with you today. Thank you for the thoughtful discussion — when you're ready, we can wrap up and I'll put together your feedback."

func hesitationUtterance(topic *plan.Topic) string {
	return fmt.Sprintf("No problem at all, take your time. Let's make it more approachable: when you think about %s, what comes to mind first?", strings.ToLower(topic.TopicName))
}

// Complete finishes the interview: the final state is archived exactly once,
// the scorecard is produced and stored, and the live session keys are
// released. Safe to call before every topic is covered.
func (o *Orchestrator) Complete(ctx context.Context, sessionID string) (*evaluation.Scorecard, error) {
	if err := o.store.AcquireLease(ctx, sessionID, o.leaseTTL); err != nil {
		return nil, err
	}
	defer func() {
		if err := o.store.ReleaseLease(context.WithoutCancel(ctx), sessionID); err != nil {
			logger.Warn("Failed to release session lease", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	env, err := o.store.GetEnvelope(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := o.store.GetState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Snapshot before evaluating so a model outage cannot lose the record.
	if err := o.archive.SaveFinalState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to archive final state: %w", err)
	}

	card := o.evaluator.Evaluate(ctx, sessionID, evaluation.Profile{
		Role:      env.Role,
		Seniority: env.Seniority,
		Archetype: env.Archetype,
	}, state.History, state.Signals, evaluationDimensions(env.Graph))

	if err := o.archive.SaveScorecard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to archive scorecard: %w", err)
	}

	if err := o.store.Delete(ctx, sessionID); err != nil {
		logger.Warn("Failed to delete live session keys", zap.String("session_id", sessionID), zap.Error(err))
	}

	status := "evaluated"
	if card.Error != "" {
		status = "evaluation_failed"
	} else {
		metrics.AggregateScore.Observe(card.AggregateScore)
	}
	metrics.SessionsCompleted.WithLabelValues(status).Inc()

	logger.Info("Interview completed",
		zap.String("session_id", sessionID),
		zap.Int("covered_topics", len(state.CoveredTopicIDs)),
		zap.Float64("aggregate", card.AggregateScore),
	)

	return card, nil
}

// SessionSummary is a read-only view of a live session for status polling.
type SessionSummary struct {
	SessionID       string    `json:"session_id"`
	Role            string    `json:"role"`
	Seniority       string    `json:"seniority"`
	Archetype       string    `json:"archetype"`
	CurrentTopicID  string    `json:"current_topic_id"`
	CoveredTopicIDs []string  `json:"covered_topic_ids"`
	TopicCount      int       `json:"topic_count"`
	Turns           int       `json:"turns"`
	Completed       bool      `json:"completed"`
	RouterCalls     int       `json:"router_agent_calls"`
	GeneratorCalls  int       `json:"generator_agent_calls"`
	CreatedAt       time.Time `json:"created_at"`
}

// Summary reports progress without mutating anything.
func (o *Orchestrator) Summary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	env, err := o.store.GetEnvelope(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := o.store.GetState(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		state = session.NewState(sessionID, env.Graph)
	} else if err != nil {
		return nil, err
	}

	return &SessionSummary{
		SessionID:       sessionID,
		Role:            env.Role,
		Seniority:       env.Seniority,
		Archetype:       env.Archetype,
		CurrentTopicID:  state.CurrentTopicID,
		CoveredTopicIDs: state.CoveredTopicIDs,
		TopicCount:      len(env.Graph.Topics),
		Turns:           len(state.History),
		Completed:       state.Completed(),
		RouterCalls:     state.RouterCalls,
		GeneratorCalls:  state.GeneratorCalls,
		CreatedAt:       env.CreatedAt,
	}, nil
}

// evaluationDimensions derives the scorecard dimensions from the unique
// primary skills of the plan, in declaration order.
func evaluationDimensions(graph *plan.TopicGraph) []string {
	seen := map[string]bool{}
	var dims []string
	for _, topic := range graph.Topics {
		if topic.PrimarySkill == "" || seen[topic.PrimarySkill] {
			continue
		}
		seen[topic.PrimarySkill] = true
		dims = append(dims, topic.PrimarySkill)
	}
	return dims
}
