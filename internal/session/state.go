package session

import (
	"context"
	"errors"
	"time"

	"github.com/interview-agent/backend/internal/plan"
	"github.com/interview-agent/backend/internal/signals"
)

// ErrNotFound is returned by a Store when no entry exists for the key. A
// missing state entry for a known session is normal (TTL expiry) and triggers
// fresh initialization; a missing plan means the session itself is gone.
var ErrNotFound = errors.New("session not found")

// ErrTurnInProgress is returned when the per-session lease is already held,
// i.e. another turn for the same session is mid-flight.
var ErrTurnInProgress = errors.New("another turn is in progress for this session")

// Turn is one exchange: what the interviewer said and what the candidate
// answered.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	TopicPending   = "pending"
	TopicCompleted = "completed"
)

// TopicProgress tracks one topic's lifecycle inside a session.
type TopicProgress struct {
	Status             string   `json:"status"`
	Attempts           int      `json:"attempts"`
	GoalAchieved       bool     `json:"goal_achieved"`
	QualitativeMarkers []string `json:"qualitative_markers"`
}

// State is the mutable heart of a live interview. It lives in the fast store
// for the duration of the session and is snapshotted to durable storage
// exactly once, at completion.
type State struct {
	SessionID       string                   `json:"session_id"`
	CurrentTopicID  string                   `json:"current_topic_id"`
	CoveredTopicIDs []string                 `json:"covered_topic_ids"`
	History         []Turn                   `json:"conversation_history"`
	TopicProgress   map[string]TopicProgress `json:"topic_progress"`
	Signals         signals.Evidence         `json:"signal_evidence"`

	RouterCalls         int   `json:"router_agent_calls"`
	GeneratorCalls      int   `json:"generator_agent_calls"`
	TotalResponseTimeMS int64 `json:"total_response_time_ms"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewState seeds a fresh session state from the plan: the current topic is the
// first topic with no unmet dependencies, nothing covered, every topic pending.
func NewState(sessionID string, graph *plan.TopicGraph) *State {
	now := time.Now().UTC()

	state := &State{
		SessionID:       sessionID,
		CurrentTopicID:  graph.FirstTopicID(),
		CoveredTopicIDs: []string{},
		History:         []Turn{},
		TopicProgress:   make(map[string]TopicProgress, len(graph.Topics)),
		Signals:         signals.Evidence{},
		CreatedAt:       now,
		LastUpdated:     now,
	}

	for _, topic := range graph.Topics {
		state.TopicProgress[topic.TopicID] = TopicProgress{
			Status:             TopicPending,
			QualitativeMarkers: []string{},
		}
	}

	return state
}

// Completed reports whether the interview has reached the terminal sentinel.
func (s *State) Completed() bool {
	return s.CurrentTopicID == plan.TopicGraphComplete
}

// AppendTurn records a new exchange, truncating the live window from the
// front once it exceeds limit. Older turns are not needed again once their
// topic is closed.
func (s *State) AppendTurn(turn Turn, limit int) {
	s.History = append(s.History, turn)
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
	s.LastUpdated = time.Now().UTC()
}

// RecentHistory returns the last n turns for classifier context.
func (s *State) RecentHistory(n int) []Turn {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// MarkTopicCompleted closes a topic: status completed, markers recorded, id
// appended to the covered set (which only ever grows).
func (s *State) MarkTopicCompleted(topicID string, markers []string) {
	progress := s.TopicProgress[topicID]
	progress.Status = TopicCompleted
	progress.GoalAchieved = true
	progress.QualitativeMarkers = append(progress.QualitativeMarkers, markers...)
	s.TopicProgress[topicID] = progress

	for _, id := range s.CoveredTopicIDs {
		if id == topicID {
			return
		}
	}
	s.CoveredTopicIDs = append(s.CoveredTopicIDs, topicID)
}

// RecordAttempt bumps the attempt counter for a topic.
func (s *State) RecordAttempt(topicID string) {
	progress := s.TopicProgress[topicID]
	progress.Attempts++
	s.TopicProgress[topicID] = progress
}

// Envelope is the write-once plan wrapper stored alongside the mutable state.
// It carries everything a turn needs that never changes mid-interview.
type Envelope struct {
	SessionID string           `json:"session_id"`
	Role      string           `json:"role"`
	Seniority string           `json:"seniority"`
	Skills    []string         `json:"skills"`
	Persona   string           `json:"persona"`
	Graph     *plan.TopicGraph `json:"plan"`
	Archetype string           `json:"archetype"`
	CreatedAt time.Time        `json:"created_at"`
}

// Store is the fast key-value boundary holding live session data. The
// orchestrator owns the read-modify-write sequence; the store only gets and
// sets.
type Store interface {
	GetEnvelope(ctx context.Context, sessionID string) (*Envelope, error)
	PutEnvelope(ctx context.Context, env *Envelope, ttl time.Duration) error

	GetState(ctx context.Context, sessionID string) (*State, error)
	PutState(ctx context.Context, state *State, ttl time.Duration) error

	// AcquireLease guards one turn's read-modify-write critical section.
	// Returns ErrTurnInProgress when the lease is already held.
	AcquireLease(ctx context.Context, sessionID string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, sessionID string) error

	Delete(ctx context.Context, sessionID string) error
}
