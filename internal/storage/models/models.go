package models

import "time"

// Session statuses as stored in interview_sessions.status.
const (
	SessionInProgress       = "in_progress"
	SessionCompleted        = "completed"
	SessionEvaluationFailed = "evaluation_failed"
)

type SessionRecord struct {
	SessionID string
	Role      string
	Seniority string
	Skills    []string
	Archetype string
	PlanJSON  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotRecord is the write-once final state of a finished interview. The
// conversational payloads are stored as JSON blobs; the columns that queries
// filter on are lifted out.
type SnapshotRecord struct {
	SessionID       string
	CurrentTopicID  string
	CoveredTopicIDs []string
	HistoryJSON     string
	ProgressJSON    string
	SignalsJSON     string
	RouterCalls     int
	GeneratorCalls  int
	TotalTimeMS     int64
	CreatedAt       time.Time
}

type ScorecardRecord struct {
	SessionID      string
	DimensionsJSON string
	AggregateScore float64
	Feedback       string
	Error          string
	CreatedAt      time.Time
}
