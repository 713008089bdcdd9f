package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/interview-agent/backend/internal/evaluation"
	"github.com/interview-agent/backend/internal/session"
	"github.com/interview-agent/backend/internal/storage/models"
	"github.com/interview-agent/backend/pkg/logger"
)

// ErrNoRecord is returned when a durable record does not exist.
var ErrNoRecord = errors.New("record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interview_sessions (
		session_id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		seniority TEXT NOT NULL,
		skills TEXT,
		archetype TEXT,
		plan TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON interview_sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON interview_sessions(created_at);

	CREATE TABLE IF NOT EXISTS session_snapshots (
		session_id TEXT PRIMARY KEY,
		current_topic_id TEXT,
		covered_topic_ids TEXT,
		history TEXT,
		topic_progress TEXT,
		signal_evidence TEXT,
		router_calls INTEGER DEFAULT 0,
		generator_calls INTEGER DEFAULT 0,
		total_response_time_ms INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES interview_sessions(session_id)
	);

	CREATE TABLE IF NOT EXISTS scorecards (
		session_id TEXT PRIMARY KEY,
		dimensions TEXT NOT NULL,
		aggregate_score REAL,
		feedback TEXT,
		error TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES interview_sessions(session_id)
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) SaveSession(ctx context.Context, env *session.Envelope) error {
	skills, err := json.Marshal(env.Skills)
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}
	planJSON, err := json.Marshal(env.Graph)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	query := `
		INSERT INTO interview_sessions (session_id, role, seniority, skills, archetype, plan, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			updated_at = excluded.updated_at
	`

	now := time.Now().Unix()
	_, err = c.db.ExecContext(
		ctx,
		query,
		env.SessionID,
		env.Role,
		env.Seniority,
		string(skills),
		env.Archetype,
		string(planJSON),
		models.SessionInProgress,
		env.CreatedAt.Unix(),
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	logger.Debug("Session archived", zap.String("session_id", env.SessionID))
	return nil
}

// SaveFinalState writes the snapshot exactly once. A second completion of the
// same session leaves the first snapshot untouched.
func (c *Client) SaveFinalState(ctx context.Context, state *session.State) error {
	covered, err := json.Marshal(state.CoveredTopicIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal covered topics: %w", err)
	}
	history, err := json.Marshal(state.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	progress, err := json.Marshal(state.TopicProgress)
	if err != nil {
		return fmt.Errorf("failed to marshal topic progress: %w", err)
	}
	evidence, err := json.Marshal(state.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signal evidence: %w", err)
	}

	query := `
		INSERT INTO session_snapshots (session_id, current_topic_id, covered_topic_ids, history,
			topic_progress, signal_evidence, router_calls, generator_calls, total_response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`

	result, err := c.db.ExecContext(
		ctx,
		query,
		state.SessionID,
		state.CurrentTopicID,
		string(covered),
		string(history),
		string(progress),
		string(evidence),
		state.RouterCalls,
		state.GeneratorCalls,
		state.TotalResponseTimeMS,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		logger.Warn("Snapshot already archived, keeping first write", zap.String("session_id", state.SessionID))
		return nil
	}

	logger.Info("Final state archived",
		zap.String("session_id", state.SessionID),
		zap.Int("turns", len(state.History)),
	)
	return nil
}

func (c *Client) SaveScorecard(ctx context.Context, card *evaluation.Scorecard) error {
	dimensions, err := json.Marshal(card.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to marshal dimensions: %w", err)
	}

	query := `
		INSERT INTO scorecards (session_id, dimensions, aggregate_score, feedback, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`

	_, err = c.db.ExecContext(
		ctx,
		query,
		card.SessionID,
		string(dimensions),
		card.AggregateScore,
		card.Feedback,
		card.Error,
		card.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scorecard: %w", err)
	}

	status := models.SessionCompleted
	if card.Error != "" {
		status = models.SessionEvaluationFailed
	}
	_, err = c.db.ExecContext(
		ctx,
		`UPDATE interview_sessions SET status = ?, updated_at = ? WHERE session_id = ?`,
		status,
		time.Now().Unix(),
		card.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	logger.Info("Scorecard archived",
		zap.String("session_id", card.SessionID),
		zap.Float64("aggregate", card.AggregateScore),
	)
	return nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	query := `SELECT session_id, role, seniority, skills, archetype, plan, status, created_at, updated_at
		FROM interview_sessions WHERE session_id = ?`

	var rec models.SessionRecord
	var skills string
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&rec.Role,
		&rec.Seniority,
		&skills,
		&rec.Archetype,
		&rec.PlanJSON,
		&rec.Status,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := json.Unmarshal([]byte(skills), &rec.Skills); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	return &rec, nil
}

func (c *Client) GetSnapshot(ctx context.Context, sessionID string) (*models.SnapshotRecord, error) {
	query := `SELECT session_id, current_topic_id, covered_topic_ids, history, topic_progress,
		signal_evidence, router_calls, generator_calls, total_response_time_ms, created_at
		FROM session_snapshots WHERE session_id = ?`

	var rec models.SnapshotRecord
	var covered string
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&rec.CurrentTopicID,
		&covered,
		&rec.HistoryJSON,
		&rec.ProgressJSON,
		&rec.SignalsJSON,
		&rec.RouterCalls,
		&rec.GeneratorCalls,
		&rec.TotalTimeMS,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(covered), &rec.CoveredTopicIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal covered topics: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)

	return &rec, nil
}

func (c *Client) GetScorecard(ctx context.Context, sessionID string) (*evaluation.Scorecard, error) {
	query := `SELECT session_id, dimensions, aggregate_score, feedback, error, created_at
		FROM scorecards WHERE session_id = ?`

	var card evaluation.Scorecard
	var dimensions string
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, sessionID).Scan(
		&card.SessionID,
		&dimensions,
		&card.AggregateScore,
		&card.Feedback,
		&card.Error,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scorecard: %w", err)
	}

	if err := json.Unmarshal([]byte(dimensions), &card.Dimensions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dimensions: %w", err)
	}
	card.CreatedAt = time.Unix(createdAt, 0)

	return &card, nil
}
