package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/interview-agent/backend/internal/session"
	"github.com/interview-agent/backend/pkg/logger"
)

// Client is the Redis-backed session store. Keys are namespaced per concern:
// session:{id} for the immutable plan envelope, session_state:{id} for the
// mutable state, session_lease:{id} for the per-turn lease.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis session store initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Ping reports store health for the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func envelopeKey(sessionID string) string { return "session:" + sessionID }
func stateKey(sessionID string) string    { return "session_state:" + sessionID }
func leaseKey(sessionID string) string    { return "session_lease:" + sessionID }

func (c *Client) PutEnvelope(ctx context.Context, env *session.Envelope, ttl time.Duration) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal session envelope: %w", err)
	}

	err = c.client.Set(ctx, envelopeKey(env.SessionID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set session envelope: %w", err)
	}

	logger.Debug("Session envelope cached",
		zap.String("session_id", env.SessionID),
		zap.Duration("ttl", ttl),
	)
	return nil
}

func (c *Client) GetEnvelope(ctx context.Context, sessionID string) (*session.Envelope, error) {
	data, err := c.client.Get(ctx, envelopeKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session envelope: %w", err)
	}

	var env session.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session envelope: %w", err)
	}

	return &env, nil
}

func (c *Client) PutState(ctx context.Context, state *session.State, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	err = c.client.Set(ctx, stateKey(state.SessionID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set session state: %w", err)
	}

	logger.Debug("Session state cached",
		zap.String("session_id", state.SessionID),
		zap.String("current_topic", state.CurrentTopicID),
	)
	return nil
}

func (c *Client) GetState(ctx context.Context, sessionID string) (*session.State, error) {
	data, err := c.client.Get(ctx, stateKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session state: %w", err)
	}

	var state session.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}

	return &state, nil
}

func (c *Client) AcquireLease(ctx context.Context, sessionID string, ttl time.Duration) error {
	ok, err := c.client.SetNX(ctx, leaseKey(sessionID), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire session lease: %w", err)
	}
	if !ok {
		return session.ErrTurnInProgress
	}
	return nil
}

func (c *Client) ReleaseLease(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, leaseKey(sessionID)).Err()
}

func (c *Client) Delete(ctx context.Context, sessionID string) error {
	err := c.client.Del(ctx, envelopeKey(sessionID), stateKey(sessionID), leaseKey(sessionID)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete session keys: %w", err)
	}

	logger.Debug("Session keys deleted", zap.String("session_id", sessionID))
	return nil
}
