package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/interview-agent/backend/pkg/circuitbreaker"
	"github.com/interview-agent/backend/pkg/logger"
	"github.com/interview-agent/backend/pkg/retry"
)

// Preset selects a temperature profile for a model call. Classification-style
// calls run cold for consistency; plan generation runs hot for variety.
type Preset string

const (
	PresetClassification Preset = "classification"
	PresetEvaluation     Preset = "evaluation"
	PresetConversational Preset = "conversational"
	PresetCreative       Preset = "creative_generation"
)

var presetTemperatures = map[Preset]float32{
	PresetClassification: 0.3,
	PresetEvaluation:     0.2,
	PresetConversational: 0.6,
	PresetCreative:       0.8,
}

// Temperature returns the sampling temperature for the preset. Unknown presets
// fall back to a middle-of-the-road 0.5.
func (p Preset) Temperature() float32 {
	if t, ok := presetTemperatures[p]; ok {
		return t
	}
	return 0.5
}

type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	callTimeout time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	Preset       Preset
	MaxTokens    int
}

func NewClient(apiKey, model string, maxTokens, timeoutSec int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if timeoutSec <= 0 {
		timeoutSec = 30
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		callTimeout: time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// Generate sends a single prompt to the model and returns the raw completion
// text. Callers are responsible for parsing; the gateway only guarantees
// transport-level retries and circuit breaking.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: req.Preset.Temperature(),
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("LLM completion generated",
				zap.String("preset", string(req.Preset)),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			content = resp.Choices[0].Message.Content
			return nil
		})
	})

	if err != nil {
		return "", err
	}

	return content, nil
}

// ExtractJSON strips the decoration models wrap around JSON payloads:
// markdown code fences and <JSON_OUTPUT> tags. The result may still be
// invalid JSON; callers must validate.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	const openTag, closeTag = "<JSON_OUTPUT>", "</JSON_OUTPUT>"
	if start := strings.Index(text, openTag); start >= 0 {
		if end := strings.Index(text, closeTag); end > start {
			text = text[start+len(openTag) : end]
		}
	}

	return strings.TrimSpace(text)
}
