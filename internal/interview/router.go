package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/interview-agent/backend/internal/llm"
	"github.com/interview-agent/backend/internal/session"
	"github.com/interview-agent/backend/pkg/logger"
)

// ModelGateway is the slice of the model gateway this package needs.
// *llm.Client satisfies it.
type ModelGateway interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
}

// Router is the per-turn classifier. It runs on every candidate answer and is
// the latency-critical path, so it never propagates model failures: a broken
// call degrades to a deterministic ProbeDeeper decision and the interview
// keeps moving.
type Router struct {
	gateway ModelGateway
	timeout time.Duration
}

func NewRouter(gateway ModelGateway, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 900 * time.Millisecond
	}
	return &Router{
		gateway: gateway,
		timeout: timeout,
	}
}

type routerPayload struct {
	AnalysisSummary    string   `json:"analysis_summary"`
	GoalAchieved       bool     `json:"goal_achieved"`
	NextAction         string   `json:"next_action"`
	QualitativeMarkers []string `json:"qualitative_markers"`
}

const routerSystemPrompt = `You are an ultra-efficient state analyzer for an interview simulation. Your sole purpose is to analyze the candidate's latest answer against the current topic's goal and decide the immediate next action. You are a classifier, not a conversationalist.

Rules:
- Do NOT generate interview questions or conversational text.
- ACKNOWLEDGE_AND_TRANSITION only when the topic goal is clearly satisfied.
- REDIRECT_TO_TOPIC when the answer wanders off the topic's goal.
- ANSWER_CLARIFICATION when the answer is a question about the scenario rather than an attempt to answer.
- PROBE_HESITATION when the answer signals confusion, overwhelm, or refusal rather than a content gap.
- GENERATE_FOLLOW_UP otherwise.
- qualitative_markers are short behavioral observations, never numeric scores.

Your response MUST be a single, valid JSON object and nothing else:
{
  "analysis_summary": "5-10 word summary of the answer",
  "goal_achieved": <true or false>,
  "next_action": "<ACKNOWLEDGE_AND_TRANSITION | GENERATE_FOLLOW_UP | REDIRECT_TO_TOPIC | ANSWER_CLARIFICATION | PROBE_HESITATION>",
  "qualitative_markers": ["observation", "..."]
}`

// Classify analyzes the candidate's latest answer against the active topic's
// goal. It always returns a usable Decision; on any gateway or parse failure
// the fallback decision carries the error and a zero latency for
// observability.
func (r *Router) Classify(ctx context.Context, topicGoal string, history []session.Turn, answer string) Decision {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()

	raw, err := r.gateway.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: routerSystemPrompt,
		UserPrompt:   routerUserPrompt(topicGoal, history, answer),
		Preset:       llm.PresetClassification,
		MaxTokens:    300,
	})
	if err != nil {
		logger.Warn("Router classification failed, using fallback", zap.Error(err))
		return fallbackDecision(err)
	}

	var payload routerPayload
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &payload); err != nil {
		logger.Warn("Router output did not parse, using fallback",
			zap.String("preview", preview(raw)),
			zap.Error(err),
		)
		return fallbackDecision(err)
	}

	action, err := parseAction(payload.NextAction)
	if err != nil {
		logger.Warn("Router returned unknown action, using fallback", zap.Error(err))
		return fallbackDecision(err)
	}

	return Decision{
		Action:             action,
		Summary:            payload.AnalysisSummary,
		GoalAchieved:       payload.GoalAchieved,
		QualitativeMarkers: payload.QualitativeMarkers,
		LatencyMS:          time.Since(start).Milliseconds(),
	}
}

func fallbackDecision(cause error) Decision {
	return Decision{
		Action:             ActionProbeDeeper,
		Summary:            "Classification unavailable, probing deeper",
		GoalAchieved:       false,
		QualitativeMarkers: []string{},
		LatencyMS:          0,
		Err:                cause,
	}
}

func routerUserPrompt(topicGoal string, history []session.Turn, answer string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Current topic goal: %q\n\n", topicGoal)

	if len(history) == 0 {
		sb.WriteString("Conversation history: none.\n")
	} else {
		sb.WriteString("Conversation history (most recent last):\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "Interviewer: %s\nCandidate: %s\n", turn.Question, turn.Answer)
		}
	}

	fmt.Fprintf(&sb, "\nCandidate's latest answer: %q\n\nReturn the JSON object.", answer)

	return sb.String()
}

func preview(text string) string {
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
