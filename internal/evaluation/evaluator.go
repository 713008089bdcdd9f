package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/interview-agent/backend/internal/llm"
	"github.com/interview-agent/backend/internal/session"
	"github.com/interview-agent/backend/internal/signals"
	"github.com/interview-agent/backend/pkg/logger"
)

// ModelGateway is the slice of the model gateway the evaluator needs.
// *llm.Client satisfies it.
type ModelGateway interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
}

// DimensionRating is one dimension's verdict on the 1-5 ordinal scale.
type DimensionRating struct {
	Rating             int      `json:"rating"`
	Confidence         string   `json:"confidence"`
	Strengths          []string `json:"strengths"`
	AreasForGrowth     []string `json:"areas_for_improvement"`
	Evidence           []string `json:"evidence"`
	Assessment         string   `json:"assessment"`
	SeniorityAlignment string   `json:"seniority_alignment"`
}

// Scorecard is the final, immutable evaluation output. AggregateScore is the
// arithmetic mean of the dimension ratings, computed locally and never
// delegated to the model. Callers must check Error before trusting the
// ratings.
type Scorecard struct {
	SessionID      string                     `json:"session_id"`
	Dimensions     map[string]DimensionRating `json:"dimension_evaluations"`
	AggregateScore float64                    `json:"aggregate_score"`
	Feedback       string                     `json:"feedback"`
	Error          string                     `json:"error,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
}

// Profile carries the interview context the evaluator prompts with.
type Profile struct {
	Role      string
	Seniority string
	Archetype string
}

type Evaluator struct {
	gateway ModelGateway
}

func NewEvaluator(gateway ModelGateway) *Evaluator {
	return &Evaluator{gateway: gateway}
}

type evaluationPayload struct {
	Dimensions map[string]DimensionRating `json:"dimension_evaluations"`
	Feedback   string                     `json:"overall_feedback"`
}

// Evaluate produces the scorecard for a finished interview: one model call
// rates each dimension, then the aggregate is computed locally. On gateway
// failure or unparseable output the scorecard carries an error marker and
// empty ratings instead of an error return, so completion handlers always get
// a scorecard to persist.
func (e *Evaluator) Evaluate(ctx context.Context, sessionID string, profile Profile, transcript []session.Turn, evidence signals.Evidence, dimensions []string) *Scorecard {
	card := &Scorecard{
		SessionID:  sessionID,
		Dimensions: map[string]DimensionRating{},
		CreatedAt:  time.Now().UTC(),
	}

	if len(dimensions) == 0 {
		card.Error = "no evaluation dimensions supplied"
		return card
	}

	raw, err := e.gateway.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: evaluationSystemPrompt,
		UserPrompt:   evaluationUserPrompt(profile, transcript, evidence, dimensions),
		Preset:       llm.PresetEvaluation,
	})
	if err != nil {
		logger.Error("Evaluation call failed", zap.String("session_id", sessionID), zap.Error(err))
		card.Error = fmt.Sprintf("evaluation failed: %v", err)
		return card
	}

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &payload); err != nil {
		logger.Error("Evaluation output did not parse", zap.String("session_id", sessionID), zap.Error(err))
		card.Error = fmt.Sprintf("evaluation output unparseable: %v", err)
		return card
	}

	for name, rating := range payload.Dimensions {
		if rating.Rating < 1 {
			rating.Rating = 1
		}
		if rating.Rating > 5 {
			rating.Rating = 5
		}
		card.Dimensions[name] = rating
	}

	card.Feedback = payload.Feedback
	card.AggregateScore = AggregateScore(card.Dimensions)

	logger.Info("Interview evaluated",
		zap.String("session_id", sessionID),
		zap.Int("dimensions", len(card.Dimensions)),
		zap.Float64("aggregate", card.AggregateScore),
	)

	return card
}

// AggregateScore is the arithmetic mean of the dimension ratings, rounded to
// two decimals. Deterministic for a fixed set of ratings.
func AggregateScore(dimensions map[string]DimensionRating) float64 {
	if len(dimensions) == 0 {
		return 0
	}

	sum := 0
	for _, rating := range dimensions {
		sum += rating.Rating
	}

	mean := float64(sum) / float64(len(dimensions))
	return math.Round(mean*100) / 100
}

const evaluationSystemPrompt = `You are a senior interview evaluator from a top-tier tech company with over 15 years of experience assessing candidates.

Evaluate the candidate dimension by dimension against the transcript and the evidence collected during the interview. Rate each dimension 1-5 (1=Poor, 2=Below Average, 3=Average, 4=Above Average, 5=Excellent). Ground every rating in specific quotes; avoid generic statements. Do not compute an overall score.

Your response MUST be a single, valid JSON object and nothing else:
{
  "dimension_evaluations": {
    "<dimension name>": {
      "rating": <1-5>,
      "confidence": "High | Medium | Low",
      "strengths": ["..."],
      "areas_for_improvement": ["..."],
      "evidence": ["exact quote", "..."],
      "assessment": "analysis of performance on this dimension",
      "seniority_alignment": "how the performance aligns with the stated seniority"
    }
  },
  "overall_feedback": "narrative summary of strengths and growth areas"
}`

func evaluationUserPrompt(profile Profile, transcript []session.Turn, evidence signals.Evidence, dimensions []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Interview context:\n- Role: %s\n- Seniority: %s\n- Format: %s\n", profile.Role, profile.Seniority, profile.Archetype)
	fmt.Fprintf(&sb, "- Dimensions to evaluate: %s\n\n", strings.Join(dimensions, ", "))

	sb.WriteString("Transcript:\n")
	if len(transcript) == 0 {
		sb.WriteString("(empty)\n")
	}
	for i, turn := range transcript {
		fmt.Fprintf(&sb, "Turn %d - Interviewer: %s\nTurn %d - Candidate: %s\n", i+1, turn.Question, i+1, turn.Answer)
	}

	sb.WriteString("\nEvidence collected during the interview:\n")
	if len(evidence) == 0 {
		sb.WriteString("(none)\n")
	}
	for dimension, ev := range evidence {
		fmt.Fprintf(&sb, "%s:\n", dimension)
		for _, signal := range ev.PositiveSignals {
			fmt.Fprintf(&sb, "  + %s\n", signal)
		}
		for _, gap := range ev.Gaps {
			fmt.Fprintf(&sb, "  - %s\n", gap)
		}
		for _, quote := range ev.Quotes {
			fmt.Fprintf(&sb, "  quote: %q\n", quote)
		}
		if ev.Confidence != "" {
			fmt.Fprintf(&sb, "  confidence: %s\n", ev.Confidence)
		}
	}

	sb.WriteString("\nEvaluate every listed dimension and return the JSON object.")

	return sb.String()
}
