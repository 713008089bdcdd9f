package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/interview-agent/backend/internal/llm"
	"github.com/interview-agent/backend/internal/plan"
	"github.com/interview-agent/backend/internal/session"
	"github.com/interview-agent/backend/pkg/logger"
)

// Persona describes the interviewer the generator speaks as.
type Persona struct {
	Role           string `json:"role"`
	CompanyContext string `json:"company_context"`
	Style          string `json:"style"`
}

// DefaultPersona derives a plain interviewer persona from the target profile.
func DefaultPersona(role, seniority string) Persona {
	return Persona{
		Role:           fmt.Sprintf("%s %s Interviewer", seniority, role),
		CompanyContext: "a well-regarded technology company",
		Style:          "professional, insightful, and engaging",
	}
}

// Utterance is the composed interviewer turn. Rationale is telemetry only and
// is never shown to the candidate.
type Utterance struct {
	Text      string
	Rationale string
	LatencyMS int64
	Err       error
}

// FallbackUtterance is returned whenever composition fails or the composed
// text trips the leak guard. Deliberately generic so it fits any topic.
const FallbackUtterance = "Thank you for that — can you expand on your approach?"

// Generator composes the interviewer's next utterance. It is only invoked
// when the router's decision calls for generated text, and is allowed an
// order of magnitude more latency than the router.
type Generator struct {
	gateway ModelGateway
	timeout time.Duration
}

func NewGenerator(gateway ModelGateway, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Generator{
		gateway: gateway,
		timeout: timeout,
	}
}

type generatorPayload struct {
	InternalThought string `json:"internal_thought"`
	ResponseText    string `json:"response_text"`
}

// Compose produces the literal text the interviewer says next, per the
// decision's action. Model failures never propagate: the caller gets the
// generic fallback with the error recorded on the Utterance.
func (g *Generator) Compose(ctx context.Context, persona Persona, graph *plan.TopicGraph, currentTopicID string, coveredTopicIDs []string, history []session.Turn, decision Decision) Utterance {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()

	raw, err := g.gateway.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: generatorSystemPrompt(persona),
		UserPrompt:   generatorUserPrompt(graph, currentTopicID, coveredTopicIDs, history, decision),
		Preset:       llm.PresetConversational,
	})
	if err != nil {
		logger.Warn("Composition failed, using fallback", zap.Error(err))
		return fallbackUtterance(err)
	}

	var payload generatorPayload
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &payload); err != nil {
		logger.Warn("Composer output did not parse, using fallback",
			zap.String("preview", preview(raw)),
			zap.Error(err),
		)
		return fallbackUtterance(err)
	}

	text := strings.TrimSpace(payload.ResponseText)
	if text == "" {
		return fallbackUtterance(fmt.Errorf("composer returned empty response_text"))
	}

	if leaked := findLeak(text, graph); leaked != "" {
		logger.Warn("Composed utterance leaked internal machinery, using fallback",
			zap.String("leaked", leaked),
		)
		return Utterance{
			Text:      FallbackUtterance,
			Rationale: "composed text suppressed: leaked " + leaked,
			LatencyMS: time.Since(start).Milliseconds(),
		}
	}

	return Utterance{
		Text:      text,
		Rationale: payload.InternalThought,
		LatencyMS: time.Since(start).Milliseconds(),
	}
}

// ComposeOpening produces the opening statement and first question of the
// interview, before any candidate answer exists.
func (g *Generator) ComposeOpening(ctx context.Context, persona Persona, graph *plan.TopicGraph) Utterance {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()

	first, ok := graph.Topic(graph.FirstTopicID())
	if !ok {
		return fallbackOpening(fmt.Errorf("graph has no startable topic"))
	}

	raw, err := g.gateway.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: generatorSystemPrompt(persona),
		UserPrompt:   openingUserPrompt(graph, first),
		Preset:       llm.PresetConversational,
	})
	if err != nil {
		logger.Warn("Opening composition failed, using fallback", zap.Error(err))
		return fallbackOpening(err)
	}

	var payload generatorPayload
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &payload); err != nil {
		logger.Warn("Opening output did not parse, using fallback", zap.Error(err))
		return fallbackOpening(err)
	}

	text := strings.TrimSpace(payload.ResponseText)
	if text == "" || findLeak(text, graph) != "" {
		return fallbackOpening(fmt.Errorf("opening text unusable"))
	}

	return Utterance{
		Text:      text,
		Rationale: payload.InternalThought,
		LatencyMS: time.Since(start).Milliseconds(),
	}
}

func fallbackUtterance(cause error) Utterance {
	return Utterance{
		Text:      FallbackUtterance,
		Rationale: "fallback after composition failure",
		LatencyMS: 0,
		Err:       cause,
	}
}

func fallbackOpening(cause error) Utterance {
	return Utterance{
		Text:      "Welcome, and thanks for making the time today. To get us started: could you walk me through how you would approach the first problem I have in mind for this conversation?",
		Rationale: "fallback opening after composition failure",
		LatencyMS: 0,
		Err:       cause,
	}
}

// Words that must never surface in candidate-facing text, beyond the graph's
// own identifiers.
var reservedLeakTerms = []string{
	"prompt",
	"schema",
	"persona agent",
	strings.ToLower(wireAdvance),
	strings.ToLower(wireProbeDeeper),
	strings.ToLower(wireRedirect),
	strings.ToLower(wireClarification),
	strings.ToLower(wireHesitation),
}

// findLeak scans candidate-facing text for internal machinery: topic ids,
// decision wire names, and reserved vocabulary. Returns the first offending
// term, or "".
func findLeak(text string, graph *plan.TopicGraph) string {
	lower := strings.ToLower(text)

	for _, term := range reservedLeakTerms {
		if strings.Contains(lower, term) {
			return term
		}
	}

	if graph != nil {
		for _, topic := range graph.Topics {
			if topic.TopicID != "" && strings.Contains(lower, strings.ToLower(topic.TopicID)) {
				return topic.TopicID
			}
		}
	}

	return ""
}
