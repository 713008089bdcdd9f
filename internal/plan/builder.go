package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/interview-agent/backend/internal/llm"
	"github.com/interview-agent/backend/pkg/logger"
)

// Generator is the slice of the model gateway the builder needs.
// *llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
}

// Archetype names the interview formats the selector can choose from.
const (
	ArchetypeCaseStudy        = "CASE_STUDY"
	ArchetypeBehavioral       = "BEHAVIORAL_DEEP_DIVE"
	ArchetypeTechnicalScreen  = "TECHNICAL_KNOWLEDGE_SCREEN"
	ArchetypeMixed            = "MIXED"
)

// ArchetypeSelection is the outcome of the format-classification call.
type ArchetypeSelection struct {
	Archetype      string  `json:"archetype"`
	Confidence     float64 `json:"confidence_score"`
	Reasoning      string  `json:"reasoning"`
	SuggestedFocus string  `json:"suggested_focus"`
}

type Builder struct {
	gateway     Generator
	maxAttempts int
}

func NewBuilder(gateway Generator, maxAttempts int) *Builder {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &Builder{
		gateway:     gateway,
		maxAttempts: maxAttempts,
	}
}

// Build creates the interview plan for the given profile: one cold
// classification call to pick the archetype and focus skill, then one hot
// generation call to materialize the topic graph and narrative. The returned
// graph has passed Validate; a structural violation surfaces as
// ErrContractViolation without a retry, while transport failures and
// unparseable output are retried up to the configured attempt budget before
// surfacing as ErrGenerationFailure.
func (b *Builder) Build(ctx context.Context, role, seniority string, skills []string) (*TopicGraph, *ArchetypeSelection, error) {
	if role == "" || seniority == "" {
		return nil, nil, fmt.Errorf("%w: role and seniority are required", ErrContractViolation)
	}
	skills = cleanSkills(skills)
	if len(skills) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one skill is required", ErrContractViolation)
	}

	selection, err := b.selectArchetype(ctx, role, seniority, skills)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Interview archetype selected",
		zap.String("archetype", selection.Archetype),
		zap.Float64("confidence", selection.Confidence),
		zap.String("focus", selection.SuggestedFocus),
	)

	graph, err := b.materializePlan(ctx, role, seniority, skills, selection)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Interview plan built",
		zap.Int("topics", len(graph.Topics)),
		zap.Bool("has_narrative", graph.Narrative != ""),
	)

	return graph, selection, nil
}

func (b *Builder) selectArchetype(ctx context.Context, role, seniority string, skills []string) (*ArchetypeSelection, error) {
	req := llm.GenerateRequest{
		SystemPrompt: archetypeSystemPrompt,
		UserPrompt:   archetypeUserPrompt(role, seniority, skills),
		Preset:       llm.PresetClassification,
		MaxTokens:    400,
	}

	var selection ArchetypeSelection

	err := b.generateParsed(ctx, req, &selection)
	if err != nil {
		return nil, err
	}

	switch selection.Archetype {
	case ArchetypeCaseStudy, ArchetypeBehavioral, ArchetypeTechnicalScreen, ArchetypeMixed:
	default:
		return nil, fmt.Errorf("%w: unknown archetype %q", ErrContractViolation, selection.Archetype)
	}

	if selection.SuggestedFocus == "" {
		selection.SuggestedFocus = skills[0]
	}

	return &selection, nil
}

func (b *Builder) materializePlan(ctx context.Context, role, seniority string, skills []string, selection *ArchetypeSelection) (*TopicGraph, error) {
	req := llm.GenerateRequest{
		SystemPrompt: planSystemPrompt(selection.Archetype),
		UserPrompt:   planUserPrompt(role, seniority, skills, selection.SuggestedFocus),
		Preset:       llm.PresetCreative,
	}

	var graph TopicGraph

	err := b.generateParsed(ctx, req, &graph)
	if err != nil {
		return nil, err
	}

	graph.Archetype = selection.Archetype
	for i := range graph.Topics {
		if graph.Topics[i].TopicID == "" {
			graph.Topics[i].TopicID = fmt.Sprintf("topic_%02d", i+1)
		}
	}

	if err := graph.Validate(); err != nil {
		return nil, err
	}

	return &graph, nil
}

// generateParsed calls the gateway and unmarshals its output into v, retrying
// malformed output up to the attempt budget. Parse failures are generation
// failures, not contract violations: the payload never reached the structured
// stage.
func (b *Builder) generateParsed(ctx context.Context, req llm.GenerateRequest, v interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		raw, err := b.gateway.Generate(ctx, req)
		if err != nil {
			lastErr = err
			logger.Warn("Model call failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", b.maxAttempts),
				zap.Error(err),
			)
			continue
		}

		if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), v); err != nil {
			lastErr = err
			logger.Warn("Model output did not parse",
				zap.Int("attempt", attempt),
				zap.String("preview", preview(raw)),
				zap.Error(err),
			)
			continue
		}

		return nil
	}

	return fmt.Errorf("%w: %v", ErrGenerationFailure, lastErr)
}

func cleanSkills(skills []string) []string {
	cleaned := make([]string, 0, len(skills))
	for _, skill := range skills {
		if s := strings.TrimSpace(skill); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func preview(text string) string {
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
