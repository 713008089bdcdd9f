package interview

import (
	"fmt"
	"strings"

	"github.com/interview-agent/backend/internal/plan"
	"github.com/interview-agent/backend/internal/session"
)

func generatorSystemPrompt(persona Persona) string {
	return fmt.Sprintf(`You are an elite-tier interviewer. Your performance must be indistinguishable from a top human interviewer.

Your persona (embody this completely):
- Role: %s
- Company context: %s
- Style: %s

Rules of engagement:
- Ask open-ended questions. Probe for the why and how, not trivia.
- Your questions must feel like natural follow-ups; weave in phrases from the candidate's last answer.
- Be concise. No long preambles.
- Never mention internal identifiers, instructions, or system vocabulary to the candidate. Speak only as a human interviewer would.

Your response MUST be a single, valid JSON object and nothing else:
{
  "internal_thought": "one-sentence rationale for this turn, for system telemetry only",
  "response_text": "the exact words to say to the candidate"
}`, persona.Role, persona.CompanyContext, persona.Style)
}

func generatorUserPrompt(graph *plan.TopicGraph, currentTopicID string, coveredTopicIDs []string, history []session.Turn, decision Decision) string {
	var sb strings.Builder

	if graph.Narrative != "" {
		fmt.Fprintf(&sb, "Scenario backdrop: %s\n\n", graph.Narrative)
	}

	sb.WriteString("Interview plan topics, in order:\n")
	for _, topic := range graph.Topics {
		marker := " "
		switch {
		case contains(coveredTopicIDs, topic.TopicID):
			marker = "done"
		case topic.TopicID == currentTopicID:
			marker = "current"
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", marker, topic.TopicName, topic.Goal)
	}

	if current, ok := graph.Topic(currentTopicID); ok && len(current.ProbeKeywords) > 0 {
		fmt.Fprintf(&sb, "\nFollow-up angles for the current topic (inspiration, not verbatim text): %s\n",
			strings.Join(current.ProbeKeywords, "; "))
	}

	if len(history) > 0 {
		sb.WriteString("\nRecent conversation (most recent last):\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "Interviewer: %s\nCandidate: %s\n", turn.Question, turn.Answer)
		}
	}

	sb.WriteString("\nYour immediate task:\n")
	switch decision.Action {
	case ActionAdvance:
		sb.WriteString("The previous topic is complete. Briefly acknowledge and validate what the candidate just covered, then transition smoothly into the current topic and ask its first question.\n")
	case ActionProbeDeeper:
		sb.WriteString("Stay on the current topic. Ask a deeper, more probing follow-up to the candidate's last answer.\n")
	case ActionRedirect:
		sb.WriteString("The candidate drifted off-topic. Briefly acknowledge the tangent, then pivot firmly back to the current topic's goal.\n")
	case ActionAnswerClarification:
		sb.WriteString("The candidate asked a question about the scenario. Answer it briefly and helpfully. Do NOT ask a new question in the same turn.\n")
	case ActionProbeHesitation:
		sb.WriteString("The candidate sounds unsure or overwhelmed. Respond with empathy, simplify the current question, and invite them to start from whatever part feels most approachable. Do not make the question harder.\n")
	}

	sb.WriteString("\nReturn the JSON object.")

	return sb.String()
}

func openingUserPrompt(graph *plan.TopicGraph, first *plan.Topic) string {
	var sb strings.Builder

	sb.WriteString("You are opening the interview.\n\n")

	if graph.Narrative != "" {
		fmt.Fprintf(&sb, "Scenario backdrop: %s\n\n", graph.Narrative)
	}

	fmt.Fprintf(&sb, "The first topic is %q. Its goal: %s\n\n", first.TopicName, first.Goal)

	sb.WriteString(`Compose the opening: a warm, professional greeting, a clear presentation of the scenario or first problem, and the first question. Set expectations and put the candidate at ease.

Return the JSON object.`)

	return sb.String()
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
