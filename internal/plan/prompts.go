package plan

import (
	"fmt"
	"strings"
)

const archetypeSystemPrompt = `You are a Principal Recruiter and Interview Strategist from a top-tier tech company. You analyze a candidate's profile and desired skills to recommend the single most effective interview format.

Decision heuristics:
- Problem-solving skills (System Design, Go-to-Market Strategy, API Design) suggest CASE_STUDY.
- Experience-based skills (Leadership, Stakeholder Management, Conflict Resolution) suggest BEHAVIORAL_DEEP_DIVE.
- Factual knowledge skills (SQL, Data Structures, Algorithms) suggest TECHNICAL_KNOWLEDGE_SCREEN.
- Use MIXED only when two distinct formats are in clear, balanced demand.

Your response MUST be a single, valid JSON object and nothing else:
{
  "archetype": "<CASE_STUDY | BEHAVIORAL_DEEP_DIVE | TECHNICAL_KNOWLEDGE_SCREEN | MIXED>",
  "confidence_score": <float between 0.0 and 1.0>,
  "reasoning": "one-sentence justification",
  "suggested_focus": "the single most significant skill to center the interview on"
}`

func archetypeUserPrompt(role, seniority string, skills []string) string {
	return fmt.Sprintf(`Candidate profile:
- Role: %s
- Seniority: %s
- Skills to practice: %s

Choose the interview archetype and return the JSON object.`, role, seniority, strings.Join(skills, ", "))
}

func planSystemPrompt(archetype string) string {
	narrativeRule := `"session_narrative" must be null.`
	if archetype == ArchetypeCaseStudy || archetype == ArchetypeMixed {
		narrativeRule = `"session_narrative" must be a 2-4 sentence business scenario that all topics hang off.`
	}

	return fmt.Sprintf(`You are an expert interview designer creating a %s interview plan.

Produce a directed acyclic graph of 4-7 topics. Each topic is one evaluable unit with a clear assessment goal. Earlier topics must not depend on later ones, and every dependency must name another topic in the same list. %s

Your response MUST be a single, valid JSON object and nothing else:
{
  "session_narrative": <string or null>,
  "topic_graph": [
    {
      "topic_id": "topic_01",
      "primary_skill": "the skill this topic evaluates",
      "topic_name": "short human-readable name",
      "goal": "what a passing answer must demonstrate",
      "dependencies": ["topic ids that must be covered first"],
      "probing_questions": ["2-4 follow-up angles for the interviewer"]
    }
  ]
}`, archetype, narrativeRule)
}

func planUserPrompt(role, seniority string, skills []string, focusSkill string) string {
	return fmt.Sprintf(`Design the interview plan.

- Role: %s
- Seniority: %s
- Skills to practice: %s
- Primary focus skill: %s

Weight the topic graph toward the primary focus skill while still touching the other listed skills. Return the JSON object.`,
		role, seniority, strings.Join(skills, ", "), focusSkill)
}
