package interview

import "fmt"

// Action is the closed set of moves the turn classifier can choose from.
// Consumers switch over it exhaustively; there is no stringly-typed escape
// hatch.
type Action int

const (
	// ActionAdvance: the topic goal is satisfied, close it and move on.
	ActionAdvance Action = iota
	// ActionProbeDeeper: stay on the topic and ask a follow-up.
	ActionProbeDeeper
	// ActionRedirect: the answer went off-topic, steer back.
	ActionRedirect
	// ActionAnswerClarification: the candidate asked about the scenario
	// rather than attempting an answer.
	ActionAnswerClarification
	// ActionProbeHesitation: the answer signals confusion or overwhelm, not a
	// content gap.
	ActionProbeHesitation
)

// Wire names used in the classifier's JSON schema.
const (
	wireAdvance       = "ACKNOWLEDGE_AND_TRANSITION"
	wireProbeDeeper   = "GENERATE_FOLLOW_UP"
	wireRedirect      = "REDIRECT_TO_TOPIC"
	wireClarification = "ANSWER_CLARIFICATION"
	wireHesitation    = "PROBE_HESITATION"
)

func (a Action) String() string {
	switch a {
	case ActionAdvance:
		return wireAdvance
	case ActionProbeDeeper:
		return wireProbeDeeper
	case ActionRedirect:
		return wireRedirect
	case ActionAnswerClarification:
		return wireClarification
	case ActionProbeHesitation:
		return wireHesitation
	default:
		return "UNKNOWN"
	}
}

func parseAction(wire string) (Action, error) {
	switch wire {
	case wireAdvance:
		return ActionAdvance, nil
	case wireProbeDeeper:
		return ActionProbeDeeper, nil
	case wireRedirect:
		return ActionRedirect, nil
	case wireClarification:
		return ActionAnswerClarification, nil
	case wireHesitation:
		return ActionProbeHesitation, nil
	default:
		return ActionProbeDeeper, fmt.Errorf("unknown next_action %q", wire)
	}
}

// Decision is the classifier's verdict on one candidate utterance.
type Decision struct {
	Action             Action
	Summary            string
	GoalAchieved       bool
	QualitativeMarkers []string

	// LatencyMS is zero when the classifier fell back; Err carries the cause.
	// Fallbacks are observability data, not failures; the turn proceeds.
	LatencyMS int64
	Err       error
}

// Fallback reports whether this decision came from the deterministic default
// rather than the model.
func (d Decision) Fallback() bool {
	return d.Err != nil
}
