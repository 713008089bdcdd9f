package interview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interview-agent/backend/internal/llm"
	"github.com/interview-agent/backend/internal/session"
)

// scriptedGateway returns canned responses in order, or a fixed error.
type scriptedGateway struct {
	responses []string
	err       error
	calls     int
	lastReq   llm.GenerateRequest
}

func (g *scriptedGateway) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	g.calls++
	g.lastReq = req
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", errors.New("no scripted response left")
	}
	resp := g.responses[0]
	g.responses = g.responses[1:]
	return resp, nil
}

func routerResponse(action string, goalAchieved bool) string {
	achieved := "false"
	if goalAchieved {
		achieved = "true"
	}
	return `{
		"analysis_summary": "candidate explained sharding tradeoffs",
		"goal_achieved": ` + achieved + `,
		"next_action": "` + action + `",
		"qualitative_markers": ["thought in tradeoffs"]
	}`
}

func TestClassifyMapsWireActions(t *testing.T) {
	cases := []struct {
		wire   string
		action Action
	}{
		{"ACKNOWLEDGE_AND_TRANSITION", ActionAdvance},
		{"GENERATE_FOLLOW_UP", ActionProbeDeeper},
		{"REDIRECT_TO_TOPIC", ActionRedirect},
		{"ANSWER_CLARIFICATION", ActionAnswerClarification},
		{"PROBE_HESITATION", ActionProbeHesitation},
	}

	for _, tc := range cases {
		t.Run(tc.wire, func(t *testing.T) {
			gateway := &scriptedGateway{responses: []string{routerResponse(tc.wire, false)}}
			router := NewRouter(gateway, 0)

			decision := router.Classify(context.Background(), "assess sharding", nil, "I would shard by tenant.")

			require.False(t, decision.Fallback())
			assert.Equal(t, tc.action, decision.Action)
			assert.Equal(t, tc.wire, decision.Action.String())
		})
	}
}

func TestClassifyCarriesPayloadFields(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{routerResponse("ACKNOWLEDGE_AND_TRANSITION", true)}}
	router := NewRouter(gateway, 0)

	decision := router.Classify(context.Background(), "assess sharding", []session.Turn{
		{Question: "How would you shard?", Answer: "By tenant."},
	}, "And rebalance with consistent hashing.")

	assert.True(t, decision.GoalAchieved)
	assert.Equal(t, "candidate explained sharding tradeoffs", decision.Summary)
	assert.Equal(t, []string{"thought in tradeoffs"}, decision.QualitativeMarkers)
	assert.Equal(t, llm.PresetClassification, gateway.lastReq.Preset)
}

func TestClassifyFallsBackOnGatewayError(t *testing.T) {
	gateway := &scriptedGateway{err: errors.New("model down")}
	router := NewRouter(gateway, 0)

	decision := router.Classify(context.Background(), "goal", nil, "answer")

	require.True(t, decision.Fallback())
	assert.Equal(t, ActionProbeDeeper, decision.Action)
	assert.False(t, decision.GoalAchieved)
	assert.Zero(t, decision.LatencyMS)
}

func TestClassifyFallsBackOnMalformedOutput(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{"I think the candidate did well"}}
	router := NewRouter(gateway, 0)

	decision := router.Classify(context.Background(), "goal", nil, "answer")

	require.True(t, decision.Fallback())
	assert.Equal(t, ActionProbeDeeper, decision.Action)
}

func TestClassifyFallsBackOnUnknownAction(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{routerResponse("DO_A_BACKFLIP", false)}}
	router := NewRouter(gateway, 0)

	decision := router.Classify(context.Background(), "goal", nil, "answer")

	require.True(t, decision.Fallback())
	assert.Equal(t, ActionProbeDeeper, decision.Action)
}

func TestClassifyAcceptsFencedJSON(t *testing.T) {
	gateway := &scriptedGateway{responses: []string{"```json\n" + routerResponse("GENERATE_FOLLOW_UP", false) + "\n```"}}
	router := NewRouter(gateway, 0)

	decision := router.Classify(context.Background(), "goal", nil, "answer")

	require.False(t, decision.Fallback())
	assert.Equal(t, ActionProbeDeeper, decision.Action)
}
