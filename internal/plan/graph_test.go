package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph() *TopicGraph {
	return &TopicGraph{
		Topics: []Topic{
			{TopicID: "topic_01", PrimarySkill: "System Design", TopicName: "Service decomposition", Goal: "Assess decomposition skills"},
			{TopicID: "topic_02", PrimarySkill: "System Design", TopicName: "Data modeling", Goal: "Assess schema design", Dependencies: []string{"topic_01"}},
			{TopicID: "topic_03", PrimarySkill: "Operations", TopicName: "Scaling the service", Goal: "Assess scaling intuition", Dependencies: []string{"topic_01", "topic_02"}},
		},
		Archetype: ArchetypeCaseStudy,
	}
}

func TestGraphValidate(t *testing.T) {
	require.NoError(t, testGraph().Validate())
}

func TestGraphValidateEmpty(t *testing.T) {
	g := &TopicGraph{}
	err := g.Validate()
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestGraphValidateMissingField(t *testing.T) {
	g := testGraph()
	g.Topics[1].Goal = ""
	assert.ErrorIs(t, g.Validate(), ErrContractViolation)
}

func TestGraphValidateDuplicateID(t *testing.T) {
	g := testGraph()
	g.Topics[2].TopicID = "topic_01"
	assert.ErrorIs(t, g.Validate(), ErrContractViolation)
}

func TestGraphValidateUnknownDependency(t *testing.T) {
	g := testGraph()
	g.Topics[1].Dependencies = []string{"topic_99"}
	assert.ErrorIs(t, g.Validate(), ErrContractViolation)
}

func TestGraphValidateSelfDependency(t *testing.T) {
	g := testGraph()
	g.Topics[1].Dependencies = []string{"topic_02"}
	assert.ErrorIs(t, g.Validate(), ErrContractViolation)
}

func TestGraphValidateCycle(t *testing.T) {
	g := testGraph()
	g.Topics[0].Dependencies = []string{"topic_03"}
	err := g.Validate()
	require.ErrorIs(t, err, ErrContractViolation)
	assert.Contains(t, err.Error(), "cycle")
}

func TestFirstTopicID(t *testing.T) {
	assert.Equal(t, "topic_01", testGraph().FirstTopicID())
}

func TestNextTopicIDFollowsDeclarationOrder(t *testing.T) {
	g := testGraph()

	assert.Equal(t, "topic_02", g.NextTopicID("topic_01", []string{"topic_01"}))
	assert.Equal(t, "topic_03", g.NextTopicID("topic_02", []string{"topic_01", "topic_02"}))
}

func TestNextTopicIDSkipsBlockedTopics(t *testing.T) {
	g := testGraph()

	// topic_02 and topic_03 both depend on uncovered topics, so with only
	// the current topic in flight nothing else is eligible.
	assert.Equal(t, TopicGraphComplete, g.NextTopicID("topic_01", nil))
}

func TestNextTopicIDComplete(t *testing.T) {
	g := testGraph()
	covered := []string{"topic_01", "topic_02", "topic_03"}

	assert.Equal(t, TopicGraphComplete, g.NextTopicID("topic_03", covered))
}

func TestNextTopicIDNeverRevisitsCovered(t *testing.T) {
	g := testGraph()

	next := g.NextTopicID("topic_02", []string{"topic_01", "topic_02"})
	assert.NotEqual(t, "topic_01", next)
	assert.NotEqual(t, "topic_02", next)
}

func TestTopicLookup(t *testing.T) {
	g := testGraph()

	topic, ok := g.Topic("topic_02")
	require.True(t, ok)
	assert.Equal(t, "Data modeling", topic.TopicName)

	_, ok = g.Topic("topic_99")
	assert.False(t, ok)
}

func TestErrorSentinelsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrGenerationFailure, ErrContractViolation))
}
