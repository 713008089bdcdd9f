package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interview-agent/backend/internal/plan"
)

func testGraph() *plan.TopicGraph {
	return &plan.TopicGraph{
		Topics: []plan.Topic{
			{TopicID: "topic_01", PrimarySkill: "Go", TopicName: "Concurrency", Goal: "g1"},
			{TopicID: "topic_02", PrimarySkill: "Go", TopicName: "Error handling", Goal: "g2", Dependencies: []string{"topic_01"}},
		},
	}
}

func TestNewStateSeedsFirstTopic(t *testing.T) {
	state := NewState("s1", testGraph())

	assert.Equal(t, "topic_01", state.CurrentTopicID)
	assert.Empty(t, state.CoveredTopicIDs)
	assert.False(t, state.Completed())

	require.Contains(t, state.TopicProgress, "topic_01")
	assert.Equal(t, TopicPending, state.TopicProgress["topic_01"].Status)
	assert.Equal(t, TopicPending, state.TopicProgress["topic_02"].Status)
}

func TestAppendTurnBoundsHistory(t *testing.T) {
	state := NewState("s1", testGraph())

	for i := 0; i < 15; i++ {
		state.AppendTurn(Turn{
			Question:  fmt.Sprintf("q%d", i),
			Answer:    fmt.Sprintf("a%d", i),
			Timestamp: time.Now(),
		}, 10)
	}

	require.Len(t, state.History, 10)
	assert.Equal(t, "q5", state.History[0].Question)
	assert.Equal(t, "q14", state.History[9].Question)
}

func TestRecentHistory(t *testing.T) {
	state := NewState("s1", testGraph())
	for i := 0; i < 5; i++ {
		state.AppendTurn(Turn{Question: fmt.Sprintf("q%d", i)}, 10)
	}

	recent := state.RecentHistory(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "q2", recent[0].Question)

	assert.Len(t, state.RecentHistory(0), 5)
	assert.Len(t, state.RecentHistory(100), 5)
}

func TestMarkTopicCompletedIsIdempotent(t *testing.T) {
	state := NewState("s1", testGraph())

	state.MarkTopicCompleted("topic_01", []string{"structured thinker"})
	state.MarkTopicCompleted("topic_01", []string{"clear communicator"})

	assert.Equal(t, []string{"topic_01"}, state.CoveredTopicIDs)
	progress := state.TopicProgress["topic_01"]
	assert.Equal(t, TopicCompleted, progress.Status)
	assert.True(t, progress.GoalAchieved)
	assert.Equal(t, []string{"structured thinker", "clear communicator"}, progress.QualitativeMarkers)
}

func TestRecordAttempt(t *testing.T) {
	state := NewState("s1", testGraph())

	state.RecordAttempt("topic_01")
	state.RecordAttempt("topic_01")

	assert.Equal(t, 2, state.TopicProgress["topic_01"].Attempts)
}

func TestCompleted(t *testing.T) {
	state := NewState("s1", testGraph())
	assert.False(t, state.Completed())

	state.CurrentTopicID = plan.TopicGraphComplete
	assert.True(t, state.Completed())
}
