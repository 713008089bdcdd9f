package signals

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGoalAchieved(t *testing.T) {
	evidence := Evidence{}

	evidence.Record("System Design", []string{"thought in tradeoffs"}, true, "I would shard by tenant id.")

	ev := evidence["System Design"]
	require.NotNil(t, ev)
	assert.Equal(t, []string{"thought in tradeoffs"}, ev.PositiveSignals)
	assert.Empty(t, ev.Gaps)
	assert.Equal(t, "Medium", ev.Confidence)
	assert.Len(t, ev.Quotes, 1)
}

func TestRecordGoalMissed(t *testing.T) {
	evidence := Evidence{}

	evidence.Record("System Design", []string{"vague on consistency"}, false, "Not sure.")

	ev := evidence["System Design"]
	require.NotNil(t, ev)
	assert.Empty(t, ev.PositiveSignals)
	assert.Equal(t, []string{"vague on consistency"}, ev.Gaps)
	assert.Equal(t, "Low", ev.Confidence)
}

func TestRecordConfidenceRises(t *testing.T) {
	evidence := Evidence{}

	evidence.Record("Go", []string{"m1"}, true, "answer one")
	assert.Equal(t, "Medium", evidence["Go"].Confidence)

	evidence.Record("Go", []string{"m2"}, true, "answer two")
	assert.Equal(t, "High", evidence["Go"].Confidence)
}

func TestRecordIgnoresEmptyDimension(t *testing.T) {
	evidence := Evidence{}
	evidence.Record("", []string{"m"}, true, "answer")
	assert.Empty(t, evidence)
}

func TestRecordCapsQuotes(t *testing.T) {
	evidence := Evidence{}
	for i := 0; i < 8; i++ {
		evidence.Record("Go", nil, false, "A meaningful answer about goroutines.")
	}
	assert.Len(t, evidence["Go"].Quotes, maxQuotesPerDimension)
}

func TestRepresentativeQuotePicksLongestSentence(t *testing.T) {
	answer := "Yes. I would start by profiling the allocator under production load to find the hot paths. Then iterate."

	quote := RepresentativeQuote(answer)
	assert.Contains(t, quote, "profiling the allocator")
}

func TestRepresentativeQuoteClipsLongText(t *testing.T) {
	quote := RepresentativeQuote(strings.Repeat("word ", 100))
	assert.LessOrEqual(t, len(quote), 240)
}

func TestRepresentativeQuoteEmptyAnswer(t *testing.T) {
	assert.Equal(t, "", RepresentativeQuote("   "))
}
