package signals

import (
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/interview-agent/backend/pkg/logger"

	"go.uber.org/zap"
)

// DimensionEvidence accumulates qualitative observations for one evaluation
// dimension across the interview. Append-only while the session is live; the
// post-interview evaluator reads it in full.
type DimensionEvidence struct {
	PositiveSignals    []string `json:"positive_signals"`
	Gaps               []string `json:"areas_for_improvement"`
	Quotes             []string `json:"quotes"`
	Confidence         string   `json:"confidence"`
	SeniorityAlignment string   `json:"seniority_alignment"`
}

// Evidence maps an evaluation dimension (a topic's primary skill) to the
// observations collected for it.
type Evidence map[string]*DimensionEvidence

const maxQuotesPerDimension = 5

// Record appends a turn's observations under the given dimension. Markers
// from the turn classifier become positive signals when the goal was achieved
// and gaps otherwise; a representative quote is lifted from the candidate's
// answer.
func (e Evidence) Record(dimension string, markers []string, goalAchieved bool, answer string) {
	if dimension == "" {
		return
	}

	ev, ok := e[dimension]
	if !ok {
		ev = &DimensionEvidence{Confidence: "Low"}
		e[dimension] = ev
	}

	if goalAchieved {
		ev.PositiveSignals = append(ev.PositiveSignals, markers...)
		ev.Confidence = raiseConfidence(ev.Confidence)
	} else {
		ev.Gaps = append(ev.Gaps, markers...)
	}

	if quote := RepresentativeQuote(answer); quote != "" && len(ev.Quotes) < maxQuotesPerDimension {
		ev.Quotes = append(ev.Quotes, quote)
	}
}

func raiseConfidence(current string) string {
	switch current {
	case "", "Low":
		return "Medium"
	default:
		return "High"
	}
}

// RepresentativeQuote picks the longest sentence of the answer as the quote
// worth surfacing to the evaluator. Sentence segmentation uses prose; when the
// tokenizer fails the whole (trimmed) answer is used.
func RepresentativeQuote(answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ""
	}

	doc, err := prose.NewDocument(answer,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Debug("Sentence segmentation failed", zap.Error(err))
		return clip(answer)
	}

	best := ""
	for _, sent := range doc.Sentences() {
		if len(sent.Text) > len(best) {
			best = sent.Text
		}
	}
	if best == "" {
		best = answer
	}

	return clip(strings.TrimSpace(best))
}

func clip(s string) string {
	const maxQuoteLen = 240
	if len(s) <= maxQuoteLen {
		return s
	}
	return s[:maxQuoteLen]
}
