package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		findings []Finding
		summary  Summary
		details  []Detail
	}{
		{
			name:    "empty",
			summary: Summary{},
			details: []Detail{},
		},
		{
			name: "mixed verdicts keep order",
			findings: []Finding{
				{Sentence: " First one.", Verdict: Compliant},
				{Sentence: "Second one!  ", Verdict: NonCompliant},
				{Sentence: "\nThird?", Verdict: Inconclusive},
				{Sentence: "Fourth.", Verdict: Compliant},
			},
			summary: Summary{Total: 4, Compliant: 2, NonCompliant: 1, Inconclusive: 1},
			details: []Detail{
				{Index: 1, Sentence: "First one.", Verdict: Compliant},
				{Index: 2, Sentence: "Second one!", Verdict: NonCompliant},
				{Index: 3, Sentence: "Third?", Verdict: Inconclusive},
				{Index: 4, Sentence: "Fourth.", Verdict: Compliant},
			},
		},
		{
			name: "repeated sentences counted independently",
			findings: []Finding{
				{Sentence: "Same.", Verdict: NonCompliant},
				{Sentence: "Same.", Verdict: NonCompliant},
			},
			summary: Summary{Total: 2, NonCompliant: 2},
			details: []Detail{
				{Index: 1, Sentence: "Same.", Verdict: NonCompliant},
				{Index: 2, Sentence: "Same.", Verdict: NonCompliant},
			},
		},
		{
			name:     "unknown verdict is inconclusive",
			findings: []Finding{{Sentence: "Odd.", Verdict: Verdict("maybe")}},
			summary:  Summary{Total: 1, Inconclusive: 1},
			details:  []Detail{{Index: 1, Sentence: "Odd.", Verdict: Inconclusive}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Aggregate(tc.findings)
			assert.Equal(t, tc.summary, got.Summary)
			assert.Equal(t, tc.details, got.Details)

			s := got.Summary
			assert.Equal(t, s.Total, s.Compliant+s.NonCompliant+s.Inconclusive)
			assert.Len(t, got.Details, s.Total)
			for i, d := range got.Details {
				assert.Equal(t, i+1, d.Index)
			}
		})
	}
}

func TestReportJSONShape(t *testing.T) {
	rep := Aggregate([]Finding{{Sentence: "This is a test sentence.", Verdict: NonCompliant}})

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"complianceSummary": {
			"totalSentencesAnalyzed": 1,
			"compliantSentences": 0,
			"nonCompliantSentences": 1,
			"inconclusiveSentences": 0
		},
		"detailedResults": [
			{"sentenceNumber": 1, "sentence": "This is a test sentence.", "result": "Non-compliant"}
		]
	}`, string(data))

	empty, err := json.Marshal(Aggregate(nil))
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"detailedResults":[]`)
}
