package report

import "strings"

// Verdict is the compliance outcome for a single sentence.
type Verdict string

const (
	Compliant    Verdict = "Compliant"
	NonCompliant Verdict = "Non-compliant"
	Inconclusive Verdict = "Inconclusive"
)

// Finding pairs a sentence with the verdict the classifier produced for it.
type Finding struct {
	Sentence string
	Verdict  Verdict
}

// Summary holds the aggregate verdict counts of a report.
type Summary struct {
	Total        int `json:"totalSentencesAnalyzed"`
	Compliant    int `json:"compliantSentences"`
	NonCompliant int `json:"nonCompliantSentences"`
	Inconclusive int `json:"inconclusiveSentences"`
}

// Detail is the per-sentence entry of a report.
type Detail struct {
	Index    int     `json:"sentenceNumber"`
	Sentence string  `json:"sentence"`
	Verdict  Verdict `json:"result"`
}

// Report is the outcome of one compliance run.
type Report struct {
	Summary Summary  `json:"complianceSummary"`
	Details []Detail `json:"detailedResults"`
}

// Aggregate folds findings into a report. Findings keep their order and
// sentence numbers are assigned from 1 regardless of how they were batched.
func Aggregate(findings []Finding) Report {
	out := Report{
		Summary: Summary{Total: len(findings)},
		Details: make([]Detail, 0, len(findings)),
	}
	for i, f := range findings {
		verdict := f.Verdict
		switch verdict {
		case Compliant:
			out.Summary.Compliant++
		case NonCompliant:
			out.Summary.NonCompliant++
		default:
			// anything outside the closed set counts as inconclusive
			verdict = Inconclusive
			out.Summary.Inconclusive++
		}
		out.Details = append(out.Details, Detail{
			Index:    i + 1,
			Sentence: strings.TrimSpace(f.Sentence),
			Verdict:  verdict,
		})
	}
	return out
}
