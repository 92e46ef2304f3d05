// Package text holds the punctuation-based sentence splitter and the
// generic batching helper used by the compliance pipeline.
package text

// SplitSentences breaks text into sentence-like units. A sentence is a
// maximal run of characters other than '.', '!' and '?' followed by one or
// more of those terminators; the terminators stay with the sentence.
//
// Text without any terminated run is returned whole as a single sentence.
// A trailing fragment without a terminator is dropped when at least one
// terminated sentence exists. Abbreviations and decimals are split like any
// other terminator.
func SplitSentences(text string) []string {
	if text == "" {
		return []string{}
	}

	var sentences []string
	i := 0
	for i < len(text) {
		start := i
		for i < len(text) && !isTerminator(text[i]) {
			i++
		}
		if i == start {
			// terminator with no body in front of it
			i++
			continue
		}
		if i == len(text) {
			break
		}
		for i < len(text) && isTerminator(text[i]) {
			i++
		}
		sentences = append(sentences, text[start:i])
	}

	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}
