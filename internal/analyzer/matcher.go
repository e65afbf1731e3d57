package analyzer

import (
	"strings"
	"unicode"
)

// TermMatch represents occurrences of a search term within page text.
type TermMatch struct {
	Term      string   `json:"term"`
	Count     int      `json:"count"`
	Sentences []string `json:"sentences"`
}

// FindTermMatches scans content for each term (case-insensitive) and returns
// a TermMatch for every term that occurs at least once. Sentences holds up
// to maxSentences sentences containing the term, in page order; a
// maxSentences <= 0 keeps them all.
func FindTermMatches(content string, terms []string, maxSentences int) []TermMatch {
	if len(content) == 0 || len(terms) == 0 {
		return nil
	}

	results := make([]TermMatch, 0, len(terms))
	lowerContent := strings.ToLower(content)

	sentences := splitIntoSentences(content)
	if len(sentences) == 0 {
		return results
	}

	for _, term := range terms {
		lowerTerm := strings.ToLower(strings.TrimSpace(term))
		if lowerTerm == "" {
			continue
		}
		count := strings.Count(lowerContent, lowerTerm)
		if count == 0 {
			continue
		}

		var matched []string
		for _, s := range sentences {
			if maxSentences > 0 && len(matched) == maxSentences {
				break
			}
			if strings.Contains(s.lower, lowerTerm) {
				matched = append(matched, s.original)
			}
		}

		results = append(results, TermMatch{
			Term:      term,
			Count:     count,
			Sentences: matched,
		})
	}
	return results
}

type sentence struct {
	original string
	lower    string
}

// splitIntoSentences splits text on '.', '!' and '?', keeping the delimiter
// at the end of each sentence.
func splitIntoSentences(text string) []sentence {
	if len(text) == 0 {
		return nil
	}

	// Roughly one sentence per 50 bytes.
	sentences := make([]sentence, 0, max(len(text)/50, 1))
	start := 0

	for i, r := range text {
		if i < start {
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			for end < len(text) && unicode.IsSpace(rune(text[end])) {
				end++
			}
			if orig := strings.TrimSpace(text[start:end]); orig != "" {
				sentences = append(sentences, sentence{original: orig, lower: strings.ToLower(orig)})
			}
			start = end
		}
	}

	if start < len(text) {
		if orig := strings.TrimSpace(text[start:]); orig != "" {
			sentences = append(sentences, sentence{original: orig, lower: strings.ToLower(orig)})
		}
	}

	return sentences
}
