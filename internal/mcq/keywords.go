package mcq

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords covers the common English function words the frequency
// extractor must ignore.
var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "because": {},
	"been": {}, "before": {}, "being": {}, "between": {}, "both": {},
	"could": {}, "does": {}, "doing": {}, "down": {}, "during": {},
	"each": {}, "from": {}, "further": {}, "have": {}, "having": {},
	"here": {}, "into": {}, "itself": {}, "just": {}, "more": {},
	"most": {}, "only": {}, "other": {}, "over": {}, "same": {},
	"should": {}, "some": {}, "such": {}, "than": {}, "that": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "those": {}, "through": {}, "under": {},
	"until": {}, "very": {}, "uses": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "will": {}, "with": {},
	"would": {}, "your": {},
}

// FrequencyExtractor is the word-frequency fallback for key concepts:
// strip stopwords, count words of four or more letters, return the most
// frequent ones.
type FrequencyExtractor struct{}

func (FrequencyExtractor) Concepts(text string, limit int) ([]string, error) {
	counts := map[string]int{}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if len(word) < 4 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if limit > 0 && len(words) > limit {
		words = words[:limit]
	}
	return words, nil
}
