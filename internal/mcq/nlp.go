package mcq

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// ProseSplitter segments sentences with the prose NLP pipeline.
type ProseSplitter struct{}

func (ProseSplitter) Sentences(text string) ([]string, error) {
	doc, err := prose.NewDocument(text, prose.WithExtraction(false), prose.WithTagging(false))
	if err != nil {
		return nil, err
	}
	sents := doc.Sentences()
	out := make([]string, 0, len(sents))
	for _, s := range sents {
		out = append(out, strings.TrimSpace(s.Text))
	}
	return out, nil
}

// ProseExtractor pulls named entities as key concepts, deduplicated in
// order of first appearance. Falls back to frequency terms when the text
// carries no entities at all.
type ProseExtractor struct{}

func (ProseExtractor) Concepts(text string, limit int) ([]string, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var concepts []string
	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		concepts = append(concepts, name)
		if limit > 0 && len(concepts) >= limit {
			return concepts, nil
		}
	}
	if len(concepts) == 0 {
		return FrequencyExtractor{}.Concepts(text, limit)
	}
	return concepts, nil
}
