package mcq

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"classquiz-service/internal/domain"
)

// Strategy is one way of producing questions from raw text. Strategies are
// tried in order; the first one to succeed wins and later ones are skipped.
type Strategy interface {
	Generate(ctx context.Context, text string, count int) ([]domain.Question, error)
}

// Generator runs an ordered chain of strategies. A failing strategy is
// logged by the caller and silently degrades to the next one; only the
// final error surfaces when every strategy fails.
type Generator struct {
	strategies []Strategy
}

func NewGenerator(strategies ...Strategy) *Generator {
	return &Generator{strategies: strategies}
}

// NewDefaultChain assembles the standard strategy order: the remote model
// when configured, the NLP-backed heuristic when enabled, and the basic
// regex/frequency heuristic always last so generation still has a
// dependency-free path when the richer stages error out.
func NewDefaultChain(remote Strategy, nlpEnabled bool, rnd *rand.Rand) *Generator {
	var strategies []Strategy
	if remote != nil {
		strategies = append(strategies, remote)
	}
	if nlpEnabled {
		strategies = append(strategies, NewHeuristicStrategy(ProseSplitter{}, ProseExtractor{}, 0, rnd))
	}
	strategies = append(strategies, NewHeuristicStrategy(RegexSplitter{}, FrequencyExtractor{}, 0, rnd))
	return NewGenerator(strategies...)
}

func (g *Generator) Generate(ctx context.Context, text string, count int) ([]domain.Question, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyDocument
	}
	var lastErr error = domain.ErrNoContent
	for _, strategy := range g.strategies {
		questions, err := strategy.Generate(ctx, text, count)
		if err == nil && len(questions) > 0 {
			return questions, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, lastErr
}

// questionKind rotates across generated questions so a quiz is not a wall
// of identical stems.
type questionKind int

const (
	kindComprehension questionKind = iota
	kindDetail
	kindInference
	kindApplication
	kindCount
)

// SentenceSplitter segments raw text into candidate sentences. The NLP
// splitter is preferred when available; a punctuation regex is the fallback.
type SentenceSplitter interface {
	Sentences(text string) ([]string, error)
}

// ConceptExtractor pulls notable terms out of the text to slot into stems.
type ConceptExtractor interface {
	Concepts(text string, limit int) ([]string, error)
}

// HeuristicStrategy fabricates templated questions from descriptive text.
// The produced "correct" option is generic by construction; it is a
// best-effort heuristic, not a semantic guarantee.
type HeuristicStrategy struct {
	splitter    SentenceSplitter
	concepts    ConceptExtractor
	minSentence int
	rnd         *rand.Rand
}

// NewHeuristicStrategy builds the templated generator. splitter and
// concepts may come from the NLP pipeline or the basic fallbacks; rnd is
// injectable for deterministic tests.
func NewHeuristicStrategy(splitter SentenceSplitter, concepts ConceptExtractor, minSentence int, rnd *rand.Rand) *HeuristicStrategy {
	if minSentence <= 0 {
		minSentence = 20
	}
	return &HeuristicStrategy{splitter: splitter, concepts: concepts, minSentence: minSentence, rnd: rnd}
}

func (h *HeuristicStrategy) Generate(_ context.Context, text string, count int) ([]domain.Question, error) {
	sentences, err := h.splitter.Sentences(text)
	if err != nil {
		return nil, fmt.Errorf("split sentences: %w", err)
	}
	eligible := make([]string, 0, len(sentences))
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len(s) >= h.minSentence {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return nil, domain.ErrNoContent
	}

	concepts, err := h.concepts.Concepts(text, count)
	if err != nil || len(concepts) == 0 {
		// concepts are garnish; the templates work without them
		concepts = []string{"the passage"}
	}

	if count > len(eligible) {
		count = len(eligible)
	}
	questions := make([]domain.Question, 0, count)
	for i := 0; i < count; i++ {
		kind := questionKind(i % int(kindCount))
		concept := concepts[i%len(concepts)]
		questions = append(questions, h.render(kind, eligible[i], concept))
	}
	return questions, nil
}

func (h *HeuristicStrategy) render(kind questionKind, sentence, concept string) domain.Question {
	snippet := truncate(sentence, 90)

	var stem string
	switch kind {
	case kindComprehension:
		stem = fmt.Sprintf("What is the main idea of the statement: \"%s\"?", snippet)
	case kindDetail:
		stem = fmt.Sprintf("According to the text, which detail about %s is accurate?", concept)
	case kindInference:
		stem = fmt.Sprintf("What can be inferred from: \"%s\"?", snippet)
	default:
		stem = fmt.Sprintf("How could the idea \"%s\" be applied in practice?", snippet)
	}

	correct := correctOption(kind)
	options := append(distractors(kind), correct)
	h.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	answer := 0
	for i, opt := range options {
		if opt == correct {
			answer = i
			break
		}
	}
	return domain.Question{
		Text:          stem,
		Options:       padOptions(options),
		CorrectAnswer: domain.AnswerIndex(answer),
		AutoGenerated: true,
	}
}

func correctOption(kind questionKind) string {
	switch kind {
	case kindComprehension:
		return "It accurately summarizes what the text states."
	case kindDetail:
		return "The detail stated directly in the passage."
	case kindInference:
		return "A conclusion consistent with the information given."
	default:
		return "By applying the stated principle to a matching situation."
	}
}

func distractors(kind questionKind) []string {
	switch kind {
	case kindComprehension:
		return []string{
			"It contradicts what the text states.",
			"It describes a topic the text never mentions.",
			"It reverses the relationship described in the text.",
		}
	case kindDetail:
		return []string{
			"A detail that contradicts the passage.",
			"A detail from an unrelated subject.",
			"A detail the passage explicitly rules out.",
		}
	case kindInference:
		return []string{
			"A conclusion the information given rules out.",
			"A conclusion about an unrelated topic.",
			"A conclusion that overstates the information given.",
		}
	default:
		return []string{
			"By ignoring the stated principle entirely.",
			"By applying it to an unrelated situation.",
			"By inverting the principle before applying it.",
		}
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}

// RegexSplitter is the basic punctuation-based sentence segmenter used
// when the NLP pipeline is disabled or fails.
type RegexSplitter struct{}

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

func (RegexSplitter) Sentences(text string) ([]string, error) {
	parts := sentenceBoundary.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences, nil
}
