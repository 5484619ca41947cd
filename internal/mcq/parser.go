package mcq

import (
	"regexp"
	"strings"

	"classquiz-service/internal/domain"
)

// minQuestionLen filters out stray short lines that merely contain a
// question mark ("why?", page footers and the like).
const minQuestionLen = 10

// optionLine matches pre-authored option markers: "A." / "a)" through "D." / "d)".
var optionLine = regexp.MustCompile(`^[A-Da-d][.)]\s*(.*)$`)

// Parse extracts pre-authored question/option blocks from structured text.
// A line longer than minQuestionLen containing a question mark opens a
// question; following option-marker lines are collected up to four.
// Collection stops early when another question-like line appears. A block
// is kept only if at least two options were found; options are padded to
// the fixed slot count and correct answers are left unset for the teacher
// to key manually.
func Parse(text string) []domain.Question {
	var questions []domain.Question

	lines := splitLines(text)
	for i := 0; i < len(lines); i++ {
		if !questionLike(lines[i]) {
			continue
		}

		var options []string
		j := i + 1
		for ; j < len(lines) && len(options) < domain.MaxOptions; j++ {
			if questionLike(lines[j]) {
				break
			}
			m := optionLine.FindStringSubmatch(lines[j])
			if m == nil {
				continue
			}
			options = append(options, strings.TrimSpace(m[1]))
		}

		if len(options) >= 2 {
			questions = append(questions, domain.Question{
				Text:    lines[i],
				Options: padOptions(options),
			})
		}
		// resume right before the line that stopped option collection
		i = j - 1
	}
	return questions
}

func questionLike(line string) bool {
	return strings.Contains(line, "?") && len(line) > minQuestionLen
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func padOptions(options []string) []string {
	for len(options) < domain.MaxOptions {
		options = append(options, "")
	}
	return options[:domain.MaxOptions]
}
