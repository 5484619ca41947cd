package app

import "classquiz-service/internal/domain"

// Grade counts the positions where the selected option equals the keyed
// correct answer. Unset keys and missing selections never match, so
// grading cannot fail on incomplete input.
func Grade(quiz domain.Quiz, answers map[int]int) int {
	score := 0
	for i, question := range quiz.Questions {
		if question.CorrectAnswer == nil {
			continue
		}
		if selected, ok := answers[i]; ok && selected == *question.CorrectAnswer {
			score++
		}
	}
	return score
}
