package domain

import (
	"fmt"
	"math"
	"time"
)

// MaxOptions is the fixed option slot count per question. Parsed or
// generated questions with fewer options are padded with empty strings.
const MaxOptions = 4

// Question models a single MCQ. CorrectAnswer is nil until a teacher keys
// the question (or a generator fabricates an answer); it serializes as
// JSON null in that state.
type Question struct {
	Text          string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correct_answer"`
	AutoGenerated bool     `json:"auto_generated"`
}

// Answered reports whether the question has a keyed correct option.
func (q Question) Answered() bool {
	return q.CorrectAnswer != nil
}

// AnswerIndex is a convenience for building keyed questions in literals.
func AnswerIndex(i int) *int { return &i }

// Quiz is a named ordered set of questions with availability and timing
// metadata. IDs are assigned sequentially by the store.
type Quiz struct {
	ID              int        `json:"-"`
	Title           string     `json:"title"`
	Questions       []Question `json:"questions"`
	Filename        string     `json:"filename"`
	Enabled         bool       `json:"enabled"`
	AutoGenerated   bool       `json:"auto_generated"`
	DurationMinutes int        `json:"duration_minutes"`
}

// OpenToStudents reports whether the quiz may be offered to students:
// it must be enabled and every question must have a keyed answer.
func (q Quiz) OpenToStudents() bool {
	if !q.Enabled || len(q.Questions) == 0 {
		return false
	}
	for _, question := range q.Questions {
		if !question.Answered() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so stores can hand out quizzes without
// sharing option slices or answer pointers with callers.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		cq := question
		cq.Options = append([]string(nil), question.Options...)
		if question.CorrectAnswer != nil {
			v := *question.CorrectAnswer
			cq.CorrectAnswer = &v
		}
		out.Questions[i] = cq
	}
	return out
}

// DefaultDuration derives the allotted minutes from the question count,
// one minute per question with a floor of one.
func DefaultDuration(questionCount int) int {
	if questionCount < 1 {
		return 1
	}
	return questionCount
}

// StudentRecord is the immutable result of one graded attempt.
type StudentRecord struct {
	ID           string    `json:"id"`
	QuizID       int       `json:"quiz_id"`
	QuizTitle    string    `json:"quiz_title"`
	StudentName  string    `json:"student_name"`
	StudentEmail string    `json:"student_email"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Score        int       `json:"score"`
	Total        int       `json:"total"`
	Percentage   float64   `json:"percentage"`
	AutoSubmit   bool      `json:"auto_submitted"`
}

// Percentage computes score/total as a percentage rounded to two decimal
// places, 0 when total is zero.
func Percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*10000) / 100
}

// TimeLeft is a snapshot of remaining attempt time for display.
type TimeLeft struct {
	Remaining int    `json:"remaining"`
	Display   string `json:"display"`
	Severity  string `json:"severity"`
}

// NewTimeLeft renders remaining seconds against the full allotted
// duration: "danger" under a minute left, "warning" under half the
// allotted time.
func NewTimeLeft(remaining, duration int) TimeLeft {
	if remaining < 0 {
		remaining = 0
	}
	severity := ""
	if remaining < 60 {
		severity = "danger"
	} else if remaining < duration/2 {
		severity = "warning"
	}
	return TimeLeft{
		Remaining: remaining,
		Display:   fmt.Sprintf("%02d:%02d", remaining/60, remaining%60),
		Severity:  severity,
	}
}
