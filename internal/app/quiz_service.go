package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"classquiz-service/internal/domain"
)

// QuizStore abstracts how quizzes are persisted (flat JSON files,
// Postgres, in-memory for tests). Create assigns the next sequential id.
type QuizStore interface {
	Create(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	Get(ctx context.Context, id int) (domain.Quiz, error)
	List(ctx context.Context) ([]domain.Quiz, error)
	Update(ctx context.Context, quiz domain.Quiz) error
}

// RecordStore is the append-only list of graded attempts.
type RecordStore interface {
	Append(ctx context.Context, record domain.StudentRecord) error
	List(ctx context.Context) ([]domain.StudentRecord, error)
}

// QuizService contains the teacher-facing quiz use cases.
type QuizService struct {
	quizzes QuizStore
}

func NewQuizService(quizzes QuizStore) *QuizService {
	return &QuizService{quizzes: quizzes}
}

// Create registers a new quiz from extracted or generated questions.
// New quizzes start disabled with a duration derived from question count.
func (s *QuizService) Create(ctx context.Context, title, filename string, questions []domain.Question, autoGenerated bool) (domain.Quiz, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Quiz{}, fmt.Errorf("%w: quiz title is required", domain.ErrValidation)
	}
	if len(questions) == 0 {
		return domain.Quiz{}, fmt.Errorf("%w: no questions to save", domain.ErrValidation)
	}
	quiz := domain.Quiz{
		Title:           title,
		Questions:       questions,
		Filename:        filename,
		Enabled:         false,
		AutoGenerated:   autoGenerated,
		DurationMinutes: domain.DefaultDuration(len(questions)),
	}
	return s.quizzes.Create(ctx, quiz)
}

func (s *QuizService) Get(ctx context.Context, id int) (domain.Quiz, error) {
	return s.quizzes.Get(ctx, id)
}

// List returns every quiz ordered by id.
func (s *QuizService) List(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := s.quizzes.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID < quizzes[j].ID })
	return quizzes, nil
}

// OpenQuizzes returns only quizzes currently offered to students.
func (s *QuizService) OpenQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	open := quizzes[:0]
	for _, q := range quizzes {
		if q.OpenToStudents() {
			open = append(open, q)
		}
	}
	return open, nil
}

// SetAnswers overwrites the correct answer of every question. The slice
// must cover all questions; an index of -1 clears the answer. A persist
// failure keeps the in-memory mutation and surfaces ErrPersistFailed.
func (s *QuizService) SetAnswers(ctx context.Context, id int, answers []int) (domain.Quiz, error) {
	quiz, err := s.quizzes.Get(ctx, id)
	if err != nil {
		return domain.Quiz{}, err
	}
	if len(answers) != len(quiz.Questions) {
		return domain.Quiz{}, fmt.Errorf("%w: expected %d answers, got %d", domain.ErrValidation, len(quiz.Questions), len(answers))
	}
	for i, a := range answers {
		if a < -1 || a >= domain.MaxOptions {
			return domain.Quiz{}, fmt.Errorf("%w: answer %d out of range", domain.ErrValidation, a)
		}
		if a == -1 {
			quiz.Questions[i].CorrectAnswer = nil
		} else {
			quiz.Questions[i].CorrectAnswer = domain.AnswerIndex(a)
		}
	}
	if err := s.quizzes.Update(ctx, quiz); err != nil {
		if errors.Is(err, domain.ErrPersistFailed) {
			return quiz, err
		}
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// ToggleEnabled flips the availability flag. Eligibility for students is
// still gated on every question being keyed, see Quiz.OpenToStudents.
func (s *QuizService) ToggleEnabled(ctx context.Context, id int) (domain.Quiz, error) {
	quiz, err := s.quizzes.Get(ctx, id)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Enabled = !quiz.Enabled
	if err := s.quizzes.Update(ctx, quiz); err != nil {
		if errors.Is(err, domain.ErrPersistFailed) {
			return quiz, err
		}
		return domain.Quiz{}, err
	}
	return quiz, nil
}
