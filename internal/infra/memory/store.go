package memory

import (
	"context"
	"sync"

	"classquiz-service/internal/domain"
)

// QuizStore is an in-memory implementation of app.QuizStore, useful for
// tests and demos without a data directory.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[int]domain.Quiz
	counter int
}

func NewQuizStore() *QuizStore {
	return &QuizStore{quizzes: make(map[int]domain.Quiz)}
}

func (s *QuizStore) Create(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	quiz.ID = s.counter
	s.quizzes[quiz.ID] = quiz.Clone()
	return quiz, nil
}

func (s *QuizStore) Get(_ context.Context, id int) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz.Clone(), nil
}

func (s *QuizStore) List(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quizzes := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		quizzes = append(quizzes, quiz.Clone())
	}
	return quizzes, nil
}

func (s *QuizStore) Update(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; !ok {
		return domain.ErrQuizNotFound
	}
	s.quizzes[quiz.ID] = quiz.Clone()
	return nil
}

// RecordStore is an in-memory implementation of app.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records []domain.StudentRecord
}

func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

func (s *RecordStore) Append(_ context.Context, record domain.StudentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *RecordStore) List(_ context.Context) ([]domain.StudentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StudentRecord(nil), s.records...), nil
}
