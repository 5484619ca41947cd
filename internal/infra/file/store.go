// Package file persists quizzes, records and the id counter as flat JSON
// files, rewritten wholesale on every mutation. A mutex makes each store
// the single writer of its files within this process; cross-process
// writers are out of scope. Disk failures do not roll back the in-memory
// mutation; they surface as domain.ErrPersistFailed.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"classquiz-service/internal/domain"
)

const (
	quizzesFile = "quizzes.json"
	counterFile = "counter.json"
	recordsFile = "records.json"
)

type counterState struct {
	QuizCounter int `json:"quiz_counter"`
}

// QuizStore implements app.QuizStore over quizzes.json and counter.json.
type QuizStore struct {
	dir string

	mu      sync.Mutex
	quizzes map[int]domain.Quiz
	counter int
}

// OpenQuizStore loads the quiz collection and counter from dir, creating
// the directory if needed. Missing files mean an empty store.
func OpenQuizStore(dir string) (*QuizStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &QuizStore{dir: dir, quizzes: make(map[int]domain.Quiz)}

	var byID map[string]domain.Quiz
	if err := readJSON(filepath.Join(dir, quizzesFile), &byID); err != nil {
		return nil, err
	}
	for key, quiz := range byID {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("quiz store has non-numeric id %q", key)
		}
		quiz.ID = id
		s.quizzes[id] = quiz
	}

	var counter counterState
	if err := readJSON(filepath.Join(dir, counterFile), &counter); err != nil {
		return nil, err
	}
	s.counter = counter.QuizCounter
	return s, nil
}

func (s *QuizStore) Create(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	quiz.ID = s.counter
	s.quizzes[quiz.ID] = quiz.Clone()

	if err := s.persistLocked(); err != nil {
		return quiz, fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	return quiz, nil
}

func (s *QuizStore) Get(_ context.Context, id int) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz.Clone(), nil
}

func (s *QuizStore) List(_ context.Context) ([]domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quizzes := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		quizzes = append(quizzes, quiz.Clone())
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID < quizzes[j].ID })
	return quizzes, nil
}

func (s *QuizStore) Update(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; !ok {
		return domain.ErrQuizNotFound
	}
	s.quizzes[quiz.ID] = quiz.Clone()

	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	return nil
}

func (s *QuizStore) persistLocked() error {
	byID := make(map[string]domain.Quiz, len(s.quizzes))
	for id, quiz := range s.quizzes {
		byID[strconv.Itoa(id)] = quiz
	}
	if err := writeJSON(filepath.Join(s.dir, quizzesFile), byID); err != nil {
		return err
	}
	return writeJSON(filepath.Join(s.dir, counterFile), counterState{QuizCounter: s.counter})
}

// RecordStore implements app.RecordStore over records.json.
type RecordStore struct {
	dir string

	mu      sync.Mutex
	records []domain.StudentRecord
}

// OpenRecordStore loads the append-only record list from dir.
func OpenRecordStore(dir string) (*RecordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &RecordStore{dir: dir}
	if err := readJSON(filepath.Join(dir, recordsFile), &s.records); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RecordStore) Append(_ context.Context, record domain.StudentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)

	if err := writeJSON(filepath.Join(s.dir, recordsFile), s.records); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	return nil
}

func (s *RecordStore) List(_ context.Context) ([]domain.StudentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StudentRecord(nil), s.records...), nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
