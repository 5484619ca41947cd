package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"classquiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizStore persists quizzes as JSONB rows, one per quiz, with the
// sequential id counter kept in a counters table. It implements
// app.QuizStore for deployments that outgrow the flat-file store.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) Create(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("begin create quiz: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int
	err = tx.QueryRow(ctx,
		`INSERT INTO counters (name, value) VALUES ('quiz', 1)
		 ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		 RETURNING value`).Scan(&id)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("next quiz id: %w", err)
	}

	quiz.ID = id
	data, err := json.Marshal(quiz)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("marshal quiz: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO quizzes (id, data) VALUES ($1, $2)`, id, data); err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Quiz{}, fmt.Errorf("commit create quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizStore) Get(ctx context.Context, id int) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return unmarshalQuiz(id, raw)
}

func (s *QuizStore) List(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, data FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.Quiz
	for rows.Next() {
		var (
			id  int
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quiz, err := unmarshalQuiz(id, raw)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func (s *QuizStore) Update(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE quizzes SET data=$2 WHERE id=$1`, quiz.ID, data)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func unmarshalQuiz(id int, raw []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz %d: %w", id, err)
	}
	quiz.ID = id
	return quiz, nil
}

// RecordStore appends graded attempts as JSONB rows in submission order.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

func (s *RecordStore) Append(ctx context.Context, record domain.StudentRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO records (id, data) VALUES ($1, $2)`, record.ID, data); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	return nil
}

func (s *RecordStore) List(ctx context.Context) ([]domain.StudentRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []domain.StudentRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var record domain.StudentRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
