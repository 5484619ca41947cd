package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"classquiz-service/internal/domain"
	"github.com/google/uuid"
)

// AttemptState enumerates the timer state machine.
type AttemptState string

const (
	StateIdle           AttemptState = "idle"
	StateActive         AttemptState = "active"
	StateExpiredPending AttemptState = "expired-pending-submit"
	StateResultShown    AttemptState = "result-shown"
)

// Attempt is one student session's run through a quiz. All methods are
// safe for concurrent use; the websocket handler touches an attempt from
// both its read loop and its tick loop.
type Attempt struct {
	mu  sync.Mutex
	now func() time.Time

	state           AttemptState
	quiz            domain.Quiz
	studentName     string
	studentEmail    string
	startedAt       time.Time
	durationSeconds int
	lastRemaining   int
	answers         map[int]int
	autoSubmitted   bool
	result          *domain.StudentRecord
}

func NewAttempt() *Attempt {
	return NewAttemptWithClock(time.Now)
}

// NewAttemptWithClock allows deterministic timestamps in tests.
func NewAttemptWithClock(now func() time.Time) *Attempt {
	return &Attempt{now: now, state: StateIdle}
}

func (a *Attempt) State() AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) Quiz() domain.Quiz {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quiz
}

// Start transitions idle -> active. The quiz must be open to students and
// the student identity non-empty; the answer map resets on every start.
func (a *Attempt) Start(quiz domain.Quiz, name, email string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateActive || a.state == StateExpiredPending {
		return domain.ErrAttemptActive
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return fmt.Errorf("%w: name and email are required", domain.ErrValidation)
	}
	if !quiz.OpenToStudents() {
		return domain.ErrQuizClosed
	}

	a.state = StateActive
	a.quiz = quiz
	a.studentName = name
	a.studentEmail = email
	a.startedAt = a.now()
	a.durationSeconds = quiz.DurationMinutes * 60
	a.lastRemaining = a.durationSeconds
	a.answers = make(map[int]int)
	a.autoSubmitted = false
	a.result = nil
	return nil
}

// SelectAnswer records the chosen option for a question while the attempt
// is active. Unanswered questions simply stay absent from the map and are
// graded as wrong.
func (a *Attempt) SelectAnswer(question, option int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateActive {
		return domain.ErrNoAttempt
	}
	if question < 0 || question >= len(a.quiz.Questions) {
		return fmt.Errorf("%w: question index %d out of range", domain.ErrValidation, question)
	}
	if option < 0 || option >= domain.MaxOptions {
		return fmt.Errorf("%w: option index %d out of range", domain.ErrValidation, option)
	}
	a.answers[question] = option
	return nil
}

// Observe recomputes remaining time against the wall clock. Remaining is
// clamped at zero and never increases within an attempt even if the clock
// steps backwards. Reaching zero transitions active ->
// expired-pending-submit; the second return reports whether a one-shot
// auto-submit is due.
func (a *Attempt) Observe() (domain.TimeLeft, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateActive && a.state != StateExpiredPending {
		return domain.TimeLeft{}, false
	}

	elapsed := int(a.now().Sub(a.startedAt).Seconds())
	remaining := a.durationSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	if remaining > a.lastRemaining {
		remaining = a.lastRemaining
	}
	a.lastRemaining = remaining

	if remaining == 0 && a.state == StateActive {
		a.state = StateExpiredPending
	}
	pending := a.state == StateExpiredPending && !a.autoSubmitted
	return domain.NewTimeLeft(remaining, a.durationSeconds), pending
}

// Acknowledge clears a shown result, returning the session to idle.
func (a *Attempt) Acknowledge() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateResultShown {
		return domain.ErrNoAttempt
	}
	a.state = StateIdle
	a.result = nil
	a.quiz = domain.Quiz{}
	a.answers = nil
	return nil
}

// Result returns the stored record while the state machine is in
// result-shown.
func (a *Attempt) Result() (domain.StudentRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return domain.StudentRecord{}, false
	}
	return *a.result, true
}

// finish performs the grade/record/clear sequence exactly once. Auto
// submission requires the expired-pending state and is guarded by the
// one-shot flag; manual submission requires an active attempt.
func (a *Attempt) finish(auto bool, submittedAt time.Time) (domain.StudentRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if auto {
		if a.state != StateExpiredPending || a.autoSubmitted {
			return domain.StudentRecord{}, domain.ErrNoAttempt
		}
		a.autoSubmitted = true
	} else if a.state != StateActive {
		return domain.StudentRecord{}, domain.ErrNoAttempt
	}

	score := Grade(a.quiz, a.answers)
	total := len(a.quiz.Questions)
	record := domain.StudentRecord{
		ID:           uuid.NewString(),
		QuizID:       a.quiz.ID,
		QuizTitle:    a.quiz.Title,
		StudentName:  a.studentName,
		StudentEmail: a.studentEmail,
		SubmittedAt:  submittedAt,
		Score:        score,
		Total:        total,
		Percentage:   domain.Percentage(score, total),
		AutoSubmit:   auto,
	}

	a.state = StateResultShown
	a.result = &record
	a.answers = nil
	return record, nil
}

// AttemptRegistry tracks live attempts by session id so operators can see
// in-flight sessions and abandoned attempts can expire unnoticed.
type AttemptRegistry interface {
	Put(sessionID string, attempt *Attempt)
	Get(sessionID string) (*Attempt, bool)
	Delete(sessionID string)
}

// AttemptService owns record persistence for finished attempts.
type AttemptService struct {
	records RecordStore
	now     func() time.Time
}

func NewAttemptService(records RecordStore) *AttemptService {
	return NewAttemptServiceWithClock(records, time.Now)
}

func NewAttemptServiceWithClock(records RecordStore, now func() time.Time) *AttemptService {
	return &AttemptService{records: records, now: now}
}

// Submit grades the attempt and appends the record. On a persist failure
// the graded result still stands for display and ErrPersistFailed is
// surfaced alongside it.
func (s *AttemptService) Submit(ctx context.Context, attempt *Attempt, auto bool) (domain.StudentRecord, error) {
	record, err := attempt.finish(auto, s.now())
	if err != nil {
		return domain.StudentRecord{}, err
	}
	if err := s.records.Append(ctx, record); err != nil {
		return record, fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	return record, nil
}

// Records lists every graded attempt in append order.
func (s *AttemptService) Records(ctx context.Context) ([]domain.StudentRecord, error) {
	return s.records.List(ctx)
}
