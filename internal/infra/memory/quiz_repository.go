package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CachedQuizStore decorates a backing app.QuizStore with a TTL read cache
// so per-tick quiz lookups do not hammer a remote backend. Mutations go
// straight through and invalidate the cached entry.
type CachedQuizStore struct {
	backend app.QuizStore
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex

	mu    sync.RWMutex
	cache map[int]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewCachedQuizStore(backend app.QuizStore, ttl time.Duration) *CachedQuizStore {
	return &CachedQuizStore{
		backend: backend,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[int]cachedQuiz),
	}
}

// Create passes the backend result through unchanged, error included: a
// persist failure still carries the created quiz so callers can surface
// it with a warning.
func (s *CachedQuizStore) Create(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	created, err := s.backend.Create(ctx, quiz)
	s.invalidate(created.ID)
	return created, err
}

func (s *CachedQuizStore) Get(ctx context.Context, id int) (domain.Quiz, error) {
	now := s.clock()

	s.mu.RLock()
	if entry, ok := s.cache[id]; ok && entry.expiresAt.After(now) {
		s.mu.RUnlock()
		return entry.quiz.Clone(), nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(strconv.Itoa(id), func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		if entry, ok := s.cache[id]; ok && entry.expiresAt.After(now) {
			s.mu.RUnlock()
			return entry.quiz, nil
		}
		s.mu.RUnlock()

		quiz, err := s.backend.Get(ctx, id)
		if err != nil {
			return domain.Quiz{}, err
		}

		s.mu.Lock()
		s.cache[id] = cachedQuiz{quiz: quiz, expiresAt: now.Add(s.ttlWithJitter())}
		s.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz).Clone(), nil
}

// List always hits the backend; the teacher panel wants current flags,
// not cached ones.
func (s *CachedQuizStore) List(ctx context.Context) ([]domain.Quiz, error) {
	return s.backend.List(ctx)
}

func (s *CachedQuizStore) Update(ctx context.Context, quiz domain.Quiz) error {
	err := s.backend.Update(ctx, quiz)
	s.invalidate(quiz.ID)
	return err
}

func (s *CachedQuizStore) invalidate(id int) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

func (s *CachedQuizStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
