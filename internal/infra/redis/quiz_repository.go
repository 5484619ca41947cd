package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CachedQuizStore keeps whole-quiz JSON snapshots in Redis with a TTL and
// falls back to the backing store on a miss. Mutations pass through and
// drop the cached snapshot. Stored as: SET quiz:{id} {json} EX ttl.
type CachedQuizStore struct {
	client  *redis.Client
	backend app.QuizStore
	ttl     time.Duration
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex
}

func NewCachedQuizStore(client *redis.Client, backend app.QuizStore, ttl time.Duration) *CachedQuizStore {
	return &CachedQuizStore{
		client:  client,
		backend: backend,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type cachedQuiz struct {
	ID   int         `json:"id"`
	Quiz domain.Quiz `json:"quiz"`
}

// Create passes the backend result through unchanged, error included: a
// persist failure still carries the created quiz so callers can surface
// it with a warning.
func (s *CachedQuizStore) Create(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	created, err := s.backend.Create(ctx, quiz)
	_ = s.client.Del(ctx, s.key(created.ID)).Err()
	return created, err
}

func (s *CachedQuizStore) Get(ctx context.Context, id int) (domain.Quiz, error) {
	if quiz, ok := s.cached(ctx, id); ok {
		return quiz, nil
	}

	result, err, _ := s.sf.Do(strconv.Itoa(id), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := s.cached(ctx, id); ok {
			return quiz, nil
		}

		quiz, err := s.backend.Get(ctx, id)
		if err != nil {
			return domain.Quiz{}, err
		}

		if data, err := json.Marshal(cachedQuiz{ID: quiz.ID, Quiz: quiz}); err == nil {
			_ = s.client.Set(ctx, s.key(id), data, s.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (s *CachedQuizStore) List(ctx context.Context) ([]domain.Quiz, error) {
	return s.backend.List(ctx)
}

func (s *CachedQuizStore) Update(ctx context.Context, quiz domain.Quiz) error {
	err := s.backend.Update(ctx, quiz)
	_ = s.client.Del(ctx, s.key(quiz.ID)).Err()
	return err
}

func (s *CachedQuizStore) cached(ctx context.Context, id int) (domain.Quiz, bool) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var entry cachedQuiz
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.Quiz{}, false
	}
	quiz := entry.Quiz
	quiz.ID = entry.ID
	return quiz, true
}

func (s *CachedQuizStore) key(id int) string {
	return fmt.Sprintf("quiz:%d", id)
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
