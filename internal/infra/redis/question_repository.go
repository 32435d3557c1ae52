package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/scoring"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question sets from a backing store (embedded YAML, Postgres).
type QuestionLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionRepository caches validated question sets in Redis (hash per set)
// and falls back to a loader on cache miss.
// Questions are stored as: HSET questionset:{setID} {questionID} {question JSON}
// The event name is stored under the reserved field "_event".
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

const eventField = "_event"

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	key := r.key(setID)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		if set, err := buildSetFromCache(setID, fields); err == nil {
			return set, nil
		}
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			if set, err := buildSetFromCache(setID, fields); err == nil {
				return set, nil
			}
		}

		set, err := r.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		if err := scoring.ValidateQuestions(set); err != nil {
			return domain.QuestionSet{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, eventField, set.Event)
		for _, q := range set.Questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return domain.QuestionSet{}, err
			}
			pipe.HSet(ctx, key, q.ID, raw)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (r *QuestionRepository) key(setID string) string {
	return "questionset:" + setID
}

func buildSetFromCache(setID string, fields map[string]string) (domain.QuestionSet, error) {
	set := domain.QuestionSet{ID: setID, Event: fields[eventField]}
	for field, raw := range fields {
		if field == eventField {
			continue
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return domain.QuestionSet{}, err
		}
		set.Questions = append(set.Questions, q)
	}
	sort.Slice(set.Questions, func(i, j int) bool {
		if set.Questions[i].SortOrder != set.Questions[j].SortOrder {
			return set.Questions[i].SortOrder < set.Questions[j].SortOrder
		}
		return set.Questions[i].ID < set.Questions[j].ID
	})
	return set, nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
