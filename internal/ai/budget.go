package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vmarkovic/inboxpilot/api/internal/timeutil"
)

// BudgetStore tracks tokens consumed per (provider, model, calendar day).
// The key embeds the date, so counters reset implicitly at day rollover.
// Reads and increments are separate operations; slight over-selection under
// concurrent processes is accepted.
type BudgetStore interface {
	UsedToday(ctx context.Context, provider, model string) (int, error)
	Add(ctx context.Context, provider, model string, tokens int) error
}

// counterTTL keeps stale day-keys from accumulating. Two days covers any
// clock skew around the rollover.
const counterTTL = 48 * time.Hour

func budgetKey(provider, model string, day string) string {
	return fmt.Sprintf("%s_%s_%s", provider, model, day)
}

type RedisBudgetStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisBudgetStore(client *redis.Client, prefix string) *RedisBudgetStore {
	if prefix == "" {
		prefix = "inboxpilot"
	}
	return &RedisBudgetStore{client: client, prefix: prefix, now: time.Now}
}

// NewBudgetStoreFromEnv connects to REDIS_URL. The budget store is required
// for routing, so unlike caches there is no noop fallback.
func NewBudgetStoreFromEnv() (*RedisBudgetStore, error) {
	url := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if url == "" {
		return nil, fmt.Errorf("REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisBudgetStore(redis.NewClient(opts), os.Getenv("REDIS_CACHE_PREFIX")), nil
}

// WithClock overrides the clock used to derive the day key. Tests use this
// to drive day rollover.
func (s *RedisBudgetStore) WithClock(now func() time.Time) *RedisBudgetStore {
	s.now = now
	return s
}

func (s *RedisBudgetStore) key(provider, model string) string {
	return s.prefix + ":budget:" + budgetKey(provider, model, timeutil.DayKey(s.now()))
}

func (s *RedisBudgetStore) UsedToday(ctx context.Context, provider, model string) (int, error) {
	n, err := s.client.Get(ctx, s.key(provider, model)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget get: %w", err)
	}
	return n, nil
}

func (s *RedisBudgetStore) Add(ctx context.Context, provider, model string, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	key := s.key(provider, model)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.IncrBy(ctx, key, int64(tokens))
		p.Expire(ctx, key, counterTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("budget incr: %w", err)
	}
	return nil
}
