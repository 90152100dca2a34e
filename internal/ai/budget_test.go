package ai

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vmarkovic/inboxpilot/api/internal/timeutil"
)

func testBudgetStore(t *testing.T) (*RedisBudgetStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisBudgetStore(client, "test"), mr
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBudgetKeyFormat(t *testing.T) {
	store, mr := testBudgetStore(t)
	day := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Belgrade)
	store.WithClock(fixedClock(day))

	if err := store.Add(context.Background(), "groq", "llama-3.3-70b-versatile", 500); err != nil {
		t.Fatalf("add: %v", err)
	}

	want := "test:budget:groq_llama-3.3-70b-versatile_2026-03-15"
	if !mr.Exists(want) {
		t.Fatalf("key %q not written, keys: %v", want, mr.Keys())
	}
}

func TestBudgetAccumulates(t *testing.T) {
	store, _ := testBudgetStore(t)
	ctx := context.Background()

	for _, n := range []int{100, 250, 50} {
		if err := store.Add(ctx, "groq", "m", n); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	used, err := store.UsedToday(ctx, "groq", "m")
	if err != nil {
		t.Fatalf("used: %v", err)
	}
	if used != 400 {
		t.Fatalf("used = %d, want 400", used)
	}
}

func TestBudgetUnknownKeyReadsZero(t *testing.T) {
	store, _ := testBudgetStore(t)

	used, err := store.UsedToday(context.Background(), "groq", "never-called")
	if err != nil {
		t.Fatalf("used: %v", err)
	}
	if used != 0 {
		t.Fatalf("used = %d, want 0", used)
	}
}

func TestBudgetDayRolloverResets(t *testing.T) {
	store, _ := testBudgetStore(t)
	ctx := context.Background()
	day1 := time.Date(2026, 3, 15, 23, 0, 0, 0, timeutil.Belgrade)

	store.WithClock(fixedClock(day1))
	if err := store.Add(ctx, "gemini", "gemini-2.0-flash", 9000); err != nil {
		t.Fatalf("add: %v", err)
	}

	store.WithClock(fixedClock(day1.Add(2 * time.Hour)))
	used, err := store.UsedToday(ctx, "gemini", "gemini-2.0-flash")
	if err != nil {
		t.Fatalf("used: %v", err)
	}
	if used != 0 {
		t.Fatalf("used after rollover = %d, want 0", used)
	}
}

func TestBudgetIgnoresNonPositiveAdds(t *testing.T) {
	store, mr := testBudgetStore(t)

	if err := store.Add(context.Background(), "groq", "m", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("zero add wrote keys: %v", mr.Keys())
	}
}

func TestBudgetCountersHaveTTL(t *testing.T) {
	store, mr := testBudgetStore(t)
	day := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Belgrade)
	store.WithClock(fixedClock(day))

	if err := store.Add(context.Background(), "groq", "m", 10); err != nil {
		t.Fatalf("add: %v", err)
	}

	key := "test:budget:groq_m_2026-03-15"
	if ttl := mr.TTL(key); ttl <= 0 || ttl > counterTTL {
		t.Fatalf("ttl = %v, want within (0, %v]", ttl, counterTTL)
	}
}
