package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"
)

var (
	// ErrNoAvailableModel means no adapter had enough headroom for the
	// estimated request. Hard stop; the margin is not retried smaller.
	ErrNoAvailableModel = errors.New("no available model")

	// ErrAllModelsExhausted means every fallback attempt failed too.
	ErrAllModelsExhausted = errors.New("all models exhausted")
)

const (
	// safetyMargin pads the token estimate before comparing against
	// headroom; actual usage is only known after the call.
	safetyMargin = 1.2

	fallbackDelay = 2 * time.Second
)

// Router selects adapters by predicted token need and cascades through the
// remaining ones on call failure.
type Router struct {
	adapters []Adapter
	budget   BudgetStore
	sleep    func(time.Duration)
}

func NewRouter(adapters []Adapter, budget BudgetStore) *Router {
	return &Router{adapters: adapters, budget: budget, sleep: time.Sleep}
}

// WithSleep replaces the inter-attempt delay. Tests stub it to zero.
func (r *Router) WithSleep(sleep func(time.Duration)) *Router {
	r.sleep = sleep
	return r
}

func (r *Router) Adapters() []Adapter { return r.adapters }

func (r *Router) headroom(ctx context.Context, a Adapter) (int, error) {
	limit := a.DailyTokenLimit()
	if limit <= 0 {
		return math.MaxInt32, nil
	}
	used, err := r.budget.UsedToday(ctx, a.Provider(), a.Name())
	if err != nil {
		return 0, err
	}
	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

// AvailableAdapter picks the adapter with the most remaining daily headroom
// that can fit the estimate plus safety margin. Static priority order is
// deliberately overridden here: routing balances load across budgets.
func (r *Router) AvailableAdapter(ctx context.Context, estimatedTokens int) (Adapter, error) {
	type candidate struct {
		adapter  Adapter
		headroom int
	}
	candidates := make([]candidate, 0, len(r.adapters))
	for _, a := range r.adapters {
		if !a.Available() {
			continue
		}
		h, err := r.headroom(ctx, a)
		if err != nil {
			log.Printf("router headroom lookup failed adapter=%s err=%v", a.Name(), err)
			continue
		}
		candidates = append(candidates, candidate{adapter: a, headroom: h})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].headroom > candidates[j].headroom
	})

	required := int(float64(estimatedTokens) * safetyMargin)
	for _, c := range candidates {
		if c.headroom >= required {
			return c.adapter, nil
		}
	}
	return nil, fmt.Errorf("%w: need %d tokens", ErrNoAvailableModel, required)
}

// CallWithPredictiveRouting estimates the request cost, routes to the
// highest-headroom adapter and calls it. On call failure it cascades through
// the remaining adapters in static priority order.
func (r *Router) CallWithPredictiveRouting(ctx context.Context, systemPrompt, userPrompt string) (*CallResult, error) {
	estimate := EstimateRequestTokens(systemPrompt, userPrompt, 0)

	adapter, err := r.AvailableAdapter(ctx, estimate.TotalTokens)
	if err != nil {
		return nil, err
	}

	res, err := adapter.Call(ctx, systemPrompt, userPrompt)
	if err == nil {
		r.recordUsage(ctx, adapter, res)
		return res, nil
	}
	log.Printf("router call failed adapter=%s err=%v, falling back", adapter.Name(), err)
	return r.CallWithFallback(ctx, systemPrompt, userPrompt, []string{adapter.Name()})
}

// CallWithFallback walks the full adapter list in declaration order, skipping
// excluded and unavailable entries, with a fixed courtesy delay before each
// attempt. Headroom ordering is not re-checked here: after an unexplained
// failure the known-good priority order is trusted over the counters.
func (r *Router) CallWithFallback(ctx context.Context, systemPrompt, userPrompt string, excludeNames []string) (*CallResult, error) {
	excluded := make(map[string]bool, len(excludeNames))
	for _, n := range excludeNames {
		excluded[n] = true
	}

	var lastErr error
	for _, a := range r.adapters {
		if excluded[a.Name()] || !a.Available() {
			continue
		}
		r.sleep(fallbackDelay)
		res, err := a.Call(ctx, systemPrompt, userPrompt)
		if err != nil {
			log.Printf("router fallback failed adapter=%s err=%v", a.Name(), err)
			lastErr = err
			continue
		}
		r.recordUsage(ctx, a, res)
		return res, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", ErrAllModelsExhausted, lastErr)
	}
	return nil, ErrAllModelsExhausted
}

// recordUsage increments the daily counter as a side effect of logging the
// successful call. A failed increment is logged, not fatal: the response is
// already in hand.
func (r *Router) recordUsage(ctx context.Context, a Adapter, res *CallResult) {
	if res == nil || res.Usage.TotalTokens <= 0 {
		return
	}
	if err := r.budget.Add(ctx, a.Provider(), a.Name(), res.Usage.TotalTokens); err != nil {
		log.Printf("router budget record failed adapter=%s tokens=%d err=%v",
			a.Name(), res.Usage.TotalTokens, err)
	}
}
