package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vmarkovic/inboxpilot/api/internal/model"
)

// interChunkDelay spaces sequential provider calls to stay inside free-tier
// burst limits.
const interChunkDelay = 3 * time.Second

// PromptCaller is the router surface the analyzer needs.
type PromptCaller interface {
	CallWithPredictiveRouting(ctx context.Context, systemPrompt, userPrompt string) (*CallResult, error)
}

// AnalysisResult aggregates normalized items and usage across all chunks of
// one Analyze call.
type AnalysisResult struct {
	Items      []map[string]any `json:"items"`
	Usage      Usage            `json:"usage"`
	ModelsUsed []string         `json:"models_used"`
	Chunks     int              `json:"chunks"`
}

// Analyzer drives prompt building, routing and normalization per chunk.
// Chunks run strictly sequentially; a failure in any chunk aborts the whole
// batch result. Per-message bookkeeping lives one level up in Processor.
type Analyzer struct {
	router PromptCaller
	sleep  func(time.Duration)
}

func NewAnalyzer(router PromptCaller) *Analyzer {
	return &Analyzer{router: router, sleep: time.Sleep}
}

func (a *Analyzer) WithSleep(sleep func(time.Duration)) *Analyzer {
	a.sleep = sleep
	return a
}

// chunkSize is deliberately conservative: one message per call keeps each
// request small enough for free-tier completion limits; only large batches
// amortize with 3 per call.
func chunkSize(n int) int {
	switch {
	case n <= 10:
		return 1
	case n <= 30:
		return 1
	default:
		return 3
	}
}

func chunkMessages(msgs []model.Message, size int) [][]model.Message {
	if size <= 0 {
		size = 1
	}
	var chunks [][]model.Message
	for start := 0; start < len(msgs); start += size {
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		chunks = append(chunks, msgs[start:end])
	}
	return chunks
}

// Analyze runs the whole batch through the pipeline and returns every
// normalized item plus aggregate token usage and the distinct models used.
func (a *Analyzer) Analyze(ctx context.Context, msgs []model.Message, goals *model.UserGoals) (*AnalysisResult, error) {
	result := &AnalysisResult{Items: []map[string]any{}}
	if len(msgs) == 0 {
		return result, nil
	}

	systemPrompt := BuildSystemPrompt(goals)
	chunks := chunkMessages(msgs, chunkSize(len(msgs)))
	result.Chunks = len(chunks)
	seenModels := map[string]bool{}

	for i, chunk := range chunks {
		userPrompt := BuildUserPrompt(chunk)

		res, err := a.router.CallWithPredictiveRouting(ctx, systemPrompt, userPrompt)
		if err != nil {
			return nil, fmt.Errorf("analyze chunk %d/%d: %w", i+1, len(chunks), err)
		}

		items, err := Normalize(res.Content)
		if err != nil {
			return nil, fmt.Errorf("analyze chunk %d/%d: %w", i+1, len(chunks), err)
		}
		result.Items = append(result.Items, items...)

		result.Usage.PromptTokens += res.Usage.PromptTokens
		result.Usage.CompletionTokens += res.Usage.CompletionTokens
		result.Usage.TotalTokens += res.Usage.TotalTokens
		if res.Model != "" && !seenModels[res.Model] {
			seenModels[res.Model] = true
			result.ModelsUsed = append(result.ModelsUsed, res.Model)
		}

		log.Printf("analyze chunk=%d/%d items=%d model=%s tokens=%d",
			i+1, len(chunks), len(items), res.Model, res.Usage.TotalTokens)

		if i < len(chunks)-1 {
			a.sleep(interChunkDelay)
		}
	}

	return result, nil
}
