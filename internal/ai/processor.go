package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/vmarkovic/inboxpilot/api/internal/model"
)

// BatchAnalyzer is the analyzer surface the processor needs.
type BatchAnalyzer interface {
	Analyze(ctx context.Context, msgs []model.Message, goals *model.UserGoals) (*AnalysisResult, error)
}

// MessageStore is the narrow persistence contract: mark the lifecycle
// transitions and commit one analysis atomically per message.
type MessageStore interface {
	MarkProcessing(ctx context.Context, ids []string) error
	SaveAnalysis(ctx context.Context, id string, analysis *MessageAnalysis, usage Usage, modelName string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}

type SingleResult struct {
	Skipped    bool             `json:"skipped"`
	Analysis   *MessageAnalysis `json:"analysis,omitempty"`
	Usage      Usage            `json:"usage"`
	ModelsUsed []string         `json:"models_used,omitempty"`
}

type BatchResult struct {
	RunID      string   `json:"run_id"`
	Processed  int      `json:"processed"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Unmatched  int      `json:"unmatched"`
	Usage      Usage    `json:"usage"`
	ModelsUsed []string `json:"models_used,omitempty"`
}

// Processor is the top-level use case: run one message or a batch through
// the analyzer and persist outcomes. Failures here are isolated per message;
// only an analyzer-level error fails the whole run.
type Processor struct {
	analyzer BatchAnalyzer
	store    MessageStore
}

func NewProcessor(analyzer BatchAnalyzer, store MessageStore) *Processor {
	return &Processor{analyzer: analyzer, store: store}
}

func needsProcessing(m model.Message, force bool) bool {
	if force {
		return true
	}
	if m.AiStatus == model.AiStatusCompleted && m.HasAnalysis {
		return false
	}
	return true
}

// ProcessSingle analyzes one message. Already-completed messages are a
// success no-op unless forced; no store write happens for them.
func (p *Processor) ProcessSingle(ctx context.Context, msg model.Message, goals *model.UserGoals, force bool) (*SingleResult, error) {
	if !needsProcessing(msg, force) {
		return &SingleResult{Skipped: true}, nil
	}

	if err := p.store.MarkProcessing(ctx, []string{msg.ID}); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	res, err := p.analyzer.Analyze(ctx, []model.Message{msg}, goals)
	if err != nil {
		p.markFailed(ctx, msg.ID, err.Error())
		return nil, err
	}

	item := pickItem(res.Items, msg.ID)
	if item == nil {
		err := fmt.Errorf("model returned no analysis for message %s", msg.ID)
		p.markFailed(ctx, msg.ID, err.Error())
		return nil, err
	}

	analysis, err := ParseAnalysis(item)
	if err != nil {
		p.markFailed(ctx, msg.ID, err.Error())
		return nil, err
	}

	if err := p.store.SaveAnalysis(ctx, msg.ID, analysis, res.Usage, firstModel(res.ModelsUsed)); err != nil {
		p.markFailed(ctx, msg.ID, err.Error())
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	return &SingleResult{Analysis: analysis, Usage: res.Usage, ModelsUsed: res.ModelsUsed}, nil
}

// ProcessBatch analyzes every message that still needs it in one analyzer
// call. Response items are matched back by exact id equality; unmatched
// messages and per-item validation failures are marked failed individually
// without aborting their siblings.
func (p *Processor) ProcessBatch(ctx context.Context, msgs []model.Message, goals *model.UserGoals, force bool) (*BatchResult, error) {
	result := &BatchResult{RunID: uuid.NewString()}

	var pending []model.Message
	for _, m := range msgs {
		if needsProcessing(m, force) {
			pending = append(pending, m)
		} else {
			result.Skipped++
		}
	}
	if len(pending) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(pending))
	for _, m := range pending {
		ids = append(ids, m.ID)
	}
	if err := p.store.MarkProcessing(ctx, ids); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	res, err := p.analyzer.Analyze(ctx, pending, goals)
	if err != nil {
		for _, id := range ids {
			p.markFailed(ctx, id, err.Error())
		}
		result.Failed = len(ids)
		return result, fmt.Errorf("batch %s: %w", result.RunID, err)
	}
	result.Usage = res.Usage
	result.ModelsUsed = res.ModelsUsed

	byID := make(map[string]map[string]any, len(res.Items))
	for _, item := range res.Items {
		id, _ := item["id"].(string)
		if id == "" {
			continue
		}
		if _, dup := byID[id]; !dup {
			byID[id] = item
		}
	}

	modelName := firstModel(res.ModelsUsed)
	for _, m := range pending {
		item, ok := byID[m.ID]
		if !ok {
			log.Printf("batch=%s message=%s no matching analysis item", result.RunID, m.ID)
			p.markFailed(ctx, m.ID, "no analysis returned for message")
			result.Unmatched++
			result.Failed++
			continue
		}
		analysis, err := ParseAnalysis(item)
		if err != nil {
			log.Printf("batch=%s message=%s invalid analysis: %v", result.RunID, m.ID, err)
			p.markFailed(ctx, m.ID, err.Error())
			result.Failed++
			continue
		}
		if err := p.store.SaveAnalysis(ctx, m.ID, analysis, perMessageUsage(res.Usage, len(pending)), modelName); err != nil {
			log.Printf("batch=%s message=%s save failed: %v", result.RunID, m.ID, err)
			p.markFailed(ctx, m.ID, err.Error())
			result.Failed++
			continue
		}
		result.Processed++
	}

	return result, nil
}

func (p *Processor) markFailed(ctx context.Context, id, msg string) {
	if err := p.store.MarkFailed(ctx, id, msg); err != nil {
		log.Printf("mark failed message=%s err=%v", id, err)
	}
}

// pickItem prefers the item echoing the message id, falling back to the
// first item for single-message calls where providers sometimes rewrite ids.
func pickItem(items []map[string]any, id string) map[string]any {
	for _, item := range items {
		if v, _ := item["id"].(string); v == id {
			return item
		}
	}
	if len(items) > 0 {
		return items[0]
	}
	return nil
}

// perMessageUsage attributes an even share of the batch's tokens to each
// message row; exact per-message cost is not knowable from one shared call.
func perMessageUsage(total Usage, n int) Usage {
	if n <= 1 {
		return total
	}
	return Usage{
		PromptTokens:     total.PromptTokens / n,
		CompletionTokens: total.CompletionTokens / n,
		TotalTokens:      total.TotalTokens / n,
	}
}

func firstModel(models []string) string {
	if len(models) == 0 {
		return ""
	}
	return models[0]
}
