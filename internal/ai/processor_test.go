package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/vmarkovic/inboxpilot/api/internal/model"
)

type fakeStore struct {
	processing [][]string
	saved      map[string]*MessageAnalysis
	savedUsage map[string]Usage
	failed     map[string]string
	saveErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		saved:      map[string]*MessageAnalysis{},
		savedUsage: map[string]Usage{},
		failed:     map[string]string{},
	}
}

func (s *fakeStore) MarkProcessing(_ context.Context, ids []string) error {
	s.processing = append(s.processing, ids)
	return nil
}

func (s *fakeStore) SaveAnalysis(_ context.Context, id string, analysis *MessageAnalysis, usage Usage, _ string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[id] = analysis
	s.savedUsage[id] = usage
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id, errMsg string) error {
	s.failed[id] = errMsg
	return nil
}

func (s *fakeStore) writes() int {
	return len(s.processing) + len(s.saved) + len(s.failed)
}

type fakeAnalyzer struct {
	result *AnalysisResult
	err    error
	calls  int
	seen   []model.Message
}

func (a *fakeAnalyzer) Analyze(_ context.Context, msgs []model.Message, _ *model.UserGoals) (*AnalysisResult, error) {
	a.calls++
	a.seen = msgs
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func analysisItem(id string) map[string]any {
	return map[string]any{
		"id":      id,
		"sender":  "klijent@example.com",
		"subject": "Ponuda",
		"classification": map[string]any{
			"primary_category": "prodaja",
			"confidence_score": 0.9,
		},
		"sentiment": map[string]any{
			"urgency_score": 7.0,
		},
		"recommendation": map[string]any{
			"priority_level": "high",
		},
		"summary": "Klijent traži ponudu.",
	}
}

func pendingMessage(id string) model.Message {
	return model.Message{ID: id, Sender: "a@b.c", Subject: "s", AiStatus: model.AiStatusPending}
}

func completedMessage(id string) model.Message {
	return model.Message{ID: id, AiStatus: model.AiStatusCompleted, HasAnalysis: true}
}

func TestProcessSingleSkipsCompleted(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(&fakeAnalyzer{}, store)

	res, err := p.ProcessSingle(context.Background(), completedMessage("m1"), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected skip for completed message")
	}
	if store.writes() != 0 {
		t.Fatalf("skip must not touch the store, got %d writes", store.writes())
	}
}

func TestProcessSingleForceReprocesses(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{result: &AnalysisResult{
		Items:      []map[string]any{analysisItem("m1")},
		Usage:      Usage{TotalTokens: 90},
		ModelsUsed: []string{"llama-3.3-70b-versatile"},
	}}
	p := NewProcessor(analyzer, store)

	res, err := p.ProcessSingle(context.Background(), completedMessage("m1"), nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped {
		t.Fatal("force must not skip")
	}
	if _, ok := store.saved["m1"]; !ok {
		t.Fatal("analysis not saved")
	}
}

func TestProcessSingleSuccess(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{result: &AnalysisResult{
		Items:      []map[string]any{analysisItem("m1")},
		Usage:      Usage{PromptTokens: 60, CompletionTokens: 30, TotalTokens: 90},
		ModelsUsed: []string{"llama-3.3-70b-versatile"},
	}}
	p := NewProcessor(analyzer, store)

	res, err := p.ProcessSingle(context.Background(), pendingMessage("m1"), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Analysis == nil || res.Analysis.ID != "m1" {
		t.Fatalf("analysis = %+v", res.Analysis)
	}
	if len(store.processing) != 1 {
		t.Fatal("message never marked processing")
	}
	if got := store.savedUsage["m1"].TotalTokens; got != 90 {
		t.Fatalf("saved usage = %d, want 90", got)
	}
	if len(store.failed) != 0 {
		t.Fatalf("unexpected failures: %v", store.failed)
	}
}

func TestProcessSingleFallsBackToFirstItem(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{result: &AnalysisResult{
		Items: []map[string]any{analysisItem("rewritten-id")},
	}}
	p := NewProcessor(analyzer, store)

	res, err := p.ProcessSingle(context.Background(), pendingMessage("m1"), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Analysis.ID != "rewritten-id" {
		t.Fatalf("analysis id = %s, want the fallback item", res.Analysis.ID)
	}
}

func TestProcessSingleAnalyzerErrorMarksFailed(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{err: errors.New("provider down")}
	p := NewProcessor(analyzer, store)

	if _, err := p.ProcessSingle(context.Background(), pendingMessage("m1"), nil, false); err == nil {
		t.Fatal("expected error")
	}
	if store.failed["m1"] == "" {
		t.Fatal("message not marked failed")
	}
}

func TestProcessSingleInvalidAnalysisMarksFailed(t *testing.T) {
	store := newFakeStore()
	item := analysisItem("m1")
	item["classification"].(map[string]any)["confidence_score"] = 2.0
	analyzer := &fakeAnalyzer{result: &AnalysisResult{Items: []map[string]any{item}}}
	p := NewProcessor(analyzer, store)

	if _, err := p.ProcessSingle(context.Background(), pendingMessage("m1"), nil, false); err == nil {
		t.Fatal("expected validation error")
	}
	if store.failed["m1"] == "" {
		t.Fatal("message not marked failed")
	}
	if len(store.saved) != 0 {
		t.Fatal("invalid analysis must not be saved")
	}
}

func TestProcessBatchEmptyInput(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	p := NewProcessor(analyzer, newFakeStore())

	res, err := p.ProcessBatch(context.Background(), nil, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 0 || res.Failed != 0 {
		t.Fatalf("result = %+v, want zeroes", res)
	}
	if res.RunID == "" {
		t.Fatal("missing run id")
	}
	if analyzer.calls != 0 {
		t.Fatal("analyzer must not run for empty input")
	}
}

func TestProcessBatchSkipsCompleted(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &AnalysisResult{
		Items: []map[string]any{analysisItem("m2")},
	}}
	p := NewProcessor(analyzer, newFakeStore())

	msgs := []model.Message{completedMessage("m1"), pendingMessage("m2")}
	res, err := p.ProcessBatch(context.Background(), msgs, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped != 1 || res.Processed != 1 {
		t.Fatalf("result = %+v, want 1 skipped 1 processed", res)
	}
	if len(analyzer.seen) != 1 || analyzer.seen[0].ID != "m2" {
		t.Fatalf("analyzer saw %v, want only m2", analyzer.seen)
	}
}

func TestProcessBatchUnmatchedMessageFailsAlone(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{result: &AnalysisResult{
		Items: []map[string]any{analysisItem("m1"), analysisItem("m3")},
		Usage: Usage{TotalTokens: 300},
	}}
	p := NewProcessor(analyzer, store)

	msgs := []model.Message{pendingMessage("m1"), pendingMessage("m2"), pendingMessage("m3")}
	res, err := p.ProcessBatch(context.Background(), msgs, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 2 || res.Failed != 1 || res.Unmatched != 1 {
		t.Fatalf("result = %+v, want 2 processed 1 unmatched failure", res)
	}
	if store.failed["m2"] == "" {
		t.Fatal("m2 not marked failed")
	}
	if _, ok := store.saved["m1"]; !ok {
		t.Fatal("m1 not saved despite sibling failure")
	}
}

func TestProcessBatchSplitsUsageEvenly(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{result: &AnalysisResult{
		Items: []map[string]any{analysisItem("m1"), analysisItem("m2")},
		Usage: Usage{PromptTokens: 200, CompletionTokens: 100, TotalTokens: 300},
	}}
	p := NewProcessor(analyzer, store)

	msgs := []model.Message{pendingMessage("m1"), pendingMessage("m2")}
	if _, err := p.ProcessBatch(context.Background(), msgs, nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.savedUsage["m1"].TotalTokens; got != 150 {
		t.Fatalf("per message tokens = %d, want 150", got)
	}
}

func TestProcessBatchAnalyzerErrorFailsAll(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{err: errors.New("all models exhausted")}
	p := NewProcessor(analyzer, store)

	msgs := []model.Message{pendingMessage("m1"), pendingMessage("m2")}
	res, err := p.ProcessBatch(context.Background(), msgs, nil, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if res == nil || res.Failed != 2 {
		t.Fatalf("result = %+v, want both failed", res)
	}
	if store.failed["m1"] == "" || store.failed["m2"] == "" {
		t.Fatal("messages not marked failed")
	}
}

func TestProcessBatchDuplicateIDsFirstWins(t *testing.T) {
	store := newFakeStore()
	first := analysisItem("m1")
	first["summary"] = "prvi"
	second := analysisItem("m1")
	second["summary"] = "drugi"
	analyzer := &fakeAnalyzer{result: &AnalysisResult{
		Items: []map[string]any{first, second},
	}}
	p := NewProcessor(analyzer, store)

	if _, err := p.ProcessBatch(context.Background(), []model.Message{pendingMessage("m1")}, nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.saved["m1"].Summary; got != "prvi" {
		t.Fatalf("summary = %q, want the first occurrence", got)
	}
}
