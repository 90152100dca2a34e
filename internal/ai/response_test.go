package ai

import (
	"encoding/json"
	"testing"
)

func validItem(t *testing.T) map[string]any {
	t.Helper()
	raw := `{
		"id": "msg-42",
		"sender": "kupac@example.rs",
		"subject": "Ponuda za saradnju",
		"html_analysis": {"cleaned_text": "tekst", "is_newsletter": false, "urgency_markers": ["rok"], "structure_detected": "plain"},
		"classification": {"primary_category": "prodaja", "subcategory": "lead", "confidence_score": 0.85, "matched_keywords": ["ponuda"]},
		"sentiment": {"urgency_score": 7, "tone": "pozitivan", "business_potential": "visok"},
		"recommendation": {"priority_level": "high", "text": "odgovoriti danas", "roi_estimate": "znacajan", "reasoning": "direktan upit"},
		"action_steps": [{"type": "reply", "description": "poslati ponudu", "timeline": "hitno", "deadline": "2025-03-01", "estimated_time": "30m"}],
		"summary": "Upit za saradnju",
		"gmail_link": "https://mail.google.com/mail/u/0/#inbox/abc"
	}`
	var item map[string]any
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return item
}

func TestParseAnalysisValid(t *testing.T) {
	a, err := ParseAnalysis(validItem(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != "msg-42" {
		t.Fatalf("id = %q", a.ID)
	}
	if a.Classification.ConfidenceScore != 0.85 {
		t.Fatalf("confidence = %v", a.Classification.ConfidenceScore)
	}
	if a.Sentiment.UrgencyScore != 7 {
		t.Fatalf("urgency = %d", a.Sentiment.UrgencyScore)
	}
	if len(a.ActionSteps) != 1 || a.ActionSteps[0].Timeline != "hitno" {
		t.Fatalf("action steps = %#v", a.ActionSteps)
	}
}

func TestParseAnalysisRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(item map[string]any)
	}{
		{"missing id", func(item map[string]any) { delete(item, "id") }},
		{"blank id", func(item map[string]any) { item["id"] = "  " }},
		{"confidence above one", func(item map[string]any) {
			item["classification"].(map[string]any)["confidence_score"] = 1.5
		}},
		{"negative confidence", func(item map[string]any) {
			item["classification"].(map[string]any)["confidence_score"] = -0.1
		}},
		{"urgency above ten", func(item map[string]any) {
			item["sentiment"].(map[string]any)["urgency_score"] = float64(11)
		}},
		{"urgency below one", func(item map[string]any) {
			item["sentiment"].(map[string]any)["urgency_score"] = float64(0)
		}},
		{"fractional urgency", func(item map[string]any) {
			item["sentiment"].(map[string]any)["urgency_score"] = 5.5
		}},
		{"invalid priority level", func(item map[string]any) {
			item["recommendation"].(map[string]any)["priority_level"] = "urgent"
		}},
		{"invalid timeline", func(item map[string]any) {
			item["action_steps"].([]any)[0].(map[string]any)["timeline"] = "tomorrow"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := validItem(t)
			tc.mutate(item)
			if _, err := ParseAnalysis(item); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseAnalysisDefaults(t *testing.T) {
	// A minimal item must parse with empty, never-nil substructures.
	a, err := ParseAnalysis(map[string]any{"id": "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.HTMLAnalysis.UrgencyMarkers == nil {
		t.Fatal("urgency markers should default to empty slice")
	}
	if a.Classification.MatchedKeywords == nil {
		t.Fatal("matched keywords should default to empty slice")
	}
	if a.ActionSteps == nil {
		t.Fatal("action steps should default to empty slice")
	}
	if a.Sentiment.UrgencyScore != 1 {
		t.Fatalf("default urgency = %d, want 1", a.Sentiment.UrgencyScore)
	}
	if a.Recommendation.PriorityLevel != "low" {
		t.Fatalf("default priority = %q, want low", a.Recommendation.PriorityLevel)
	}
}

func TestParseAnalysisDefaultTimeline(t *testing.T) {
	item := validItem(t)
	item["action_steps"].([]any)[0].(map[string]any)["timeline"] = ""
	a, err := ParseAnalysis(item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ActionSteps[0].Timeline != "nema_deadline" {
		t.Fatalf("timeline = %q, want nema_deadline", a.ActionSteps[0].Timeline)
	}
}
