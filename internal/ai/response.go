package ai

import (
	"fmt"
	"math"
	"strings"
)

// MessageAnalysis is the validated per-message analysis contract. All
// enumerated fields are range-checked at construction; optional
// substructures default to empty values so consumers never nil-check.
type MessageAnalysis struct {
	ID             string          `json:"id"`
	Sender         string          `json:"sender"`
	Subject        string          `json:"subject"`
	HTMLAnalysis   HTMLAnalysis    `json:"html_analysis"`
	Classification Classification  `json:"classification"`
	Sentiment      Sentiment       `json:"sentiment"`
	Recommendation Recommendation  `json:"recommendation"`
	ActionSteps    []ActionStep    `json:"action_steps"`
	Summary        string          `json:"summary"`
	GmailLink      string          `json:"gmail_link"`
}

type HTMLAnalysis struct {
	CleanedText       string   `json:"cleaned_text"`
	IsNewsletter      bool     `json:"is_newsletter"`
	UrgencyMarkers    []string `json:"urgency_markers"`
	StructureDetected string   `json:"structure_detected"`
}

type Classification struct {
	PrimaryCategory string   `json:"primary_category"`
	Subcategory     string   `json:"subcategory"`
	ConfidenceScore float64  `json:"confidence_score"`
	MatchedKeywords []string `json:"matched_keywords"`
}

type Sentiment struct {
	UrgencyScore      int    `json:"urgency_score"`
	Tone              string `json:"tone"`
	BusinessPotential string `json:"business_potential"`
}

type Recommendation struct {
	PriorityLevel string `json:"priority_level"`
	Text          string `json:"text"`
	ROIEstimate   string `json:"roi_estimate"`
	Reasoning     string `json:"reasoning"`
}

type ActionStep struct {
	Type          string `json:"type"`
	Description   string `json:"description"`
	Timeline      string `json:"timeline"`
	Deadline      string `json:"deadline"`
	EstimatedTime string `json:"estimated_time"`
}

// ParseAnalysis validates one normalized item into the typed contract.
func ParseAnalysis(item map[string]any) (*MessageAnalysis, error) {
	id := strings.TrimSpace(asString(item["id"]))
	if id == "" {
		return nil, fmt.Errorf("analysis item missing id")
	}

	a := &MessageAnalysis{
		ID:        id,
		Sender:    asString(item["sender"]),
		Subject:   asString(item["subject"]),
		Summary:   asString(item["summary"]),
		GmailLink: asString(item["gmail_link"]),
	}

	if h, ok := item["html_analysis"].(map[string]any); ok {
		a.HTMLAnalysis = HTMLAnalysis{
			CleanedText:       asString(h["cleaned_text"]),
			IsNewsletter:      asBool(h["is_newsletter"]),
			UrgencyMarkers:    asStringSlice(h["urgency_markers"]),
			StructureDetected: asString(h["structure_detected"]),
		}
	}
	if a.HTMLAnalysis.UrgencyMarkers == nil {
		a.HTMLAnalysis.UrgencyMarkers = []string{}
	}

	if c, ok := item["classification"].(map[string]any); ok {
		score, err := asScore(c["confidence_score"])
		if err != nil {
			return nil, fmt.Errorf("id=%s: confidence_score: %w", id, err)
		}
		if score < 0 || score > 1 {
			return nil, fmt.Errorf("id=%s: confidence_score %v out of [0,1]", id, score)
		}
		a.Classification = Classification{
			PrimaryCategory: asString(c["primary_category"]),
			Subcategory:     asString(c["subcategory"]),
			ConfidenceScore: score,
			MatchedKeywords: asStringSlice(c["matched_keywords"]),
		}
	}
	if a.Classification.MatchedKeywords == nil {
		a.Classification.MatchedKeywords = []string{}
	}

	if s, ok := item["sentiment"].(map[string]any); ok {
		urgency, err := asIntScore(s["urgency_score"])
		if err != nil {
			return nil, fmt.Errorf("id=%s: urgency_score: %w", id, err)
		}
		if urgency < 1 || urgency > 10 {
			return nil, fmt.Errorf("id=%s: urgency_score %d out of [1,10]", id, urgency)
		}
		a.Sentiment = Sentiment{
			UrgencyScore:      urgency,
			Tone:              asString(s["tone"]),
			BusinessPotential: asString(s["business_potential"]),
		}
	} else {
		a.Sentiment.UrgencyScore = 1
	}

	if rec, ok := item["recommendation"].(map[string]any); ok {
		level := asString(rec["priority_level"])
		if !contains(PriorityLevels, level) {
			return nil, fmt.Errorf("id=%s: invalid priority_level %q", id, level)
		}
		a.Recommendation = Recommendation{
			PriorityLevel: level,
			Text:          asString(rec["text"]),
			ROIEstimate:   asString(rec["roi_estimate"]),
			Reasoning:     asString(rec["reasoning"]),
		}
	} else {
		a.Recommendation.PriorityLevel = "low"
	}

	a.ActionSteps = []ActionStep{}
	if steps, ok := item["action_steps"].([]any); ok {
		for i, raw := range steps {
			sm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			timeline := asString(sm["timeline"])
			if timeline == "" {
				timeline = "nema_deadline"
			}
			if !contains(Timelines, timeline) {
				return nil, fmt.Errorf("id=%s: action_steps[%d]: invalid timeline %q", id, i, timeline)
			}
			a.ActionSteps = append(a.ActionSteps, ActionStep{
				Type:          asString(sm["type"]),
				Description:   asString(sm["description"]),
				Timeline:      timeline,
				Deadline:      asString(sm["deadline"]),
				EstimatedTime: asString(sm["estimated_time"]),
			})
		}
	}

	return a, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asScore(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

// asIntScore accepts JSON numbers but rejects fractional values: urgency is
// defined as an integer scale.
func asIntScore(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case nil:
		return 1, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
