package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vmarkovic/inboxpilot/api/internal/model"
)

// Categories is the classification taxonomy embedded in every prompt.
var Categories = []string{
	"posao",      // work / business
	"finansije",  // finance, invoices, banking
	"prodaja",    // sales and leads
	"marketing",  // newsletters, promotions
	"licno",      // personal
	"obavestenja",// notifications, receipts, automated mail
	"spam",
}

// PriorityLevels and Timelines are the enums the model must answer with.
var (
	PriorityLevels = []string{"low", "medium", "high"}
	Timelines      = []string{"hitno", "ova_nedelja", "ovaj_mesec", "dugorocno", "nema_deadline"}
)

// promptItem is the read-only projection of a message sent to the model.
// Built fresh per call, never stored.
type promptItem struct {
	ID             string   `json:"id"`
	Sender         string   `json:"sender"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	ReceivedAt     string   `json:"received_at,omitempty"`
	Labels         []string `json:"labels,omitempty"`
	HasAttachments bool     `json:"has_attachments"`
	IsUnread       bool     `json:"is_unread"`
	IsPriority     bool     `json:"is_priority"`
}

const maxBodyChars = 6000

// BuildSystemPrompt assembles the instructional half of the request:
// taxonomy, scoring rubrics and the strict output schema.
func BuildSystemPrompt(goals *model.UserGoals) string {
	var b strings.Builder
	b.WriteString("You are an email analysis engine for a business mailbox. ")
	b.WriteString("Analyze every email you are given and answer with JSON only, no commentary.\n\n")

	b.WriteString("Classification categories (primary_category must be one of): ")
	b.WriteString(strings.Join(Categories, ", "))
	b.WriteString("\n\n")

	b.WriteString("Scoring rubrics:\n")
	b.WriteString("- confidence_score: 0.0-1.0, how certain the classification is\n")
	b.WriteString("- urgency_score: integer 1-10, 10 means drop everything\n")
	b.WriteString("- priority_level: one of " + strings.Join(PriorityLevels, ", ") + "\n")
	b.WriteString("- action step timeline: one of " + strings.Join(Timelines, ", ") + "\n\n")

	if goals != nil {
		if goals.Goals != nil && strings.TrimSpace(*goals.Goals) != "" {
			b.WriteString("The mailbox owner's goals: " + strings.TrimSpace(*goals.Goals) + "\n")
		}
		if len(goals.FocusAreas) > 0 {
			b.WriteString("Focus areas: " + strings.Join(goals.FocusAreas, ", ") + "\n")
		}
		if goals.IgnoreNoise {
			b.WriteString("Mark newsletters and automated notifications as low priority.\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("For each email return an object with exactly these fields:\n")
	b.WriteString(outputSchema)
	b.WriteString("\nReturn a JSON array with one object per email, in input order.\n")
	return b.String()
}

const outputSchema = `{
  "id": "<the email id, echoed verbatim>",
  "sender": "...",
  "subject": "...",
  "html_analysis": {"cleaned_text": "...", "is_newsletter": false, "urgency_markers": [], "structure_detected": "..."},
  "classification": {"primary_category": "...", "subcategory": "...", "confidence_score": 0.0, "matched_keywords": []},
  "sentiment": {"urgency_score": 1, "tone": "...", "business_potential": "..."},
  "recommendation": {"priority_level": "low", "text": "...", "roi_estimate": "...", "reasoning": "..."},
  "action_steps": [{"type": "...", "description": "...", "timeline": "nema_deadline", "deadline": "", "estimated_time": ""}],
  "summary": "...",
  "gmail_link": ""
}`

// BuildUserPrompt serializes the chunk's messages as structured JSON.
func BuildUserPrompt(messages []model.Message) string {
	items := make([]promptItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, toPromptItem(m))
	}
	payload, _ := json.MarshalIndent(items, "", "  ")
	return fmt.Sprintf("Analyze these %d emails:\n%s", len(items), payload)
}

func toPromptItem(m model.Message) promptItem {
	body := ""
	if m.BodyText != nil {
		body = *m.BodyText
	} else if m.Snippet != nil {
		body = *m.Snippet
	}
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}
	received := ""
	if m.ReceivedAt != nil {
		received = m.ReceivedAt.Format(time.RFC3339)
	}
	return promptItem{
		ID:             m.ID,
		Sender:         m.Sender,
		Subject:        m.Subject,
		Body:           body,
		ReceivedAt:     received,
		Labels:         m.Labels,
		HasAttachments: m.HasAttachments,
		IsUnread:       m.IsUnread,
		IsPriority:     m.IsPriority,
	}
}
