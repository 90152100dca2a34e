package model

import "time"

type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            *string    `json:"name"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Message is a synced email message. AiStatus tracks the analysis
// lifecycle: pending | processing | completed | failed.
type Message struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	GmailID        *string    `json:"gmail_id,omitempty"`
	ThreadID       *string    `json:"thread_id,omitempty"`
	Sender         string     `json:"sender"`
	Subject        string     `json:"subject"`
	Snippet        *string    `json:"snippet,omitempty"`
	BodyText       *string    `json:"body_text,omitempty"`
	Labels         []string   `json:"labels,omitempty"`
	HasAttachments bool       `json:"has_attachments"`
	IsUnread       bool       `json:"is_unread"`
	IsStarred      bool       `json:"is_starred"`
	IsPriority     bool       `json:"is_priority"`
	IsTrashed      bool       `json:"is_trashed"`
	AiStatus       string     `json:"ai_status"`
	AiError        *string    `json:"ai_error,omitempty"`
	HasAnalysis    bool       `json:"has_analysis"`
	ReceivedAt     *time.Time `json:"received_at,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

const (
	AiStatusPending    = "pending"
	AiStatusProcessing = "processing"
	AiStatusCompleted  = "completed"
	AiStatusFailed     = "failed"
)

type MessageDetail struct {
	Message
	Analysis *StoredAnalysis `json:"analysis,omitempty"`
}

// StoredAnalysis is the persisted analysis row for a completed message.
type StoredAnalysis struct {
	ID               string         `json:"id"`
	MessageID        string         `json:"message_id"`
	Payload          map[string]any `json:"payload"`
	Model            *string        `json:"model,omitempty"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	AnalyzedAt       time.Time      `json:"analyzed_at"`
}

type MessageListResponse struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Total    int       `json:"total"`
	HasNext  bool      `json:"has_next"`
	Status   *string   `json:"status,omitempty"`
	Label    *string   `json:"label,omitempty"`
}

type MessageStatsResponse struct {
	ByStatus map[string]int `json:"by_status"`
	Total    int            `json:"total"`
	Unread   int            `json:"unread"`
	Starred  int            `json:"starred"`
}

// UserGoals is static prompt context: what the mailbox owner cares about,
// fed verbatim into the analysis prompt.
type UserGoals struct {
	UserID      string    `json:"user_id"`
	Goals       *string   `json:"goals,omitempty"`
	FocusAreas  []string  `json:"focus_areas,omitempty"`
	IgnoreNoise bool      `json:"ignore_noise"`
	UpdatedAt   time.Time `json:"updated_at"`
}
