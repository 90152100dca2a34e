package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AiUsageLogRepo struct{ db *pgxpool.Pool }

func NewAiUsageLogRepo(db *pgxpool.Pool) *AiUsageLogRepo { return &AiUsageLogRepo{db: db} }

type AiUsageLogInput struct {
	IdempotencyKey   *string
	UserID           *string
	MessageID        *string
	BatchRunID       *string
	Provider         string
	Model            string
	Purpose          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type AiUsageLog struct {
	ID               string    `json:"id"`
	UserID           *string   `json:"user_id,omitempty"`
	MessageID        *string   `json:"message_id,omitempty"`
	BatchRunID       *string   `json:"batch_run_id,omitempty"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Purpose          string    `json:"purpose"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

type AiUsageDailySummary struct {
	Date             string `json:"date"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	Calls            int    `json:"calls"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}

func (r *AiUsageLogRepo) Insert(ctx context.Context, in AiUsageLogInput) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ai_usage_logs (
			idempotency_key, user_id, message_id, batch_run_id,
			provider, model, purpose,
			prompt_tokens, completion_tokens, total_tokens
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		in.IdempotencyKey, in.UserID, in.MessageID, in.BatchRunID,
		in.Provider, in.Model, in.Purpose,
		in.PromptTokens, in.CompletionTokens, in.TotalTokens,
	)
	return err
}

func (r *AiUsageLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]AiUsageLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, message_id, batch_run_id,
		       provider, model, purpose,
		       prompt_tokens, completion_tokens, total_tokens, created_at
		FROM ai_usage_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AiUsageLog
	for rows.Next() {
		var v AiUsageLog
		if err := rows.Scan(
			&v.ID, &v.UserID, &v.MessageID, &v.BatchRunID,
			&v.Provider, &v.Model, &v.Purpose,
			&v.PromptTokens, &v.CompletionTokens, &v.TotalTokens, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *AiUsageLogRepo) DailySummaryByUser(ctx context.Context, userID string, days int) ([]AiUsageDailySummary, error) {
	if days <= 0 || days > 365 {
		days = 14
	}
	rows, err := r.db.Query(ctx, `
		SELECT (created_at AT TIME ZONE 'Europe/Belgrade')::date::text AS date,
		       provider,
		       model,
		       COUNT(*)::int AS calls,
		       COALESCE(SUM(prompt_tokens),0)::bigint AS prompt_tokens,
		       COALESCE(SUM(completion_tokens),0)::bigint AS completion_tokens,
		       COALESCE(SUM(total_tokens),0)::bigint AS total_tokens
		FROM ai_usage_logs
		WHERE user_id = $1
		  AND created_at >= (NOW() AT TIME ZONE 'UTC') - ($2::int * INTERVAL '1 day')
		GROUP BY 1,2,3
		ORDER BY date DESC, provider ASC, model ASC`, userID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AiUsageDailySummary
	for rows.Next() {
		var v AiUsageDailySummary
		if err := rows.Scan(
			&v.Date, &v.Provider, &v.Model, &v.Calls,
			&v.PromptTokens, &v.CompletionTokens, &v.TotalTokens,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
