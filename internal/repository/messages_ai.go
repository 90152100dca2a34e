package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarkovic/inboxpilot/api/internal/ai"
)

// MessageAIRepo owns the analysis-side writes on messages. It implements
// ai.MessageStore.
type MessageAIRepo struct{ db *pgxpool.Pool }

func NewMessageAIRepo(db *pgxpool.Pool) *MessageAIRepo { return &MessageAIRepo{db} }

func (r *MessageAIRepo) MarkProcessing(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET ai_status = 'processing', ai_error = NULL, updated_at = NOW()
		WHERE id = ANY($1)`, ids)
	return err
}

// SaveAnalysis commits the analysis payload, status flip and token counters
// in one transaction so a completed message always has its analysis row.
func (r *MessageAIRepo) SaveAnalysis(ctx context.Context, id string, analysis *ai.MessageAnalysis, usage ai.Usage, modelName string) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	var modelPtr *string
	if modelName != "" {
		modelPtr = &modelName
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO message_analyses (message_id, payload, model, prompt_tokens, completion_tokens, total_tokens)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (message_id) DO UPDATE SET
			    payload = EXCLUDED.payload,
			    model = EXCLUDED.model,
			    prompt_tokens = EXCLUDED.prompt_tokens,
			    completion_tokens = EXCLUDED.completion_tokens,
			    total_tokens = EXCLUDED.total_tokens,
			    analyzed_at = NOW()`,
			id, payload, modelPtr, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE messages
			SET ai_status = 'completed', ai_error = NULL, processed_at = NOW(), updated_at = NOW()
			WHERE id = $1`, id)
		return err
	})
}

func (r *MessageAIRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET ai_status = 'failed', ai_error = $2, updated_at = NOW()
		WHERE id = $1`, id, errMsg)
	return err
}
