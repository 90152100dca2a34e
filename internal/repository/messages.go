package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarkovic/inboxpilot/api/internal/model"
)

type MessageRepo struct{ db *pgxpool.Pool }

func NewMessageRepo(db *pgxpool.Pool) *MessageRepo { return &MessageRepo{db} }

type MessageListParams struct {
	Status     *string // ai_status filter
	Label      *string
	UnreadOnly bool
	Starred    bool
	Page       int
	PageSize   int
}

const messageColumns = `
	m.id, m.user_id, m.gmail_id, m.thread_id, m.sender, m.subject,
	m.snippet, m.body_text, COALESCE(m.labels, '{}'::text[]),
	m.has_attachments, m.is_unread, m.is_starred, m.is_priority, m.is_trashed,
	m.ai_status, m.ai_error,
	(ma.message_id IS NOT NULL) AS has_analysis,
	m.received_at, m.processed_at, m.created_at, m.updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanMessage(row rowScanner, m *model.Message) error {
	return row.Scan(&m.ID, &m.UserID, &m.GmailID, &m.ThreadID, &m.Sender, &m.Subject,
		&m.Snippet, &m.BodyText, &m.Labels,
		&m.HasAttachments, &m.IsUnread, &m.IsStarred, &m.IsPriority, &m.IsTrashed,
		&m.AiStatus, &m.AiError, &m.HasAnalysis,
		&m.ReceivedAt, &m.ProcessedAt, &m.CreatedAt, &m.UpdatedAt)
}

func (r *MessageRepo) ListPage(ctx context.Context, userID string, p MessageListParams) (*model.MessageListResponse, error) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 200 {
		p.PageSize = 200
	}

	where := ` WHERE m.user_id = $1 AND NOT m.is_trashed`
	args := []any{userID}
	if p.Status != nil {
		args = append(args, *p.Status)
		where += ` AND m.ai_status = $` + itoa(len(args))
	}
	if p.Label != nil {
		args = append(args, *p.Label)
		where += ` AND $` + itoa(len(args)) + ` = ANY(m.labels)`
	}
	if p.UnreadOnly {
		where += ` AND m.is_unread`
	}
	if p.Starred {
		where += ` AND m.is_starred`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages m`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	offset := (p.Page - 1) * p.PageSize
	args = append(args, p.PageSize, offset)

	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN message_analyses ma ON ma.message_id = m.id`+
		where+`
		ORDER BY m.received_at DESC NULLS LAST, m.created_at DESC
		LIMIT $`+itoa(len(args)-1)+` OFFSET $`+itoa(len(args)),
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &model.MessageListResponse{
		Messages: messages,
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    total,
		HasNext:  offset+len(messages) < total,
		Status:   p.Status,
		Label:    p.Label,
	}, nil
}

func (r *MessageRepo) Get(ctx context.Context, id, userID string) (*model.Message, error) {
	var m model.Message
	row := r.db.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN message_analyses ma ON ma.message_id = m.id
		WHERE m.id = $1 AND m.user_id = $2`, id, userID)
	if err := scanMessage(row, &m); err != nil {
		return nil, mapDBError(err)
	}
	return &m, nil
}

func (r *MessageRepo) GetDetail(ctx context.Context, id, userID string) (*model.MessageDetail, error) {
	msg, err := r.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	d := &model.MessageDetail{Message: *msg}

	var a model.StoredAnalysis
	err = r.db.QueryRow(ctx, `
		SELECT id, message_id, payload, model, prompt_tokens, completion_tokens, total_tokens, analyzed_at
		FROM message_analyses WHERE message_id = $1`, id,
	).Scan(&a.ID, &a.MessageID, &a.Payload, &a.Model,
		&a.PromptTokens, &a.CompletionTokens, &a.TotalTokens, &a.AnalyzedAt)
	if err == nil {
		d.Analysis = &a
	}

	return d, nil
}

// ListForProcessing returns messages still waiting on analysis: pending,
// failed, or completed rows whose analysis payload is missing.
func (r *MessageRepo) ListForProcessing(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN message_analyses ma ON ma.message_id = m.id
		WHERE m.user_id = $1
		  AND NOT m.is_trashed
		  AND (m.ai_status IN ('pending', 'failed') OR ma.message_id IS NULL)
		ORDER BY m.received_at DESC NULLS LAST
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MessageRepo) ListFailedForRetry(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN message_analyses ma ON ma.message_id = m.id
		WHERE m.user_id = $1 AND m.ai_status = 'failed' AND NOT m.is_trashed
		ORDER BY m.updated_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MessageRepo) SetStarred(ctx context.Context, userID, id string, starred bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages SET is_starred = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`, id, userID, starred)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MessageRepo) SetTrashed(ctx context.Context, userID, id string, trashed bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages SET is_trashed = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`, id, userID, trashed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MessageRepo) Stats(ctx context.Context, userID string) (*model.MessageStatsResponse, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ai_status,
		       COUNT(*)::int AS total,
		       COALESCE(SUM(CASE WHEN is_unread THEN 1 ELSE 0 END), 0)::int AS unread,
		       COALESCE(SUM(CASE WHEN is_starred THEN 1 ELSE 0 END), 0)::int AS starred
		FROM messages
		WHERE user_id = $1 AND NOT is_trashed
		GROUP BY ai_status`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &model.MessageStatsResponse{ByStatus: map[string]int{}}
	for rows.Next() {
		var status string
		var total, unread, starred int
		if err := rows.Scan(&status, &total, &unread, &starred); err != nil {
			return nil, err
		}
		resp.ByStatus[status] = total
		resp.Total += total
		resp.Unread += unread
		resp.Starred += starred
	}
	return resp, rows.Err()
}

type SyncedMessageInput struct {
	UserID         string
	GmailID        string
	ThreadID       *string
	Sender         string
	Subject        string
	Snippet        *string
	BodyText       *string
	Labels         []string
	HasAttachments bool
	IsUnread       bool
	IsPriority     bool
	ReceivedAt     *time.Time
}

// UpsertSynced records a message delivered by the sync collaborator. The
// returned bool reports whether the row is new; re-synced messages keep
// their analysis state.
func (r *MessageRepo) UpsertSynced(ctx context.Context, in SyncedMessageInput) (string, bool, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO messages (
			user_id, gmail_id, thread_id, sender, subject, snippet, body_text,
			labels, has_attachments, is_unread, is_priority, received_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (user_id, gmail_id) DO NOTHING
		RETURNING id`,
		in.UserID, in.GmailID, in.ThreadID, in.Sender, in.Subject, in.Snippet, in.BodyText,
		in.Labels, in.HasAttachments, in.IsUnread, in.IsPriority, in.ReceivedAt,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	err2 := r.db.QueryRow(ctx, `
		SELECT id FROM messages WHERE user_id = $1 AND gmail_id = $2`,
		in.UserID, in.GmailID).Scan(&id)
	return id, false, err2
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
