package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarkovic/inboxpilot/api/internal/model"
)

// UserGoalsRepo reads the prompt context: the owner's stated goals and
// focus areas. Treated as read-mostly configuration.
type UserGoalsRepo struct{ db *pgxpool.Pool }

func NewUserGoalsRepo(db *pgxpool.Pool) *UserGoalsRepo { return &UserGoalsRepo{db} }

// GetByUserID returns nil (no error) when the user never set goals; the
// analyzer prompts fine without them.
func (r *UserGoalsRepo) GetByUserID(ctx context.Context, userID string) (*model.UserGoals, error) {
	var g model.UserGoals
	err := r.db.QueryRow(ctx, `
		SELECT user_id, goals, COALESCE(focus_areas, '{}'::text[]), ignore_noise, updated_at
		FROM user_goals WHERE user_id = $1`, userID,
	).Scan(&g.UserID, &g.Goals, &g.FocusAreas, &g.IgnoreNoise, &g.UpdatedAt)
	if err != nil {
		if errors.Is(mapDBError(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *UserGoalsRepo) Upsert(ctx context.Context, userID string, goals *string, focusAreas []string, ignoreNoise bool) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_goals (user_id, goals, focus_areas, ignore_noise)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
		    goals = EXCLUDED.goals,
		    focus_areas = EXCLUDED.focus_areas,
		    ignore_noise = EXCLUDED.ignore_noise,
		    updated_at = NOW()`,
		userID, goals, focusAreas, ignoreNoise)
	return err
}
