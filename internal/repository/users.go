package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarkovic/inboxpilot/api/internal/model"
)

type UserRepo struct{ db *pgxpool.Pool }

func NewUserRepo(db *pgxpool.Pool) *UserRepo { return &UserRepo{db} }

func (r *UserRepo) Upsert(ctx context.Context, email string, name *string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, name)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET
		    name = COALESCE(EXCLUDED.name, users.name),
		    updated_at = NOW()
		RETURNING id, email, name, email_verified_at, created_at, updated_at`,
		email, name,
	).Scan(&u.ID, &u.Email, &u.Name, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, name, email_verified_at, created_at, updated_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &u, nil
}
