package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type storePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (r *storePG) Create(ctx context.Context, s *Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO session (id, account_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		s.ID, s.AccountID, s.CreatedAt, s.ExpiresAt,
	)
	return err
}

func (r *storePG) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, created_at, expires_at
		FROM session WHERE id = $1`, id,
	).Scan(&s.ID, &s.AccountID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *storePG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session WHERE id = $1`, id)
	return err
}

func (r *storePG) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM session WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
