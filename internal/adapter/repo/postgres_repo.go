package repo

import (
	"context"
	"errors"

	"github.com/example/storefront-commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresSnapshotRepo struct {
	Pool *pgxpool.Pool
}

func NewPostgresSnapshotRepo(pool *pgxpool.Pool) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{Pool: pool}
}

func (r *PostgresSnapshotRepo) Save(ctx context.Context, key string, raw []byte) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO snapshots(key, payload) VALUES($1, $2)
        ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload`, key, raw)
	return err
}

func (r *PostgresSnapshotRepo) Load(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := r.Pool.QueryRow(ctx, `SELECT payload FROM snapshots WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

var _ domain.SnapshotRepository = (*PostgresSnapshotRepo)(nil)

// EnsureSchema — создать необходимые таблицы, если отсутствуют.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS snapshots (
  key text PRIMARY KEY,
  payload jsonb NOT NULL
);`)
	return err
}
