package mirror

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
)

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns a repository bound to db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Upsert(ctx context.Context, account, entity string, rows []models.Record) error {
	query := `INSERT INTO mirror_records (account, entity, id, query_hash, data, mirrored_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (account, entity, id) DO UPDATE SET query_hash = EXCLUDED.query_hash,
			data = EXCLUDED.data,
			mirrored_at = EXCLUDED.mirrored_at`
	return upsert(ctx, r.db, query, r.now(), account, entity, rows)
}

func (r *PostgresRepository) Get(ctx context.Context, account, entity string, id int64) (models.Record, error) {
	query := `SELECT data FROM mirror_records WHERE account = $1 AND entity = $2 AND id = $3`
	return get(ctx, r.db, query, account, entity, id)
}

func (r *PostgresRepository) List(ctx context.Context, account, entity string) ([]models.Record, error) {
	query := `SELECT data FROM mirror_records WHERE account = $1 AND entity = $2 ORDER BY id`
	return list(ctx, r.db, query, account, entity)
}
