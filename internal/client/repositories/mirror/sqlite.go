package mirror

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/dmitrijs2005/amoclient/internal/common"
	"github.com/dmitrijs2005/amoclient/internal/dbx"
)

// ErrMissingID is returned when a row to mirror has no usable id.
var ErrMissingID = errors.New("record has no id")

// SQLiteRepository implements Repository on a SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository returns a repository bound to db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Upsert writes all rows in one transaction.
func (r *SQLiteRepository) Upsert(ctx context.Context, account, entity string, rows []models.Record) error {
	query := `INSERT INTO mirror_records (account, entity, id, query_hash, data, mirrored_at)
			values (?, ?, ?, ?, ?, ?)
			ON CONFLICT(account, entity, id) DO UPDATE SET query_hash = excluded.query_hash,
				data = excluded.data,
				mirrored_at = excluded.mirrored_at
	`
	return upsert(ctx, r.db, query, r.now(), account, entity, rows)
}

// Get returns the stored record with id.
func (r *SQLiteRepository) Get(ctx context.Context, account, entity string, id int64) (models.Record, error) {
	query := `select data from mirror_records where account=? and entity=? and id=?`
	return get(ctx, r.db, query, account, entity, id)
}

// List returns the stored records of entity ordered by id.
func (r *SQLiteRepository) List(ctx context.Context, account, entity string) ([]models.Record, error) {
	query := `select data from mirror_records where account=? and entity=? order by id`
	return list(ctx, r.db, query, account, entity)
}

type encodedRow struct {
	id        int64
	queryHash string
	data      string
}

func encodeRows(rows []models.Record) ([]encodedRow, error) {
	out := make([]encodedRow, 0, len(rows))
	for _, row := range rows {
		id, ok := row.Int64(models.FieldID)
		if !ok || id <= 0 {
			return nil, ErrMissingID
		}
		qh, _ := row.String(models.FieldQueryHash)
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal record %d: %w", id, err)
		}
		out = append(out, encodedRow{id: id, queryHash: qh, data: string(data)})
	}
	return out, nil
}

func decodeRow(data []byte) (models.Record, error) {
	var rec models.Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

func upsert(ctx context.Context, db *sql.DB, query string, now time.Time, account, entity string, rows []models.Record) error {
	if len(rows) == 0 {
		return nil
	}
	encoded, err := encodeRows(rows)
	if err != nil {
		return err
	}
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, e := range encoded {
			if _, err := tx.ExecContext(ctx, query, account, entity, e.id, e.queryHash, e.data, now.Unix()); err != nil {
				return fmt.Errorf("failed to upsert record %d: %w", e.id, err)
			}
		}
		return nil
	})
}

func get(ctx context.Context, db dbx.DBTX, query string, args ...any) (models.Record, error) {
	var data []byte
	if err := db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return decodeRow(data)
}

func list(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]models.Record, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := decodeRow(data)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
