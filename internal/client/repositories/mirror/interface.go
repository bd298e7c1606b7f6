package mirror

import (
	"context"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
)

// Repository stores records per account and entity.
type Repository interface {
	// Upsert inserts rows or replaces the stored copy of rows with the same id.
	Upsert(ctx context.Context, account, entity string, rows []models.Record) error

	// Get returns a stored record or common.ErrorNotFound.
	Get(ctx context.Context, account, entity string, id int64) (models.Record, error)

	// List returns the stored records of an entity ordered by id.
	List(ctx context.Context, account, entity string) ([]models.Record, error)
}
