package client

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
)

// Operation names a remote entity method.
type Operation string

const (
	OpList   Operation = "list"
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
)

// Request is a single call against an entity endpoint.
//
// For OpList, Params carries query arguments (limit_rows, limit_offset, id,
// and any filter). For OpAdd and OpUpdate, Rows carries the batch payload.
type Request struct {
	Entity    string
	Operation Operation
	Params    map[string]any
	Rows      []models.Record
}

// Account identifies the CRM account a client is bound to.
type Account struct {
	Domain string
	ID     int64
}

// Key returns the account part of a service registry key.
func (a Account) Key() string {
	return a.Domain + "-" + strconv.FormatInt(a.ID, 10)
}

// Client is the transport contract used by services.
type Client interface {
	// Do executes req and returns the raw records of the response.
	// An empty page is reported as a nil slice and no error.
	Do(ctx context.Context, req Request) ([]models.Record, error)

	// Account returns the identity the client is authorized for.
	Account() Account

	Close() error
}
