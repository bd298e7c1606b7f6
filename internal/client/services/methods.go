package services

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/dmitrijs2005/amoclient/internal/client/client"
	"github.com/dmitrijs2005/amoclient/internal/client/models"
)

const (
	argLimitRows   = "limit_rows"
	argLimitOffset = "limit_offset"
)

// ListMethod accumulates list arguments. The terminal Call or RecursiveCall
// consumes them, so each chain starts from an empty argument set. The
// accumulator is shared by every user of the Service: a Where chain is safe
// only while one goroutine builds it. Find and FindMany do not use it.
type ListMethod struct {
	svc *Service

	mu   sync.Mutex
	args map[string]any
}

func (m *ListMethod) Operation() client.Operation { return client.OpList }

// Where sets a request argument.
func (m *ListMethod) Where(key string, value any) *ListMethod {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.args[key] = value
	return m
}

// Args returns a copy of the pending arguments.
func (m *ListMethod) Args() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.args)
}

func (m *ListMethod) take() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.args
	m.args = make(map[string]any)
	return args
}

// Call fetches one page.
func (m *ListMethod) Call(ctx context.Context) (*models.Collection[*models.ApiModel], error) {
	return m.call(ctx, m.take())
}

// call fetches one page with args, leaving the shared accumulator alone.
func (m *ListMethod) call(ctx context.Context, args map[string]any) (*models.Collection[*models.ApiModel], error) {
	if !m.svc.def.Has(client.OpList) {
		return nil, fmt.Errorf("%w: %s.list", ErrInvalidOperation, m.svc.def.Name)
	}
	if _, ok := args[argLimitRows]; !ok {
		args[argLimitRows] = m.svc.Limits().Rows
	}

	rows, err := m.fetch(ctx, args)
	if err != nil {
		return nil, err
	}
	return m.toModels(rows), nil
}

// RecursiveCall fetches pages with a growing offset until a page comes
// back empty or the MaxRows cap is reached.
func (m *ListMethod) RecursiveCall(ctx context.Context) (*models.Collection[*models.ApiModel], error) {
	args := m.take()
	if !m.svc.def.Has(client.OpList) {
		return nil, fmt.Errorf("%w: %s.list", ErrInvalidOperation, m.svc.def.Name)
	}

	limits := m.svc.Limits()
	pageSize := limits.Rows
	if v, ok := args[argLimitRows]; ok {
		if n, ok := models.ToInt64(v); ok && n > 0 {
			pageSize = int(n)
		}
	}
	offset := 0
	if v, ok := args[argLimitOffset]; ok {
		if n, ok := models.ToInt64(v); ok && n > 0 {
			offset = int(n)
		}
	}

	var all []models.Record
	for {
		size := pageSize
		if limits.Max > 0 {
			size = min(size, limits.Max-len(all))
		}
		params := maps.Clone(args)
		params[argLimitRows] = size
		params[argLimitOffset] = offset

		page, err := m.fetch(ctx, params)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		offset += len(page)
		if limits.Max > 0 && len(all) >= limits.Max {
			all = all[:limits.Max]
			break
		}
	}
	return m.toModels(all), nil
}

func (m *ListMethod) fetch(ctx context.Context, params map[string]any) ([]models.Record, error) {
	m.svc.log.Debug(ctx, "list page", "params", params)
	return m.svc.client.Do(ctx, client.Request{
		Entity:    m.svc.def.Entity,
		Operation: client.OpList,
		Params:    params,
	})
}

func (m *ListMethod) toModels(rows []models.Record) *models.Collection[*models.ApiModel] {
	out := models.NewCollection[*models.ApiModel]()
	for _, r := range rows {
		out.Append(models.FromRecord(m.svc.def.Entity, r))
	}
	return out
}

// BatchMethod submits one add or update batch.
type BatchMethod struct {
	svc *Service
	op  client.Operation
}

func (m *BatchMethod) Operation() client.Operation { return m.op }

// Submit sends rows in a single request and returns the raw response records.
func (m *BatchMethod) Submit(ctx context.Context, rows []models.Record) (*models.Collection[models.Record], error) {
	if !m.svc.def.Has(m.op) {
		return nil, fmt.Errorf("%w: %s.%s", ErrInvalidOperation, m.svc.def.Name, m.op)
	}
	items, err := m.svc.client.Do(ctx, client.Request{
		Entity:    m.svc.def.Entity,
		Operation: m.op,
		Rows:      rows,
	})
	if err != nil {
		return nil, err
	}
	return models.NewCollection(items...), nil
}
