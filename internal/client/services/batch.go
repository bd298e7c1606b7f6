package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/client"
	"github.com/dmitrijs2005/amoclient/internal/client/models"
)

// BatchResult is the outcome of an Add or Update call.
type BatchResult struct {
	// Models are the submitted models in input order.
	Models []*models.ApiModel
	// Responses aggregates the raw response records in submission order.
	Responses *models.Collection[models.Record]
	// Missed lists models with no correlated response record.
	Missed []*models.ApiModel
	// Saved is true when every model was reconciled.
	Saved bool
}

// Add creates ms in chunks of Limits.Add.
func (s *Service) Add(ctx context.Context, ms []*models.ApiModel) (BatchResult, error) {
	return s.submit(ctx, client.OpAdd, ms)
}

// AddOne creates a single model and reports whether it was reconciled.
func (s *Service) AddOne(ctx context.Context, m *models.ApiModel) (bool, error) {
	res, err := s.Add(ctx, []*models.ApiModel{m})
	return res.Saved, err
}

// Update sends the changes of ms in chunks of Limits.Update.
func (s *Service) Update(ctx context.Context, ms []*models.ApiModel) (BatchResult, error) {
	return s.submit(ctx, client.OpUpdate, ms)
}

// UpdateOne updates a single model and reports whether it was reconciled.
func (s *Service) UpdateOne(ctx context.Context, m *models.ApiModel) (bool, error) {
	res, err := s.Update(ctx, []*models.ApiModel{m})
	return res.Saved, err
}

// Save adds a model without an id and updates one with an id, stamping
// updated_at with the current unix time.
func (s *Service) Save(ctx context.Context, m *models.ApiModel) (bool, error) {
	if m == nil {
		return false, fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	if !m.HasID() {
		return s.AddOne(ctx, m)
	}
	m.Set(models.FieldUpdatedAt, s.now().Unix())
	return s.UpdateOne(ctx, m)
}

func (s *Service) submit(ctx context.Context, op client.Operation, ms []*models.ApiModel) (BatchResult, error) {
	res := BatchResult{Models: ms, Responses: models.NewCollection[models.Record]()}
	if len(ms) == 0 {
		return res, fmt.Errorf("%w: %s.%s", ErrEmptySubmission, s.def.Name, op)
	}
	for _, m := range ms {
		if err := s.validate(op, m); err != nil {
			return res, err
		}
	}

	limits := s.Limits()
	size, method := limits.Add, s.AddMethod()
	if op == client.OpUpdate {
		size, method = limits.Update, s.UpdateMethod()
	}

	parts := chunk(ms, size)
	for i, part := range parts {
		rows := make([]models.Record, 0, len(part))
		for _, m := range part {
			rows = append(rows, s.buildRow(op, m))
		}

		start := time.Now()
		resp, err := method.Submit(ctx, rows)
		s.metrics.ChunkSubmitted(s.def.Entity, string(op), len(rows), time.Since(start), err)
		if err != nil {
			s.log.Error(ctx, "chunk failed", "op", op, "chunk", i+1, "of", len(parts), "error", err)
			return res, err
		}
		s.log.Debug(ctx, "chunk submitted", "op", op, "chunk", i+1, "of", len(parts), "rows", len(rows), "received", resp.Len())

		res.Responses.Merge(resp)
		saved, missed := reconcile(op, part, resp)
		res.Missed = append(res.Missed, missed...)
		s.metrics.Reconciled(s.def.Entity, string(op), len(saved), len(missed))
		s.mirrorSaved(ctx, saved)
	}

	res.Saved = len(res.Missed) == 0
	if !res.Saved {
		s.log.Warn(ctx, "batch partially reconciled", "op", op, "models", len(ms), "missed", len(res.Missed))
	}
	return res, nil
}

func (s *Service) validate(op client.Operation, m *models.ApiModel) error {
	if m == nil {
		return fmt.Errorf("%w: nil model submitted to %s.%s", ErrInvalidModel, s.def.Name, op)
	}
	if m.Entity() != s.def.Entity {
		return fmt.Errorf("%w: %s model submitted to %s.%s", ErrInvalidModel, m.Entity(), s.def.Name, op)
	}
	for _, f := range s.def.Required[op] {
		if v, ok := m.Get(f); !ok || v == nil {
			return fmt.Errorf("%w: field %q is required in %s", ErrMissingField, f, m.Entity())
		}
	}
	return nil
}

// buildRow assembles the wire row: request_id for add, unchanged required
// fields, then every changed field.
func (s *Service) buildRow(op client.Operation, m *models.ApiModel) models.Record {
	row := models.Record{}
	if op == client.OpAdd {
		row[models.FieldRequestID] = m.RequestID()
	}
	for _, f := range s.def.Required[op] {
		if !m.HasChanged(f) {
			v, _ := m.Get(f)
			row[f] = v
		}
	}
	for k, v := range m.ChangedData() {
		row[k] = v
	}
	return row
}

// reconcile writes server identity back onto the models of one chunk.
// Add rows correlate by request_id, update rows by id. An add row echoed
// without an id is missed.
func reconcile(op client.Operation, part []*models.ApiModel, resp *models.Collection[models.Record]) (saved, missed []*models.ApiModel) {
	key := models.FieldRequestID
	if op == client.OpUpdate {
		key = models.FieldID
	}
	for _, m := range part {
		want, ok := m.Get(key)
		if !ok {
			missed = append(missed, m)
			continue
		}
		raw, found := resp.Find(key, want).First()
		if !found {
			missed = append(missed, m)
			continue
		}
		id, ok := raw.Int64(models.FieldID)
		if !ok || id <= 0 {
			if op == client.OpAdd {
				missed = append(missed, m)
				continue
			}
		} else {
			m.SetID(id)
		}
		if qh, ok := raw.String(models.FieldQueryHash); ok {
			m.SetQueryHash(qh)
		}
		m.MarkSaved()
		saved = append(saved, m)
	}
	return saved, missed
}

func (s *Service) mirrorSaved(ctx context.Context, saved []*models.ApiModel) {
	if s.mirror == nil || len(saved) == 0 {
		return
	}
	rows := make([]models.Record, 0, len(saved))
	for _, m := range saved {
		rows = append(rows, m.Raw())
	}
	if err := s.mirror.Upsert(ctx, s.account.Key(), s.def.Entity, rows); err != nil {
		s.log.Warn(ctx, "mirror upsert failed", "rows", len(rows), "error", err)
	}
}

// chunk splits items into consecutive parts of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(items)
	}
	parts := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		parts = append(parts, items[start:end])
	}
	return parts
}
