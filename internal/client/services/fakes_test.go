package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/client"
	"github.com/dmitrijs2005/amoclient/internal/client/models"
)

type fakeClient struct {
	mu      sync.Mutex
	account client.Account
	calls   []client.Request
	handler func(n int, req client.Request) ([]models.Record, error)
}

func newFakeClient(handler func(n int, req client.Request) ([]models.Record, error)) *fakeClient {
	return &fakeClient{account: client.Account{Domain: "example", ID: 7}, handler: handler}
}

func (f *fakeClient) Do(_ context.Context, req client.Request) ([]models.Record, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.handler == nil {
		return nil, nil
	}
	return f.handler(n, req)
}

func (f *fakeClient) Account() client.Account { return f.account }

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) Calls() []client.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]client.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// echo answers batches like the CRM: add rows get an id derived from
// their position, update rows keep theirs. Rows whose request_id or id is
// listed in skip are omitted.
func echo(skip ...string) func(int, client.Request) ([]models.Record, error) {
	var mu sync.Mutex
	next := int64(100)
	omit := map[string]bool{}
	for _, s := range skip {
		omit[s] = true
	}
	return func(_ int, req client.Request) ([]models.Record, error) {
		mu.Lock()
		defer mu.Unlock()
		var out []models.Record
		for _, r := range req.Rows {
			switch req.Operation {
			case client.OpAdd:
				next++
				rid, _ := r.String(models.FieldRequestID)
				if omit[rid] {
					continue
				}
				out = append(out, models.Record{"id": next, "request_id": rid, "query_hash": "qh-" + strconv.FormatInt(next, 10)})
			case client.OpUpdate:
				id, _ := r.Int64(models.FieldID)
				if omit[strconv.FormatInt(id, 10)] {
					continue
				}
				out = append(out, models.Record{"id": id, "query_hash": "uqh-" + strconv.FormatInt(id, 10)})
			}
		}
		return out, nil
	}
}

type upsertCall struct {
	account string
	entity  string
	rows    []models.Record
}

type fakeMirror struct {
	mu    sync.Mutex
	calls []upsertCall
	err   error
}

func (m *fakeMirror) Upsert(_ context.Context, account, entity string, rows []models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, upsertCall{account: account, entity: entity, rows: rows})
	return m.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	chunks  int
	rows    int
	errors  int
	saved   int
	missed  int
	entity  string
	lastOps []string
}

func (r *fakeRecorder) ChunkSubmitted(entity, op string, rows int, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks++
	r.rows += rows
	r.entity = entity
	r.lastOps = append(r.lastOps, op)
	if err != nil {
		r.errors++
	}
}

func (r *fakeRecorder) Reconciled(_ string, _ string, saved, missed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved += saved
	r.missed += missed
}

func fixedClock() time.Time {
	return time.Unix(1_700_000_000, 0)
}
