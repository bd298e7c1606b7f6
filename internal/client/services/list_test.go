package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/amoclient/internal/client/client"
	"github.com/dmitrijs2005/amoclient/internal/client/fakecrm"
	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/dmitrijs2005/amoclient/internal/common"
	"github.com/stretchr/testify/require"
)

func pages(sizes ...int) func(int, client.Request) ([]models.Record, error) {
	id := int64(0)
	return func(n int, _ client.Request) ([]models.Record, error) {
		if n >= len(sizes) {
			return nil, nil
		}
		out := make([]models.Record, 0, sizes[n])
		for i := 0; i < sizes[n]; i++ {
			id++
			out = append(out, models.Record{"id": id})
		}
		return out, nil
	}
}

func TestRecursiveCall_StopsOnEmptyPage(t *testing.T) {
	fc := newFakeClient(pages(50, 50, 13, 0))
	s := newContacts(t, fc).LimitRows(50)

	res, err := s.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, 113, res.Len())

	calls := fc.Calls()
	require.Len(t, calls, 4)
	offsets := make([]any, 0, len(calls))
	for _, c := range calls {
		require.Equal(t, client.OpList, c.Operation)
		require.Equal(t, 50, c.Params["limit_rows"])
		offsets = append(offsets, c.Params["limit_offset"])
	}
	require.Equal(t, []any{0, 50, 100, 113}, offsets)

	last, _ := res.Get(112)
	require.Equal(t, int64(113), last.ID())
	require.True(t, last.Saved())
}

func TestRecursiveCall_MaxRows(t *testing.T) {
	fc := newFakeClient(pages(50, 50, 50, 50))
	s := newContacts(t, fc).LimitRows(50).MaxRows(120)

	res, err := s.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, 120, res.Len())

	calls := fc.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, 20, calls[2].Params["limit_rows"])
}

func TestRecursiveCall_KeepsFilters(t *testing.T) {
	fc := newFakeClient(pages(2, 0))
	s := newContacts(t, fc)

	res, err := s.Where("query", "ann").RecursiveCall(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())

	for _, c := range fc.Calls() {
		require.Equal(t, "ann", c.Params["query"])
		require.Equal(t, 500, c.Params["limit_rows"])
	}
	require.Empty(t, s.ListMethod().Args())
}

func TestRecursiveCall_PropagatesError(t *testing.T) {
	boom := errors.New("timeout")
	fc := newFakeClient(func(n int, req client.Request) ([]models.Record, error) {
		if n == 1 {
			return nil, boom
		}
		return pages(5)(n, req)
	})
	s := newContacts(t, fc)

	_, err := s.List(context.Background())
	require.Equal(t, boom, err)
}

func TestListMethod_ArgsConsumedByCall(t *testing.T) {
	fc := newFakeClient(pages(1))
	s := newContacts(t, fc)

	l := s.Where("query", "x").Where("responsible_user_id", 3)
	require.Equal(t, map[string]any{"query": "x", "responsible_user_id": 3}, l.Args())

	_, err := l.Call(context.Background())
	require.NoError(t, err)
	require.Empty(t, l.Args())

	_, err = s.ListMethod().Call(context.Background())
	require.NoError(t, err)

	calls := fc.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, map[string]any{"query": "x", "responsible_user_id": 3, "limit_rows": 500}, calls[0].Params)
	require.Equal(t, map[string]any{"limit_rows": 500}, calls[1].Params)
}

func TestFind(t *testing.T) {
	fc := newFakeClient(func(_ int, req client.Request) ([]models.Record, error) {
		if req.Params["id"] == int64(5) {
			return []models.Record{{"id": 5, "name": "Ann"}}, nil
		}
		return nil, nil
	})
	s := newContacts(t, fc)

	m, err := s.Find(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, "Ann", m.Field("name"))

	_, err = s.Find(context.Background(), 6)
	require.ErrorIs(t, err, common.ErrorNotFound)

	require.Equal(t, map[string]any{"limit_rows": 1, "limit_offset": 0, "id": int64(5)}, fc.Calls()[0].Params)
}

func TestFind_ConcurrentCallsKeepTheirOwnArguments(t *testing.T) {
	fc := newFakeClient(func(_ int, req client.Request) ([]models.Record, error) {
		if id, ok := req.Params["id"]; ok {
			return []models.Record{{"id": id}}, nil
		}
		return nil, nil
	})
	s := newContacts(t, fc)
	ctx := context.Background()

	const workers, perWorker = 8, 200
	errs := make(chan error, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := int64(w*perWorker + i + 1)
				m, err := s.Find(ctx, id)
				if err != nil {
					errs <- err
					continue
				}
				if m.ID() != id {
					errs <- fmt.Errorf("find %d returned %d", id, m.ID())
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < perWorker; i++ {
			_, _ = s.Where("query", "x").Call(ctx)
		}
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	for _, c := range fc.Calls() {
		if _, ok := c.Params["id"]; ok {
			require.Len(t, c.Params, 3)
			require.Equal(t, 1, c.Params["limit_rows"])
			require.NotContains(t, c.Params, "query")
		}
	}
}

func TestFindMany(t *testing.T) {
	fc := newFakeClient(func(_ int, req client.Request) ([]models.Record, error) {
		return []models.Record{{"id": 1}}, nil
	})
	s := newContacts(t, fc)

	res, err := s.FindMany(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	require.Equal(t, 2, fc.Calls()[0].Params["limit_rows"])
	require.Equal(t, []int64{1, 2}, fc.Calls()[0].Params["id"])

	empty, err := s.FindMany(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())
	require.Len(t, fc.Calls(), 1)
}

func TestRoundTripWithFakeCRM(t *testing.T) {
	srv := fakecrm.New(fakecrm.WithLegacyAuth("ann@example.com", "h4sh"))
	url := srv.Start()
	defer srv.Close()

	hc, err := client.NewHTTPClient(url, client.LegacyCredentials{
		Domain: "example", AccountID: 7, Login: "ann@example.com", Hash: "h4sh",
	})
	require.NoError(t, err)

	reg := NewRegistry(WithClock(fixedClock), WithLimits(Limits{Add: 2}))
	s, err := reg.Set("contacts", hc)
	require.NoError(t, err)
	ctx := context.Background()

	var ms []*models.ApiModel
	for _, name := range []string{"Ann", "Bob", "Cid"} {
		m := s.Create()
		m.Set("name", name)
		ms = append(ms, m)
	}
	res, err := s.Add(ctx, ms)
	require.NoError(t, err)
	require.True(t, res.Saved)
	require.Equal(t, 3, res.Responses.Len())

	found, err := s.Find(ctx, ms[1].ID())
	require.NoError(t, err)
	require.Equal(t, "Bob", found.Field("name"))
	require.Equal(t, ms[1].QueryHash(), found.QueryHash())

	found.Set("name", "Rob")
	ok, err := s.Save(ctx, found)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, ms[1].QueryHash(), found.QueryHash())

	again, err := s.Find(ctx, ms[1].ID())
	require.NoError(t, err)
	require.Equal(t, "Rob", again.Field("name"))

	all, err := s.LimitRows(2).List(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, all.Len())
	require.Equal(t, 1, all.Find("name", "Rob").Len())
}

func TestRoundTripWithFakeCRM_DroppedRow(t *testing.T) {
	srv := fakecrm.New()
	url := srv.Start()
	defer srv.Close()

	hc, err := client.NewHTTPClient(url, client.LegacyCredentials{Domain: "example", AccountID: 7, Login: "u", Hash: "h"})
	require.NoError(t, err)
	s, err := NewRegistry().Set("leads", hc)
	require.NoError(t, err)

	ms := []*models.ApiModel{s.Create(), s.Create(), s.Create()}
	srv.Drop(ms[1].RequestID())

	res, err := s.Add(context.Background(), ms)
	require.NoError(t, err)
	require.False(t, res.Saved)
	require.Equal(t, []*models.ApiModel{ms[1]}, res.Missed)
	require.Equal(t, 2, res.Responses.Len())
}

func TestRoundTripWithFakeCRM_ServerErrorIsUnavailable(t *testing.T) {
	srv := fakecrm.New()
	url := srv.Start()
	defer srv.Close()

	hc, err := client.NewHTTPClient(url, client.LegacyCredentials{Domain: "example", AccountID: 7, Login: "u", Hash: "h"})
	require.NoError(t, err)
	s, err := NewRegistry().Set("leads", hc)
	require.NoError(t, err)

	srv.FailNext(503)
	_, err = s.AddOne(context.Background(), s.Create())
	require.ErrorIs(t, err, client.ErrUnavailable)
}
