package fakecrm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeItems(t *testing.T, w *httptest.ResponseRecorder) []models.Record {
	t.Helper()
	var env struct {
		Embedded struct {
			Items []models.Record `json:"items"`
		} `json:"_embedded"`
	}
	dec := json.NewDecoder(w.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&env))
	return env.Embedded.Items
}

func TestServer_AddAssignsIDsAndDrops(t *testing.T) {
	s := New()
	s.Drop("r2")

	w := serve(t, s, http.MethodPost, "/api/v2/leads", `{"add":[{"request_id":"r1","name":"a"},{"request_id":"r2","name":"b"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	items := decodeItems(t, w)
	require.Len(t, items, 1)
	require.Equal(t, "r1", items[0]["request_id"])
	require.Len(t, s.Rows("leads"), 2)
}

func TestServer_UpdateUnknownIDOmitted(t *testing.T) {
	s := New()
	ids := s.Seed("leads", models.Record{"name": "a"})

	body := `{"update":[{"id":` + itoa(ids[0]) + `,"name":"b"},{"id":1,"name":"x"}]}`
	w := serve(t, s, http.MethodPost, "/api/v2/leads", body)
	require.Equal(t, http.StatusOK, w.Code)

	items := decodeItems(t, w)
	require.Len(t, items, 1)
	require.Equal(t, "b", s.Rows("leads")[0]["name"])
}

func TestServer_ListPagingAndFilter(t *testing.T) {
	s := New()
	ids := s.Seed("contacts", models.Record{"n": 1}, models.Record{"n": 2}, models.Record{"n": 3})

	w := serve(t, s, http.MethodGet, "/api/v2/contacts?limit_rows=2&limit_offset=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeItems(t, w), 1)

	w = serve(t, s, http.MethodGet, "/api/v2/contacts?limit_offset=3", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = serve(t, s, http.MethodGet, "/api/v2/contacts?id%5B%5D="+itoa(ids[0])+"&id%5B%5D="+itoa(ids[2]), "")
	require.Len(t, decodeItems(t, w), 2)
}

func TestServer_FailNextAndAuth(t *testing.T) {
	s := New(WithLegacyAuth("u", "h"))
	s.FailNext(http.StatusServiceUnavailable)

	w := serve(t, s, http.MethodGet, "/api/v2/contacts?USER_LOGIN=u&USER_HASH=h", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(t, s, http.MethodGet, "/api/v2/contacts?USER_LOGIN=u&USER_HASH=bad", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(t, s, http.MethodGet, "/api/v2/contacts?USER_LOGIN=u&USER_HASH=h", "")
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestServer_RejectsEmptyBatch(t *testing.T) {
	s := New()
	w := serve(t, s, http.MethodPost, "/api/v2/leads", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
