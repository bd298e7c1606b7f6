// Package fakecrm is an in-memory amoCRM v2 API used by tests and local runs.
//
// It accepts the same list and batch requests as the real API, assigns ids
// and query hashes on add, and can be told to omit specific rows from batch
// responses or to fail the next request with a status code.
package fakecrm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/dmitrijs2005/amoclient/internal/common"
	"github.com/dmitrijs2005/amoclient/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Call is a request observed by the server.
type Call struct {
	Method string
	Entity string
	Query  map[string][]string
	Op     string
	Rows   []models.Record
}

// Server is a fake CRM backed by memory.
type Server struct {
	mu       sync.Mutex
	engine   *gin.Engine
	ts       *httptest.Server
	log      logging.Logger
	login    string
	hash     string
	token    string
	now      func() time.Time
	nextID   int64
	entities map[string][]models.Record
	drop     map[string]struct{}
	failNext []int
	calls    []Call
}

// Option configures a Server.
type Option func(*Server)

// WithLegacyAuth requires USER_LOGIN/USER_HASH on every request.
func WithLegacyAuth(login, hash string) Option {
	return func(s *Server) { s.login, s.hash = login, hash }
}

// WithBearer requires an Authorization: Bearer token on every request.
func WithBearer(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger sets the access logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithClock overrides the clock used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds the routes. Call Start to listen on a loopback port, or use
// Handler directly.
func New(opts ...Option) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		engine:   gin.New(),
		log:      logging.NewNop(),
		now:      time.Now,
		nextID:   1000,
		entities: make(map[string][]models.Record),
		drop:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery(), s.accessLog(), s.authorize())
	api := s.engine.Group(strings.TrimSuffix(common.APIPathPrefix, "/"))
	api.GET("/:entity", s.list)
	api.POST("/:entity", s.batch)
	return s
}

// Start listens on a loopback port and returns the base URL.
func (s *Server) Start() string {
	s.ts = httptest.NewServer(s.engine)
	return s.ts.URL
}

// URL returns the base URL of a started server.
func (s *Server) URL() string {
	if s.ts == nil {
		return ""
	}
	return s.ts.URL
}

// Close stops a started server.
func (s *Server) Close() {
	if s.ts != nil {
		s.ts.Close()
	}
}

// Handler exposes the gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Drop makes batch responses omit the row correlated by key, which is
// either a request_id (add) or a decimal id (update).
func (s *Server) Drop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop[key] = struct{}{}
}

// FailNext makes the next request answer with status.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, status)
}

// Calls returns the requests observed so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Seed stores rows for entity, assigning ids to rows that lack one.
func (s *Server) Seed(entity string, rows ...models.Record) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		row := r.Clone()
		id, ok := row.Int64(models.FieldID)
		if !ok {
			s.nextID++
			id = s.nextID
		}
		row[models.FieldID] = id
		if _, ok := row[models.FieldQueryHash]; !ok {
			row[models.FieldQueryHash] = uuid.NewString()
		}
		s.entities[entity] = append(s.entities[entity], row)
		ids = append(ids, id)
	}
	return ids
}

// Rows returns a snapshot of the stored rows of entity.
func (s *Server) Rows(entity string) []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Record, 0, len(s.entities[entity]))
	for _, r := range s.entities[entity] {
		out = append(out, r.Clone())
	}
	return out
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug(c.Request.Context(), "fakecrm request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		if len(s.failNext) > 0 {
			status := s.failNext[0]
			s.failNext = s.failNext[1:]
			s.mu.Unlock()
			c.AbortWithStatusJSON(status, gin.H{"response": gin.H{"error": http.StatusText(status)}})
			return
		}
		s.mu.Unlock()

		if s.login != "" {
			if c.Query(common.LegacyLoginParam) != s.login || c.Query(common.LegacyHashParam) != s.hash {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"response": gin.H{"error": "auth failed"}})
				return
			}
		}
		if s.token != "" {
			if c.GetHeader(common.AuthorizationHeaderName) != "Bearer "+s.token {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"response": gin.H{"error": "auth failed"}})
				return
			}
		}
		c.Next()
	}
}

func (s *Server) list(c *gin.Context) {
	entity := c.Param("entity")
	query := c.Request.URL.Query()

	limit := 500
	if v := c.Query("limit_rows"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := c.Query("limit_offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	ids := map[string]struct{}{}
	for _, v := range append(query["id"], query["id[]"]...) {
		ids[v] = struct{}{}
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: http.MethodGet, Entity: entity, Query: query, Op: "list"})
	var matched []models.Record
	for _, r := range s.entities[entity] {
		if len(ids) > 0 {
			id, _ := r.String(models.FieldID)
			if _, ok := ids[id]; !ok {
				continue
			}
		}
		matched = append(matched, r.Clone())
	}
	s.mu.Unlock()

	if offset >= len(matched) {
		c.Status(http.StatusNoContent)
		return
	}
	end := min(offset+limit, len(matched))
	c.JSON(http.StatusOK, embed(matched[offset:end]))
}

func (s *Server) batch(c *gin.Context) {
	entity := c.Param("entity")

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"response": gin.H{"error": err.Error()}})
		return
	}
	var payload map[string][]models.Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"response": gin.H{"error": err.Error()}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var items []models.Record
	switch {
	case payload["add"] != nil:
		s.calls = append(s.calls, Call{Method: http.MethodPost, Entity: entity, Op: "add", Rows: payload["add"]})
		items = s.add(entity, payload["add"])
	case payload["update"] != nil:
		s.calls = append(s.calls, Call{Method: http.MethodPost, Entity: entity, Op: "update", Rows: payload["update"]})
		items = s.update(entity, payload["update"])
	default:
		c.JSON(http.StatusBadRequest, gin.H{"response": gin.H{"error": "empty request"}})
		return
	}
	c.JSON(http.StatusOK, embed(items))
}

func (s *Server) add(entity string, rows []models.Record) []models.Record {
	items := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		row := r.Clone()
		s.nextID++
		row[models.FieldID] = s.nextID
		row[models.FieldQueryHash] = uuid.NewString()
		if _, ok := row["created_at"]; !ok {
			row["created_at"] = s.now().Unix()
		}
		s.entities[entity] = append(s.entities[entity], row)

		rid, _ := row.String(models.FieldRequestID)
		if _, skip := s.drop[rid]; skip {
			continue
		}
		items = append(items, models.Record{
			models.FieldID:        row[models.FieldID],
			models.FieldRequestID: row[models.FieldRequestID],
			models.FieldQueryHash: row[models.FieldQueryHash],
		})
	}
	return items
}

func (s *Server) update(entity string, rows []models.Record) []models.Record {
	items := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		id, ok := r.Int64(models.FieldID)
		if !ok {
			continue
		}
		stored := s.find(entity, id)
		if stored == nil {
			continue
		}
		for k, v := range r {
			if k == models.FieldID {
				continue
			}
			stored[k] = v
		}
		stored[models.FieldQueryHash] = uuid.NewString()

		if _, skip := s.drop[fmt.Sprint(id)]; skip {
			continue
		}
		items = append(items, models.Record{
			models.FieldID:        id,
			models.FieldUpdatedAt: stored[models.FieldUpdatedAt],
			models.FieldQueryHash: stored[models.FieldQueryHash],
		})
	}
	return items
}

func (s *Server) find(entity string, id int64) models.Record {
	for _, r := range s.entities[entity] {
		if got, ok := r.Int64(models.FieldID); ok && got == id {
			return r
		}
	}
	return nil
}

func embed(items []models.Record) gin.H {
	if items == nil {
		items = []models.Record{}
	}
	return gin.H{"_embedded": gin.H{"items": items}}
}
