package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/client"
	"github.com/dmitrijs2005/amoclient/internal/client/metrics"
	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/dmitrijs2005/amoclient/internal/common"
	"github.com/dmitrijs2005/amoclient/internal/logging"
)

// Service exposes one entity collection of one account.
type Service struct {
	def     Definition
	client  client.Client
	account client.Account

	log     logging.Logger
	metrics metrics.Recorder
	mirror  Mirror
	now     func() time.Time

	mu     sync.Mutex
	limits Limits

	listOnce   sync.Once
	addOnce    sync.Once
	updateOnce sync.Once
	list       *ListMethod
	add        *BatchMethod
	update     *BatchMethod
}

func newService(def Definition, c client.Client, o options) *Service {
	account := c.Account()
	return &Service{
		def:     def,
		client:  c,
		account: account,
		log:     o.log.With("service", def.Name, "account", account.Key()),
		metrics: o.metrics,
		mirror:  o.mirror,
		now:     o.now,
		limits:  def.Limits.orElse(o.limits),
	}
}

// Name returns the registry name of the service.
func (s *Service) Name() string { return s.def.Name }

// Definition returns the definition the service was built from.
func (s *Service) Definition() Definition { return s.def }

// Instance returns the underlying transport.
func (s *Service) Instance() client.Client { return s.client }

// Account returns the bound account.
func (s *Service) Account() client.Account { return s.account }

// Limits returns the current limits.
func (s *Service) Limits() Limits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limits
}

// LimitRows sets the page size of list calls.
func (s *Service) LimitRows(n int) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits.Rows = n
	return s
}

// MaxRows caps the total rows fetched by List; 0 removes the cap.
func (s *Service) MaxRows(n int) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits.Max = n
	return s
}

// Create returns a new unsaved model bound to the account.
func (s *Service) Create() *models.ApiModel {
	return models.NewApiModel(s.def.Entity, map[string]any{
		models.FieldAccountID: s.account.ID,
	})
}

// CreateWithID returns a new model with a pre-seeded id. The model is not
// saved until a batch reconciles it.
func (s *Service) CreateWithID(id int64) *models.ApiModel {
	m := s.Create()
	m.SetID(id)
	return m
}

// Method is a memoized entity method proxy.
type Method interface {
	Operation() client.Operation
}

// Method resolves a proxy by operation name.
func (s *Service) Method(name string) (Method, error) {
	op := client.Operation(name)
	if !s.def.Has(op) {
		return nil, fmt.Errorf("%w: %s.%s", ErrInvalidOperation, s.def.Name, name)
	}
	switch op {
	case client.OpList:
		return s.ListMethod(), nil
	case client.OpAdd:
		return s.AddMethod(), nil
	case client.OpUpdate:
		return s.UpdateMethod(), nil
	default:
		return nil, fmt.Errorf("%w: %s.%s", ErrInvalidOperation, s.def.Name, name)
	}
}

// ListMethod returns the list proxy, created once.
func (s *Service) ListMethod() *ListMethod {
	s.listOnce.Do(func() {
		s.list = &ListMethod{svc: s, args: make(map[string]any)}
	})
	return s.list
}

// AddMethod returns the add proxy, created once.
func (s *Service) AddMethod() *BatchMethod {
	s.addOnce.Do(func() {
		s.add = &BatchMethod{svc: s, op: client.OpAdd}
	})
	return s.add
}

// UpdateMethod returns the update proxy, created once.
func (s *Service) UpdateMethod() *BatchMethod {
	s.updateOnce.Do(func() {
		s.update = &BatchMethod{svc: s, op: client.OpUpdate}
	})
	return s.update
}

// Where starts a filtered list call.
func (s *Service) Where(key string, value any) *ListMethod {
	return s.ListMethod().Where(key, value)
}

// List fetches every page up to the MaxRows cap.
func (s *Service) List(ctx context.Context) (*models.Collection[*models.ApiModel], error) {
	return s.ListMethod().RecursiveCall(ctx)
}

// Find returns the model with id or common.ErrorNotFound.
func (s *Service) Find(ctx context.Context, id int64) (*models.ApiModel, error) {
	res, err := s.ListMethod().call(ctx, map[string]any{
		argLimitRows:   1,
		argLimitOffset: 0,
		models.FieldID: id,
	})
	if err != nil {
		return nil, err
	}
	m, ok := res.First()
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", s.def.Entity, id, common.ErrorNotFound)
	}
	return m, nil
}

// FindMany returns the models found for ids; missing ids are skipped.
func (s *Service) FindMany(ctx context.Context, ids []int64) (*models.Collection[*models.ApiModel], error) {
	if len(ids) == 0 {
		return models.NewCollection[*models.ApiModel](), nil
	}
	return s.ListMethod().call(ctx, map[string]any{
		argLimitRows:   len(ids),
		argLimitOffset: 0,
		models.FieldID: ids,
	})
}
