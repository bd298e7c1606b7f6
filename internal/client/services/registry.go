package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/client"
	"github.com/dmitrijs2005/amoclient/internal/client/metrics"
	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/dmitrijs2005/amoclient/internal/logging"
)

// Mirror receives the records of saved models after each reconciled chunk.
type Mirror interface {
	Upsert(ctx context.Context, account, entity string, rows []models.Record) error
}

type options struct {
	log     logging.Logger
	metrics metrics.Recorder
	mirror  Mirror
	now     func() time.Time
	limits  Limits
}

// Option configures a Registry and the services it creates.
type Option func(*options)

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

func WithMirror(m Mirror) Option {
	return func(o *options) { o.mirror = m }
}

// WithClock overrides the clock used to stamp updated_at on Save.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLimits overrides the default limits of every service.
func WithLimits(l Limits) Option {
	return func(o *options) { o.limits = l.orElse(DefaultLimits()) }
}

// Registry owns one Service per (name, account) pair.
type Registry struct {
	mu       sync.Mutex
	opts     options
	defs     map[string]Definition
	services map[string]*Service
}

// NewRegistry returns a registry preloaded with Catalog.
func NewRegistry(opts ...Option) *Registry {
	o := options{
		log:     logging.NewNop(),
		metrics: metrics.Nop{},
		now:     time.Now,
		limits:  DefaultLimits(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		opts:     o,
		defs:     make(map[string]Definition),
		services: make(map[string]*Service),
	}
	for _, d := range Catalog() {
		r.defs[d.Name] = d
	}
	return r
}

// Register adds or replaces a definition. Services already created for the
// name keep the definition they were built with.
func (r *Registry) Register(def Definition) error {
	d, err := def.normalize()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[d.Name] = d
	return nil
}

// Names returns the registered service names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.defs))
	for n := range r.defs {
		out = append(out, n)
	}
	return out
}

func serviceKey(name string, c client.Client) string {
	return name + "-" + c.Account().Key()
}

// Set returns the service for name bound to the account of c, creating it
// on first access.
func (r *Registry) Set(name string, c client.Client) (*Service, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required for service %q", name)
	}
	key := serviceKey(name, c)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.services[key]; ok {
		return s, nil
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	s := newService(def, c, r.opts)
	r.services[key] = s
	return s, nil
}

// Get returns an already created service.
func (r *Registry) Get(name string, c client.Client) (*Service, bool) {
	if c == nil {
		return nil, false
	}
	key := serviceKey(name, c)

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[key]
	return s, ok
}

// Reset drops every service.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = make(map[string]*Service)
}
