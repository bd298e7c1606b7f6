package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/dmitrijs2005/amoclient/internal/client/archive"
	"github.com/dmitrijs2005/amoclient/internal/client/client"
	"github.com/dmitrijs2005/amoclient/internal/client/config"
	"github.com/dmitrijs2005/amoclient/internal/client/metrics"
	"github.com/dmitrijs2005/amoclient/internal/client/repositories/mirror"
	"github.com/dmitrijs2005/amoclient/internal/client/services"
	"github.com/dmitrijs2005/amoclient/internal/logging"
)

const pushJob = "amocli"

// App holds everything a single command run needs.
type App struct {
	config   *config.Config
	log      logging.Logger
	client   client.Client
	registry *services.Registry
	metrics  *metrics.Prometheus
	mirror   mirror.Repository
	mirrorDB *sql.DB
	archive  *archive.S3Store
}

// NewApp wires the client stack from cfg. stderr receives logs and prompts.
func NewApp(ctx context.Context, cfg *config.Config, stderr io.Writer, archiveOpts ...archive.Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, commandError("invalid configuration", err)
	}

	a := &App{config: cfg, log: newLogger(cfg, stderr)}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = client.BaseURLFor(cfg.Domain, cfg.Zone)
	}
	creds, err := a.credentials(baseURL, stderr)
	if err != nil {
		return nil, err
	}
	c, err := client.NewHTTPClient(baseURL, creds, client.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, commandError("cannot create client", err)
	}
	a.client = c

	if a.metrics, err = metrics.NewPrometheus(); err != nil {
		a.Close(ctx)
		return nil, err
	}

	opts := []services.Option{
		services.WithLogger(a.log),
		services.WithMetrics(a.metrics),
		services.WithLimits(services.Limits{
			Add:    cfg.Limits.Add,
			Update: cfg.Limits.Update,
			Rows:   cfg.Limits.Rows,
			Max:    cfg.Limits.Max,
		}),
	}

	if cfg.Mirror.Driver != "" {
		repo, db, err := mirror.Open(ctx, cfg.Mirror.Driver, cfg.Mirror.DSN)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("open mirror: %w", err)
		}
		a.mirror, a.mirrorDB = repo, db
		opts = append(opts, services.WithMirror(repo))
	}
	a.registry = services.NewRegistry(opts...)

	if cfg.Archive.Bucket != "" {
		store, err := archive.New(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			PathStyle: cfg.Archive.PathStyle,
			Prefix:    cfg.Archive.Prefix,
		}, archiveOpts...)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.archive = store
	}

	a.log.Debug(ctx, "app ready", "base_url", baseURL, "account", c.Account().Key())
	return a, nil
}

func newLogger(cfg *config.Config, stderr io.Writer) logging.Logger {
	if cfg.Log.File == "" {
		return logging.NewTextLogger(stderr, cfg.Log.Level)
	}
	return logging.NewFileLogger("amocli", logging.FileConfig{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, stderr)
}

// credentials prefers an OAuth token and falls back to login and API hash,
// prompting for the hash when it is not configured.
func (a *App) credentials(baseURL string, stderr io.Writer) (client.Credentials, error) {
	domain := a.config.Domain
	if domain == "" {
		if u, err := url.Parse(baseURL); err == nil {
			domain = u.Hostname()
		}
	}

	if a.config.Token != "" {
		return client.OAuthCredentials{Domain: domain, AccessToken: a.config.Token}, nil
	}
	if a.config.Login == "" {
		return nil, commandError("no credentials", errors.New("set token, or login and hash"))
	}

	hash := a.config.Hash
	if hash == "" {
		var err error
		if hash, err = promptHash(stderr, a.config.Login); err != nil {
			return nil, commandError("cannot read API hash", err)
		}
	}
	return client.LegacyCredentials{
		Domain:    domain,
		AccountID: a.config.AccountID,
		Login:     a.config.Login,
		Hash:      hash,
	}, nil
}

// Service returns the registry service for entity.
func (a *App) Service(entity string) (*services.Service, error) {
	svc, err := a.registry.Set(entity, a.client)
	if err != nil {
		return nil, commandError("unknown entity "+entity, err)
	}
	return svc, nil
}

// Close pushes metrics and releases every resource. It is safe to call on a
// partially built App.
func (a *App) Close(ctx context.Context) {
	if a.metrics != nil && a.config.PushURL != "" {
		if err := a.metrics.Push(ctx, a.config.PushURL, pushJob); err != nil {
			a.log.Warn(ctx, "metrics push failed", "error", err)
		}
	}
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.mirrorDB != nil {
		if err := a.mirrorDB.Close(); err != nil {
			a.log.Warn(ctx, "mirror close failed", "error", err)
		}
	}
	if z, ok := a.log.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
}
