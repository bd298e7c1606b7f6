package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	ErrDomainRequired    = errors.New("domain or base_url is required")
	ErrUnsupportedDriver = errors.New("unsupported mirror driver")
)

// Limits overrides the per-service batch limits. Zero keeps the default.
type Limits struct {
	Add    int `mapstructure:"add"`
	Update int `mapstructure:"update"`
	Rows   int `mapstructure:"rows"`
	Max    int `mapstructure:"max"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Mirror selects the local store that receives saved records. An empty
// driver disables mirroring.
type Mirror struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Archive configures the S3 export target. An empty bucket disables export.
type Archive struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	Prefix    string `mapstructure:"prefix"`
}

// Config holds runtime settings for amocli.
type Config struct {
	Domain    string        `mapstructure:"domain"`
	Zone      string        `mapstructure:"zone"`
	BaseURL   string        `mapstructure:"base_url"`
	Login     string        `mapstructure:"login"`
	Hash      string        `mapstructure:"hash"`
	Token     string        `mapstructure:"token"`
	AccountID int64         `mapstructure:"account_id"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Limits    Limits        `mapstructure:"limits"`
	Log       Log           `mapstructure:"log"`
	Mirror    Mirror        `mapstructure:"mirror"`
	Archive   Archive       `mapstructure:"archive"`
	PushURL   string        `mapstructure:"push_url"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	*c = Config{
		Zone:    "ru",
		Timeout: 30 * time.Second,
		Limits:  Limits{Add: 300, Update: 300, Rows: 500},
		Log:     Log{Level: "info", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		Archive: Archive{Region: "us-east-1"},
	}
}

// Validate reports settings that make the client unusable.
func (c *Config) Validate() error {
	if c.Domain == "" && c.BaseURL == "" {
		return ErrDomainRequired
	}
	switch c.Mirror.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Mirror.Driver)
	}
	return nil
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"domain":         "domain",
	"zone":           "zone",
	"base-url":       "base_url",
	"login":          "login",
	"hash":           "hash",
	"token":          "token",
	"account-id":     "account_id",
	"timeout":        "timeout",
	"log-level":      "log.level",
	"log-file":       "log.file",
	"mirror-driver":  "mirror.driver",
	"mirror-dsn":     "mirror.dsn",
	"archive-bucket": "archive.bucket",
	"push-url":       "push_url",
}

// RegisterFlags adds the configuration flags to fs. Flag defaults are left
// empty so unset flags never shadow the file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a JSON or YAML config file")
	fs.String("domain", "", "amoCRM account subdomain")
	fs.String("zone", "", "amoCRM domain zone (ru, com)")
	fs.String("base-url", "", "explicit API base URL, overrides domain and zone")
	fs.String("login", "", "user login for API hash authentication")
	fs.String("hash", "", "user API hash")
	fs.String("token", "", "OAuth access token")
	fs.Int64("account-id", 0, "account id used with hash authentication")
	fs.Duration("timeout", 0, "HTTP request timeout")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-file", "", "write JSON logs to this file as well")
	fs.String("mirror-driver", "", "mirror store driver: sqlite or postgres")
	fs.String("mirror-dsn", "", "mirror store DSN")
	fs.String("archive-bucket", "", "S3 bucket for exports")
	fs.String("push-url", "", "Prometheus Pushgateway URL")
}

func setDefaults(v *viper.Viper) {
	var d Config
	d.LoadDefaults()
	v.SetDefault("domain", d.Domain)
	v.SetDefault("zone", d.Zone)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("login", d.Login)
	v.SetDefault("hash", d.Hash)
	v.SetDefault("token", d.Token)
	v.SetDefault("account_id", d.AccountID)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("limits.add", d.Limits.Add)
	v.SetDefault("limits.update", d.Limits.Update)
	v.SetDefault("limits.rows", d.Limits.Rows)
	v.SetDefault("limits.max", d.Limits.Max)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("mirror.driver", d.Mirror.Driver)
	v.SetDefault("mirror.dsn", d.Mirror.DSN)
	v.SetDefault("archive.bucket", d.Archive.Bucket)
	v.SetDefault("archive.region", d.Archive.Region)
	v.SetDefault("archive.endpoint", d.Archive.Endpoint)
	v.SetDefault("archive.path_style", d.Archive.PathStyle)
	v.SetDefault("archive.prefix", d.Archive.Prefix)
	v.SetDefault("push_url", d.PushURL)
}

// Load builds a Config from defaults, the optional file at path, AMO_*
// environment variables and the explicitly set flags of fs (which may be nil).
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("AMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
