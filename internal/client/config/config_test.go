package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "ru", c.Zone)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, Limits{Add: 300, Update: 300, Rows: 500}, c.Limits)
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(defaults(), cfg))
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "amocli.yaml", `
domain: example
login: admin@example.com
hash: secret
account_id: 7
timeout: 5s
limits:
  add: 50
mirror:
  driver: sqlite
  dsn: /tmp/mirror.db
archive:
  bucket: exports
  path_style: true
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	want := defaults()
	want.Domain = "example"
	want.Login = "admin@example.com"
	want.Hash = "secret"
	want.AccountID = 7
	want.Timeout = 5 * time.Second
	want.Limits.Add = 50
	want.Mirror = Mirror{Driver: "sqlite", DSN: "/tmp/mirror.db"}
	want.Archive.Bucket = "exports"
	want.Archive.PathStyle = true

	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "amocli.json", `{"domain":"acme","zone":"com","token":"jwt"}`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Domain)
	assert.Equal(t, "com", cfg.Zone)
	assert.Equal(t, "jwt", cfg.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "amocli.yaml", "domain: from-file\nlogin: file-login\nzone: com\n")
	t.Setenv("AMO_DOMAIN", "from-env")
	t.Setenv("AMO_LOGIN", "env-login")
	t.Setenv("AMO_MIRROR_DSN", "postgres://env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--domain", "from-flag", "--timeout", "2s"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Domain)
	assert.Equal(t, "env-login", cfg.Login)
	assert.Equal(t, "com", cfg.Zone)
	assert.Equal(t, "postgres://env", cfg.Mirror.DSN)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	path := writeFile(t, "amocli.yaml", "domain: from-file\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Domain)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "domain", mutate: func(c *Config) { c.Domain = "example" }},
		{name: "base url", mutate: func(c *Config) { c.BaseURL = "http://127.0.0.1:8080" }},
		{name: "missing domain", mutate: func(c *Config) {}, wantErr: ErrDomainRequired},
		{name: "postgres mirror", mutate: func(c *Config) { c.Domain = "x"; c.Mirror.Driver = "postgres" }},
		{name: "bad mirror", mutate: func(c *Config) { c.Domain = "x"; c.Mirror.Driver = "mysql" }, wantErr: ErrUnsupportedDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
