package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadReadsYAMLAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
database:
  dsn: "file:test.db"
jwt:
  secret: "s3cret"
  expiry: 2h
payment:
  currency: usd
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "USD", cfg.Payment.Currency)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Checkout.SweepInterval)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: file-secret\ndatabase:\n  dsn: file.db\n")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost/coachline")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, "postgres://u:p@localhost/coachline", cfg.Database.DSN)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "only-env")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "only-env", cfg.JWT.Secret)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  addr: \":1\"\n"))
	assert.Error(t, err, "missing jwt secret")

	_, err = Load(writeConfig(t, "jwt:\n  secret: x\nstorage:\n  driver: s3\n"))
	assert.Error(t, err, "s3 without bucket")

	_, err = Load(writeConfig(t, "jwt:\n  secret: x\nstorage:\n  driver: ftp\n"))
	assert.Error(t, err)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, DefaultConfigPath, ResolveConfigPath(""))
	t.Setenv("CONFIG_PATH", "/etc/coachline.yaml")
	assert.Equal(t, "/etc/coachline.yaml", ResolveConfigPath(""))
	assert.Equal(t, "flag.yaml", ResolveConfigPath("flag.yaml"))
}
