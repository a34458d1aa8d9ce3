package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  driver: sqlite
  dsn: ":memory:"
llm:
  model: test-model
  timeout: 5s
`), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	// defaults survive
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "oblivionai", cfg.Assistant.Username)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OBLIVION_SERVER_PORT", "7070")
	t.Setenv("OBLIVION_REDIS_ADDR", "localhost:6380")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.Database.Driver = "mysql"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Storage.Backend = "firebase"
	bad.Storage.FirebaseBucket = ""
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Server.Mode = "release"
	bad.JWT.Secret = ""
	assert.Error(t, bad.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateNormalizesAssistantWallet(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Assistant.Wallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", cfg.Assistant.Wallet)

	cfg.Assistant.Wallet = "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	assert.Error(t, cfg.Validate(), "bad checksum")

	cfg.Assistant.Wallet = "oblivionai"
	assert.Error(t, cfg.Validate())
}
