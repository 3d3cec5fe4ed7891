package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"shiftcast/internal/testutil"
	"shiftcast/pkg/errors"
	"shiftcast/pkg/models"
)

func isolateConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvEncryptionKey, "test-passphrase")
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfig(t)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, "location", cfg.Pipeline.Partition)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, models.StrategyUDF, cfg.Inference.Strategy)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := isolateConfig(t)
	helper := testutil.NewTestHelper(t)
	helper.WriteFile(filepath.Dir(path), filepath.Base(path), `
snowflake:
  account: xy12345
  username: analyst
  warehouse: small_wh
pipeline:
  partition: location_shift
cache:
  backend: redis
  redis_url: redis://localhost:6379/0
  ttl: 2m
`)
	helper.MockEnv("SHIFTCAST_SNOWFLAKE_PASSWORD", "from-env")
	helper.MockEnv("SHIFTCAST_CACHE_TTL", "30s")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "xy12345", cfg.Snowflake.Account)
	assert.Equal(t, "small_wh", cfg.Snowflake.Warehouse)
	assert.Equal(t, "analytics", cfg.Snowflake.Schema, "unset keys keep defaults")
	assert.Equal(t, "from-env", cfg.Snowflake.Password)
	assert.Equal(t, "location_shift", cfg.Pipeline.Partition)
	assert.Equal(t, models.CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL, "environment wins over the file")
}

func TestLoad_InvalidFile(t *testing.T) {
	path := isolateConfig(t)
	require.NoError(t, os.WriteFile(path, []byte("snowflake: [unclosed"), 0600))

	_, err := Load(viper.New())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestLoad_RejectsBadPartition(t *testing.T) {
	isolateConfig(t)
	t.Setenv("SHIFTCAST_PIPELINE_PARTITION", "city")

	_, err := Load(viper.New())
	require.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := isolateConfig(t)

	cfg := Defaults()
	cfg.Snowflake.Account = "xy12345"
	cfg.Snowflake.Username = "analyst"
	cfg.Snowflake.Password = "hunter2"
	cfg.Inference.Strategy = models.StrategyHTTP
	cfg.Inference.Endpoint = "http://localhost:8000/predict"

	require.NoError(t, Save(cfg))
	assert.True(t, Exists())
	assert.Equal(t, "hunter2", cfg.Snowflake.Password, "Save must not mutate its argument")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
	assert.Contains(t, string(raw), "ENC[")

	loaded, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestGetConfigFile(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	home := testutil.NewTestHelper(t).IsolateHome()
	assert.Equal(t, filepath.Join(home, ".shiftcast", "config.yaml"), GetConfigFile())

	custom := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfigFile, custom)
	assert.Equal(t, custom, GetConfigFile())
	assert.Equal(t, filepath.Dir(custom), GetConfigPath())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Config)
		field  string
	}{
		{name: "defaults are valid"},
		{name: "postgres needs dsn", mutate: func(c *models.Config) { c.Source.Kind = models.SourcePostgres }, field: "source.postgres_dsn"},
		{name: "unknown source", mutate: func(c *models.Config) { c.Source.Kind = "csv" }, field: "source.kind"},
		{name: "http needs endpoint", mutate: func(c *models.Config) { c.Inference.Strategy = models.StrategyHTTP }, field: "inference.endpoint"},
		{name: "unknown strategy", mutate: func(c *models.Config) { c.Inference.Strategy = "oracle" }, field: "inference.strategy"},
		{name: "redis needs url", mutate: func(c *models.Config) { c.Cache.Backend = models.CacheRedis }, field: "cache.redis_url"},
		{name: "unknown backend", mutate: func(c *models.Config) { c.Cache.Backend = "memcached" }, field: "cache.backend"},
		{name: "negative ttl", mutate: func(c *models.Config) { c.Cache.TTL = -time.Second }, field: "cache.ttl"},
		{
			name: "disabled cache skips backend checks",
			mutate: func(c *models.Config) {
				c.Cache.Enabled = false
				c.Cache.Backend = "memcached"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *errors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Context["field"])
		})
	}
}

func TestPasswordEncryption(t *testing.T) {
	t.Setenv(EnvEncryptionKey, "first-key")

	encrypted, err := EncryptPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(encrypted))

	again, err := EncryptPassword(encrypted)
	require.NoError(t, err)
	assert.Equal(t, encrypted, again, "already encrypted values are left alone")

	plain, err := DecryptPassword(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)

	passthrough, err := DecryptPassword("not-encrypted")
	require.NoError(t, err)
	assert.Equal(t, "not-encrypted", passthrough)

	empty, err := EncryptPassword("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	t.Setenv(EnvEncryptionKey, "second-key")
	_, err = DecryptPassword(encrypted)
	assert.Error(t, err)

	cfg := Defaults()
	cfg.Snowflake.Password = encrypted
	err = DecryptConfigPasswords(cfg)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEncryptionFailed, errors.GetErrorCode(err))
}

func TestChain_MergesInOrder(t *testing.T) {
	chain := Chain{
		StaticProvider{Creds: Credentials{Username: "from-config"}},
		StaticProvider{},
		StaticProvider{Creds: Credentials{Account: "acct", Username: "ignored", Password: "pw"}},
	}

	creds, err := chain.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credentials{Account: "acct", Username: "from-config", Password: "pw"}, creds)
}

func TestChain_Incomplete(t *testing.T) {
	chain := Chain{StaticProvider{Creds: Credentials{Account: "acct"}}}

	_, err := chain.Credentials(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCredentialMissing, errors.GetErrorCode(err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"username", "password"}, appErr.Context["missing"])
}

func TestAuthFileProvider(t *testing.T) {
	dir := t.TempDir()
	helper := testutil.NewTestHelper(t)
	helper.WriteFile(dir, "auth.json", `{"username": "analyst", "password": "pw", "account": "xy12345"}`)
	helper.WriteFile(dir, "broken.json", `{"username": `)

	creds, err := AuthFileProvider{Path: filepath.Join(dir, "auth.json")}.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credentials{Account: "xy12345", Username: "analyst", Password: "pw"}, creds)

	_, err = AuthFileProvider{Path: filepath.Join(dir, "missing.json")}.Credentials(context.Background())
	assert.ErrorIs(t, err, errNotProvided)

	_, err = AuthFileProvider{Path: filepath.Join(dir, "broken.json")}.Credentials(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestKeyringProvider(t *testing.T) {
	keyring.MockInit()

	p := KeyringProvider{User: "analyst"}
	_, err := p.Credentials(context.Background())
	assert.ErrorIs(t, err, errNotProvided)

	require.NoError(t, p.StorePassword("analyst", "from-keyring"))
	creds, err := p.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "analyst", Password: "from-keyring"}, creds)
}

func TestResolveCredentials(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, KeyringProvider{}.StorePassword("analyst", "kr-pw"))

	dir := t.TempDir()
	testutil.NewTestHelper(t).WriteFile(dir, "auth.json", `{"username": "analyst", "account": "xy12345"}`)

	cfg := Defaults()
	cfg.Credentials.AuthFile = filepath.Join(dir, "auth.json")
	cfg.Credentials.UseKeyring = true

	require.NoError(t, ResolveCredentials(context.Background(), cfg))
	assert.Equal(t, "xy12345", cfg.Snowflake.Account)
	assert.Equal(t, "analyst", cfg.Snowflake.Username)
	assert.Equal(t, "kr-pw", cfg.Snowflake.Password)
}

func TestResolveCredentials_ConfigWins(t *testing.T) {
	dir := t.TempDir()
	testutil.NewTestHelper(t).WriteFile(dir, "auth.json", `{"username": "file-user", "password": "file-pw", "account": "file-acct"}`)

	cfg := Defaults()
	cfg.Credentials.AuthFile = filepath.Join(dir, "auth.json")
	cfg.Snowflake.Password = "env-pw"

	require.NoError(t, ResolveCredentials(context.Background(), cfg))
	assert.Equal(t, "env-pw", cfg.Snowflake.Password)
	assert.Equal(t, "file-user", cfg.Snowflake.Username)
	assert.Equal(t, "file-acct", cfg.Snowflake.Account)
}
