package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"shiftcast/internal/common"
	"shiftcast/internal/forecast"
	"shiftcast/pkg/errors"
	"shiftcast/pkg/models"
)

const (
	// EnvConfigFile overrides the config file location.
	EnvConfigFile = "SHIFTCAST_CONFIG"
	// EnvPrefix prefixes every environment override, e.g. SHIFTCAST_SNOWFLAKE_PASSWORD.
	EnvPrefix = "SHIFTCAST"
	// DefaultAuthFile is the credentials file looked up next to the working directory.
	DefaultAuthFile = "data_scientist_auth.json"
)

func GetConfigPath() string {
	if configFile := os.Getenv(EnvConfigFile); configFile != "" {
		return filepath.Dir(configFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".shiftcast")
}

func GetConfigFile() string {
	if configFile := os.Getenv(EnvConfigFile); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// Defaults returns the settings used when neither the file nor the
// environment says otherwise.
func Defaults() *models.Config {
	return &models.Config{
		Snowflake: models.Snowflake{
			Role:      "accountadmin",
			Warehouse: "tasty_dsci_wh",
			Database:  "frostbyte_tasty_bytes_dev",
			Schema:    "analytics",
			Timeout:   30 * time.Second,
		},
		Credentials: models.Credentials{
			AuthFile: DefaultAuthFile,
		},
		Source: models.Source{
			Kind:       models.SourceSnowflake,
			Table:      "frostbyte_tasty_bytes_dev.analytics.shift_sales",
			CitiesView: "frostbyte_tasty_bytes_dev.analytics.shift_sales_v",
			Timeout:    30 * time.Second,
		},
		Pipeline: models.Pipeline{
			Partition: string(forecast.PartitionLocation),
		},
		Inference: models.Inference{
			Strategy:    models.StrategyUDF,
			UDFName:     "udf_linreg_predict_location_sales",
			OutputField: "output_feature_0",
			Timeout:     60 * time.Second,
			Retry:       true,
		},
		Cache: models.Cache{
			Enabled:  true,
			Backend:  models.CacheMemory,
			TTL:      10 * time.Minute,
			MaxItems: 256,
		},
		Server: models.Server{
			Addr: ":8080",
		},
		Logging: models.Logging{
			Mode: "development",
		},
	}
}

// SetDefaults registers every key on v so that environment overrides apply
// even to keys absent from the file.
func SetDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("snowflake.account", d.Snowflake.Account)
	v.SetDefault("snowflake.username", d.Snowflake.Username)
	v.SetDefault("snowflake.password", d.Snowflake.Password)
	v.SetDefault("snowflake.role", d.Snowflake.Role)
	v.SetDefault("snowflake.warehouse", d.Snowflake.Warehouse)
	v.SetDefault("snowflake.database", d.Snowflake.Database)
	v.SetDefault("snowflake.schema", d.Snowflake.Schema)
	v.SetDefault("snowflake.timeout", d.Snowflake.Timeout)

	v.SetDefault("credentials.auth_file", d.Credentials.AuthFile)
	v.SetDefault("credentials.use_keyring", d.Credentials.UseKeyring)

	v.SetDefault("source.kind", d.Source.Kind)
	v.SetDefault("source.table", d.Source.Table)
	v.SetDefault("source.cities_view", d.Source.CitiesView)
	v.SetDefault("source.postgres_dsn", d.Source.PostgresDSN)
	v.SetDefault("source.timeout", d.Source.Timeout)

	v.SetDefault("pipeline.partition", d.Pipeline.Partition)

	v.SetDefault("inference.strategy", d.Inference.Strategy)
	v.SetDefault("inference.udf_name", d.Inference.UDFName)
	v.SetDefault("inference.model_name", d.Inference.ModelName)
	v.SetDefault("inference.model_version", d.Inference.ModelVersion)
	v.SetDefault("inference.output_field", d.Inference.OutputField)
	v.SetDefault("inference.endpoint", d.Inference.Endpoint)
	v.SetDefault("inference.timeout", d.Inference.Timeout)
	v.SetDefault("inference.retry", d.Inference.Retry)
	v.SetDefault("inference.coefficients", d.Inference.Coefficients)
	v.SetDefault("inference.intercept", d.Inference.Intercept)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.max_items", d.Cache.MaxItems)
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("logging.mode", d.Logging.Mode)
}

// Load reads the config file (if any), applies SHIFTCAST_* environment
// overrides and flag bindings already registered on v, decrypts secrets and
// validates the result. A nil v uses a fresh viper instance.
func Load(v *viper.Viper) (*models.Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := GetConfigFile()
	cleanedPath, err := common.CleanPath(configFile)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("Invalid config file path: %v", err), EnvConfigFile)
	}

	if _, statErr := os.Stat(cleanedPath); statErr == nil {
		v.SetConfigFile(cleanedPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read config file").
				WithContext("path", cleanedPath)
		}
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode config").
			WithContext("path", cleanedPath)
	}

	if err := DecryptConfigPasswords(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and required combinations. Connection secrets
// are checked later, once credential providers have run.
func Validate(cfg *models.Config) error {
	if _, err := forecast.ParsePartition(cfg.Pipeline.Partition); err != nil {
		return err
	}

	switch cfg.Source.Kind {
	case models.SourceSnowflake:
	case models.SourcePostgres:
		if cfg.Source.PostgresDSN == "" {
			return errors.ConfigError("source.postgres_dsn is required when source.kind is postgres", "source.postgres_dsn")
		}
	default:
		return errors.ConfigError(fmt.Sprintf("Unknown source kind %q (want snowflake or postgres)", cfg.Source.Kind), "source.kind")
	}

	switch cfg.Inference.Strategy {
	case models.StrategyUDF, models.StrategyRegistry, models.StrategyLinear:
	case models.StrategyHTTP:
		if cfg.Inference.Endpoint == "" {
			return errors.ConfigError("inference.endpoint is required for the http strategy", "inference.endpoint")
		}
	default:
		return errors.ConfigError(fmt.Sprintf("Unknown inference strategy %q", cfg.Inference.Strategy), "inference.strategy")
	}

	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case models.CacheMemory:
		case models.CacheRedis:
			if cfg.Cache.RedisURL == "" {
				return errors.ConfigError("cache.redis_url is required for the redis backend", "cache.redis_url")
			}
		default:
			return errors.ConfigError(fmt.Sprintf("Unknown cache backend %q", cfg.Cache.Backend), "cache.backend")
		}
		if cfg.Cache.TTL < 0 {
			return errors.ConfigError("cache.ttl must not be negative", "cache.ttl")
		}
	}
	return nil
}

// Save writes the config with owner-only permissions. Plaintext passwords are
// encrypted first.
func Save(config *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *config
	if err := EncryptConfigPasswords(&out); err != nil {
		return err
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigFile(), data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}
