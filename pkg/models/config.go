package models

import "time"

// Source kinds
const (
	SourceSnowflake = "snowflake"
	SourcePostgres  = "postgres"
)

// Inference strategies
const (
	StrategyUDF      = "udf"
	StrategyRegistry = "registry"
	StrategyHTTP     = "http"
	StrategyLinear   = "linear"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Snowflake   Snowflake   `yaml:"snowflake" mapstructure:"snowflake"`
	Credentials Credentials `yaml:"credentials" mapstructure:"credentials"`
	Source      Source      `yaml:"source" mapstructure:"source"`
	Pipeline    Pipeline    `yaml:"pipeline" mapstructure:"pipeline"`
	Inference   Inference   `yaml:"inference" mapstructure:"inference"`
	Cache       Cache       `yaml:"cache" mapstructure:"cache"`
	Server      Server      `yaml:"server" mapstructure:"server"`
	Logging     Logging     `yaml:"logging" mapstructure:"logging"`
}

type Snowflake struct {
	Account   string        `yaml:"account" mapstructure:"account"`
	Username  string        `yaml:"username" mapstructure:"username"`
	Password  string        `yaml:"password,omitempty" mapstructure:"password"`
	Role      string        `yaml:"role" mapstructure:"role"`
	Warehouse string        `yaml:"warehouse" mapstructure:"warehouse"`
	Database  string        `yaml:"database" mapstructure:"database"`
	Schema    string        `yaml:"schema" mapstructure:"schema"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Credentials controls where connection secrets come from
type Credentials struct {
	AuthFile   string `yaml:"auth_file" mapstructure:"auth_file"`     // JSON file with username/password/account
	UseKeyring bool   `yaml:"use_keyring" mapstructure:"use_keyring"` // Look up the password in the OS keyring
}

// Source describes the historical shift sales table
type Source struct {
	Kind        string `yaml:"kind" mapstructure:"kind"`               // "snowflake" or "postgres"
	Table       string `yaml:"table" mapstructure:"table"`             // Fully qualified shift sales table
	CitiesView  string `yaml:"cities_view" mapstructure:"cities_view"` // View used to list distinct cities
	PostgresDSN string `yaml:"postgres_dsn,omitempty" mapstructure:"postgres_dsn"`
	// Timeout bounds each history query against the postgres source.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Pipeline holds feature preparation settings
type Pipeline struct {
	Partition string `yaml:"partition" mapstructure:"partition"` // "location" or "location_shift"
}

// Inference selects and configures the model invocation strategy
type Inference struct {
	Strategy     string        `yaml:"strategy" mapstructure:"strategy"`
	UDFName      string        `yaml:"udf_name" mapstructure:"udf_name"`
	ModelName    string        `yaml:"model_name" mapstructure:"model_name"`
	ModelVersion string        `yaml:"model_version,omitempty" mapstructure:"model_version"` // Empty means the registry default
	OutputField  string        `yaml:"output_field" mapstructure:"output_field"`
	Endpoint     string        `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retry        bool          `yaml:"retry" mapstructure:"retry"`
	Coefficients []float64     `yaml:"coefficients,omitempty" mapstructure:"coefficients"`
	Intercept    float64       `yaml:"intercept,omitempty" mapstructure:"intercept"`
}

// Cache configures the (city, shift) result cache
type Cache struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend  string        `yaml:"backend" mapstructure:"backend"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxItems int           `yaml:"max_items" mapstructure:"max_items"`
	RedisURL string        `yaml:"redis_url,omitempty" mapstructure:"redis_url"`
}

type Server struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type Logging struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // "development" or "production"
}
