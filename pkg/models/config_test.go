package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigMarshalUnmarshal(t *testing.T) {
	config := Config{
		Snowflake: Snowflake{
			Account:   "xy12345.us-east-1",
			Username:  "data_scientist",
			Role:      "ACCOUNTADMIN",
			Warehouse: "TASTY_DSCI_WH",
			Database:  "FROSTBYTE_TASTY_BYTES_DEV",
			Schema:    "ANALYTICS",
			Timeout:   30 * time.Second,
		},
		Pipeline: Pipeline{Partition: "location"},
		Inference: Inference{
			Strategy:     StrategyLinear,
			Coefficients: []float64{1, 2, 3, 4, 5, 6, 7},
			Intercept:    -12.5,
			Timeout:      10 * time.Second,
		},
		Cache: Cache{Enabled: true, Backend: CacheMemory, TTL: 10 * time.Minute},
	}

	data, err := yaml.Marshal(&config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ttl: 10m0s")

	var unmarshaled Config
	require.NoError(t, yaml.Unmarshal(data, &unmarshaled))

	assert.Equal(t, config, unmarshaled)
}

func TestPasswordOmittedWhenEmpty(t *testing.T) {
	data, err := yaml.Marshal(&Config{Snowflake: Snowflake{Account: "acct"}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
}

func TestDurationStringsDecode(t *testing.T) {
	input := []byte(`
cache:
  enabled: true
  backend: redis
  ttl: 15m
  redis_url: redis://localhost:6379/0
inference:
  strategy: registry
  model_name: SHIFT_SALES_MODEL
  timeout: 5s
`)

	var config Config
	require.NoError(t, yaml.Unmarshal(input, &config))

	assert.Equal(t, 15*time.Minute, config.Cache.TTL)
	assert.Equal(t, CacheRedis, config.Cache.Backend)
	assert.Equal(t, 5*time.Second, config.Inference.Timeout)
	assert.Equal(t, "SHIFT_SALES_MODEL", config.Inference.ModelName)
}
