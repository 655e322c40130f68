package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int           `env:"TEST_CFG_PORT" envDefault:"8090"`
	Engine   string        `env:"TEST_CFG_ENGINE" envDefault:"memory"`
	Timeout  time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"5s"`
	Brokers  []string      `env:"TEST_CFG_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Verbose  bool          `env:"TEST_CFG_VERBOSE" envDefault:"false"`
	LogLevel string        `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "memory", cfg.Engine)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.False(t, cfg.Verbose)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_ENGINE", "elasticsearch")
	t.Setenv("TEST_CFG_TIMEOUT", "250ms")
	t.Setenv("TEST_CFG_BROKERS", "kafka-1:9092,kafka-2:9092")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "elasticsearch", cfg.Engine)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
}

func TestLoad_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_VERBOSE=true\nTEST_CFG_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("TEST_CFG_LOG_LEVEL", "warn")
	t.Cleanup(func() { _ = os.Unsetenv("TEST_CFG_VERBOSE") })

	var cfg testConfig
	require.NoError(t, Load(&cfg, path))

	assert.True(t, cfg.Verbose)
	// the real environment wins over the file
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingDotenvFileIsSkipped(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, 8090, cfg.Port)
}

type requiredConfig struct {
	URL string `env:"TEST_CFG_REQUIRED_URL,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
