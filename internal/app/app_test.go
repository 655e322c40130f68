package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcodecheck/addresscleaner/internal/config"
	"github.com/postcodecheck/addresscleaner/internal/engine/breaker"
	"github.com/postcodecheck/addresscleaner/internal/engine/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:            0,
		RequestTimeout:      time.Second,
		ShutdownTimeout:     time.Second,
		CORSOrigins:         []string{"*"},
		RateLimitRPS:        10,
		RateLimitBurst:      10,
		SearchEngine:        config.EngineMemory,
		SearchLimit:         20,
		SearchTimeout:       time.Second,
		BatchConcurrency:    2,
		MaxBatchSize:        10,
		BreakerEnabled:      true,
		BreakerMaxRequests:  1,
		BreakerInterval:     time.Minute,
		BreakerTimeout:      time.Second,
		BreakerFailureRatio: 0.5,
		BreakerMinRequests:  5,
		ReferenceSource:     config.SourceNone,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSearchEngine(t *testing.T) {
	cfg := testConfig()

	eng, err := NewSearchEngine(cfg, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &breaker.Engine{}, eng.SearchEngine)
	assert.Nil(t, eng.Ping)

	cfg.BreakerEnabled = false
	eng, err = NewSearchEngine(cfg, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &memory.Engine{}, eng.SearchEngine)
}

func TestNewNormalizer(t *testing.T) {
	cfg := testConfig()

	n, err := NewNormalizer(cfg, discardLogger())
	require.NoError(t, err)
	assert.NotNil(t, n)

	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Utrecht:\n  - utreg\n"), 0o600))
	cfg.SynonymsFile = path
	n, err = NewNormalizer(cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "Utrecht", n.CanonicalizeCityName("Utreg"))

	cfg.SynonymsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewNormalizer(cfg, discardLogger())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewApp_LoadsCSVCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "references.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"postcode;city;street;numbertype;minnumber;maxnumber\n"+
			"6711AA;Ede;Kerkweg;odd;1;99\n"+
			"1234AB;Amsterdam;Dorpstraat;even;2;40\n",
	), 0o600))

	cfg := testConfig()
	cfg.ReferenceSource = config.SourceCSV
	cfg.ReferenceCSV = path

	a, err := NewApp(cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	require.NotNil(t, a.source)
	assert.Empty(t, a.consumers)

	n, err := a.references.Import(context.Background(), a.source)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := a.references.Suggest(context.Background(), "kerk", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kerkweg"}, names)
}

func TestResolverConfig(t *testing.T) {
	cfg := testConfig()
	rc := ResolverConfig(cfg)
	assert.Equal(t, 20, rc.SearchLimit)
	assert.Equal(t, time.Second, rc.SearchTimeout)
	assert.Equal(t, 2, rc.BatchConcurrency)
}
