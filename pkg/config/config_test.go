package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.ListenAddr)
	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, 1, cfg.IOThreads)
	assert.Equal(t, 500*time.Millisecond, cfg.FeedInterval)
	assert.Equal(t, []string{"META:5"}, cfg.Symbols)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOB_LISTEN_PORT", "9090")
	t.Setenv("LOB_SYMBOLS", "META:5,AAPL:10")
	t.Setenv("LOB_NATS_URL", "nats://localhost:4222")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ListenPort)
	assert.Equal(t, []string{"META:5", "AAPL:10"}, cfg.Symbols)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestSymbolDepths(t *testing.T) {
	cfg := Config{Symbols: []string{"META:5", " AAPL:10 "}}

	parsed, err := cfg.SymbolDepths()
	require.NoError(t, err)
	assert.Equal(t, []SymbolDepth{{"META", 5}, {"AAPL", 10}}, parsed)
}

func TestSymbolDepthsMalformed(t *testing.T) {
	for _, entry := range []string{"META", "META:", ":5", "META:zero", "META:0"} {
		cfg := Config{Symbols: []string{entry}}
		_, err := cfg.SymbolDepths()
		assert.Error(t, err, "entry %q must be rejected", entry)
	}
}

func TestSymbolDepthsEmpty(t *testing.T) {
	cfg := Config{Symbols: []string{"", "  "}}
	_, err := cfg.SymbolDepths()
	assert.Error(t, err)
}
