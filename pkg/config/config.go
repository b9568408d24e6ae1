// Package config carries process configuration: defaults, environment
// overrides, and the symbol set registered at startup.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the lobd process configuration. The listen address, port, and
// I/O thread count may be overridden by positional CLI arguments.
type Config struct {
	ListenAddr string `env:"LOB_LISTEN_ADDR" envDefault:"0.0.0.0"`
	ListenPort int    `env:"LOB_LISTEN_PORT" envDefault:"8080"`
	IOThreads  int    `env:"LOB_IO_THREADS" envDefault:"1"`

	LogLevel string `env:"LOB_LOG_LEVEL" envDefault:"info"`

	// Symbols registered at startup as "<symbol>:<depth>" entries.
	Symbols []string `env:"LOB_SYMBOLS" envSeparator:"," envDefault:"META:5"`

	// Feed driver pacing.
	FeedInterval time.Duration `env:"LOB_FEED_INTERVAL" envDefault:"500ms"`

	// SnapshotRefresh > 0 re-emits snapshots to subscribers periodically.
	SnapshotRefresh time.Duration `env:"LOB_SNAPSHOT_REFRESH"`

	// NATSURL enables trade-tick republication when set.
	NATSURL string `env:"LOB_NATS_URL"`
}

// SymbolDepth is one parsed symbol registration.
type SymbolDepth struct {
	Symbol string
	Depth  int
}

// Load reads the environment over built-in defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// SymbolDepths parses the Symbols entries. The depth suffix is the number
// of levels per side disseminated for that symbol.
func (c Config) SymbolDepths() ([]SymbolDepth, error) {
	out := make([]SymbolDepth, 0, len(c.Symbols))
	for _, entry := range c.Symbols {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		i := strings.LastIndexByte(entry, ':')
		if i <= 0 || i == len(entry)-1 {
			return nil, fmt.Errorf("symbol entry %q: want <symbol>:<depth>", entry)
		}
		depth, err := strconv.Atoi(entry[i+1:])
		if err != nil || depth < 1 {
			return nil, fmt.Errorf("symbol entry %q: bad depth", entry)
		}
		out = append(out, SymbolDepth{Symbol: entry[:i], Depth: depth})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}
	return out, nil
}
