// Package config implements the repository's TOML-backed settings
// file: storage, garbage collection, search, and session sections,
// each independently defaulted the way an absent or partial file is
// expected to behave.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full repository configuration, stored as
// <root>/config.toml.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	GC        GCConfig        `toml:"gc"`
	Search    SearchConfig    `toml:"search"`
	Session   SessionConfig   `toml:"session"`
	Index     IndexConfig     `toml:"index"`
	Ingestion IngestionConfig `toml:"ingestion"`
	Retrieval RetrievalConfig `toml:"retrieval"`
}

// StorageConfig controls the object store's at-rest compression and
// sharding.
type StorageConfig struct {
	// CompressionLevel is the zstd level applied to every stored
	// envelope (1-22). Higher compresses better and runs slower.
	CompressionLevel int `toml:"compression_level"`
	// ShardPrefixBytes is the width, in bytes, of the fan-out directory
	// prefix under objects/. Changing it requires a full rebuild of the
	// on-disk layout; the store in this repository always shards on
	// one byte, so this field is read back but not yet enforced by
	// pkg/object.Store (see DESIGN.md).
	ShardPrefixBytes int `toml:"shard_prefix_bytes"`
}

// IngestionConfig bounds what one observation step may write.
type IngestionConfig struct {
	IgnoreGlobs     []string `toml:"ignore_globs"`
	MaxFilesPerStep int      `toml:"max_files_per_step"`
	MaxBytesPerStep int64    `toml:"max_bytes_per_step"`
	MaxEdgesPerStep int      `toml:"max_edges_per_step"`
}

// RetrievalConfig holds the defaults build_pack falls back to when a
// caller doesn't override them explicitly.
type RetrievalConfig struct {
	DefaultBudget    int  `toml:"default_budget"`
	DefaultDepth     int  `toml:"default_depth"`
	IncludeNarrative bool `toml:"include_narrative"`
}

// GCConfig controls garbage collection defaults.
type GCConfig struct {
	// GracePeriodDays is how long an unreferenced object survives
	// before GC deletes it.
	GracePeriodDays int `toml:"grace_period_days"`
	// AutoGC is read from and written back to the config file; no
	// operation consults it, so GC runs only when called explicitly.
	AutoGC bool `toml:"auto_gc"`
}

// SearchConfig is the [search] section of the config file. It is read
// and written back; the retrieval pipeline does not consult it.
type SearchConfig struct {
	Enabled       bool `toml:"enabled"`
	MaxResults    int  `toml:"max_results"`
	SnippetLength int  `toml:"snippet_length"`
}

// SessionConfig controls session lifecycle defaults.
type SessionConfig struct {
	// StaleSessionThresholdHours is the ask threshold StaleSession
	// derives, expressed in hours, for a friendlier config file.
	StaleSessionThresholdHours int `toml:"stale_session_threshold_hours"`
	// AutoFlushIntervalSecs is read from and written back to the config
	// file; no operation consults it, and observations stay buffered
	// until an explicit flush.
	AutoFlushIntervalSecs int64 `toml:"auto_flush_interval_secs"`
	// AskThresholdSecs and AutoCompactThresholdSecs override the
	// derived hour-granularity thresholds when nonzero, matching the
	// raw `session.ask_threshold` / `session.auto_compact_threshold`
	// configuration keys.
	AskThresholdSecs         int64 `toml:"ask_threshold"`
	AutoCompactThresholdSecs int64 `toml:"auto_compact_threshold"`
}

// IndexConfig selects and tunes the embedded key-value backend.
type IndexConfig struct {
	// Backend names the embedded KV implementation. Only "badger" is
	// implemented; the field exists so a future backend swap doesn't
	// need a config format change.
	Backend string `toml:"backend"`
}

// StaleSession returns the ask/auto-compact thresholds in seconds:
// the ask threshold derived from SessionConfig's hour-granularity
// field and a fixed 7-day auto-compact default, each replaced by
// AskThresholdSecs or AutoCompactThresholdSecs when that is nonzero.
func (c Config) StaleSession() (askSecs, autoCompactSecs int64) {
	askSecs = int64(c.Session.StaleSessionThresholdHours) * 3600
	autoCompactSecs = 7 * 24 * 60 * 60
	if c.Session.AskThresholdSecs > 0 {
		askSecs = c.Session.AskThresholdSecs
	}
	if c.Session.AutoCompactThresholdSecs > 0 {
		autoCompactSecs = c.Session.AutoCompactThresholdSecs
	}
	return askSecs, autoCompactSecs
}

// Default returns the configuration a fresh repository is initialized
// with.
func Default() Config {
	return Config{
		Storage:   StorageConfig{CompressionLevel: 3, ShardPrefixBytes: 1},
		GC:        GCConfig{GracePeriodDays: 7, AutoGC: false},
		Search:    SearchConfig{Enabled: true, MaxResults: 20, SnippetLength: 150},
		Session:   SessionConfig{StaleSessionThresholdHours: 24, AutoFlushIntervalSecs: 0},
		Index:     IndexConfig{Backend: "badger"},
		Ingestion: IngestionConfig{MaxFilesPerStep: 200, MaxBytesPerStep: 20 << 20, MaxEdgesPerStep: 500},
		Retrieval: RetrievalConfig{DefaultBudget: 8000, DefaultDepth: 2, IncludeNarrative: true},
	}
}

func path(root string) string {
	return filepath.Join(root, "config.toml")
}

// Load reads <root>/config.toml. A missing file returns Default().
func Load(root string) (Config, error) {
	p := path(root)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", p, err)
	}
	cfg := Default()
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", p, err)
	}
	return cfg, nil
}

// Save atomically writes cfg to <root>/config.toml.
func Save(root string, cfg Config) error {
	p := path(root)
	tmp, err := os.CreateTemp(root, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	enc := toml.NewEncoder(tmp)
	if err := enc.Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("config: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("config: close: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}
