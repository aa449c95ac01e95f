package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent playbook configuration stored as
// config.toml in the .playbook/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	Index     IndexConfig     `toml:"index"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Curator   CuratorConfig   `toml:"curator"`
	Retrieval RetrievalConfig `toml:"retrieval"`
}

// StorageConfig holds bullet store settings.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// IndexConfig holds similarity index settings.
type IndexConfig struct {
	// Provider selects the index backend: "linear" or "sqlitevec".
	Provider string `toml:"provider,omitempty"`

	// Path is the sqlite-vec database path. Ignored by the linear backend.
	Path string `toml:"path,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedder: "ollama", "openai", or "hash".
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// CuratorConfig holds merge and grow-and-refine settings.
type CuratorConfig struct {
	// DedupThreshold is the cosine similarity at or above which an addition
	// reinforces an existing bullet instead of inserting a new one.
	DedupThreshold float64 `toml:"dedup_threshold,omitempty"`

	// CrossKindDedup compares additions against all kinds, not just their
	// own, when looking for near-duplicates.
	CrossKindDedup bool `toml:"cross_kind_dedup,omitempty"`

	// RefineMode selects the grow-and-refine policy: "proactive" or "lazy".
	RefineMode string `toml:"refine_mode,omitempty"`

	// LazyWindow is the active-bullet count the lazy policy prunes down to.
	LazyWindow int `toml:"lazy_window,omitempty"`

	// GracePeriod protects freshly created bullets from pruning,
	// e.g. "10m". time.ParseDuration syntax.
	GracePeriod string `toml:"grace_period,omitempty"`

	// HarmfulMargin is how far harmful_count may exceed helpful_count
	// before the proactive policy deactivates a bullet.
	HarmfulMargin int `toml:"harmful_margin,omitempty"`

	// Retention is how long deactivated bullets are kept before Compact
	// hard-deletes them, e.g. "720h".
	Retention string `toml:"retention,omitempty"`
}

// RetrievalConfig holds hybrid scoring settings.
type RetrievalConfig struct {
	TopK int `toml:"top_k,omitempty"`

	// WSim, WUtil, and WFresh weight the similarity, utility, and freshness
	// terms. They are normalized to sum to 1 at scoring time, so any
	// non-negative values are accepted.
	WSim   float64 `toml:"w_sim,omitempty"`
	WUtil  float64 `toml:"w_util,omitempty"`
	WFresh float64 `toml:"w_fresh,omitempty"`

	// FreshnessHalfLife is the exponential-decay half-life for the
	// freshness term, e.g. "168h".
	FreshnessHalfLife string `toml:"freshness_half_life,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"index.provider": {
		get: func(c *Config) string { return c.Index.Provider },
		set: func(c *Config, v string) error { c.Index.Provider = v; return nil },
	},
	"index.path": {
		get: func(c *Config) string { return c.Index.Path },
		set: func(c *Config, v string) error { c.Index.Path = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"curator.dedup_threshold": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Curator.DedupThreshold, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for curator.dedup_threshold: %w", err)
			}
			c.Curator.DedupThreshold = f
			return nil
		},
	},
	"curator.cross_kind_dedup": {
		get: func(c *Config) string { return strconv.FormatBool(c.Curator.CrossKindDedup) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for curator.cross_kind_dedup: %w", err)
			}
			c.Curator.CrossKindDedup = b
			return nil
		},
	},
	"curator.refine_mode": {
		get: func(c *Config) string { return c.Curator.RefineMode },
		set: func(c *Config, v string) error { c.Curator.RefineMode = v; return nil },
	},
	"curator.lazy_window": {
		get: func(c *Config) string { return strconv.Itoa(c.Curator.LazyWindow) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for curator.lazy_window: %w", err)
			}
			c.Curator.LazyWindow = n
			return nil
		},
	},
	"curator.grace_period": {
		get: func(c *Config) string { return c.Curator.GracePeriod },
		set: func(c *Config, v string) error { c.Curator.GracePeriod = v; return nil },
	},
	"curator.harmful_margin": {
		get: func(c *Config) string { return strconv.Itoa(c.Curator.HarmfulMargin) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for curator.harmful_margin: %w", err)
			}
			c.Curator.HarmfulMargin = n
			return nil
		},
	},
	"curator.retention": {
		get: func(c *Config) string { return c.Curator.Retention },
		set: func(c *Config, v string) error { c.Curator.Retention = v; return nil },
	},
	"retrieval.top_k": {
		get: func(c *Config) string { return strconv.Itoa(c.Retrieval.TopK) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.top_k: %w", err)
			}
			c.Retrieval.TopK = n
			return nil
		},
	},
	"retrieval.w_sim": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Retrieval.WSim, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.w_sim: %w", err)
			}
			c.Retrieval.WSim = f
			return nil
		},
	},
	"retrieval.w_util": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Retrieval.WUtil, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.w_util: %w", err)
			}
			c.Retrieval.WUtil = f
			return nil
		},
	},
	"retrieval.w_fresh": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Retrieval.WFresh, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.w_fresh: %w", err)
			}
			c.Retrieval.WFresh = f
			return nil
		},
	},
	"retrieval.freshness_half_life": {
		get: func(c *Config) string { return c.Retrieval.FreshnessHalfLife },
		set: func(c *Config, v string) error { c.Retrieval.FreshnessHalfLife = v; return nil },
	},
}
