package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/playbook/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the PLAYBOOK_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the command)
//  2. Environment variables (PLAYBOOK_CURATOR_REFINE_MODE, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: PLAYBOOK_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("PLAYBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the resolved viper chain
// (flag > env > config file > default).
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			SQLitePath: v.GetString("storage.sqlite_path"),
		},
		Index: IndexConfig{
			Provider: v.GetString("index.provider"),
			Path:     v.GetString("index.path"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Curator: CuratorConfig{
			DedupThreshold: v.GetFloat64("curator.dedup_threshold"),
			CrossKindDedup: v.GetBool("curator.cross_kind_dedup"),
			RefineMode:     v.GetString("curator.refine_mode"),
			LazyWindow:     v.GetInt("curator.lazy_window"),
			GracePeriod:    v.GetString("curator.grace_period"),
			HarmfulMargin:  v.GetInt("curator.harmful_margin"),
			Retention:      v.GetString("curator.retention"),
		},
		Retrieval: RetrievalConfig{
			TopK:              v.GetInt("retrieval.top_k"),
			WSim:              v.GetFloat64("retrieval.w_sim"),
			WUtil:             v.GetFloat64("retrieval.w_util"),
			WFresh:            v.GetFloat64("retrieval.w_fresh"),
			FreshnessHalfLife: v.GetString("retrieval.freshness_half_life"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)

	// Index
	v.SetDefault("index.provider", d.Index.Provider)
	v.SetDefault("index.path", d.Index.Path)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Curator
	v.SetDefault("curator.dedup_threshold", d.Curator.DedupThreshold)
	v.SetDefault("curator.cross_kind_dedup", d.Curator.CrossKindDedup)
	v.SetDefault("curator.refine_mode", d.Curator.RefineMode)
	v.SetDefault("curator.lazy_window", d.Curator.LazyWindow)
	v.SetDefault("curator.grace_period", d.Curator.GracePeriod)
	v.SetDefault("curator.harmful_margin", d.Curator.HarmfulMargin)
	v.SetDefault("curator.retention", d.Curator.Retention)

	// Retrieval
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.w_sim", d.Retrieval.WSim)
	v.SetDefault("retrieval.w_util", d.Retrieval.WUtil)
	v.SetDefault("retrieval.w_fresh", d.Retrieval.WFresh)
	v.SetDefault("retrieval.freshness_half_life", d.Retrieval.FreshnessHalfLife)
}
