// Package engine wires resolved configuration into a ready curator for the
// CLI commands: it locates the database files, constructs the store, index,
// and embedder from their factories, and hands back a curator that owns all
// three.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/curator"
	"github.com/papercomputeco/playbook/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/playbook/pkg/embeddings/utils"
	indexutils "github.com/papercomputeco/playbook/pkg/index/utils"
	storesqlite "github.com/papercomputeco/playbook/pkg/store/sqlite"
)

const (
	storeFile = "playbook.db"
	indexFile = "index.db"
)

// Open builds a curator from the resolved config. The caller owns the
// returned curator and must Close it.
func Open(configDir string, cfg *config.Config, logger *zap.Logger) (*curator.Curator, error) {
	storePath, err := ResolveStorePath(cfg.Storage.SQLitePath, configDir)
	if err != nil {
		return nil, err
	}

	st, err := storesqlite.New(storesqlite.Config{
		DBPath:     storePath,
		Dimensions: cfg.Embedding.Dimensions,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening bullet store: %w", err)
	}

	indexPath := cfg.Index.Path
	if cfg.Index.Provider == "sqlitevec" && indexPath == "" {
		indexPath, err = defaultDotdirPath(configDir, indexFile)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	idx, err := indexutils.NewIndex(&indexutils.NewIndexOpts{
		ProviderType: cfg.Index.Provider,
		DBPath:       indexPath,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("opening similarity index: %w", err)
	}

	emb, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
	})
	if err != nil {
		_ = idx.Close()
		_ = st.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	cur, err := curator.New(cfg, st, idx, emb, logger)
	if err != nil {
		_ = emb.Close()
		_ = idx.Close()
		_ = st.Close()
		return nil, err
	}
	return cur, nil
}

// ResolveStorePath locates the bullet store database. Order of precedence:
//  1. Explicit override (flag or config value)
//  2. PLAYBOOK_SQLITE environment variable
//  3. An existing database from the candidate locations
//  4. A fresh playbook.db inside the resolved .playbook/ directory
func ResolveStorePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("PLAYBOOK_SQLITE")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range storeCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return defaultDotdirPath(configDir, storeFile)
}

func storeCandidates() []string {
	candidates := []string{
		storeFile,
		filepath.Join(".playbook", storeFile),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".playbook", storeFile),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "playbook", storeFile),
		}, candidates...)
	}

	return candidates
}

func defaultDotdirPath(configDir, file string) (string, error) {
	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving playbook directory: %w", err)
	}
	return filepath.Join(target, file), nil
}
