package config

const (
	defaultIndexProvider = "linear"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultDedupThreshold = 0.86
	defaultRefineMode     = "proactive"
	defaultLazyWindow     = 50
	defaultGracePeriod    = "10m"
	defaultHarmfulMargin  = 2
	defaultRetention      = "720h"

	defaultTopK              = 8
	defaultWSim              = 0.7
	defaultWUtil             = 0.2
	defaultWFresh            = 0.1
	defaultFreshnessHalfLife = "168h"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Index: IndexConfig{
			Provider: defaultIndexProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Curator: CuratorConfig{
			DedupThreshold: defaultDedupThreshold,
			RefineMode:     defaultRefineMode,
			LazyWindow:     defaultLazyWindow,
			GracePeriod:    defaultGracePeriod,
			HarmfulMargin:  defaultHarmfulMargin,
			Retention:      defaultRetention,
		},
		Retrieval: RetrievalConfig{
			TopK:              defaultTopK,
			WSim:              defaultWSim,
			WUtil:             defaultWUtil,
			WFresh:            defaultWFresh,
			FreshnessHalfLife: defaultFreshnessHalfLife,
		},
	}
}
