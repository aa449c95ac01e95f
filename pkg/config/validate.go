package config

import (
	"fmt"
	"time"

	"github.com/papercomputeco/playbook/pkg/playbook"
)

// Validate checks the configuration at startup. Out-of-range thresholds and
// weights fail fast here, never at call time. Retrieval weights are the one
// deliberate exception: any non-negative combination is accepted and
// normalized at scoring time, so only negatives are rejected.
func (c *Config) Validate() error {
	if c.Curator.DedupThreshold <= 0 || c.Curator.DedupThreshold > 1 {
		return fmt.Errorf("%w: curator.dedup_threshold must be in (0, 1], got %v",
			playbook.ErrInvalidConfiguration, c.Curator.DedupThreshold)
	}

	switch c.Curator.RefineMode {
	case "proactive", "lazy":
	default:
		return fmt.Errorf("%w: curator.refine_mode must be \"proactive\" or \"lazy\", got %q",
			playbook.ErrInvalidConfiguration, c.Curator.RefineMode)
	}

	if c.Curator.LazyWindow <= 0 {
		return fmt.Errorf("%w: curator.lazy_window must be positive, got %d",
			playbook.ErrInvalidConfiguration, c.Curator.LazyWindow)
	}

	if c.Curator.HarmfulMargin < 0 {
		return fmt.Errorf("%w: curator.harmful_margin must be non-negative, got %d",
			playbook.ErrInvalidConfiguration, c.Curator.HarmfulMargin)
	}

	if _, err := c.GracePeriod(); err != nil {
		return err
	}
	if _, err := c.Retention(); err != nil {
		return err
	}
	if _, err := c.FreshnessHalfLife(); err != nil {
		return err
	}

	if c.Embedding.Dimensions == 0 {
		return fmt.Errorf("%w: embedding.dimensions must be positive",
			playbook.ErrInvalidConfiguration)
	}

	switch c.Index.Provider {
	case "linear", "sqlitevec":
	default:
		return fmt.Errorf("%w: index.provider must be \"linear\" or \"sqlitevec\", got %q",
			playbook.ErrInvalidConfiguration, c.Index.Provider)
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive, got %d",
			playbook.ErrInvalidConfiguration, c.Retrieval.TopK)
	}

	r := c.Retrieval
	if r.WSim < 0 || r.WUtil < 0 || r.WFresh < 0 {
		return fmt.Errorf("%w: retrieval weights must be non-negative (w_sim=%v w_util=%v w_fresh=%v)",
			playbook.ErrInvalidConfiguration, r.WSim, r.WUtil, r.WFresh)
	}
	if r.WSim+r.WUtil+r.WFresh == 0 {
		return fmt.Errorf("%w: at least one retrieval weight must be positive",
			playbook.ErrInvalidConfiguration)
	}

	return nil
}

// GracePeriod parses curator.grace_period.
func (c *Config) GracePeriod() (time.Duration, error) {
	d, err := time.ParseDuration(c.Curator.GracePeriod)
	if err != nil {
		return 0, fmt.Errorf("%w: curator.grace_period: %v", playbook.ErrInvalidConfiguration, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: curator.grace_period must be non-negative", playbook.ErrInvalidConfiguration)
	}
	return d, nil
}

// Retention parses curator.retention.
func (c *Config) Retention() (time.Duration, error) {
	d, err := time.ParseDuration(c.Curator.Retention)
	if err != nil {
		return 0, fmt.Errorf("%w: curator.retention: %v", playbook.ErrInvalidConfiguration, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: curator.retention must be non-negative", playbook.ErrInvalidConfiguration)
	}
	return d, nil
}

// FreshnessHalfLife parses retrieval.freshness_half_life.
func (c *Config) FreshnessHalfLife() (time.Duration, error) {
	d, err := time.ParseDuration(c.Retrieval.FreshnessHalfLife)
	if err != nil {
		return 0, fmt.Errorf("%w: retrieval.freshness_half_life: %v", playbook.ErrInvalidConfiguration, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: retrieval.freshness_half_life must be positive", playbook.ErrInvalidConfiguration)
	}
	return d, nil
}
