// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings for components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "citegraph/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig holds settings for the bibliographic and enrichment
// clients.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`

	// CachePath is the SQLite session fetch cache location. Empty
	// disables caching.
	CachePath string `json:"cache_path,omitempty" yaml:"cache_path,omitempty"`
}

// ProgressConfig is the per-phase progress weight table. Seed, Enrich,
// and Extend weights must sum to 100; the two extend sub-weights must
// sum to 100.
type ProgressConfig struct {
	SeedWeight   int `json:"seed_weight" yaml:"seed_weight"`
	EnrichWeight int `json:"enrich_weight" yaml:"enrich_weight"`
	ExtendWeight int `json:"extend_weight" yaml:"extend_weight"`

	// ExtendFetchWeight and ExtendHydrateWeight split the extend span
	// between second-degree fetching and stub hydration.
	ExtendFetchWeight   int `json:"extend_fetch_weight" yaml:"extend_fetch_weight"`
	ExtendHydrateWeight int `json:"extend_hydrate_weight" yaml:"extend_hydrate_weight"`
}

// Validate checks the weight table sums.
func (p ProgressConfig) Validate() error {
	if sum := p.SeedWeight + p.EnrichWeight + p.ExtendWeight; sum != 100 {
		return fmt.Errorf("phase weights sum to %d, want 100", sum)
	}
	if sum := p.ExtendFetchWeight + p.ExtendHydrateWeight; sum != 100 {
		return fmt.Errorf("extend sub-weights sum to %d, want 100", sum)
	}
	return nil
}

// DefaultProgressConfig returns the standard weight table: seed and
// enrich together span 0-70, extend spans 70-100 split evenly.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		SeedWeight:          45,
		EnrichWeight:        25,
		ExtendWeight:        30,
		ExtendFetchWeight:   50,
		ExtendHydrateWeight: 50,
	}
}

// GraphConfig holds settings for the graph construction pipeline.
type GraphConfig struct {
	Fetch FetchConfig `json:"fetch" yaml:"fetch"`

	// MaxMasterCitedBy rejects a master paper whose citation count
	// exceeds this bound before the seed phase begins (default 2000).
	MaxMasterCitedBy int `json:"max_master_cited_by" yaml:"max_master_cited_by"`

	// MaxSeedResults bounds the direct-citation fetch; callers must
	// narrow the query beyond this (default 200).
	MaxSeedResults int `json:"max_seed_results" yaml:"max_seed_results"`

	// StubFanoutThreshold skips second-degree expansion of citers whose
	// own citation count exceeds it, bounding fan-out (default 500).
	StubFanoutThreshold int `json:"stub_fanout_threshold" yaml:"stub_fanout_threshold"`

	// FetchConcurrency bounds the per-entity fetch worker pool
	// (default 4).
	FetchConcurrency int `json:"fetch_concurrency" yaml:"fetch_concurrency"`

	// NamespacePriority orders external-id namespaces for dedup
	// conflict resolution. Empty means DefaultNamespacePriority.
	NamespacePriority []Namespace `json:"namespace_priority,omitempty" yaml:"namespace_priority,omitempty"`

	Progress ProgressConfig `json:"progress" yaml:"progress"`
}

// WithDefaults fills zero-valued fields with their defaults.
func (c GraphConfig) WithDefaults() GraphConfig {
	if c.MaxMasterCitedBy <= 0 {
		c.MaxMasterCitedBy = 2000
	}
	if c.MaxSeedResults <= 0 {
		c.MaxSeedResults = 200
	}
	if c.StubFanoutThreshold <= 0 {
		c.StubFanoutThreshold = 500
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 4
	}
	if len(c.NamespacePriority) == 0 {
		c.NamespacePriority = DefaultNamespacePriority
	}
	if c.Progress == (ProgressConfig{}) {
		c.Progress = DefaultProgressConfig()
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "citegraph/0.1"
	}
	return c
}
