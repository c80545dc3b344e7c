// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress maps phase completion fractions to one monotonic
// 0-100 percentage for the UI.
package progress

import (
	"sync"

	"github.com/pdiddy/citegraph/pkg/types"
)

// Step identifies one weighted segment of the analysis session.
type Step int

const (
	StepSeed Step = iota
	StepEnrich
	StepExtendFetch
	StepExtendHydrate
)

// Calculator converts (step, fraction) pairs into an overall percentage
// using the configured weight table. The reported value never decreases
// within one session even when steps report out of order; a step
// transition resets the sub-fraction but not the overall percentage.
type Calculator struct {
	mu    sync.Mutex
	spans map[Step][2]int
	last  int
}

// NewCalculator builds a calculator from a validated weight table.
func NewCalculator(cfg types.ProgressConfig) *Calculator {
	seedEnd := cfg.SeedWeight
	enrichEnd := seedEnd + cfg.EnrichWeight
	extendFetchEnd := enrichEnd + cfg.ExtendWeight*cfg.ExtendFetchWeight/100
	return &Calculator{
		spans: map[Step][2]int{
			StepSeed:          {0, seedEnd},
			StepEnrich:        {seedEnd, enrichEnd},
			StepExtendFetch:   {enrichEnd, extendFetchEnd},
			StepExtendHydrate: {extendFetchEnd, 100},
		},
	}
}

// Update reports fraction (0-1) of step complete and returns the
// overall percentage, clamped so successive calls never go backwards.
func (c *Calculator) Update(step Step, fraction float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	span := c.spans[step]
	value := span[0] + int(fraction*float64(span[1]-span[0]))
	if value < c.last {
		return c.last
	}
	c.last = value
	return value
}

// Current returns the last reported percentage.
func (c *Calculator) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
