// Package harmonizer reconciles heterogeneous per-period survey tables
// into one harmonized dataset. Each period's table arrives with its own
// column spellings; the pipeline collects the universe of raw keys,
// obtains candidate canonical mappings from one or more naming oracles,
// selects a single authoritative mapping deterministically, applies it
// uniformly, and then reshapes the data (wide-to-long explosion, theme
// labeling, long-to-wide flattening) before a final type-inference pass.
//
// Example usage:
//
//	h, err := harmonizer.New(
//	    harmonizer.WithTables(t2019, t2020),
//	    harmonizer.WithOracle(rulesOracle),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := h.Run(ctx)
package harmonizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/crosspoll/harmonizer/pkg/harmonize"
	"github.com/crosspoll/harmonizer/pkg/infer"
	"github.com/crosspoll/harmonizer/pkg/mapping"
	"github.com/crosspoll/harmonizer/pkg/oracle"
	"github.com/crosspoll/harmonizer/pkg/reshape"
	"github.com/crosspoll/harmonizer/pkg/tables"
	"github.com/crosspoll/harmonizer/pkg/themes"
)

// Harmonizer runs the reconciliation pipeline over one registry of
// period tables. Every stage is independently invocable and takes or
// returns explicit state, so a caller can inspect intermediate results
// and resume from any stage; Run chains them all.
type Harmonizer interface {
	// Registry returns the registry this run owns.
	Registry() *tables.Registry

	// Oracles returns the configured naming oracles.
	Oracles() *oracle.Oracles

	// Themes returns the static macro-theme table.
	Themes() *themes.Table

	// Classifier returns the key classifier in use.
	Classifier() *mapping.Classifier

	// Harmonize normalizes rating field names within each table.
	Harmonize(ctx context.Context) (*harmonize.Report, error)

	// CollectKeys returns the distinct raw keys of a kind across all
	// tables.
	CollectKeys(kind mapping.Kind) []string

	// Resolve collects keys of a kind, fans the request out to every
	// oracle, and selects one canonical mapping.
	Resolve(ctx context.Context, kind mapping.Kind) (*mapping.Canonical, error)

	// Apply rewrites every table with a validated canonical mapping.
	Apply(canonical *mapping.Canonical) (*mapping.Report, error)

	// Explode converts every table to labeled long rows.
	Explode() ([]*reshape.Exploded, error)

	// Flatten pivots labeled exploded sets back into wide per-period
	// tables and swaps them into the registry.
	Flatten(sets []*reshape.Exploded) (map[tables.Period]*tables.Table, error)

	// InferTypes assigns semantic column types per table.
	InferTypes() map[tables.Period]*infer.Result

	// Run executes the full pipeline.
	Run(ctx context.Context) (*Result, error)
}

// harmonizer is the internal implementation of the Harmonizer interface.
type harmonizer struct {
	mu     sync.Mutex
	config *config
}

// New creates a Harmonizer with the given options.
func New(opts ...Option) (Harmonizer, error) {
	h := &harmonizer{
		config: defaultConfig(),
	}

	if err := h.options(opts...); err != nil {
		return nil, fmt.Errorf("applying options: %w", err)
	}

	if h.config.registry == nil {
		h.config.registry = tables.NewRegistry()
	}
	if h.config.themes == nil {
		h.config.themes = themes.Embedded()
	}
	if h.config.oracles.Len() == 0 {
		return nil, fmt.Errorf("at least one naming oracle is required")
	}

	return h, nil
}

// options applies configuration options.
func (h *harmonizer) options(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(h.config); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns the registry this run owns.
func (h *harmonizer) Registry() *tables.Registry {
	return h.config.registry
}

// Oracles returns the configured naming oracles.
func (h *harmonizer) Oracles() *oracle.Oracles {
	return h.config.oracles
}

// Themes returns the static macro-theme table.
func (h *harmonizer) Themes() *themes.Table {
	return h.config.themes
}

// Classifier returns the key classifier in use.
func (h *harmonizer) Classifier() *mapping.Classifier {
	return h.config.classifier
}
