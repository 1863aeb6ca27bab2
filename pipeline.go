package harmonizer

import (
	"context"
	"fmt"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/crosspoll/harmonizer/pkg/constants"
	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/harmonize"
	"github.com/crosspoll/harmonizer/pkg/infer"
	"github.com/crosspoll/harmonizer/pkg/logging"
	"github.com/crosspoll/harmonizer/pkg/mapping"
	"github.com/crosspoll/harmonizer/pkg/oracle"
	"github.com/crosspoll/harmonizer/pkg/reshape"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

// Result carries one full pipeline run's outputs and metadata.
type Result struct {
	RunID      uuid.UUID
	StartedAt  utc.Time
	FinishedAt utc.Time

	// HarmonizeReport lists the rating-field renames.
	HarmonizeReport *harmonize.Report

	// Mappings holds the selected canonical mapping per key kind.
	Mappings map[mapping.Kind]*mapping.Canonical

	// ApplyReports holds the per-kind apply reports (renames, merges,
	// conflicts, unmapped columns).
	ApplyReports map[mapping.Kind]*mapping.Report

	// Flattened holds the wide output table per period.
	Flattened map[tables.Period]*tables.Table

	// Types holds the inferred column types per period.
	Types map[tables.Period]*infer.Result

	// Findings aggregates advisory data-quality findings (merge
	// conflicts, type ambiguities). Fatal errors abort the run instead.
	Findings []error
}

// Harmonize normalizes rating field names within each table.
func (h *harmonizer) Harmonize(_ context.Context) (*harmonize.Report, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return harmonize.Harmonize(h.config.registry)
}

// CollectKeys returns the distinct raw keys of a kind across all tables.
func (h *harmonizer) CollectKeys(kind mapping.Kind) []string {
	return mapping.Collect(h.config.registry, kind, h.config.classifier)
}

// Resolve collects the kind's raw keys, queries every oracle
// concurrently, and selects one canonical mapping. Oracle failures only
// fail resolution when no usable proposal remains; a degraded proposal
// set is logged and selection proceeds. The returned mapping may carry
// unresolved keys; Apply refuses it in that case.
func (h *harmonizer) Resolve(ctx context.Context, kind mapping.Kind) (*mapping.Canonical, error) {
	logger := logging.FromContext(ctx)

	keys := h.CollectKeys(kind)
	if len(keys) == 0 {
		logger.Debug().Str("kind", string(kind)).Msg("No raw keys to resolve")
		return mapping.NewCanonical(kind), nil
	}

	req := oracle.Request{
		Keys:       keys,
		Kind:       string(kind),
		Hint:       h.config.hints[kind],
		Vocabulary: h.config.vocabulary(kind),
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ResolveTimeout)
	defer cancel()

	proposals, err := h.config.oracles.ProposeAll(ctx, req)
	if len(proposals) == 0 {
		if err != nil {
			return nil, fmt.Errorf("resolving %s mapping: %w", kind, err)
		}
		return nil, fmt.Errorf("resolving %s mapping: no oracle produced a proposal", kind)
	}
	if err != nil {
		logger.Warn().
			Err(err).
			Str("kind", string(kind)).
			Int("proposals", len(proposals)).
			Msg("Proceeding with degraded proposal set")
	}

	canonical := mapping.Select(kind, keys, proposals, h.config.oracles.Primary())
	logger.Info().
		Str("kind", string(kind)).
		Int("keys", len(keys)).
		Int("resolved", canonical.Len()).
		Int("unresolved", len(canonical.Unresolved())).
		Msg("Mapping selected")
	return canonical, nil
}

// Apply rewrites every table with a validated canonical mapping.
func (h *harmonizer) Apply(canonical *mapping.Canonical) (*mapping.Report, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return mapping.Apply(h.config.registry, canonical, h.config.classifier)
}

// Explode converts every table into labeled long rows, one exploded set
// per period.
func (h *harmonizer) Explode() ([]*reshape.Exploded, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sets := make([]*reshape.Exploded, 0, h.config.registry.Len())
	for _, t := range h.config.registry.Tables() {
		set, err := reshape.Explode(t, h.config.classifier)
		if err != nil {
			return nil, err
		}
		reshape.Label(set, h.config.themes)
		sets = append(sets, set)
	}
	return sets, nil
}

// Flatten pivots labeled exploded sets back into wide per-period tables
// and swaps them into the registry. The stage is atomic: all sets must
// flatten cleanly before any table is replaced. A flatten that would
// replace a populated table with an empty one is refused; that happens
// when the registry already holds flattened output, whose theme-prefixed
// columns no longer explode.
func (h *harmonizer) Flatten(sets []*reshape.Exploded) (map[tables.Period]*tables.Table, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	flattened := make(map[tables.Period]*tables.Table, len(sets))
	for _, set := range sets {
		t, err := reshape.Flatten(set)
		if err != nil {
			return nil, err
		}
		if src, ok := h.config.registry.Table(set.Period); ok && src.Len() > 0 && t.Len() == 0 {
			return nil, fmt.Errorf("flattening period %s: %d source rows exploded to nothing, tables appear already flattened",
				set.Period, src.Len())
		}
		flattened[set.Period] = t
	}

	for period, t := range flattened {
		if err := h.config.registry.Replace(period, t); err != nil {
			return nil, err
		}
	}
	return flattened, nil
}

// InferTypes assigns semantic column types to every table in the
// registry.
func (h *harmonizer) InferTypes() map[tables.Period]*infer.Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	results := make(map[tables.Period]*infer.Result, h.config.registry.Len())
	periodColumn := h.config.classifier.PeriodColumn()
	for _, t := range h.config.registry.Tables() {
		results[t.Period()] = infer.Infer(t, periodColumn)
	}
	return results
}

// Run executes the full pipeline: harmonize, then the demographic and
// question mapping passes (collect, resolve, apply), then explode,
// label, flatten, and type inference. Stages run sequentially over the
// registry; only the oracle fan-out inside Resolve is concurrent. Any
// fatal stage error aborts the run with the registry at its last
// committed state.
func (h *harmonizer) Run(ctx context.Context) (*Result, error) {
	logger := logging.FromContext(ctx)

	result := &Result{
		RunID:        uuid.New(),
		StartedAt:    utc.Now(),
		Mappings:     make(map[mapping.Kind]*mapping.Canonical),
		ApplyReports: make(map[mapping.Kind]*mapping.Report),
	}

	report, err := h.Harmonize(ctx)
	if err != nil {
		return nil, fmt.Errorf("harmonize stage: %w", err)
	}
	result.HarmonizeReport = report
	logger.Info().Int("renamed", report.Total()).Msg("Rating fields harmonized")

	// The demographic and question passes are the same triad
	// parameterized by kind; both must resolve over the global key set
	// before any table is rewritten.
	for _, kind := range mapping.Kinds() {
		canonical, err := h.Resolve(ctx, kind)
		if err != nil {
			return nil, err
		}
		result.Mappings[kind] = canonical

		applyReport, err := h.Apply(canonical)
		if err != nil {
			return nil, err
		}
		result.ApplyReports[kind] = applyReport
		for _, c := range applyReport.Conflicts {
			result.Findings = append(result.Findings, c)
		}
		if len(applyReport.Unmapped) > 0 {
			logger.Warn().
				Str("kind", string(kind)).
				Strs("columns", applyReport.Unmapped).
				Msg("Columns left unmapped")
		}
	}

	sets, err := h.Explode()
	if err != nil {
		return nil, err
	}

	flattened, err := h.Flatten(sets)
	if err != nil {
		return nil, err
	}
	result.Flattened = flattened

	result.Types = h.InferTypes()
	for _, r := range result.Types {
		for _, f := range r.Findings {
			result.Findings = append(result.Findings, f)
		}
	}

	result.FinishedAt = utc.Now()
	logger.Info().
		Str("run_id", result.RunID.String()).
		Int("periods", len(result.Flattened)).
		Int("findings", len(result.Findings)).
		Msg("Pipeline run complete")
	return result, nil
}

// ConflictFindings filters a result's findings down to merge conflicts.
func (r *Result) ConflictFindings() []*errors.MergeConflictError {
	var out []*errors.MergeConflictError
	for _, f := range r.Findings {
		if c, ok := f.(*errors.MergeConflictError); ok {
			out = append(out, c)
		}
	}
	return out
}
