// Package oracle defines the naming-oracle capability the harmonizer
// consumes: given a set of raw column keys, an oracle proposes a
// raw-to-canonical mapping. The package provides the interface, the
// proposal type, and a thread-safe container that fans a request out to
// several oracles concurrently.
//
// Oracles are idempotent reads with no side effects on the registry, so
// backends may retry internally; the pipeline itself never retries.
package oracle

import (
	"context"
	"sort"

	"github.com/crosspoll/harmonizer/pkg/errors"
)

// ID represents the identifier of a naming oracle.
type ID string

// String returns the string representation of an oracle ID.
func (id ID) String() string {
	return string(id)
}

// Common oracle IDs.
const (
	GeminiID   ID = "gemini"
	HTTPJSONID ID = "httpjson"
	RulesID    ID = "rules"
)

// Request describes one proposal call: the raw keys to map, the key kind
// ("demographic" or "question") and a free-form hint for context, plus an
// optional target vocabulary the canonical keys should be drawn from.
type Request struct {
	Keys       []string
	Kind       string
	Hint       string
	Vocabulary []string
}

// Oracle is the external naming capability. Propose may fail with an
// error matching errors.ErrOracleUnavailable (transient) or
// errors.ErrOracleMalformed (rejected proposal); callers distinguish the
// two with errors.IsOracleUnavailable and errors.IsOracleMalformed.
type Oracle interface {
	// ID returns the oracle's identifier.
	ID() ID

	// Propose returns a raw-to-canonical mapping proposal for the
	// requested keys. Proposals may be partial.
	Propose(ctx context.Context, req Request) (*Proposal, error)
}

// Proposal is one oracle invocation's proposed mapping. It may be
// partial (missing keys) or inconsistent with other proposals; the
// mapping selector reconciles that.
type Proposal struct {
	Oracle   ID                `json:"oracle" yaml:"oracle"`
	Kind     string            `json:"kind" yaml:"kind"`
	Mappings map[string]string `json:"mappings" yaml:"mappings"`
}

// NewProposal creates a proposal for an oracle and kind.
func NewProposal(oracle ID, kind string) *Proposal {
	return &Proposal{
		Oracle:   oracle,
		Kind:     kind,
		Mappings: make(map[string]string),
	}
}

// Covers reports whether the proposal maps the raw key.
func (p *Proposal) Covers(key string) bool {
	_, ok := p.Mappings[key]
	return ok
}

// Get returns the proposed canonical key for a raw key.
func (p *Proposal) Get(key string) (string, bool) {
	v, ok := p.Mappings[key]
	return v, ok
}

// Len returns the number of mapped keys.
func (p *Proposal) Len() int {
	return len(p.Mappings)
}

// Keys returns the proposal's raw keys in sorted order.
func (p *Proposal) Keys() []string {
	keys := make([]string, 0, len(p.Mappings))
	for k := range p.Mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks the proposal against the request that produced it. A
// proposal referencing keys outside the requested set, or carrying an
// empty canonical value, is malformed.
func (p *Proposal) Validate(req Request) error {
	requested := make(map[string]bool, len(req.Keys))
	for _, k := range req.Keys {
		requested[k] = true
	}

	var outside []string
	var empty []string
	for raw, canonical := range p.Mappings {
		if !requested[raw] {
			outside = append(outside, raw)
		}
		if canonical == "" {
			empty = append(empty, raw)
		}
	}

	if len(outside) > 0 {
		sort.Strings(outside)
		return errors.NewMalformedProposalError(string(p.Oracle),
			"proposal references keys outside the requested set", outside)
	}
	if len(empty) > 0 {
		sort.Strings(empty)
		return errors.NewMalformedProposalError(string(p.Oracle),
			"proposal maps keys to empty canonical values", empty)
	}
	return nil
}
