package mapping

import (
	"sort"

	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/oracle"
)

// Reason records how a key's canonical value was selected.
type Reason string

// Selection reasons, in order of strength.
const (
	// ReasonUnanimous means every covering proposal agreed.
	ReasonUnanimous Reason = "unanimous"

	// ReasonPrimary means proposals disagreed and the primary oracle's
	// value was taken.
	ReasonPrimary Reason = "primary"

	// ReasonMajority means the primary did not cover the key and a strict
	// majority of the remaining proposals agreed.
	ReasonMajority Reason = "majority"
)

// Resolution is one raw key's selected canonical value plus the
// provenance of the choice.
type Resolution struct {
	Canonical string      `json:"canonical" yaml:"canonical"`
	Reason    Reason      `json:"reason" yaml:"reason"`
	Oracles   []oracle.ID `json:"oracles" yaml:"oracles"`
}

// Canonical is the single authoritative raw-to-canonical mapping for one
// key kind, selected from oracle proposals. It is total over the input
// key set only when Valid reports true; a mapping carrying unresolved
// keys must never reach the apply stage.
type Canonical struct {
	kind       Kind
	entries    map[string]Resolution
	codomain   map[string]bool
	unresolved []string
}

// NewCanonical creates an empty canonical mapping for a kind. Used by
// tests and by loaders that rehydrate a stored mapping.
func NewCanonical(kind Kind) *Canonical {
	return &Canonical{
		kind:     kind,
		entries:  make(map[string]Resolution),
		codomain: make(map[string]bool),
	}
}

// Kind returns the key kind the mapping covers.
func (c *Canonical) Kind() Kind {
	return c.kind
}

// Set records a resolution for a raw key.
func (c *Canonical) Set(raw string, res Resolution) {
	c.entries[raw] = res
	c.codomain[res.Canonical] = true
}

// Len returns the number of resolved raw keys.
func (c *Canonical) Len() int {
	return len(c.entries)
}

// Valid reports whether the mapping is total over its input key set.
func (c *Canonical) Valid() bool {
	return len(c.unresolved) == 0
}

// Unresolved returns the raw keys no policy step could resolve, sorted.
func (c *Canonical) Unresolved() []string {
	out := make([]string, len(c.unresolved))
	copy(out, c.unresolved)
	return out
}

// Validate returns an UnresolvedMappingError naming the unresolved keys,
// or nil when the mapping is total.
func (c *Canonical) Validate() error {
	if c.Valid() {
		return nil
	}
	return errors.NewUnresolvedMappingError(string(c.kind), c.Unresolved())
}

// Resolution returns the full resolution for a raw key.
func (c *Canonical) Resolution(raw string) (Resolution, bool) {
	res, ok := c.entries[raw]
	return res, ok
}

// Resolve returns the canonical key for a raw key. The mapping is
// idempotent: a key already in the canonical codomain resolves to
// itself, so re-running the pipeline on partially-processed data is
// safe. The second return value is false for keys outside both the
// domain and the codomain.
func (c *Canonical) Resolve(raw string) (string, bool) {
	if res, ok := c.entries[raw]; ok {
		return res.Canonical, true
	}
	if c.codomain[raw] {
		return raw, true
	}
	return "", false
}

// RawKeys returns the mapping's domain in sorted order.
func (c *Canonical) RawKeys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CanonicalKeys returns the mapping's codomain in sorted order.
func (c *Canonical) CanonicalKeys() []string {
	keys := make([]string, 0, len(c.codomain))
	for k := range c.codomain {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns a copy of the resolved entries keyed by raw key, for
// serialization and reporting.
func (c *Canonical) Entries() map[string]Resolution {
	out := make(map[string]Resolution, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}
