// Package rules provides a deterministic, offline naming oracle. It
// resolves raw keys through an exact alias table, then a normalized
// string lookup against the canonical vocabulary, then a conservative
// edit-distance match. Keys below the confidence cutoff are omitted from
// the proposal; partial proposals are legal.
//
// The backend is pure: the same request always yields the same proposal,
// which makes it the reference oracle for tests and the no-network
// fallback when no API keys are configured.
package rules

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/crosspoll/harmonizer/pkg/oracle"
)

// Oracle is the deterministic rule-based backend.
type Oracle struct {
	id         oracle.ID
	aliases    map[string]string
	vocabulary []string
	normalized map[string]string // normalized vocabulary token -> canonical key
	maxEdits   int
}

// Option configures a rules Oracle.
type Option func(*Oracle)

// WithID overrides the oracle ID, letting tests register several rules
// backends side by side.
func WithID(id oracle.ID) Option {
	return func(o *Oracle) {
		o.id = id
	}
}

// WithAliases seeds the exact alias table (raw key -> canonical key).
// Aliases win over every other matching step.
func WithAliases(aliases map[string]string) Option {
	return func(o *Oracle) {
		for k, v := range aliases {
			o.aliases[k] = v
		}
	}
}

// WithVocabulary sets the canonical vocabulary used by the normalized
// and edit-distance matching steps.
func WithVocabulary(vocabulary ...string) Option {
	return func(o *Oracle) {
		o.vocabulary = append(o.vocabulary, vocabulary...)
	}
}

// WithMaxEdits sets the edit-distance cutoff. Zero disables fuzzy
// matching entirely.
func WithMaxEdits(n int) Option {
	return func(o *Oracle) {
		o.maxEdits = n
	}
}

// New creates a rules oracle.
func New(opts ...Option) *Oracle {
	o := &Oracle{
		id:       oracle.RulesID,
		aliases:  make(map[string]string),
		maxEdits: 2,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.normalized = make(map[string]string, len(o.vocabulary))
	for _, v := range o.vocabulary {
		o.normalized[Normalize(v)] = v
	}
	return o
}

// ID returns the oracle's identifier.
func (o *Oracle) ID() oracle.ID {
	return o.id
}

// Propose resolves each requested key through the alias table, the
// normalized vocabulary lookup, and finally edit distance. Unresolvable
// keys are omitted.
func (o *Oracle) Propose(ctx context.Context, req oracle.Request) (*oracle.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A request may carry its own vocabulary; it extends the configured one.
	normalized := o.normalized
	vocabulary := o.vocabulary
	if len(req.Vocabulary) > 0 {
		normalized = make(map[string]string, len(o.normalized)+len(req.Vocabulary))
		for k, v := range o.normalized {
			normalized[k] = v
		}
		vocabulary = append(append([]string{}, o.vocabulary...), req.Vocabulary...)
		for _, v := range req.Vocabulary {
			normalized[Normalize(v)] = v
		}
	}

	proposal := oracle.NewProposal(o.id, req.Kind)
	for _, key := range req.Keys {
		if canonical, ok := o.aliases[key]; ok {
			proposal.Mappings[key] = canonical
			continue
		}
		norm := Normalize(key)
		if canonical, ok := normalized[norm]; ok {
			proposal.Mappings[key] = canonical
			continue
		}
		if canonical, ok := o.closest(norm, vocabulary); ok {
			proposal.Mappings[key] = canonical
		}
	}
	return proposal, nil
}

// closest returns the vocabulary entry within the edit cutoff, refusing
// ambiguous ties so the proposal never guesses.
func (o *Oracle) closest(norm string, vocabulary []string) (string, bool) {
	if o.maxEdits <= 0 || norm == "" {
		return "", false
	}

	best := ""
	bestDist := o.maxEdits + 1
	tied := false
	for _, v := range vocabulary {
		d := editDistance(norm, Normalize(v))
		switch {
		case d < bestDist:
			best, bestDist, tied = v, d, false
		case d == bestDist && v != best:
			tied = true
		}
	}
	if bestDist > o.maxEdits || tied {
		return "", false
	}
	// Short keys give the cutoff too much reach; demand the match cover
	// most of the key.
	if bestDist*3 > len(norm) {
		return "", false
	}
	return best, true
}

var foldCaser = cases.Fold()

// Normalize lowercases a key via Unicode case folding and strips every
// non-alphanumeric rune, so "Age Group", "age_group" and "AGE-GROUP"
// collapse to the same token.
func Normalize(key string) string {
	folded := foldCaser.String(key)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// editDistance computes the Levenshtein distance between two strings.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
