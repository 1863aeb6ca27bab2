package harmonizer

import (
	"github.com/crosspoll/harmonizer/pkg/mapping"
	"github.com/crosspoll/harmonizer/pkg/oracle"
	"github.com/crosspoll/harmonizer/pkg/tables"
	"github.com/crosspoll/harmonizer/pkg/themes"
)

// Option is a function that configures a Harmonizer instance.
type Option func(*config) error

// config holds a Harmonizer's configuration.
type config struct {
	registry   *tables.Registry
	oracles    *oracle.Oracles
	themes     *themes.Table
	classifier *mapping.Classifier

	// hints are free-form context strings passed to oracles, per kind.
	hints map[mapping.Kind]string

	// vocabularies are the target canonical keys per kind. The question
	// vocabulary defaults to the theme table's question keys.
	vocabularies map[mapping.Kind][]string
}

// defaultConfig returns a config with empty containers.
func defaultConfig() *config {
	return &config{
		oracles:      oracle.NewOracles(),
		classifier:   mapping.NewClassifier(),
		hints:        make(map[mapping.Kind]string),
		vocabularies: make(map[mapping.Kind][]string),
	}
}

// WithRegistry configures the registry the run owns.
func WithRegistry(reg *tables.Registry) Option {
	return func(c *config) error {
		c.registry = reg
		return nil
	}
}

// WithTables configures the registry from a set of tables.
func WithTables(ts ...*tables.Table) Option {
	return func(c *config) error {
		c.registry = tables.NewRegistry(tables.WithTables(ts...))
		return nil
	}
}

// WithOracle registers a naming oracle. The first registered oracle
// becomes the primary unless WithPrimaryOracle designates another.
func WithOracle(o oracle.Oracle) Option {
	return func(c *config) error {
		c.oracles.Add(o)
		return nil
	}
}

// WithOracles configures the full oracle container at once.
func WithOracles(oracles *oracle.Oracles) Option {
	return func(c *config) error {
		c.oracles = oracles
		return nil
	}
}

// WithPrimaryOracle designates the oracle whose proposals win
// tie-breaks.
func WithPrimaryOracle(id oracle.ID) Option {
	return func(c *config) error {
		return c.oracles.SetPrimary(id)
	}
}

// WithThemes configures the macro-theme table.
func WithThemes(t *themes.Table) Option {
	return func(c *config) error {
		c.themes = t
		return nil
	}
}

// WithClassifier configures the key classifier.
func WithClassifier(classifier *mapping.Classifier) Option {
	return func(c *config) error {
		c.classifier = classifier
		return nil
	}
}

// WithHint sets the free-form context hint passed to oracles for a key
// kind.
func WithHint(kind mapping.Kind, hint string) Option {
	return func(c *config) error {
		c.hints[kind] = hint
		return nil
	}
}

// WithVocabulary sets the target canonical vocabulary for a key kind.
func WithVocabulary(kind mapping.Kind, keys ...string) Option {
	return func(c *config) error {
		c.vocabularies[kind] = keys
		return nil
	}
}

// vocabulary returns the configured vocabulary for a kind, defaulting
// the question kind to the theme table's question keys.
func (c *config) vocabulary(kind mapping.Kind) []string {
	if v, ok := c.vocabularies[kind]; ok {
		return v
	}
	if kind == mapping.KindQuestion && c.themes != nil {
		return c.themes.Questions()
	}
	return nil
}
