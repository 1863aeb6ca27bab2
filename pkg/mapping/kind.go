// Package mapping implements the schema-reconciliation triad: collecting
// the universe of raw keys from a registry, selecting one canonical
// mapping from several oracle proposals, and applying that mapping
// uniformly across every period table. The demographic and question
// passes share this one implementation, parameterized by key kind.
package mapping

import "slices"

// Kind selects which class of raw keys a pass operates on.
type Kind string

// String returns the string representation of a kind.
func (k Kind) String() string {
	return string(k)
}

// Key kinds.
const (
	// KindDemographic covers respondent-attribute columns (gender, age
	// group, region).
	KindDemographic Kind = "demographic"

	// KindQuestion covers harmonized survey-question rating columns.
	KindQuestion Kind = "question"
)

// Kinds returns all key kinds in pipeline order.
func Kinds() []Kind {
	return []Kind{KindDemographic, KindQuestion}
}

// Classifier decides the kind of a raw column key. Structural keys (the
// period column and respondent identity) are neither demographic nor
// question and never enter mapping resolution. Classification is by
// explicit configuration, never by probing table contents.
type Classifier struct {
	periodColumn     string
	identityColumns  []string
	questionPrefixes []string
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithPeriodColumn sets the period column key (default "period").
func WithPeriodColumn(key string) ClassifierOption {
	return func(c *Classifier) {
		c.periodColumn = key
	}
}

// WithIdentityColumns sets the respondent-identity column keys
// (default "respondent_id").
func WithIdentityColumns(keys ...string) ClassifierOption {
	return func(c *Classifier) {
		c.identityColumns = slices.Clone(keys)
	}
}

// WithQuestionPrefixes sets the prefixes marking question columns
// (default "q_", "q" followed by a digit).
func WithQuestionPrefixes(prefixes ...string) ClassifierOption {
	return func(c *Classifier) {
		c.questionPrefixes = slices.Clone(prefixes)
	}
}

// NewClassifier creates a classifier with the standard survey layout.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		periodColumn:     "period",
		identityColumns:  []string{"respondent_id"},
		questionPrefixes: []string{"q_", "q0", "q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8", "q9"},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PeriodColumn returns the period column key.
func (c *Classifier) PeriodColumn() string {
	return c.periodColumn
}

// IdentityColumns returns the respondent-identity column keys.
func (c *Classifier) IdentityColumns() []string {
	return slices.Clone(c.identityColumns)
}

// IsStructural reports whether the key identifies the row rather than
// describing the respondent or a question.
func (c *Classifier) IsStructural(key string) bool {
	return key == c.periodColumn || slices.Contains(c.identityColumns, key)
}

// IsQuestion reports whether the key is a question rating column.
func (c *Classifier) IsQuestion(key string) bool {
	if c.IsStructural(key) {
		return false
	}
	for _, p := range c.questionPrefixes {
		if len(key) >= len(p) && key[:len(p)] == p {
			return true
		}
	}
	return false
}

// KindOf returns the kind of a non-structural key.
func (c *Classifier) KindOf(key string) (Kind, bool) {
	if c.IsStructural(key) {
		return "", false
	}
	if c.IsQuestion(key) {
		return KindQuestion, true
	}
	return KindDemographic, true
}
