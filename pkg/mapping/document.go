package mapping

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/crosspoll/harmonizer/pkg/errors"
)

// Document is the serialized form of a canonical mapping, used by the
// CLI to persist a resolve stage's output and feed it to a later apply.
type Document struct {
	Kind       Kind                  `json:"kind" yaml:"kind"`
	Entries    map[string]Resolution `json:"entries" yaml:"entries"`
	Unresolved []string              `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
}

// Document returns the mapping's serializable form.
func (c *Canonical) Document() Document {
	return Document{
		Kind:       c.kind,
		Entries:    c.Entries(),
		Unresolved: c.Unresolved(),
	}
}

// FromDocument rehydrates a canonical mapping.
func FromDocument(doc Document) *Canonical {
	c := NewCanonical(doc.Kind)
	for raw, res := range doc.Entries {
		c.Set(raw, res)
	}
	c.unresolved = append(c.unresolved, doc.Unresolved...)
	return c
}

// SaveFile writes the mapping as YAML.
func (c *Canonical) SaveFile(path string) error {
	data, err := yaml.Marshal(c.Document())
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	return errors.WrapIO("write", path, os.WriteFile(path, data, 0o644))
}

// LoadFile reads a mapping written by SaveFile.
func LoadFile(path string) (*Canonical, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return FromDocument(doc), nil
}
