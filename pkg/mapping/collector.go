package mapping

import (
	"sort"

	"github.com/crosspoll/harmonizer/pkg/tables"
)

// Collect scans every table in the registry and returns the sorted set
// of distinct raw keys of the given kind. Period attribution is not
// retained: mapping resolution is computed once over the global
// cross-period key set, never per table. An empty registry yields an
// empty set.
func Collect(reg *tables.Registry, kind Kind, classifier *Classifier) []string {
	seen := make(map[string]bool)
	for _, t := range reg.Tables() {
		for _, key := range t.Columns() {
			k, ok := classifier.KindOf(key)
			if !ok || k != kind {
				continue
			}
			seen[key] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
