package tables

import (
	"fmt"
	"slices"
	"sync"
)

// Registry is a concurrent safe collection of period tables. One
// reconciliation run owns its registry exclusively; the lock guards
// against concurrent readers (status commands, progress reporting), not
// concurrent pipelines.
type Registry struct {
	mu     sync.RWMutex
	tables map[Period]*Table
}

// RegistryOption defines a function that configures a Registry instance.
type RegistryOption func(*Registry)

// WithTables initializes the registry with existing tables.
func WithTables(tables ...*Table) RegistryOption {
	return func(r *Registry) {
		for _, t := range tables {
			if t != nil {
				r.tables[t.Period()] = t
			}
		}
	}
}

// WithCapacity sets the initial capacity of the table map.
func WithCapacity(capacity int) RegistryOption {
	return func(r *Registry) {
		r.tables = make(map[Period]*Table, capacity)
	}
}

// NewRegistry creates a new Registry with optional configuration.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tables: make(map[Period]*Table),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Table returns a table by period and whether it exists.
func (r *Registry) Table(period Period) (*Table, bool) {
	r.mu.RLock()
	t, ok := r.tables[period]
	r.mu.RUnlock()
	return t, ok
}

// Add adds a table, returning an error if its period is already present.
func (r *Registry) Add(t *Table) error {
	if t == nil {
		return fmt.Errorf("table cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[t.Period()]; exists {
		return fmt.Errorf("table for period %s already exists", t.Period())
	}

	r.tables[t.Period()] = t
	return nil
}

// Replace swaps in a table for a period, adding it if absent. This is the
// commit point for atomic stages: a stage builds its output tables first
// and replaces only after the whole pass succeeded.
func (r *Registry) Replace(period Period, t *Table) error {
	if t == nil {
		return fmt.Errorf("table cannot be nil")
	}
	if t.Period() != period {
		return fmt.Errorf("table period %s does not match replace target %s", t.Period(), period)
	}

	r.mu.Lock()
	r.tables[period] = t
	r.mu.Unlock()
	return nil
}

// Delete removes a table by period. Returns an error if it doesn't exist.
func (r *Registry) Delete(period Period) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[period]; !exists {
		return fmt.Errorf("table for period %s not found", period)
	}

	delete(r.tables, period)
	return nil
}

// Len returns the number of tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	length := len(r.tables)
	r.mu.RUnlock()
	return length
}

// Periods returns all period identifiers in ascending order.
func (r *Registry) Periods() []Period {
	r.mu.RLock()
	periods := make([]Period, 0, len(r.tables))
	for p := range r.tables {
		periods = append(periods, p)
	}
	r.mu.RUnlock()

	slices.Sort(periods)
	return periods
}

// Tables returns all tables ordered by ascending period.
func (r *Registry) Tables() []*Table {
	periods := r.Periods()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Table, 0, len(periods))
	for _, p := range periods {
		out = append(out, r.tables[p])
	}
	return out
}

// ForEach applies fn to each table in ascending period order. If fn
// returns false, iteration stops early.
func (r *Registry) ForEach(fn func(period Period, t *Table) bool) {
	for _, t := range r.Tables() {
		if !fn(t.Period(), t) {
			break
		}
	}
}

// Clone returns a registry holding deep copies of every table.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := NewRegistry(WithCapacity(len(r.tables)))
	for p, t := range r.tables {
		out.tables[p] = t.Clone()
	}
	return out
}
