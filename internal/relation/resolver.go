package relation

import (
	"errors"
	"fmt"
	"sync"

	"nestql/internal/introspection"
)

// ErrUnknownTable is returned when descriptors are requested for a table that
// is not part of the schema snapshot.
var ErrUnknownTable = errors.New("unknown table")

// Resolver memoizes descriptor derivation over one schema snapshot. It is
// safe for concurrent use. Rebuild the resolver when the snapshot changes;
// cached descriptors are never invalidated in place.
type Resolver struct {
	schema  *introspection.Schema
	cfg     Config
	byTable map[string]*introspection.Table

	mu    sync.RWMutex
	cache map[string][]Descriptor
}

// NewResolver creates a resolver bound to a schema snapshot.
func NewResolver(schema *introspection.Schema, cfg Config) *Resolver {
	byTable := make(map[string]*introspection.Table)
	if schema != nil {
		for i := range schema.Tables {
			byTable[schema.Tables[i].Name] = &schema.Tables[i]
		}
	}
	return &Resolver{
		schema:  schema,
		cfg:     cfg,
		byTable: byTable,
		cache:   make(map[string][]Descriptor),
	}
}

// Describe returns the descriptors for a table, computing them once.
func (r *Resolver) Describe(tableName string) ([]Descriptor, error) {
	r.mu.RLock()
	cached, ok := r.cache[tableName]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	table, ok := r.byTable[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, tableName)
	}

	descriptors := Describe(r.schema, *table, r.cfg)

	r.mu.Lock()
	if existing, ok := r.cache[tableName]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.cache[tableName] = descriptors
	r.mu.Unlock()
	return descriptors, nil
}

// Find returns the descriptor for a single relation field on a table.
func (r *Resolver) Find(tableName, fieldName string) (Descriptor, bool) {
	descriptors, err := r.Describe(tableName)
	if err != nil {
		return Descriptor{}, false
	}
	for _, d := range descriptors {
		if d.FieldName == fieldName {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Table returns the introspected table for a name.
func (r *Resolver) Table(tableName string) (*introspection.Table, bool) {
	t, ok := r.byTable[tableName]
	return t, ok
}

// Tables returns all table names known to the snapshot.
func (r *Resolver) Tables() []string {
	names := make([]string, 0, len(r.byTable))
	for name := range r.byTable {
		names = append(names, name)
	}
	return names
}
