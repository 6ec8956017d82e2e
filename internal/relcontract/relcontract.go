// Package relcontract generates the GraphQL input contracts for relation
// operations. Each relation slot of a mutation input gets an input object
// exposing the operation verbs valid for its cardinality: connect always,
// disconnect and set only for list-shaped relations, create and update only
// while nesting stays below the configured depth. Nested create and update
// item inputs are generated recursively, with the remote field of a reverse
// relation excluded so the far side cannot re-expose the link it arrived
// through.
//
// Generation is deterministic and cached: identical inputs return the
// identical contract, and every generated type name encodes the components
// that make its contract unique, so repeated relation shapes share one type.
package relcontract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/graphql-go/graphql"

	"nestql/internal/naming"
	"nestql/internal/relation"
)

// DefaultMaxDepth bounds how deep create and update contracts nest. A
// contract at the boundary only links existing rows.
const DefaultMaxDepth = 3

// Style selects the contract surface of a relation field.
type Style string

const (
	// StyleUnified exposes the full verb set.
	StyleUnified Style = "unified"
	// StyleIDOnly restricts the contract to identifier verbs. Create and
	// update are forced off regardless of their own flags.
	StyleIDOnly Style = "id_only"
)

// OperationConfig controls one verb of a relation contract.
type OperationConfig struct {
	Enabled bool
	// RequiredPermission names the permission a caller must hold to use
	// this verb. It is enforced at execution time; here it only
	// participates in the contract cache key.
	RequiredPermission string
}

// FieldRelationConfig controls the contract generated for one relation
// field.
type FieldRelationConfig struct {
	Style      Style
	Connect    OperationConfig
	Create     OperationConfig
	Update     OperationConfig
	Disconnect OperationConfig
	Set        OperationConfig
}

// DefaultFieldConfig returns the full unified surface with every verb
// enabled.
func DefaultFieldConfig() FieldRelationConfig {
	enabled := OperationConfig{Enabled: true}
	return FieldRelationConfig{
		Style:      StyleUnified,
		Connect:    enabled,
		Create:     enabled,
		Update:     enabled,
		Disconnect: enabled,
		Set:        enabled,
	}
}

// normalized applies the style invariant: id_only forces create and update
// off. Unknown styles fall back to unified; config loading validates the
// raw strings before they reach the generator.
func (c FieldRelationConfig) normalized() FieldRelationConfig {
	if c.Style != StyleIDOnly {
		c.Style = StyleUnified
		return c
	}
	c.Create.Enabled = false
	c.Update.Enabled = false
	return c
}

// fingerprint canonicalizes the config for cache keying.
func (c FieldRelationConfig) fingerprint() string {
	var b strings.Builder
	b.WriteString(string(c.Style))
	for _, op := range []struct {
		tag string
		cfg OperationConfig
	}{
		{"connect", c.Connect},
		{"disconnect", c.Disconnect},
		{"set", c.Set},
		{"create", c.Create},
		{"update", c.Update},
	} {
		fmt.Fprintf(&b, "|%s=%t:%s", op.tag, op.cfg.Enabled, op.cfg.RequiredPermission)
	}
	return b.String()
}

// Key identifies one generated contract. Every component that can change
// the contract's shape or meaning participates, so distinct contracts never
// collide and identical ones share.
type Key struct {
	RelatedType   string
	Kind          relation.Kind
	ParentType    string
	ExcludedField string
	Depth         int
	Config        string
}

// Contract is one generated relation operation contract.
type Contract struct {
	Key   Key
	Input *graphql.InputObject
}

// DescriptorSource yields the relation descriptors of a table.
type DescriptorSource interface {
	Describe(table string) ([]relation.Descriptor, error)
}

// ScalarSource supplies the writable scalar input fields of a table. Both
// methods return a fresh map on every call; the generator extends the map
// with relation slots. Update fields are partial and include the primary
// key field, which nested update items use to address their row.
type ScalarSource interface {
	CreateScalarFields(table string) (graphql.InputObjectConfigFieldMap, error)
	UpdateScalarFields(table string) (graphql.InputObjectConfigFieldMap, error)
}

// Generator builds and caches relation operation contracts for one schema
// snapshot. It is safe for concurrent use; the caches are read-mostly after
// the first schema build.
type Generator struct {
	descriptors DescriptorSource
	scalars     ScalarSource

	maxDepth     int
	defaults     FieldRelationConfig
	fieldConfigs map[string]FieldRelationConfig
	defaultPrint string

	mu           sync.Mutex
	contracts    map[Key]*Contract
	createInputs map[nestedInputKey]*graphql.InputObject
	updateInputs map[nestedInputKey]*graphql.InputObject
}

type nestedInputKey struct {
	typeName string
	excluded string
	depth    int
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxDepth overrides the nesting ceiling for create and update
// contracts. Non-positive values keep the default.
func WithMaxDepth(depth int) Option {
	return func(g *Generator) {
		if depth > 0 {
			g.maxDepth = depth
		}
	}
}

// WithDefaults replaces the default per-field configuration.
func WithDefaults(cfg FieldRelationConfig) Option {
	return func(g *Generator) { g.defaults = cfg.normalized() }
}

// WithFieldConfig overrides the configuration of one relation field,
// addressed by parent type name and field name.
func WithFieldConfig(typeName, field string, cfg FieldRelationConfig) Option {
	return func(g *Generator) {
		g.fieldConfigs[typeName+"."+field] = cfg.normalized()
	}
}

// NewGenerator builds a Generator over a descriptor source and a scalar
// input field source.
func NewGenerator(descriptors DescriptorSource, scalars ScalarSource, opts ...Option) *Generator {
	g := &Generator{
		descriptors:  descriptors,
		scalars:      scalars,
		maxDepth:     DefaultMaxDepth,
		defaults:     DefaultFieldConfig(),
		fieldConfigs: make(map[string]FieldRelationConfig),
		contracts:    make(map[Key]*Contract),
		createInputs: make(map[nestedInputKey]*graphql.InputObject),
		updateInputs: make(map[nestedInputKey]*graphql.InputObject),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.defaultPrint = g.defaults.fingerprint()
	return g
}

// Contract returns the operation contract for one relation slot of
// parentType at the given nesting depth. Top-level mutation inputs sit at
// depth 0. A nil contract with a nil error means every verb of the slot is
// disabled and the slot should be omitted.
func (g *Generator) Contract(parentType string, desc relation.Descriptor, depth int) (*Contract, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.contractLocked(parentType, desc, depth)
}

// RelationSlots builds the input slots for every relation of a table: a
// plain identifier slot per relation field plus a nested slot carrying the
// operation contract. The same slots serve create and update inputs.
func (g *Generator) RelationSlots(table, typeName string) (graphql.InputObjectConfigFieldMap, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.relationSlotsLocked(table, typeName, "", 0)
}

// Size reports how many contracts the registry holds.
func (g *Generator) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.contracts)
}

func (g *Generator) contractLocked(parentType string, desc relation.Descriptor, depth int) (*Contract, error) {
	cfg := g.fieldConfig(parentType, desc.FieldName)
	cfgPrint := cfg.fingerprint()
	qualifier := parentType
	if cfgPrint != g.defaultPrint {
		// A field deviating from the defaults gets its own contract type,
		// named after the field so it cannot collide with the shared one.
		qualifier = parentType + upperFirst(desc.FieldName)
	}

	key := Key{
		RelatedType:   desc.RelatedTypeName,
		Kind:          desc.Kind,
		ParentType:    qualifier,
		ExcludedField: contractExclusion(desc),
		Depth:         depth,
		Config:        cfgPrint,
	}
	if cached, ok := g.contracts[key]; ok {
		return cached, nil
	}

	list := desc.Kind.ListShaped()
	fields := graphql.InputObjectConfigFieldMap{}
	if cfg.Connect.Enabled {
		fields["connect"] = &graphql.InputObjectFieldConfig{Type: identifierType(list)}
	}
	if list && cfg.Disconnect.Enabled {
		fields["disconnect"] = &graphql.InputObjectFieldConfig{Type: identifierType(true)}
	}
	if list && cfg.Set.Enabled {
		fields["set"] = &graphql.InputObjectFieldConfig{Type: identifierType(true)}
	}
	if depth < g.maxDepth {
		if cfg.Create.Enabled {
			createInput, err := g.nestedInputLocked(verbInputCreate, desc, key.ExcludedField, depth+1)
			if err != nil {
				return nil, err
			}
			fields["create"] = &graphql.InputObjectFieldConfig{Type: itemType(createInput, list)}
		}
		if cfg.Update.Enabled {
			updateInput, err := g.nestedInputLocked(verbInputUpdate, desc, key.ExcludedField, depth+1)
			if err != nil {
				return nil, err
			}
			fields["update"] = &graphql.InputObjectFieldConfig{Type: itemType(updateInput, list)}
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}

	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   naming.RelationContractTypeName(key.ParentType, desc.RelatedTypeName, list, key.ExcludedField, depth),
		Fields: fields,
	})
	contract := &Contract{Key: key, Input: input}
	g.contracts[key] = contract
	return contract, nil
}

type verbInput int

const (
	verbInputCreate verbInput = iota
	verbInputUpdate
)

// nestedInputLocked builds the item input for create or update verbs: the
// related table's scalar input fields plus its own relation slots one level
// deeper, minus the excluded remote field.
func (g *Generator) nestedInputLocked(op verbInput, desc relation.Descriptor, excluded string, depth int) (*graphql.InputObject, error) {
	key := nestedInputKey{typeName: desc.RelatedTypeName, excluded: excluded, depth: depth}
	cache := g.createInputs
	if op == verbInputUpdate {
		cache = g.updateInputs
	}
	if cached, ok := cache[key]; ok {
		return cached, nil
	}

	var fields graphql.InputObjectConfigFieldMap
	var err error
	if op == verbInputUpdate {
		fields, err = g.scalars.UpdateScalarFields(desc.RelatedTable)
	} else {
		fields, err = g.scalars.CreateScalarFields(desc.RelatedTable)
	}
	if err != nil {
		return nil, fmt.Errorf("scalar input fields for %s: %w", desc.RelatedTable, err)
	}
	if fields == nil {
		fields = graphql.InputObjectConfigFieldMap{}
	}

	slots, err := g.relationSlotsLocked(desc.RelatedTable, desc.RelatedTypeName, excluded, depth)
	if err != nil {
		return nil, err
	}
	for name, slot := range slots {
		if _, exists := fields[name]; exists {
			continue
		}
		fields[name] = slot
	}

	name := naming.RelationCreateTypeName(desc.RelatedTypeName, excluded, depth)
	if op == verbInputUpdate {
		name = naming.RelationUpdateTypeName(desc.RelatedTypeName, excluded, depth)
	}
	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   name,
		Fields: fields,
	})
	cache[key] = input
	return input, nil
}

func (g *Generator) relationSlotsLocked(table, typeName, excludedField string, depth int) (graphql.InputObjectConfigFieldMap, error) {
	descs, err := g.descriptors.Describe(table)
	if err != nil {
		return nil, err
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for _, desc := range descs {
		if desc.FieldName == excludedField {
			continue
		}
		contract, err := g.contractLocked(typeName, desc, depth)
		if err != nil {
			return nil, err
		}
		if contract == nil {
			continue
		}
		fields[naming.NestedFieldName(desc.FieldName)] = &graphql.InputObjectFieldConfig{Type: contract.Input}
		fields[desc.FieldName] = &graphql.InputObjectFieldConfig{Type: identifierType(desc.Kind.ListShaped())}
	}
	return fields, nil
}

func (g *Generator) fieldConfig(parentType, field string) FieldRelationConfig {
	if cfg, ok := g.fieldConfigs[parentType+"."+field]; ok {
		return cfg
	}
	return g.defaults
}

// contractExclusion returns the remote field to exclude from nested inputs:
// the forward field pointing back at the parent, set only for reverse
// relations.
func contractExclusion(desc relation.Descriptor) string {
	if desc.Kind == relation.KindReverse {
		return desc.RemoteField
	}
	return ""
}

func identifierType(list bool) graphql.Input {
	if list {
		return graphql.NewList(graphql.NewNonNull(graphql.ID))
	}
	return graphql.ID
}

func itemType(input *graphql.InputObject, list bool) graphql.Input {
	if list {
		return graphql.NewList(graphql.NewNonNull(input))
	}
	return input
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
