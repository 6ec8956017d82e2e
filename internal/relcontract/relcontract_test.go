package relcontract

import (
	"fmt"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestql/internal/relation"
)

type staticDescriptors map[string][]relation.Descriptor

func (s staticDescriptors) Describe(table string) ([]relation.Descriptor, error) {
	descs, ok := s[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", relation.ErrUnknownTable, table)
	}
	return descs, nil
}

type fakeScalars struct{}

func (fakeScalars) CreateScalarFields(string) (graphql.InputObjectConfigFieldMap, error) {
	return graphql.InputObjectConfigFieldMap{
		"name": &graphql.InputObjectFieldConfig{Type: graphql.String},
	}, nil
}

func (fakeScalars) UpdateScalarFields(string) (graphql.InputObjectConfigFieldMap, error) {
	return graphql.InputObjectConfigFieldMap{
		"id":   &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
		"name": &graphql.InputObjectFieldConfig{Type: graphql.String},
	}, nil
}

func contractDescriptors() staticDescriptors {
	return staticDescriptors{
		"posts": {
			{
				FieldName: "author", Kind: relation.KindOne,
				Table: "posts", RelatedTable: "authors", RelatedTypeName: "Author",
				LocalColumns: []string{"author_id"}, RemoteColumns: []string{"id"},
			},
			{
				FieldName: "reviewer", Kind: relation.KindOne,
				Table: "posts", RelatedTable: "authors", RelatedTypeName: "Author",
				LocalColumns: []string{"reviewer_id"}, RemoteColumns: []string{"id"},
			},
			{
				FieldName: "tags", Kind: relation.KindMany,
				Table: "posts", RelatedTable: "tags", RelatedTypeName: "Tag",
				LocalColumns: []string{"id"}, RemoteColumns: []string{"id"},
				Junction: &relation.JunctionLink{
					Table:         "post_tags",
					LocalColumns:  []string{"post_id"},
					RemoteColumns: []string{"tag_id"},
				},
			},
		},
		"authors": {
			{
				FieldName: "posts", Kind: relation.KindReverse,
				Table: "authors", RelatedTable: "posts", RelatedTypeName: "Post",
				LocalColumns: []string{"id"}, RemoteColumns: []string{"author_id"},
				RemoteField: "author",
			},
		},
		"tags": {},
		"categories": {
			{
				FieldName: "parent", Kind: relation.KindOne,
				Table: "categories", RelatedTable: "categories", RelatedTypeName: "Category",
				LocalColumns: []string{"parent_id"}, RemoteColumns: []string{"id"},
			},
		},
	}
}

func descriptorFor(t *testing.T, table, field string) relation.Descriptor {
	t.Helper()
	for _, desc := range contractDescriptors()[table] {
		if desc.FieldName == field {
			return desc
		}
	}
	t.Fatalf("no descriptor %s.%s", table, field)
	return relation.Descriptor{}
}

func unwrapInputObject(t *testing.T, typ graphql.Input) *graphql.InputObject {
	t.Helper()
	current := graphql.Type(typ)
	for {
		switch v := current.(type) {
		case *graphql.InputObject:
			return v
		case *graphql.List:
			current = v.OfType
		case *graphql.NonNull:
			current = v.OfType
		default:
			t.Fatalf("not an input object: %T", typ)
			return nil
		}
	}
}

func TestContractForwardOneShape(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{})

	contract, err := gen.Contract("Post", descriptorFor(t, "posts", "author"), 0)
	require.NoError(t, err)
	require.NotNil(t, contract)
	assert.Equal(t, "PostAuthorOneRelationInput", contract.Input.Name())

	fields := contract.Input.Fields()
	require.Contains(t, fields, "connect")
	assert.Equal(t, graphql.ID, fields["connect"].Type, "single-valued connect takes one identifier")
	assert.NotContains(t, fields, "disconnect")
	assert.NotContains(t, fields, "set")

	require.Contains(t, fields, "create")
	createInput := unwrapInputObject(t, fields["create"].Type)
	assert.Equal(t, "CreateAuthorNestedInput", createInput.Name())
	_, isList := fields["create"].Type.(*graphql.List)
	assert.False(t, isList, "single-valued create takes one item")

	require.Contains(t, fields, "update")
	updateInput := unwrapInputObject(t, fields["update"].Type)
	assert.Equal(t, "UpdateAuthorNestedInput", updateInput.Name())
	assert.Contains(t, updateInput.Fields(), "id", "update items address their row by key")
}

func TestContractManyShape(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{})

	contract, err := gen.Contract("Post", descriptorFor(t, "posts", "tags"), 0)
	require.NoError(t, err)
	require.NotNil(t, contract)
	assert.Equal(t, "PostTagManyRelationInput", contract.Input.Name())

	fields := contract.Input.Fields()
	for _, verb := range []string{"connect", "disconnect", "set"} {
		require.Contains(t, fields, verb)
		_, isList := fields[verb].Type.(*graphql.List)
		assert.True(t, isList, "%s takes a list of identifiers", verb)
	}

	require.Contains(t, fields, "create")
	_, isList := fields["create"].Type.(*graphql.List)
	assert.True(t, isList, "many-valued create takes a list of items")
	assert.Equal(t, "CreateTagNestedInput", unwrapInputObject(t, fields["create"].Type).Name())
}

func TestContractReverseExcludesRemoteField(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{})

	contract, err := gen.Contract("Author", descriptorFor(t, "authors", "posts"), 0)
	require.NoError(t, err)
	require.NotNil(t, contract)
	assert.Equal(t, "AuthorPostManyWithoutAuthorRelationInput", contract.Input.Name())

	createInput := unwrapInputObject(t, contract.Input.Fields()["create"].Type)
	assert.Equal(t, "CreatePostWithoutAuthorNestedInput", createInput.Name())

	itemFields := createInput.Fields()
	assert.NotContains(t, itemFields, "author", "the link back to the parent is not re-exposed")
	assert.NotContains(t, itemFields, "nestedAuthor")
	assert.Contains(t, itemFields, "name")
	assert.Contains(t, itemFields, "nestedTags", "sibling relations stay available")
	assert.Contains(t, itemFields, "nestedReviewer")
}

func TestContractIdempotentAndRegistryGrowsByOne(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{})
	desc := descriptorFor(t, "posts", "author")

	// At the depth ceiling no nested types are generated, so the registry
	// gains exactly the one requested contract.
	first, err := gen.Contract("Post", desc, DefaultMaxDepth)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Size())

	second, err := gen.Contract("Post", desc, DefaultMaxDepth)
	require.NoError(t, err)
	assert.Same(t, first, second, "identical arguments return the identical contract")
	assert.Equal(t, 1, gen.Size(), "repeat generation adds nothing")
}

func TestContractIdempotentAcrossNestedClosure(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{})
	desc := descriptorFor(t, "posts", "author")

	first, err := gen.Contract("Post", desc, 0)
	require.NoError(t, err)
	sizeAfterFirst := gen.Size()

	second, err := gen.Contract("Post", desc, 0)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, sizeAfterFirst, gen.Size())
}

func TestContractStructuralSharing(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{})

	author, err := gen.Contract("Post", descriptorFor(t, "posts", "author"), 0)
	require.NoError(t, err)
	reviewer, err := gen.Contract("Post", descriptorFor(t, "posts", "reviewer"), 0)
	require.NoError(t, err)

	assert.Same(t, author, reviewer, "same shape and config share one contract")
}

func TestContractDepthCeilingDropsNestedWrites(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{}, WithMaxDepth(1))

	contract, err := gen.Contract("Post", descriptorFor(t, "posts", "author"), 0)
	require.NoError(t, err)
	require.Contains(t, contract.Input.Fields(), "create")

	// One level down the related type's own relation contracts sit at the
	// ceiling and only link existing rows.
	createInput := unwrapInputObject(t, contract.Input.Fields()["create"].Type)
	slot, ok := createInput.Fields()["nestedPosts"]
	require.True(t, ok)
	inner := unwrapInputObject(t, slot.Type)
	assert.Equal(t, "AuthorPostManyWithoutAuthorRelationD1Input", inner.Name())
	assert.Contains(t, inner.Fields(), "connect")
	assert.Contains(t, inner.Fields(), "disconnect")
	assert.Contains(t, inner.Fields(), "set")
	assert.NotContains(t, inner.Fields(), "create")
	assert.NotContains(t, inner.Fields(), "update")
}

func TestContractAtCeilingKeepsIdentifierVerbs(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{})

	contract, err := gen.Contract("Post", descriptorFor(t, "posts", "tags"), DefaultMaxDepth)
	require.NoError(t, err)
	fields := contract.Input.Fields()
	assert.Contains(t, fields, "connect")
	assert.Contains(t, fields, "disconnect")
	assert.Contains(t, fields, "set")
	assert.NotContains(t, fields, "create")
	assert.NotContains(t, fields, "update")
}

func TestContractDisablingCreateRemovesOnlyCreate(t *testing.T) {
	defaults := DefaultFieldConfig()
	defaults.Create.Enabled = false
	gen := NewGenerator(contractDescriptors(), fakeScalars{}, WithDefaults(defaults))

	contract, err := gen.Contract("Post", descriptorFor(t, "posts", "tags"), 0)
	require.NoError(t, err)

	fields := contract.Input.Fields()
	assert.NotContains(t, fields, "create")
	assert.Contains(t, fields, "connect")
	assert.Contains(t, fields, "disconnect")
	assert.Contains(t, fields, "set")
	assert.Contains(t, fields, "update")
}

func TestContractIDOnlyStyleForcesWritesOff(t *testing.T) {
	cfg := DefaultFieldConfig()
	cfg.Style = StyleIDOnly
	gen := NewGenerator(contractDescriptors(), fakeScalars{},
		WithFieldConfig("Post", "tags", cfg))

	contract, err := gen.Contract("Post", descriptorFor(t, "posts", "tags"), 0)
	require.NoError(t, err)

	fields := contract.Input.Fields()
	assert.NotContains(t, fields, "create", "id_only wins over the create enabled flag")
	assert.NotContains(t, fields, "update")
	assert.Contains(t, fields, "connect")
	assert.Contains(t, fields, "disconnect")
	assert.Contains(t, fields, "set")

	assert.Equal(t, "PostTagsTagManyRelationInput", contract.Input.Name(),
		"a field deviating from the defaults gets a field-qualified type")
}

func TestContractAllVerbsDisabledYieldsNoContract(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{},
		WithFieldConfig("Post", "author", FieldRelationConfig{Style: StyleUnified}))

	contract, err := gen.Contract("Post", descriptorFor(t, "posts", "author"), 0)
	require.NoError(t, err)
	assert.Nil(t, contract)
	assert.Equal(t, 0, gen.Size())
}

func TestContractSelfReferenceTerminates(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{})

	contract, err := gen.Contract("Category", descriptorFor(t, "categories", "parent"), 0)
	require.NoError(t, err)
	require.NotNil(t, contract)

	// One contract per depth until the ceiling cuts the recursion.
	assert.Equal(t, DefaultMaxDepth+1, gen.Size())
}

func TestRelationSlots(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{})

	slots, err := gen.RelationSlots("posts", "Post")
	require.NoError(t, err)

	for _, name := range []string{"author", "nestedAuthor", "reviewer", "nestedReviewer", "tags", "nestedTags"} {
		assert.Contains(t, slots, name)
	}
	assert.Equal(t, graphql.ID, slots["author"].Type, "plain slot takes a bare identifier")
	_, isList := slots["tags"].Type.(*graphql.List)
	assert.True(t, isList, "plain list slot takes identifiers")
	assert.Equal(t, "PostAuthorOneRelationInput", unwrapInputObject(t, slots["nestedAuthor"].Type).Name())
}

func TestRelationSlotsOmitDisabledRelations(t *testing.T) {
	gen := NewGenerator(contractDescriptors(), fakeScalars{},
		WithFieldConfig("Post", "tags", FieldRelationConfig{Style: StyleUnified}))

	slots, err := gen.RelationSlots("posts", "Post")
	require.NoError(t, err)

	assert.NotContains(t, slots, "tags")
	assert.NotContains(t, slots, "nestedTags")
	assert.Contains(t, slots, "author")
}
