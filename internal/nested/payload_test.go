package nested

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestql/internal/relation"
)

func payloadDescriptors() []relation.Descriptor {
	return []relation.Descriptor{
		{
			FieldName:       "author",
			Kind:            relation.KindOne,
			Table:           "posts",
			RelatedTable:    "authors",
			RelatedTypeName: "Author",
			LocalColumns:    []string{"author_id"},
			RemoteColumns:   []string{"id"},
		},
		{
			FieldName:       "tags",
			Kind:            relation.KindMany,
			Table:           "posts",
			RelatedTable:    "tags",
			RelatedTypeName: "Tag",
			Junction: &relation.JunctionLink{
				Table:         "post_tags",
				LocalColumns:  []string{"post_id"},
				RemoteColumns: []string{"tag_id"},
			},
		},
		{
			FieldName:       "comments",
			Kind:            relation.KindReverse,
			Table:           "posts",
			RelatedTable:    "comments",
			RelatedTypeName: "Comment",
			LocalColumns:    []string{"id"},
			RemoteColumns:   []string{"post_id"},
			RemoteField:     "post",
		},
	}
}

func TestIsNestedPayload(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{
			name:  "connect with bare ids is not nested",
			value: map[string]interface{}{"connect": []interface{}{1, 2, 3}},
			want:  false,
		},
		{
			name:  "set with structured objects is nested",
			value: map[string]interface{}{"set": []interface{}{map[string]interface{}{"name": "x"}}},
			want:  true,
		},
		{
			name:  "set with bare ids is not nested",
			value: map[string]interface{}{"set": []interface{}{"1", "2"}},
			want:  false,
		},
		{
			name:  "create is always nested",
			value: map[string]interface{}{"create": []interface{}{map[string]interface{}{"name": "x"}}},
			want:  true,
		},
		{
			name:  "update is always nested",
			value: map[string]interface{}{"update": []interface{}{map[string]interface{}{"id": 1}}},
			want:  true,
		},
		{
			name:  "disconnect with ids is not nested",
			value: map[string]interface{}{"disconnect": []interface{}{4}},
			want:  false,
		},
		{
			name:  "bare object without verbs is nested",
			value: map[string]interface{}{"name": "New"},
			want:  true,
		},
		{
			name:  "list of objects is nested",
			value: []interface{}{map[string]interface{}{"name": "a"}},
			want:  true,
		},
		{
			name:  "list of ids is not nested",
			value: []interface{}{1, 2},
			want:  false,
		},
		{
			name:  "bare scalar is not nested",
			value: 42,
			want:  false,
		},
		{
			name:  "nil is not nested",
			value: nil,
			want:  false,
		},
		{
			name:  "empty map is not nested",
			value: map[string]interface{}{},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNestedPayload(tt.value))
		})
	}
}

func TestSplitInputScalarsAndRelations(t *testing.T) {
	descs := payloadDescriptors()
	input := map[string]interface{}{
		"title":  "Go Generics",
		"status": "draft",
		"author": 5,
		"tags":   map[string]interface{}{"connect": []interface{}{1, 2}},
	}

	scalars, rels, errs := SplitInput(descs, input)
	require.Empty(t, errs)

	assert.Equal(t, map[string]interface{}{"title": "Go Generics", "status": "draft"}, scalars)
	require.Len(t, rels, 2)

	// Single-valued relations order before list relations.
	assert.Equal(t, "author", rels[0].Field)
	assert.Equal(t, map[relation.Verb]interface{}{relation.VerbConnect: 5}, rels[0].Ops)

	assert.Equal(t, "tags", rels[1].Field)
	assert.Equal(t, map[relation.Verb]interface{}{relation.VerbConnect: []interface{}{1, 2}}, rels[1].Ops)
}

func TestSplitInputNestedSlotOverridesPlain(t *testing.T) {
	descs := payloadDescriptors()
	input := map[string]interface{}{
		"author":       123,
		"nestedAuthor": map[string]interface{}{"name": "New"},
	}

	scalars, rels, errs := SplitInput(descs, input)
	require.Empty(t, errs)
	assert.Empty(t, scalars)

	require.Len(t, rels, 1)
	assert.Equal(t, "author", rels[0].Field)
	assert.Equal(t, map[relation.Verb]interface{}{
		relation.VerbCreate: map[string]interface{}{"name": "New"},
	}, rels[0].Ops)
}

func TestSplitInputNestedSlotOverrideIsOrderIndependent(t *testing.T) {
	// "nestedZebra" sorts before "zebra"; the plain slot must not clobber
	// the nested value when it is visited second.
	descs := []relation.Descriptor{{
		FieldName:       "zebra",
		Kind:            relation.KindOne,
		Table:           "posts",
		RelatedTable:    "zebras",
		RelatedTypeName: "Zebra",
		LocalColumns:    []string{"zebra_id"},
		RemoteColumns:   []string{"id"},
	}}
	input := map[string]interface{}{
		"zebra":       7,
		"nestedZebra": map[string]interface{}{"connect": 9},
	}

	_, rels, errs := SplitInput(descs, input)
	require.Empty(t, errs)
	require.Len(t, rels, 1)
	assert.Equal(t, map[relation.Verb]interface{}{relation.VerbConnect: 9}, rels[0].Ops)
}

func TestSplitInputNullVerbSkipped(t *testing.T) {
	descs := payloadDescriptors()
	input := map[string]interface{}{
		"tags": map[string]interface{}{
			"connect": []interface{}{3},
			"set":     nil,
		},
	}

	_, rels, errs := SplitInput(descs, input)
	require.Empty(t, errs)
	require.Len(t, rels, 1)
	assert.Equal(t, map[relation.Verb]interface{}{relation.VerbConnect: []interface{}{3}}, rels[0].Ops)
}

func TestSplitInputNullSlotSkipped(t *testing.T) {
	descs := payloadDescriptors()
	input := map[string]interface{}{
		"title":  "t",
		"author": nil,
	}

	scalars, rels, errs := SplitInput(descs, input)
	require.Empty(t, errs)
	assert.Equal(t, map[string]interface{}{"title": "t"}, scalars)
	assert.Empty(t, rels)
}

func TestSplitInputRawValueNormalization(t *testing.T) {
	descs := payloadDescriptors()

	tests := []struct {
		name     string
		input    map[string]interface{}
		field    string
		wantOps  map[relation.Verb]interface{}
		wantErrs int
	}{
		{
			name:    "bare scalar on single relation becomes connect",
			input:   map[string]interface{}{"author": 42},
			field:   "author",
			wantOps: map[relation.Verb]interface{}{relation.VerbConnect: 42},
		},
		{
			name:  "id list on list relation becomes set",
			input: map[string]interface{}{"tags": []interface{}{1, 2, 3}},
			field: "tags",
			wantOps: map[relation.Verb]interface{}{
				relation.VerbSet: []interface{}{1, 2, 3},
			},
		},
		{
			name:  "object list on list relation becomes create",
			input: map[string]interface{}{"comments": []interface{}{map[string]interface{}{"body": "hi"}}},
			field: "comments",
			wantOps: map[relation.Verb]interface{}{
				relation.VerbCreate: []interface{}{map[string]interface{}{"body": "hi"}},
			},
		},
		{
			name:  "bare object on single relation becomes create",
			input: map[string]interface{}{"author": map[string]interface{}{"name": "A"}},
			field: "author",
			wantOps: map[relation.Verb]interface{}{
				relation.VerbCreate: map[string]interface{}{"name": "A"},
			},
		},
		{
			name:  "empty id list on list relation clears via set",
			input: map[string]interface{}{"tags": []interface{}{}},
			field: "tags",
			wantOps: map[relation.Verb]interface{}{
				relation.VerbSet: []interface{}{},
			},
		},
		{
			name:     "list on single relation is rejected",
			input:    map[string]interface{}{"author": []interface{}{1, 2}},
			wantErrs: 1,
		},
		{
			name:     "scalar on list relation is rejected",
			input:    map[string]interface{}{"tags": 7},
			wantErrs: 1,
		},
		{
			name:     "mixed id and object list is rejected",
			input:    map[string]interface{}{"tags": []interface{}{1, map[string]interface{}{"name": "x"}}},
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rels, errs := SplitInput(descs, tt.input)
			if tt.wantErrs > 0 {
				assert.Len(t, errs, tt.wantErrs)
				assert.Empty(t, rels)
				return
			}
			require.Empty(t, errs)
			require.Len(t, rels, 1)
			assert.Equal(t, tt.field, rels[0].Field)
			assert.Equal(t, tt.wantOps, rels[0].Ops)
		})
	}
}

func TestSplitInputVerbAvailability(t *testing.T) {
	descs := payloadDescriptors()

	t.Run("disconnect on single relation is rejected", func(t *testing.T) {
		_, rels, errs := SplitInput(descs, map[string]interface{}{
			"author": map[string]interface{}{"disconnect": 5},
		})
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "disconnect")
		assert.Empty(t, rels)
	})

	t.Run("set on single relation is rejected", func(t *testing.T) {
		_, rels, errs := SplitInput(descs, map[string]interface{}{
			"author": map[string]interface{}{"set": []interface{}{5}},
		})
		require.Len(t, errs, 1)
		assert.Empty(t, rels)
	})

	t.Run("mixed verb and plain keys are rejected", func(t *testing.T) {
		_, rels, errs := SplitInput(descs, map[string]interface{}{
			"tags": map[string]interface{}{"connect": []interface{}{1}, "name": "x"},
		})
		require.Len(t, errs, 1)
		assert.Empty(t, rels)
	})
}

func TestSplitInputOrdering(t *testing.T) {
	descs := payloadDescriptors()
	input := map[string]interface{}{
		"tags":     []interface{}{1},
		"comments": []interface{}{map[string]interface{}{"body": "b"}},
		"author":   3,
	}

	_, rels, errs := SplitInput(descs, input)
	require.Empty(t, errs)
	require.Len(t, rels, 3)

	fields := []string{rels[0].Field, rels[1].Field, rels[2].Field}
	assert.Equal(t, []string{"author", "comments", "tags"}, fields)
}

func TestIDList(t *testing.T) {
	ids, err := IDList("tags", []interface{}{1, "2"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, "2"}, ids)

	ids, err = IDList("author", 5)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{5}, ids)

	_, err = IDList("tags", []interface{}{map[string]interface{}{"id": 1}})
	var invalidID *InvalidIDError
	require.ErrorAs(t, err, &invalidID)
	assert.Equal(t, "tags", invalidID.Field)

	_, err = IDList("author", map[string]interface{}{"id": 1})
	require.ErrorAs(t, err, &invalidID)
}

func TestItemList(t *testing.T) {
	items, err := ItemList("comments", []interface{}{
		map[string]interface{}{"body": "a"},
		map[string]interface{}{"body": "b"},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0]["body"])

	items, err = ItemList("author", map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = ItemList("comments", []interface{}{"not-an-object"})
	var invalidID *InvalidIDError
	require.ErrorAs(t, err, &invalidID)
}
