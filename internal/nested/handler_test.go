package nested

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestql/internal/audit"
	"nestql/internal/relation"
)

// staticSource serves fixed descriptors per table.
type staticSource map[string][]relation.Descriptor

func (s staticSource) Describe(table string) ([]relation.Descriptor, error) {
	descs, ok := s[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", relation.ErrUnknownTable, table)
	}
	return descs, nil
}

func blogSource() staticSource {
	return staticSource{
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
				FieldName: "comments", Kind: relation.KindReverse,
				Table: "posts", RelatedTable: "comments", RelatedTypeName: "Comment",
				LocalColumns: []string{"id"}, RemoteColumns: []string{"post_id"},
				RemoteField: "post",
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
		"comments": {
			{
				FieldName: "post", Kind: relation.KindOne,
				Table: "comments", RelatedTable: "posts", RelatedTypeName: "Post",
				LocalColumns: []string{"post_id"}, RemoteColumns: []string{"id"},
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

// fakeStore is an in-memory Store journaling every call.
type fakeStore struct {
	rows    map[string]map[string]Row
	nextID  int64
	journal []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]map[string]Row), nextID: 1}
}

func (s *fakeStore) seed(table string, row Row) {
	if s.rows[table] == nil {
		s.rows[table] = make(map[string]Row)
	}
	if id, ok := row["id"].(int64); ok && id >= s.nextID {
		s.nextID = id + 1
	}
	s.rows[table][fmt.Sprint(row["id"])] = row
}

func (s *fakeStore) log(format string, args ...interface{}) {
	s.journal = append(s.journal, fmt.Sprintf(format, args...))
}

func (s *fakeStore) Get(_ context.Context, table string, pk interface{}) (Row, error) {
	s.log("get %s %v", table, pk)
	row, ok := s.rows[table][fmt.Sprint(pk)]
	if !ok {
		return nil, nil
	}
	copied := make(Row, len(row))
	for k, v := range row {
		copied[k] = v
	}
	return copied, nil
}

func (s *fakeStore) Create(_ context.Context, table string, fields Row, fkValues map[string]interface{}) (Row, error) {
	row := make(Row, len(fields)+len(fkValues)+1)
	for k, v := range fields {
		row[k] = v
	}
	for k, v := range fkValues {
		row[k] = v
	}
	row["id"] = s.nextID
	s.nextID++
	if s.rows[table] == nil {
		s.rows[table] = make(map[string]Row)
	}
	s.rows[table][fmt.Sprint(row["id"])] = row
	s.log("create %s %v", table, row["id"])
	return row, nil
}

func (s *fakeStore) Update(_ context.Context, table string, pk interface{}, fields Row, fkValues map[string]interface{}) (Row, error) {
	s.log("update %s %v", table, pk)
	row, ok := s.rows[table][fmt.Sprint(pk)]
	if !ok {
		return nil, fmt.Errorf("update of missing row %s/%v", table, pk)
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		row[k] = v
	}
	for k, v := range fkValues {
		row[k] = v
	}
	return row, nil
}

func (s *fakeStore) Delete(_ context.Context, table string, pk interface{}) error {
	s.log("delete %s %v", table, pk)
	delete(s.rows[table], fmt.Sprint(pk))
	return nil
}

func (s *fakeStore) PrimaryKey(_ string, row Row) (interface{}, error) {
	pk, ok := row["id"]
	if !ok || pk == nil {
		return nil, fmt.Errorf("row has no id")
	}
	return pk, nil
}

func (s *fakeStore) ForwardLink(desc relation.Descriptor, relatedRow Row) (map[string]interface{}, error) {
	link := make(map[string]interface{}, len(desc.LocalColumns))
	for i, local := range desc.LocalColumns {
		link[local] = relatedRow[desc.RemoteColumns[i]]
	}
	return link, nil
}

func (s *fakeStore) ReverseLink(desc relation.Descriptor, parentRow Row) (map[string]interface{}, error) {
	link := make(map[string]interface{}, len(desc.RemoteColumns))
	for i, remote := range desc.RemoteColumns {
		link[remote] = parentRow[desc.LocalColumns[i]]
	}
	return link, nil
}

func (s *fakeStore) M2MAdd(_ context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error {
	s.log("m2m_add %s parent=%v related=%v", desc.Junction.Table, parentRow["id"], relatedPKs)
	return nil
}

func (s *fakeStore) M2MRemove(_ context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error {
	s.log("m2m_remove %s parent=%v related=%v", desc.Junction.Table, parentRow["id"], relatedPKs)
	return nil
}

func (s *fakeStore) M2MSet(_ context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error {
	s.log("m2m_set %s parent=%v related=%v", desc.Junction.Table, parentRow["id"], relatedPKs)
	return nil
}

func (s *fakeStore) ReverseAssign(_ context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error {
	s.log("reverse_assign %s parent=%v related=%v", desc.RelatedTable, parentRow["id"], relatedPKs)
	fkCol := desc.RemoteColumns[0]
	parentVal := parentRow[desc.LocalColumns[0]]
	for _, pk := range relatedPKs {
		if row, ok := s.rows[desc.RelatedTable][fmt.Sprint(pk)]; ok {
			row[fkCol] = parentVal
		}
	}
	return nil
}

func (s *fakeStore) ReverseClear(_ context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error {
	s.log("reverse_clear %s parent=%v related=%v", desc.RelatedTable, parentRow["id"], relatedPKs)
	fkCol := desc.RemoteColumns[0]
	for _, pk := range relatedPKs {
		if row, ok := s.rows[desc.RelatedTable][fmt.Sprint(pk)]; ok {
			row[fkCol] = nil
		}
	}
	return nil
}

func (s *fakeStore) ReverseSet(_ context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error {
	s.log("reverse_set %s parent=%v related=%v", desc.RelatedTable, parentRow["id"], relatedPKs)
	fkCol := desc.RemoteColumns[0]
	parentVal := parentRow[desc.LocalColumns[0]]
	keep := make(map[string]struct{}, len(relatedPKs))
	for _, pk := range relatedPKs {
		keep[fmt.Sprint(pk)] = struct{}{}
	}
	for pk, row := range s.rows[desc.RelatedTable] {
		if _, kept := keep[pk]; kept {
			row[fkCol] = parentVal
		} else if fmt.Sprint(row[fkCol]) == fmt.Sprint(parentVal) {
			row[fkCol] = nil
		}
	}
	return nil
}

func journalIndex(t *testing.T, journal []string, prefix string) int {
	t.Helper()
	for i, entry := range journal {
		if strings.HasPrefix(entry, prefix) {
			return i
		}
	}
	t.Fatalf("journal entry %q not found in %v", prefix, journal)
	return -1
}

type captureRecorder struct {
	events []audit.Event
}

func (r *captureRecorder) Record(_ context.Context, event audit.Event) {
	r.events = append(r.events, event)
}

type verbDenier struct {
	verb relation.Verb
	err  error
}

func (d *verbDenier) AssertRelationOperationAllowed(_ context.Context, _, _ string, verb relation.Verb) error {
	if verb == d.verb {
		return d.err
	}
	return nil
}

type tenantByColumn struct {
	tenant string
}

func (c *tenantByColumn) CheckTenantAccess(_ context.Context, typeName, operation string, row map[string]interface{}) error {
	value, ok := row["tenant_id"]
	if !ok || value == nil || fmt.Sprint(value) == c.tenant {
		return nil
	}
	return &TenantAccessError{TypeName: typeName, Operation: operation}
}

func TestExecutorCreateForwardConnect(t *testing.T) {
	store := newFakeStore()
	store.seed("authors", Row{"id": int64(7), "name": "A"})
	exec := NewExecutor(blogSource(), store)

	row, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"title":  "hello",
		"author": 7,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", row["title"])
	assert.Equal(t, int64(7), row["author_id"], "connect resolves into the FK column")

	// The related row is verified before the root insert.
	assert.Less(t, journalIndex(t, store.journal, "get authors"), journalIndex(t, store.journal, "create posts"))
}

func TestExecutorCreateForwardCreate(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store)

	row, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"title":        "hello",
		"nestedAuthor": map[string]interface{}{"create": map[string]interface{}{"name": "New"}},
	})
	require.NoError(t, err)

	assert.Less(t, journalIndex(t, store.journal, "create authors"), journalIndex(t, store.journal, "create posts"),
		"related row is created before the parent that references it")
	author := store.rows["authors"][fmt.Sprint(row["author_id"])]
	require.NotNil(t, author)
	assert.Equal(t, "New", author["name"])
}

func TestExecutorNestedSlotIgnoresPlainValue(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store)

	_, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"author":       999,
		"nestedAuthor": map[string]interface{}{"create": map[string]interface{}{"name": "New"}},
	})
	require.NoError(t, err)

	for _, entry := range store.journal {
		assert.NotEqual(t, "get authors 999", entry, "overridden plain value must not be resolved")
	}
}

func TestExecutorListVerbOrder(t *testing.T) {
	store := newFakeStore()
	store.seed("tags", Row{"id": int64(1)})
	store.seed("tags", Row{"id": int64(2)})
	store.seed("tags", Row{"id": int64(3)})
	exec := NewExecutor(blogSource(), store)

	_, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"title": "t",
		"tags": map[string]interface{}{
			"connect":    []interface{}{1},
			"disconnect": []interface{}{2},
			"set":        []interface{}{3},
		},
	})
	require.NoError(t, err)

	rootAt := journalIndex(t, store.journal, "create posts")
	setAt := journalIndex(t, store.journal, "m2m_set")
	removeAt := journalIndex(t, store.journal, "m2m_remove")
	addAt := journalIndex(t, store.journal, "m2m_add")

	assert.Less(t, rootAt, setAt, "list relations run after the root insert")
	assert.Less(t, setAt, removeAt, "set runs before disconnect")
	assert.Less(t, removeAt, addAt, "disconnect runs before connect")
}

func TestExecutorListRelationsSortedByField(t *testing.T) {
	store := newFakeStore()
	store.seed("tags", Row{"id": int64(1)})
	exec := NewExecutor(blogSource(), store)

	_, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"tags":     map[string]interface{}{"connect": []interface{}{1}},
		"comments": map[string]interface{}{"create": []interface{}{map[string]interface{}{"body": "b"}}},
	})
	require.NoError(t, err)

	assert.Less(t, journalIndex(t, store.journal, "create comments"), journalIndex(t, store.journal, "m2m_add"),
		"comments processes before tags in field order")
}

func TestExecutorReverseCreateInjectsParentFK(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store)

	author, err := exec.Create(context.Background(), "authors", "Author", map[string]interface{}{
		"name": "A",
		"nestedPosts": map[string]interface{}{
			"create": []interface{}{
				map[string]interface{}{"title": "p1"},
				map[string]interface{}{"title": "p2"},
			},
		},
	})
	require.NoError(t, err)

	var count int
	for _, row := range store.rows["posts"] {
		assert.Equal(t, author["id"], row["author_id"])
		count++
	}
	assert.Equal(t, 2, count)
}

func TestExecutorSelfReferentialCreateIsCircular(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store)

	_, err := exec.Create(context.Background(), "categories", "Category", map[string]interface{}{
		"name": "leaf",
		"nestedParent": map[string]interface{}{
			"create": map[string]interface{}{"name": "root"},
		},
	})

	var circular *CircularReferenceError
	require.ErrorAs(t, err, &circular)
	assert.Equal(t, "Category", circular.TypeName)
	assert.Equal(t, []string{"Category", "Category"}, circular.Path)
	assert.Empty(t, store.rows["categories"], "no writes survive a circular payload")
}

func TestExecutorDiamondReferencesAreLegal(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store)

	row, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"title":          "t",
		"nestedAuthor":   map[string]interface{}{"create": map[string]interface{}{"name": "A"}},
		"nestedReviewer": map[string]interface{}{"create": map[string]interface{}{"name": "R"}},
	})
	require.NoError(t, err)

	assert.Len(t, store.rows["authors"], 2)
	assert.NotNil(t, row["author_id"])
	assert.NotNil(t, row["reviewer_id"])
	assert.NotEqual(t, row["author_id"], row["reviewer_id"])
}

func TestExecutorDepthLimit(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store, WithLimits(2, 100))

	_, err := exec.Create(context.Background(), "comments", "Comment", map[string]interface{}{
		"body": "c",
		"nestedPost": map[string]interface{}{
			"create": map[string]interface{}{
				"title": "p",
				"nestedAuthor": map[string]interface{}{
					"create": map[string]interface{}{"name": "A"},
				},
			},
		},
	})

	var depthErr *DepthError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, 2, depthErr.MaxDepth)
	assert.Equal(t, 3, depthErr.CurrentDepth)
	assert.Empty(t, store.rows, "no writes survive a depth violation")
}

func TestExecutorBulkLimitOnConnect(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store, WithLimits(10, 2))

	_, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"tags": map[string]interface{}{"connect": []interface{}{1, 2, 3}},
	})

	var bulkErr *BulkSizeError
	require.ErrorAs(t, err, &bulkErr)
	assert.Equal(t, 2, bulkErr.MaxSize)
	assert.Equal(t, 3, bulkErr.ActualSize)
	assert.Equal(t, "tags", bulkErr.Field)
}

func TestExecutorUpdateDeduplicatesRepeatedRows(t *testing.T) {
	store := newFakeStore()
	store.seed("authors", Row{"id": int64(1), "name": "A"})
	store.seed("posts", Row{"id": int64(5), "title": "old", "author_id": int64(1)})
	exec := NewExecutor(blogSource(), store)

	_, err := exec.Update(context.Background(), "authors", "Author", 1, map[string]interface{}{
		"nestedPosts": map[string]interface{}{
			"update": []interface{}{
				map[string]interface{}{"id": 5, "title": "first"},
				map[string]interface{}{"id": 5, "title": "second"},
			},
		},
	})
	require.NoError(t, err)

	var updates int
	for _, entry := range store.journal {
		if strings.HasPrefix(entry, "update posts") {
			updates++
		}
	}
	assert.Equal(t, 1, updates, "second write to the same row is skipped")
	assert.Equal(t, "first", store.rows["posts"]["5"]["title"])
}

func TestExecutorConnectNotFound(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store)

	_, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"author": 404,
	})

	var notFound *RelatedNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Author", notFound.TypeName)
	assert.Equal(t, "author", notFound.Field)
	assert.Equal(t, 404, notFound.IDValue)
	assert.Empty(t, store.rows["posts"])
}

func TestExecutorUpdateRootNotFound(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store)

	_, err := exec.Update(context.Background(), "posts", "Post", 404, map[string]interface{}{"title": "x"})

	var notFound *RelatedNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Post", notFound.TypeName)
	assert.Equal(t, 404, notFound.IDValue)
}

func TestExecutorPermissionDeniedStopsDispatch(t *testing.T) {
	denied := &OperationDisabledError{TypeName: "Post", Field: "tags"}
	store := newFakeStore()
	exec := NewExecutor(blogSource(), store,
		WithPermissionChecker(&verbDenier{verb: relation.VerbCreate, err: denied}))

	_, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"title": "t",
		"tags":  map[string]interface{}{"create": []interface{}{map[string]interface{}{"name": "x"}}},
	})

	var disabled *OperationDisabledError
	require.ErrorAs(t, err, &disabled)
	assert.Empty(t, store.rows["tags"], "denied create never reaches the store")
}

func TestExecutorTenantDenialOnConnectTarget(t *testing.T) {
	store := newFakeStore()
	store.seed("authors", Row{"id": int64(7), "name": "A", "tenant_id": "globex"})
	exec := NewExecutor(blogSource(), store, WithTenantChecker(&tenantByColumn{tenant: "acme"}))

	_, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"author": 7,
	})

	var tenantErr *TenantAccessError
	require.ErrorAs(t, err, &tenantErr)
	assert.Equal(t, "Author", tenantErr.TypeName)
	assert.Equal(t, "connect", tenantErr.Operation)
}

func TestExecutorDelete(t *testing.T) {
	store := newFakeStore()
	store.seed("posts", Row{"id": int64(5), "title": "bye"})
	recorder := &captureRecorder{}
	exec := NewExecutor(blogSource(), store, WithAuditRecorder(recorder))

	before, err := exec.Delete(context.Background(), "posts", "Post", 5)
	require.NoError(t, err)
	assert.Equal(t, "bye", before["title"])
	assert.Empty(t, store.rows["posts"])

	require.Len(t, recorder.events, 1)
	assert.Equal(t, audit.ActionDelete, recorder.events[0].Action)
	assert.Equal(t, "bye", recorder.events[0].Before["title"])
	assert.Nil(t, recorder.events[0].After)
}

func TestExecutorAuditTrail(t *testing.T) {
	store := newFakeStore()
	store.seed("tags", Row{"id": int64(3)})
	recorder := &captureRecorder{}
	exec := NewExecutor(blogSource(), store, WithAuditRecorder(recorder))

	_, err := exec.Create(context.Background(), "posts", "Post", map[string]interface{}{
		"title": "t",
		"tags":  map[string]interface{}{"connect": []interface{}{3}},
	})
	require.NoError(t, err)

	require.Len(t, recorder.events, 2)
	assert.Equal(t, audit.ActionCreate, recorder.events[0].Action)
	assert.Equal(t, "posts", recorder.events[0].Table)
	assert.NotNil(t, recorder.events[0].PK)
	assert.Equal(t, audit.ActionConnect, recorder.events[1].Action)
	assert.Equal(t, Row{"tags": []interface{}{3}}, recorder.events[1].After)
}

func TestExecutorReverseSetReplacesChildren(t *testing.T) {
	store := newFakeStore()
	store.seed("posts", Row{"id": int64(1), "title": "p"})
	store.seed("comments", Row{"id": int64(10), "body": "keep me out", "post_id": int64(1)})
	store.seed("comments", Row{"id": int64(11), "body": "stay", "post_id": nil})
	exec := NewExecutor(blogSource(), store)

	_, err := exec.Update(context.Background(), "posts", "Post", 1, map[string]interface{}{
		"comments": map[string]interface{}{"set": []interface{}{11}},
	})
	require.NoError(t, err)

	assert.Nil(t, store.rows["comments"]["10"]["post_id"], "previous child is detached")
	assert.Equal(t, int64(1), store.rows["comments"]["11"]["post_id"])
}

func TestExecutorStructuredSetCreatesMembers(t *testing.T) {
	store := newFakeStore()
	store.seed("posts", Row{"id": int64(1), "title": "p"})
	exec := NewExecutor(blogSource(), store)

	_, err := exec.Update(context.Background(), "posts", "Post", 1, map[string]interface{}{
		"comments": map[string]interface{}{
			"set": []interface{}{map[string]interface{}{"body": "fresh"}},
		},
	})
	require.NoError(t, err)

	assert.Less(t, journalIndex(t, store.journal, "create comments"), journalIndex(t, store.journal, "reverse_set"),
		"structured members are created before the set is applied")
}
