package resolver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"nestql/internal/dbexec"
	"nestql/internal/introspection"
	"nestql/internal/nested"
	"nestql/internal/planner"
	"nestql/internal/relation"
	"nestql/internal/sqltype"

	"github.com/google/uuid"
)

// execContextExecutor is the minimal write surface used by mutation paths.
type execContextExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execExecutorForContext returns the active mutation transaction when present,
// otherwise the resolver's base executor.
func (r *Resolver) execExecutorForContext(ctx context.Context) execContextExecutor {
	if mc := dbexec.MutationContextFromContext(ctx); mc != nil && mc.Tx() != nil {
		return mc.Tx()
	}
	return r.executor
}

// compositeKey identifies a row of a table with a multi-column primary key.
// Columns and values are positionally aligned.
type compositeKey struct {
	columns []string
	values  []interface{}
}

func (k compositeKey) String() string {
	parts := make([]string, len(k.values))
	for i, v := range k.values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "/")
}

// sqlStore executes the nested engine's reads and writes against the
// database, always through the transaction bound to the request context.
type sqlStore struct {
	r *Resolver
}

var _ nested.Store = (*sqlStore)(nil)

func newSQLStore(r *Resolver) *sqlStore {
	return &sqlStore{r: r}
}

func (s *sqlStore) table(name string) (introspection.Table, error) {
	return s.r.findTable(name)
}

// pkWhere converts an opaque primary key value into column assignments.
func pkWhere(table introspection.Table, pk interface{}) (map[string]interface{}, error) {
	if key, ok := pk.(compositeKey); ok {
		if len(key.columns) != len(key.values) {
			return nil, fmt.Errorf("malformed composite key for table %s", table.Name)
		}
		where := make(map[string]interface{}, len(key.columns))
		for i, col := range key.columns {
			where[col] = key.values[i]
		}
		return where, nil
	}

	pkCols := introspection.PrimaryKeyColumns(table)
	if len(pkCols) == 0 {
		return nil, fmt.Errorf("table %s has no primary key", table.Name)
	}
	if len(pkCols) > 1 {
		// Identifiers for composite keys arrive as "v1/v2", matching
		// compositeKey.String().
		if parts, ok := splitCompositeID(pk, len(pkCols)); ok {
			where := make(map[string]interface{}, len(pkCols))
			for i, col := range pkCols {
				where[col.Name] = parts[i]
			}
			return where, nil
		}
		return nil, fmt.Errorf("table %s requires a composite key value", table.Name)
	}
	return map[string]interface{}{pkCols[0].Name: pk}, nil
}

// splitCompositeID parses the "v1/v2" identifier form into positional key
// values. Returns false when the value is not a string of matching arity.
func splitCompositeID(pk interface{}, arity int) ([]interface{}, bool) {
	text, ok := pk.(string)
	if !ok {
		return nil, false
	}
	parts := strings.Split(text, "/")
	if len(parts) != arity {
		return nil, false
	}
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		values[i] = part
	}
	return values, true
}

func (s *sqlStore) Get(ctx context.Context, tableName string, pk interface{}) (nested.Row, error) {
	table, err := s.table(tableName)
	if err != nil {
		return nil, err
	}
	where, err := pkWhere(table, pk)
	if err != nil {
		return nil, err
	}

	planned, err := planner.PlanSelectByColumns(table, table.Columns, where)
	if err != nil {
		return nil, err
	}

	rows, err := s.r.queryExecutorForContext(ctx).QueryContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return nil, normalizeQueryError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results, err := scanRows(rows, table.Columns)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (s *sqlStore) Create(ctx context.Context, tableName string, fields nested.Row, fkValues map[string]interface{}) (nested.Row, error) {
	table, err := s.table(tableName)
	if err != nil {
		return nil, err
	}

	colValues, err := mapInputColumns(table, fields)
	if err != nil {
		return nil, err
	}
	for col, value := range fkValues {
		colValues[col] = value
	}

	columns := make([]string, 0, len(colValues))
	for _, col := range table.Columns {
		if _, ok := colValues[col.Name]; ok {
			columns = append(columns, col.Name)
		}
	}
	values := make([]interface{}, len(columns))
	for i, col := range columns {
		values[i] = colValues[col]
	}

	planned, err := planner.PlanInsert(table, columns, values)
	if err != nil {
		return nil, err
	}

	result, err := s.r.execExecutorForContext(ctx).ExecContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return nil, err
	}

	pk, err := insertedPrimaryKey(table, colValues, result)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tableName, pk)
}

// insertedPrimaryKey determines the key of a freshly inserted row, from the
// supplied values or from the auto-increment result.
func insertedPrimaryKey(table introspection.Table, colValues map[string]interface{}, result sql.Result) (interface{}, error) {
	pkCols := introspection.PrimaryKeyColumns(table)
	if len(pkCols) == 0 {
		return nil, fmt.Errorf("table %s has no primary key", table.Name)
	}

	if len(pkCols) == 1 {
		pk := pkCols[0]
		if value, ok := colValues[pk.Name]; ok && value != nil {
			return value, nil
		}
		if pk.IsAutoIncrement || pk.IsAutoRandom {
			id, err := result.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("failed to read generated key for %s: %w", table.Name, err)
			}
			return id, nil
		}
		return nil, fmt.Errorf("cannot determine primary key for inserted %s row", table.Name)
	}

	key := compositeKey{
		columns: make([]string, len(pkCols)),
		values:  make([]interface{}, len(pkCols)),
	}
	for i, col := range pkCols {
		value, ok := colValues[col.Name]
		if !ok {
			return nil, fmt.Errorf("missing composite key column %s for inserted %s row", col.Name, table.Name)
		}
		key.columns[i] = col.Name
		key.values[i] = value
	}
	return key, nil
}

func (s *sqlStore) Update(ctx context.Context, tableName string, pk interface{}, fields nested.Row, fkValues map[string]interface{}) (nested.Row, error) {
	table, err := s.table(tableName)
	if err != nil {
		return nil, err
	}
	pkValues, err := pkWhere(table, pk)
	if err != nil {
		return nil, err
	}

	set, err := mapInputColumns(table, fields)
	if err != nil {
		return nil, err
	}
	for col, value := range fkValues {
		set[col] = value
	}
	// Never rewrite key columns through a plain update.
	for col := range pkValues {
		delete(set, col)
	}

	if len(set) == 0 {
		return s.Get(ctx, tableName, pk)
	}

	planned, err := planner.PlanUpdate(table, set, pkValues)
	if err != nil {
		return nil, err
	}

	if _, err := s.r.execExecutorForContext(ctx).ExecContext(ctx, planned.SQL, planned.Args...); err != nil {
		return nil, err
	}

	return s.Get(ctx, tableName, pk)
}

func (s *sqlStore) Delete(ctx context.Context, tableName string, pk interface{}) error {
	table, err := s.table(tableName)
	if err != nil {
		return err
	}
	pkValues, err := pkWhere(table, pk)
	if err != nil {
		return err
	}

	planned, err := planner.PlanDelete(table, pkValues)
	if err != nil {
		return err
	}

	_, err = s.r.execExecutorForContext(ctx).ExecContext(ctx, planned.SQL, planned.Args...)
	return err
}

func (s *sqlStore) PrimaryKey(tableName string, row nested.Row) (interface{}, error) {
	table, err := s.table(tableName)
	if err != nil {
		return nil, err
	}
	pkCols := introspection.PrimaryKeyColumns(table)
	if len(pkCols) == 0 {
		return nil, fmt.Errorf("table %s has no primary key", table.Name)
	}

	if len(pkCols) == 1 {
		value := row[introspection.GraphQLFieldName(pkCols[0])]
		if value == nil {
			return nil, fmt.Errorf("row of %s is missing its primary key", table.Name)
		}
		return value, nil
	}

	key := compositeKey{
		columns: make([]string, len(pkCols)),
		values:  make([]interface{}, len(pkCols)),
	}
	for i, col := range pkCols {
		value := row[introspection.GraphQLFieldName(col)]
		if value == nil {
			return nil, fmt.Errorf("row of %s is missing key column %s", table.Name, col.Name)
		}
		key.columns[i] = col.Name
		key.values[i] = value
	}
	return key, nil
}

func (s *sqlStore) ForwardLink(desc relation.Descriptor, relatedRow nested.Row) (map[string]interface{}, error) {
	relatedTable, err := s.table(desc.RelatedTable)
	if err != nil {
		return nil, err
	}
	if len(desc.LocalColumns) == 0 || len(desc.LocalColumns) != len(desc.RemoteColumns) {
		return nil, fmt.Errorf("invalid key mapping for relation %s", desc.FieldName)
	}

	link := make(map[string]interface{}, len(desc.LocalColumns))
	for i, localCol := range desc.LocalColumns {
		remoteField := graphQLFieldNameForColumn(relatedTable, desc.RemoteColumns[i])
		value := relatedRow[remoteField]
		if value == nil {
			return nil, fmt.Errorf("related %s row is missing key column %s", desc.RelatedTable, desc.RemoteColumns[i])
		}
		link[localCol] = value
	}
	return link, nil
}

func (s *sqlStore) ReverseLink(desc relation.Descriptor, parentRow nested.Row) (map[string]interface{}, error) {
	parentTable, err := s.table(desc.Table)
	if err != nil {
		return nil, err
	}
	if len(desc.LocalColumns) == 0 || len(desc.LocalColumns) != len(desc.RemoteColumns) {
		return nil, fmt.Errorf("invalid key mapping for relation %s", desc.FieldName)
	}

	link := make(map[string]interface{}, len(desc.RemoteColumns))
	for i, remoteCol := range desc.RemoteColumns {
		localField := graphQLFieldNameForColumn(parentTable, desc.LocalColumns[i])
		value := parentRow[localField]
		if value == nil {
			return nil, fmt.Errorf("parent %s row is missing key column %s", desc.Table, desc.LocalColumns[i])
		}
		link[remoteCol] = value
	}
	return link, nil
}

// junctionParentValues extracts the parent-side key values aligned with the
// junction's local FK columns.
func (s *sqlStore) junctionParentValues(desc relation.Descriptor, parentRow nested.Row) ([]interface{}, error) {
	parentTable, err := s.table(desc.Table)
	if err != nil {
		return nil, err
	}
	if desc.Junction == nil {
		return nil, fmt.Errorf("relation %s has no junction", desc.FieldName)
	}
	if len(desc.LocalColumns) != len(desc.Junction.LocalColumns) {
		return nil, fmt.Errorf("invalid junction mapping for relation %s", desc.FieldName)
	}

	values := make([]interface{}, len(desc.LocalColumns))
	for i, localCol := range desc.LocalColumns {
		field := graphQLFieldNameForColumn(parentTable, localCol)
		value := parentRow[field]
		if value == nil {
			return nil, fmt.Errorf("parent %s row is missing key column %s", desc.Table, localCol)
		}
		values[i] = value
	}
	return values, nil
}

// junctionRemoteValues expands one related primary key into junction remote
// FK column assignments.
func junctionRemoteValues(desc relation.Descriptor, relatedPK interface{}) ([]interface{}, error) {
	if key, ok := relatedPK.(compositeKey); ok {
		if len(key.values) != len(desc.Junction.RemoteColumns) {
			return nil, fmt.Errorf("composite key arity mismatch for relation %s", desc.FieldName)
		}
		return key.values, nil
	}
	if len(desc.Junction.RemoteColumns) != 1 {
		if values, ok := splitCompositeID(relatedPK, len(desc.Junction.RemoteColumns)); ok {
			return values, nil
		}
		return nil, fmt.Errorf("relation %s requires a composite related key", desc.FieldName)
	}
	return []interface{}{relatedPK}, nil
}

func (s *sqlStore) M2MAdd(ctx context.Context, desc relation.Descriptor, parentRow nested.Row, relatedPKs []interface{}) error {
	if desc.Junction == nil {
		return fmt.Errorf("relation %s has no junction", desc.FieldName)
	}
	junctionTable, err := s.table(desc.Junction.Table)
	if err != nil {
		return err
	}
	parentValues, err := s.junctionParentValues(desc, parentRow)
	if err != nil {
		return err
	}

	columns := make([]string, 0, len(desc.Junction.LocalColumns)+len(desc.Junction.RemoteColumns))
	columns = append(columns, desc.Junction.LocalColumns...)
	columns = append(columns, desc.Junction.RemoteColumns...)

	executor := s.r.execExecutorForContext(ctx)
	for _, relatedPK := range relatedPKs {
		remoteValues, err := junctionRemoteValues(desc, relatedPK)
		if err != nil {
			return err
		}
		values := make([]interface{}, 0, len(columns))
		values = append(values, parentValues...)
		values = append(values, remoteValues...)

		planned, err := planner.PlanInsert(junctionTable, columns, values)
		if err != nil {
			return err
		}
		if _, err := executor.ExecContext(ctx, planned.SQL, planned.Args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) M2MRemove(ctx context.Context, desc relation.Descriptor, parentRow nested.Row, relatedPKs []interface{}) error {
	if desc.Junction == nil {
		return fmt.Errorf("relation %s has no junction", desc.FieldName)
	}
	junctionTable, err := s.table(desc.Junction.Table)
	if err != nil {
		return err
	}
	parentValues, err := s.junctionParentValues(desc, parentRow)
	if err != nil {
		return err
	}

	executor := s.r.execExecutorForContext(ctx)
	for _, relatedPK := range relatedPKs {
		remoteValues, err := junctionRemoteValues(desc, relatedPK)
		if err != nil {
			return err
		}
		where := make(map[string]interface{}, len(parentValues)+len(remoteValues))
		for i, col := range desc.Junction.LocalColumns {
			where[col] = parentValues[i]
		}
		for i, col := range desc.Junction.RemoteColumns {
			where[col] = remoteValues[i]
		}

		planned, err := planner.PlanDeleteByColumns(junctionTable, where)
		if err != nil {
			return err
		}
		if _, err := executor.ExecContext(ctx, planned.SQL, planned.Args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) M2MSet(ctx context.Context, desc relation.Descriptor, parentRow nested.Row, relatedPKs []interface{}) error {
	if desc.Junction == nil {
		return fmt.Errorf("relation %s has no junction", desc.FieldName)
	}
	junctionTable, err := s.table(desc.Junction.Table)
	if err != nil {
		return err
	}
	parentValues, err := s.junctionParentValues(desc, parentRow)
	if err != nil {
		return err
	}

	// Replace the full link set inside the transaction: drop every link for
	// this parent, then relink the requested rows.
	where := make(map[string]interface{}, len(parentValues))
	for i, col := range desc.Junction.LocalColumns {
		where[col] = parentValues[i]
	}
	planned, err := planner.PlanDeleteByColumns(junctionTable, where)
	if err != nil {
		return err
	}
	if _, err := s.r.execExecutorForContext(ctx).ExecContext(ctx, planned.SQL, planned.Args...); err != nil {
		return err
	}

	return s.M2MAdd(ctx, desc, parentRow, relatedPKs)
}

func (s *sqlStore) ReverseAssign(ctx context.Context, desc relation.Descriptor, parentRow nested.Row, relatedPKs []interface{}) error {
	link, err := s.ReverseLink(desc, parentRow)
	if err != nil {
		return err
	}
	return s.updateRelatedByPKs(ctx, desc, relatedPKs, link)
}

func (s *sqlStore) ReverseClear(ctx context.Context, desc relation.Descriptor, parentRow nested.Row, relatedPKs []interface{}) error {
	set := make(map[string]interface{}, len(desc.RemoteColumns))
	for _, col := range desc.RemoteColumns {
		set[col] = nil
	}
	return s.updateRelatedByPKs(ctx, desc, relatedPKs, set)
}

func (s *sqlStore) ReverseSet(ctx context.Context, desc relation.Descriptor, parentRow nested.Row, relatedPKs []interface{}) error {
	relatedTable, err := s.table(desc.RelatedTable)
	if err != nil {
		return err
	}
	link, err := s.ReverseLink(desc, parentRow)
	if err != nil {
		return err
	}

	parentValues := make([]interface{}, 0, len(desc.RemoteColumns))
	for _, col := range desc.RemoteColumns {
		parentValues = append(parentValues, link[col])
	}

	pkCols := introspection.PrimaryKeyColumns(relatedTable)
	if len(pkCols) != 1 {
		return fmt.Errorf("reverse set requires a single-column primary key on %s", desc.RelatedTable)
	}

	planned, err := planner.PlanForeignKeyClearExcept(relatedTable, desc.RemoteColumns, parentValues, pkCols[0].Name, relatedPKs)
	if err != nil {
		return err
	}
	if _, err := s.r.execExecutorForContext(ctx).ExecContext(ctx, planned.SQL, planned.Args...); err != nil {
		return err
	}

	if len(relatedPKs) == 0 {
		return nil
	}
	return s.updateRelatedByPKs(ctx, desc, relatedPKs, link)
}

// updateRelatedByPKs applies the same column assignments to every identified
// row of the relation's related table.
func (s *sqlStore) updateRelatedByPKs(ctx context.Context, desc relation.Descriptor, relatedPKs []interface{}, set map[string]interface{}) error {
	if len(relatedPKs) == 0 {
		return nil
	}
	relatedTable, err := s.table(desc.RelatedTable)
	if err != nil {
		return err
	}

	executor := s.r.execExecutorForContext(ctx)
	for _, relatedPK := range relatedPKs {
		where, err := pkWhere(relatedTable, relatedPK)
		if err != nil {
			return err
		}
		planned, err := planner.PlanUpdateByColumns(relatedTable, set, where)
		if err != nil {
			return err
		}
		if _, err := executor.ExecContext(ctx, planned.SQL, planned.Args...); err != nil {
			return err
		}
	}
	return nil
}

// mapInputColumns converts a GraphQL input map into column assignments,
// normalizing values that need a database representation (SET lists, UUIDs).
func mapInputColumns(table introspection.Table, fields map[string]interface{}) (map[string]interface{}, error) {
	if len(fields) == 0 {
		return map[string]interface{}{}, nil
	}

	columnByField := make(map[string]introspection.Column, len(table.Columns))
	for _, col := range table.Columns {
		columnByField[introspection.GraphQLFieldName(col)] = col
	}

	out := make(map[string]interface{}, len(fields))
	for fieldName, value := range fields {
		col, ok := columnByField[fieldName]
		if !ok {
			return nil, fmt.Errorf("unknown field %s for table %s", fieldName, table.Name)
		}
		normalized, err := normalizeColumnInputValue(col, value)
		if err != nil {
			return nil, err
		}
		out[col.Name] = normalized
	}
	return out, nil
}

func normalizeColumnInputValue(col introspection.Column, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch introspection.EffectiveGraphQLType(col) {
	case sqltype.TypeSet:
		return joinSetInputValue(col, value)
	case sqltype.TypeUUID:
		return normalizeUUIDInputValue(col, value)
	default:
		return value, nil
	}
}

func joinSetInputValue(col introspection.Column, value interface{}) (interface{}, error) {
	switch list := value.(type) {
	case []interface{}:
		members := make([]string, len(list))
		for i, member := range list {
			text, ok := member.(string)
			if !ok {
				return nil, fmt.Errorf("set column %s requires string members", col.Name)
			}
			members[i] = text
		}
		return strings.Join(members, ","), nil
	case []string:
		return strings.Join(list, ","), nil
	case string:
		return list, nil
	default:
		return nil, fmt.Errorf("set column %s requires a list value", col.Name)
	}
}

func normalizeUUIDInputValue(col introspection.Column, value interface{}) (interface{}, error) {
	text, ok := value.(string)
	if !ok {
		return value, nil
	}
	parsed, err := uuid.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID for column %s: %w", col.Name, err)
	}
	if strings.EqualFold(col.DataType, "binary") || strings.EqualFold(col.DataType, "varbinary") {
		raw := parsed[:]
		return raw, nil
	}
	return parsed.String(), nil
}
