package planner

import (
	"errors"
	"fmt"

	"nestql/internal/introspection"
	"nestql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// ErrNoPrimaryKey indicates a required primary key is missing for a plan.
var ErrNoPrimaryKey = errors.New("no primary key")

// BatchParentAlias is the column alias used to return parent keys in batch queries.
const BatchParentAlias = "__batch_parent_id"

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// PlanTableList builds the SQL for a root-level list query.
func PlanTableList(table introspection.Table, columns []introspection.Column, limit, offset int, orderBy *OrderBy, where *WhereClause) (SQLQuery, error) {
	if err := validateLimitOffset(limit, offset); err != nil {
		return SQLQuery{}, err
	}

	builder := sq.Select(columnNames(table, columns)...).
		From(sqlutil.QuoteIdentifier(table.Name))
	if where != nil && where.Condition != nil {
		builder = builder.Where(where.Condition)
	}
	if orderBy != nil && len(orderBy.Columns) > 0 {
		builder = builder.OrderBy(orderByClauses(orderBy)...)
	}
	builder = builder.Suffix("LIMIT ? OFFSET ?", limit, offset)

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanTableByPK builds the SQL for a single-column primary key lookup.
func PlanTableByPK(table introspection.Table, columns []introspection.Column, pk *introspection.Column, pkValue interface{}) (SQLQuery, error) {
	query, args, err := sq.Select(columnNames(table, columns)...).
		From(sqlutil.QuoteIdentifier(table.Name)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(pk.Name): pkValue}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}

	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanTableByPKColumns builds the SQL for a composite primary key lookup.
func PlanTableByPKColumns(table introspection.Table, columns []introspection.Column, pkCols []introspection.Column, values map[string]interface{}) (SQLQuery, error) {
	whereClause := sq.Eq{}
	for _, pk := range pkCols {
		value, ok := values[pk.Name]
		if !ok {
			return SQLQuery{}, fmt.Errorf("missing value for primary key column %s", pk.Name)
		}
		whereClause[sqlutil.QuoteIdentifier(pk.Name)] = value
	}

	query, args, err := sq.Select(columnNames(table, columns)...).
		From(sqlutil.QuoteIdentifier(table.Name)).
		Where(whereClause).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}

	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanUniqueKeyLookup builds the SQL for a unique index lookup.
func PlanUniqueKeyLookup(table introspection.Table, columns []introspection.Column, idx introspection.Index, values map[string]interface{}) (SQLQuery, error) {
	// Build WHERE clause for all columns in the unique index
	whereClause := sq.Eq{}
	for _, colName := range idx.Columns {
		value, ok := values[colName]
		if !ok {
			return SQLQuery{}, fmt.Errorf("missing value for unique key column %s", colName)
		}
		whereClause[sqlutil.QuoteIdentifier(colName)] = value
	}

	query, args, err := sq.Select(columnNames(table, columns)...).
		From(sqlutil.QuoteIdentifier(table.Name)).
		Where(whereClause).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}

	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanManyToOne builds the SQL for a many-to-one lookup (FK -> parent table).
func PlanManyToOne(relatedTable introspection.Table, columns []introspection.Column, remoteColumn string, fkValue interface{}) (SQLQuery, error) {
	return planManyToOneColumns(relatedTable, columns, []string{remoteColumn}, []interface{}{fkValue})
}

// planManyToOneColumns handles composite FK mappings.
func planManyToOneColumns(relatedTable introspection.Table, columns []introspection.Column, remoteColumns []string, fkValues []interface{}) (SQLQuery, error) {
	if len(remoteColumns) == 0 || len(remoteColumns) != len(fkValues) {
		return SQLQuery{}, fmt.Errorf("many-to-one mapping requires equal remote columns and values")
	}

	whereClause := sq.Eq{}
	for i, col := range remoteColumns {
		whereClause[sqlutil.QuoteIdentifier(col)] = fkValues[i]
	}

	query, args, err := sq.Select(columnNames(relatedTable, columns)...).
		From(sqlutil.QuoteIdentifier(relatedTable.Name)).
		Where(whereClause).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanOneToMany builds the SQL for the child side of a one-to-many relationship.
func PlanOneToMany(relatedTable introspection.Table, columns []introspection.Column, remoteColumn string, value interface{}, limit, offset int, orderBy *OrderBy) (SQLQuery, error) {
	if err := validateLimitOffset(limit, offset); err != nil {
		return SQLQuery{}, err
	}

	builder := sq.Select(columnNames(relatedTable, columns)...).
		From(sqlutil.QuoteIdentifier(relatedTable.Name)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(remoteColumn): value})
	if orderBy != nil && len(orderBy.Columns) > 0 {
		builder = builder.OrderBy(orderByClauses(orderBy)...)
	}
	builder = builder.Suffix("LIMIT ? OFFSET ?", limit, offset)

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanManyToMany builds the SQL for a many-to-many lookup through a junction table.
func PlanManyToMany(
	junctionTable string,
	targetTable introspection.Table,
	junctionLocalFK, junctionRemoteFK, remoteColumn string,
	columns []introspection.Column,
	pkValue interface{},
	limit, offset int,
	orderBy *OrderBy,
) (SQLQuery, error) {
	if err := validateLimitOffset(limit, offset); err != nil {
		return SQLQuery{}, err
	}

	quotedTarget := sqlutil.QuoteIdentifier(targetTable.Name)
	quotedJunction := sqlutil.QuoteIdentifier(junctionTable)

	builder := sq.Select(columnNames(targetTable, columns)...).
		From(quotedTarget).
		InnerJoin(fmt.Sprintf(
			"%s ON %s.%s = %s.%s",
			quotedJunction,
			quotedJunction, sqlutil.QuoteIdentifier(junctionRemoteFK),
			quotedTarget, sqlutil.QuoteIdentifier(remoteColumn),
		)).
		Where(sq.Eq{fmt.Sprintf("%s.%s", quotedJunction, sqlutil.QuoteIdentifier(junctionLocalFK)): pkValue})
	if orderBy != nil && len(orderBy.Columns) > 0 {
		builder = builder.OrderBy(orderByClauses(orderBy)...)
	}
	builder = builder.Suffix("LIMIT ? OFFSET ?", limit, offset)

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanEdgeList builds the SQL for listing a junction table's own rows for one parent.
func PlanEdgeList(junctionTable introspection.Table, junctionLocalFK string, columns []introspection.Column, pkValue interface{}, limit, offset int, orderBy *OrderBy) (SQLQuery, error) {
	if err := validateLimitOffset(limit, offset); err != nil {
		return SQLQuery{}, err
	}

	builder := sq.Select(columnNames(junctionTable, columns)...).
		From(sqlutil.QuoteIdentifier(junctionTable.Name)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(junctionLocalFK): pkValue})
	if orderBy != nil && len(orderBy.Columns) > 0 {
		builder = builder.OrderBy(orderByClauses(orderBy)...)
	}
	builder = builder.Suffix("LIMIT ? OFFSET ?", limit, offset)

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}
