package planner

import (
	"fmt"
	"strings"

	"nestql/internal/introspection"
	"nestql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// PlanManyToOneBatch builds the SQL for a batched many-to-one lookup. The FK
// column is selected a second time under BatchParentAlias so rows can be
// matched back to their parents after scanning.
func PlanManyToOneBatch(relatedTable introspection.Table, columns []introspection.Column, remoteColumn string, values []interface{}) (SQLQuery, error) {
	if len(values) == 0 {
		return SQLQuery{}, nil
	}

	quotedRemote := sqlutil.QuoteIdentifier(remoteColumn)
	builder := sq.Select(columnNames(relatedTable, columns)...).
		Column(fmt.Sprintf("%s AS %s", quotedRemote, BatchParentAlias)).
		From(sqlutil.QuoteIdentifier(relatedTable.Name)).
		Where(sq.Eq{quotedRemote: values})

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanOneToManyBatch builds a batched one-to-many SQL query with per-parent
// limits enforced through a ROW_NUMBER window.
func PlanOneToManyBatch(
	relatedTable introspection.Table,
	columns []introspection.Column,
	remoteColumn string,
	values []interface{},
	limit, offset int,
	orderBy *OrderBy,
) (SQLQuery, error) {
	if len(values) == 0 {
		return SQLQuery{}, nil
	}
	if err := validateLimitOffset(limit, offset); err != nil {
		return SQLQuery{}, err
	}

	orderClause, err := batchOrderClause(relatedTable, orderBy)
	if err != nil {
		return SQLQuery{}, err
	}
	columnList := strings.Join(columnNames(relatedTable, columns), ", ")
	quotedTable := sqlutil.QuoteIdentifier(relatedTable.Name)
	partitionColumn := sqlutil.QuoteIdentifier(remoteColumn)
	return buildBatchWindowQuery(quotedTable, columnList, partitionColumn, orderClause, values, limit, offset)
}

// PlanManyToManyBatch builds a batched SQL query for many-to-many
// relationships, partitioning by the junction table's local FK.
func PlanManyToManyBatch(
	junctionTable string,
	targetTable introspection.Table,
	junctionLocalFK, junctionRemoteFK, targetPK string,
	columns []introspection.Column,
	values []interface{},
	limit, offset int,
	orderBy *OrderBy,
) (SQLQuery, error) {
	if len(values) == 0 {
		return SQLQuery{}, nil
	}
	if err := validateLimitOffset(limit, offset); err != nil {
		return SQLQuery{}, err
	}

	quotedTarget := sqlutil.QuoteIdentifier(targetTable.Name)
	quotedJunction := sqlutil.QuoteIdentifier(junctionTable)
	joinOn := fmt.Sprintf(
		"%s.%s = %s.%s",
		quotedJunction, sqlutil.QuoteIdentifier(junctionRemoteFK),
		quotedTarget, sqlutil.QuoteIdentifier(targetPK),
	)
	fromClause := fmt.Sprintf("%s INNER JOIN %s ON %s", quotedTarget, quotedJunction, joinOn)
	partitionColumn := fmt.Sprintf("%s.%s", quotedJunction, sqlutil.QuoteIdentifier(junctionLocalFK))

	orderClause, err := batchOrderClause(targetTable, orderBy)
	if err != nil {
		return SQLQuery{}, err
	}
	columnList := strings.Join(columnNames(targetTable, columns), ", ")
	return buildBatchWindowQuery(fromClause, columnList, partitionColumn, orderClause, values, limit, offset)
}

// PlanEdgeListBatch builds a batched SQL query over a junction table's own
// rows, partitioned by the local FK.
func PlanEdgeListBatch(
	junctionTable introspection.Table,
	junctionLocalFK string,
	columns []introspection.Column,
	values []interface{},
	limit, offset int,
	orderBy *OrderBy,
) (SQLQuery, error) {
	if len(values) == 0 {
		return SQLQuery{}, nil
	}
	if err := validateLimitOffset(limit, offset); err != nil {
		return SQLQuery{}, err
	}

	quotedTable := sqlutil.QuoteIdentifier(junctionTable.Name)
	partitionColumn := sqlutil.QuoteIdentifier(junctionLocalFK)
	orderClause, err := batchOrderClause(junctionTable, orderBy)
	if err != nil {
		return SQLQuery{}, err
	}
	columnList := strings.Join(columnNames(junctionTable, columns), ", ")
	return buildBatchWindowQuery(quotedTable, columnList, partitionColumn, orderClause, values, limit, offset)
}

// buildBatchWindowQuery emits the shared ROW_NUMBER() window pattern. Column
// lists and the window function rule out squirrel here, so the statement is
// built directly.
func buildBatchWindowQuery(
	fromClause string,
	columnList string,
	partitionColumn string,
	orderClause string,
	values []interface{},
	limit, offset int,
) (SQLQuery, error) {
	outerSelect := fmt.Sprintf("%s, %s", columnList, BatchParentAlias)
	innerSelect := fmt.Sprintf("%s, %s AS %s", columnList, partitionColumn, BatchParentAlias)
	query := fmt.Sprintf(
		"SELECT %s FROM (SELECT %s, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS __rn FROM %s WHERE %s IN (%s)) AS __batch WHERE __rn > ? AND __rn <= ? ORDER BY %s, __rn",
		outerSelect,
		innerSelect,
		partitionColumn,
		orderClause,
		fromClause,
		partitionColumn,
		sq.Placeholders(len(values)),
		BatchParentAlias,
	)

	args := append([]interface{}{}, values...)
	args = append(args, offset, offset+limit)
	return SQLQuery{SQL: query, Args: args}, nil
}

func columnNames(table introspection.Table, columns []introspection.Column) []string {
	cols := columns
	if len(cols) == 0 {
		cols = table.Columns
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = sqlutil.QuoteIdentifier(col.Name)
	}
	return names
}

func orderByClauses(orderBy *OrderBy) []string {
	if orderBy == nil {
		return nil
	}
	clauses := make([]string, len(orderBy.Columns))
	for i, col := range orderBy.Columns {
		direction := "ASC"
		if i < len(orderBy.Directions) && strings.EqualFold(orderBy.Directions[i], "DESC") {
			direction = "DESC"
		}
		clauses[i] = fmt.Sprintf("%s %s", sqlutil.QuoteIdentifier(col), direction)
	}
	return clauses
}

func batchOrderClause(table introspection.Table, orderBy *OrderBy) (string, error) {
	if orderBy != nil && len(orderBy.Columns) > 0 {
		return strings.Join(orderByClauses(orderBy), ", "), nil
	}

	pkCols := introspection.PrimaryKeyColumns(table)
	if len(pkCols) == 0 {
		return "", ErrNoPrimaryKey
	}

	var pkOrderClauses []string
	for _, pk := range pkCols {
		pkOrderClauses = append(pkOrderClauses, sqlutil.QuoteIdentifier(pk.Name))
	}
	return strings.Join(pkOrderClauses, ", "), nil
}

func validateLimitOffset(limit, offset int) error {
	if limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	if offset < 0 {
		return fmt.Errorf("offset must be non-negative")
	}
	return nil
}
