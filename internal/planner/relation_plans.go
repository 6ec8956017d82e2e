package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"nestql/internal/introspection"
	"nestql/internal/sqlutil"
)

// Relation write plans cover the junction and foreign-key maintenance the
// nested mutation engine performs around a parent row: reading current
// links, re-pointing child foreign keys, and unlinking junction pairs.

// PlanSelectByColumns builds SQL selecting rows matched by column equality.
// An empty where selects the whole table; callers guard against that when
// it is not intended.
func PlanSelectByColumns(table introspection.Table, columns []introspection.Column, where map[string]interface{}) (SQLQuery, error) {
	builder := sq.Select(columnNames(table, columns)...).
		From(sqlutil.QuoteIdentifier(table.Name))
	if len(where) > 0 {
		builder = builder.Where(quotedEq(where))
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanUpdateByColumns builds SQL updating rows matched by column equality.
// Both the set map and the where map must be non-empty; an unconditional
// update is never planned.
func PlanUpdateByColumns(table introspection.Table, set map[string]interface{}, where map[string]interface{}) (SQLQuery, error) {
	if len(set) == 0 {
		return SQLQuery{}, fmt.Errorf("update set cannot be empty")
	}
	if len(where) == 0 {
		return SQLQuery{}, fmt.Errorf("update requires a where condition")
	}

	setMap := make(map[string]interface{}, len(set))
	for col, val := range set {
		setMap[sqlutil.QuoteIdentifier(col)] = val
	}

	query, args, err := sq.Update(sqlutil.QuoteIdentifier(table.Name)).
		SetMap(setMap).
		Where(quotedEq(where)).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanDeleteByColumns builds SQL deleting rows matched by column equality.
// The where map must be non-empty; an unconditional delete is never
// planned.
func PlanDeleteByColumns(table introspection.Table, where map[string]interface{}) (SQLQuery, error) {
	if len(where) == 0 {
		return SQLQuery{}, fmt.Errorf("delete requires a where condition")
	}

	query, args, err := sq.Delete(sqlutil.QuoteIdentifier(table.Name)).
		Where(quotedEq(where)).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanForeignKeyClear builds SQL nulling the foreign-key columns of child
// rows pointing at a parent. The fkColumns and parentValues slices pair up
// positionally.
func PlanForeignKeyClear(table introspection.Table, fkColumns []string, parentValues []interface{}) (SQLQuery, error) {
	if len(fkColumns) == 0 || len(fkColumns) != len(parentValues) {
		return SQLQuery{}, fmt.Errorf("foreign key clear requires equal columns and values")
	}

	set := make(map[string]interface{}, len(fkColumns))
	where := make(map[string]interface{}, len(fkColumns))
	for i, col := range fkColumns {
		set[col] = nil
		where[col] = parentValues[i]
	}
	return PlanUpdateByColumns(table, set, where)
}

// PlanForeignKeyClearExcept builds SQL nulling the foreign-key columns of
// child rows pointing at a parent, excluding the rows identified by
// keepPKs. With no keepPKs it degenerates to PlanForeignKeyClear.
func PlanForeignKeyClearExcept(table introspection.Table, fkColumns []string, parentValues []interface{}, pkColumn string, keepPKs []interface{}) (SQLQuery, error) {
	if len(keepPKs) == 0 {
		return PlanForeignKeyClear(table, fkColumns, parentValues)
	}
	if len(fkColumns) == 0 || len(fkColumns) != len(parentValues) {
		return SQLQuery{}, fmt.Errorf("foreign key clear requires equal columns and values")
	}
	if pkColumn == "" {
		return SQLQuery{}, fmt.Errorf("foreign key clear exclusion requires a primary key column")
	}

	set := make(map[string]interface{}, len(fkColumns))
	where := make(map[string]interface{}, len(fkColumns))
	for i, col := range fkColumns {
		set[col] = nil
		where[col] = parentValues[i]
	}

	setMap := make(map[string]interface{}, len(set))
	for col, val := range set {
		setMap[sqlutil.QuoteIdentifier(col)] = val
	}

	query, args, err := sq.Update(sqlutil.QuoteIdentifier(table.Name)).
		SetMap(setMap).
		Where(sq.And{
			quotedEq(where),
			sq.NotEq{sqlutil.QuoteIdentifier(pkColumn): keepPKs},
		}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func quotedEq(values map[string]interface{}) sq.Eq {
	eq := sq.Eq{}
	for col, val := range values {
		eq[sqlutil.QuoteIdentifier(col)] = val
	}
	return eq
}
