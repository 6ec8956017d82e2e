package planner

import (
	"fmt"
	"strings"

	"nestql/internal/introspection"
)

// Policies accepted by the orderByPolicy argument. INDEX_PREFIX_ONLY requires
// the requested columns to form a leftmost prefix of some index;
// ALLOW_NON_PREFIX lifts that restriction for callers that accept the scan cost.
const (
	OrderByPolicyIndexPrefixOnly = "INDEX_PREFIX_ONLY"
	OrderByPolicyAllowNonPrefix  = "ALLOW_NON_PREFIX"
)

// OrderBy holds parallel column and direction lists, one entry per ORDER BY
// term, always terminated by the primary key for a deterministic row order.
type OrderBy struct {
	Columns    []string
	Directions []string
}

// OrderByIndexedFields maps GraphQL field names to column names for every
// column that appears in any index, at any position.
func OrderByIndexedFields(table introspection.Table) map[string]string {
	indexed := make(map[string]bool)
	for _, index := range table.Indexes {
		for _, col := range index.Columns {
			indexed[col] = true
		}
	}

	fields := make(map[string]string, len(indexed))
	for _, col := range table.Columns {
		if indexed[col.Name] {
			fields[introspection.GraphQLFieldName(col)] = col.Name
		}
	}
	return fields
}

// ParseOrderBy validates the orderBy and orderByPolicy arguments for a table.
// orderBy is a list of single-field input objects, e.g.
// [{userId: ASC}, {createdAt: DESC}]. An absent orderBy yields (nil, nil).
func ParseOrderBy(table introspection.Table, args map[string]interface{}) (*OrderBy, error) {
	if args == nil {
		return nil, nil
	}

	policy, err := parseOrderByPolicy(args)
	if err != nil {
		return nil, err
	}

	raw, ok := args["orderBy"]
	if !ok || raw == nil {
		return nil, nil
	}

	clauses, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("orderBy must be a list of input objects")
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("orderBy must contain at least one clause")
	}

	indexedFields := OrderByIndexedFields(table)

	columns := make([]string, 0, len(clauses)+1)
	directions := make([]string, 0, len(clauses)+1)
	seen := make(map[string]bool, len(clauses))
	for _, rawClause := range clauses {
		clause, ok := rawClause.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("orderBy clauses must be input objects")
		}
		if len(clause) != 1 {
			return nil, fmt.Errorf("orderBy clauses must contain exactly one field")
		}

		var fieldName string
		var dirValue interface{}
		for key, value := range clause {
			fieldName = key
			dirValue = value
		}

		direction, ok := dirValue.(string)
		if !ok {
			return nil, fmt.Errorf("orderBy direction for %s must be ASC or DESC", fieldName)
		}
		direction = strings.ToUpper(direction)
		if direction != "ASC" && direction != "DESC" {
			return nil, fmt.Errorf("orderBy direction for %s must be ASC or DESC", fieldName)
		}

		column, ok := indexedFields[fieldName]
		if !ok {
			return nil, fmt.Errorf("orderBy field %s is not indexed", fieldName)
		}
		if seen[column] {
			return nil, fmt.Errorf("orderBy field %s appears more than once", fieldName)
		}
		seen[column] = true

		columns = append(columns, column)
		directions = append(directions, direction)
	}

	if policy == OrderByPolicyIndexPrefixOnly && !isIndexPrefix(table, columns) {
		return nil, fmt.Errorf("orderBy columns must form a leftmost index prefix (set orderByPolicy: %s to override)", OrderByPolicyAllowNonPrefix)
	}

	if pk := introspection.PrimaryKeyColumn(table); pk != nil && !seen[pk.Name] {
		columns = append(columns, pk.Name)
		directions = append(directions, "ASC")
	}

	return &OrderBy{Columns: columns, Directions: directions}, nil
}

func parseOrderByPolicy(args map[string]interface{}) (string, error) {
	raw, ok := args["orderByPolicy"]
	if !ok || raw == nil {
		return OrderByPolicyIndexPrefixOnly, nil
	}
	policy, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("orderByPolicy must be %s or %s", OrderByPolicyIndexPrefixOnly, OrderByPolicyAllowNonPrefix)
	}
	switch policy {
	case OrderByPolicyIndexPrefixOnly, OrderByPolicyAllowNonPrefix:
		return policy, nil
	}
	return "", fmt.Errorf("orderByPolicy must be %s or %s", OrderByPolicyIndexPrefixOnly, OrderByPolicyAllowNonPrefix)
}

// isIndexPrefix reports whether columns match the leading columns of any
// index on the table, in order.
func isIndexPrefix(table introspection.Table, columns []string) bool {
	for _, index := range table.Indexes {
		if len(index.Columns) < len(columns) {
			continue
		}
		match := true
		for i, col := range columns {
			if index.Columns[i] != col {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
