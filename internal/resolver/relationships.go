package resolver

import (
	"fmt"
	"strings"

	"nestql/internal/introspection"
	"nestql/internal/planner"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"
)

// listBatchQueriesSaved estimates how many single-row queries a batched
// lookup replaced.
func listBatchQueriesSaved(parentCount, chunkCount int) int64 {
	saved := parentCount - chunkCount
	if saved < 0 {
		return 0
	}
	return int64(saved)
}

func (r *Resolver) makeManyToOneResolver(table introspection.Table, rel introspection.Relationship) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		source, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, nil
		}

		fkField := graphQLFieldNameForColumn(table, rel.LocalColumn)
		fkValue := source[fkField]
		if fkValue == nil {
			return nil, nil
		}

		if result, handled, err := r.tryBatchManyToOne(p, table, rel, fkValue); handled || err != nil {
			return result, err
		}

		relatedTable, err := r.findTable(rel.RemoteTable)
		if err != nil {
			return nil, fmt.Errorf("failed to find related table %s: %w", rel.RemoteTable, err)
		}

		field := firstFieldAST(p.Info.FieldASTs)
		selection := planner.SelectedColumns(relatedTable, field, p.Info.Fragments)

		planned, err := planner.PlanManyToOne(relatedTable, selection, rel.RemoteColumn, fkValue)
		if err != nil {
			return nil, err
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.SQL, planned.Args...)
		if err != nil {
			return nil, normalizeQueryError(err)
		}
		defer func() {
			_ = rows.Close()
		}()

		results, err := scanRows(rows, selection)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		return results[0], nil
	}
}

func (r *Resolver) tryBatchManyToOne(p graphql.ResolveParams, table introspection.Table, rel introspection.Relationship, fkValue interface{}) (result map[string]interface{}, handled bool, err error) {
	outcome := ""
	ctx, span := startResolverSpan(p.Context, "graphql.batch.many_to_one",
		attribute.String("db.table", table.Name),
		attribute.String("relation_type", relationManyToOne),
	)
	defer func() {
		finishResolverSpan(span, err, outcome)
		span.End()
	}()
	p.Context = ctx

	metrics := graphQLMetricsFromContext(p.Context)

	state, ok := getBatchState(p.Context)
	if !ok {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationManyToOne, "no_batch_state")
		}
		outcome = "skipped"
		return nil, false, nil
	}

	parentKey, ok := parentKeyFromSource(p.Source)
	if !ok {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationManyToOne, "missing_parent_key")
		}
		outcome = "skipped"
		return nil, false, nil
	}

	parentRows := state.getParentRows(parentKey)
	if len(parentRows) == 0 {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationManyToOne, "missing_parent_rows")
		}
		outcome = "skipped"
		return nil, false, nil
	}

	relatedTable, err := r.findTable(rel.RemoteTable)
	if err != nil {
		return nil, true, fmt.Errorf("failed to find related table %s: %w", rel.RemoteTable, err)
	}

	field := firstFieldAST(p.Info.FieldASTs)
	if field == nil {
		return nil, true, fmt.Errorf("missing field AST")
	}
	selection := planner.SelectedColumns(relatedTable, field, p.Info.Fragments)

	relKey := fmt.Sprintf("%s|%s|%s|%s", relatedTable.Name, rel.RemoteColumn, parentKey, columnsKey(selection))
	if cached := state.getChildRows(relKey); cached != nil {
		state.IncrementCacheHit()
		if metrics != nil {
			metrics.RecordBatchCacheHit(p.Context, relationManyToOne)
		}
		return firstGroupedRecord(cached, fkValue), true, nil
	}
	state.IncrementCacheMiss()
	if metrics != nil {
		metrics.RecordBatchCacheMiss(p.Context, relationManyToOne)
	}

	parentField := graphQLFieldNameForColumn(table, rel.LocalColumn)
	parentValues := uniqueParentValues(parentRows, parentField)
	span.SetAttributes(attribute.Int("graphql.batch.parent_count", len(parentValues)))
	if len(parentValues) == 0 {
		state.setChildRows(relKey, map[string][]map[string]interface{}{})
		outcome = "skipped"
		return nil, true, nil
	}

	chunks := chunkValues(parentValues, batchMaxInClause)
	span.SetAttributes(attribute.Int("graphql.batch.chunk_count", len(chunks)))
	if metrics != nil {
		metrics.RecordBatchQueriesSaved(p.Context, listBatchQueriesSaved(len(parentValues), len(chunks)), relationManyToOne)
	}

	grouped := make(map[string][]map[string]interface{})
	for _, chunk := range chunks {
		if metrics != nil {
			metrics.RecordBatchParentCount(p.Context, int64(len(chunk)), relationManyToOne)
		}
		planned, err := planner.PlanManyToOneBatch(relatedTable, selection, rel.RemoteColumn, chunk)
		if err != nil {
			return nil, true, err
		}
		if planned.SQL == "" {
			continue
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.SQL, planned.Args...)
		if err != nil {
			return nil, true, normalizeQueryError(err)
		}
		results, err := scanRowsWithExtras(rows, selection, []string{planner.BatchParentAlias})
		_ = rows.Close()
		if err != nil {
			return nil, true, err
		}
		if metrics != nil {
			metrics.RecordBatchResultRows(p.Context, int64(len(results)), relationManyToOne)
		}

		mergeGrouped(grouped, groupByAlias(results, planner.BatchParentAlias))
	}
	if len(grouped) == 0 {
		state.setChildRows(relKey, map[string][]map[string]interface{}{})
		return nil, true, nil
	}
	state.setChildRows(relKey, grouped)

	return firstGroupedRecord(grouped, fkValue), true, nil
}

func (r *Resolver) makeOneToManyResolver(table introspection.Table, rel introspection.Relationship) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		source, ok := p.Source.(map[string]interface{})
		if !ok {
			return []map[string]interface{}{}, nil
		}

		parentField := graphQLFieldNameForColumn(table, rel.LocalColumn)
		parentValue := source[parentField]
		if parentValue == nil {
			return []map[string]interface{}{}, nil
		}

		if result, handled, err := r.tryBatchOneToMany(p, table, rel, parentValue); handled || err != nil {
			return result, err
		}

		relatedTable, err := r.findTable(rel.RemoteTable)
		if err != nil {
			return nil, fmt.Errorf("failed to find related table %s: %w", rel.RemoteTable, err)
		}

		field := firstFieldAST(p.Info.FieldASTs)
		selection := planner.SelectedColumns(relatedTable, field, p.Info.Fragments)

		limit := planner.GetArgInt(p.Args, "limit", r.defaultLimit)
		offset := planner.GetArgInt(p.Args, "offset", 0)
		orderBy, err := planner.ParseOrderBy(relatedTable, p.Args)
		if err != nil {
			return nil, err
		}

		planned, err := planner.PlanOneToMany(relatedTable, selection, rel.RemoteColumn, parentValue, limit, offset, orderBy)
		if err != nil {
			return nil, err
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.SQL, planned.Args...)
		if err != nil {
			return nil, normalizeQueryError(err)
		}
		defer func() {
			_ = rows.Close()
		}()

		results, err := scanRows(rows, selection)
		if err != nil {
			return nil, err
		}
		seedBatchRows(p, results)
		return results, nil
	}
}

func (r *Resolver) tryBatchOneToMany(p graphql.ResolveParams, table introspection.Table, rel introspection.Relationship, parentValue interface{}) ([]map[string]interface{}, bool, error) {
	metrics := graphQLMetricsFromContext(p.Context)

	state, ok := getBatchState(p.Context)
	if !ok {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationOneToMany, "no_batch_state")
		}
		return nil, false, nil
	}

	parentKey, ok := parentKeyFromSource(p.Source)
	if !ok {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationOneToMany, "missing_parent_key")
		}
		return nil, false, nil
	}

	parentRows := state.getParentRows(parentKey)
	if len(parentRows) == 0 {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationOneToMany, "missing_parent_rows")
		}
		return nil, false, nil
	}

	relatedTable, err := r.findTable(rel.RemoteTable)
	if err != nil {
		return nil, true, fmt.Errorf("failed to find related table %s: %w", rel.RemoteTable, err)
	}

	field := firstFieldAST(p.Info.FieldASTs)
	if field == nil {
		return nil, true, fmt.Errorf("missing field AST")
	}
	selection := planner.SelectedColumns(relatedTable, field, p.Info.Fragments)

	limit := planner.GetArgInt(p.Args, "limit", r.defaultLimit)
	offset := planner.GetArgInt(p.Args, "offset", 0)
	orderBy, err := planner.ParseOrderBy(relatedTable, p.Args)
	if err != nil {
		return nil, true, err
	}

	relKey := fmt.Sprintf(
		"%s|%s|%s|%s|%s|%s",
		table.Name,
		rel.RemoteTable,
		rel.RemoteColumn,
		orderByKey(orderBy),
		columnsKey(selection),
		stableArgsKey(p.Args),
	)

	if cached := state.getChildRows(relKey); cached != nil {
		state.IncrementCacheHit()
		if metrics != nil {
			metrics.RecordBatchCacheHit(p.Context, relationOneToMany)
		}
		result := cached[fmt.Sprint(parentValue)]
		seedBatchRows(p, result)
		return result, true, nil
	}
	state.IncrementCacheMiss()
	if metrics != nil {
		metrics.RecordBatchCacheMiss(p.Context, relationOneToMany)
	}

	parentField := graphQLFieldNameForColumn(table, rel.LocalColumn)
	parentValues := uniqueParentValues(parentRows, parentField)
	if len(parentValues) == 0 {
		state.setChildRows(relKey, map[string][]map[string]interface{}{})
		return nil, true, nil
	}

	chunks := chunkValues(parentValues, batchMaxInClause)
	if metrics != nil {
		metrics.RecordBatchQueriesSaved(p.Context, listBatchQueriesSaved(len(parentValues), len(chunks)), relationOneToMany)
	}

	grouped := make(map[string][]map[string]interface{})
	for _, chunk := range chunks {
		if metrics != nil {
			metrics.RecordBatchParentCount(p.Context, int64(len(chunk)), relationOneToMany)
		}
		planned, err := planner.PlanOneToManyBatch(relatedTable, selection, rel.RemoteColumn, chunk, limit, offset, orderBy)
		if err != nil {
			return nil, true, err
		}
		if planned.SQL == "" {
			continue
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.SQL, planned.Args...)
		if err != nil {
			return nil, true, normalizeQueryError(err)
		}
		results, err := scanRowsWithExtras(rows, selection, []string{planner.BatchParentAlias})
		_ = rows.Close()
		if err != nil {
			return nil, true, err
		}
		if metrics != nil {
			metrics.RecordBatchResultRows(p.Context, int64(len(results)), relationOneToMany)
		}

		mergeGrouped(grouped, groupByAlias(results, planner.BatchParentAlias))
	}
	state.setChildRows(relKey, grouped)

	result := grouped[fmt.Sprint(parentValue)]
	seedBatchRows(p, result)
	return result, true, nil
}

func (r *Resolver) makeManyToManyResolver(table introspection.Table, rel introspection.Relationship) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		source, ok := p.Source.(map[string]interface{})
		if !ok {
			return []map[string]interface{}{}, nil
		}

		parentField := graphQLFieldNameForColumn(table, rel.LocalColumn)
		parentValue := source[parentField]
		if parentValue == nil {
			return []map[string]interface{}{}, nil
		}

		if result, handled, err := r.tryBatchManyToMany(p, table, rel, parentValue); handled || err != nil {
			return result, err
		}

		relatedTable, err := r.findTable(rel.RemoteTable)
		if err != nil {
			return nil, fmt.Errorf("failed to find related table %s: %w", rel.RemoteTable, err)
		}

		field := firstFieldAST(p.Info.FieldASTs)
		selection := planner.SelectedColumns(relatedTable, field, p.Info.Fragments)

		limit := planner.GetArgInt(p.Args, "limit", r.defaultLimit)
		offset := planner.GetArgInt(p.Args, "offset", 0)
		orderBy, err := planner.ParseOrderBy(relatedTable, p.Args)
		if err != nil {
			return nil, err
		}

		planned, err := planner.PlanManyToMany(rel.JunctionTable, relatedTable, rel.JunctionLocalFK, rel.JunctionRemoteFK, rel.RemoteColumn, selection, parentValue, limit, offset, orderBy)
		if err != nil {
			return nil, err
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.SQL, planned.Args...)
		if err != nil {
			return nil, normalizeQueryError(err)
		}
		defer func() {
			_ = rows.Close()
		}()

		results, err := scanRows(rows, selection)
		if err != nil {
			return nil, err
		}
		seedBatchRows(p, results)
		return results, nil
	}
}

func (r *Resolver) tryBatchManyToMany(p graphql.ResolveParams, table introspection.Table, rel introspection.Relationship, parentValue interface{}) ([]map[string]interface{}, bool, error) {
	metrics := graphQLMetricsFromContext(p.Context)

	state, ok := getBatchState(p.Context)
	if !ok {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationManyToMany, "no_batch_state")
		}
		return nil, false, nil
	}

	parentKey, ok := parentKeyFromSource(p.Source)
	if !ok {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationManyToMany, "missing_parent_key")
		}
		return nil, false, nil
	}

	parentRows := state.getParentRows(parentKey)
	if len(parentRows) == 0 {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationManyToMany, "missing_parent_rows")
		}
		return nil, false, nil
	}

	relatedTable, err := r.findTable(rel.RemoteTable)
	if err != nil {
		return nil, true, fmt.Errorf("failed to find related table %s: %w", rel.RemoteTable, err)
	}

	field := firstFieldAST(p.Info.FieldASTs)
	if field == nil {
		return nil, true, fmt.Errorf("missing field AST")
	}
	selection := planner.SelectedColumns(relatedTable, field, p.Info.Fragments)

	limit := planner.GetArgInt(p.Args, "limit", r.defaultLimit)
	offset := planner.GetArgInt(p.Args, "offset", 0)
	orderBy, err := planner.ParseOrderBy(relatedTable, p.Args)
	if err != nil {
		return nil, true, err
	}

	relKey := fmt.Sprintf(
		"%s|%s|%s|%s|%s|%s|%s",
		table.Name,
		rel.RemoteTable,
		rel.JunctionTable,
		strings.Join([]string{rel.JunctionLocalFK, rel.JunctionRemoteFK}, ","),
		orderByKey(orderBy),
		columnsKey(selection),
		stableArgsKey(p.Args),
	)

	if cached := state.getChildRows(relKey); cached != nil {
		state.IncrementCacheHit()
		if metrics != nil {
			metrics.RecordBatchCacheHit(p.Context, relationManyToMany)
		}
		result := cached[fmt.Sprint(parentValue)]
		seedBatchRows(p, result)
		return result, true, nil
	}
	state.IncrementCacheMiss()
	if metrics != nil {
		metrics.RecordBatchCacheMiss(p.Context, relationManyToMany)
	}

	parentField := graphQLFieldNameForColumn(table, rel.LocalColumn)
	parentValues := uniqueParentValues(parentRows, parentField)
	if len(parentValues) == 0 {
		state.setChildRows(relKey, map[string][]map[string]interface{}{})
		return nil, true, nil
	}

	chunks := chunkValues(parentValues, batchMaxInClause)
	if metrics != nil {
		metrics.RecordBatchQueriesSaved(p.Context, listBatchQueriesSaved(len(parentValues), len(chunks)), relationManyToMany)
	}

	grouped := make(map[string][]map[string]interface{})
	for _, chunk := range chunks {
		if metrics != nil {
			metrics.RecordBatchParentCount(p.Context, int64(len(chunk)), relationManyToMany)
		}
		planned, err := planner.PlanManyToManyBatch(rel.JunctionTable, relatedTable, rel.JunctionLocalFK, rel.JunctionRemoteFK, rel.RemoteColumn, selection, chunk, limit, offset, orderBy)
		if err != nil {
			return nil, true, err
		}
		if planned.SQL == "" {
			continue
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.SQL, planned.Args...)
		if err != nil {
			return nil, true, normalizeQueryError(err)
		}
		results, err := scanRowsWithExtras(rows, selection, []string{planner.BatchParentAlias})
		_ = rows.Close()
		if err != nil {
			return nil, true, err
		}
		if metrics != nil {
			metrics.RecordBatchResultRows(p.Context, int64(len(results)), relationManyToMany)
		}

		mergeGrouped(grouped, groupByAlias(results, planner.BatchParentAlias))
	}
	state.setChildRows(relKey, grouped)

	result := grouped[fmt.Sprint(parentValue)]
	seedBatchRows(p, result)
	return result, true, nil
}

func (r *Resolver) makeEdgeListResolver(table introspection.Table, rel introspection.Relationship) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		source, ok := p.Source.(map[string]interface{})
		if !ok {
			return []map[string]interface{}{}, nil
		}

		parentField := graphQLFieldNameForColumn(table, rel.LocalColumn)
		parentValue := source[parentField]
		if parentValue == nil {
			return []map[string]interface{}{}, nil
		}

		if result, handled, err := r.tryBatchEdgeList(p, table, rel, parentValue); handled || err != nil {
			return result, err
		}

		junctionTable, err := r.findTable(rel.JunctionTable)
		if err != nil {
			return nil, fmt.Errorf("failed to find junction table %s: %w", rel.JunctionTable, err)
		}

		field := firstFieldAST(p.Info.FieldASTs)
		selection := planner.SelectedColumns(junctionTable, field, p.Info.Fragments)

		limit := planner.GetArgInt(p.Args, "limit", r.defaultLimit)
		offset := planner.GetArgInt(p.Args, "offset", 0)
		orderBy, err := planner.ParseOrderBy(junctionTable, p.Args)
		if err != nil {
			return nil, err
		}

		planned, err := planner.PlanEdgeList(junctionTable, rel.JunctionLocalFK, selection, parentValue, limit, offset, orderBy)
		if err != nil {
			return nil, err
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.SQL, planned.Args...)
		if err != nil {
			return nil, normalizeQueryError(err)
		}
		defer func() {
			_ = rows.Close()
		}()

		results, err := scanRows(rows, selection)
		if err != nil {
			return nil, err
		}
		seedBatchRows(p, results)
		return results, nil
	}
}

func (r *Resolver) tryBatchEdgeList(p graphql.ResolveParams, table introspection.Table, rel introspection.Relationship, parentValue interface{}) ([]map[string]interface{}, bool, error) {
	metrics := graphQLMetricsFromContext(p.Context)

	state, ok := getBatchState(p.Context)
	if !ok {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationEdgeList, "no_batch_state")
		}
		return nil, false, nil
	}

	parentKey, ok := parentKeyFromSource(p.Source)
	if !ok {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationEdgeList, "missing_parent_key")
		}
		return nil, false, nil
	}

	parentRows := state.getParentRows(parentKey)
	if len(parentRows) == 0 {
		if metrics != nil {
			metrics.RecordBatchSkipped(p.Context, relationEdgeList, "missing_parent_rows")
		}
		return nil, false, nil
	}

	junctionTable, err := r.findTable(rel.JunctionTable)
	if err != nil {
		return nil, true, fmt.Errorf("failed to find junction table %s: %w", rel.JunctionTable, err)
	}

	field := firstFieldAST(p.Info.FieldASTs)
	if field == nil {
		return nil, true, fmt.Errorf("missing field AST")
	}
	selection := planner.SelectedColumns(junctionTable, field, p.Info.Fragments)

	limit := planner.GetArgInt(p.Args, "limit", r.defaultLimit)
	offset := planner.GetArgInt(p.Args, "offset", 0)
	orderBy, err := planner.ParseOrderBy(junctionTable, p.Args)
	if err != nil {
		return nil, true, err
	}

	relKey := fmt.Sprintf(
		"%s|%s|%s|%s|%s|%s",
		table.Name,
		rel.JunctionTable,
		rel.JunctionLocalFK,
		orderByKey(orderBy),
		columnsKey(selection),
		stableArgsKey(p.Args),
	)

	if cached := state.getChildRows(relKey); cached != nil {
		state.IncrementCacheHit()
		if metrics != nil {
			metrics.RecordBatchCacheHit(p.Context, relationEdgeList)
		}
		result := cached[fmt.Sprint(parentValue)]
		seedBatchRows(p, result)
		return result, true, nil
	}
	state.IncrementCacheMiss()
	if metrics != nil {
		metrics.RecordBatchCacheMiss(p.Context, relationEdgeList)
	}

	parentField := graphQLFieldNameForColumn(table, rel.LocalColumn)
	parentValues := uniqueParentValues(parentRows, parentField)
	if len(parentValues) == 0 {
		state.setChildRows(relKey, map[string][]map[string]interface{}{})
		return nil, true, nil
	}

	chunks := chunkValues(parentValues, batchMaxInClause)
	if metrics != nil {
		metrics.RecordBatchQueriesSaved(p.Context, listBatchQueriesSaved(len(parentValues), len(chunks)), relationEdgeList)
	}

	grouped := make(map[string][]map[string]interface{})
	for _, chunk := range chunks {
		if metrics != nil {
			metrics.RecordBatchParentCount(p.Context, int64(len(chunk)), relationEdgeList)
		}
		planned, err := planner.PlanEdgeListBatch(junctionTable, rel.JunctionLocalFK, selection, chunk, limit, offset, orderBy)
		if err != nil {
			return nil, true, err
		}
		if planned.SQL == "" {
			continue
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.SQL, planned.Args...)
		if err != nil {
			return nil, true, normalizeQueryError(err)
		}
		results, err := scanRowsWithExtras(rows, selection, []string{planner.BatchParentAlias})
		_ = rows.Close()
		if err != nil {
			return nil, true, err
		}
		if metrics != nil {
			metrics.RecordBatchResultRows(p.Context, int64(len(results)), relationEdgeList)
		}

		mergeGrouped(grouped, groupByAlias(results, planner.BatchParentAlias))
	}
	state.setChildRows(relKey, grouped)

	result := grouped[fmt.Sprint(parentValue)]
	seedBatchRows(p, result)
	return result, true, nil
}
