package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"nestql/internal/dbexec"
	"nestql/internal/introspection"
	"nestql/internal/nested"
	"nestql/internal/observability"
	"nestql/internal/relation"
	"nestql/internal/schemafilter"
)

// meteredPermissionChecker counts every relation verb dispatch, then
// delegates to the configured authorizer. A nil inner checker allows all.
type meteredPermissionChecker struct {
	inner   nested.PermissionChecker
	metrics *observability.NestedMetrics
}

func (c *meteredPermissionChecker) AssertRelationOperationAllowed(ctx context.Context, typeName, field string, verb relation.Verb) error {
	var err error
	if c.inner != nil {
		err = c.inner.AssertRelationOperationAllowed(ctx, typeName, field, verb)
	}
	outcome := "allowed"
	if err != nil {
		outcome = "denied"
	}
	c.metrics.RecordRelationOp(ctx, string(verb), outcome)
	return err
}

// Stable error codes for database failures surfaced in GraphQL error
// extensions. Relation operation failures carry their own taxonomy codes.
const (
	codeDuplicateKey        = "DUPLICATE_KEY"
	codeForeignKeyViolation = "FOREIGN_KEY_VIOLATION"
	codeNotNullViolation    = "NOT_NULL_VIOLATION"
	codeAccessDenied        = "ACCESS_DENIED"
	codeInvalidInput        = "INVALID_INPUT"
	codeInternalError       = "INTERNAL_ERROR"
)

// MySQL/TiDB error numbers for constraint violations on writes.
const (
	mysqlErrNotNullViolation = 1048 // Column cannot be null
	mysqlErrDuplicateEntry   = 1062 // Duplicate entry for key
	mysqlErrRowIsReferenced  = 1451 // Cannot delete or update a parent row
	mysqlErrNoReferencedRow  = 1452 // Cannot add or update a child row
)

// mutationError is a write failure normalized to a stable extension code and
// a client-safe message. Raw driver messages never cross the GraphQL
// boundary.
type mutationError struct {
	code    string
	message string
}

func newMutationError(code, message string) *mutationError {
	return &mutationError{code: code, message: message}
}

func (e *mutationError) Error() string { return e.message }

func (e *mutationError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

// extendedError matches errors that already carry GraphQL extensions: the
// relation operation taxonomy, permission denials, and mutationError itself.
type extendedError interface {
	error
	Extensions() map[string]interface{}
}

// normalizeMutationError maps a write failure onto the stable error surface.
// Errors that already carry extensions pass through unchanged; recognized
// MySQL constraint violations become coded errors with sanitized messages;
// everything else is logged and reported as an internal error.
func normalizeMutationError(ctx context.Context, table string, err error) error {
	if err == nil {
		return nil
	}

	var extended extendedError
	if errors.As(err, &extended) {
		return err
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDuplicateEntry:
			return newMutationError(codeDuplicateKey, "duplicate value violates a unique constraint")
		case mysqlErrNoReferencedRow, mysqlErrRowIsReferenced:
			return newMutationError(codeForeignKeyViolation, "operation violates a foreign key constraint")
		case mysqlErrNotNullViolation:
			return newMutationError(codeNotNullViolation, "required column cannot be null")
		case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
			return newMutationError(codeAccessDenied, "access denied")
		}
	}

	slog.ErrorContext(ctx, "mutation failed", "table", table, "error", err)
	return newMutationError(codeInternalError, "internal error")
}

// mutationErrorCode extracts the extension code from a normalized error.
func mutationErrorCode(err error) string {
	var extended extendedError
	if errors.As(err, &extended) {
		if code, ok := extended.Extensions()["code"].(string); ok && code != "" {
			return code
		}
	}
	return "unknown"
}

// classifyMutationFailure buckets a normalized error for span attributes.
func classifyMutationFailure(err error) (class, code string) {
	code = mutationErrorCode(err)
	if code == codeInternalError || code == "unknown" {
		return "internal_error", code
	}
	return "client_error", code
}

// inputShape measures a mutation input tree: the deepest object nesting and
// the largest embedded list. Both feed limit-tuning histograms.
func inputShape(input map[string]interface{}) (depth, bulk int) {
	depth = 1
	for _, value := range input {
		switch v := value.(type) {
		case map[string]interface{}:
			d, b := inputShape(v)
			if d+1 > depth {
				depth = d + 1
			}
			if b > bulk {
				bulk = b
			}
		case []interface{}:
			if len(v) > bulk {
				bulk = len(v)
			}
			for _, item := range v {
				m, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				d, b := inputShape(m)
				if d+1 > depth {
					depth = d + 1
				}
				if b > bulk {
					bulk = b
				}
			}
		}
	}
	return depth, bulk
}

// addTableMutations adds create/update/delete fields for a table. Views,
// hidden junction tables, tables denied by the mutation filter, and tables
// without a primary key get no mutation surface.
func (r *Resolver) addTableMutations(fields graphql.Fields, table introspection.Table) (graphql.Fields, error) {
	if table.IsView {
		return fields, nil
	}
	if r.dbSchema != nil {
		if jc, ok := r.dbSchema.Junctions[table.Name]; ok && jc.Type == introspection.JunctionTypePure {
			return fields, nil
		}
	}
	if !schemafilter.MutationTableAllowed(table.Name, r.filters) {
		return fields, nil
	}
	pkCols := introspection.PrimaryKeyColumns(table)
	if len(pkCols) == 0 {
		return fields, nil
	}

	if r.contracts == nil || r.engine == nil {
		r.ensureRelationComponents()
	}

	typeName := r.singularTypeName(table)
	tableType := r.buildGraphQLType(table)
	pkArgs := r.primaryKeyArgs(table, pkCols)

	createInput, err := r.createInputType(table, typeName)
	if err != nil {
		return nil, fmt.Errorf("create input for %s: %w", table.Name, err)
	}
	if createInput != nil {
		fields["create"+typeName] = &graphql.Field{
			Type: tableType,
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createInput)},
			},
			Resolve:     r.makeCreateResolver(table, typeName),
			Description: "Insert one row, applying any nested relation operations in the same transaction",
		}
	}

	updateInput, err := r.updateInputType(table, typeName)
	if err != nil {
		return nil, fmt.Errorf("update input for %s: %w", table.Name, err)
	}
	if updateInput != nil {
		updateArgs := graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateInput)},
		}
		for name, arg := range pkArgs {
			updateArgs[name] = arg
		}
		fields["update"+typeName] = &graphql.Field{
			Type:        tableType,
			Args:        updateArgs,
			Resolve:     r.makeUpdateResolver(table, pkCols, typeName),
			Description: "Update one row by primary key, applying any nested relation operations in the same transaction",
		}
	}

	fields["delete"+typeName] = &graphql.Field{
		Type:        r.deletePayloadType(table, typeName, tableType),
		Args:        pkArgs,
		Resolve:     r.makeDeleteResolver(table, pkCols, typeName),
		Description: "Delete one row by primary key",
	}

	return fields, nil
}

// primaryKeyArgs builds the required argument set identifying one row.
func (r *Resolver) primaryKeyArgs(table introspection.Table, pkCols []introspection.Column) graphql.FieldConfigArgument {
	args := graphql.FieldConfigArgument{}
	for i := range pkCols {
		col := &pkCols[i]
		args[introspection.GraphQLFieldName(*col)] = &graphql.ArgumentConfig{
			Type: graphql.NewNonNull(r.mapColumnTypeToGraphQLInput(table, col)),
		}
	}
	return args
}

// primaryKeyFromArgs extracts the row identity from resolver arguments.
// Composite keys keep database column order.
func primaryKeyFromArgs(table introspection.Table, pkCols []introspection.Column, args map[string]interface{}) (interface{}, error) {
	if len(pkCols) == 1 {
		fieldName := introspection.GraphQLFieldName(pkCols[0])
		value, ok := args[fieldName]
		if !ok || value == nil {
			return nil, newMutationError(codeInvalidInput, fmt.Sprintf("missing primary key argument %s", fieldName))
		}
		return value, nil
	}

	key := compositeKey{
		columns: make([]string, len(pkCols)),
		values:  make([]interface{}, len(pkCols)),
	}
	for i, col := range pkCols {
		fieldName := introspection.GraphQLFieldName(col)
		value, ok := args[fieldName]
		if !ok || value == nil {
			return nil, newMutationError(codeInvalidInput, fmt.Sprintf("missing primary key argument %s", fieldName))
		}
		key.columns[i] = col.Name
		key.values[i] = value
	}
	return key, nil
}

// CreateScalarFields builds the scalar input fields for creating a row.
// Generated and auto-assigned key columns are omitted; NOT NULL columns
// without a default are required unless a relation operation can fill them.
func (r *Resolver) CreateScalarFields(tableName string) (graphql.InputObjectConfigFieldMap, error) {
	table, err := r.findTable(tableName)
	if err != nil {
		return nil, err
	}

	// Foreign key columns stay optional: connect/create verbs on the owning
	// relation field assign them during execution.
	fkColumns := make(map[string]bool)
	for _, rel := range table.Relationships {
		if !rel.IsManyToOne {
			continue
		}
		for _, col := range rel.LocalColumns {
			fkColumns[col] = true
		}
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for i := range table.Columns {
		col := &table.Columns[i]
		if col.IsGenerated || col.IsAutoIncrement || col.IsAutoRandom {
			continue
		}
		if !schemafilter.MutationColumnAllowed(table.Name, col.Name, r.filters) {
			continue
		}
		inputType := r.mapColumnTypeToGraphQLInput(table, col)
		if !col.IsNullable && !col.HasDefault && !fkColumns[col.Name] {
			inputType = graphql.NewNonNull(inputType)
		}
		fields[introspection.GraphQLFieldName(*col)] = &graphql.InputObjectFieldConfig{
			Type:        inputType,
			Description: col.Comment,
		}
	}
	return fields, nil
}

// UpdateScalarFields builds the scalar input fields for updating a row.
// Every field is optional. Primary key columns are always present so nested
// update items can identify their target; the root update never rewrites
// them.
func (r *Resolver) UpdateScalarFields(tableName string) (graphql.InputObjectConfigFieldMap, error) {
	table, err := r.findTable(tableName)
	if err != nil {
		return nil, err
	}

	pkColumns := make(map[string]bool)
	for _, col := range introspection.PrimaryKeyColumns(table) {
		pkColumns[col.Name] = true
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for i := range table.Columns {
		col := &table.Columns[i]
		if col.IsGenerated {
			continue
		}
		if !pkColumns[col.Name] {
			if col.IsAutoIncrement || col.IsAutoRandom {
				continue
			}
			if !schemafilter.MutationColumnAllowed(table.Name, col.Name, r.filters) {
				continue
			}
		}
		fields[introspection.GraphQLFieldName(*col)] = &graphql.InputObjectFieldConfig{
			Type:        r.mapColumnTypeToGraphQLInput(table, col),
			Description: col.Comment,
		}
	}
	return fields, nil
}

// createInputType builds the full create input: scalar fields plus nested
// relation operation slots. Returns nil when the table exposes no writable
// fields.
func (r *Resolver) createInputType(table introspection.Table, typeName string) (*graphql.InputObject, error) {
	name := typeName + "CreateInput"
	r.mu.RLock()
	cached, ok := r.createInputCache[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	fields, err := r.CreateScalarFields(table.Name)
	if err != nil {
		return nil, err
	}
	slots, err := r.contracts.RelationSlots(table.Name, typeName)
	if err != nil {
		return nil, err
	}
	for slotName, slot := range slots {
		fields[slotName] = slot
	}
	if len(fields) == 0 {
		return nil, nil
	}

	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   name,
		Fields: fields,
	})

	r.mu.Lock()
	if cached, ok := r.createInputCache[name]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.createInputCache[name] = input
	r.mu.Unlock()
	return input, nil
}

// updateInputType builds the full update input: optional scalar fields plus
// nested relation operation slots.
func (r *Resolver) updateInputType(table introspection.Table, typeName string) (*graphql.InputObject, error) {
	name := typeName + "UpdateInput"
	r.mu.RLock()
	cached, ok := r.updateInputCache[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	fields, err := r.UpdateScalarFields(table.Name)
	if err != nil {
		return nil, err
	}
	slots, err := r.contracts.RelationSlots(table.Name, typeName)
	if err != nil {
		return nil, err
	}
	for slotName, slot := range slots {
		fields[slotName] = slot
	}
	if len(fields) == 0 {
		return nil, nil
	}

	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   name,
		Fields: fields,
	})

	r.mu.Lock()
	if cached, ok := r.updateInputCache[name]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.updateInputCache[name] = input
	r.mu.Unlock()
	return input, nil
}

// deletePayloadType builds the delete result: a deletion flag plus the final
// snapshot of the removed row.
func (r *Resolver) deletePayloadType(table introspection.Table, typeName string, tableType *graphql.Object) *graphql.Object {
	name := typeName + "DeletePayload"
	r.mu.RLock()
	cached, ok := r.deletePayloadCache[name]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	payload := graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.Fields{
			"deleted": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
			},
			r.singularQueryName(table): &graphql.Field{
				Type:        tableType,
				Description: "Snapshot of the row as it was before deletion",
			},
		},
	})

	r.mu.Lock()
	if cached, ok := r.deletePayloadCache[name]; ok {
		r.mu.Unlock()
		return cached
	}
	r.deletePayloadCache[name] = payload
	r.mu.Unlock()
	return payload
}

func (r *Resolver) makeCreateResolver(table introspection.Table, typeName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx, span := startResolverSpan(p.Context, "graphql.mutation.create",
			attribute.String("db.table", table.Name),
		)
		defer span.End()

		input, ok := p.Args["input"].(map[string]interface{})
		if !ok {
			return nil, r.failMutation(ctx, span, typeName, table.Name, "create",
				newMutationError(codeInvalidInput, "input must be an object"))
		}
		r.recordInputShape(ctx, "create", input)

		row, err := r.mutationEngine().Create(ctx, table.Name, typeName, input)
		if err != nil {
			return nil, r.failMutation(ctx, span, typeName, table.Name, "create", err)
		}

		r.finishMutation(ctx, span, typeName, "create")
		return row, nil
	}
}

func (r *Resolver) makeUpdateResolver(table introspection.Table, pkCols []introspection.Column, typeName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx, span := startResolverSpan(p.Context, "graphql.mutation.update",
			attribute.String("db.table", table.Name),
		)
		defer span.End()

		pk, err := primaryKeyFromArgs(table, pkCols, p.Args)
		if err != nil {
			return nil, r.failMutation(ctx, span, typeName, table.Name, "update", err)
		}
		input, ok := p.Args["input"].(map[string]interface{})
		if !ok {
			return nil, r.failMutation(ctx, span, typeName, table.Name, "update",
				newMutationError(codeInvalidInput, "input must be an object"))
		}
		r.recordInputShape(ctx, "update", input)

		row, err := r.mutationEngine().Update(ctx, table.Name, typeName, pk, input)
		if err != nil {
			return nil, r.failMutation(ctx, span, typeName, table.Name, "update", err)
		}

		r.finishMutation(ctx, span, typeName, "update")
		return row, nil
	}
}

func (r *Resolver) makeDeleteResolver(table introspection.Table, pkCols []introspection.Column, typeName string) graphql.FieldResolveFn {
	rowField := r.singularQueryName(table)
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx, span := startResolverSpan(p.Context, "graphql.mutation.delete",
			attribute.String("db.table", table.Name),
		)
		defer span.End()

		pk, err := primaryKeyFromArgs(table, pkCols, p.Args)
		if err != nil {
			return nil, r.failMutation(ctx, span, typeName, table.Name, "delete", err)
		}

		row, err := r.mutationEngine().Delete(ctx, table.Name, typeName, pk)
		if err != nil {
			return nil, r.failMutation(ctx, span, typeName, table.Name, "delete", err)
		}

		r.finishMutation(ctx, span, typeName, "delete")
		return map[string]interface{}{
			"deleted": true,
			rowField:  row,
		}, nil
	}
}

// mutationEngine returns the relation operation executor, building default
// collaborators when the resolver was not explicitly wired.
func (r *Resolver) mutationEngine() *nested.Executor {
	r.mu.RLock()
	engine := r.engine
	r.mu.RUnlock()
	if engine == nil {
		r.ensureRelationComponents()
		r.mu.RLock()
		engine = r.engine
		r.mu.RUnlock()
	}
	return engine
}

// failMutation marks the request transaction for rollback, normalizes the
// error, and records span and metric outcomes.
func (r *Resolver) failMutation(ctx context.Context, span trace.Span, typeName, table, action string, err error) error {
	if mc := dbexec.MutationContextFromContext(ctx); mc != nil {
		mc.MarkError()
	}
	norm := normalizeMutationError(ctx, table, err)
	class, code := classifyMutationFailure(norm)
	setMutationResultAttributes(span, typeName, class, code)
	finishResolverSpan(span, norm, "")
	if r.nestedMetrics != nil {
		r.nestedMetrics.RecordMutation(ctx, action, code)
	}
	return norm
}

func (r *Resolver) finishMutation(ctx context.Context, span trace.Span, typeName, action string) {
	setMutationResultAttributes(span, typeName, "success", "success")
	finishResolverSpan(span, nil, "success")
	if r.nestedMetrics != nil {
		r.nestedMetrics.RecordMutation(ctx, action, "success")
	}
}

func (r *Resolver) recordInputShape(ctx context.Context, action string, input map[string]interface{}) {
	if r.nestedMetrics == nil {
		return
	}
	depth, bulk := inputShape(input)
	r.nestedMetrics.RecordInputShape(ctx, action, int64(depth), int64(bulk))
}
