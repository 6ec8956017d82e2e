// Package resolver builds and executes GraphQL schemas from database introspection.
// It dynamically generates GraphQL types, queries, and resolvers based on the database schema,
// supporting filtering, ordering, pagination, relationship resolution with N+1 query prevention,
// and nested relation mutations executed through the relation operation engine.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"nestql/internal/audit"
	"nestql/internal/dbexec"
	"nestql/internal/introspection"
	"nestql/internal/naming"
	"nestql/internal/nested"
	"nestql/internal/observability"
	"nestql/internal/permission"
	"nestql/internal/planner"
	"nestql/internal/relation"
	"nestql/internal/relcontract"
	"nestql/internal/schemafilter"
	"nestql/internal/sqltype"
)

// Resolver handles GraphQL query execution against a database.
// It maintains caches for GraphQL types and input objects to avoid redundant construction.
type Resolver struct {
	executor           dbexec.QueryExecutor
	dbSchema           *introspection.Schema
	typeCache          map[string]*graphql.Object
	orderByClauseCache map[string]*graphql.InputObject
	whereCache         map[string]*graphql.InputObject
	filterCache        map[string]*graphql.InputObject
	enumCache          map[string]*graphql.Enum
	createInputCache   map[string]*graphql.InputObject
	updateInputCache   map[string]*graphql.InputObject
	deletePayloadCache map[string]*graphql.Object
	singularQueryCache map[string]string
	singularTypeCache  map[string]string
	singularNamer      *naming.Namer
	orderDirection     *graphql.Enum
	orderByPolicy      *graphql.Enum
	nonNegativeInt     *graphql.Scalar
	jsonType           *graphql.Scalar
	bigIntType         *graphql.Scalar
	decimalType        *graphql.Scalar
	dateType           *graphql.Scalar
	timeType           *graphql.Scalar
	yearType           *graphql.Scalar
	bytesType          *graphql.Scalar
	uuidType           *graphql.Scalar
	limits             *planner.PlanLimits
	defaultLimit       int
	filters            schemafilter.Config

	// Relation mutation collaborators. Nil collaborators are replaced with
	// defaults on the first schema build.
	relations     *relation.Resolver
	contracts     *relcontract.Generator
	perms         *permission.Manager
	recorder      audit.Recorder
	engine        *nested.Executor
	nestedDepth   int
	nestedBulk    int
	nestedMetrics *observability.NestedMetrics

	mu sync.RWMutex
}

// NewResolver creates a new resolver with the given executor, schema, and optional limits.
// The executor handles SQL query execution, dbSchema provides the database structure,
// and limits (if non-nil) enforces query depth, complexity, and row count constraints.
func NewResolver(executor dbexec.QueryExecutor, dbSchema *introspection.Schema, limits *planner.PlanLimits, defaultLimit int, filters schemafilter.Config, namingConfig naming.Config) *Resolver {
	if defaultLimit <= 0 {
		defaultLimit = planner.DefaultListLimit
	}
	return &Resolver{
		executor:           executor,
		dbSchema:           dbSchema,
		typeCache:          make(map[string]*graphql.Object),
		orderByClauseCache: make(map[string]*graphql.InputObject),
		whereCache:         make(map[string]*graphql.InputObject),
		filterCache:        make(map[string]*graphql.InputObject),
		enumCache:          make(map[string]*graphql.Enum),
		createInputCache:   make(map[string]*graphql.InputObject),
		updateInputCache:   make(map[string]*graphql.InputObject),
		deletePayloadCache: make(map[string]*graphql.Object),
		singularQueryCache: make(map[string]string),
		singularTypeCache:  make(map[string]string),
		singularNamer:      naming.New(namingConfig, nil),
		limits:             limits,
		defaultLimit:       defaultLimit,
		filters:            filters,
	}
}

// SetRelationComponents installs the relation descriptor resolver and the
// contract generator used for mutation input generation. Both default to
// configuration-free instances when unset.
func (r *Resolver) SetRelationComponents(relations *relation.Resolver, contracts *relcontract.Generator) {
	r.relations = relations
	r.contracts = contracts
}

// SetPermissionManager installs the relation operation authorizer.
func (r *Resolver) SetPermissionManager(m *permission.Manager) {
	r.perms = m
}

// SetAuditRecorder installs the mutation audit trail.
func (r *Resolver) SetAuditRecorder(rec audit.Recorder) {
	r.recorder = rec
}

// SetNestedLimits overrides the nested mutation depth and bulk-size limits.
func (r *Resolver) SetNestedLimits(maxDepth, maxBulk int) {
	r.nestedDepth = maxDepth
	r.nestedBulk = maxBulk
}

// SetNestedMetrics installs the nested-engine metric recorder.
func (r *Resolver) SetNestedMetrics(m *observability.NestedMetrics) {
	r.nestedMetrics = m
}

// ContractRegistrySize reports how many relation contracts the generator
// holds, for observability.
func (r *Resolver) ContractRegistrySize() int {
	if r.contracts == nil {
		return 0
	}
	return r.contracts.Size()
}

// BuildGraphQLSchema constructs an executable GraphQL schema from the database schema.
// It creates types for each table, adds list and by-primary-key queries, wires up
// relationship resolvers for foreign key navigation, and adds create/update/delete
// mutations with nested relation operation slots.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	r.ensureRelationComponents()

	queryFields := graphql.Fields{}

	for _, table := range r.dbSchema.Tables {
		queryFields = r.addTableQueries(queryFields, table)
	}

	// If no tables exist, add a placeholder query to satisfy GraphQL requirements
	if len(queryFields) == 0 {
		queryFields["_schema"] = &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return "No tables found in database", nil
			},
			Description: "Placeholder field when database has no tables",
		}
	}

	rootQuery := graphql.ObjectConfig{
		Name:   "Query",
		Fields: queryFields,
	}

	mutationFields := graphql.Fields{}
	for _, table := range r.dbSchema.Tables {
		var err error
		mutationFields, err = r.addTableMutations(mutationFields, table)
		if err != nil {
			return graphql.Schema{}, err
		}
	}

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(rootQuery),
	}
	if len(mutationFields) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutationFields,
		})
	}

	if r.nestedMetrics != nil {
		r.nestedMetrics.SetContractRegistrySize(context.Background(), r.contracts.Size())
	}

	return graphql.NewSchema(schemaConfig)
}

// ensureRelationComponents fills in default collaborators so a resolver
// constructed without explicit wiring still builds a complete schema.
func (r *Resolver) ensureRelationComponents() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.relations == nil {
		r.relations = relation.NewResolver(r.dbSchema, relation.Config{})
	}
	if r.contracts == nil {
		r.contracts = relcontract.NewGenerator(r.relations, r)
	}
	if r.engine == nil {
		opts := []nested.ExecutorOption{
			nested.WithLimits(r.nestedDepth, r.nestedBulk),
		}
		var checker nested.PermissionChecker
		if r.perms != nil {
			checker = r.perms
			opts = append(opts, nested.WithTenantChecker(r.perms))
		}
		if r.nestedMetrics != nil {
			checker = &meteredPermissionChecker{inner: checker, metrics: r.nestedMetrics}
		}
		if checker != nil {
			opts = append(opts, nested.WithPermissionChecker(checker))
		}
		if r.recorder != nil {
			opts = append(opts, nested.WithAuditRecorder(r.recorder))
		}
		r.engine = nested.NewExecutor(r.relations, newSQLStore(r), opts...)
	}
}

func (r *Resolver) singularQueryName(table introspection.Table) string {
	key := table.Name
	r.mu.RLock()
	if cached, ok := r.singularQueryCache[key]; ok {
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	name := table.GraphQLSingleQueryName
	if name == "" {
		name = r.singularNamer.ToGraphQLFieldName(r.singularNamer.Singularize(table.Name))
	}

	r.mu.Lock()
	if cached, ok := r.singularQueryCache[key]; ok {
		r.mu.Unlock()
		return cached
	}
	r.singularQueryCache[key] = name
	r.mu.Unlock()

	return name
}

func (r *Resolver) singularTypeName(table introspection.Table) string {
	key := table.Name
	r.mu.RLock()
	if cached, ok := r.singularTypeCache[key]; ok {
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	name := table.GraphQLSingleTypeName
	if name == "" {
		name = r.singularNamer.ToGraphQLTypeName(r.singularNamer.Singularize(table.Name))
	}

	r.mu.Lock()
	if cached, ok := r.singularTypeCache[key]; ok {
		r.mu.Unlock()
		return cached
	}
	r.singularTypeCache[key] = name
	r.mu.Unlock()

	return name
}

func (r *Resolver) addTableQueries(fields graphql.Fields, table introspection.Table) graphql.Fields {
	if r.dbSchema != nil {
		if jc, ok := r.dbSchema.Junctions[table.Name]; ok && jc.Type == introspection.JunctionTypePure {
			return fields
		}
	}

	// Create the GraphQL type for this table
	tableType := r.buildGraphQLType(table)

	fieldName := introspection.GraphQLQueryName(table)

	// List query
	fields[fieldName] = &graphql.Field{
		Type: graphql.NewList(tableType),
		Args: graphql.FieldConfigArgument{
			"limit": &graphql.ArgumentConfig{
				Type:         r.nonNegativeIntScalar(),
				DefaultValue: r.defaultLimit,
			},
			"offset": &graphql.ArgumentConfig{
				Type:         r.nonNegativeIntScalar(),
				DefaultValue: 0,
			},
		},
		Resolve: r.makeListResolver(table),
	}
	r.addOrderByArgs(fields[fieldName].Args, table)
	if whereInput := r.whereInput(table); whereInput != nil {
		fields[fieldName].Args["where"] = &graphql.ArgumentConfig{
			Type: whereInput,
		}
	}

	// Primary key query (supports both single and composite primary keys)
	// Uses singular name (e.g., "user" not "user_by_pk") for cleaner API
	pkCols := introspection.PrimaryKeyColumns(table)
	if len(pkCols) > 0 {
		pkFieldName := r.singularQueryName(table)
		r.addSingleRowQuery(fields, table, tableType, pkFieldName, pkCols)
		r.addPrimaryKeyUniqueLookup(fields, table, tableType, pkFieldName, pkCols)
	}

	// Unique key queries
	r.addUniqueKeyQueries(fields, table, tableType, r.singularQueryName(table))

	return fields
}

// addOrderByArgs adds the orderBy clause-list and orderByPolicy arguments for
// tables that carry indexed columns.
func (r *Resolver) addOrderByArgs(args graphql.FieldConfigArgument, table introspection.Table) {
	orderByArgType := r.orderByArgType(table)
	if orderByArgType == nil {
		return
	}
	args["orderBy"] = &graphql.ArgumentConfig{
		Type: orderByArgType,
	}
	args["orderByPolicy"] = &graphql.ArgumentConfig{
		Type: r.orderByPolicyEnum(),
	}
}

// addSingleRowQuery adds a query field that returns a single row based on the given columns.
// Used for primary key and unique key lookups.
func (r *Resolver) addSingleRowQuery(fields graphql.Fields, table introspection.Table, tableType *graphql.Object, queryName string, cols []introspection.Column) {
	args := graphql.FieldConfigArgument{}
	for i := range cols {
		col := &cols[i]
		argName := introspection.GraphQLFieldName(*col)
		argType := r.mapColumnTypeToGraphQLInput(table, col)
		args[argName] = &graphql.ArgumentConfig{
			Type: graphql.NewNonNull(argType),
		}
	}

	fields[queryName] = &graphql.Field{
		Type:    tableType,
		Args:    args,
		Resolve: r.makeSingleRowResolver(table),
	}
}

// addPrimaryKeyUniqueLookup adds a unique-key style lookup spelling out the
// raw primary key fields, e.g. product_by_sku for pk column sku.
func (r *Resolver) addPrimaryKeyUniqueLookup(fields graphql.Fields, table introspection.Table, tableType *graphql.Object, baseName string, pkCols []introspection.Column) {
	if len(pkCols) == 0 {
		return
	}
	queryName := baseName + "_by"
	for _, col := range pkCols {
		queryName += "_" + introspection.GraphQLFieldName(col)
	}
	r.addSingleRowQuery(fields, table, tableType, queryName, pkCols)
}

// addUniqueKeyQueries adds resolver fields for unique index lookups
func (r *Resolver) addUniqueKeyQueries(fields graphql.Fields, table introspection.Table, tableType *graphql.Object, fieldName string) {
	// Get column map for type lookup
	colMap := make(map[string]*introspection.Column)
	for i := range table.Columns {
		colMap[table.Columns[i].Name] = &table.Columns[i]
	}

	// Iterate through all unique indexes
	for _, idx := range table.Indexes {
		if !idx.Unique || idx.Name == "PRIMARY" {
			continue
		}

		// Collect columns for this index
		var cols []introspection.Column
		queryName := fieldName + "_by"
		for _, colName := range idx.Columns {
			col, exists := colMap[colName]
			if !exists {
				continue
			}
			cols = append(cols, *col)
			queryName += "_" + introspection.GraphQLFieldName(*col)
		}

		if len(cols) > 0 {
			r.addSingleRowQuery(fields, table, tableType, queryName, cols)
		}
	}
}

func (r *Resolver) buildGraphQLType(table introspection.Table) *graphql.Object {
	typeName := introspection.GraphQLTypeName(table)

	// Check cache first
	r.mu.RLock()
	cached, ok := r.typeCache[typeName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	// Create type with FieldsThunk for lazy field initialization
	// This prevents circular reference issues
	objType := graphql.NewObject(graphql.ObjectConfig{
		Name:        typeName,
		Description: table.Comment,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return r.buildFieldsForTable(table)
		}),
	})

	// Cache immediately before building fields (important for circular refs)
	r.mu.Lock()
	if cached, ok := r.typeCache[typeName]; ok {
		r.mu.Unlock()
		return cached
	}
	r.typeCache[typeName] = objType
	r.mu.Unlock()

	return objType
}

// buildFieldsForTable builds the GraphQL fields for a table (called lazily by FieldsThunk)
func (r *Resolver) buildFieldsForTable(table introspection.Table) graphql.Fields {
	fields := graphql.Fields{}

	// Add scalar fields from columns
	for _, col := range table.Columns {
		fieldType := r.mapColumnTypeToGraphQL(table, &col)
		if !col.IsNullable {
			fieldType = graphql.NewNonNull(fieldType)
		}

		field := &graphql.Field{
			Type:        fieldType,
			Description: col.Comment,
		}
		switch introspection.EffectiveGraphQLType(col) {
		case sqltype.TypeUUID:
			field.Resolve = r.uuidColumnResolver(col)
		case sqltype.TypeSet:
			field.Resolve = r.setColumnResolver(col)
		}
		fields[introspection.GraphQLFieldName(col)] = field
	}

	// Add relationship fields
	for _, rel := range table.Relationships {
		if rel.IsManyToOne {
			// Many-to-one: returns single object
			relatedTable, err := r.findTable(rel.RemoteTable)
			if err != nil {
				// Log error but continue - this shouldn't happen if schema was built correctly
				// The error will be caught at query time instead
				continue
			}
			relatedType := r.buildGraphQLType(relatedTable)

			// Keep many-to-one fields nullable even when FK is NOT NULL.
			// Row-level/table-level security can hide the related row; non-null would
			// bubble errors and null out parent objects/lists.
			fields[rel.GraphQLFieldName] = &graphql.Field{
				Type:    relatedType,
				Resolve: r.makeManyToOneResolver(table, rel),
			}
		} else if rel.IsOneToMany {
			// One-to-many: returns list of objects
			relatedTable, err := r.findTable(rel.RemoteTable)
			if err != nil {
				continue
			}
			relatedType := r.buildGraphQLType(relatedTable)

			fields[rel.GraphQLFieldName] = &graphql.Field{
				Type:    graphql.NewList(graphql.NewNonNull(relatedType)),
				Args:    r.listRelationArgs(relatedTable),
				Resolve: r.makeOneToManyResolver(table, rel),
			}
		} else if rel.IsManyToMany {
			// Many-to-many through pure junction: returns list of related entities
			relatedTable, err := r.findTable(rel.RemoteTable)
			if err != nil {
				continue
			}
			relatedType := r.buildGraphQLType(relatedTable)

			fields[rel.GraphQLFieldName] = &graphql.Field{
				Type:    graphql.NewList(graphql.NewNonNull(relatedType)),
				Args:    r.listRelationArgs(relatedTable),
				Resolve: r.makeManyToManyResolver(table, rel),
			}
		} else if rel.IsEdgeList {
			// Edge list through attribute junction: returns list of edge/junction objects
			junctionTable, err := r.findTable(rel.JunctionTable)
			if err != nil {
				continue
			}
			edgeType := r.buildGraphQLType(junctionTable)

			fields[rel.GraphQLFieldName] = &graphql.Field{
				Type:    graphql.NewList(graphql.NewNonNull(edgeType)),
				Args:    r.listRelationArgs(junctionTable),
				Resolve: r.makeEdgeListResolver(table, rel),
			}
		}
	}

	return fields
}

func (r *Resolver) listRelationArgs(relatedTable introspection.Table) graphql.FieldConfigArgument {
	args := graphql.FieldConfigArgument{
		"limit": &graphql.ArgumentConfig{
			Type:         r.nonNegativeIntScalar(),
			DefaultValue: r.defaultLimit,
		},
		"offset": &graphql.ArgumentConfig{
			Type:         r.nonNegativeIntScalar(),
			DefaultValue: 0,
		},
	}
	r.addOrderByArgs(args, relatedTable)
	return args
}

// findTable finds a table by name in the schema
func (r *Resolver) findTable(tableName string) (introspection.Table, error) {
	for _, table := range r.dbSchema.Tables {
		if table.Name == tableName {
			return table, nil
		}
	}
	return introspection.Table{}, fmt.Errorf("table not found: %s", tableName)
}

func (r *Resolver) makeListResolver(table introspection.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		planned, err := r.planFromParams(p)
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}

		if planned.Table.Name != table.Name {
			return nil, fmt.Errorf("planned table mismatch: expected %s got %s", table.Name, planned.Table.Name)
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.Root.SQL, planned.Root.Args...)
		if err != nil {
			return nil, normalizeQueryError(err)
		}
		defer func() {
			_ = rows.Close()
		}()

		results, err := scanRows(rows, columnsForPlan(planned))
		if err != nil {
			return nil, err
		}

		seedBatchRows(p, results)

		return results, nil
	}
}

// makeSingleRowResolver creates a resolver that returns at most one row.
// Used for primary key lookups and unique key lookups.
func (r *Resolver) makeSingleRowResolver(table introspection.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		planned, err := r.planFromParams(p)
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}

		if planned.Table.Name != table.Name {
			return nil, fmt.Errorf("planned table mismatch: expected %s got %s", table.Name, planned.Table.Name)
		}

		rows, err := r.queryExecutorForContext(p.Context).QueryContext(p.Context, planned.Root.SQL, planned.Root.Args...)
		if err != nil {
			return nil, normalizeQueryError(err)
		}
		defer func() {
			_ = rows.Close()
		}()

		results, err := scanRows(rows, columnsForPlan(planned))
		if err != nil {
			return nil, err
		}

		if len(results) == 0 {
			return nil, nil
		}

		return results[0], nil
	}
}

func (r *Resolver) planFromParams(p graphql.ResolveParams) (*planner.Plan, error) {
	field := firstFieldAST(p.Info.FieldASTs)
	if field == nil {
		return nil, fmt.Errorf("missing field AST")
	}

	if r.limits != nil {
		return planner.PlanQuery(r.dbSchema, field, p.Args, planner.WithFragments(p.Info.Fragments), planner.WithLimits(*r.limits), planner.WithDefaultListLimit(r.defaultLimit))
	}
	return planner.PlanQuery(r.dbSchema, field, p.Args, planner.WithFragments(p.Info.Fragments), planner.WithDefaultListLimit(r.defaultLimit))
}

func optionalIntArg(args map[string]interface{}, key string) (int, bool) {
	if args == nil {
		return 0, false
	}
	value, ok := args[key]
	if !ok || value == nil {
		return 0, false
	}
	intValue, ok := value.(int)
	if !ok {
		return 0, false
	}
	if intValue < 0 {
		return 0, false
	}
	return intValue, true
}

func boolArg(args map[string]interface{}, key string) bool {
	if args == nil {
		return false
	}
	value, ok := args[key]
	if !ok || value == nil {
		return false
	}
	boolValue, ok := value.(bool)
	if !ok {
		return false
	}
	return boolValue
}

func sortedOrderByFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Resolver) whereInput(table introspection.Table) *graphql.InputObject {
	typeName := introspection.GraphQLTypeName(table) + "Where"
	r.mu.RLock()
	cached, ok := r.whereCache[typeName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	// Build field map for WHERE input
	fields := graphql.InputObjectConfigFieldMap{}

	for _, col := range table.Columns {
		// Skip JSON columns
		if introspection.EffectiveGraphQLType(col) == sqltype.TypeJSON {
			continue
		}

		fieldName := introspection.GraphQLFieldName(col)
		filterType := r.getFilterInputType(table, col)
		if filterType != nil {
			fields[fieldName] = &graphql.InputObjectFieldConfig{
				Type: filterType,
			}
		}
	}

	// Create a lazy-initialized input object to handle recursive reference
	var inputObj *graphql.InputObject
	inputObj = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: typeName,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			// Add AND/OR operators that reference this type
			fields["AND"] = &graphql.InputObjectFieldConfig{
				Type: graphql.NewList(graphql.NewNonNull(inputObj)),
			}
			fields["OR"] = &graphql.InputObjectFieldConfig{
				Type: graphql.NewList(graphql.NewNonNull(inputObj)),
			}
			// Relationship filters support a single hop: the nested where is
			// scalar-only, so multi-hop filters fail schema validation.
			for _, rel := range table.Relationships {
				if _, taken := fields[rel.GraphQLFieldName]; taken {
					continue
				}
				if relFilter := r.relationFilterInput(rel); relFilter != nil {
					fields[rel.GraphQLFieldName] = &graphql.InputObjectFieldConfig{
						Type: relFilter,
					}
				}
			}
			return fields
		}),
	})

	r.mu.Lock()
	if cached, ok := r.whereCache[typeName]; ok {
		r.mu.Unlock()
		return cached
	}
	r.whereCache[typeName] = inputObj
	r.mu.Unlock()
	return inputObj
}

// relationFilterInput builds the filter input for a relationship field.
// To-one relations take is/isNull, collection relations take some/none.
func (r *Resolver) relationFilterInput(rel introspection.Relationship) *graphql.InputObject {
	targetName := rel.RemoteTable
	if rel.IsEdgeList {
		targetName = rel.JunctionTable
	}
	target, err := r.findTable(targetName)
	if err != nil {
		return nil
	}
	inner := r.scalarWhereInput(target)
	if inner == nil {
		return nil
	}

	var name string
	var filterFields graphql.InputObjectConfigFieldMap
	switch {
	case rel.IsManyToOne:
		name = introspection.GraphQLTypeName(target) + "RelationFilter"
		filterFields = graphql.InputObjectConfigFieldMap{
			"is":     &graphql.InputObjectFieldConfig{Type: inner},
			"isNull": &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		}
	case rel.IsOneToMany || rel.IsManyToMany || rel.IsEdgeList:
		name = introspection.GraphQLTypeName(target) + "ListRelationFilter"
		filterFields = graphql.InputObjectConfigFieldMap{
			"some": &graphql.InputObjectFieldConfig{Type: inner},
			"none": &graphql.InputObjectFieldConfig{Type: inner},
		}
	default:
		return nil
	}

	r.mu.RLock()
	cached, ok := r.whereCache[name]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	filter := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   name,
		Fields: filterFields,
	})

	r.mu.Lock()
	if cached, ok := r.whereCache[name]; ok {
		r.mu.Unlock()
		return cached
	}
	r.whereCache[name] = filter
	r.mu.Unlock()
	return filter
}

// scalarWhereInput builds a column-only where input, used inside relationship
// filters where relation hops are not allowed.
func (r *Resolver) scalarWhereInput(table introspection.Table) *graphql.InputObject {
	typeName := introspection.GraphQLTypeName(table) + "ScalarWhere"
	r.mu.RLock()
	cached, ok := r.whereCache[typeName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for _, col := range table.Columns {
		if introspection.EffectiveGraphQLType(col) == sqltype.TypeJSON {
			continue
		}
		if filterType := r.getFilterInputType(table, col); filterType != nil {
			fields[introspection.GraphQLFieldName(col)] = &graphql.InputObjectFieldConfig{
				Type: filterType,
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}

	var inputObj *graphql.InputObject
	inputObj = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: typeName,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields["AND"] = &graphql.InputObjectFieldConfig{
				Type: graphql.NewList(graphql.NewNonNull(inputObj)),
			}
			fields["OR"] = &graphql.InputObjectFieldConfig{
				Type: graphql.NewList(graphql.NewNonNull(inputObj)),
			}
			return fields
		}),
	})

	r.mu.Lock()
	if cached, ok := r.whereCache[typeName]; ok {
		r.mu.Unlock()
		return cached
	}
	r.whereCache[typeName] = inputObj
	r.mu.Unlock()
	return inputObj
}

func (r *Resolver) getFilterInputType(table introspection.Table, col introspection.Column) *graphql.InputObject {
	category := introspection.EffectiveGraphQLType(col)
	filterName := category.FilterTypeName()

	// ENUM columns filter against their generated enum type, not String.
	if enumType := r.enumTypeForColumn(table, col); enumType != nil {
		filterName = enumType.Name() + "Filter"
	}

	// Check cache
	r.mu.RLock()
	cached, ok := r.filterCache[filterName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	var filterType *graphql.InputObject
	if enumType := r.enumTypeForColumn(table, col); enumType != nil {
		filterType = enumFilterInput(filterName, enumType)
		r.mu.Lock()
		if cached, ok := r.filterCache[filterName]; ok {
			r.mu.Unlock()
			return cached
		}
		r.filterCache[filterName] = filterType
		r.mu.Unlock()
		return filterType
	}
	switch category {
	case sqltype.TypeInt:
		filterType = comparableFilterInput(filterName, graphql.Int)
	case sqltype.TypeFloat:
		filterType = comparableFilterInput(filterName, graphql.Float)
	case sqltype.TypeBoolean:
		filterType = equalityFilterInput(filterName, graphql.Boolean)
	case sqltype.TypeBigInt:
		filterType = comparableFilterInput(filterName, r.bigIntScalar())
	case sqltype.TypeDecimal:
		filterType = comparableFilterInput(filterName, r.decimalScalar())
	case sqltype.TypeDate:
		filterType = comparableFilterInput(filterName, r.dateScalar())
	case sqltype.TypeTime:
		filterType = comparableFilterInput(filterName, r.timeScalar())
	case sqltype.TypeYear:
		filterType = comparableFilterInput(filterName, r.yearScalar())
	case sqltype.TypeBytes:
		filterType = equalityFilterInput(filterName, r.bytesScalar())
	case sqltype.TypeSet:
		filterType = stringFilterInput(filterName)
	case sqltype.TypeUUID:
		filterType = equalityFilterInput(filterName, r.uuidScalar())
	default:
		filterType = stringFilterInput(filterName)
	}

	r.mu.Lock()
	if cached, ok := r.filterCache[filterName]; ok {
		r.mu.Unlock()
		return cached
	}
	r.filterCache[filterName] = filterType
	r.mu.Unlock()
	return filterType
}

// comparableFilterInput builds the standard ordered filter surface for a scalar.
func comparableFilterInput(name string, scalar graphql.Input) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMap{
			"eq":     &graphql.InputObjectFieldConfig{Type: scalar},
			"ne":     &graphql.InputObjectFieldConfig{Type: scalar},
			"lt":     &graphql.InputObjectFieldConfig{Type: scalar},
			"lte":    &graphql.InputObjectFieldConfig{Type: scalar},
			"gt":     &graphql.InputObjectFieldConfig{Type: scalar},
			"gte":    &graphql.InputObjectFieldConfig{Type: scalar},
			"in":     &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(scalar))},
			"notIn":  &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(scalar))},
			"isNull": &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		},
	})
}

// enumFilterInput builds the membership filter surface for an ENUM column.
func enumFilterInput(name string, enumType *graphql.Enum) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMap{
			"eq":     &graphql.InputObjectFieldConfig{Type: enumType},
			"ne":     &graphql.InputObjectFieldConfig{Type: enumType},
			"in":     &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(enumType))},
			"notIn":  &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(enumType))},
			"isNull": &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		},
	})
}

// equalityFilterInput builds the reduced filter surface for scalars without a
// meaningful ordering.
func equalityFilterInput(name string, scalar graphql.Input) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMap{
			"eq":     &graphql.InputObjectFieldConfig{Type: scalar},
			"ne":     &graphql.InputObjectFieldConfig{Type: scalar},
			"isNull": &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		},
	})
}

func stringFilterInput(name string) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMap{
			"eq":      &graphql.InputObjectFieldConfig{Type: graphql.String},
			"ne":      &graphql.InputObjectFieldConfig{Type: graphql.String},
			"lt":      &graphql.InputObjectFieldConfig{Type: graphql.String},
			"lte":     &graphql.InputObjectFieldConfig{Type: graphql.String},
			"gt":      &graphql.InputObjectFieldConfig{Type: graphql.String},
			"gte":     &graphql.InputObjectFieldConfig{Type: graphql.String},
			"in":      &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
			"notIn":   &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
			"like":    &graphql.InputObjectFieldConfig{Type: graphql.String},
			"notLike": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"isNull":  &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		},
	})
}

func fieldNameWithAlias(fields []*ast.Field) string {
	if len(fields) == 0 || fields[0] == nil {
		return ""
	}
	if fields[0].Alias != nil {
		return fields[0].Alias.Value
	}
	return fields[0].Name.Value
}

func stableArgsKey(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}

	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprintf("%s=%v", key, args[key])
	}
	return strings.Join(parts, ",")
}

func responsePathString(path *graphql.ResponsePath) string {
	if path == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	for current := path; current != nil; current = current.Prev {
		parts = append(parts, fmt.Sprint(current.Key))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

var errAccessDenied = errors.New("access denied")

// MySQL/TiDB error codes for access control violations.
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlErrDBAccessDenied     = 1044 // Access denied for user to database
	mysqlErrTableAccessDenied  = 1142 // SELECT command denied to user for table
	mysqlErrColumnAccessDenied = 1143 // SELECT command denied to user for column
)

func normalizeQueryError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
			return errAccessDenied
		}
	}
	return err
}

func scanRows(rows dbexec.Rows, columns []introspection.Column) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))

		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			fieldName := introspection.GraphQLFieldName(col)
			row[fieldName] = convertValue(values[i])
		}

		results = append(results, row)
	}

	return results, rows.Err()
}

// scanRowsWithExtras scans rows that carry extra trailing columns beyond the
// table selection, such as the batch parent alias. Extras keep their SQL
// names.
func scanRowsWithExtras(rows dbexec.Rows, columns []introspection.Column, extras []string) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	total := len(columns) + len(extras)
	for rows.Next() {
		values := make([]interface{}, total)
		valuePtrs := make([]interface{}, total)

		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			fieldName := introspection.GraphQLFieldName(col)
			row[fieldName] = convertValue(values[i])
		}
		for i, extra := range extras {
			row[extra] = convertValue(values[len(columns)+i])
		}

		results = append(results, row)
	}

	return results, rows.Err()
}

func graphQLFieldNameForColumn(table introspection.Table, columnName string) string {
	for _, col := range table.Columns {
		if col.Name == columnName {
			return introspection.GraphQLFieldName(col)
		}
	}
	return introspection.ToGraphQLFieldName(columnName)
}

func columnsForPlan(plan *planner.Plan) []introspection.Column {
	if plan == nil {
		return nil
	}
	if len(plan.Columns) > 0 {
		return plan.Columns
	}
	return plan.Table.Columns
}

func convertValue(val interface{}) interface{} {
	if val == nil {
		return nil
	}

	// Convert []byte to string
	if b, ok := val.([]byte); ok {
		return string(b)
	}

	return val
}

func (r *Resolver) mapColumnTypeToGraphQL(table introspection.Table, col *introspection.Column) graphql.Output {
	switch introspection.EffectiveGraphQLType(*col) {
	case sqltype.TypeJSON:
		return r.jsonScalar()
	case sqltype.TypeInt:
		return graphql.Int
	case sqltype.TypeFloat:
		return graphql.Float
	case sqltype.TypeBoolean:
		return graphql.Boolean
	case sqltype.TypeBigInt:
		return r.bigIntScalar()
	case sqltype.TypeDecimal:
		return r.decimalScalar()
	case sqltype.TypeDate:
		return r.dateScalar()
	case sqltype.TypeTime:
		return r.timeScalar()
	case sqltype.TypeYear:
		return r.yearScalar()
	case sqltype.TypeBytes:
		return r.bytesScalar()
	case sqltype.TypeSet:
		return graphql.NewList(graphql.NewNonNull(graphql.String))
	case sqltype.TypeUUID:
		return r.uuidScalar()
	default:
		if enumType := r.enumTypeForColumn(table, *col); enumType != nil {
			return enumType
		}
		return graphql.String
	}
}

func (r *Resolver) mapColumnTypeToGraphQLInput(table introspection.Table, col *introspection.Column) graphql.Input {
	switch introspection.EffectiveGraphQLType(*col) {
	case sqltype.TypeJSON:
		return r.jsonScalar()
	case sqltype.TypeInt:
		return graphql.Int
	case sqltype.TypeFloat:
		return graphql.Float
	case sqltype.TypeBoolean:
		return graphql.Boolean
	case sqltype.TypeBigInt:
		return r.bigIntScalar()
	case sqltype.TypeDecimal:
		return r.decimalScalar()
	case sqltype.TypeDate:
		return r.dateScalar()
	case sqltype.TypeTime:
		return r.timeScalar()
	case sqltype.TypeYear:
		return r.yearScalar()
	case sqltype.TypeBytes:
		return r.bytesScalar()
	case sqltype.TypeSet:
		return graphql.NewList(graphql.NewNonNull(graphql.String))
	case sqltype.TypeUUID:
		return r.uuidScalar()
	default:
		if enumType := r.enumTypeForColumn(table, *col); enumType != nil {
			return enumType
		}
		return graphql.String
	}
}
