package schemarefresh

import (
	"context"
	"fmt"

	"nestql/internal/audit"
	"nestql/internal/dbexec"
	"nestql/internal/introspection"
	"nestql/internal/junction"
	"nestql/internal/naming"
	"nestql/internal/observability"
	"nestql/internal/permission"
	"nestql/internal/planner"
	"nestql/internal/relation"
	"nestql/internal/relcontract"
	"nestql/internal/resolver"
	"nestql/internal/schemafilter"
	"nestql/internal/schemanaming"

	"github.com/graphql-go/graphql"
)

// BuildSchemaConfig defines inputs for shared schema assembly.
type BuildSchemaConfig struct {
	Queryer                introspection.Queryer
	Executor               dbexec.QueryExecutor
	DatabaseName           string
	Filters                schemafilter.Config
	UUIDColumns            map[string][]string
	TinyInt1BooleanColumns map[string][]string
	TinyInt1IntColumns     map[string][]string
	Naming                 naming.Config
	Limits                 *planner.PlanLimits
	DefaultLimit           int

	// Relation mutation collaborators. Nil values keep the resolver's
	// configuration-free defaults: every verb enabled, no authorization,
	// no audit trail.
	Relations       relation.Config
	ContractOptions []relcontract.Option
	Permissions     *permission.Manager
	AuditRecorder   audit.Recorder
	NestedMaxDepth  int
	NestedMaxBulk   int
	NestedMetrics   *observability.NestedMetrics
}

// BuildSchemaResult contains schema artifacts produced by BuildSchema.
type BuildSchemaResult struct {
	DBSchema      *introspection.Schema
	GraphQLSchema graphql.Schema
}

// BuildSchema runs the canonical schema assembly pipeline used by runtime and tests.
func BuildSchema(ctx context.Context, cfg BuildSchemaConfig) (*BuildSchemaResult, error) {
	if cfg.Queryer == nil {
		return nil, fmt.Errorf("schema builder requires an introspection queryer")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("schema builder requires a query executor")
	}

	dbSchema, err := introspection.IntrospectDatabaseContext(ctx, cfg.Queryer, cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}

	schemafilter.Apply(ctx, dbSchema, cfg.Filters)

	if err := introspection.ApplyTinyInt1TypeOverrides(dbSchema, cfg.TinyInt1BooleanColumns, cfg.TinyInt1IntColumns); err != nil {
		return nil, fmt.Errorf("failed to apply tinyint(1) type mappings: %w", err)
	}

	if err := introspection.ApplyUUIDTypeOverrides(dbSchema, cfg.UUIDColumns); err != nil {
		return nil, fmt.Errorf("failed to apply UUID type mappings: %w", err)
	}

	junctions := junction.ClassifyJunctions(dbSchema)
	dbSchema.Junctions = junctions.ToIntrospectionMap()

	namer := naming.New(cfg.Naming, nil)
	if err := introspection.RebuildRelationshipsWithJunctions(dbSchema, namer, dbSchema.Junctions); err != nil {
		return nil, fmt.Errorf("failed to rebuild relationships: %w", err)
	}
	schemanaming.Apply(dbSchema, namer)

	res := resolver.NewResolver(cfg.Executor, dbSchema, cfg.Limits, cfg.DefaultLimit, cfg.Filters, cfg.Naming)

	relations := relation.NewResolver(dbSchema, cfg.Relations)
	contracts := relcontract.NewGenerator(relations, res, cfg.ContractOptions...)
	res.SetRelationComponents(relations, contracts)
	if cfg.Permissions != nil {
		res.SetPermissionManager(cfg.Permissions)
	}
	if cfg.AuditRecorder != nil {
		res.SetAuditRecorder(cfg.AuditRecorder)
	}
	res.SetNestedLimits(cfg.NestedMaxDepth, cfg.NestedMaxBulk)
	if cfg.NestedMetrics != nil {
		res.SetNestedMetrics(cfg.NestedMetrics)
	}

	graphqlSchema, err := res.BuildGraphQLSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	return &BuildSchemaResult{
		DBSchema:      dbSchema,
		GraphQLSchema: graphqlSchema,
	}, nil
}
