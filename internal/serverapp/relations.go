package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"nestql/internal/audit"
	"nestql/internal/config"
	"nestql/internal/logging"
	"nestql/internal/middleware"
	"nestql/internal/permission"
	"nestql/internal/relation"
	"nestql/internal/relcontract"
)

// relationConfig translates the relations section into the descriptor
// resolver's configuration.
func relationConfig(cfg *config.Config) relation.Config {
	return relation.Config{
		Hidden: cfg.Relations.Hidden,
	}
}

// contractOptions translates the relations section into contract generator
// options: the nesting ceiling, the default contract surface, and per-field
// overrides keyed "TypeName.fieldName".
func contractOptions(cfg *config.Config) []relcontract.Option {
	var opts []relcontract.Option
	if cfg.Relations.MaxDepth > 0 {
		opts = append(opts, relcontract.WithMaxDepth(cfg.Relations.MaxDepth))
	}
	if cfg.Relations.DefaultStyle != "" {
		defaults := relcontract.DefaultFieldConfig()
		defaults.Style = relcontract.Style(cfg.Relations.DefaultStyle)
		opts = append(opts, relcontract.WithDefaults(defaults))
	}
	for key, fieldCfg := range cfg.Relations.Fields {
		typeName, field, ok := splitFieldKey(key)
		if !ok {
			continue
		}
		opts = append(opts, relcontract.WithFieldConfig(typeName, field, fieldRelationConfig(cfg.Relations.DefaultStyle, fieldCfg)))
	}
	return opts
}

func fieldRelationConfig(defaultStyle string, c config.RelationFieldConfig) relcontract.FieldRelationConfig {
	style := c.Style
	if style == "" {
		style = defaultStyle
	}
	return relcontract.FieldRelationConfig{
		Style:      relcontract.Style(style),
		Connect:    operationConfig(c.Connect),
		Create:     operationConfig(c.Create),
		Update:     operationConfig(c.Update),
		Disconnect: operationConfig(c.Disconnect),
		Set:        operationConfig(c.Set),
	}
}

func operationConfig(c config.RelationVerbConfig) relcontract.OperationConfig {
	return relcontract.OperationConfig{
		Enabled:            c.VerbEnabled(),
		RequiredPermission: c.RequiredPermission,
	}
}

func splitFieldKey(key string) (typeName, field string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			if i == 0 || i == len(key)-1 {
				return "", "", false
			}
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

// buildPermissionManager assembles the relation operation authorizer from
// the permissions section. Caller roles come from the validated database
// role and from the "roles" claim of the OIDC token; the tenant id comes
// from the claim named in the tenant configuration.
func buildPermissionManager(cfg *config.Config) (*permission.Manager, error) {
	opts := []permission.Option{
		permission.WithRoleSource(callerRoles),
		permission.WithDisabledVerbs(disabledVerbFunc(cfg)),
	}
	if cfg.Permissions.Tenant.Enabled {
		claim := cfg.Permissions.Tenant.Claim
		opts = append(opts, permission.WithTenantSource(func(ctx context.Context) (string, bool) {
			return claimString(ctx, claim)
		}))
	}

	manager, err := permission.NewManager(cfg.Permissions, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid permissions configuration: %w", err)
	}
	return manager, nil
}

func callerRoles(ctx context.Context) []string {
	var roles []string
	if role, ok := middleware.DBRoleFromContext(ctx); ok && role.Role != "" {
		roles = append(roles, role.Role)
	}
	authCtx, ok := middleware.AuthFromContext(ctx)
	if !ok {
		return roles
	}
	switch claim := authCtx.Claims["roles"].(type) {
	case []interface{}:
		for _, entry := range claim {
			if s, ok := entry.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
	case string:
		if claim != "" {
			roles = append(roles, claim)
		}
	}
	return roles
}

func claimString(ctx context.Context, claim string) (string, bool) {
	if claim == "" {
		return "", false
	}
	authCtx, ok := middleware.AuthFromContext(ctx)
	if !ok {
		return "", false
	}
	value, ok := authCtx.Claims[claim].(string)
	return value, ok && value != ""
}

// disabledVerbFunc mirrors the contract configuration at execution time, so
// programmatic payloads cannot use verbs the schema never exposed.
func disabledVerbFunc(cfg *config.Config) permission.DisabledVerbFunc {
	defaultStyle := cfg.Relations.DefaultStyle
	fields := cfg.Relations.Fields
	return func(typeName, field string, verb relation.Verb) bool {
		fieldCfg, ok := fields[typeName+"."+field]
		if !ok {
			return defaultStyle == string(relcontract.StyleIDOnly) &&
				(verb == relation.VerbCreate || verb == relation.VerbUpdate)
		}
		style := fieldCfg.Style
		if style == "" {
			style = defaultStyle
		}
		if style == string(relcontract.StyleIDOnly) && (verb == relation.VerbCreate || verb == relation.VerbUpdate) {
			return true
		}
		switch verb {
		case relation.VerbConnect:
			return !fieldCfg.Connect.VerbEnabled()
		case relation.VerbCreate:
			return !fieldCfg.Create.VerbEnabled()
		case relation.VerbUpdate:
			return !fieldCfg.Update.VerbEnabled()
		case relation.VerbDisconnect:
			return !fieldCfg.Disconnect.VerbEnabled()
		case relation.VerbSet:
			return !fieldCfg.Set.VerbEnabled()
		}
		return false
	}
}

// buildAuditRecorder returns the mutation audit trail, or nil when auditing
// is disabled.
func buildAuditRecorder(cfg *config.Config, logger *logging.Logger) audit.Recorder {
	if !cfg.Audit.Enabled {
		return nil
	}
	recorder := audit.NewLogger(
		logger.WithFields(slog.String("component", "audit")),
		audit.WithSnapshots(cfg.Audit.Snapshots),
		audit.WithActorSource(func(ctx context.Context) string {
			if authCtx, ok := middleware.AuthFromContext(ctx); ok {
				return authCtx.Subject
			}
			return ""
		}),
	)
	logger.Info("mutation audit trail enabled", slog.Bool("snapshots", cfg.Audit.Snapshots))
	return recorder
}
