// Package permission authorizes relation operations before the nested
// mutation engine dispatches them.
package permission

import (
	"context"
	"fmt"
	"path"
	"strings"

	"nestql/internal/nested"
	"nestql/internal/relation"
)

// Config declares the rule set and tenant scoping for relation operations.
// DefaultPolicy decides operations no rule matches; empty means allow.
type Config struct {
	DefaultPolicy string       `mapstructure:"default_policy"`
	Rules         []RuleConfig `mapstructure:"rules"`
	Tenant        TenantConfig `mapstructure:"tenant"`
}

// RuleConfig is one ordered authorization rule. Empty selector lists match
// anything; patterns use glob syntax and match case-insensitively.
type RuleConfig struct {
	Types      []string `mapstructure:"types"`
	Fields     []string `mapstructure:"fields"`
	Operations []string `mapstructure:"operations"`
	Roles      []string `mapstructure:"roles"`
	Effect     string   `mapstructure:"effect"`
}

// TenantConfig scopes row access to the caller's tenant. Column names the
// table column carrying the tenant id; Claim names the JWT claim carrying
// the caller's tenant.
type TenantConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Column  string `mapstructure:"column"`
	Claim   string `mapstructure:"claim"`
}

// Rule effects.
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// DeniedError signals a role-based denial of a relation operation. It is
// distinct from the payload validation failures so clients can tell "fix
// your input" from "you're not allowed".
type DeniedError struct {
	TypeName string
	Field    string
	Verb     relation.Verb
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("operation %q on %s.%s denied", e.Verb, e.TypeName, e.Field)
}

// Code returns the stable machine-readable code for this denial.
func (e *DeniedError) Code() string {
	return "PERMISSION_DENIED"
}

// Extensions returns the GraphQL error extensions payload.
func (e *DeniedError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":      e.Code(),
		"typeName":  e.TypeName,
		"field":     e.Field,
		"operation": string(e.Verb),
	}
}

// RoleSource yields the caller's roles from a request context.
type RoleSource func(ctx context.Context) []string

// TenantSource yields the caller's tenant id from a request context.
type TenantSource func(ctx context.Context) (string, bool)

// DisabledVerbFunc reports whether a verb is disabled by configuration for
// a relation field.
type DisabledVerbFunc func(typeName, field string, verb relation.Verb) bool

// Manager evaluates relation operation permissions: configuration-level
// verb enablement first, then the ordered rule set. The first matching
// rule decides; with no match the default policy applies.
type Manager struct {
	rules       []RuleConfig
	tenant      TenantConfig
	denyDefault bool
	roles       RoleSource
	tenantID    TenantSource
	disabled    DisabledVerbFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithRoleSource installs the caller-role lookup.
func WithRoleSource(fn RoleSource) Option {
	return func(m *Manager) { m.roles = fn }
}

// WithTenantSource installs the caller-tenant lookup.
func WithTenantSource(fn TenantSource) Option {
	return func(m *Manager) { m.tenantID = fn }
}

// WithDisabledVerbs installs the configuration-level verb enablement check.
func WithDisabledVerbs(fn DisabledVerbFunc) Option {
	return func(m *Manager) { m.disabled = fn }
}

// NewManager validates the rule set and builds a Manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	switch cfg.DefaultPolicy {
	case "", EffectAllow, EffectDeny:
	default:
		return nil, fmt.Errorf("permission default_policy: unknown effect %q", cfg.DefaultPolicy)
	}
	for i, rule := range cfg.Rules {
		switch rule.Effect {
		case EffectAllow, EffectDeny:
		default:
			return nil, fmt.Errorf("permission rule %d: unknown effect %q", i, rule.Effect)
		}
	}

	m := &Manager{
		rules:       cfg.Rules,
		tenant:      cfg.Tenant,
		denyDefault: cfg.DefaultPolicy == EffectDeny,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// AssertRelationOperationAllowed authorizes one verb against a relation
// field. Configuration-disabled verbs fail with OperationDisabledError;
// rule denials fail with DeniedError. The error is returned unchanged to
// the dispatcher, never downgraded to a silent no-op.
func (m *Manager) AssertRelationOperationAllowed(ctx context.Context, typeName, field string, verb relation.Verb) error {
	if m.disabled != nil && m.disabled(typeName, field, verb) {
		return &nested.OperationDisabledError{TypeName: typeName, Field: field}
	}

	callerRoles := m.callerRoles(ctx)
	for _, rule := range m.rules {
		if !ruleMatches(rule, typeName, field, verb, callerRoles) {
			continue
		}
		if rule.Effect == EffectDeny {
			return &DeniedError{TypeName: typeName, Field: field, Verb: verb}
		}
		return nil
	}
	if m.denyDefault {
		return &DeniedError{TypeName: typeName, Field: field, Verb: verb}
	}
	return nil
}

// CheckTenantAccess verifies that a fetched row belongs to the caller's
// tenant. Rows without the tenant column are not tenant-scoped and always
// pass. When tenant scoping is enabled and the caller's tenant is unknown,
// access is denied.
func (m *Manager) CheckTenantAccess(ctx context.Context, typeName, operation string, row map[string]interface{}) error {
	if !m.tenant.Enabled || m.tenant.Column == "" || row == nil {
		return nil
	}
	rowTenant, scoped := row[m.tenant.Column]
	if !scoped || rowTenant == nil {
		return nil
	}

	callerTenant, ok := m.callerTenant(ctx)
	if !ok || fmt.Sprintf("%v", rowTenant) != callerTenant {
		return &nested.TenantAccessError{TypeName: typeName, Operation: operation}
	}
	return nil
}

func (m *Manager) callerRoles(ctx context.Context) []string {
	if m.roles == nil {
		return nil
	}
	return m.roles(ctx)
}

func (m *Manager) callerTenant(ctx context.Context) (string, bool) {
	if m.tenantID == nil {
		return "", false
	}
	return m.tenantID(ctx)
}

func ruleMatches(rule RuleConfig, typeName, field string, verb relation.Verb, roles []string) bool {
	if len(rule.Types) > 0 && !matchesAny(typeName, rule.Types) {
		return false
	}
	if len(rule.Fields) > 0 && !matchesAny(field, rule.Fields) {
		return false
	}
	if len(rule.Operations) > 0 && !operationMatches(verb, rule.Operations) {
		return false
	}
	if len(rule.Roles) > 0 && !anyRoleMatches(roles, rule.Roles) {
		return false
	}
	return true
}

func operationMatches(verb relation.Verb, operations []string) bool {
	for _, op := range operations {
		if op == "*" || strings.EqualFold(op, string(verb)) {
			return true
		}
	}
	return false
}

func anyRoleMatches(roles, patterns []string) bool {
	for _, role := range roles {
		if matchesAny(role, patterns) {
			return true
		}
	}
	return false
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		ok, err := path.Match(strings.ToLower(pattern), value)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
