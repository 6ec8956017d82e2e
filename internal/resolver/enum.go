package resolver

import (
	"fmt"
	"strings"

	"nestql/internal/introspection"

	"github.com/graphql-go/graphql"
)

// normalizeEnumValueName converts a database enum member into a valid GraphQL
// enum value name. ASCII letters are uppercased, digits are kept, runs of
// other ASCII characters collapse into a single underscore, and non-ASCII
// runes are replaced with a U<codepoint> token. Names that would start with a
// digit get a VALUE_ prefix; empty results become VALUE.
func normalizeEnumValueName(value string) string {
	var parts []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			current.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			current.WriteRune(r)
		case r > 0x7F:
			flush()
			if r > 0xFFFF {
				parts = append(parts, fmt.Sprintf("U%06X", r))
			} else {
				parts = append(parts, fmt.Sprintf("U%04X", r))
			}
		default:
			flush()
		}
	}
	flush()

	name := strings.Join(parts, "_")
	if name == "" {
		return "VALUE"
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "VALUE_" + name
	}
	return name
}

// uniqueEnumValueName disambiguates collisions produced by normalization by
// appending an ordinal suffix starting at _2.
func uniqueEnumValueName(name string, used map[string]int) string {
	count := used[name]
	used[name] = count + 1
	if count == 0 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, count+1)
}

// enumTypeForColumn builds (and caches) a GraphQL enum for an ENUM column.
// Returns nil when the column is not an enum or carries no members.
func (r *Resolver) enumTypeForColumn(table introspection.Table, col introspection.Column) *graphql.Enum {
	if !strings.EqualFold(col.DataType, "enum") || len(col.EnumValues) == 0 {
		return nil
	}

	fieldName := introspection.GraphQLFieldName(col)
	typeName := introspection.GraphQLTypeName(table) + strings.ToUpper(fieldName[:1]) + fieldName[1:] + "Enum"

	r.mu.RLock()
	cached, ok := r.enumCache[typeName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	used := make(map[string]int, len(col.EnumValues))
	values := graphql.EnumValueConfigMap{}
	for _, member := range col.EnumValues {
		name := uniqueEnumValueName(normalizeEnumValueName(member), used)
		values[name] = &graphql.EnumValueConfig{Value: member}
	}

	enumType := graphql.NewEnum(graphql.EnumConfig{
		Name:        typeName,
		Values:      values,
		Description: col.Comment,
	})

	r.mu.Lock()
	if cached, ok := r.enumCache[typeName]; ok {
		r.mu.Unlock()
		return cached
	}
	r.enumCache[typeName] = enumType
	r.mu.Unlock()

	return enumType
}
