package resolver

import (
	"fmt"
	"strings"

	"nestql/internal/introspection"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"
)

// uuidColumnResolver normalizes UUID column values to canonical lowercase
// text form. BINARY(16) columns come back as raw bytes, CHAR(36) columns as
// text in whatever case the writer used.
func (r *Resolver) uuidColumnResolver(col introspection.Column) graphql.FieldResolveFn {
	fieldName := introspection.GraphQLFieldName(col)
	return func(p graphql.ResolveParams) (interface{}, error) {
		row, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		raw, ok := row[fieldName]
		if !ok || raw == nil {
			return nil, nil
		}

		switch value := raw.(type) {
		case []byte:
			if len(value) == 16 {
				parsed, err := uuid.FromBytes(value)
				if err != nil {
					return nil, fmt.Errorf("invalid binary UUID in column %s: %w", col.Name, err)
				}
				return parsed.String(), nil
			}
			parsed, err := uuid.Parse(string(value))
			if err != nil {
				return nil, fmt.Errorf("invalid UUID in column %s: %w", col.Name, err)
			}
			return parsed.String(), nil
		case string:
			parsed, err := uuid.Parse(value)
			if err != nil {
				return nil, fmt.Errorf("invalid UUID in column %s: %w", col.Name, err)
			}
			return parsed.String(), nil
		default:
			return raw, nil
		}
	}
}

// setColumnResolver splits MySQL SET values into a list of member strings.
func (r *Resolver) setColumnResolver(col introspection.Column) graphql.FieldResolveFn {
	fieldName := introspection.GraphQLFieldName(col)
	return func(p graphql.ResolveParams) (interface{}, error) {
		row, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		raw, ok := row[fieldName]
		if !ok || raw == nil {
			return nil, nil
		}
		return parseSetColumnValue(raw), nil
	}
}

// parseSetColumnValue converts a raw SET column value into its member list.
// An empty SET is an empty list, not null.
func parseSetColumnValue(raw interface{}) []string {
	var text string
	switch value := raw.(type) {
	case []byte:
		text = string(value)
	case string:
		text = value
	default:
		text = fmt.Sprint(value)
	}
	if text == "" {
		return []string{}
	}
	return strings.Split(text, ",")
}
