package resolver

import (
	"nestql/internal/introspection"
	"nestql/internal/planner"
	"nestql/internal/scalars"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

func firstFieldAST(fields []*ast.Field) *ast.Field {
	if len(fields) == 0 {
		return nil
	}
	return fields[0]
}

func (r *Resolver) orderByArgType(table introspection.Table) graphql.Input {
	clauseInput := r.orderByClauseInput(table)
	if clauseInput == nil {
		return nil
	}
	return graphql.NewList(graphql.NewNonNull(clauseInput))
}

func (r *Resolver) orderByClauseInput(table introspection.Table) *graphql.InputObject {
	fields := planner.OrderByIndexedFields(table)
	if len(fields) == 0 {
		return nil
	}
	typeName := introspection.GraphQLTypeName(table) + "OrderByClauseInput"
	r.mu.RLock()
	cached, ok := r.orderByClauseCache[typeName]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	orderDirection := r.orderDirectionEnum()
	clauseFields := graphql.InputObjectConfigFieldMap{}
	for _, name := range sortedOrderByFieldNames(fields) {
		clauseFields[name] = &graphql.InputObjectFieldConfig{
			Type: orderDirection,
		}
	}

	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   typeName,
		Fields: clauseFields,
	})
	r.mu.Lock()
	if cached, ok := r.orderByClauseCache[typeName]; ok {
		r.mu.Unlock()
		return cached
	}
	r.orderByClauseCache[typeName] = input
	r.mu.Unlock()

	return input
}

func (r *Resolver) orderDirectionEnum() *graphql.Enum {
	r.mu.RLock()
	cached := r.orderDirection
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	enumValue := graphql.NewEnum(graphql.EnumConfig{
		Name: "OrderDirection",
		Values: graphql.EnumValueConfigMap{
			"ASC":  &graphql.EnumValueConfig{Value: "ASC"},
			"DESC": &graphql.EnumValueConfig{Value: "DESC"},
		},
	})

	r.mu.Lock()
	if r.orderDirection == nil {
		r.orderDirection = enumValue
	}
	cached = r.orderDirection
	r.mu.Unlock()

	return cached
}

func (r *Resolver) orderByPolicyEnum() *graphql.Enum {
	r.mu.RLock()
	cached := r.orderByPolicy
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	enumValue := graphql.NewEnum(graphql.EnumConfig{
		Name: "OrderByPolicy",
		Values: graphql.EnumValueConfigMap{
			string(planner.OrderByPolicyIndexPrefixOnly): &graphql.EnumValueConfig{Value: string(planner.OrderByPolicyIndexPrefixOnly)},
			string(planner.OrderByPolicyAllowNonPrefix):  &graphql.EnumValueConfig{Value: string(planner.OrderByPolicyAllowNonPrefix)},
		},
	})

	r.mu.Lock()
	if r.orderByPolicy == nil {
		r.orderByPolicy = enumValue
	}
	cached = r.orderByPolicy
	r.mu.Unlock()

	return cached
}

func (r *Resolver) nonNegativeIntScalar() *graphql.Scalar {
	r.mu.RLock()
	cached := r.nonNegativeInt
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	scalar := scalars.NonNegativeInt()

	r.mu.Lock()
	if r.nonNegativeInt == nil {
		r.nonNegativeInt = scalar
	}
	cached = r.nonNegativeInt
	r.mu.Unlock()

	return cached
}

func (r *Resolver) jsonScalar() *graphql.Scalar {
	r.mu.RLock()
	cached := r.jsonType
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	scalar := scalars.JSON()

	r.mu.Lock()
	if r.jsonType == nil {
		r.jsonType = scalar
	}
	cached = r.jsonType
	r.mu.Unlock()

	return cached
}

func (r *Resolver) bigIntScalar() *graphql.Scalar {
	r.mu.RLock()
	cached := r.bigIntType
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	scalar := scalars.BigInt()

	r.mu.Lock()
	if r.bigIntType == nil {
		r.bigIntType = scalar
	}
	cached = r.bigIntType
	r.mu.Unlock()

	return cached
}

func (r *Resolver) decimalScalar() *graphql.Scalar {
	r.mu.RLock()
	cached := r.decimalType
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	scalar := scalars.Decimal()

	r.mu.Lock()
	if r.decimalType == nil {
		r.decimalType = scalar
	}
	cached = r.decimalType
	r.mu.Unlock()

	return cached
}

func (r *Resolver) dateScalar() *graphql.Scalar {
	r.mu.RLock()
	cached := r.dateType
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	scalar := scalars.Date()

	r.mu.Lock()
	if r.dateType == nil {
		r.dateType = scalar
	}
	cached = r.dateType
	r.mu.Unlock()

	return cached
}

func (r *Resolver) timeScalar() *graphql.Scalar {
	r.mu.RLock()
	cached := r.timeType
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	scalar := scalars.Time()

	r.mu.Lock()
	if r.timeType == nil {
		r.timeType = scalar
	}
	cached = r.timeType
	r.mu.Unlock()

	return cached
}

func (r *Resolver) yearScalar() *graphql.Scalar {
	r.mu.RLock()
	cached := r.yearType
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	scalar := scalars.Year()

	r.mu.Lock()
	if r.yearType == nil {
		r.yearType = scalar
	}
	cached = r.yearType
	r.mu.Unlock()

	return cached
}

func (r *Resolver) bytesScalar() *graphql.Scalar {
	r.mu.RLock()
	cached := r.bytesType
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	scalar := scalars.Bytes()

	r.mu.Lock()
	if r.bytesType == nil {
		r.bytesType = scalar
	}
	cached = r.bytesType
	r.mu.Unlock()

	return cached
}

func (r *Resolver) uuidScalar() *graphql.Scalar {
	r.mu.RLock()
	cached := r.uuidType
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	scalar := scalars.UUID()

	r.mu.Lock()
	if r.uuidType == nil {
		r.uuidType = scalar
	}
	cached = r.uuidType
	r.mu.Unlock()

	return cached
}
