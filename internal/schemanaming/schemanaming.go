// Package schemanaming applies naming rules to introspected schema elements.
package schemanaming

import (
	"fmt"
	"strings"

	"nestql/internal/introspection"
	"nestql/internal/naming"
)

// Apply assigns GraphQL type/query/field names to the schema using the provided namer.
// It resets collision state to ensure deterministic naming per schema build.
func Apply(schema *introspection.Schema, namer *naming.Namer) {
	if schema == nil {
		return
	}
	if schema.NamesApplied {
		return
	}
	if namer == nil {
		namer = naming.Default()
	}
	namer.Reset()

	for ti := range schema.Tables {
		table := &schema.Tables[ti]

		typeName := namer.RegisterType(table.Name)
		table.GraphQLTypeName = typeName
		table.GraphQLQueryName = namer.RegisterQueryField(table.Name)
		table.GraphQLSingleQueryName = namer.ToGraphQLFieldName(namer.Singularize(table.Name))

		hasPK := false
		hasDatabaseIDColumn := false
		for ci := range table.Columns {
			col := table.Columns[ci]
			if col.IsPrimaryKey {
				hasPK = true
			}
			if !col.IsPrimaryKey && namer.ToGraphQLFieldName(col.Name) == "databaseId" {
				hasDatabaseIDColumn = true
			}
		}

		for ci := range table.Columns {
			col := &table.Columns[ci]
			fieldName := namer.RegisterColumnField(typeName, col.Name)
			if hasPK && fieldName == "id" {
				// Clients treat "id" as a globally unique identifier; a raw
				// numeric key collides across types, so the column is exposed
				// as databaseId. The "id" registration stays claimed so no
				// other column can take the name. A real database_id column
				// keeps databaseId and the key falls back to databaseId_raw.
				renamed := "databaseId"
				if hasDatabaseIDColumn {
					renamed = "databaseId_raw"
				}
				fieldName = namer.RegisterFieldLiteral(typeName, renamed, "column:"+col.Name)
			}
			col.GraphQLFieldName = fieldName
		}

		for ri := range table.Relationships {
			rel := &table.Relationships[ri]
			baseName := rel.GraphQLFieldName
			if baseName == "" {
				baseName = namer.ToGraphQLFieldName(rel.RemoteTable)
			}
			source := fmt.Sprintf("%s:%s:%s", rel.RemoteTable,
				strings.Join(rel.LocalColumns, ","), strings.Join(rel.RemoteColumns, ","))
			// For collision suffix: ManyToOne uses "Ref", all others (OneToMany, ManyToMany, EdgeList) use "Rel"
			useRefSuffix := rel.IsManyToOne
			rel.GraphQLFieldName = namer.RegisterRelationshipField(typeName, baseName, source, useRefSuffix)
		}
	}

	schema.NamesApplied = true
}
