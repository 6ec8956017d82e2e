package relation

import (
	"path"
	"sort"
	"strings"

	"nestql/internal/introspection"
)

// Config controls descriptor derivation.
type Config struct {
	// Hidden maps table names to relation field name patterns (path.Match
	// globs, case-insensitive) that are excluded from descriptors entirely.
	Hidden map[string][]string `mapstructure:"hidden"`
}

// Describe returns the relation descriptors for a table in deterministic
// order: forward descriptors in FK constraint order, then reverse descriptors
// sorted by field name, then many-to-many descriptors sorted by field name.
// Hidden relation fields are excluded. Reverse accessors that resolve to the
// same field name are deduplicated, keeping the first.
func Describe(schema *introspection.Schema, table introspection.Table, cfg Config) []Descriptor {
	if schema == nil {
		return nil
	}

	byName := make(map[string]*introspection.Table, len(schema.Tables))
	for i := range schema.Tables {
		byName[schema.Tables[i].Name] = &schema.Tables[i]
	}

	var forward, reverse, many []Descriptor
	seen := make(map[string]bool)

	appendDescriptor := func(bucket *[]Descriptor, d Descriptor) {
		if seen[d.FieldName] {
			return
		}
		seen[d.FieldName] = true
		*bucket = append(*bucket, d)
	}

	for _, rel := range table.Relationships {
		if fieldHidden(cfg.Hidden, table.Name, rel.GraphQLFieldName) {
			continue
		}

		switch {
		case rel.IsManyToOne:
			remote := byName[rel.RemoteTable]
			if remote == nil {
				continue
			}
			appendDescriptor(&forward, Descriptor{
				FieldName:       rel.GraphQLFieldName,
				Kind:            KindOne,
				Table:           table.Name,
				RelatedTable:    rel.RemoteTable,
				RelatedTypeName: introspection.GraphQLSingleTypeName(*remote),
				LocalColumns:    copyStrings(rel.LocalColumns),
				RemoteColumns:   copyStrings(rel.RemoteColumns),
			})

		case rel.IsOneToMany:
			remote := byName[rel.RemoteTable]
			if remote == nil {
				continue
			}
			appendDescriptor(&reverse, Descriptor{
				FieldName:       rel.GraphQLFieldName,
				Kind:            KindReverse,
				Table:           table.Name,
				RelatedTable:    rel.RemoteTable,
				RelatedTypeName: introspection.GraphQLSingleTypeName(*remote),
				LocalColumns:    copyStrings(rel.LocalColumns),
				RemoteColumns:   copyStrings(rel.RemoteColumns),
				RemoteField:     remoteForwardField(*remote, table.Name, rel.RemoteColumns),
				UniqueRemote:    columnsUniquelyIndexed(*remote, rel.RemoteColumns),
			})

		case rel.IsManyToMany:
			remote := byName[rel.RemoteTable]
			if remote == nil {
				continue
			}
			appendDescriptor(&many, Descriptor{
				FieldName:       rel.GraphQLFieldName,
				Kind:            KindMany,
				Table:           table.Name,
				RelatedTable:    rel.RemoteTable,
				RelatedTypeName: introspection.GraphQLSingleTypeName(*remote),
				LocalColumns:    copyStrings(rel.LocalColumns),
				RemoteColumns:   copyStrings(rel.RemoteColumns),
				Junction: &JunctionLink{
					Table:         rel.JunctionTable,
					LocalColumns:  copyStrings(rel.JunctionLocalFKColumns),
					RemoteColumns: copyStrings(rel.JunctionRemoteFKColumns),
				},
			})

		case rel.IsEdgeList:
			// Attribute junctions stay visible tables; the edge list behaves
			// like a reverse relation toward the junction itself, so nested
			// writes can create edge rows with their attributes.
			junction := byName[rel.JunctionTable]
			if junction == nil {
				continue
			}
			appendDescriptor(&reverse, Descriptor{
				FieldName:       rel.GraphQLFieldName,
				Kind:            KindReverse,
				Table:           table.Name,
				RelatedTable:    rel.JunctionTable,
				RelatedTypeName: introspection.GraphQLSingleTypeName(*junction),
				LocalColumns:    copyStrings(rel.LocalColumns),
				RemoteColumns:   copyStrings(rel.JunctionLocalFKColumns),
				RemoteField:     remoteForwardField(*junction, table.Name, rel.JunctionLocalFKColumns),
				UniqueRemote:    false,
			})
		}
	}

	sort.SliceStable(reverse, func(i, j int) bool { return reverse[i].FieldName < reverse[j].FieldName })
	sort.SliceStable(many, func(i, j int) bool { return many[i].FieldName < many[j].FieldName })

	out := make([]Descriptor, 0, len(forward)+len(reverse)+len(many))
	out = append(out, forward...)
	out = append(out, reverse...)
	out = append(out, many...)
	return out
}

// remoteForwardField finds the forward relation field on the remote table
// whose FK columns match fkColumns and point back at localTable. Falls back
// to the camelCase form of the first FK column when no relationship matches.
func remoteForwardField(remote introspection.Table, localTable string, fkColumns []string) string {
	for _, rel := range remote.Relationships {
		if !rel.IsManyToOne || rel.RemoteTable != localTable {
			continue
		}
		if stringsEqual(rel.LocalColumns, fkColumns) {
			return rel.GraphQLFieldName
		}
	}
	if len(fkColumns) > 0 {
		return introspection.ToGraphQLFieldName(fkColumns[0])
	}
	return ""
}

// columnsUniquelyIndexed reports whether a unique index on the table covers
// exactly the given columns.
func columnsUniquelyIndexed(table introspection.Table, columns []string) bool {
	if len(columns) == 0 {
		return false
	}
	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[c] = true
	}
	for _, idx := range table.Indexes {
		if !idx.Unique || len(idx.Columns) != len(columns) {
			continue
		}
		covered := true
		for _, col := range idx.Columns {
			if !want[col] {
				covered = false
				break
			}
		}
		if covered {
			return true
		}
	}
	return false
}

func fieldHidden(hidden map[string][]string, table, field string) bool {
	if len(hidden) == 0 {
		return false
	}
	patterns := append([]string{}, hidden["*"]...)
	patterns = append(patterns, hidden[table]...)
	field = strings.ToLower(field)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		ok, err := path.Match(strings.ToLower(pattern), field)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
