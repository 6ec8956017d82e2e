package naming

import (
	"fmt"
	"strings"
)

// NestedFieldName returns the input slot name carrying relation operations
// for a relation field: "author" -> "nestedAuthor", "postTags" ->
// "nestedPostTags".
func NestedFieldName(relationField string) string {
	if relationField == "" {
		return ""
	}
	return "nested" + strings.ToUpper(relationField[:1]) + relationField[1:]
}

// RelationContractTypeName builds the deterministic GraphQL type name for a
// relation operation contract. The name encodes everything that makes the
// contract unique: the parent and related type names, the cardinality, the
// excluded remote field when the far side must not re-expose the parent
// link, and a depth marker for contracts nested below the top level. Two
// relation slots with identical components share one contract, so they
// share one name.
//
//	RelationContractTypeName("Post", "Author", false, "", 0) == "PostAuthorOneRelationInput"
//	RelationContractTypeName("Post", "Tag", true, "", 0) == "PostTagManyRelationInput"
//	RelationContractTypeName("Author", "Post", true, "author", 0) == "AuthorPostManyWithoutAuthorRelationInput"
//	RelationContractTypeName("Post", "Author", false, "", 2) == "PostAuthorOneRelationD2Input"
func RelationContractTypeName(parentType, relatedType string, list bool, excludedField string, depth int) string {
	base := parentType + relatedType + cardinalityMarker(list)
	if excludedField != "" {
		base += "Without" + upperFirst(excludedField)
	}
	base += "Relation"
	if depth > 0 {
		base += fmt.Sprintf("D%d", depth)
	}
	return base + "Input"
}

// RelationCreateTypeName builds the name for the create item input embedded
// in a relation contract.
//
//	RelationCreateTypeName("Author", "", 1) == "CreateAuthorNestedInput"
//	RelationCreateTypeName("Post", "author", 1) == "CreatePostWithoutAuthorNestedInput"
//	RelationCreateTypeName("Author", "", 2) == "CreateAuthorNestedD2Input"
func RelationCreateTypeName(relatedType, excludedField string, depth int) string {
	return nestedItemTypeName("Create", relatedType, excludedField, depth)
}

// RelationUpdateTypeName builds the name for the update item input embedded
// in a relation contract.
func RelationUpdateTypeName(relatedType, excludedField string, depth int) string {
	return nestedItemTypeName("Update", relatedType, excludedField, depth)
}

func nestedItemTypeName(prefix, relatedType, excludedField string, depth int) string {
	base := prefix + relatedType
	if excludedField != "" {
		base += "Without" + upperFirst(excludedField)
	}
	base += "Nested"
	if depth > 1 {
		base += fmt.Sprintf("D%d", depth)
	}
	return base + "Input"
}

func cardinalityMarker(list bool) string {
	if list {
		return "Many"
	}
	return "One"
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
