// Package sqltype provides a shared mapping from SQL data types to GraphQL type categories.
// This ensures consistent type mapping across schema generation and query resolution.
package sqltype

import "strings"

// GraphQLType represents the category of GraphQL scalar type for a SQL column.
type GraphQLType int

const (
	// TypeString is the default type for text, dates, and unknown SQL types.
	TypeString GraphQLType = iota
	// TypeInt represents 32-bit safe integer numeric types.
	TypeInt
	// TypeFloat represents floating-point numeric types.
	TypeFloat
	// TypeBoolean represents boolean types.
	TypeBoolean
	// TypeJSON represents JSON data types.
	TypeJSON
	// TypeBigInt represents 64-bit integer types serialized as strings.
	TypeBigInt
	// TypeDecimal represents fixed-point numeric types serialized as strings.
	TypeDecimal
	// TypeDate represents DATE columns.
	TypeDate
	// TypeTime represents TIME columns.
	TypeTime
	// TypeYear represents YEAR columns.
	TypeYear
	// TypeBytes represents binary columns serialized as base64 strings.
	TypeBytes
	// TypeSet represents SET columns exposed as string lists.
	TypeSet
	// TypeUUID represents columns mapped to UUID via explicit type overrides.
	// No SQL type maps here directly; see introspection.ApplyUUIDTypeOverrides.
	TypeUUID
)

// MapToGraphQL converts a SQL data type string to its corresponding GraphQL type category.
// The input is case-insensitive. Size specifiers like (10,2) or (255) are stripped before matching.
// This handles both INFORMATION_SCHEMA.COLUMNS.DATA_TYPE (base type only) and COLUMN_TYPE (full type with size).
func MapToGraphQL(sqlType string) GraphQLType {
	// Strip size specifiers like (10,2) or (255)
	if idx := strings.Index(sqlType, "("); idx != -1 {
		sqlType = sqlType[:idx]
	}
	switch strings.ToUpper(sqlType) {
	// Integer Numeric Data Types (32-bit safe)
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT",
		"INTEGER", "BIT":
		return TypeInt
	// 64-bit Integer Data Types (exceed the GraphQL Int range)
	case "BIGINT", "SERIAL":
		return TypeBigInt
	// Floating Point Numeric Data Types
	case "FLOAT", "DOUBLE":
		return TypeFloat
	// Fixed-Point Numeric Data Types (kept as strings to preserve precision)
	case "DECIMAL", "NUMERIC":
		return TypeDecimal
	// Boolean Data Type
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	// JSON Type
	case "JSON":
		return TypeJSON
	// Binary Data Types
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB",
		"BINARY", "VARBINARY":
		return TypeBytes
	// SET columns carry multiple values and get list semantics
	case "SET":
		return TypeSet
	// String Data Types (explicit)
	case "CHAR", "VARCHAR", "TINYTEXT", "TEXT",
		"MEDIUMTEXT", "LONGTEXT", "ENUM":
		return TypeString
	// Date and Time Data Types
	case "DATE":
		return TypeDate
	case "TIME":
		return TypeTime
	case "YEAR":
		return TypeYear
	// DATETIME/TIMESTAMP round-trip as the driver's string form
	case "DATETIME", "TIMESTAMP":
		return TypeString
	default:
		return TypeString
	}
}

// String returns the GraphQL scalar type name for schema generation.
func (t GraphQLType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeBoolean:
		return "Boolean"
	case TypeJSON:
		return "JSON"
	case TypeBigInt:
		return "BigInt"
	case TypeDecimal:
		return "Decimal"
	case TypeDate:
		return "Date"
	case TypeTime:
		return "Time"
	case TypeYear:
		return "Year"
	case TypeBytes:
		return "Bytes"
	case TypeSet:
		return "Set"
	case TypeUUID:
		return "UUID"
	default:
		return "String"
	}
}

// FilterTypeName returns the corresponding filter input type name for WHERE clauses.
func (t GraphQLType) FilterTypeName() string {
	switch t {
	case TypeInt:
		return "IntFilter"
	case TypeFloat:
		return "FloatFilter"
	case TypeBoolean:
		return "BooleanFilter"
	case TypeBigInt:
		return "BigIntFilter"
	case TypeDecimal:
		return "DecimalFilter"
	case TypeDate:
		return "DateFilter"
	case TypeTime:
		return "TimeFilter"
	case TypeYear:
		return "YearFilter"
	case TypeBytes:
		return "BytesFilter"
	case TypeSet:
		return "SetFilter"
	case TypeUUID:
		return "UUIDFilter"
	default:
		// JSON and String both use StringFilter (JSON columns are skipped in WHERE)
		return "StringFilter"
	}
}
