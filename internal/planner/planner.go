// Package planner converts GraphQL queries into parameterized SQL statements.
// It handles table lookups, relationship resolution, filtering, ordering, and pagination
// while enforcing query cost limits to prevent expensive operations.
package planner
