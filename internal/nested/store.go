package nested

import (
	"context"

	"nestql/internal/relation"
)

// Row is a stored record keyed by GraphQL field name.
type Row = map[string]interface{}

// Store executes the reads and writes the nested engine orders. Every call
// runs inside the transaction bound to ctx; implementations obtain it from
// the per-request mutation context, so a failed tree rolls back as one
// unit.
//
// Field maps passed in are keyed by GraphQL field name; fkValues carry
// database column assignments injected alongside them (parent links
// resolved by the engine). Get returns nil without error when no row
// matches.
type Store interface {
	Get(ctx context.Context, table string, pk interface{}) (Row, error)
	Create(ctx context.Context, table string, fields Row, fkValues map[string]interface{}) (Row, error)
	Update(ctx context.Context, table string, pk interface{}, fields Row, fkValues map[string]interface{}) (Row, error)
	Delete(ctx context.Context, table string, pk interface{}) error

	// PrimaryKey extracts the primary key value from a row of table. For
	// composite keys the value is an ordered tuple representation usable
	// as an identity.
	PrimaryKey(table string, row Row) (interface{}, error)

	// ForwardLink derives the parent-side foreign key assignments
	// (database column to value) linking the parent to relatedRow through
	// a forward relation.
	ForwardLink(desc relation.Descriptor, relatedRow Row) (map[string]interface{}, error)

	// ReverseLink derives the child-side foreign key assignments linking
	// a child row back to parentRow through a reverse relation.
	ReverseLink(desc relation.Descriptor, parentRow Row) (map[string]interface{}, error)

	// M2MAdd links parentRow to the identified related rows through the
	// relation's junction. M2MRemove unlinks the identified pairs and
	// M2MSet replaces the full link set.
	M2MAdd(ctx context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error
	M2MRemove(ctx context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error
	M2MSet(ctx context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error

	// ReverseAssign points the foreign key of the identified child rows at
	// parentRow. ReverseClear nulls it on the identified rows and
	// ReverseSet makes the identified rows the complete child set,
	// clearing every other child currently pointing at the parent.
	ReverseAssign(ctx context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error
	ReverseClear(ctx context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error
	ReverseSet(ctx context.Context, desc relation.Descriptor, parentRow Row, relatedPKs []interface{}) error
}

// TenantChecker verifies that fetched rows belong to the caller's tenant
// before the engine links or modifies them.
type TenantChecker interface {
	CheckTenantAccess(ctx context.Context, typeName, operation string, row map[string]interface{}) error
}
