// Package relation derives relation descriptors from introspected schema
// metadata. Descriptors classify every relation slot of a table by kind and
// direction and drive both relation input contract generation and nested
// mutation execution.
package relation

// Kind classifies a relation slot.
type Kind int

const (
	// KindUnknown is the zero value and never appears in descriptors.
	KindUnknown Kind = iota
	// KindOne is a forward foreign key: this table holds the key of a single
	// related row (many-to-one, or one-to-one when the FK is unique).
	KindOne
	// KindMany is a many-to-many relation through a pure junction table.
	KindMany
	// KindReverse is the reverse side of a foreign key: rows in the related
	// table point back here.
	KindReverse
)

func (k Kind) String() string {
	switch k {
	case KindOne:
		return "one"
	case KindMany:
		return "many"
	case KindReverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// ListShaped reports whether the relation slot carries a list of related rows
// rather than a single row.
func (k Kind) ListShaped() bool {
	return k == KindMany || k == KindReverse
}

// Verb identifies one relation operation inside a mutation payload.
type Verb string

const (
	VerbSet        Verb = "set"
	VerbDisconnect Verb = "disconnect"
	VerbConnect    Verb = "connect"
	VerbCreate     Verb = "create"
	VerbUpdate     Verb = "update"
)

// VerbOrder is the fixed processing order for relation operations. Payload
// key order never affects execution order.
var VerbOrder = [...]Verb{VerbSet, VerbDisconnect, VerbConnect, VerbCreate, VerbUpdate}

// Verbs returns the processing order as a fresh slice.
func Verbs() []Verb {
	out := make([]Verb, len(VerbOrder))
	copy(out, VerbOrder[:])
	return out
}

// JunctionLink carries the link-table metadata for a many-to-many relation.
type JunctionLink struct {
	Table string
	// LocalColumns are the junction FK columns pointing at the owning table,
	// positionally aligned with the descriptor's LocalColumns.
	LocalColumns []string
	// RemoteColumns are the junction FK columns pointing at the related
	// table, positionally aligned with the descriptor's RemoteColumns.
	RemoteColumns []string
}

// Descriptor describes a single relation slot on a table.
type Descriptor struct {
	// FieldName is the GraphQL field name of the relation slot.
	FieldName string
	Kind      Kind
	// Table is the owning table, RelatedTable the table on the other side.
	Table        string
	RelatedTable string
	// RelatedTypeName is the GraphQL type name used for the related rows in
	// mutation contracts (singular form).
	RelatedTypeName string
	// LocalColumns and RemoteColumns are the positional key mapping:
	//   one:     local FK columns -> related key columns
	//   reverse: local key columns -> FK columns on the related table
	//   many:    local key columns -> related key columns (via the junction)
	LocalColumns  []string
	RemoteColumns []string
	// RemoteField names the forward relation field on the related table that
	// points back here. Set for reverse descriptors, empty otherwise.
	RemoteField string
	// UniqueRemote marks reverse descriptors whose remote FK columns are
	// covered by a unique index, so at most one related row can exist.
	UniqueRemote bool
	// Junction is set for KindMany descriptors.
	Junction *JunctionLink
}

// PointsThroughJunction reports whether writes for this descriptor go through
// a junction table rather than an FK column.
func (d Descriptor) PointsThroughJunction() bool {
	return d.Kind == KindMany && d.Junction != nil
}
