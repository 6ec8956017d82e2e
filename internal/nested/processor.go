package nested

import (
	"context"

	"nestql/internal/relation"
)

// Operation is the value handed to a verb callback: one verb, the relation
// field it targets, and the raw payload submitted for that verb.
type Operation struct {
	Verb       relation.Verb
	Field      string
	Descriptor relation.Descriptor
	Data       interface{}
}

// Handler is the closed set of verb callbacks a Processor dispatches to.
// Every verb has exactly one method; there is no dynamic lookup.
type Handler interface {
	HandleSet(ctx context.Context, op Operation) error
	HandleDisconnect(ctx context.Context, op Operation) error
	HandleConnect(ctx context.Context, op Operation) error
	HandleCreate(ctx context.Context, op Operation) error
	HandleUpdate(ctx context.Context, op Operation) error
}

// PermissionChecker authorizes one relation verb before it is dispatched.
// Implementations signal config-disabled operations and role denials through
// their error return; the processor propagates either unchanged.
type PermissionChecker interface {
	AssertRelationOperationAllowed(ctx context.Context, typeName, field string, verb relation.Verb) error
}

// Processor dispatches the verbs of one relation payload in fixed
// precedence: set, disconnect, connect, create, update. Set runs first
// because it replaces the whole relation, disconnect next so later
// additions survive, connect before create so existing rows are linked
// before new ones are made, and update last because it targets rows already
// present after the earlier verbs.
type Processor struct {
	perm PermissionChecker
}

// NewProcessor returns a Processor guarding dispatch with perm. A nil perm
// disables permission checks.
func NewProcessor(perm PermissionChecker) *Processor {
	return &Processor{perm: perm}
}

// ProcessRelation runs every verb present in ops against h, in order.
// Verbs with a nil payload are skipped. The first error stops processing
// and is returned unchanged.
func (p *Processor) ProcessRelation(ctx context.Context, typeName string, ops FieldOps, h Handler) error {
	for _, verb := range relation.VerbOrder {
		data, present := ops.Ops[verb]
		if !present || data == nil {
			continue
		}
		if p.perm != nil {
			if err := p.perm.AssertRelationOperationAllowed(ctx, typeName, ops.Field, verb); err != nil {
				return err
			}
		}
		op := Operation{
			Verb:       verb,
			Field:      ops.Field,
			Descriptor: ops.Descriptor,
			Data:       data,
		}
		var err error
		switch verb {
		case relation.VerbSet:
			err = h.HandleSet(ctx, op)
		case relation.VerbDisconnect:
			err = h.HandleDisconnect(ctx, op)
		case relation.VerbConnect:
			err = h.HandleConnect(ctx, op)
		case relation.VerbCreate:
			err = h.HandleCreate(ctx, op)
		case relation.VerbUpdate:
			err = h.HandleUpdate(ctx, op)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
