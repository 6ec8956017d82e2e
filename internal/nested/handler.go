package nested

import (
	"context"
	"fmt"

	"nestql/internal/audit"
	"nestql/internal/relation"
)

// DescriptorSource yields the relation descriptors of a table.
type DescriptorSource interface {
	Describe(table string) ([]relation.Descriptor, error)
}

// Executor walks a mutation input tree and applies it: the root row write
// plus every nested relation operation at every depth, depth-first, inside
// the transaction carried by ctx. Each top-level call runs on a fresh
// Session, so limits, cycle tracking, and processed identities never leak
// across requests.
type Executor struct {
	relations DescriptorSource
	store     Store
	processor *Processor
	perm      PermissionChecker
	tenant    TenantChecker
	recorder  audit.Recorder
	maxDepth  int
	maxBulk   int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPermissionChecker guards every verb dispatch with perm.
func WithPermissionChecker(perm PermissionChecker) ExecutorOption {
	return func(e *Executor) { e.perm = perm }
}

// WithTenantChecker verifies fetched rows against the caller's tenant.
func WithTenantChecker(tenant TenantChecker) ExecutorOption {
	return func(e *Executor) { e.tenant = tenant }
}

// WithAuditRecorder records before/after snapshots of every write.
func WithAuditRecorder(recorder audit.Recorder) ExecutorOption {
	return func(e *Executor) { e.recorder = recorder }
}

// WithLimits overrides the depth and bulk-size limits. Non-positive values
// keep the defaults.
func WithLimits(maxDepth, maxBulk int) ExecutorOption {
	return func(e *Executor) {
		if maxDepth > 0 {
			e.maxDepth = maxDepth
		}
		if maxBulk > 0 {
			e.maxBulk = maxBulk
		}
	}
}

// NewExecutor builds an Executor over a relation descriptor source and a
// store.
func NewExecutor(relations DescriptorSource, store Store, opts ...ExecutorOption) *Executor {
	e := &Executor{
		relations: relations,
		store:     store,
		maxDepth:  DefaultMaxDepth,
		maxBulk:   DefaultMaxBulkSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.processor = NewProcessor(e.perm)
	return e
}

// Create applies a create mutation: the root insert plus every nested
// relation operation.
func (e *Executor) Create(ctx context.Context, table, typeName string, input map[string]interface{}) (Row, error) {
	sess := NewSession(e.maxDepth, e.maxBulk)
	return e.createNode(ctx, sess, table, typeName, input, nil)
}

// Update applies an update mutation to the row identified by pk.
func (e *Executor) Update(ctx context.Context, table, typeName string, pk interface{}, input map[string]interface{}) (Row, error) {
	sess := NewSession(e.maxDepth, e.maxBulk)
	return e.updateNode(ctx, sess, table, typeName, "", pk, input)
}

// Delete removes the row identified by pk and returns its final snapshot.
func (e *Executor) Delete(ctx context.Context, table, typeName string, pk interface{}) (Row, error) {
	before, err := e.store.Get(ctx, table, pk)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, &RelatedNotFoundError{TypeName: typeName, IDValue: pk}
	}
	if err := e.checkTenant(ctx, typeName, "delete", before); err != nil {
		return nil, err
	}
	if err := e.store.Delete(ctx, table, pk); err != nil {
		return nil, err
	}
	e.record(ctx, audit.Event{
		Action:   audit.ActionDelete,
		Table:    table,
		TypeName: typeName,
		PK:       pk,
		Before:   before,
	})
	return before, nil
}

// createNode inserts one row and processes its relation payloads. extraFK
// carries parent foreign-key injections for reverse creates; they override
// anything the node resolved on its own.
func (e *Executor) createNode(ctx context.Context, sess *Session, table, typeName string, input map[string]interface{}, extraFK map[string]interface{}) (Row, error) {
	if err := sess.Enter(typeName); err != nil {
		return nil, err
	}
	defer sess.Leave()

	scalars, listRels, fk, err := e.prepareNode(ctx, sess, table, typeName, input)
	if err != nil {
		return nil, err
	}
	for col, val := range extraFK {
		fk[col] = val
	}

	row, err := e.store.Create(ctx, table, scalars, fk)
	if err != nil {
		return nil, err
	}
	pk, err := e.store.PrimaryKey(table, row)
	if err != nil {
		return nil, err
	}
	sess.MarkProcessed(table, pk)
	e.record(ctx, audit.Event{
		Action:   audit.ActionCreate,
		Table:    table,
		TypeName: typeName,
		PK:       pk,
		After:    row,
	})

	if err := e.processListRelations(ctx, sess, table, typeName, row, pk, listRels); err != nil {
		return nil, err
	}
	return row, nil
}

// updateNode writes one existing row and processes its relation payloads.
// A row already written earlier in this call is returned unchanged.
func (e *Executor) updateNode(ctx context.Context, sess *Session, table, typeName, field string, pk interface{}, input map[string]interface{}) (Row, error) {
	if err := sess.Enter(typeName); err != nil {
		return nil, err
	}
	defer sess.Leave()

	before, err := e.store.Get(ctx, table, pk)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, &RelatedNotFoundError{TypeName: typeName, Field: field, IDValue: pk}
	}
	if err := e.checkTenant(ctx, typeName, "update", before); err != nil {
		return nil, err
	}
	if !sess.MarkProcessed(table, pk) {
		return before, nil
	}

	scalars, listRels, fk, err := e.prepareNode(ctx, sess, table, typeName, input)
	if err != nil {
		return nil, err
	}

	row, err := e.store.Update(ctx, table, pk, scalars, fk)
	if err != nil {
		return nil, err
	}
	e.record(ctx, audit.Event{
		Action:   audit.ActionUpdate,
		Table:    table,
		TypeName: typeName,
		PK:       pk,
		Before:   before,
		After:    row,
	})

	if err := e.processListRelations(ctx, sess, table, typeName, row, pk, listRels); err != nil {
		return nil, err
	}
	return row, nil
}

// prepareNode splits the input and resolves forward-one relations into
// foreign-key assignments, returning the remaining list-shaped relation
// payloads for processing after the row write.
func (e *Executor) prepareNode(ctx context.Context, sess *Session, table, typeName string, input map[string]interface{}) (Row, []FieldOps, map[string]interface{}, error) {
	descriptors, err := e.relations.Describe(table)
	if err != nil {
		return nil, nil, nil, err
	}

	scalars, rels, verrs := SplitInput(descriptors, input)
	if len(verrs) > 0 {
		sess.AddValidationErrors(verrs...)
		return nil, nil, nil, verrs[0]
	}

	fk := make(map[string]interface{})
	var listRels []FieldOps
	for _, rel := range rels {
		if rel.Descriptor.Kind.ListShaped() {
			listRels = append(listRels, rel)
			continue
		}
		linker := &forwardLinker{exec: e, sess: sess, fk: fk}
		if err := e.processor.ProcessRelation(ctx, typeName, rel, linker); err != nil {
			return nil, nil, nil, err
		}
	}
	return scalars, listRels, fk, nil
}

func (e *Executor) processListRelations(ctx context.Context, sess *Session, table, typeName string, row Row, pk interface{}, rels []FieldOps) error {
	for _, rel := range rels {
		handler := &listLinker{
			exec:        e,
			sess:        sess,
			parentTable: table,
			parentType:  typeName,
			parentRow:   row,
			parentPK:    pk,
		}
		if err := e.processor.ProcessRelation(ctx, typeName, rel, handler); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) checkTenant(ctx context.Context, typeName, operation string, row Row) error {
	if e.tenant == nil || row == nil {
		return nil
	}
	return e.tenant.CheckTenantAccess(ctx, typeName, operation, row)
}

func (e *Executor) record(ctx context.Context, event audit.Event) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, event)
}

// fetchRelated loads and tenant-checks one related row for linking.
func (e *Executor) fetchRelated(ctx context.Context, desc relation.Descriptor, field, operation string, id interface{}) (Row, error) {
	row, err := e.store.Get(ctx, desc.RelatedTable, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &RelatedNotFoundError{TypeName: desc.RelatedTypeName, Field: field, IDValue: id}
	}
	if err := e.checkTenant(ctx, desc.RelatedTypeName, operation, row); err != nil {
		return nil, err
	}
	return row, nil
}

// forwardLinker handles the verbs of a single-valued forward relation by
// resolving them into foreign-key assignments applied with the parent row
// write.
type forwardLinker struct {
	exec *Executor
	sess *Session
	fk   map[string]interface{}
}

func (l *forwardLinker) HandleSet(_ context.Context, op Operation) error {
	return errVerbUnavailable(op)
}

func (l *forwardLinker) HandleDisconnect(_ context.Context, op Operation) error {
	return errVerbUnavailable(op)
}

func (l *forwardLinker) HandleConnect(ctx context.Context, op Operation) error {
	ids, err := IDList(op.Field, op.Data)
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return &InvalidIDError{Field: op.Field, Value: op.Data}
	}

	related, err := l.exec.fetchRelated(ctx, op.Descriptor, op.Field, "connect", ids[0])
	if err != nil {
		return err
	}
	return l.link(op.Descriptor, related)
}

func (l *forwardLinker) HandleCreate(ctx context.Context, op Operation) error {
	items, err := ItemList(op.Field, op.Data)
	if err != nil {
		return err
	}
	if len(items) != 1 {
		return &InvalidIDError{Field: op.Field, Value: op.Data}
	}

	related, err := l.exec.createNode(ctx, l.sess, op.Descriptor.RelatedTable, op.Descriptor.RelatedTypeName, items[0], nil)
	if err != nil {
		return err
	}
	return l.link(op.Descriptor, related)
}

func (l *forwardLinker) HandleUpdate(ctx context.Context, op Operation) error {
	items, err := ItemList(op.Field, op.Data)
	if err != nil {
		return err
	}
	if len(items) != 1 {
		return &InvalidIDError{Field: op.Field, Value: op.Data}
	}

	pk, err := l.exec.store.PrimaryKey(op.Descriptor.RelatedTable, items[0])
	if err != nil {
		return &InvalidIDError{Field: op.Field, Value: items[0]}
	}
	related, err := l.exec.updateNode(ctx, l.sess, op.Descriptor.RelatedTable, op.Descriptor.RelatedTypeName, op.Field, pk, items[0])
	if err != nil {
		return err
	}
	return l.link(op.Descriptor, related)
}

func (l *forwardLinker) link(desc relation.Descriptor, related Row) error {
	link, err := l.exec.store.ForwardLink(desc, related)
	if err != nil {
		return err
	}
	for col, val := range link {
		l.fk[col] = val
	}
	return nil
}

// listLinker handles the verbs of a list-shaped relation (many-to-many or
// reverse) after the parent row exists.
type listLinker struct {
	exec        *Executor
	sess        *Session
	parentTable string
	parentType  string
	parentRow   Row
	parentPK    interface{}
}

func (l *listLinker) HandleConnect(ctx context.Context, op Operation) error {
	ids, err := IDList(op.Field, op.Data)
	if err != nil {
		return err
	}
	if err := l.sess.CheckBulkSize(op.Field, len(ids)); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	for _, id := range ids {
		if _, err := l.exec.fetchRelated(ctx, op.Descriptor, op.Field, "connect", id); err != nil {
			return err
		}
	}

	if op.Descriptor.Kind == relation.KindMany {
		err = l.exec.store.M2MAdd(ctx, op.Descriptor, l.parentRow, ids)
	} else {
		err = l.exec.store.ReverseAssign(ctx, op.Descriptor, l.parentRow, ids)
	}
	if err != nil {
		return err
	}

	l.recordMembership(ctx, audit.ActionConnect, op.Field, ids)
	return nil
}

func (l *listLinker) HandleDisconnect(ctx context.Context, op Operation) error {
	ids, err := IDList(op.Field, op.Data)
	if err != nil {
		return err
	}
	if err := l.sess.CheckBulkSize(op.Field, len(ids)); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if op.Descriptor.Kind == relation.KindMany {
		err = l.exec.store.M2MRemove(ctx, op.Descriptor, l.parentRow, ids)
	} else {
		err = l.exec.store.ReverseClear(ctx, op.Descriptor, l.parentRow, ids)
	}
	if err != nil {
		return err
	}

	l.recordMembership(ctx, audit.ActionDisconnect, op.Field, ids)
	return nil
}

func (l *listLinker) HandleSet(ctx context.Context, op Operation) error {
	list, ok := op.Data.([]interface{})
	if !ok {
		return &InvalidIDError{Field: op.Field, Value: op.Data}
	}
	if err := l.sess.CheckBulkSize(op.Field, len(list)); err != nil {
		return err
	}

	var pks []interface{}
	if hasStructuredElement(op.Data) {
		// Structured members are created first, then become the new set.
		items, err := ItemList(op.Field, op.Data)
		if err != nil {
			return err
		}
		pks, err = l.createMembers(ctx, op, items)
		if err != nil {
			return err
		}
	} else {
		for _, id := range list {
			if _, err := l.exec.fetchRelated(ctx, op.Descriptor, op.Field, "set", id); err != nil {
				return err
			}
		}
		pks = list
	}

	var err error
	if op.Descriptor.Kind == relation.KindMany {
		err = l.exec.store.M2MSet(ctx, op.Descriptor, l.parentRow, pks)
	} else {
		err = l.exec.store.ReverseSet(ctx, op.Descriptor, l.parentRow, pks)
	}
	if err != nil {
		return err
	}

	l.recordMembership(ctx, audit.ActionSet, op.Field, pks)
	return nil
}

func (l *listLinker) HandleCreate(ctx context.Context, op Operation) error {
	items, err := ItemList(op.Field, op.Data)
	if err != nil {
		return err
	}
	if err := l.sess.CheckBulkSize(op.Field, len(items)); err != nil {
		return err
	}

	pks, err := l.createMembers(ctx, op, items)
	if err != nil {
		return err
	}
	if op.Descriptor.Kind == relation.KindMany && len(pks) > 0 {
		if err := l.exec.store.M2MAdd(ctx, op.Descriptor, l.parentRow, pks); err != nil {
			return err
		}
		l.recordMembership(ctx, audit.ActionConnect, op.Field, pks)
	}
	return nil
}

func (l *listLinker) HandleUpdate(ctx context.Context, op Operation) error {
	items, err := ItemList(op.Field, op.Data)
	if err != nil {
		return err
	}
	if err := l.sess.CheckBulkSize(op.Field, len(items)); err != nil {
		return err
	}

	for _, item := range items {
		pk, err := l.exec.store.PrimaryKey(op.Descriptor.RelatedTable, item)
		if err != nil {
			return &InvalidIDError{Field: op.Field, Value: item}
		}
		if _, err := l.exec.updateNode(ctx, l.sess, op.Descriptor.RelatedTable, op.Descriptor.RelatedTypeName, op.Field, pk, item); err != nil {
			return err
		}
	}
	return nil
}

// createMembers inserts structured member payloads. Reverse members are
// created with the parent foreign key injected; many-to-many members are
// created standalone and linked by the caller.
func (l *listLinker) createMembers(ctx context.Context, op Operation, items []map[string]interface{}) ([]interface{}, error) {
	var parentFK map[string]interface{}
	if op.Descriptor.Kind == relation.KindReverse {
		link, err := l.exec.store.ReverseLink(op.Descriptor, l.parentRow)
		if err != nil {
			return nil, err
		}
		parentFK = link
	}

	pks := make([]interface{}, 0, len(items))
	for _, item := range items {
		row, err := l.exec.createNode(ctx, l.sess, op.Descriptor.RelatedTable, op.Descriptor.RelatedTypeName, item, parentFK)
		if err != nil {
			return nil, err
		}
		pk, err := l.exec.store.PrimaryKey(op.Descriptor.RelatedTable, row)
		if err != nil {
			return nil, err
		}
		pks = append(pks, pk)
	}
	return pks, nil
}

func (l *listLinker) recordMembership(ctx context.Context, action audit.Action, field string, ids []interface{}) {
	l.exec.record(ctx, audit.Event{
		Action:   action,
		Table:    l.parentTable,
		TypeName: l.parentType,
		PK:       l.parentPK,
		After:    Row{field: ids},
	})
}

func errVerbUnavailable(op Operation) error {
	return fmt.Errorf("operation %q is not available for single-valued relation %q", op.Verb, op.Field)
}
