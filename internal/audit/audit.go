// Package audit records before/after snapshots of mutation writes.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"nestql/internal/logging"
)

// Action identifies the kind of write an event records.
type Action string

// Recorded write kinds.
const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
	ActionSet        Action = "set"
)

// Event is one recorded write. Before and After hold column snapshots
// gathered around the write; either may be nil when the action has no
// corresponding state (create has no before, delete has no after).
type Event struct {
	ID        string
	RequestID string
	Action    Action
	Table     string
	TypeName  string
	PK        interface{}
	Actor     string
	Before    map[string]interface{}
	After     map[string]interface{}
	At        time.Time
}

// Recorder sinks audit events. Implementations must be safe for concurrent
// use.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// ActorSource yields the acting principal from a request context.
type ActorSource func(ctx context.Context) string

// Logger records events through the structured logger.
type Logger struct {
	log         *logging.Logger
	actor       ActorSource
	noSnapshots bool
}

// Option configures a Logger.
type Option func(*Logger)

// WithActorSource installs the acting-principal lookup.
func WithActorSource(fn ActorSource) Option {
	return func(l *Logger) { l.actor = fn }
}

// WithSnapshots controls whether full before/after row snapshots are
// emitted. When disabled, events still carry the changed-column names, so
// the trail stays useful without logging row contents.
func WithSnapshots(enabled bool) Option {
	return func(l *Logger) { l.noSnapshots = !enabled }
}

// NewLogger builds a Recorder that writes events to log.
func NewLogger(log *logging.Logger, opts ...Option) *Logger {
	l := &Logger{log: log}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record emits one audit event. Missing event ids, request ids, actors,
// and timestamps are filled from the context and clock.
func (l *Logger) Record(ctx context.Context, event Event) {
	if l == nil || l.log == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.RequestID == "" {
		event.RequestID = logging.GetRequestID(ctx)
	}
	if event.Actor == "" && l.actor != nil {
		event.Actor = l.actor(ctx)
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	attrs := []any{
		slog.String("audit_id", event.ID),
		slog.String("action", string(event.Action)),
		slog.String("table", event.Table),
		slog.String("type", event.TypeName),
		slog.Any("pk", event.PK),
		slog.Time("at", event.At),
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.Actor != "" {
		attrs = append(attrs, slog.String("actor", event.Actor))
	}
	if changed := Changed(event.Before, event.After); len(changed) > 0 {
		attrs = append(attrs, slog.Any("changed", changed))
	}
	if !l.noSnapshots {
		if event.Before != nil {
			attrs = append(attrs, slog.Any("before", event.Before))
		}
		if event.After != nil {
			attrs = append(attrs, slog.Any("after", event.After))
		}
	}

	l.log.InfoContext(ctx, "audit", attrs...)
}

// Changed returns the sorted set of keys whose values differ between the
// two snapshots, including keys present on only one side.
func Changed(before, after map[string]interface{}) []string {
	if before == nil && after == nil {
		return nil
	}

	keys := make(map[string]struct{}, len(before)+len(after))
	for key := range before {
		keys[key] = struct{}{}
	}
	for key := range after {
		keys[key] = struct{}{}
	}

	var changed []string
	for key := range keys {
		bv, inBefore := before[key]
		av, inAfter := after[key]
		// Textual comparison keeps the diff total over driver value types.
		if inBefore != inAfter || fmt.Sprint(bv) != fmt.Sprint(av) {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}
