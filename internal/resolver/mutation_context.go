package resolver

import (
	"context"

	"nestql/internal/dbexec"
)

// MutationContext aliases the shared per-request transaction holder so
// resolver callers do not import dbexec directly.
type MutationContext = dbexec.MutationContext

// NewMutationContext wraps a transaction for one mutation request.
func NewMutationContext(tx dbexec.TxExecutor) *MutationContext {
	return dbexec.NewMutationContext(tx)
}

// WithMutationContext attaches the mutation transaction to the context.
func WithMutationContext(ctx context.Context, mc *MutationContext) context.Context {
	return dbexec.WithMutationContext(ctx, mc)
}
