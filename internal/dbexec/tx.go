package dbexec

import (
	"context"
	"database/sql"
	"fmt"

	"nestql/internal/sqlutil"
)

// TxExecutor executes queries inside a database transaction.
type TxExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// TxBeginner is implemented by executors that can open transactions.
type TxBeginner interface {
	BeginTx(ctx context.Context) (TxExecutor, error)
}

// BeginTx opens a transaction directly on the database handle.
func (e *StandardExecutor) BeginTx(ctx context.Context) (TxExecutor, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &standardTx{tx: tx}, nil
}

type standardTx struct {
	tx *sql.Tx
}

func (t *standardTx) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *standardTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *standardTx) Commit() error   { return t.tx.Commit() }
func (t *standardTx) Rollback() error { return t.tx.Rollback() }

// BeginTx pins a connection, applies SET ROLE and USE, and opens the
// transaction on that connection so every statement in the transaction runs
// under the request's database role.
func (e *RoleExecutor) BeginTx(ctx context.Context) (TxExecutor, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	cleanup := func() {
		_, _ = conn.ExecContext(context.Background(), "SET ROLE DEFAULT")
		_ = conn.Close()
	}

	role, ok := e.roleFromCtx(ctx)
	if ok && role != "" {
		if e.validateRole {
			if _, allowed := e.allowedRoles[role]; !allowed {
				cleanup()
				return nil, fmt.Errorf("role not allowed: %s", role)
			}
		}
		if _, err := conn.ExecContext(ctx, "SET ROLE NONE"); err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to clear roles for database %s: %w", e.databaseName, err)
		}
		// MySQL/TiDB don't support parameterized SET ROLE, use string formatting
		// Safe because role is validated against allowlist above
		setRoleSQL := fmt.Sprintf("SET ROLE %s", sqlutil.QuoteIdentifier(role))
		if _, err := conn.ExecContext(ctx, setRoleSQL); err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to set role %s: %w", role, err)
		}
	}
	if err := e.useDatabase(ctx, conn); err != nil {
		cleanup()
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &roleTx{tx: tx, cleanup: cleanup}, nil
}

type roleTx struct {
	tx      *sql.Tx
	cleanup func()
}

func (t *roleTx) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *roleTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *roleTx) Commit() error {
	defer t.cleanup()
	return t.tx.Commit()
}

func (t *roleTx) Rollback() error {
	defer t.cleanup()
	return t.tx.Rollback()
}
