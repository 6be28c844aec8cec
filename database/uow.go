package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var ErrDisposed = errors.New("unit of work already disposed")

// UnitOfWork scopes every repository built on it to one transaction.
// While a transaction is active Conn returns it, so entity repositories and
// raw report queries observe the same in-flight writes.
// A UnitOfWork is owned by one request and is not safe for concurrent use.
type UnitOfWork struct {
	db       *sql.DB
	tx       *sql.Tx
	disposed bool
}

func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Begin starts a transaction unless one is already active.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	return u.BeginTx(ctx, nil)
}

func (u *UnitOfWork) BeginTx(ctx context.Context, opts *sql.TxOptions) error {
	if u.disposed {
		return ErrDisposed
	}
	if u.tx != nil {
		return nil
	}

	tx, err := u.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	u.tx = tx
	return nil
}

func (u *UnitOfWork) InTransaction() bool {
	return u.tx != nil
}

func (u *UnitOfWork) Conn() DBTX {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return errors.New("no active transaction to commit")
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback is a no-op when no transaction is active.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// Dispose rolls back any transaction still open. Safe to call more than once.
func (u *UnitOfWork) Dispose() error {
	if u.disposed {
		return nil
	}
	u.disposed = true
	return u.Rollback()
}
