package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupUnitOfWorkTest(t *testing.T) (*UnitOfWork, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	return NewUnitOfWork(db), mock, db
}

func TestUnitOfWork_BeginIsIdempotent(t *testing.T) {
	uow, mock, db := setupUnitOfWorkTest(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	ctx := context.Background()
	if err := uow.Begin(ctx); err != nil {
		t.Fatalf("Unexpected begin error: %v", err)
	}
	if err := uow.Begin(ctx); err != nil {
		t.Fatalf("Unexpected second begin error: %v", err)
	}
	if !uow.InTransaction() {
		t.Errorf("Expected an active transaction")
	}
	if err := uow.Commit(); err != nil {
		t.Fatalf("Unexpected commit error: %v", err)
	}
	if uow.InTransaction() {
		t.Errorf("Expected transaction binding to be cleared after commit")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUnitOfWork_ConnBindsToTransaction(t *testing.T) {
	uow, mock, db := setupUnitOfWorkTest(t)
	defer db.Close()

	if _, ok := uow.Conn().(*sql.DB); !ok {
		t.Errorf("Expected Conn to return the pool outside a transaction")
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET balance").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	ctx := context.Background()
	if err := uow.Begin(ctx); err != nil {
		t.Fatalf("Unexpected begin error: %v", err)
	}
	if _, ok := uow.Conn().(*sql.Tx); !ok {
		t.Errorf("Expected Conn to return the active transaction")
	}
	if _, err := uow.Conn().ExecContext(ctx, "UPDATE users SET balance = 0"); err != nil {
		t.Fatalf("Unexpected exec error: %v", err)
	}
	if err := uow.Rollback(); err != nil {
		t.Fatalf("Unexpected rollback error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUnitOfWork_RollbackWithoutTransaction(t *testing.T) {
	uow, mock, db := setupUnitOfWorkTest(t)
	defer db.Close()

	if err := uow.Rollback(); err != nil {
		t.Errorf("Expected rollback without transaction to be a no-op, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUnitOfWork_CommitWithoutTransaction(t *testing.T) {
	uow, _, db := setupUnitOfWorkTest(t)
	defer db.Close()

	if err := uow.Commit(); err == nil {
		t.Errorf("Expected commit without transaction to fail")
	}
}

func TestUnitOfWork_DisposeRollsBackOpenTransaction(t *testing.T) {
	uow, mock, db := setupUnitOfWorkTest(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	if err := uow.Begin(context.Background()); err != nil {
		t.Fatalf("Unexpected begin error: %v", err)
	}
	if err := uow.Dispose(); err != nil {
		t.Fatalf("Unexpected dispose error: %v", err)
	}
	if err := uow.Dispose(); err != nil {
		t.Errorf("Expected second dispose to be a no-op, got %v", err)
	}
	if err := uow.Begin(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("Expected ErrDisposed after dispose, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUnitOfWork_BeginFailure(t *testing.T) {
	uow, mock, db := setupUnitOfWorkTest(t)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	if err := uow.Begin(context.Background()); err == nil {
		t.Errorf("Expected begin to fail")
	}
	if uow.InTransaction() {
		t.Errorf("Expected no active transaction after failed begin")
	}
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Unexpected migrate error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
