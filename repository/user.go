package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-svc/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const userColumns = "id, name, email, role, COALESCE(balance, 0), created_at"

type UserRepository struct {
	uow connProvider
}

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Balance, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Get(ctx context.Context, id int) (*models.User, error) {
	u, err := scanUser(r.uow.Conn().QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return u, nil
}

// FindByEmail also loads the password hash.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.uow.Conn().QueryRowContext(ctx,
		"SELECT "+userColumns+", password_hash FROM users WHERE email = $1", email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Balance, &u.CreatedAt, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var id int
	err := r.uow.Conn().QueryRowContext(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return true, nil
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	err := r.uow.Conn().QueryRowContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id, COALESCE(balance, 0), created_at",
		u.Name, u.Email, u.PasswordHash, u.Role,
	).Scan(&u.ID, &u.Balance, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// LockMany row-locks the given users in ascending id order.
func (r *UserRepository) LockMany(ctx context.Context, ids []int) ([]*models.User, error) {
	rows, err := r.uow.Conn().QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE",
		pq.Array(toInt64s(ids)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateBalance(ctx context.Context, id int, balance decimal.Decimal) error {
	result, err := r.uow.Conn().ExecContext(ctx, "UPDATE users SET balance = $1 WHERE id = $2", balance, id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return requireAffected(result)
}
