package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SeedUser inserts a user row, assigning an identifier when absent.
func (s *Store) SeedUser(ctx context.Context, user User) (*User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, ok := ParseRole(string(user.Role)); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, user.Role)
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO users (id, name, email, role) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.Role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &user, nil
}

// SeedProduct inserts a product row, assigning an identifier when absent.
func (s *Store) SeedProduct(ctx context.Context, product Product) (*Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO products (id, name, owner_id) VALUES (?, ?, ?)`,
		product.ID, product.Name, product.OwnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &product, nil
}

// UserByID looks up a user for history attribution and notifications.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, email, role FROM users WHERE id = ?`, id)
	var user User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// Validators returns eligible validators in a stable order. Validator
// capability maps to the admin role.
func (s *Store) Validators(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, email, role FROM users WHERE role = ? ORDER BY name, id`,
		RoleAdmin,
	)
	if err != nil {
		return nil, fmt.Errorf("query validators: %w", err)
	}
	defer rows.Close()

	var validators []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Role); err != nil {
			return nil, err
		}
		validators = append(validators, user)
	}
	return validators, rows.Err()
}

// ProductExists reports whether a product row is present.
func (s *Store) ProductExists(ctx context.Context, id string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products WHERE id = ?`, id)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check product: %w", err)
	}
	return count > 0, nil
}
