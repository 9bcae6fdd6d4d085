package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iudanet/learnhub/internal/models"
	"github.com/iudanet/learnhub/internal/server/storage"
)

const uniqueViolation = "23505"

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.CreatedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, name, password_hash, created_at
		FROM users
		WHERE email = $1
	`

	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	if !isUUID(userID) {
		return nil, storage.ErrUserNotFound
	}

	query := `
		SELECT id, email, name, password_hash, created_at
		FROM users
		WHERE id = $1
	`

	return scanUser(s.db.QueryRowContext(ctx, query, userID))
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}

	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// ListUsers returns all users ordered by email
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM users
		ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// UpdateUserName changes the display name
func (s *Storage) UpdateUserName(ctx context.Context, userID, name string) (*models.User, error) {
	if !isUUID(userID) {
		return nil, storage.ErrUserNotFound
	}

	query := `
		UPDATE users SET name = $1
		WHERE id = $2
		RETURNING id, email, name, password_hash, created_at
	`

	return scanUser(s.db.QueryRowContext(ctx, query, name, userID))
}

// UpdateUserPassword replaces the password hash
func (s *Storage) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if !isUUID(userID) {
		return storage.ErrUserNotFound
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	return checkUserAffected(result, err)
}

// DeleteUser removes the user, refresh tokens go with it (ON DELETE CASCADE)
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	if !isUUID(userID) {
		return storage.ErrUserNotFound
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return checkUserAffected(result, err)
}

// DeleteAllUsers removes every user
func (s *Storage) DeleteAllUsers(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

func checkUserAffected(result sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// isUUID отсекает id, которые PostgreSQL не приведет к типу UUID
func isUUID(id string) bool {
	return uuid.Validate(id) == nil
}
