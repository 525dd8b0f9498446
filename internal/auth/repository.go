package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/citizenvoice/platform/internal/shared/database"
	apperrors "github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence for accounts
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id types.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Delete(ctx context.Context, id types.ID) error
	List(ctx context.Context, filter UserFilter) ([]User, int, error)
}

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	pool database.Pool
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(pool database.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, name, email, phone, password_hash, role, administration_scope,
	province, district, sector, cell, village, created_at, updated_at`

// Create inserts a new user
func (r *PostgresUserRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO identity.users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role, u.Scope,
		u.Location.Province, u.Location.District, u.Location.Sector, u.Location.Cell, u.Location.Village,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return apperrors.Conflict("an account with this email already exists")
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id types.ID) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM identity.users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", id.String())
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get user")
	}
	return u, nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM identity.users WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", email)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get user by email")
	}
	return u, nil
}

// Delete removes a user
func (r *PostgresUserRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM identity.users WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete user")
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("user", id.String())
	}
	return nil
}

// List lists users matching filter, newest first
func (r *PostgresUserRepository) List(ctx context.Context, filter UserFilter) ([]User, int, error) {
	var conditions []string
	var args []any
	argNum := 1

	area, areaArgs := filter.Area.SQL(argNum)
	conditions = append(conditions, area)
	args = append(args, areaArgs...)
	argNum += len(areaArgs)

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argNum))
		args = append(args, *filter.Role)
		argNum++
	}

	if filter.Scope != nil {
		conditions = append(conditions, fmt.Sprintf("administration_scope = $%d", argNum))
		args = append(args, *filter.Scope)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identity.users`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to count users")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM identity.users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, "failed to scan user")
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to iterate users")
	}

	return users, total, nil
}

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.Scope,
		&u.Location.Province, &u.Location.District, &u.Location.Sector, &u.Location.Cell, &u.Location.Village,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}
