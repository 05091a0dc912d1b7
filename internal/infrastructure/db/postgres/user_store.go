package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	defaultQueryTimeout = 5 * time.Second

	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"

	userColumns = `id, username, email, password_hash, role, created_at, updated_at`
)

// Querier is the slice of *pgxpool.Pool the store uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

var _ Querier = (*pgxpool.Pool)(nil)

// UserStore implements ports.UserStore on PostgreSQL.
type UserStore struct {
	pool         Querier
	queryTimeout time.Duration
}

func NewUserStore(pool Querier, queryTimeout time.Duration) *UserStore {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &UserStore{pool: pool, queryTimeout: queryTimeout}
}

var _ ports.UserStore = (*UserStore)(nil)

func (s *UserStore) FindByUsernameOrEmail(ctx context.Context, value string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1 LIMIT 1`
	u, err := scanUser(s.pool.QueryRow(ctx, query, value))
	if err != nil {
		return nil, translate("find user", err)
	}
	return u, nil
}

func (s *UserStore) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	var exists bool
	if err := s.pool.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, translate("check user exists", err)
	}
	return exists, nil
}

func (s *UserStore) Insert(ctx context.Context, nu ports.NewUser) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	const query = `INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	u, err := scanUser(s.pool.QueryRow(ctx, query, nu.Username, nu.Email, nu.PasswordHash))
	if err != nil {
		return nil, translate("insert user", err)
	}
	return u, nil
}

func (s *UserStore) ListAll(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	const query = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, translate("list users", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, translate("scan user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list users", err)
	}
	return users, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.pool.QueryRow(ctx, query, uid))
	if err != nil {
		return nil, translate("get user", err)
	}
	return u, nil
}

func (s *UserStore) UpdateByID(ctx context.Context, id string, c ports.ProfileChanges) (*domain.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	const query = `UPDATE users
		SET username = $2, email = $3, role = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(s.pool.QueryRow(ctx, query, uid, c.Username, c.Email, string(c.Role)))
	if err != nil {
		return nil, translate("update user", err)
	}
	return u, nil
}

func (s *UserStore) DeleteByID(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, uid)
	if err != nil {
		return translate("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		return translate("ping", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// translate maps driver errors onto the domain taxonomy. Anything that is not
// a missing row or a constraint violation is reported as ErrStoreUnavailable
// with the cause kept for logs.
func translate(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUserNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domain.ErrUserExists
		case pgCheckViolation:
			return domain.NewInputError(fmt.Sprintf("role must be one of: %s, %s", domain.RoleUser, domain.RoleAdmin))
		}
	}

	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
