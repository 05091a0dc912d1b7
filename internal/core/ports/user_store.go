package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// NewUser carries the fields written on registration. Role is left to the
// store default.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// ProfileChanges is the full set of fields a profile update may rewrite.
type ProfileChanges struct {
	Username string
	Email    string
	Role     domain.Role
}

// UserStore mediates every read and write against the user store.
//
// Implementations translate store failures into domain errors:
// domain.ErrUserNotFound for a missing row, domain.ErrUserExists for a unique
// constraint violation and domain.ErrStoreUnavailable for everything else.
type UserStore interface {
	// FindByUsernameOrEmail returns the first user whose username or email
	// equals value.
	FindByUsernameOrEmail(ctx context.Context, value string) (*domain.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Insert(ctx context.Context, u NewUser) (*domain.User, error)
	ListAll(ctx context.Context) ([]domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// UpdateByID applies changes and refreshes updated_at.
	UpdateByID(ctx context.Context, id string, changes ProfileChanges) (*domain.User, error)
	DeleteByID(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
