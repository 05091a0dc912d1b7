package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// RegisterInput is the DTO passed from the transport layer to Register.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UpdateProfileInput carries a full profile rewrite for one user.
type UpdateProfileInput struct {
	ID       string
	Username string
	Email    string
	Role     string
}

// AuthResult is returned by a successful Authenticate.
type AuthResult struct {
	UserID   string
	Username string
	Email    string
	Role     domain.Role
}

// DeleteOutcome is the terminal state of a DeleteProfile call that removed the
// user row.
type DeleteOutcome string

const (
	// DeleteComplete means the user row and the peer-owned data are gone.
	DeleteComplete DeleteOutcome = "deleted"
	// DeletePeerSkipped means the user row is gone and no peer endpoint is
	// configured.
	DeletePeerSkipped DeleteOutcome = "peer_skipped"
	// DeletePartial means the user row is gone but the peer cascade failed.
	DeletePartial DeleteOutcome = "partial"
)

// DeleteResult reports how far a delete got. PeerErr is set only for
// DeletePartial.
type DeleteResult struct {
	Outcome DeleteOutcome
	PeerErr error
}

// IdentityService defines the identity lifecycle use cases.
type IdentityService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Profile, error)
	Authenticate(ctx context.Context, identifier, password string) (*AuthResult, error)
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, in UpdateProfileInput) (*domain.Profile, error)
	DeleteProfile(ctx context.Context, id string) (*DeleteResult, error)
}
