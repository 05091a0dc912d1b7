package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// IdentityService implements registration, authentication and profile
// management on top of a UserStore.
type IdentityService struct {
	store  ports.UserStore
	hasher ports.PasswordHasher
	peer   ports.PeerDeletionClient
	ledger ports.CleanupLedger
	logger zerolog.Logger
}

// Option customises an IdentityService.
type Option func(*IdentityService)

// WithPeer enables the cascade delete against the peer service.
func WithPeer(peer ports.PeerDeletionClient) Option {
	return func(s *IdentityService) { s.peer = peer }
}

// WithCleanupLedger records failed peer cascades for later reconciliation.
func WithCleanupLedger(ledger ports.CleanupLedger) Option {
	return func(s *IdentityService) { s.ledger = ledger }
}

func NewIdentityService(store ports.UserStore, hasher ports.PasswordHasher, logger zerolog.Logger, opts ...Option) *IdentityService {
	s := &IdentityService{store: store, hasher: hasher, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.IdentityService = (*IdentityService)(nil)

func (s *IdentityService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error) {
	// Passwords are opaque: only an empty one is missing.
	if blank(in.Username) || blank(in.Email) || in.Password == "" {
		return nil, domain.NewInputError("username, email and password are required")
	}
	if len(in.Password) > domain.MaxPasswordBytes {
		return nil, domain.NewInputError(fmt.Sprintf("password must be at most %d bytes", domain.MaxPasswordBytes))
	}

	// Fast path only; the store's unique constraints decide races below.
	exists, err := s.store.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		return nil, domain.ErrUserExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	created, err := s.store.Insert(context.WithoutCancel(ctx), ports.NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			s.logger.Info().Str("username", in.Username).Msg("registration lost uniqueness race")
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	s.logger.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("user registered")

	p := created.Profile()
	return &p, nil
}

// Authenticate checks identifier (username or email) and password. Unknown
// identifiers and wrong passwords both fail with domain.ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, identifier, password string) (*ports.AuthResult, error) {
	if blank(identifier) || password == "" {
		return nil, domain.NewInputError("identifier and password are required")
	}

	user, err := s.store.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return &ports.AuthResult{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}, nil
}

func (s *IdentityService) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	users, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	profiles := make([]domain.Profile, len(users))
	for i := range users {
		profiles[i] = users[i].Profile()
	}
	return profiles, nil
}

func (s *IdentityService) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if blank(id) {
		return nil, domain.ErrUserNotFound
	}
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p := user.Profile()
	return &p, nil
}

func (s *IdentityService) UpdateProfile(ctx context.Context, in ports.UpdateProfileInput) (*domain.Profile, error) {
	if blank(in.Username) || blank(in.Email) || blank(in.Role) {
		return nil, domain.NewInputError("username, email and role are required")
	}
	role := domain.Role(in.Role)
	if !role.Valid() {
		return nil, domain.NewInputError(fmt.Sprintf("role must be one of: %s, %s", domain.RoleUser, domain.RoleAdmin))
	}
	if blank(in.ID) {
		return nil, domain.ErrUserNotFound
	}

	updated, err := s.store.UpdateByID(context.WithoutCancel(ctx), in.ID, ports.ProfileChanges{
		Username: in.Username,
		Email:    in.Email,
		Role:     role,
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.Info().Str("user_id", updated.ID).Str("role", string(updated.Role)).Msg("profile updated")

	p := updated.Profile()
	return &p, nil
}

// DeleteProfile removes the user row and then asks the peer service to drop
// the user's data. The row deletion commits first and is never rolled back: a
// peer failure after it yields DeletePartial, not an error.
func (s *IdentityService) DeleteProfile(ctx context.Context, id string) (*ports.DeleteResult, error) {
	if blank(id) {
		return nil, domain.ErrUserNotFound
	}

	// Once started, the delete and the cascade outlive a disconnecting caller.
	ctx = context.WithoutCancel(ctx)

	if err := s.store.DeleteByID(ctx, id); err != nil {
		return nil, fmt.Errorf("delete profile: %w", err)
	}

	if s.peer == nil {
		s.logger.Warn().Str("user_id", id).Msg("peer endpoint not configured, skipping data cleanup")
		return &ports.DeleteResult{Outcome: ports.DeletePeerSkipped}, nil
	}

	if err := s.peer.DeleteUserData(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("user deleted but peer data cleanup failed")
		s.recordPendingCleanup(ctx, id, err)
		return &ports.DeleteResult{Outcome: ports.DeletePartial, PeerErr: err}, nil
	}

	s.logger.Info().Str("user_id", id).Msg("user and peer data deleted")
	return &ports.DeleteResult{Outcome: ports.DeleteComplete}, nil
}

// recordPendingCleanup is best effort; a ledger failure never changes the
// delete result.
func (s *IdentityService) recordPendingCleanup(ctx context.Context, id string, peerErr error) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Record(ctx, id, domain.PeerDetail(peerErr)); err != nil {
		s.logger.Warn().Err(err).Str("user_id", id).Msg("failed to record pending peer cleanup")
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
