package ports

import "context"

// PasswordHasher hashes and verifies plaintext credentials.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches digest. It never errors.
	Verify(plaintext, digest string) bool
}

// PeerDeletionClient asks the peer service to delete the data it owns for a
// user. One attempt per call; failures are *domain.PeerError.
type PeerDeletionClient interface {
	DeleteUserData(ctx context.Context, userID string) error
}

// CleanupLedger remembers users whose peer data could not be deleted so the
// cascade can be reconciled later.
type CleanupLedger interface {
	Record(ctx context.Context, userID, detail string) error
	// Pending returns up to limit user ids, oldest first.
	Pending(ctx context.Context, limit int64) ([]string, error)
	Resolve(ctx context.Context, userID string) error
	Count(ctx context.Context) (int64, error)
}
