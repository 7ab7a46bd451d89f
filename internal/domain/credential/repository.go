package credential

import (
	"context"

	"github.com/finsight/backend/internal/domain/platform"
)

// Repository is the persistence boundary for credentials. Implementations
// encrypt token material before it touches storage and decrypt on the way
// out; the rest of the system only ever sees plaintext Credential values.
type Repository interface {
	// Get returns the stored credential, or shared.ErrNotFound.
	Get(ctx context.Context, externalUserID string, p platform.Platform) (*Credential, error)

	// Put stores or replaces the credential for (user, platform).
	Put(ctx context.Context, externalUserID string, c *Credential) error

	// Delete removes the credential. The return value reports whether one
	// existed.
	Delete(ctx context.Context, externalUserID string, p platform.Platform) (bool, error)

	// ListPlatforms returns the platforms the user has credentials for.
	ListPlatforms(ctx context.Context, externalUserID string) ([]platform.Platform, error)

	// DeleteAll removes every credential for the user and returns how many
	// were removed.
	DeleteAll(ctx context.Context, externalUserID string) (int, error)
}

// Encryptor seals and opens token material at the persistence boundary.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Refresher exchanges an expiring credential for a fresh one against the
// platform's token endpoint. Implementations must not mutate the input.
type Refresher interface {
	Refresh(ctx context.Context, c *Credential) (*Credential, error)
}
