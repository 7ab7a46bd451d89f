package credential

import (
	"time"

	"github.com/finsight/backend/internal/domain/platform"
)

// DefaultExpiryBuffer is how far ahead of the recorded expiry a credential
// is already treated as expired, so callers never hand a token to a platform
// API moments before it dies.
const DefaultExpiryBuffer = 5 * time.Minute

// Credential is a connected platform account's OAuth material plus the
// metadata needed to call that platform. Tokens are plaintext in memory;
// the persistence layer encrypts them at rest.
type Credential struct {
	Platform       platform.Platform
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time
	PlatformUserID string
	Scopes         []string
	Metadata       map[string]string

	UpdatedAt time.Time
}

// IsExpired reports whether the credential is expired or will expire within
// DefaultExpiryBuffer. A credential with no recorded expiry never expires.
func (c *Credential) IsExpired(now time.Time) bool {
	return c.IsExpiredWithin(now, DefaultExpiryBuffer)
}

// IsExpiredWithin is IsExpired with an explicit safety buffer.
func (c *Credential) IsExpiredWithin(now time.Time, buffer time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Add(-buffer))
}

// CanRefresh reports whether the credential carries enough material for a
// refresh attempt on its platform. Shopify access tokens are long-lived and
// are refreshed by re-stamping the expiry alone.
func (c *Credential) CanRefresh() bool {
	switch c.Platform {
	case platform.Shopify:
		return true
	case platform.Meta:
		return c.AccessToken != ""
	case platform.Google:
		return c.RefreshToken != ""
	default:
		return false
	}
}

// Clone returns a deep copy so cached credentials are never aliased by
// callers.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	if c.Scopes != nil {
		cp.Scopes = append([]string(nil), c.Scopes...)
	}
	if c.Metadata != nil {
		cp.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
