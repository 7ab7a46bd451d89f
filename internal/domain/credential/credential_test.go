package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finsight/backend/internal/domain/platform"
)

func TestCredentialIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expiring := func(in time.Duration) *Credential {
		at := now.Add(in)
		return &Credential{Platform: platform.Google, AccessToken: "at", ExpiresAt: &at}
	}

	t.Run("expires inside the buffer", func(t *testing.T) {
		// 60s of life left against a 5m buffer counts as expired.
		assert.True(t, expiring(60*time.Second).IsExpired(now))
	})

	t.Run("plenty of life left", func(t *testing.T) {
		assert.False(t, expiring(time.Hour).IsExpired(now))
	})

	t.Run("already past expiry", func(t *testing.T) {
		assert.True(t, expiring(-time.Minute).IsExpired(now))
	})

	t.Run("exactly at the buffer edge", func(t *testing.T) {
		assert.True(t, expiring(DefaultExpiryBuffer).IsExpired(now))
	})

	t.Run("no recorded expiry never expires", func(t *testing.T) {
		c := &Credential{Platform: platform.Shopify, AccessToken: "at"}
		assert.False(t, c.IsExpired(now))
	})

	t.Run("custom buffer", func(t *testing.T) {
		c := expiring(2 * time.Minute)
		assert.False(t, c.IsExpiredWithin(now, time.Minute))
		assert.True(t, c.IsExpiredWithin(now, 3*time.Minute))
	})
}

func TestCredentialCanRefresh(t *testing.T) {
	assert.True(t, (&Credential{Platform: platform.Shopify}).CanRefresh())
	assert.True(t, (&Credential{Platform: platform.Meta, AccessToken: "at"}).CanRefresh())
	assert.False(t, (&Credential{Platform: platform.Meta}).CanRefresh())
	assert.True(t, (&Credential{Platform: platform.Google, RefreshToken: "rt"}).CanRefresh())
	assert.False(t, (&Credential{Platform: platform.Google}).CanRefresh())
	assert.False(t, (&Credential{Platform: platform.Platform("ebay")}).CanRefresh())
}

func TestCredentialClone(t *testing.T) {
	at := time.Now().Add(time.Hour)
	orig := &Credential{
		Platform:     platform.Google,
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    &at,
		Scopes:       []string{"ads.read"},
		Metadata:     map[string]string{"customer_id": "123"},
	}

	cp := orig.Clone()
	cp.AccessToken = "other"
	*cp.ExpiresAt = cp.ExpiresAt.Add(time.Hour)
	cp.Scopes[0] = "mutated"
	cp.Metadata["customer_id"] = "456"

	assert.Equal(t, "at", orig.AccessToken)
	assert.Equal(t, at, *orig.ExpiresAt)
	assert.Equal(t, "ads.read", orig.Scopes[0])
	assert.Equal(t, "123", orig.Metadata["customer_id"])
}
