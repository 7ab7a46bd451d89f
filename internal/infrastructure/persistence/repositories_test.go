package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
	"github.com/finsight/backend/internal/infrastructure/crypto"
	"github.com/finsight/backend/internal/infrastructure/persistence/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.UserModel{},
		&models.CredentialModel{},
		&models.TransactionModel{},
		&models.CampaignModel{},
		&models.ProductModel{},
	)
	require.NoError(t, err)
	return db
}

func testEncryptor(t *testing.T) credential.Encryptor {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	enc, err := crypto.NewTokenEncryptor(key)
	require.NoError(t, err)
	return enc
}

func sampleTransaction(platformID string) *ledger.Transaction {
	return &ledger.Transaction{
		ID:         uuid.New(),
		Platform:   platform.Shopify,
		PlatformID: platformID,
		Type:       ledger.TypeOrder,
		Amount:     decimal.RequireFromString("49.99"),
		Currency:   "USD",
		AmountUSD:  decimal.RequireFromString("49.99"),
		Timestamp:  time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Metadata:   map[string]any{"financial_status": "paid"},
	}
}

func TestGormUserDirectory_EnsureUser(t *testing.T) {
	db := setupTestDB(t)
	dir := NewGormUserDirectory(db)
	ctx := context.Background()

	t.Run("creates on first use and is stable after", func(t *testing.T) {
		first, err := dir.EnsureUser(ctx, "u@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, first)

		second, err := dir.EnsureUser(ctx, "u@example.com")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		_, err := dir.EnsureUser(ctx, "  ")
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("lookup without create", func(t *testing.T) {
		_, err := dir.Lookup(ctx, "nobody@example.com")
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestGormCredentialRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormCredentialRepository(db, testEncryptor(t))
	ctx := context.Background()

	expires := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cred := &credential.Credential{
		Platform:       platform.Google,
		AccessToken:    "ya29.token",
		RefreshToken:   "1//refresh",
		ExpiresAt:      &expires,
		PlatformUserID: "google-user-1",
		Scopes:         []string{"ads.read", "ads.report"},
		Metadata:       map[string]string{"login_customer_id": "123"},
	}

	t.Run("round trip decrypts to the original", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, "u@example.com", cred))

		got, err := repo.Get(ctx, "u@example.com", platform.Google)
		require.NoError(t, err)
		assert.Equal(t, "ya29.token", got.AccessToken)
		assert.Equal(t, "1//refresh", got.RefreshToken)
		assert.Equal(t, expires.Unix(), got.ExpiresAt.Unix())
		assert.Equal(t, []string{"ads.read", "ads.report"}, got.Scopes)
		assert.Equal(t, "123", got.Metadata["login_customer_id"])
	})

	t.Run("tokens are not stored in plaintext", func(t *testing.T) {
		var model models.CredentialModel
		require.NoError(t, db.First(&model, "platform = ?", "google").Error)
		assert.NotContains(t, model.AccessTokenEncrypted, "ya29.token")
		assert.NotContains(t, model.RefreshTokenEncrypted, "1//refresh")
	})

	t.Run("put replaces the existing credential", func(t *testing.T) {
		updated := cred.Clone()
		updated.AccessToken = "ya29.rotated"
		require.NoError(t, repo.Put(ctx, "u@example.com", updated))

		got, err := repo.Get(ctx, "u@example.com", platform.Google)
		require.NoError(t, err)
		assert.Equal(t, "ya29.rotated", got.AccessToken)

		var count int64
		require.NoError(t, db.Model(&models.CredentialModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("missing credential", func(t *testing.T) {
		_, err := repo.Get(ctx, "u@example.com", platform.Meta)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("list, delete, delete all", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, "u@example.com", &credential.Credential{
			Platform:    platform.Shopify,
			AccessToken: "shpat",
		}))

		platforms, err := repo.ListPlatforms(ctx, "u@example.com")
		require.NoError(t, err)
		assert.Equal(t, []platform.Platform{platform.Google, platform.Shopify}, platforms)

		existed, err := repo.Delete(ctx, "u@example.com", platform.Google)
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = repo.Delete(ctx, "u@example.com", platform.Google)
		require.NoError(t, err)
		assert.False(t, existed)

		n, err := repo.DeleteAll(ctx, "u@example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("unknown user behaves as empty", func(t *testing.T) {
		platforms, err := repo.ListPlatforms(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Empty(t, platforms)

		existed, err := repo.Delete(ctx, "nobody@example.com", platform.Shopify)
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestGormTransactionRepository_UpsertIdempotence(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTransactionRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	inserted, err := repo.Upsert(ctx, userID, sampleTransaction("ord_1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same platform id again, even with a different surrogate id.
	inserted, err = repo.Upsert(ctx, userID, sampleTransaction("ord_1"))
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := repo.CountByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// A different user may hold the same platform id.
	inserted, err = repo.Upsert(ctx, uuid.New(), sampleTransaction("ord_1"))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestGormTransactionRepository_ListByUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTransactionRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	early := sampleTransaction("ord_early")
	early.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := sampleTransaction("ord_late")
	late.Timestamp = time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	outside := sampleTransaction("ord_outside")
	outside.Timestamp = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, tx := range []*ledger.Transaction{late, early, outside} {
		_, err := repo.Upsert(ctx, userID, tx)
		require.NoError(t, err)
	}

	got, err := repo.ListByUser(ctx, userID,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ord_early", got[0].PlatformID)
	assert.Equal(t, "ord_late", got[1].PlatformID)
	assert.Equal(t, "49.99", got[0].Amount.StringFixed(2))
	assert.Equal(t, "paid", got[0].Metadata["financial_status"])
}

func TestGormTransactionRepository_RejectsInvalid(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTransactionRepository(db)

	tx := sampleTransaction("ord_1")
	tx.Currency = ""
	_, err := repo.Upsert(context.Background(), uuid.New(), tx)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestGormCampaignRepository_UpsertSupersedes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormCampaignRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	first := &ledger.Campaign{
		Platform:    platform.Google,
		CampaignID:  "cmp_1",
		Name:        "Brand",
		Status:      "enabled",
		Spend:       decimal.RequireFromString("1.50"),
		Impressions: 100,
	}
	require.NoError(t, repo.Upsert(ctx, userID, first))

	second := *first
	second.Spend = decimal.RequireFromString("3.00")
	second.Status = "paused"
	require.NoError(t, repo.Upsert(ctx, userID, &second))

	got, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3.00", got[0].Spend.StringFixed(2))
	assert.Equal(t, "paused", got[0].Status)
}

func TestGormProductRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	price := decimal.RequireFromString("12.00")
	require.NoError(t, repo.Upsert(ctx, userID, &ledger.Product{
		Platform:     platform.Shopify,
		ProductID:    "p1",
		SKU:          "MUG-1",
		Name:         "Mug",
		SellingPrice: &price,
	}))

	newPrice := decimal.RequireFromString("14.00")
	require.NoError(t, repo.Upsert(ctx, userID, &ledger.Product{
		Platform:     platform.Shopify,
		ProductID:    "p1",
		SKU:          "MUG-1",
		Name:         "Mug v2",
		SellingPrice: &newPrice,
	}))

	got, err := repo.FindBySKU(ctx, userID, "MUG-1")
	require.NoError(t, err)
	assert.Equal(t, "Mug v2", got.Name)
	assert.Equal(t, "14.00", got.SellingPrice.StringFixed(2))

	_, err = repo.FindBySKU(ctx, userID, "NOPE")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}
