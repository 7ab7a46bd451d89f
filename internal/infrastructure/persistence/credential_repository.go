package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
	"github.com/finsight/backend/internal/infrastructure/persistence/models"
)

// GormCredentialRepository implements credential.Repository using GORM.
// Token columns are encrypted with the injected encryptor before they hit
// the database; plaintext never leaves this boundary.
type GormCredentialRepository struct {
	db        *gorm.DB
	users     *GormUserDirectory
	encryptor credential.Encryptor
}

func NewGormCredentialRepository(db *gorm.DB, encryptor credential.Encryptor) *GormCredentialRepository {
	return &GormCredentialRepository{
		db:        db,
		users:     NewGormUserDirectory(db),
		encryptor: encryptor,
	}
}

func (r *GormCredentialRepository) Get(ctx context.Context, externalUserID string, p platform.Platform) (*credential.Credential, error) {
	userID, err := r.users.Lookup(ctx, externalUserID)
	if err != nil {
		return nil, err
	}

	var model models.CredentialModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, p.String()).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	accessToken, err := r.encryptor.Decrypt(model.AccessTokenEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypting access token: %w", err)
	}
	refreshToken := ""
	if model.RefreshTokenEncrypted != "" {
		refreshToken, err = r.encryptor.Decrypt(model.RefreshTokenEncrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypting refresh token: %w", err)
		}
	}
	return model.ToDomain(accessToken, refreshToken), nil
}

func (r *GormCredentialRepository) Put(ctx context.Context, externalUserID string, c *credential.Credential) error {
	userID, err := r.users.EnsureUser(ctx, externalUserID)
	if err != nil {
		return err
	}

	encryptedAccess, err := r.encryptor.Encrypt(c.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	encryptedRefresh := ""
	if c.RefreshToken != "" {
		encryptedRefresh, err = r.encryptor.Encrypt(c.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypting refresh token: %w", err)
		}
	}

	model := models.CredentialModel{ID: uuid.New()}
	model.FromDomain(userID, c)
	model.AccessTokenEncrypted = encryptedAccess
	model.RefreshTokenEncrypted = encryptedRefresh

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"access_token_encrypted", "refresh_token_encrypted",
				"expires_at", "platform_user_id", "scopes", "metadata", "updated_at",
			}),
		}).
		Create(&model).Error
}

func (r *GormCredentialRepository) Delete(ctx context.Context, externalUserID string, p platform.Platform) (bool, error) {
	userID, err := r.users.Lookup(ctx, externalUserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	res := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, p.String()).
		Delete(&models.CredentialModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormCredentialRepository) ListPlatforms(ctx context.Context, externalUserID string) ([]platform.Platform, error) {
	userID, err := r.users.Lookup(ctx, externalUserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	if err := r.db.WithContext(ctx).
		Model(&models.CredentialModel{}).
		Where("user_id = ?", userID).
		Order("platform").
		Pluck("platform", &names).Error; err != nil {
		return nil, err
	}

	out := make([]platform.Platform, 0, len(names))
	for _, name := range names {
		p, err := platform.Parse(name)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *GormCredentialRepository) DeleteAll(ctx context.Context, externalUserID string) (int, error) {
	userID, err := r.users.Lookup(ctx, externalUserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CredentialModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

var _ credential.Repository = (*GormCredentialRepository)(nil)
