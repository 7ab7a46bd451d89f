package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finsight/backend/internal/domain/shared"
	"github.com/finsight/backend/internal/infrastructure/persistence/models"
)

// GormUserDirectory implements ledger.UserDirectory using GORM.
type GormUserDirectory struct {
	db *gorm.DB
}

func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

// EnsureUser returns the internal UUID for an external id, creating the
// user row on first use. Concurrent first-use calls race on the unique
// index; the conflict is swallowed and the winner's row is read back.
func (r *GormUserDirectory) EnsureUser(ctx context.Context, externalID string) (uuid.UUID, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return uuid.Nil, fmt.Errorf("external id is required: %w", shared.ErrInvalidInput)
	}

	model := models.UserModel{
		ID:         uuid.New(),
		ExternalID: externalID,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&model).Error; err != nil {
		return uuid.Nil, err
	}

	var existing models.UserModel
	if err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&existing).Error; err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}

// Lookup returns the UUID for an external id without creating it.
func (r *GormUserDirectory) Lookup(ctx context.Context, externalID string) (uuid.UUID, error) {
	var model models.UserModel
	if err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, shared.ErrNotFound
		}
		return uuid.Nil, err
	}
	return model.ID, nil
}
