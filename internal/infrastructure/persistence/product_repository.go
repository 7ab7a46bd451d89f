package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/shared"
	"github.com/finsight/backend/internal/infrastructure/persistence/models"
)

// GormProductRepository implements ledger.ProductRepository using GORM.
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Upsert(ctx context.Context, userID uuid.UUID, p *ledger.Product) error {
	model := models.ProductModel{ID: uuid.New()}
	model.FromDomain(userID, p)

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}, {Name: "platform_product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sku", "name", "selling_price", "updated_at",
			}),
		}).
		Create(&model).Error
}

// FindBySKU returns the user's product with the given SKU, if any.
func (r *GormProductRepository) FindBySKU(ctx context.Context, userID uuid.UUID, sku string) (*ledger.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND sku = ?", userID, sku).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ ledger.ProductRepository = (*GormProductRepository)(nil)
