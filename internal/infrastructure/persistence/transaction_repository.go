package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/infrastructure/persistence/models"
)

// GormTransactionRepository implements ledger.TransactionRepository using
// GORM.
type GormTransactionRepository struct {
	db *gorm.DB
}

func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Upsert inserts the transaction, doing nothing when the
// (user, platform, platform_id) key already exists. RowsAffected tells the
// caller whether this sync actually added the row.
func (r *GormTransactionRepository) Upsert(ctx context.Context, userID uuid.UUID, tx *ledger.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}

	var model models.TransactionModel
	model.FromDomain(userID, tx)

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "platform"}, {Name: "platform_id"}},
			DoNothing: true,
		}).
		Create(&model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*ledger.Transaction, error) {
	var rows []models.TransactionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ? AND occurred_at <= ?", userID, from, to).
		Order("occurred_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*ledger.Transaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

func (r *GormTransactionRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TransactionModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

var _ ledger.TransactionRepository = (*GormTransactionRepository)(nil)
