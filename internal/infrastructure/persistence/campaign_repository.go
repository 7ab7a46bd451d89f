package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/infrastructure/persistence/models"
)

// GormCampaignRepository implements ledger.CampaignRepository using GORM.
// Campaign snapshots are superseded on conflict so metrics always reflect
// the latest sync.
type GormCampaignRepository struct {
	db *gorm.DB
}

func NewGormCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

func (r *GormCampaignRepository) Upsert(ctx context.Context, userID uuid.UUID, c *ledger.Campaign) error {
	model := models.CampaignModel{ID: uuid.New()}
	model.FromDomain(userID, c)

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}, {Name: "platform_campaign_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "status", "spend", "impressions", "clicks", "conversions", "updated_at",
			}),
		}).
		Create(&model).Error
}

// ListByUser returns the user's campaign snapshots.
func (r *GormCampaignRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*ledger.Campaign, error) {
	var rows []models.CampaignModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("platform, platform_campaign_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*ledger.Campaign, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ ledger.CampaignRepository = (*GormCampaignRepository)(nil)
