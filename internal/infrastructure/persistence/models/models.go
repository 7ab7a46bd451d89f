// Package models holds the GORM persistence models and their mappings to
// and from the domain types.
package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
)

// UserModel maps an external identity (email) to an internal UUID.
type UserModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	ExternalID string    `gorm:"not null;uniqueIndex"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

// CredentialModel stores a platform credential with token fields encrypted.
type CredentialModel struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primary_key"`
	UserID                uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_credentials_user_platform"`
	Platform              string     `gorm:"not null;uniqueIndex:idx_credentials_user_platform"`
	AccessTokenEncrypted  string     `gorm:"not null"`
	RefreshTokenEncrypted string     `gorm:""`
	ExpiresAt             *time.Time `gorm:""`
	PlatformUserID        string     `gorm:""`
	Scopes                string     `gorm:""`
	Metadata              string     `gorm:"type:jsonb"`
	CreatedAt             time.Time  `gorm:"not null"`
	UpdatedAt             time.Time  `gorm:"not null"`
}

func (CredentialModel) TableName() string { return "credentials" }

// ToDomain converts the model to a domain credential. Token fields are
// whatever the repository decrypted them to before calling.
func (m *CredentialModel) ToDomain(accessToken, refreshToken string) *credential.Credential {
	c := &credential.Credential{
		Platform:       platform.Platform(m.Platform),
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		ExpiresAt:      m.ExpiresAt,
		PlatformUserID: m.PlatformUserID,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Scopes != "" {
		c.Scopes = strings.Split(m.Scopes, ",")
	}
	if m.Metadata != "" {
		var meta map[string]string
		if err := json.Unmarshal([]byte(m.Metadata), &meta); err == nil {
			c.Metadata = meta
		}
	}
	return c
}

// FromDomain populates the model from a domain credential, leaving the
// encrypted token columns for the repository to fill.
func (m *CredentialModel) FromDomain(userID uuid.UUID, c *credential.Credential) {
	m.UserID = userID
	m.Platform = c.Platform.String()
	m.ExpiresAt = c.ExpiresAt
	m.PlatformUserID = c.PlatformUserID
	m.Scopes = strings.Join(c.Scopes, ",")
	if len(c.Metadata) > 0 {
		if raw, err := json.Marshal(c.Metadata); err == nil {
			m.Metadata = string(raw)
		}
	}
}

// TransactionModel stores a canonical ledger transaction. The
// (user, platform, platform_id) unique index is the idempotency key.
type TransactionModel struct {
	ID          uuid.UUID        `gorm:"type:uuid;primary_key"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_transactions_user_platform_pid"`
	Platform    string           `gorm:"not null;uniqueIndex:idx_transactions_user_platform_pid"`
	PlatformID  string           `gorm:"not null;uniqueIndex:idx_transactions_user_platform_pid"`
	Type        string           `gorm:"not null;index"`
	Amount      decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Currency    string           `gorm:"not null"`
	AmountUSD   decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	OccurredAt  time.Time        `gorm:"not null;index"`
	SKUID       string           `gorm:"column:sku_id"`
	Quantity    *int64           `gorm:""`
	CostPerUnit *decimal.Decimal `gorm:"type:decimal(18,4)"`
	CampaignID  string           `gorm:""`
	CustomerID  string           `gorm:""`
	Metadata    string           `gorm:"type:jsonb"`
	CreatedAt   time.Time        `gorm:"not null"`
}

func (TransactionModel) TableName() string { return "transactions" }

func (m *TransactionModel) ToDomain() *ledger.Transaction {
	tx := &ledger.Transaction{
		ID:          m.ID,
		Platform:    platform.Platform(m.Platform),
		PlatformID:  m.PlatformID,
		Type:        ledger.TransactionType(m.Type),
		Amount:      m.Amount,
		Currency:    m.Currency,
		AmountUSD:   m.AmountUSD,
		Timestamp:   m.OccurredAt,
		SKUID:       m.SKUID,
		Quantity:    m.Quantity,
		CostPerUnit: m.CostPerUnit,
		CampaignID:  m.CampaignID,
		CustomerID:  m.CustomerID,
	}
	if m.Metadata != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(m.Metadata), &meta); err == nil {
			tx.Metadata = meta
		}
	}
	return tx
}

func (m *TransactionModel) FromDomain(userID uuid.UUID, tx *ledger.Transaction) {
	m.ID = tx.ID
	m.UserID = userID
	m.Platform = tx.Platform.String()
	m.PlatformID = tx.PlatformID
	m.Type = string(tx.Type)
	m.Amount = tx.Amount
	m.Currency = tx.Currency
	m.AmountUSD = tx.AmountUSD
	m.OccurredAt = tx.Timestamp
	m.SKUID = tx.SKUID
	m.Quantity = tx.Quantity
	m.CostPerUnit = tx.CostPerUnit
	m.CampaignID = tx.CampaignID
	m.CustomerID = tx.CustomerID
	if len(tx.Metadata) > 0 {
		if raw, err := json.Marshal(tx.Metadata); err == nil {
			m.Metadata = string(raw)
		}
	}
}

// CampaignModel stores the latest snapshot of an advertising campaign.
type CampaignModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_campaigns_user_platform_cid"`
	Platform           string          `gorm:"not null;uniqueIndex:idx_campaigns_user_platform_cid"`
	PlatformCampaignID string          `gorm:"not null;uniqueIndex:idx_campaigns_user_platform_cid"`
	Name               string          `gorm:""`
	Status             string          `gorm:""`
	Spend              decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Impressions        int64           `gorm:"not null;default:0"`
	Clicks             int64           `gorm:"not null;default:0"`
	Conversions        int64           `gorm:"not null;default:0"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

func (CampaignModel) TableName() string { return "campaigns" }

func (m *CampaignModel) ToDomain() *ledger.Campaign {
	return &ledger.Campaign{
		Platform:    platform.Platform(m.Platform),
		CampaignID:  m.PlatformCampaignID,
		Name:        m.Name,
		Status:      m.Status,
		Spend:       m.Spend,
		Impressions: m.Impressions,
		Clicks:      m.Clicks,
		Conversions: m.Conversions,
	}
}

func (m *CampaignModel) FromDomain(userID uuid.UUID, c *ledger.Campaign) {
	m.UserID = userID
	m.Platform = c.Platform.String()
	m.PlatformCampaignID = c.CampaignID
	m.Name = c.Name
	m.Status = c.Status
	m.Spend = c.Spend
	m.Impressions = c.Impressions
	m.Clicks = c.Clicks
	m.Conversions = c.Conversions
}

// ProductModel stores a commerce catalog entry.
type ProductModel struct {
	ID                uuid.UUID        `gorm:"type:uuid;primary_key"`
	UserID            uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_products_user_platform_pid"`
	Platform          string           `gorm:"not null;uniqueIndex:idx_products_user_platform_pid"`
	PlatformProductID string           `gorm:"not null;uniqueIndex:idx_products_user_platform_pid"`
	SKU               string           `gorm:"index"`
	Name              string           `gorm:""`
	SellingPrice      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	CreatedAt         time.Time        `gorm:"not null"`
	UpdatedAt         time.Time        `gorm:"not null"`
}

func (ProductModel) TableName() string { return "products" }

func (m *ProductModel) ToDomain() *ledger.Product {
	return &ledger.Product{
		Platform:     platform.Platform(m.Platform),
		ProductID:    m.PlatformProductID,
		SKU:          m.SKU,
		Name:         m.Name,
		SellingPrice: m.SellingPrice,
	}
}

func (m *ProductModel) FromDomain(userID uuid.UUID, p *ledger.Product) {
	m.UserID = userID
	m.Platform = p.Platform.String()
	m.PlatformProductID = p.ProductID
	m.SKU = p.SKU
	m.Name = p.Name
	m.SellingPrice = p.SellingPrice
}
