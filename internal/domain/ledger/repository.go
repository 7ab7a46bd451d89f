package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsight/backend/internal/domain/platform"
)

// TransactionRepository persists canonical transactions idempotently.
type TransactionRepository interface {
	// Upsert inserts the transaction keyed on (user, platform, platformID).
	// Inserting an already-present key is a no-op; the return value reports
	// whether a new row was written.
	Upsert(ctx context.Context, userID uuid.UUID, tx *Transaction) (bool, error)

	// ListByUser returns the user's transactions within the window, in
	// occurrence order.
	ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*Transaction, error)

	// CountByUser returns how many transactions are stored for the user.
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Campaign is an advertising campaign snapshot kept alongside its ad-spend
// transactions. Unlike transactions, campaign rows are superseded on
// re-sync: metrics reflect the latest fetch.
type Campaign struct {
	Platform    platform.Platform
	CampaignID  string
	Name        string
	Status      string
	Spend       decimal.Decimal
	Impressions int64
	Clicks      int64
	Conversions int64
}

// CampaignRepository persists campaign snapshots.
type CampaignRepository interface {
	Upsert(ctx context.Context, userID uuid.UUID, c *Campaign) error
}

// Product is a commerce catalog entry.
type Product struct {
	Platform     platform.Platform
	ProductID    string
	SKU          string
	Name         string
	SellingPrice *decimal.Decimal
}

// ProductRepository persists catalog entries.
type ProductRepository interface {
	Upsert(ctx context.Context, userID uuid.UUID, p *Product) error
}

// UserDirectory maps an external user identifier (typically an email) to an
// internal identity, creating one on first use.
type UserDirectory interface {
	EnsureUser(ctx context.Context, externalID string) (uuid.UUID, error)
}
