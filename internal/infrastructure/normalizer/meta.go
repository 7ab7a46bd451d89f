package normalizer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/finsight/backend/internal/domain/exchange"
	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

// MetaNormalizer maps Meta Ads insight rows to ad-spend transactions. Meta
// reports spend directly in currency units.
type MetaNormalizer struct {
	converter *exchange.Converter
}

func NewMetaNormalizer(converter *exchange.Converter) *MetaNormalizer {
	return &MetaNormalizer{converter: converter}
}

func (n *MetaNormalizer) Platform() platform.Platform {
	return platform.Meta
}

func (n *MetaNormalizer) Normalize(rec platform.RawRecord) (*ledger.Transaction, error) {
	amount, ok := rec.Decimal("spend")
	if !ok {
		amount, ok = rec.Decimal("amount")
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing spend", shared.ErrValidation)
	}

	ts := rec.String("date_start")
	if ts == "" {
		ts = rec.String("date")
	}
	if ts == "" {
		ts = rec.String("created_time")
	}
	when, err := parseTimestamp(ts)
	if err != nil {
		return nil, err
	}

	campaignID := rec.String("campaign_id")
	if campaignID == "" {
		campaignID = rec.String("id")
	}

	// Insight rows are one per campaign per day; when the API gives no row
	// id, the (campaign, day) pair is the stable identity.
	platformID := rec.String("id")
	if platformID == "" {
		if campaignID == "" {
			return nil, fmt.Errorf("%w: missing campaign id", shared.ErrValidation)
		}
		platformID = campaignID + ":" + when.Format("2006-01-02")
	}

	currency := rec.String("currency")
	if currency == "" {
		currency = "USD"
	}

	tx := &ledger.Transaction{
		ID:         uuid.New(),
		Platform:   platform.Meta,
		PlatformID: platformID,
		Type:       ledger.TypeAdSpend,
		Amount:     amount,
		Currency:   currency,
		Timestamp:  when,
		CampaignID: campaignID,
		Metadata:   map[string]any{},
	}

	for _, key := range []string{"campaign_name", "impressions", "clicks", "conversions", "date_start", "date_stop"} {
		if rec.Has(key) {
			tx.Metadata[key] = rec[key]
		}
	}
	if tx.Metadata["campaign_name"] == nil && rec.Has("name") {
		tx.Metadata["campaign_name"] = rec["name"]
	}

	usd, err := n.converter.ToUSD(amount, currency)
	if err != nil {
		return nil, err
	}
	tx.AmountUSD = usd

	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}
