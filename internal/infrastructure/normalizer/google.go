package normalizer

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsight/backend/internal/domain/exchange"
	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

var micro = decimal.NewFromInt(1_000_000)

// GoogleNormalizer maps Google Ads report rows to ad-spend transactions.
// Google reports cost in micros: cost_micros 1500000 is 1.50 currency units.
type GoogleNormalizer struct {
	converter *exchange.Converter
}

func NewGoogleNormalizer(converter *exchange.Converter) *GoogleNormalizer {
	return &GoogleNormalizer{converter: converter}
}

func (n *GoogleNormalizer) Platform() platform.Platform {
	return platform.Google
}

func (n *GoogleNormalizer) Normalize(rec platform.RawRecord) (*ledger.Transaction, error) {
	var amount decimal.Decimal
	if micros, ok := rec.Decimal("cost_micros"); ok {
		amount = micros.Div(micro)
	} else if cost, ok := rec.Decimal("cost"); ok {
		amount = cost
	} else {
		return nil, fmt.Errorf("%w: missing cost", shared.ErrValidation)
	}

	ts := rec.String("date")
	if ts == "" {
		if segments := rec.Map("segments"); segments != nil {
			ts = segments.String("date")
		}
	}
	when, err := parseTimestamp(ts)
	if err != nil {
		return nil, err
	}

	campaignID := rec.String("campaign_id")
	if campaignID == "" {
		if campaign := rec.Map("campaign"); campaign != nil {
			campaignID = campaign.String("id")
		}
	}

	platformID := rec.String("id")
	if platformID == "" {
		if campaignID == "" {
			return nil, fmt.Errorf("%w: missing campaign id", shared.ErrValidation)
		}
		platformID = campaignID + ":" + when.Format("2006-01-02")
	}

	currency := rec.String("currency_code")
	if currency == "" {
		currency = "USD"
	}

	tx := &ledger.Transaction{
		ID:         uuid.New(),
		Platform:   platform.Google,
		PlatformID: platformID,
		Type:       ledger.TypeAdSpend,
		Amount:     amount,
		Currency:   currency,
		Timestamp:  when,
		CampaignID: campaignID,
		Metadata:   map[string]any{},
	}

	metrics := rec.Map("metrics")
	for _, key := range []string{"campaign_name", "impressions", "clicks", "conversions", "cost_micros"} {
		if rec.Has(key) {
			tx.Metadata[key] = rec[key]
		} else if metrics != nil && metrics.Has(key) {
			tx.Metadata[key] = metrics[key]
		}
	}
	if tx.Metadata["campaign_name"] == nil {
		if campaign := rec.Map("campaign"); campaign != nil && campaign.Has("name") {
			tx.Metadata["campaign_name"] = campaign["name"]
		}
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
