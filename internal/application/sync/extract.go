package sync

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

var microUnits = decimal.NewFromInt(1_000_000)

// productFromRaw maps a raw catalog record to a product. Shopify nests SKU
// and price under variants; the first variant wins.
func productFromRaw(p platform.Platform, rec platform.RawRecord) (*ledger.Product, error) {
	productID := rec.String("id")
	if productID == "" {
		return nil, fmt.Errorf("%w: missing product id", shared.ErrValidation)
	}

	product := &ledger.Product{
		Platform:  p,
		ProductID: productID,
		SKU:       rec.String("sku"),
		Name:      rec.String("title"),
	}
	if product.Name == "" {
		product.Name = rec.String("name")
	}

	variants := rec.Slice("variants")
	if len(variants) > 0 {
		first := variants[0]
		if product.SKU == "" {
			product.SKU = first.String("sku")
		}
		if price, ok := first.Decimal("price"); ok {
			product.SellingPrice = &price
		}
	}
	if product.SellingPrice == nil {
		if price, ok := rec.Decimal("price"); ok {
			product.SellingPrice = &price
		}
	}
	return product, nil
}

// campaignFromRaw maps a raw campaign row to a campaign snapshot. Google
// reports spend in cost micros; Meta reports it directly.
func campaignFromRaw(p platform.Platform, rec platform.RawRecord) (*ledger.Campaign, error) {
	campaignID := rec.String("campaign_id")
	if campaignID == "" {
		campaignID = rec.String("id")
	}
	if campaignID == "" {
		return nil, fmt.Errorf("%w: missing campaign id", shared.ErrValidation)
	}

	name := rec.String("campaign_name")
	if name == "" {
		name = rec.String("name")
	}

	status := rec.String("status")
	if status == "" {
		status = rec.String("effective_status")
	}
	if status == "" {
		status = "unknown"
	}

	var spend decimal.Decimal
	if micros, ok := rec.Decimal("cost_micros"); ok {
		spend = micros.Div(microUnits)
	} else if direct, ok := rec.Decimal("spend"); ok {
		spend = direct
	}

	impressions, _ := rec.Int("impressions")
	clicks, _ := rec.Int("clicks")
	conversions, ok := rec.Int("conversions")
	if !ok {
		conversions, _ = rec.Int("actions")
	}

	return &ledger.Campaign{
		Platform:    p,
		CampaignID:  campaignID,
		Name:        name,
		Status:      strings.ToLower(status),
		Spend:       spend,
		Impressions: impressions,
		Clicks:      clicks,
		Conversions: conversions,
	}, nil
}
