package normalizer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/finsight/backend/internal/domain/exchange"
	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

// ShopifyNormalizer maps Shopify orders and refunds onto the canonical
// model. Orders with financial_status "refunded" (or an explicit refund
// kind) become refund transactions carrying the refunded magnitude.
type ShopifyNormalizer struct {
	converter *exchange.Converter
}

func NewShopifyNormalizer(converter *exchange.Converter) *ShopifyNormalizer {
	return &ShopifyNormalizer{converter: converter}
}

func (n *ShopifyNormalizer) Platform() platform.Platform {
	return platform.Shopify
}

func (n *ShopifyNormalizer) Normalize(rec platform.RawRecord) (*ledger.Transaction, error) {
	platformID := rec.String("id")
	if platformID == "" {
		return nil, fmt.Errorf("%w: missing order id", shared.ErrValidation)
	}

	financialStatus := rec.String("financial_status")
	if financialStatus == "" {
		financialStatus = "paid"
	}
	isRefund := financialStatus == "refunded" || rec.String("kind") == "refund"

	txType := ledger.TypeOrder
	if isRefund {
		txType = ledger.TypeRefund
	}

	amount, ok := rec.Decimal("total_price")
	if !ok {
		amount, ok = rec.Decimal("amount")
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing amount", shared.ErrValidation)
	}
	// Refunds are stored as magnitudes; the type carries the sign.
	if isRefund && amount.IsNegative() {
		amount = amount.Abs()
	}

	currency := rec.String("currency")
	if currency == "" {
		currency = "USD"
	}

	ts := rec.String("created_at")
	if ts == "" {
		ts = rec.String("processed_at")
	}
	when, err := parseTimestamp(ts)
	if err != nil {
		return nil, err
	}

	tx := &ledger.Transaction{
		ID:         uuid.New(),
		Platform:   platform.Shopify,
		PlatformID: platformID,
		Type:       txType,
		Amount:     amount,
		Currency:   currency,
		Timestamp:  when,
		Metadata: map[string]any{
			"financial_status": financialStatus,
		},
	}

	if num := rec.String("order_number"); num != "" {
		tx.Metadata["order_number"] = num
	}

	lineItems := rec.Slice("line_items")
	tx.Metadata["line_items_count"] = len(lineItems)
	if len(lineItems) > 0 {
		// SKU attribution uses the first line item, matching how the
		// downstream unit-economics model keys orders.
		first := lineItems[0]
		if sku := first.String("sku"); sku != "" {
			tx.SKUID = sku
		} else {
			tx.SKUID = first.String("product_id")
		}
		if qty, ok := first.Int("quantity"); ok {
			tx.Quantity = &qty
		}
		if cost, ok := first.Decimal("cost_per_item"); ok {
			tx.CostPerUnit = &cost
		}
	}

	if customer := rec.Map("customer"); customer != nil {
		tx.CustomerID = customer.String("id")
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
