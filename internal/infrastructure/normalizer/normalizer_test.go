package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/backend/internal/domain/exchange"
	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

func testRegistry() *Registry {
	return NewRegistry(exchange.NewConverter(nil))
}

func shopifyOrder() platform.RawRecord {
	return platform.RawRecord{
		"id":               "ord_1001",
		"total_price":      "49.99",
		"currency":         "USD",
		"created_at":       "2026-01-15T10:30:00Z",
		"financial_status": "paid",
		"order_number":     "1001",
		"line_items": []any{
			map[string]any{"sku": "SKU-001", "quantity": float64(2), "price": "24.99", "cost_per_item": "11.00"},
			map[string]any{"sku": "SKU-002", "quantity": float64(1), "price": "0.01"},
		},
		"customer": map[string]any{"id": float64(42)},
	}
}

func TestShopifyNormalize(t *testing.T) {
	n := NewShopifyNormalizer(exchange.NewConverter(nil))

	t.Run("paid order", func(t *testing.T) {
		tx, err := n.Normalize(shopifyOrder())
		require.NoError(t, err)
		assert.Equal(t, platform.Shopify, tx.Platform)
		assert.Equal(t, "ord_1001", tx.PlatformID)
		assert.Equal(t, ledger.TypeOrder, tx.Type)
		assert.Equal(t, "49.99", tx.Amount.StringFixed(2))
		assert.Equal(t, "49.99", tx.AmountUSD.StringFixed(2))
		assert.Equal(t, "USD", tx.Currency)
		assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), tx.Timestamp.UTC())
		assert.Equal(t, "SKU-001", tx.SKUID)
		require.NotNil(t, tx.Quantity)
		assert.Equal(t, int64(2), *tx.Quantity)
		require.NotNil(t, tx.CostPerUnit)
		assert.Equal(t, "11.00", tx.CostPerUnit.StringFixed(2))
		assert.Equal(t, "42", tx.CustomerID)
		assert.Equal(t, 2, tx.Metadata["line_items_count"])
	})

	t.Run("refunded order becomes refund magnitude", func(t *testing.T) {
		rec := shopifyOrder()
		rec["financial_status"] = "refunded"
		rec["total_price"] = "-49.99"
		tx, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.Equal(t, ledger.TypeRefund, tx.Type)
		assert.Equal(t, "49.99", tx.Amount.StringFixed(2))
		assert.False(t, tx.Amount.IsNegative())
	})

	t.Run("refund kind", func(t *testing.T) {
		rec := platform.RawRecord{
			"id":         "ref_7",
			"kind":       "refund",
			"amount":     "10.00",
			"created_at": "2026-01-16T00:00:00Z",
		}
		tx, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.Equal(t, ledger.TypeRefund, tx.Type)
		assert.Equal(t, "USD", tx.Currency)
	})

	t.Run("eur order converts at the table rate", func(t *testing.T) {
		rec := shopifyOrder()
		rec["currency"] = "EUR"
		rec["total_price"] = "100.00"
		tx, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.Equal(t, "108.00", tx.AmountUSD.StringFixed(2))
	})

	t.Run("unknown currency is rejected", func(t *testing.T) {
		rec := shopifyOrder()
		rec["currency"] = "XYZ"
		_, err := n.Normalize(rec)
		var unsupported *exchange.UnsupportedCurrencyError
		assert.True(t, errors.As(err, &unsupported))
	})

	t.Run("missing id", func(t *testing.T) {
		rec := shopifyOrder()
		delete(rec, "id")
		_, err := n.Normalize(rec)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("missing timestamp", func(t *testing.T) {
		rec := shopifyOrder()
		delete(rec, "created_at")
		_, err := n.Normalize(rec)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("offset timestamps parse", func(t *testing.T) {
		rec := shopifyOrder()
		rec["created_at"] = "2026-01-15T10:30:00-05:00"
		tx, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 1, 15, 15, 30, 0, 0, time.UTC), tx.Timestamp.UTC())
	})
}

func TestMetaNormalize(t *testing.T) {
	n := NewMetaNormalizer(exchange.NewConverter(nil))

	t.Run("insight row", func(t *testing.T) {
		tx, err := n.Normalize(platform.RawRecord{
			"campaign_id":   "cmp_9",
			"campaign_name": "Summer Sale",
			"spend":         "150.50",
			"date_start":    "2026-01-15",
			"impressions":   "10000",
			"clicks":        "250",
		})
		require.NoError(t, err)
		assert.Equal(t, ledger.TypeAdSpend, tx.Type)
		assert.Equal(t, "150.50", tx.Amount.StringFixed(2))
		assert.Equal(t, "cmp_9", tx.CampaignID)
		assert.Equal(t, "cmp_9:2026-01-15", tx.PlatformID)
		assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), tx.Timestamp)
		assert.Equal(t, "Summer Sale", tx.Metadata["campaign_name"])
	})

	t.Run("explicit row id wins", func(t *testing.T) {
		tx, err := n.Normalize(platform.RawRecord{
			"id":          "ins_1",
			"campaign_id": "cmp_9",
			"spend":       "1.00",
			"date_start":  "2026-01-15",
		})
		require.NoError(t, err)
		assert.Equal(t, "ins_1", tx.PlatformID)
	})

	t.Run("missing spend", func(t *testing.T) {
		_, err := n.Normalize(platform.RawRecord{"campaign_id": "cmp_9", "date_start": "2026-01-15"})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestGoogleNormalize(t *testing.T) {
	n := NewGoogleNormalizer(exchange.NewConverter(nil))

	t.Run("cost micros divide exactly", func(t *testing.T) {
		tx, err := n.Normalize(platform.RawRecord{
			"campaign_id":   "123456",
			"campaign_name": "Search Campaign",
			"cost_micros":   "1500000",
			"date":          "2026-01-15",
		})
		require.NoError(t, err)
		assert.Equal(t, "1.50", tx.Amount.StringFixed(2))
		assert.Equal(t, "1.50", tx.AmountUSD.StringFixed(2))
		assert.Equal(t, "123456:2026-01-15", tx.PlatformID)
	})

	t.Run("nested report shape", func(t *testing.T) {
		tx, err := n.Normalize(platform.RawRecord{
			"campaign": map[string]any{"id": float64(123456), "name": "Brand"},
			"metrics":  map[string]any{"cost_micros": "2000000", "clicks": "10"},
			"segments": map[string]any{"date": "2026-01-15"},
			"cost_micros": "2000000",
		})
		require.NoError(t, err)
		assert.Equal(t, "2.00", tx.Amount.StringFixed(2))
		assert.Equal(t, "123456", tx.CampaignID)
		assert.Equal(t, "Brand", tx.Metadata["campaign_name"])
	})

	t.Run("plain cost fallback", func(t *testing.T) {
		tx, err := n.Normalize(platform.RawRecord{
			"campaign_id": "c1",
			"cost":        "3.25",
			"date":        "2026-01-15",
		})
		require.NoError(t, err)
		assert.Equal(t, "3.25", tx.Amount.StringFixed(2))
	})

	t.Run("missing cost", func(t *testing.T) {
		_, err := n.Normalize(platform.RawRecord{"campaign_id": "c1", "date": "2026-01-15"})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestNormalizeBatchIsolatesFailures(t *testing.T) {
	reg := testRegistry()

	records := make([]platform.RawRecord, 0, 5)
	for i := 0; i < 5; i++ {
		rec := shopifyOrder()
		rec["id"] = "ord_" + string(rune('a'+i))
		records = append(records, rec)
	}
	// Break record 3: no amount.
	delete(records[2], "total_price")

	out, err := reg.NormalizeBatch(platform.Shopify, records)
	require.NoError(t, err)
	assert.Len(t, out.Transactions, 4)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, 2, out.Failures[0].Index)
	assert.Equal(t, "ord_c", out.Failures[0].PlatformID)
	assert.True(t, errors.Is(out.Failures[0], shared.ErrValidation))
}

func TestRegistryUnknownPlatform(t *testing.T) {
	reg := testRegistry()
	_, err := reg.For(platform.Platform("ebay"))
	assert.True(t, errors.Is(err, shared.ErrUnsupportedPlatform))
}
