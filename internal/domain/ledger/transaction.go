// Package ledger defines the canonical transaction record every platform's
// data is normalized into, and the repositories that persist it.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

// TransactionType classifies a canonical transaction.
type TransactionType string

const (
	TypeOrder         TransactionType = "order"
	TypeRefund        TransactionType = "refund"
	TypeAdSpend       TransactionType = "ad_spend"
	TypeExpense       TransactionType = "expense"
	TypePayout        TransactionType = "payout"
	TypeInventoryCost TransactionType = "inventory_cost"
)

// IsValid returns true if t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeOrder, TypeRefund, TypeAdSpend, TypeExpense, TypePayout, TypeInventoryCost:
		return true
	default:
		return false
	}
}

// Transaction is the canonical, accounting-grade record produced by
// normalization. It is created once per raw source record and never mutated
// afterwards; re-syncing the same (platform, platformID) is a no-op at the
// persistence layer rather than an overwrite.
type Transaction struct {
	// ID is a surrogate key generated at normalization time.
	ID uuid.UUID
	// Platform is the source platform; combined with PlatformID and the
	// owning user it is the idempotency key.
	Platform   platform.Platform
	PlatformID string
	Type       TransactionType

	// Amount is the original-currency amount. Refunds carry a non-negative
	// magnitude, not a signed delta.
	Amount   decimal.Decimal
	Currency string
	// AmountUSD is always resolved at normalization time; a record that
	// cannot be priced in USD never leaves the normalizer.
	AmountUSD decimal.Decimal

	// Timestamp is when the economic event occurred, not when it was synced.
	Timestamp time.Time

	SKUID       string
	Quantity    *int64
	CostPerUnit *decimal.Decimal
	CampaignID  string
	CustomerID  string
	Metadata    map[string]any
}

// IsRevenue returns true for order transactions.
func (t *Transaction) IsRevenue() bool {
	return t.Type == TypeOrder
}

// IsExpense returns true for cost-side transactions.
func (t *Transaction) IsExpense() bool {
	return t.Type == TypeAdSpend || t.Type == TypeExpense || t.Type == TypeInventoryCost
}

// Validate checks the record against the canonical model's rules.
// It returns an error wrapping shared.ErrValidation describing the first
// violation found.
func (t *Transaction) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", shared.ErrValidation)
	}
	if !t.Platform.IsValid() {
		return fmt.Errorf("%w: invalid platform %q", shared.ErrValidation, t.Platform)
	}
	if t.PlatformID == "" {
		return fmt.Errorf("%w: missing platform id", shared.ErrValidation)
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: invalid transaction type %q", shared.ErrValidation, t.Type)
	}
	if t.Currency == "" {
		return fmt.Errorf("%w: missing currency", shared.ErrValidation)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", shared.ErrValidation)
	}

	// Orders and refunds only originate from the commerce platform; ad
	// spend only from ad platforms.
	switch t.Type {
	case TypeOrder, TypeRefund:
		if !t.Platform.IsCommerce() {
			return fmt.Errorf("%w: type %s cannot originate from %s", shared.ErrValidation, t.Type, t.Platform)
		}
	case TypeAdSpend:
		if !t.Platform.IsAds() {
			return fmt.Errorf("%w: type %s cannot originate from %s", shared.ErrValidation, t.Type, t.Platform)
		}
	}

	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must be non-negative, got %s", shared.ErrValidation, t.Amount)
	}
	if t.AmountUSD.IsNegative() {
		return fmt.Errorf("%w: usd amount must be non-negative, got %s", shared.ErrValidation, t.AmountUSD)
	}

	return nil
}
