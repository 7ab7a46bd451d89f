// Package normalizer turns platform-native records into canonical ledger
// transactions. Each platform has its own normalizer; a registry closed over
// the supported platform set dispatches to them.
package normalizer

import (
	"fmt"
	"time"

	"github.com/finsight/backend/internal/domain/exchange"
	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

// Normalizer converts one raw record into a validated canonical transaction.
type Normalizer interface {
	Platform() platform.Platform
	Normalize(rec platform.RawRecord) (*ledger.Transaction, error)
}

// RecordError ties a normalization failure back to the record that caused
// it, so one malformed record never sinks a batch.
type RecordError struct {
	Index      int
	PlatformID string
	Err        error
}

func (e RecordError) Error() string {
	if e.PlatformID != "" {
		return fmt.Sprintf("record %d (%s): %v", e.Index, e.PlatformID, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// BatchOutcome is the result of normalizing a batch: the transactions that
// made it through plus the per-record failures.
type BatchOutcome struct {
	Transactions []*ledger.Transaction
	Failures     []RecordError
}

// Registry holds one normalizer per supported platform. The set is fixed at
// construction; asking for an unknown platform is an ErrUnsupportedPlatform.
type Registry struct {
	byPlatform map[platform.Platform]Normalizer
}

// NewRegistry builds the registry over the full platform set, sharing one
// currency converter across all normalizers.
func NewRegistry(converter *exchange.Converter) *Registry {
	return &Registry{
		byPlatform: map[platform.Platform]Normalizer{
			platform.Shopify: NewShopifyNormalizer(converter),
			platform.Meta:    NewMetaNormalizer(converter),
			platform.Google:  NewGoogleNormalizer(converter),
		},
	}
}

// For returns the normalizer for a platform.
func (r *Registry) For(p platform.Platform) (Normalizer, error) {
	n, ok := r.byPlatform[p]
	if !ok {
		return nil, fmt.Errorf("no normalizer for platform %q: %w", p, shared.ErrUnsupportedPlatform)
	}
	return n, nil
}

// NormalizeBatch runs every record through the platform's normalizer,
// collecting failures instead of stopping at the first one.
func (r *Registry) NormalizeBatch(p platform.Platform, records []platform.RawRecord) (BatchOutcome, error) {
	n, err := r.For(p)
	if err != nil {
		return BatchOutcome{}, err
	}

	out := BatchOutcome{}
	for i, rec := range records {
		tx, err := n.Normalize(rec)
		if err != nil {
			out.Failures = append(out.Failures, RecordError{
				Index:      i,
				PlatformID: rec.String("id"),
				Err:        err,
			})
			continue
		}
		out.Transactions = append(out.Transactions, tx)
	}
	return out, nil
}

// parseTimestamp accepts the two shapes platform APIs emit: full RFC 3339
// (with "Z" or a numeric offset) and bare dates, which are taken as midnight
// UTC.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing timestamp", shared.ErrValidation)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", shared.ErrValidation, s)
}
