package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	appcredential "github.com/finsight/backend/internal/application/credential"
	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/exchange"
	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
	"github.com/finsight/backend/internal/infrastructure/normalizer"
)

type fakeCredSource struct {
	creds         map[platform.Platform]*credential.Credential
	refreshFailed map[platform.Platform]bool
}

func (f *fakeCredSource) Get(_ context.Context, _ string, p platform.Platform) (appcredential.GetResult, error) {
	c, ok := f.creds[p]
	if !ok {
		return appcredential.GetResult{}, shared.ErrNotFound
	}
	return appcredential.GetResult{Credential: c, RefreshFailed: f.refreshFailed[p]}, nil
}

func (f *fakeCredSource) ListPlatforms(_ context.Context, _ string) ([]platform.Platform, error) {
	var out []platform.Platform
	for _, p := range platform.All() {
		if _, ok := f.creds[p]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeUsers struct {
	id uuid.UUID
}

func (f *fakeUsers) EnsureUser(_ context.Context, _ string) (uuid.UUID, error) {
	return f.id, nil
}

type fakeTxRepo struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeTxRepo() *fakeTxRepo { return &fakeTxRepo{seen: make(map[string]bool)} }

func (r *fakeTxRepo) Upsert(_ context.Context, userID uuid.UUID, tx *ledger.Transaction) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID.String() + "/" + string(tx.Platform) + "/" + tx.PlatformID
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	return true, nil
}

func (r *fakeTxRepo) ListByUser(context.Context, uuid.UUID, time.Time, time.Time) ([]*ledger.Transaction, error) {
	return nil, nil
}

func (r *fakeTxRepo) CountByUser(context.Context, uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.seen)), nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products []*ledger.Product
}

func (r *fakeProductRepo) Upsert(_ context.Context, _ uuid.UUID, p *ledger.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = append(r.products, p)
	return nil
}

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns []*ledger.Campaign
}

func (r *fakeCampaignRepo) Upsert(_ context.Context, _ uuid.UUID, c *ledger.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns = append(r.campaigns, c)
	return nil
}

type fakeCommerce struct {
	orders      []platform.RawRecord
	products    []platform.RawRecord
	ordersErr   error
	productsErr error
	from, to    time.Time
}

func (f *fakeCommerce) FetchOrders(_ context.Context, _ *credential.Credential, from, to time.Time) ([]platform.RawRecord, error) {
	f.from, f.to = from, to
	return f.orders, f.ordersErr
}

func (f *fakeCommerce) FetchProducts(context.Context, *credential.Credential) ([]platform.RawRecord, error) {
	return f.products, f.productsErr
}

type fakeAds struct {
	accounts    []platform.RawRecord
	campaigns   map[string][]platform.RawRecord
	accountsErr error
}

func (f *fakeAds) FetchAdAccounts(context.Context, *credential.Credential) ([]platform.RawRecord, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeAds) FetchCampaigns(_ context.Context, _ *credential.Credential, accountID string, _, _ time.Time) ([]platform.RawRecord, error) {
	return f.campaigns[accountID], nil
}

func allCreds() map[platform.Platform]*credential.Credential {
	return map[platform.Platform]*credential.Credential{
		platform.Shopify: {Platform: platform.Shopify, AccessToken: "s"},
		platform.Meta:    {Platform: platform.Meta, AccessToken: "m"},
		platform.Google:  {Platform: platform.Google, AccessToken: "g", RefreshToken: "rt"},
	}
}

type fixture struct {
	svc       *Service
	txRepo    *fakeTxRepo
	products  *fakeProductRepo
	campaigns *fakeCampaignRepo
	commerce  *fakeCommerce
	meta      *fakeAds
	google    *fakeAds
	creds     *fakeCredSource
}

func newFixture() *fixture {
	f := &fixture{
		txRepo:    newFakeTxRepo(),
		products:  &fakeProductRepo{},
		campaigns: &fakeCampaignRepo{},
		commerce:  &fakeCommerce{},
		meta:      &fakeAds{campaigns: map[string][]platform.RawRecord{}},
		google:    &fakeAds{campaigns: map[string][]platform.RawRecord{}},
		creds:     &fakeCredSource{creds: allCreds(), refreshFailed: map[platform.Platform]bool{}},
	}
	f.svc = NewService(Config{
		Credentials:  f.creds,
		Registry:     normalizer.NewRegistry(exchange.NewConverter(nil)),
		Users:        &fakeUsers{id: uuid.New()},
		Transactions: f.txRepo,
		Products:     f.products,
		Campaigns:    f.campaigns,
		Shopify:      f.commerce,
		Meta:         f.meta,
		Google:       f.google,
		Logger:       zap.NewNop(),
		Tracer:       noop.NewTracerProvider().Tracer("test"),
	})
	return f
}

func shopifyOrderRec(id string) platform.RawRecord {
	return platform.RawRecord{
		"id":          id,
		"total_price": "49.99",
		"currency":    "USD",
		"created_at":  "2026-01-15T10:30:00Z",
	}
}

func TestSyncPlatformShopify(t *testing.T) {
	f := newFixture()
	f.commerce.orders = []platform.RawRecord{shopifyOrderRec("ord_1")}
	f.commerce.products = []platform.RawRecord{
		{"id": "p1", "title": "Mug", "variants": []any{map[string]any{"sku": "MUG-1", "price": "12.00"}}},
	}

	report := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Shopify, Window{})
	assert.Equal(t, 1, report.TransactionsSynced)
	assert.Equal(t, 1, report.ProductsSynced)
	assert.Empty(t, report.Errors)

	require.Len(t, f.products.products, 1)
	assert.Equal(t, "MUG-1", f.products.products[0].SKU)
	assert.Equal(t, "12.00", f.products.products[0].SellingPrice.StringFixed(2))
}

func TestSyncPlatformGoogleCampaigns(t *testing.T) {
	f := newFixture()
	f.google.accounts = []platform.RawRecord{{"id": "123"}}
	f.google.campaigns["123"] = []platform.RawRecord{
		{
			"campaign_id":   "cmp_1",
			"campaign_name": "Brand",
			"status":        "ENABLED",
			"cost_micros":   "2000000",
			"impressions":   "5000",
			"clicks":        "100",
			"date":          "2026-01-15",
		},
	}

	report := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Google, Window{})
	assert.Equal(t, 1, report.TransactionsSynced)
	assert.Equal(t, 1, report.CampaignsSynced)
	assert.Empty(t, report.Errors)

	require.Len(t, f.campaigns.campaigns, 1)
	c := f.campaigns.campaigns[0]
	assert.Equal(t, "2.00", c.Spend.StringFixed(2))
	assert.Equal(t, "enabled", c.Status)
	assert.Equal(t, int64(5000), c.Impressions)
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture()
	f.commerce.orders = []platform.RawRecord{shopifyOrderRec("ord_1")}
	f.google.accounts = []platform.RawRecord{{"id": "123"}}
	f.google.campaigns["123"] = []platform.RawRecord{
		{"campaign_id": "cmp_1", "cost_micros": "2000000", "date": "2026-01-15"},
	}

	first := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Shopify, Window{})
	firstAds := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Google, Window{})
	assert.Equal(t, 2, first.TransactionsSynced+firstAds.TransactionsSynced)

	second := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Shopify, Window{})
	secondAds := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Google, Window{})
	assert.Equal(t, 0, second.TransactionsSynced+secondAds.TransactionsSynced)
	assert.Empty(t, second.Errors)

	count, err := f.txRepo.CountByUser(context.Background(), uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSyncIsolatesBadRecords(t *testing.T) {
	f := newFixture()
	f.commerce.orders = []platform.RawRecord{
		shopifyOrderRec("ord_1"),
		{"id": "ord_2", "created_at": "2026-01-15T10:30:00Z"}, // no amount
		shopifyOrderRec("ord_3"),
	}

	report := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Shopify, Window{})
	assert.Equal(t, 2, report.TransactionsSynced)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "ord_2")
}

func TestSyncReportsFetchFailure(t *testing.T) {
	f := newFixture()
	f.commerce.ordersErr = errors.New("store unreachable")
	f.commerce.products = []platform.RawRecord{{"id": "p1", "title": "Mug"}}

	report := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Shopify, Window{})
	assert.Equal(t, 0, report.TransactionsSynced)
	// Products still sync when orders fail.
	assert.Equal(t, 1, report.ProductsSynced)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "failed to fetch orders")
}

func TestSyncMissingCredential(t *testing.T) {
	f := newFixture()
	delete(f.creds.creds, platform.Meta)

	report := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Meta, Window{})
	assert.Equal(t, 0, report.TransactionsSynced)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "no usable credential")
}

func TestSyncStaleCredentialWarns(t *testing.T) {
	f := newFixture()
	f.creds.refreshFailed[platform.Shopify] = true
	f.commerce.orders = []platform.RawRecord{shopifyOrderRec("ord_1")}

	report := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Shopify, Window{})
	assert.Equal(t, 1, report.TransactionsSynced)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "refresh failed")
}

func TestSyncInvalidWindow(t *testing.T) {
	f := newFixture()
	report := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Shopify, Window{
		From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "invalid window")
}

func TestWindowResolveDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := Window{}.Resolve(now, 0)
	assert.Equal(t, now, w.To)
	assert.Equal(t, now.AddDate(0, 0, -30), w.From)

	w = Window{}.Resolve(now, 7)
	assert.Equal(t, now.AddDate(0, 0, -7), w.From)

	explicit := Window{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, explicit, explicit.Resolve(now, 90))
}

func TestSyncUsesConfiguredWindowDays(t *testing.T) {
	f := newFixture()
	f.svc.windowDays = 7
	f.commerce.orders = []platform.RawRecord{shopifyOrderRec("ord_1")}

	report := f.svc.SyncPlatform(context.Background(), "u@example.com", platform.Shopify, Window{})
	assert.Empty(t, report.Errors)
	require.False(t, f.commerce.from.IsZero())
	assert.Equal(t, 7*24*time.Hour, f.commerce.to.Sub(f.commerce.from))
}

func TestSyncAllPlatforms(t *testing.T) {
	f := newFixture()
	f.commerce.orders = []platform.RawRecord{shopifyOrderRec("ord_1")}
	f.meta.accounts = []platform.RawRecord{{"id": "act_1"}}
	f.meta.campaigns["act_1"] = []platform.RawRecord{
		{"campaign_id": "m1", "spend": "5.00", "date_start": "2026-01-10"},
	}
	f.google.accounts = []platform.RawRecord{{"id": "123"}}
	f.google.campaigns["123"] = []platform.RawRecord{
		{"campaign_id": "g1", "cost_micros": "1500000", "date": "2026-01-10"},
	}

	combined := f.svc.SyncAllPlatforms(context.Background(), "u@example.com", Window{})
	assert.ElementsMatch(t, platform.All(), combined.PlatformsSynced)
	assert.Equal(t, 3, combined.TotalTransactions)
	assert.Equal(t, 2, combined.TotalCampaigns)
	assert.Empty(t, combined.Errors)
	assert.Len(t, combined.Reports, 3)
}
