// Package sync orchestrates pulling raw records from connected platforms,
// normalizing them, and writing them into the ledger. A sync never fails as
// a whole: every failure is scoped to a record, an account, or a platform
// and recorded in the report.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	appcredential "github.com/finsight/backend/internal/application/credential"
	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/ledger"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/infrastructure/logger"
	"github.com/finsight/backend/internal/infrastructure/normalizer"
)

// CommerceClient fetches orders and catalog data from the commerce platform.
type CommerceClient interface {
	FetchOrders(ctx context.Context, cred *credential.Credential, from, to time.Time) ([]platform.RawRecord, error)
	FetchProducts(ctx context.Context, cred *credential.Credential) ([]platform.RawRecord, error)
}

// AdsClient fetches ad accounts and campaign spend rows from an ads
// platform.
type AdsClient interface {
	FetchAdAccounts(ctx context.Context, cred *credential.Credential) ([]platform.RawRecord, error)
	FetchCampaigns(ctx context.Context, cred *credential.Credential, accountID string, from, to time.Time) ([]platform.RawRecord, error)
}

// CredentialSource is the slice of the credential store the sync pipeline
// needs.
type CredentialSource interface {
	Get(ctx context.Context, userID string, p platform.Platform) (appcredential.GetResult, error)
	ListPlatforms(ctx context.Context, userID string) ([]platform.Platform, error)
}

// RawArchiver stores raw platform payloads before normalization, for replay
// and audit. Archiving is best effort; failures are logged, never fatal.
type RawArchiver interface {
	Archive(ctx context.Context, userID string, p platform.Platform, kind string, records []platform.RawRecord) error
}

// Service runs platform syncs.
type Service struct {
	credentials CredentialSource
	registry    *normalizer.Registry
	users       ledger.UserDirectory

	transactions ledger.TransactionRepository
	products     ledger.ProductRepository
	campaigns    ledger.CampaignRepository

	shopify CommerceClient
	meta    AdsClient
	google  AdsClient

	archiver   RawArchiver
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	windowDays int
}

// Config wires a Service.
type Config struct {
	Credentials  CredentialSource
	Registry     *normalizer.Registry
	Users        ledger.UserDirectory
	Transactions ledger.TransactionRepository
	Products     ledger.ProductRepository
	Campaigns    ledger.CampaignRepository
	Shopify      CommerceClient
	Meta         AdsClient
	Google       AdsClient
	Archiver     RawArchiver
	Logger       *zap.Logger
	Tracer       trace.Tracer
	// WindowDays sets the trailing window used when a sync request carries
	// no dates. Zero means the 30-day default.
	WindowDays int
}

func NewService(cfg Config) *Service {
	return &Service{
		credentials:  cfg.Credentials,
		registry:     cfg.Registry,
		users:        cfg.Users,
		transactions: cfg.Transactions,
		products:     cfg.Products,
		campaigns:    cfg.Campaigns,
		shopify:      cfg.Shopify,
		meta:         cfg.Meta,
		google:       cfg.Google,
		archiver:     cfg.Archiver,
		logger:       cfg.Logger,
		tracer:       cfg.Tracer,
		now:          time.Now,
		windowDays:   cfg.WindowDays,
	}
}

// SyncPlatform pulls one platform's data for the window and writes it into
// the ledger. The report is always returned; anything that went wrong is in
// its Errors.
func (s *Service) SyncPlatform(ctx context.Context, userID string, p platform.Platform, window Window) Report {
	ctx, span := s.tracer.Start(ctx, "sync.platform",
		trace.WithAttributes(
			attribute.String("sync.platform", p.String()),
		))
	defer span.End()

	report := newReport(p)
	window = window.Resolve(s.now(), s.windowDays)
	if !window.IsValid() {
		report.addError(fmt.Sprintf("invalid window: from %s is after to %s",
			window.From.Format("2006-01-02"), window.To.Format("2006-01-02")))
		return *report
	}
	if !p.IsValid() {
		report.addError(fmt.Sprintf("unsupported platform: %s", p))
		return *report
	}

	userUUID, err := s.users.EnsureUser(ctx, userID)
	if err != nil {
		report.addError(fmt.Sprintf("resolving user: %v", err))
		return *report
	}

	res, err := s.credentials.Get(ctx, userID, p)
	if err != nil {
		report.addError(fmt.Sprintf("no usable credential for %s: %v", p, err))
		return *report
	}
	if res.RefreshFailed {
		// The stale token may still be accepted; the fetch decides.
		report.addError(fmt.Sprintf("credential refresh failed for %s, using stored token", p))
	}

	switch p {
	case platform.Shopify:
		s.syncShopify(ctx, userID, userUUID, res.Credential, window, report)
	case platform.Meta:
		s.syncAds(ctx, userID, userUUID, p, s.meta, res.Credential, window, report)
	case platform.Google:
		s.syncAds(ctx, userID, userUUID, p, s.google, res.Credential, window, report)
	}

	logger.WithTraceContext(ctx, s.logger).Info("platform sync finished",
		zap.String("user_id", userID),
		zap.String("platform", p.String()),
		zap.Int("transactions", report.TransactionsSynced),
		zap.Int("products", report.ProductsSynced),
		zap.Int("campaigns", report.CampaignsSynced),
		zap.Int("errors", len(report.Errors)))
	return *report
}

// SyncAllPlatforms syncs every platform the user has a credential for,
// sequentially, and aggregates the reports.
func (s *Service) SyncAllPlatforms(ctx context.Context, userID string, window Window) CombinedReport {
	ctx, span := s.tracer.Start(ctx, "sync.all")
	defer span.End()

	combined := CombinedReport{
		UserID:          userID,
		PlatformsSynced: []platform.Platform{},
		Errors:          []string{},
	}

	connected, err := s.credentials.ListPlatforms(ctx, userID)
	if err != nil {
		combined.Errors = append(combined.Errors, fmt.Sprintf("listing connected platforms: %v", err))
		return combined
	}

	for _, p := range connected {
		report := s.SyncPlatform(ctx, userID, p, window)
		combined.PlatformsSynced = append(combined.PlatformsSynced, p)
		combined.TotalTransactions += report.TransactionsSynced
		combined.TotalProducts += report.ProductsSynced
		combined.TotalCampaigns += report.CampaignsSynced
		combined.Errors = append(combined.Errors, report.Errors...)
		combined.Reports = append(combined.Reports, report)
	}
	return combined
}

func (s *Service) syncShopify(ctx context.Context, userID string, userUUID uuid.UUID, cred *credential.Credential, window Window, report *Report) {
	orders, err := s.shopify.FetchOrders(ctx, cred, window.From, window.To)
	if err != nil {
		report.addError(fmt.Sprintf("failed to fetch orders: %v", err))
	} else {
		s.archive(ctx, userID, platform.Shopify, "orders", orders)
		s.ingestTransactions(ctx, userUUID, platform.Shopify, orders, report)
	}

	products, err := s.shopify.FetchProducts(ctx, cred)
	if err != nil {
		report.addError(fmt.Sprintf("failed to fetch products: %v", err))
		return
	}
	s.archive(ctx, userID, platform.Shopify, "products", products)
	for _, rec := range products {
		product, err := productFromRaw(platform.Shopify, rec)
		if err != nil {
			report.addError(fmt.Sprintf("product %s: %v", rec.String("id"), err))
			continue
		}
		if err := s.products.Upsert(ctx, userUUID, product); err != nil {
			report.addError(fmt.Sprintf("product %s: %v", product.ProductID, err))
			continue
		}
		report.ProductsSynced++
	}
}

func (s *Service) syncAds(ctx context.Context, userID string, userUUID uuid.UUID, p platform.Platform, client AdsClient, cred *credential.Credential, window Window, report *Report) {
	accounts, err := client.FetchAdAccounts(ctx, cred)
	if err != nil {
		report.addError(fmt.Sprintf("failed to fetch ad accounts: %v", err))
		return
	}

	for _, account := range accounts {
		accountID := account.String("id")
		if accountID == "" {
			accountID = account.String("account_id")
		}

		rows, err := client.FetchCampaigns(ctx, cred, accountID, window.From, window.To)
		if err != nil {
			report.addError(fmt.Sprintf("account %s: %v", accountID, err))
			continue
		}
		s.archive(ctx, userID, p, "campaigns", rows)

		for _, row := range rows {
			campaign, err := campaignFromRaw(p, row)
			if err != nil {
				report.addError(fmt.Sprintf("campaign %s: %v", row.String("campaign_id"), err))
				continue
			}
			if err := s.campaigns.Upsert(ctx, userUUID, campaign); err != nil {
				report.addError(fmt.Sprintf("campaign %s: %v", campaign.CampaignID, err))
				continue
			}
			report.CampaignsSynced++
		}

		s.ingestTransactions(ctx, userUUID, p, rows, report)
	}
}

// ingestTransactions normalizes raw records and upserts the results. Only
// rows the database had not seen count as synced, so a repeated sync of the
// same window reports zero.
func (s *Service) ingestTransactions(ctx context.Context, userUUID uuid.UUID, p platform.Platform, records []platform.RawRecord, report *Report) {
	out, err := s.registry.NormalizeBatch(p, records)
	if err != nil {
		report.addError(err.Error())
		return
	}
	for _, failure := range out.Failures {
		report.addError(failure.Error())
	}

	for _, tx := range out.Transactions {
		inserted, err := s.transactions.Upsert(ctx, userUUID, tx)
		if err != nil {
			report.addError(fmt.Sprintf("transaction %s: %v", tx.PlatformID, err))
			continue
		}
		if inserted {
			report.TransactionsSynced++
		}
	}
}

func (s *Service) archive(ctx context.Context, userID string, p platform.Platform, kind string, records []platform.RawRecord) {
	if s.archiver == nil || len(records) == 0 {
		return
	}
	if err := s.archiver.Archive(ctx, userID, p, kind, records); err != nil {
		logger.WithTraceContext(ctx, s.logger).Warn("raw payload archive failed",
			zap.String("platform", p.String()),
			zap.String("kind", kind),
			zap.Error(err))
	}
}
