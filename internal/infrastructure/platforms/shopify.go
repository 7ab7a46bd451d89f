package platforms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

const (
	defaultShopifyAPIVersion = "2024-01"
	// shopifyPageLimit is the API's maximum page size.
	shopifyPageLimit = 250
)

// ShopifyClient pulls orders and products from a Shopify store's Admin API.
// The store domain comes from the credential's metadata.
type ShopifyClient struct {
	rc         *retryClient
	apiVersion string
	// baseURL overrides the per-store URL when set, for tests.
	baseURL string
}

// NewShopifyClient builds a client pinned to the given Admin API version.
// An empty version means the default.
func NewShopifyClient(apiVersion string, timeout time.Duration, maxRetries int, logger *zap.Logger) *ShopifyClient {
	if apiVersion == "" {
		apiVersion = defaultShopifyAPIVersion
	}
	return &ShopifyClient{
		rc:         newRetryClient(timeout, maxRetries, logger.Named("shopify")),
		apiVersion: apiVersion,
	}
}

func (c *ShopifyClient) storeURL(cred *credential.Credential) (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	domain := cred.Metadata["shop_domain"]
	if domain == "" {
		return "", fmt.Errorf("%w: shopify credential has no shop_domain", shared.ErrAuthentication)
	}
	return "https://" + domain, nil
}

// FetchOrders returns orders created inside the window, any financial
// status included so refunds come back too.
func (c *ShopifyClient) FetchOrders(ctx context.Context, cred *credential.Credential, from, to time.Time) ([]platform.RawRecord, error) {
	base, err := c.storeURL(cred)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("status", "any")
	query.Set("created_at_min", from.UTC().Format(time.RFC3339))
	query.Set("created_at_max", to.UTC().Format(time.RFC3339))
	query.Set("limit", fmt.Sprintf("%d", shopifyPageLimit))

	body, err := c.rc.do(ctx, func() (*http.Request, error) {
		endpoint := fmt.Sprintf("%s/admin/api/%s/orders.json?%s", base, c.apiVersion, query.Encode())
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Shopify-Access-Token", cred.AccessToken)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching shopify orders: %w", err)
	}
	return decodeRecords(body, "orders")
}

// FetchProducts returns the store's product catalog.
func (c *ShopifyClient) FetchProducts(ctx context.Context, cred *credential.Credential) ([]platform.RawRecord, error) {
	base, err := c.storeURL(cred)
	if err != nil {
		return nil, err
	}

	body, err := c.rc.do(ctx, func() (*http.Request, error) {
		endpoint := fmt.Sprintf("%s/admin/api/%s/products.json?limit=%d", base, c.apiVersion, shopifyPageLimit)
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Shopify-Access-Token", cred.AccessToken)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching shopify products: %w", err)
	}
	return decodeRecords(body, "products")
}

// ShopifyRefresher satisfies the refresher contract for Shopify. Admin API
// access tokens do not expire, so a refresh just hands back the credential.
type ShopifyRefresher struct{}

func NewShopifyRefresher() *ShopifyRefresher { return &ShopifyRefresher{} }

func (r *ShopifyRefresher) Refresh(_ context.Context, c *credential.Credential) (*credential.Credential, error) {
	out := c.Clone()
	out.ExpiresAt = nil
	return out, nil
}
