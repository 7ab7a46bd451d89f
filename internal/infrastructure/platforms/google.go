package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

const googleAdsVersion = "v17"

// campaignSpendQuery is the report the sync pipeline runs: one row per
// campaign per day with cost in micros.
const campaignSpendQuery = `SELECT campaign.id, campaign.name, campaign.status,
metrics.cost_micros, metrics.impressions, metrics.clicks, metrics.conversions,
segments.date
FROM campaign WHERE segments.date BETWEEN '%s' AND '%s'`

// GoogleClient pulls accessible customers and campaign spend reports from
// the Google Ads API.
type GoogleClient struct {
	rc             *retryClient
	baseURL        string
	developerToken string
}

func NewGoogleClient(developerToken string, timeout time.Duration, maxRetries int, logger *zap.Logger) *GoogleClient {
	return &GoogleClient{
		rc:             newRetryClient(timeout, maxRetries, logger.Named("google")),
		baseURL:        "https://googleads.googleapis.com",
		developerToken: developerToken,
	}
}

func (c *GoogleClient) authHeaders(req *http.Request, cred *credential.Credential) {
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("developer-token", c.developerToken)
	if loginCustomer := cred.Metadata["login_customer_id"]; loginCustomer != "" {
		req.Header.Set("login-customer-id", loginCustomer)
	}
}

// FetchAdAccounts lists the customer accounts the credential can access.
// Resource names come back as "customers/<id>"; records carry the bare id.
func (c *GoogleClient) FetchAdAccounts(ctx context.Context, cred *credential.Credential) ([]platform.RawRecord, error) {
	body, err := c.rc.do(ctx, func() (*http.Request, error) {
		endpoint := fmt.Sprintf("%s/%s/customers:listAccessibleCustomers", c.baseURL, googleAdsVersion)
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.authHeaders(req, cred)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching google customers: %w", err)
	}

	var resp struct {
		ResourceNames []string `json:"resourceNames"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing customer list: %v", shared.ErrConnectivity, err)
	}

	out := make([]platform.RawRecord, 0, len(resp.ResourceNames))
	for _, name := range resp.ResourceNames {
		id := strings.TrimPrefix(name, "customers/")
		out = append(out, platform.RawRecord{"id": id, "resource_name": name})
	}
	return out, nil
}

// FetchCampaigns runs the campaign spend report for a customer over the
// window.
func (c *GoogleClient) FetchCampaigns(ctx context.Context, cred *credential.Credential, customerID string, from, to time.Time) ([]platform.RawRecord, error) {
	payload, err := json.Marshal(map[string]string{
		"query": fmt.Sprintf(campaignSpendQuery, from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02")),
	})
	if err != nil {
		return nil, err
	}

	body, err := c.rc.do(ctx, func() (*http.Request, error) {
		endpoint := fmt.Sprintf("%s/%s/customers/%s/googleAds:search", c.baseURL, googleAdsVersion, customerID)
		req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(string(payload)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.authHeaders(req, cred)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching google campaigns for %s: %w", customerID, err)
	}

	rows, err := decodeRecords(body, "results")
	if err != nil {
		return nil, err
	}

	// Flatten report rows into the shape the normalizer reads: keep the
	// nested campaign/metrics/segments objects and lift the key fields.
	out := make([]platform.RawRecord, 0, len(rows))
	for _, row := range rows {
		rec := platform.RawRecord{}
		for k, v := range row {
			rec[k] = v
		}
		if campaign := row.Map("campaign"); campaign != nil {
			rec["campaign_id"] = campaign.String("id")
			rec["campaign_name"] = campaign.String("name")
			rec["status"] = campaign.String("status")
		}
		if metrics := row.Map("metrics"); metrics != nil {
			if metrics.Has("costMicros") {
				rec["cost_micros"] = metrics["costMicros"]
			}
			if metrics.Has("cost_micros") {
				rec["cost_micros"] = metrics["cost_micros"]
			}
			for camel, snake := range map[string]string{"impressions": "impressions", "clicks": "clicks", "conversions": "conversions"} {
				if metrics.Has(camel) {
					rec[snake] = metrics[camel]
				}
			}
		}
		if segments := row.Map("segments"); segments != nil {
			rec["date"] = segments.String("date")
		}
		out = append(out, rec)
	}
	return out, nil
}

// GoogleRefresher swaps a refresh token for a new access token at Google's
// OAuth token endpoint.
type GoogleRefresher struct {
	rc           *retryClient
	tokenURL     string
	clientID     string
	clientSecret string
	now          func() time.Time
}

func NewGoogleRefresher(clientID, clientSecret string, timeout time.Duration, logger *zap.Logger) *GoogleRefresher {
	return &GoogleRefresher{
		rc:           newRetryClient(timeout, 1, logger.Named("google-refresh")),
		tokenURL:     "https://oauth2.googleapis.com/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

func (r *GoogleRefresher) Refresh(ctx context.Context, c *credential.Credential) (*credential.Credential, error) {
	if c.RefreshToken == "" {
		return nil, fmt.Errorf("%w: google credential has no refresh token", shared.ErrRefreshFailed)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.RefreshToken)
	form.Set("client_id", r.clientID)
	form.Set("client_secret", r.clientSecret)

	body, err := r.rc.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing token response: %v", shared.ErrRefreshFailed, err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response carried no access token", shared.ErrRefreshFailed)
	}

	// The refresh token itself survives; only the access token rotates.
	out := c.Clone()
	out.AccessToken = resp.AccessToken
	if resp.ExpiresIn > 0 {
		at := r.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		out.ExpiresAt = &at
	}
	return out, nil
}
