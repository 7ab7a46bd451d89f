package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

const metaGraphVersion = "v21.0"

// MetaClient pulls ad accounts and campaign insights from the Meta Graph
// API.
type MetaClient struct {
	rc      *retryClient
	baseURL string
}

func NewMetaClient(timeout time.Duration, maxRetries int, logger *zap.Logger) *MetaClient {
	return &MetaClient{
		rc:      newRetryClient(timeout, maxRetries, logger.Named("meta")),
		baseURL: "https://graph.facebook.com",
	}
}

// FetchAdAccounts lists the ad accounts the credential can read.
func (c *MetaClient) FetchAdAccounts(ctx context.Context, cred *credential.Credential) ([]platform.RawRecord, error) {
	query := url.Values{}
	query.Set("access_token", cred.AccessToken)
	query.Set("fields", "id,account_id,name,currency")

	body, err := c.rc.do(ctx, func() (*http.Request, error) {
		endpoint := fmt.Sprintf("%s/%s/me/adaccounts?%s", c.baseURL, metaGraphVersion, query.Encode())
		return http.NewRequest(http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching meta ad accounts: %w", err)
	}
	return decodeRecords(body, "data")
}

// FetchCampaigns returns campaign-level insight rows for the account over
// the window, one row per campaign per day.
func (c *MetaClient) FetchCampaigns(ctx context.Context, cred *credential.Credential, accountID string, from, to time.Time) ([]platform.RawRecord, error) {
	timeRange, err := json.Marshal(map[string]string{
		"since": from.UTC().Format("2006-01-02"),
		"until": to.UTC().Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("access_token", cred.AccessToken)
	query.Set("level", "campaign")
	query.Set("time_increment", "1")
	query.Set("time_range", string(timeRange))
	query.Set("fields", "campaign_id,campaign_name,spend,impressions,clicks,conversions,date_start,date_stop")

	body, err := c.rc.do(ctx, func() (*http.Request, error) {
		endpoint := fmt.Sprintf("%s/%s/%s/insights?%s", c.baseURL, metaGraphVersion, accountID, query.Encode())
		return http.NewRequest(http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching meta campaigns for %s: %w", accountID, err)
	}
	return decodeRecords(body, "data")
}

// MetaRefresher exchanges a user access token for a fresh long-lived one
// via the fb_exchange_token grant.
type MetaRefresher struct {
	rc           *retryClient
	baseURL      string
	clientID     string
	clientSecret string
	now          func() time.Time
}

func NewMetaRefresher(clientID, clientSecret string, timeout time.Duration, logger *zap.Logger) *MetaRefresher {
	return &MetaRefresher{
		rc:           newRetryClient(timeout, 1, logger.Named("meta-refresh")),
		baseURL:      "https://graph.facebook.com",
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

func (r *MetaRefresher) Refresh(ctx context.Context, c *credential.Credential) (*credential.Credential, error) {
	if c.AccessToken == "" {
		return nil, fmt.Errorf("%w: meta credential has no access token", shared.ErrRefreshFailed)
	}

	query := url.Values{}
	query.Set("grant_type", "fb_exchange_token")
	query.Set("client_id", r.clientID)
	query.Set("client_secret", r.clientSecret)
	query.Set("fb_exchange_token", c.AccessToken)

	body, err := r.rc.do(ctx, func() (*http.Request, error) {
		endpoint := fmt.Sprintf("%s/%s/oauth/access_token?%s", r.baseURL, metaGraphVersion, query.Encode())
		return http.NewRequest(http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing token response: %v", shared.ErrRefreshFailed, err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response carried no access token", shared.ErrRefreshFailed)
	}

	out := c.Clone()
	out.AccessToken = resp.AccessToken
	if resp.ExpiresIn > 0 {
		at := r.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		out.ExpiresAt = &at
	} else {
		out.ExpiresAt = nil
	}
	return out, nil
}
