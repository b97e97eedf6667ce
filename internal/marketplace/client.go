package marketplace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"slabwise/server/config"
)

const (
	sandboxBase    = "https://api.sandbox.ebay.com"
	productionBase = "https://api.ebay.com"
	oauthScope     = "https://api.ebay.com/oauth/api_scope"
)

// Client talks to the eBay Browse API with an application OAuth token.
// Tokens are cached until shortly before expiry.
type Client struct {
	http         *resty.Client
	clientID     string
	clientSecret string
	base         string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg *config.Config) *Client {
	base := sandboxBase
	if cfg.Marketplace.Env == "production" {
		base = productionBase
	}

	http := resty.New()
	http.SetTimeout(30 * time.Second)

	return &Client{
		http:         http,
		clientID:     cfg.Marketplace.ClientID,
		clientSecret: cfg.Marketplace.ClientSecret,
		base:         base,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ItemSummary is the Browse API listing shape, reduced to the fields
// ingestion consumes.
type ItemSummary struct {
	Title      string `json:"title"`
	ItemWebURL string `json:"itemWebUrl"`
	// End date of the listing, set on sold results
	ItemEndDate string `json:"itemEndDate"`
	Price       struct {
		Value string `json:"value"`
	} `json:"price"`
	ShippingOptions []struct {
		ShippingCost struct {
			Value string `json:"value"`
		} `json:"shippingCost"`
	} `json:"shippingOptions"`
	Condition string `json:"condition"`
}

type searchResponse struct {
	ItemSummaries []ItemSummary `json:"itemSummaries"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	if c.clientID == "" || c.clientSecret == "" {
		return "", fmt.Errorf("marketplace credentials not configured")
	}

	var tok tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      oauthScope,
		}).
		SetResult(&tok).
		Post(c.base + "/identity/v1/oauth2/token")
	if err != nil {
		return "", fmt.Errorf("oauth request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("oauth failed (%d): %s", resp.StatusCode(), truncate(resp.String(), 500))
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("oauth response missing access token")
	}

	c.token = tok.AccessToken
	// Refresh a minute early so in-flight searches never carry a stale token
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

// Search runs an item-summary search. soldOnly restricts results to
// completed sales; otherwise active listings come back.
func (c *Client) Search(ctx context.Context, query string, limit int, soldOnly bool) ([]ItemSummary, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetHeader("X-EBAY-C-MARKETPLACE-ID", "EBAY_US").
		SetQueryParam("q", query).
		SetQueryParam("limit", fmt.Sprintf("%d", limit))
	if soldOnly {
		req.SetQueryParam("filter", "soldItemsOnly:true")
	}

	var out searchResponse
	resp, err := req.SetResult(&out).Get(c.base + "/buy/browse/v1/item_summary/search")
	if err != nil {
		return nil, fmt.Errorf("browse search failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("browse search failed (%d): %s", resp.StatusCode(), truncate(resp.String(), 500))
	}

	return out.ItemSummaries, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
